package models

import (
	"strings"
	"time"
)

type SlideStatus string

const (
	SlideStatusPending    SlideStatus = "pending"
	SlideStatusScripted   SlideStatus = "scripted"
	SlideStatusAudioReady SlideStatus = "audio_ready"
	SlideStatusClipReady  SlideStatus = "clip_ready"
	SlideStatusFailed     SlideStatus = "failed"
)

func (s SlideStatus) rank() int {
	switch s {
	case SlideStatusScripted:
		return 1
	case SlideStatusAudioReady:
		return 2
	case SlideStatusClipReady:
		return 3
	}
	return 0
}

type Slide struct {
	Index           int         `json:"index"`
	Content         string      `json:"content"`
	Notes           string      `json:"notes,omitempty"`
	ImagePath       string      `json:"imagePath"`
	GeneratedScript string      `json:"generatedScript"`
	EditedScript    string      `json:"editedScript"`
	Audio           *AudioAsset `json:"audio,omitempty"`
	StyledImagePath string      `json:"styledImagePath,omitempty"`
	Clip            *StyledClip `json:"clip,omitempty"`
	Status          SlideStatus `json:"status"`
	FailedStage     Stage       `json:"failedStage,omitempty"`
	Error           string      `json:"error,omitempty"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// AudioAsset is immutable once written; regeneration replaces the reference.
type AudioAsset struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	Engine   string  `json:"engine"`
}

type StyledClip struct {
	Path          string  `json:"path"`
	Duration      float64 `json:"duration"`
	AudioDuration float64 `json:"audioDuration"`
	FadeIn        bool    `json:"fadeIn"`
	FadeOut       bool    `json:"fadeOut"`
	FadeDuration  float64 `json:"fadeDuration"`
	// Degraded is set when styling failed and the unstyled slide image was used.
	Degraded bool `json:"degraded,omitempty"`
}

// Script returns the text to narrate: the user's edit when present, else the generated one.
func (s *Slide) Script() string {
	if strings.TrimSpace(s.EditedScript) != "" {
		return s.EditedScript
	}
	return s.GeneratedScript
}

// Reached is the furthest stage backed by artifacts, independent of a failed status.
func (s *Slide) Reached() SlideStatus {
	switch {
	case s.Clip != nil:
		return SlideStatusClipReady
	case s.Audio != nil:
		return SlideStatusAudioReady
	case strings.TrimSpace(s.Script()) != "":
		return SlideStatusScripted
	}
	return SlideStatusPending
}

// Advance moves the status forward. It never moves a healthy slide backwards; a failed
// slide recovers to whatever status its successful retry reports.
func (s *Slide) Advance(status SlideStatus) {
	if s.Status == SlideStatusFailed || status.rank() > s.Status.rank() {
		s.Status = status
		s.FailedStage = ""
		s.Error = ""
	}
	s.UpdatedAt = time.Now()
}

func (s *Slide) Fail(stage Stage, err error) {
	s.Status = SlideStatusFailed
	s.FailedStage = stage
	if err != nil {
		s.Error = err.Error()
	}
	s.UpdatedAt = time.Now()
}

// ResetTo invalidates stage and every later stage for this slide, then derives the
// status from what is left. Regenerating audio therefore always drops the clip.
func (s *Slide) ResetTo(stage Stage) {
	switch stage {
	case StageScript:
		s.GeneratedScript = ""
		s.EditedScript = ""
		fallthrough
	case StageAudio:
		s.Audio = nil
		fallthrough
	case StageClip:
		s.StyledImagePath = ""
		s.Clip = nil
	}
	s.Status = s.Reached()
	s.FailedStage = ""
	s.Error = ""
	s.UpdatedAt = time.Now()
}

func (s Slide) Clone() Slide {
	if s.Audio != nil {
		a := *s.Audio
		s.Audio = &a
	}
	if s.Clip != nil {
		c := *s.Clip
		s.Clip = &c
	}
	return s
}
