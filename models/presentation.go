package models

import (
	"sort"
	"strings"
	"time"
)

// Stage names a unit of pipeline work. Per-slide stages can be regenerated.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageScript   Stage = "script"
	StageAudio    Stage = "audio"
	StageClip     Stage = "clip"
	StageAssemble Stage = "assemble"
	StageOverlay  Stage = "overlay"
)

// ParseSlideStage accepts the stages that can be regenerated for a single slide.
func ParseSlideStage(s string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(s))) {
	case StageScript:
		return StageScript, nil
	case StageAudio:
		return StageAudio, nil
	case StageClip, "video", "compose":
		return StageClip, nil
	}
	return "", ErrInvalidStage
}

// Presentation exclusively owns its slides and singleton artifacts.
type Presentation struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	SourcePath  string    `json:"sourcePath"`
	Type        string    `json:"type"`
	AvatarPath  string    `json:"avatarPath,omitempty"`
	MergedAudio *Artifact `json:"mergedAudio,omitempty"`
	FinalVideo  *Artifact `json:"finalVideo,omitempty"`
	// Excluded lists slide indices left out of assembly, either skipped explicitly by
	// the caller or because they had no finished clip.
	Excluded  []int     `json:"excluded,omitempty"`
	Slides    []Slide   `json:"slides"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Artifact is a presentation-scoped singleton: merged audio or the final video.
type Artifact struct {
	Path     string  `json:"path"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Overlaid bool    `json:"overlaid,omitempty"`
	Included []int   `json:"included,omitempty"`
}

func (p *Presentation) Slide(index int) *Slide {
	for i := range p.Slides {
		if p.Slides[i].Index == index {
			return &p.Slides[i]
		}
	}
	return nil
}

func (p *Presentation) IsExcluded(index int) bool {
	for _, i := range p.Excluded {
		if i == index {
			return true
		}
	}
	return false
}

// SetExcluded stores a sorted, de-duplicated copy of indices.
func (p *Presentation) SetExcluded(indices []int) {
	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if !seen[i] && p.Slide(i) != nil {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	if len(out) == 0 {
		out = nil
	}
	p.Excluded = out
}

// Include removes index from Excluded.
func (p *Presentation) Include(index int) {
	out := p.Excluded[:0:0]
	for _, i := range p.Excluded {
		if i != index {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	p.Excluded = out
}

// InvalidateOutputs drops the presentation-level artifacts derived from slide clips.
func (p *Presentation) InvalidateOutputs() {
	p.MergedAudio = nil
	p.FinalVideo = nil
}

// Clone returns a deep copy safe to hand out of a store.
func (p *Presentation) Clone() *Presentation {
	c := *p
	if p.MergedAudio != nil {
		a := *p.MergedAudio
		a.Included = append([]int(nil), p.MergedAudio.Included...)
		c.MergedAudio = &a
	}
	if p.FinalVideo != nil {
		v := *p.FinalVideo
		v.Included = append([]int(nil), p.FinalVideo.Included...)
		c.FinalVideo = &v
	}
	c.Excluded = append([]int(nil), p.Excluded...)
	c.Slides = make([]Slide, len(p.Slides))
	for i := range p.Slides {
		c.Slides[i] = p.Slides[i].Clone()
	}
	return &c
}
