package models

import "fmt"

// PresentationStage is the aggregate progress of a presentation.
type PresentationStage string

const (
	PresentationUploaded   PresentationStage = "uploaded"
	PresentationScripted   PresentationStage = "scripted"
	PresentationAudioReady PresentationStage = "audio_ready"
	PresentationClipsReady PresentationStage = "clips_ready"
	PresentationAssembled  PresentationStage = "assembled"
	PresentationOverlaid   PresentationStage = "overlaid"
)

var slideToPresentation = map[SlideStatus]PresentationStage{
	SlideStatusPending:    PresentationUploaded,
	SlideStatusScripted:   PresentationScripted,
	SlideStatusAudioReady: PresentationAudioReady,
	SlideStatusClipReady:  PresentationClipsReady,
}

// Progress describes how far a presentation got. Partial means some slides are excluded
// from the aggregate because they were skipped during assembly.
type Progress struct {
	Stage    PresentationStage `json:"stage"`
	Partial  bool              `json:"partial"`
	Total    int               `json:"total"`
	Included int               `json:"included"`
	Excluded []int             `json:"excluded,omitempty"`
	Failed   []int             `json:"failed,omitempty"`
}

func (p Progress) String() string {
	if p.Partial {
		return fmt.Sprintf("%s(partial)", p.Stage)
	}
	return string(p.Stage)
}

// Aggregate derives the presentation stage: the minimum stage reached by every slide
// that was not excluded, raised to assembled/overlaid once a final video exists.
func (p *Presentation) Aggregate() Progress {
	prog := Progress{
		Stage:    PresentationUploaded,
		Total:    len(p.Slides),
		Excluded: append([]int(nil), p.Excluded...),
		Partial:  len(p.Excluded) > 0,
	}
	minRank := -1
	for i := range p.Slides {
		s := &p.Slides[i]
		if s.Status == SlideStatusFailed {
			prog.Failed = append(prog.Failed, s.Index)
		}
		if p.IsExcluded(s.Index) {
			continue
		}
		prog.Included++
		r := s.Reached().rank()
		if minRank < 0 || r < minRank {
			minRank = r
		}
	}
	if minRank < 0 {
		return prog
	}
	for status, stage := range slideToPresentation {
		if status.rank() == minRank {
			prog.Stage = stage
		}
	}
	if p.FinalVideo != nil {
		prog.Stage = PresentationAssembled
		if p.FinalVideo.Overlaid {
			prog.Stage = PresentationOverlaid
		}
	}
	return prog
}
