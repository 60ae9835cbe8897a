package models

import "fmt"

// SkippedSlide records why a slide did not complete a stage.
type SkippedSlide struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// StageReport is the outcome of a batch stage over a presentation.
type StageReport struct {
	Stage     Stage          `json:"stage"`
	Total     int            `json:"total"`
	Succeeded []int          `json:"succeeded"`
	Skipped   []SkippedSlide `json:"skipped,omitempty"`
}

func (r *StageReport) SkippedIndices() []int {
	out := make([]int, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		out = append(out, s.Index)
	}
	return out
}

var stageVerbs = map[Stage]string{
	StageScript:   "generated scripts",
	StageAudio:    "generated audio",
	StageClip:     "composed clips",
	StageAssemble: "assembled",
	StageOverlay:  "overlaid",
}

// Summary renders e.g. "generated audio for 7/9 slides".
func (r *StageReport) Summary() string {
	verb, ok := stageVerbs[r.Stage]
	if !ok {
		verb = string(r.Stage)
	}
	return fmt.Sprintf("%s for %d/%d slides", verb, len(r.Succeeded), r.Total)
}
