package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateIsMinimumOfIncludedSlides(t *testing.T) {
	p := &Presentation{Slides: []Slide{
		readySlide(1),
		{Index: 2, GeneratedScript: "x", Status: SlideStatusScripted},
		readySlide(3),
	}}
	prog := p.Aggregate()
	assert.Equal(t, PresentationScripted, prog.Stage)
	assert.False(t, prog.Partial)
	assert.Equal(t, "scripted", prog.String())
}

func TestAggregateExcludesSkippedSlides(t *testing.T) {
	p := &Presentation{Slides: []Slide{
		readySlide(1),
		{Index: 2, GeneratedScript: "x", Status: SlideStatusFailed, FailedStage: StageAudio},
		readySlide(3),
	}}
	p.SetExcluded([]int{2, 2, 9})
	assert.Equal(t, []int{2}, p.Excluded)

	prog := p.Aggregate()
	assert.Equal(t, PresentationClipsReady, prog.Stage)
	assert.True(t, prog.Partial)
	assert.Equal(t, []int{2}, prog.Failed)
	assert.Equal(t, 2, prog.Included)
	assert.Equal(t, "clips_ready(partial)", prog.String())
}

func TestAggregateFinalVideo(t *testing.T) {
	p := &Presentation{Slides: []Slide{readySlide(1)}}
	p.FinalVideo = &Artifact{Path: "final.mp4"}
	assert.Equal(t, PresentationAssembled, p.Aggregate().Stage)
	p.FinalVideo.Overlaid = true
	assert.Equal(t, PresentationOverlaid, p.Aggregate().Stage)
	p.InvalidateOutputs()
	assert.Equal(t, PresentationClipsReady, p.Aggregate().Stage)
}

func TestStageReportSummary(t *testing.T) {
	r := StageReport{Stage: StageAudio, Total: 9, Succeeded: []int{1, 2, 3, 4, 5, 6, 7},
		Skipped: []SkippedSlide{{Index: 8}, {Index: 9}}}
	assert.Equal(t, "generated audio for 7/9 slides", r.Summary())
	assert.Equal(t, []int{8, 9}, r.SkippedIndices())
}
