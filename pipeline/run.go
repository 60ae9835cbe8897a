package pipeline

import (
	"context"

	"SlideToVideo-server/models"
)

type RunOptions struct {
	TTS            *models.TTSParams
	UseTalkingHead bool
	Skip           []int
}

type RunResult struct {
	Reports  []models.StageReport
	Assembly *AssembleResult
}

// Run takes a presentation through every stage. Slides that fail along the way are
// reported and left out; the run only stops early when no clip is left to assemble
// or ctx ends.
func (p *Pipeline) Run(ctx context.Context, id string, opts RunOptions) (*RunResult, error) {
	res := &RunResult{}
	stages := []func() (*models.StageReport, error){
		func() (*models.StageReport, error) { return p.GenerateScripts(ctx, id, nil) },
		func() (*models.StageReport, error) { return p.GenerateAudio(ctx, id, nil, opts.TTS) },
		func() (*models.StageReport, error) { return p.ComposeClips(ctx, id, nil) },
	}
	for _, stage := range stages {
		report, err := stage()
		if report != nil {
			res.Reports = append(res.Reports, *report)
		}
		if err != nil {
			return res, err
		}
	}

	asm, err := p.Assemble(ctx, id, AssembleOptions{UseTalkingHead: opts.UseTalkingHead, Skip: opts.Skip})
	if asm != nil {
		res.Assembly = asm
		res.Reports = append(res.Reports, asm.Report)
	}
	return res, err
}
