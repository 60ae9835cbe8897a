package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SlideToVideo-server/models"
)

// RegenerateOptions steer a single-slide rerun.
type RegenerateOptions struct {
	// Feedback asks the script generator to rewrite the current script.
	Feedback string
	TTS      *models.TTSParams
}

// EditScript stores the user's script. The slide's audio and clip no longer match it,
// so they are dropped along with the presentation outputs. A blank text clears the
// edit and falls back to the generated script.
func (p *Pipeline) EditScript(ctx context.Context, id string, index int, text string) (*models.Slide, error) {
	if _, err := p.svc.Store.GetPresentation(ctx, id); err != nil {
		return nil, err
	}
	s, err := p.svc.Store.UpdateSlide(ctx, id, index, func(s *models.Slide) error {
		s.ResetTo(models.StageAudio)
		s.EditedScript = text
		s.Status = s.Reached()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := p.invalidate(ctx, id, index); err != nil {
		return nil, err
	}
	return s, nil
}

// EnhanceScript asks the generator to rework the slide's current script following
// instruction and stores the result as the user's edit, with the same resets as EditScript.
func (p *Pipeline) EnhanceScript(ctx context.Context, id string, index int, instruction string) (*models.Slide, error) {
	current, err := p.SlideStatus(ctx, id, index)
	if err != nil {
		return nil, err
	}
	script := current.Script()
	if strings.TrimSpace(script) == "" {
		return nil, &models.StageError{Stage: models.StageScript, Index: index,
			Err: fmt.Errorf("no script to enhance: %w", models.ErrEmptyInput)}
	}
	sctx := ctx
	if p.svc.Options.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.svc.Options.StageTimeout)
		defer cancel()
	}
	enhanced, err := p.svc.Scripts.Enhance(sctx, script, instruction)
	if err != nil {
		return nil, &models.StageError{Stage: models.StageScript, Index: index, Err: err}
	}
	s, err := p.svc.Store.UpdateSlide(ctx, id, index, func(s *models.Slide) error {
		if s.Script() != script {
			return &models.StageError{Stage: models.StageScript, Index: index,
				Err: fmt.Errorf("script changed while enhancing: %w", models.ErrStale)}
		}
		s.ResetTo(models.StageAudio)
		s.EditedScript = enhanced
		s.Status = s.Reached()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := p.invalidate(ctx, id, index); err != nil {
		return nil, err
	}
	p.emit(ctx, Event{PresentationID: id, Stage: models.StageScript, SlideIndex: index, Status: "enhanced"})
	return s, nil
}

// Regenerate reruns one stage for one slide. The slide is first reset to that stage,
// which clears the stage's artifact and every later one, so regenerating audio always
// drops the clip. The presentation's merged audio and final video are cleared too.
func (p *Pipeline) Regenerate(ctx context.Context, id string, index int, stage models.Stage, opts RegenerateOptions) (*models.Slide, error) {
	switch stage {
	case models.StageScript, models.StageAudio, models.StageClip:
	default:
		return nil, fmt.Errorf("%q: %w", stage, models.ErrInvalidStage)
	}
	var previous string
	if _, err := p.svc.Store.UpdateSlide(ctx, id, index, func(s *models.Slide) error {
		previous = s.Script()
		s.ResetTo(stage)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := p.invalidate(ctx, id, index); err != nil {
		return nil, err
	}

	var (
		errs map[int]error
		err  error
	)
	indices := []int{index}
	switch stage {
	case models.StageScript:
		_, errs, err = p.runStageErrs(ctx, id, stage, indices, needsScript,
			p.scriptJob(id, opts.Feedback, map[int]string{index: previous}))
	case models.StageAudio:
		_, errs, err = p.runStageErrs(ctx, id, stage, indices, needsAudio, p.audioJob(id, p.hints(opts.TTS)))
	case models.StageClip:
		_, errs, err = p.composeClips(ctx, id, indices)
	}
	if err != nil {
		return nil, err
	}
	if serr := errs[index]; serr != nil {
		var stageErr *models.StageError
		if !errors.As(serr, &stageErr) {
			serr = &models.StageError{Stage: stage, Index: index, Err: serr}
		}
		return nil, serr
	}

	pres, err := p.svc.Store.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}
	return pres.Slide(index), nil
}

// invalidate drops the presentation outputs and takes index back into the sequence:
// a slide the caller reworks is meant to appear in the next assembly.
func (p *Pipeline) invalidate(ctx context.Context, id string, index int) error {
	_, err := p.svc.Store.UpdatePresentation(ctx, id, func(pr *models.Presentation) error {
		pr.InvalidateOutputs()
		pr.Include(index)
		return nil
	})
	return err
}
