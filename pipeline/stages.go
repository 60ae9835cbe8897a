package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/compose"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"
	"SlideToVideo-server/tts"

	"golang.org/x/sync/errgroup"
)

// slideJob does the slow part of a stage for one slide, outside any store lock, and
// returns the mutation that records its result. The mutation runs under the slide lock
// and returns models.ErrStale when the inputs the job consumed have since changed.
type slideJob func(ctx context.Context, s models.Slide) (func(s *models.Slide) error, error)

// gate decides whether a slide takes part in a stage. run=false with a nil error means
// the slide already has a current artifact; an error means a prerequisite is missing.
type gate func(s *models.Slide, explicit bool) (run bool, err error)

// runStage fans job out over the selected slides. An explicit index list forces the
// stage to rerun for those slides; otherwise only slides missing the artifact run.
// A failing slide is marked failed and reported; it never stops its siblings. The
// returned error is only set when ctx ends or the store fails.
func (p *Pipeline) runStage(ctx context.Context, id string, stage models.Stage, indices []int, want gate, job slideJob) (*models.StageReport, error) {
	report, _, err := p.runStageErrs(ctx, id, stage, indices, want, job)
	return report, err
}

// runStageErrs is runStage that also hands back each skipped slide's error.
func (p *Pipeline) runStageErrs(ctx context.Context, id string, stage models.Stage, indices []int, want gate, job slideJob) (*models.StageReport, map[int]error, error) {
	pres, err := p.svc.Store.GetPresentation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	targets, err := selectSlides(pres, indices)
	if err != nil {
		return nil, nil, err
	}

	report := &models.StageReport{Stage: stage, Total: len(targets)}
	errs := make(map[int]error)
	var (
		mu      sync.Mutex
		done    int
		changed int
	)
	record := func(index int, err error, ran bool) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			errs[index] = err
			reason := err
			var serr *models.StageError
			if errors.As(err, &serr) {
				reason = serr.Err
			}
			report.Skipped = append(report.Skipped, models.SkippedSlide{Index: index, Kind: models.Kind(err), Reason: reason.Error()})
		} else {
			report.Succeeded = append(report.Succeeded, index)
			if ran {
				changed++
			}
		}
		reportProgress(ctx, stage, done, len(targets))
	}

	g := new(errgroup.Group)
	g.SetLimit(p.svc.Options.Workers)
	for _, s := range targets {
		run, err := want(&s, len(indices) > 0)
		if err != nil || !run {
			record(s.Index, err, false)
			continue
		}
		if ctx.Err() != nil {
			record(s.Index, ctx.Err(), false)
			continue
		}
		g.Go(func() error {
			record(s.Index, p.runSlide(ctx, id, stage, s, job), true)
			return nil
		})
	}
	_ = g.Wait()

	sort.Ints(report.Succeeded)
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Index < report.Skipped[j].Index })

	if changed > 0 {
		if _, err := p.svc.Store.UpdatePresentation(context.WithoutCancel(ctx), id, func(pr *models.Presentation) error {
			pr.InvalidateOutputs()
			return nil
		}); err != nil {
			return report, errs, err
		}
	}
	logger.InfoCF("pipeline", report.Summary(), map[string]any{
		"presentation": id,
		"stage":        stage,
		"skipped":      report.SkippedIndices(),
	})
	p.emit(ctx, Event{PresentationID: id, Stage: stage, Status: "done", Message: report.Summary()})
	return report, errs, ctx.Err()
}

func (p *Pipeline) runSlide(ctx context.Context, id string, stage models.Stage, s models.Slide, job slideJob) error {
	sctx := ctx
	if p.svc.Options.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.svc.Options.StageTimeout)
		defer cancel()
	}
	apply, err := job(sctx, s)
	if err == nil {
		_, err = p.svc.Store.UpdateSlide(ctx, id, s.Index, apply)
		if err == nil {
			p.emit(ctx, Event{PresentationID: id, Stage: stage, SlideIndex: s.Index, Status: "done"})
			return nil
		}
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("timed out after %s: %w", p.svc.Options.StageTimeout, err)
	}
	serr := &models.StageError{Stage: stage, Index: s.Index, Err: err}
	if errors.Is(err, models.ErrStale) {
		// The slide was edited or regenerated meanwhile; its newer state stands.
		logger.InfoCF("pipeline", "dropped stale result", map[string]any{
			"presentation": id,
			"stage":        stage,
			"slide":        s.Index,
		})
		return serr
	}
	logger.WarnCF("pipeline", "slide failed", map[string]any{
		"presentation": id,
		"stage":        stage,
		"slide":        s.Index,
		"kind":         models.Kind(err),
		"error":        err.Error(),
	})
	// A cancelled run leaves the slide where it was; anything else marks it for retry.
	if ctx.Err() == nil {
		if _, uerr := p.svc.Store.UpdateSlide(ctx, id, s.Index, func(sl *models.Slide) error {
			sl.Fail(stage, err)
			return nil
		}); uerr != nil {
			logger.ErrorCF("pipeline", "record failure", map[string]any{"slide": s.Index, "error": uerr.Error()})
		}
	}
	p.emit(ctx, Event{PresentationID: id, Stage: stage, SlideIndex: s.Index, Status: "failed", Message: serr.Error()})
	return serr
}

func selectSlides(pres *models.Presentation, indices []int) ([]models.Slide, error) {
	if len(indices) == 0 {
		return pres.Slides, nil
	}
	seen := make(map[int]bool, len(indices))
	var out []models.Slide
	for _, i := range indices {
		if seen[i] {
			continue
		}
		seen[i] = true
		s := pres.Slide(i)
		if s == nil {
			return nil, fmt.Errorf("slide %d: %w", i, models.ErrNotFound)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out, nil
}

// GenerateScripts writes narration for slides that have none yet, or for indices.
func (p *Pipeline) GenerateScripts(ctx context.Context, id string, indices []int) (*models.StageReport, error) {
	return p.runStage(ctx, id, models.StageScript, indices, needsScript, p.scriptJob(id, "", nil))
}

func needsScript(s *models.Slide, explicit bool) (bool, error) {
	if strings.TrimSpace(s.Content) == "" && strings.TrimSpace(s.Notes) == "" {
		return false, fmt.Errorf("slide has no text: %w", models.ErrEmptyInput)
	}
	return explicit || strings.TrimSpace(s.Script()) == "", nil
}

// scriptJob generates a fresh script, or rewrites previous[index] when feedback is given.
func (p *Pipeline) scriptJob(id, feedback string, previous map[int]string) slideJob {
	return func(ctx context.Context, s models.Slide) (func(*models.Slide) error, error) {
		text := s.Content
		if notes := strings.TrimSpace(s.Notes); notes != "" {
			text = strings.TrimSpace(text + "\n\nSpeaker notes: " + notes)
		}
		var (
			script string
			err    error
		)
		if prev := previous[s.Index]; feedback != "" && strings.TrimSpace(prev) != "" {
			script, err = p.svc.Scripts.Regenerate(ctx, text, prev, feedback)
		} else {
			script, err = p.svc.Scripts.Generate(ctx, text, p.svc.Options.ScriptLanguage)
		}
		if err != nil {
			return nil, err
		}
		if err := artifact.WriteFile(ctx, p.svc.Artifacts.SlidePath(id, s.Index, artifact.ScriptFile), []byte(script)); err != nil {
			return nil, err
		}
		path := p.svc.Artifacts.SlidePath(id, s.Index, artifact.ScriptFile)
		consumed := s.Script()
		return func(sl *models.Slide) error {
			if sl.Script() != consumed {
				return discardStale(path, sl.GeneratedScript != "")
			}
			sl.ResetTo(models.StageScript)
			sl.GeneratedScript = script
			sl.Advance(models.SlideStatusScripted)
			return nil
		}, nil
	}
}

// GenerateAudio narrates every scripted slide lacking audio, or indices.
func (p *Pipeline) GenerateAudio(ctx context.Context, id string, indices []int, params *models.TTSParams) (*models.StageReport, error) {
	return p.runStage(ctx, id, models.StageAudio, indices, needsAudio, p.audioJob(id, p.hints(params)))
}

func needsAudio(s *models.Slide, explicit bool) (bool, error) {
	if strings.TrimSpace(s.Script()) == "" {
		return false, fmt.Errorf("no script to narrate: %w", models.ErrEmptyInput)
	}
	return explicit || s.Audio == nil || !artifact.Exists(s.Audio.Path), nil
}

func (p *Pipeline) hints(params *models.TTSParams) tts.Hints {
	h := tts.Hints{ForceFallback: p.svc.Options.ForceFallback}
	if params != nil {
		h.Voice = params.Voice
		h.CloneRef = params.CloneRef
		h.ForceFallback = h.ForceFallback || params.ForceFallback
	}
	return h
}

func (p *Pipeline) audioJob(id string, hints tts.Hints) slideJob {
	return func(ctx context.Context, s models.Slide) (func(*models.Slide) error, error) {
		dest := p.svc.Artifacts.SlidePath(id, s.Index, artifact.AudioFile)
		res, err := p.svc.Speech.Synthesize(ctx, s.Script(), dest, hints)
		if err != nil {
			return nil, err
		}
		asset := &models.AudioAsset{Path: res.Path, Duration: res.Duration, Language: res.Language, Engine: res.Engine}
		narrated := s.Script()
		return func(sl *models.Slide) error {
			if sl.Script() != narrated {
				return discardStale(asset.Path, sl.Audio != nil && sl.Audio.Path == asset.Path)
			}
			sl.ResetTo(models.StageAudio)
			sl.Audio = asset
			sl.Advance(models.SlideStatusAudioReady)
			return nil
		}, nil
	}
}

// ComposeClips renders clips for slides with audio. Positions are taken from the
// sequence the clips are expected to be assembled in: every non-excluded slide that
// has audio, in index order.
func (p *Pipeline) ComposeClips(ctx context.Context, id string, indices []int) (*models.StageReport, error) {
	report, _, err := p.composeClips(ctx, id, indices)
	return report, err
}

func (p *Pipeline) composeClips(ctx context.Context, id string, indices []int) (*models.StageReport, map[int]error, error) {
	pres, err := p.svc.Store.GetPresentation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	positions := expectedPositions(pres)
	want := func(s *models.Slide, explicit bool) (bool, error) {
		if s.Audio == nil || !artifact.Exists(s.Audio.Path) {
			return false, fmt.Errorf("no audio: %w", models.ErrMissingAsset)
		}
		if s.ImagePath == "" {
			return false, fmt.Errorf("no slide image: %w", models.ErrMissingAsset)
		}
		if explicit || s.Clip == nil || !artifact.Exists(s.Clip.Path) {
			return true, nil
		}
		pos, ok := positions[s.Index]
		return ok && !fadesMatch(s.Clip, pos), nil
	}
	return p.runStageErrs(ctx, id, models.StageClip, indices, want, p.clipJob(id, positions))
}

func expectedPositions(pres *models.Presentation) map[int]compose.Position {
	var seq []int
	for _, s := range pres.Slides {
		if s.Audio != nil && !pres.IsExcluded(s.Index) {
			seq = append(seq, s.Index)
		}
	}
	sort.Ints(seq)
	out := make(map[int]compose.Position, len(seq))
	for i, idx := range seq {
		out[idx] = compose.PositionOf(i, len(seq))
	}
	return out
}

func fadesMatch(c *models.StyledClip, pos compose.Position) bool {
	return c.FadeIn == !pos.IsFirst && c.FadeOut == !pos.IsLast
}

func (p *Pipeline) clipJob(id string, positions map[int]compose.Position) slideJob {
	return func(ctx context.Context, s models.Slide) (func(*models.Slide) error, error) {
		pos, ok := positions[s.Index]
		if !ok {
			// An excluded slide composed on request is treated as a standalone clip.
			pos = compose.PositionOf(0, 1)
		}
		out, err := p.svc.Composer.Compose(ctx, compose.Input{
			Index:      s.Index,
			Image:      s.ImagePath,
			Audio:      s.Audio.Path,
			Position:   pos,
			StyledDest: p.svc.Artifacts.SlidePath(id, s.Index, artifact.StyledFile),
			Dest:       p.svc.Artifacts.SlidePath(id, s.Index, artifact.ClipFile),
		})
		if err != nil {
			return nil, err
		}
		clip := out.Clip
		styled := out.StyledImage
		audio := *s.Audio
		return func(sl *models.Slide) error {
			if sl.Audio == nil || sl.Audio.Path != audio.Path || sl.Audio.Duration != audio.Duration {
				return discardStale(clip.Path, sl.Clip != nil && sl.Clip.Path == clip.Path)
			}
			sl.ResetTo(models.StageClip)
			sl.StyledImagePath = styled
			sl.Clip = &clip
			sl.Advance(models.SlideStatusClipReady)
			return nil
		}, nil
	}
}

// discardStale removes the file a stale job wrote unless the slide now references it.
func discardStale(path string, referenced bool) error {
	if !referenced {
		_ = os.Remove(path)
	}
	return fmt.Errorf("inputs changed while running: %w", models.ErrStale)
}
