package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/assemble"
	"SlideToVideo-server/compose"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"
)

type AssembleOptions struct {
	UseTalkingHead bool
	// Skip leaves these slides out even when they have a clip.
	Skip []int
}

type AssembleResult struct {
	Report   models.StageReport
	Video    *models.Artifact
	Audio    *models.Artifact
	Overlaid bool
}

// Assemble concatenates every included clip into the final video, optionally with a
// talking head on top. At most one assembly runs per presentation at a time.
//
// Clips whose baked-in fades no longer fit their place in the sequence (a neighbour
// was skipped since they were composed) are composed again first. Zero usable clips
// is ErrNoValidClips and leaves the presentation untouched. When the talking head
// fails, the plain video is kept as the final output and the error is returned.
func (p *Pipeline) Assemble(ctx context.Context, id string, opts AssembleOptions) (*AssembleResult, error) {
	lock := p.assemblyLock(id)
	lock.Lock()
	defer lock.Unlock()

	if p.svc.Options.AssembleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.svc.Options.AssembleTimeout)
		defer cancel()
	}

	pres, err := p.svc.Store.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}
	skip := make(map[int]bool, len(opts.Skip))
	for _, i := range opts.Skip {
		skip[i] = true
	}

	report := models.StageReport{Stage: models.StageAssemble, Total: len(pres.Slides)}
	var candidates []assemble.Input
	for i := range pres.Slides {
		s := &pres.Slides[i]
		if skip[s.Index] {
			report.Skipped = append(report.Skipped, models.SkippedSlide{Index: s.Index, Kind: "Skipped", Reason: "skipped on request"})
			continue
		}
		candidates = append(candidates, assemble.Input{Index: s.Index, Clip: s.Clip})
	}

	included, dropped, err := p.alignFades(ctx, id, pres, candidates)
	if err != nil {
		return nil, err
	}
	report.Skipped = append(report.Skipped, dropped...)

	final := p.svc.Artifacts.Path(id, artifact.FinalVideo)
	base := final
	if opts.UseTalkingHead {
		base = p.svc.Artifacts.Path(id, artifact.BaseVideo)
	}
	asm, err := p.svc.Assembler.Assemble(ctx, included, base)
	if err != nil {
		return nil, &models.StageError{Stage: models.StageAssemble, Err: err}
	}
	report.Succeeded = asm.Included
	for _, s := range asm.Skipped {
		report.Skipped = append(report.Skipped, models.SkippedSlide{Index: s.Index, Kind: "MissingAsset", Reason: s.Reason})
	}
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Index < report.Skipped[j].Index })

	res := &AssembleResult{Report: report}
	video := &models.Artifact{Path: base, Duration: asm.Duration, Included: asm.Included}

	var overlayErr error
	if opts.UseTalkingHead {
		var audio *models.Artifact
		audio, overlayErr = p.overlay(ctx, pres, asm, base, final)
		res.Audio = audio
		if overlayErr == nil {
			video.Path = final
			video.Overlaid = true
			res.Overlaid = true
		} else {
			logger.WarnCF("pipeline", "talking head overlay failed, keeping plain video", map[string]any{
				"presentation": id,
				"error":        overlayErr.Error(),
			})
			overlayErr = &models.StageError{Stage: models.StageOverlay, Err: overlayErr}
		}
	}

	if video.URL, err = p.svc.Publisher.Publish(ctx, id, video.Path); err != nil {
		return nil, fmt.Errorf("publish video: %w", err)
	}
	res.Video = video

	excluded := append(report.SkippedIndices(), opts.Skip...)
	if _, err := p.svc.Store.UpdatePresentation(ctx, id, func(pr *models.Presentation) error {
		pr.SetExcluded(excluded)
		pr.FinalVideo = video
		if res.Audio != nil {
			pr.MergedAudio = res.Audio
		}
		return nil
	}); err != nil {
		return nil, err
	}

	stage := models.StageAssemble
	if res.Overlaid {
		stage = models.StageOverlay
	}
	p.emit(ctx, Event{PresentationID: id, Stage: stage, Status: "done",
		Message: fmt.Sprintf("assembled %d/%d slides", len(asm.Included), report.Total)})
	return res, overlayErr
}

// alignFades composes again every included clip whose fades disagree with its place in
// the final sequence. A clip that cannot be recomposed is dropped, which shifts the
// sequence, so the check repeats until it is stable.
func (p *Pipeline) alignFades(ctx context.Context, id string, pres *models.Presentation, candidates []assemble.Input) ([]assemble.Input, []models.SkippedSlide, error) {
	var dropped []models.SkippedSlide
	for {
		included, _ := assemble.Select(candidates)
		var mismatched []int
		for i, in := range included {
			if !fadesMatch(in.Clip, compose.PositionOf(i, len(included))) {
				mismatched = append(mismatched, in.Index)
			}
		}
		if len(mismatched) == 0 {
			return candidates, dropped, nil
		}

		positions := make(map[int]compose.Position, len(included))
		for i, in := range included {
			positions[in.Index] = compose.PositionOf(i, len(included))
		}
		logger.InfoCF("pipeline", "recomposing clips for new neighbours", map[string]any{
			"presentation": id,
			"slides":       mismatched,
		})
		want := func(s *models.Slide, _ bool) (bool, error) {
			if s.Audio == nil || !artifact.Exists(s.Audio.Path) {
				return false, fmt.Errorf("no audio: %w", models.ErrMissingAsset)
			}
			return true, nil
		}
		_, errs, err := p.runStageErrs(ctx, id, models.StageClip, mismatched, want, p.clipJob(id, positions))
		if err != nil {
			return nil, nil, err
		}
		fresh, err := p.svc.Store.GetPresentation(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		next := candidates[:0:0]
		for _, c := range candidates {
			if e, failed := errs[c.Index]; failed {
				dropped = append(dropped, models.SkippedSlide{Index: c.Index, Kind: models.Kind(e), Reason: "recompose failed: " + e.Error()})
				continue
			}
			if s := fresh.Slide(c.Index); s != nil {
				c.Clip = s.Clip
			}
			next = append(next, c)
		}
		candidates = next
		*pres = *fresh
	}
}

// overlay animates the avatar over the merged narration and lays it on base.
func (p *Pipeline) overlay(ctx context.Context, pres *models.Presentation, asm *assemble.Assembly, base, dest string) (*models.Artifact, error) {
	if pres.AvatarPath == "" || !artifact.Exists(pres.AvatarPath) {
		return nil, fmt.Errorf("no avatar uploaded: %w", models.ErrMissingAsset)
	}
	if p.svc.Animator == nil || !p.svc.Animator.Available() {
		return nil, errors.New("talking head model is not configured")
	}

	var tracks []string
	for _, idx := range asm.Included {
		if s := pres.Slide(idx); s != nil && s.Audio != nil {
			tracks = append(tracks, s.Audio.Path)
		}
	}
	mergedPath := p.svc.Artifacts.Path(pres.ID, artifact.MergedAudio)
	dur, err := p.svc.Assembler.MergeAudio(ctx, tracks, p.svc.Options.TrailingBuffer, mergedPath)
	if err != nil {
		return nil, err
	}
	merged := &models.Artifact{Path: mergedPath, Duration: dur, Included: asm.Included}
	if merged.URL, err = p.svc.Publisher.Publish(ctx, pres.ID, mergedPath); err != nil {
		return nil, err
	}

	head := p.svc.Artifacts.Path(pres.ID, artifact.TalkingHead)
	if err := p.svc.Animator.Animate(ctx, pres.AvatarPath, mergedPath, head); err != nil {
		return merged, fmt.Errorf("animate: %w", err)
	}
	if _, err := p.svc.Assembler.Overlay(ctx, base, head, dest, p.svc.Options.Overlay); err != nil {
		return merged, err
	}
	return merged, nil
}
