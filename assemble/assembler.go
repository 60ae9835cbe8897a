// Package assemble joins slide clips into one video and lays a talking head over it.
package assemble

import (
	"context"
	"fmt"
	"sort"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/media"
	"SlideToVideo-server/models"
)

// Input is one candidate clip. Clip is nil when the slide never got one.
type Input struct {
	Index int
	Clip  *models.StyledClip
}

type Skip struct {
	Index  int
	Reason string
}

type Assembly struct {
	Video    string
	Duration float64
	Included []int
	Skipped  []Skip
}

// Policy controls how a talking head is placed.
type Policy struct {
	Mode   string
	Scale  float64
	Margin int
}

type Assembler struct {
	Encoder media.Encoder
	Prober  media.Prober
}

func New(enc media.Encoder, prober media.Prober) *Assembler {
	return &Assembler{Encoder: enc, Prober: prober}
}

// Select orders clips by slide index and splits them into usable and skipped ones.
func Select(clips []Input) (included []Input, skipped []Skip) {
	sorted := append([]Input(nil), clips...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for _, c := range sorted {
		switch {
		case c.Clip == nil || c.Clip.Path == "":
			skipped = append(skipped, Skip{Index: c.Index, Reason: "no clip"})
		case !artifact.Exists(c.Clip.Path):
			skipped = append(skipped, Skip{Index: c.Index, Reason: "clip file missing"})
		default:
			included = append(included, c)
		}
	}
	return included, skipped
}

// Assemble concatenates the usable clips in slide order into dest. Each clip already
// carries its fades, so the joins are plain cuts.
func (a *Assembler) Assemble(ctx context.Context, clips []Input, dest string) (*Assembly, error) {
	included, skipped := Select(clips)
	for _, s := range skipped {
		logger.WarnCF("assemble", "skipping slide", map[string]any{"slide": s.Index, "reason": s.Reason})
	}
	if len(included) == 0 {
		return &Assembly{Skipped: skipped}, models.ErrNoValidClips
	}

	paths := make([]string, len(included))
	res := &Assembly{Video: dest, Skipped: skipped}
	for i, c := range included {
		paths[i] = c.Clip.Path
		res.Included = append(res.Included, c.Index)
		res.Duration += c.Clip.Duration
	}
	if err := artifact.Write(ctx, dest, func(tmp string) error {
		return a.Encoder.Concat(ctx, paths, tmp)
	}); err != nil {
		return nil, fmt.Errorf("concatenate %d clips: %w", len(paths), err)
	}
	if d, err := a.Prober.Duration(ctx, dest); err == nil {
		res.Duration = d
	}
	logger.InfoCF("assemble", "video assembled", map[string]any{
		"included": len(res.Included),
		"skipped":  len(res.Skipped),
		"duration": res.Duration,
	})
	return res, nil
}

// Overlay puts head on top of base. The result always has the base's duration: a
// shorter head simply disappears when it ends.
func (a *Assembler) Overlay(ctx context.Context, base, head, dest string, p Policy) (float64, error) {
	baseDur, err := a.Prober.Duration(ctx, base)
	if err != nil {
		return 0, fmt.Errorf("base video: %w", err)
	}
	if !artifact.Exists(head) {
		return 0, fmt.Errorf("talking head %s: %w", head, models.ErrMissingAsset)
	}
	spec := media.OverlaySpec{Base: base, Head: head, BaseDuration: baseDur, Mode: p.Mode, Scale: p.Scale, Margin: p.Margin}
	if err := artifact.Write(ctx, dest, func(tmp string) error {
		return a.Encoder.Overlay(ctx, spec, tmp)
	}); err != nil {
		return 0, fmt.Errorf("overlay: %w", err)
	}
	return baseDur, nil
}

// MergeAudio concatenates narration tracks, each followed by gap seconds of silence, so
// the merged track lines up with the clip timeline.
func (a *Assembler) MergeAudio(ctx context.Context, tracks []string, gap float64, dest string) (float64, error) {
	var segments []media.AudioSegment
	for _, t := range tracks {
		if !artifact.Exists(t) {
			continue
		}
		segments = append(segments, media.AudioSegment{Path: t, PadAfter: gap})
	}
	if len(segments) == 0 {
		return 0, fmt.Errorf("merge audio: %w", models.ErrMissingAsset)
	}
	if err := artifact.Write(ctx, dest, func(tmp string) error {
		return a.Encoder.ConcatAudio(ctx, segments, tmp)
	}); err != nil {
		return 0, fmt.Errorf("merge audio: %w", err)
	}
	return a.Prober.Duration(ctx, dest)
}
