package compose

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/media"
	"SlideToVideo-server/models"

	"github.com/disintegration/imaging"
)

type Input struct {
	Index    int
	Image    string
	Audio    string
	Position Position
	// StyledDest receives the styled PNG, Dest the encoded clip.
	StyledDest string
	Dest       string
}

type Output struct {
	Clip        models.StyledClip
	StyledImage string
	Layout      Layout
}

type Composer struct {
	Styler  *Styler
	Encoder media.Encoder
	Prober  media.Prober
	Buffer  float64
	Fade    float64
}

func NewComposer(styler *Styler, enc media.Encoder, prober media.Prober, buffer, fade float64) *Composer {
	return &Composer{Styler: styler, Encoder: enc, Prober: prober, Buffer: buffer, Fade: fade}
}

func (c *Composer) PlanClip(audioDuration float64, pos Position) Plan {
	return PlanClip(audioDuration, pos, c.Buffer, c.Fade)
}

// Compose styles the slide image and encodes it with its narration. A missing or
// unreadable image or audio file is a MissingAsset error. A styling failure is not:
// the original image is used and the clip is marked degraded.
func (c *Composer) Compose(ctx context.Context, in Input) (*Output, error) {
	if err := checkImage(in.Image); err != nil {
		return nil, err
	}
	audioDur, err := c.Prober.Duration(ctx, in.Audio)
	if err != nil {
		return nil, fmt.Errorf("audio %s: %w: %w", filepath.Base(in.Audio), models.ErrMissingAsset, err)
	}

	out := &Output{StyledImage: in.Image}
	layout, err := c.style(ctx, in.Image, in.StyledDest)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WarnCF("compose", "styling failed, using original image", map[string]any{
			"slide": in.Index,
			"error": err.Error(),
		})
		out.Clip.Degraded = true
	} else {
		out.StyledImage = in.StyledDest
		out.Layout = layout
	}

	plan := c.PlanClip(audioDur, in.Position)
	spec := media.ClipSpec{
		Image:        out.StyledImage,
		Audio:        in.Audio,
		Duration:     plan.Duration,
		FadeIn:       plan.FadeIn,
		FadeOut:      plan.FadeOut,
		FadeDuration: plan.FadeDuration,
	}
	if err := artifact.Write(ctx, in.Dest, func(tmp string) error {
		return c.Encoder.EncodeClip(ctx, spec, tmp)
	}); err != nil {
		return nil, fmt.Errorf("encode slide %d: %w", in.Index, err)
	}

	out.Clip.Path = in.Dest
	out.Clip.Duration = plan.Duration
	out.Clip.AudioDuration = plan.AudioDuration
	out.Clip.FadeIn = plan.FadeIn
	out.Clip.FadeOut = plan.FadeOut
	out.Clip.FadeDuration = plan.FadeDuration
	return out, nil
}

func checkImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("image %s: %w", filepath.Base(path), models.ErrMissingAsset)
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("image %s undecodable: %w", filepath.Base(path), models.ErrMissingAsset)
	}
	return nil
}

func (c *Composer) style(ctx context.Context, src, dest string) (Layout, error) {
	if dest == "" {
		return "", fmt.Errorf("no styled destination")
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", err
	}
	res := c.Styler.Style(img)
	err = artifact.Write(ctx, dest, func(tmp string) error {
		return imaging.Save(res.Image, tmp)
	})
	return res.Layout, err
}
