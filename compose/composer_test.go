package compose

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"SlideToVideo-server/media"
	"SlideToVideo-server/models"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	specs []media.ClipSpec
	err   error
}

func (f *fakeEncoder) EncodeClip(ctx context.Context, spec media.ClipSpec, dest string) error {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("mp4"), 0o644)
}

func (f *fakeEncoder) Concat(context.Context, []string, string) error            { return nil }
func (f *fakeEncoder) Overlay(context.Context, media.OverlaySpec, string) error  { return nil }
func (f *fakeEncoder) ConcatAudio(context.Context, []media.AudioSegment, string) error { return nil }

type wavProber struct{}

func (wavProber) Duration(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, models.ErrMissingAsset
	}
	return media.WAVDuration(path)
}

func fixtures(t *testing.T) (dir, img, audio string) {
	dir = t.TempDir()
	img = filepath.Join(dir, "slide.png")
	require.NoError(t, imaging.Save(imaging.New(100, 100, color.NRGBA{B: 255, A: 255}), img))
	audio = filepath.Join(dir, "audio.wav")
	require.NoError(t, media.WriteSilenceFile(audio, 2, 8000))
	return dir, img, audio
}

func newTestComposer(enc media.Encoder) *Composer {
	return NewComposer(NewStyler(160, 90), enc, wavProber{}, 5, 0.5)
}

func TestComposeProducesClip(t *testing.T) {
	dir, img, audio := fixtures(t)
	enc := &fakeEncoder{}
	out, err := newTestComposer(enc).Compose(context.Background(), Input{
		Index: 2, Image: img, Audio: audio, Position: PositionOf(1, 3),
		StyledDest: filepath.Join(dir, "styled.png"), Dest: filepath.Join(dir, "clip.mp4"),
	})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, out.Clip.Duration, 0.01)
	assert.InDelta(t, 2.0, out.Clip.AudioDuration, 0.01)
	assert.True(t, out.Clip.FadeIn)
	assert.True(t, out.Clip.FadeOut)
	assert.False(t, out.Clip.Degraded)
	assert.Equal(t, LayoutLetterboxed, out.Layout)
	assert.FileExists(t, filepath.Join(dir, "styled.png"))
	assert.FileExists(t, filepath.Join(dir, "clip.mp4"))
	require.Len(t, enc.specs, 1)
	assert.Equal(t, filepath.Join(dir, "styled.png"), enc.specs[0].Image)
}

func TestComposeMissingAudio(t *testing.T) {
	dir, img, _ := fixtures(t)
	_, err := newTestComposer(&fakeEncoder{}).Compose(context.Background(), Input{
		Image: img, Audio: filepath.Join(dir, "nope.wav"),
		StyledDest: filepath.Join(dir, "styled.png"), Dest: filepath.Join(dir, "clip.mp4"),
	})
	assert.ErrorIs(t, err, models.ErrMissingAsset)
}

func TestComposeUndecodableImage(t *testing.T) {
	dir, _, audio := fixtures(t)
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err := newTestComposer(&fakeEncoder{}).Compose(context.Background(), Input{
		Image: bad, Audio: audio, StyledDest: filepath.Join(dir, "styled.png"), Dest: filepath.Join(dir, "clip.mp4"),
	})
	assert.ErrorIs(t, err, models.ErrMissingAsset)
}

func TestComposeDegradesWhenStylingFails(t *testing.T) {
	dir, img, audio := fixtures(t)
	enc := &fakeEncoder{}
	// no styled destination: styling cannot be written
	out, err := newTestComposer(enc).Compose(context.Background(), Input{
		Image: img, Audio: audio, Position: PositionOf(0, 1), Dest: filepath.Join(dir, "clip.mp4"),
	})
	require.NoError(t, err)
	assert.True(t, out.Clip.Degraded)
	assert.Equal(t, img, out.StyledImage)
	assert.Equal(t, img, enc.specs[0].Image)
}

func TestComposeEncoderFailureLeavesNoClip(t *testing.T) {
	dir, img, audio := fixtures(t)
	enc := &fakeEncoder{err: &models.ProcessError{Name: "ffmpeg", ExitCode: 1, Err: errors.New("exit 1")}}
	_, err := newTestComposer(enc).Compose(context.Background(), Input{
		Image: img, Audio: audio, StyledDest: filepath.Join(dir, "styled.png"), Dest: filepath.Join(dir, "clip.mp4"),
	})
	assert.ErrorIs(t, err, models.ErrExternalProcess)
	assert.NoFileExists(t, filepath.Join(dir, "clip.mp4"))
}
