package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"SlideToVideo-server/media"
	"SlideToVideo-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Media files in these tests contain their duration as text.
type textProber struct{}

func (textProber) Duration(ctx context.Context, path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, models.ErrMissingAsset
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}

type fakeEncoder struct {
	concatInputs []string
	overlay      media.OverlaySpec
	segments     []media.AudioSegment
}

func (f *fakeEncoder) EncodeClip(context.Context, media.ClipSpec, string) error { return nil }

func (f *fakeEncoder) Concat(ctx context.Context, clips []string, dest string) error {
	f.concatInputs = clips
	total := 0.0
	for _, c := range clips {
		d, _ := textProber{}.Duration(ctx, c)
		total += d
	}
	return os.WriteFile(dest, []byte(fmt.Sprint(total)), 0o644)
}

func (f *fakeEncoder) Overlay(ctx context.Context, spec media.OverlaySpec, dest string) error {
	f.overlay = spec
	return os.WriteFile(dest, []byte(fmt.Sprint(spec.BaseDuration)), 0o644)
}

func (f *fakeEncoder) ConcatAudio(ctx context.Context, segments []media.AudioSegment, dest string) error {
	f.segments = segments
	total := 0.0
	for _, s := range segments {
		d, _ := textProber{}.Duration(ctx, s.Path)
		total += d + s.PadAfter
	}
	return os.WriteFile(dest, []byte(fmt.Sprint(total)), 0o644)
}

func writeMedia(t *testing.T, dir, name string, seconds float64) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(fmt.Sprint(seconds)), 0o644))
	return p
}

func TestAssembleOrdersAndSkips(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{}
	a := New(enc, textProber{})
	clips := []Input{
		{Index: 3, Clip: &models.StyledClip{Path: writeMedia(t, dir, "3.mp4", 8), Duration: 8}},
		{Index: 1, Clip: &models.StyledClip{Path: writeMedia(t, dir, "1.mp4", 7), Duration: 7}},
		{Index: 2},
		{Index: 4, Clip: &models.StyledClip{Path: filepath.Join(dir, "gone.mp4"), Duration: 9}},
	}
	res, err := a.Assemble(context.Background(), clips, filepath.Join(dir, "final.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, res.Included)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 2, res.Skipped[0].Index)
	assert.Equal(t, 4, res.Skipped[1].Index)
	assert.Equal(t, []string{filepath.Join(dir, "1.mp4"), filepath.Join(dir, "3.mp4")}, enc.concatInputs)
	assert.Equal(t, 15.0, res.Duration)
}

func TestAssembleNoValidClips(t *testing.T) {
	dir := t.TempDir()
	res, err := New(&fakeEncoder{}, textProber{}).Assemble(context.Background(), []Input{{Index: 1}, {Index: 2}}, filepath.Join(dir, "final.mp4"))
	assert.ErrorIs(t, err, models.ErrNoValidClips)
	assert.Len(t, res.Skipped, 2)
	assert.NoFileExists(t, filepath.Join(dir, "final.mp4"))
}

func TestOverlayKeepsBaseDuration(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{}
	base := writeMedia(t, dir, "base.mp4", 60)
	head := writeMedia(t, dir, "head.mp4", 42)
	dest := filepath.Join(dir, "final.mp4")

	d, err := New(enc, textProber{}).Overlay(context.Background(), base, head, dest, Policy{Mode: "pip", Scale: 0.25, Margin: 16})
	require.NoError(t, err)
	assert.Equal(t, 60.0, d)
	assert.Equal(t, 60.0, enc.overlay.BaseDuration)
	got, _ := textProber{}.Duration(context.Background(), dest)
	assert.Equal(t, 60.0, got)
}

func TestOverlayMissingHead(t *testing.T) {
	dir := t.TempDir()
	base := writeMedia(t, dir, "base.mp4", 60)
	_, err := New(&fakeEncoder{}, textProber{}).Overlay(context.Background(), base, filepath.Join(dir, "none.mp4"), filepath.Join(dir, "o.mp4"), Policy{})
	assert.ErrorIs(t, err, models.ErrMissingAsset)
}

func TestMergeAudioPadsEachTrack(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{}
	tracks := []string{writeMedia(t, dir, "1.wav", 2), filepath.Join(dir, "missing.wav"), writeMedia(t, dir, "3.wav", 3)}
	d, err := New(enc, textProber{}).MergeAudio(context.Background(), tracks, 5, filepath.Join(dir, "merged.wav"))
	require.NoError(t, err)
	assert.Equal(t, 15.0, d)
	assert.Len(t, enc.segments, 2)
}
