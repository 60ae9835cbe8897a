package talkinghead

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"SlideToVideo-server/models"
	"SlideToVideo-server/slot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	args    []string
	err     error
	produce bool
}

func (f *fakeModel) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	if !f.produce {
		return nil, nil
	}
	var resultDir string
	for i, a := range args {
		if a == "--result_dir" {
			resultDir = args[i+1]
		}
	}
	sub := filepath.Join(resultDir, "2024_01_01_00.00.00")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return nil, err
	}
	return nil, os.WriteFile(filepath.Join(sub, "portrait##audio.mp4"), []byte("video"), 0o644)
}

func inputs(t *testing.T) (dir, img, audio string) {
	dir = t.TempDir()
	img = filepath.Join(dir, "avatar.png")
	audio = filepath.Join(dir, "merged.wav")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(audio, []byte("wav"), 0o644))
	return
}

func newAnimator(dir string, r *fakeModel) *CommandAnimator {
	return &CommandAnimator{
		Command:   "python",
		Args:      []string{"inference.py", "--driven_audio", "{audio}", "--source_image", "{image}", "--result_dir", "{result_dir}", "--still", "--preprocess", "resize", "--batch_size", "1"},
		ResultDir: filepath.Join(dir, "results"),
		UseCPU:    true,
		Gate:      slot.NewGate(1),
		Runner:    r,
	}
}

func TestAnimateMovesNewestVideo(t *testing.T) {
	dir, img, audio := inputs(t)
	r := &fakeModel{produce: true}
	dest := filepath.Join(dir, "out", "talking_head.mp4")
	require.NoError(t, newAnimator(dir, r).Animate(context.Background(), img, audio, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
	assert.Equal(t, "--cpu", r.args[len(r.args)-1])
	assert.Contains(t, r.args, "--still")
	entries, _ := os.ReadDir(filepath.Join(dir, "results"))
	assert.Empty(t, entries, "run directory is cleaned up")
}

func TestAnimateProcessFailure(t *testing.T) {
	dir, img, audio := inputs(t)
	r := &fakeModel{err: &models.ProcessError{Name: "python", ExitCode: 1, Stderr: "CUDA out of memory"}}
	err := newAnimator(dir, r).Animate(context.Background(), img, audio, filepath.Join(dir, "o.mp4"))
	assert.ErrorIs(t, err, models.ErrExternalProcess)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestAnimateNoOutput(t *testing.T) {
	dir, img, audio := inputs(t)
	err := newAnimator(dir, &fakeModel{}).Animate(context.Background(), img, audio, filepath.Join(dir, "o.mp4"))
	assert.ErrorIs(t, err, models.ErrExternalProcess)
}

func TestAnimateMissingPortrait(t *testing.T) {
	dir, _, audio := inputs(t)
	err := newAnimator(dir, &fakeModel{}).Animate(context.Background(), filepath.Join(dir, "none.png"), audio, filepath.Join(dir, "o.mp4"))
	assert.ErrorIs(t, err, models.ErrMissingAsset)
}

func TestNewestVideo(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0o644))
	require.NoError(t, os.Chtimes(old, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run"), 0o755))
	fresh := filepath.Join(dir, "run", "new.mp4")
	require.NoError(t, os.WriteFile(fresh, []byte("b"), 0o644))

	got, err := NewestVideo(dir)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
}
