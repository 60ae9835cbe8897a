package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	s := New("/data/static", "/static/")
	assert.Equal(t, filepath.Join("/data/static", "p1", "slide_007", "audio.wav"), s.SlidePath("p1", 7, AudioFile))
	assert.Equal(t, filepath.Join("/data/static", "p1", "final.mp4"), s.Path("p1", FinalVideo))
	assert.Equal(t, "/static/p1/slide_007/audio.wav", s.URL(s.SlidePath("p1", 7, AudioFile)))
	assert.Equal(t, "/elsewhere/x.mp4", s.URL("/elsewhere/x.mp4"))
}

func listDir(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteRenamesOnSuccess(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "p", "slide_001", "audio.wav")
	require.NoError(t, WriteFile(context.Background(), dest, []byte("RIFF")))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
	assert.Equal(t, []string{"audio.wav"}, listDir(t, filepath.Dir(dest)))
}

func TestWriteCleansUpOnError(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	err := Write(context.Background(), dest, func(tmp string) error {
		assert.Equal(t, ".mp4", filepath.Ext(tmp))
		require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o644))
		return errors.New("encoder crashed")
	})
	require.Error(t, err)
	data, _ := os.ReadFile(dest)
	assert.Equal(t, "old", string(data))
	assert.Equal(t, []string{"clip.mp4"}, listDir(t, dir))
}

func TestWriteCleansUpOnCancel(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "clip.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	err := Write(ctx, dest, func(tmp string) error {
		cancel()
		return os.WriteFile(tmp, []byte("data"), 0o644)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, listDir(t, dir))
}

func TestWriteRejectsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	err := Write(context.Background(), filepath.Join(dir, "a.wav"), func(string) error { return nil })
	assert.Error(t, err)
	assert.Empty(t, listDir(t, dir))
}

func TestRemovePresentation(t *testing.T) {
	s := New(t.TempDir(), "/static")
	require.NoError(t, WriteFile(context.Background(), s.SlidePath("p1", 1, AudioFile), []byte("x")))
	require.NoError(t, s.RemovePresentation("p1"))
	assert.False(t, Exists(s.SlidePath("p1", 1, AudioFile)))
	assert.Error(t, s.RemovePresentation("../etc"))
}
