// Package artifact lays out generated media on disk and writes it atomically.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Well-known file names inside a presentation directory.
const (
	ScriptFile   = "script.txt"
	AudioFile    = "audio.wav"
	StyledFile   = "styled.png"
	ClipFile     = "clip.mp4"
	MergedAudio  = "merged_audio.wav"
	BaseVideo    = "final_base.mp4"
	FinalVideo   = "final.mp4"
	TalkingHead  = "talking_head.mp4"
	SourceDir    = "source"
	PagesDir     = "pages"
	AvatarPrefix = "avatar"
)

// Store maps presentations and slides to paths under Root, and paths under Root to
// public URLs under BaseURL.
type Store struct {
	Root    string
	BaseURL string
}

func New(root, baseURL string) *Store {
	return &Store{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Store) PresentationDir(id string) string {
	return filepath.Join(s.Root, id)
}

func (s *Store) SlideDir(id string, index int) string {
	return filepath.Join(s.Root, id, fmt.Sprintf("slide_%03d", index))
}

// SlidePath returns e.g. <root>/<id>/slide_003/audio.wav.
func (s *Store) SlidePath(id string, index int, name string) string {
	return filepath.Join(s.SlideDir(id, index), name)
}

// Path returns a presentation-level path such as <root>/<id>/final.mp4.
func (s *Store) Path(id string, name ...string) string {
	return filepath.Join(append([]string{s.Root, id}, name...)...)
}

// URL maps a file under Root to its public URL. Paths outside Root are returned as-is.
func (s *Store) URL(p string) string {
	rel, err := filepath.Rel(s.Root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return s.BaseURL + "/" + path.Clean(filepath.ToSlash(rel))
}

// RemovePresentation deletes every artifact of a presentation.
func (s *Store) RemovePresentation(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid presentation id %q", id)
	}
	return os.RemoveAll(s.PresentationDir(id))
}

// TempPath returns a sibling of dest that keeps its extension, so tools that sniff the
// format from the name (ffmpeg) still work.
func TempPath(dest string) (string, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", dir, err)
	}
	ext := filepath.Ext(dest)
	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(dest), ext)+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", dest, err)
	}
	name := f.Name()
	f.Close()
	return name, nil
}

// Write runs fn against a temp sibling of dest and renames it into place when fn succeeds
// and ctx is still live. The temp file never survives an error. An existing dest is only
// replaced on success.
func Write(ctx context.Context, dest string, fn func(tmp string) error) error {
	tmp, err := TempPath(dest)
	if err != nil {
		return err
	}
	if err := fn(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return err
	}
	info, err := os.Stat(tmp)
	if err != nil || info.Size() == 0 {
		os.Remove(tmp)
		return fmt.Errorf("write %s: output is empty", filepath.Base(dest))
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into %s: %w", dest, err)
	}
	return nil
}

// WriteFile atomically stores data at dest.
func WriteFile(ctx context.Context, dest string, data []byte) error {
	return Write(ctx, dest, func(tmp string) error {
		return os.WriteFile(tmp, data, 0o644)
	})
}

// Exists reports whether p names a non-empty regular file.
func Exists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
