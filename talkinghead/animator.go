// Package talkinghead drives an external lip-sync model (SadTalker and alike) that turns a
// portrait and a narration track into a speaking-head video.
package talkinghead

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/media"
	"SlideToVideo-server/models"
	"SlideToVideo-server/slot"

	"github.com/google/uuid"
)

type Animator interface {
	Available() bool
	Animate(ctx context.Context, portrait, audio, dest string) error
}

// CommandAnimator runs the model as a subprocess. Args may use {image}, {audio} and
// {result_dir}; --cpu is appended when UseCPU is set.
type CommandAnimator struct {
	Command   string
	Args      []string
	WorkDir   string
	ResultDir string
	UseCPU    bool
	Timeout   time.Duration
	Gate      *slot.Gate
	Runner    media.Runner
}

func (a *CommandAnimator) Available() bool {
	if a.Command == "" {
		return false
	}
	_, err := exec.LookPath(a.Command)
	return err == nil
}

func (a *CommandAnimator) Animate(ctx context.Context, portrait, audio, dest string) error {
	for _, p := range []string{portrait, audio} {
		if !artifact.Exists(p) {
			return fmt.Errorf("talking head input %s: %w", p, models.ErrMissingAsset)
		}
	}
	absImage, err := filepath.Abs(portrait)
	if err != nil {
		return err
	}
	absAudio, err := filepath.Abs(audio)
	if err != nil {
		return err
	}
	// A private result directory per run keeps concurrent runs from picking up each
	// other's output.
	runDir, err := filepath.Abs(filepath.Join(a.ResultDir, uuid.NewString()))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	defer os.RemoveAll(runDir)

	args := media.ExpandArgs(a.Args, map[string]string{
		"image":      absImage,
		"audio":      absAudio,
		"result_dir": runDir,
	})
	if a.UseCPU {
		args = append(args, "--cpu")
	}

	start := time.Now()
	err = a.Gate.Do(ctx, func(ctx context.Context) error {
		if a.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.Timeout)
			defer cancel()
		}
		logger.InfoCF("talkinghead", "inference started", map[string]any{"cpu": a.UseCPU})
		_, err := a.Runner.Run(ctx, a.WorkDir, a.Command, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("talking head inference: %w", err)
	}

	produced, err := NewestVideo(runDir)
	if err != nil {
		return err
	}
	if err := moveFile(ctx, produced, dest); err != nil {
		return err
	}
	logger.InfoCF("talkinghead", "inference finished", map[string]any{
		"elapsed": time.Since(start).String(),
		"output":  dest,
	})
	return nil
}

// NewestVideo returns the most recently modified .mp4 directly in dir or one level below.
func NewestVideo(dir string) (string, error) {
	var candidates []string
	for _, pattern := range []string{"*.mp4", filepath.Join("*", "*.mp4")} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		candidates = append(candidates, matches...)
	}
	var newest string
	var newestMod time.Time
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || info.Size() == 0 {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = c, info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("talking head produced no video in %s: %w", dir, models.ErrExternalProcess)
	}
	return newest, nil
}

func moveFile(ctx context.Context, src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	// different filesystem: copy through a temp sibling
	return artifact.Write(ctx, dest, func(tmp string) error {
		in, err := os.Open(src)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
