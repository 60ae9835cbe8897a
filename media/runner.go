// Package media wraps the external encoder (ffmpeg) and media probing.
package media

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"
)

// Runner executes an external program. Implementations return *models.ProcessError on a
// non-zero exit so callers can classify it as an external process failure.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout []byte, err error)
}

// ExecRunner runs programs with os/exec. The process is killed when ctx is done.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.DebugCF("media", "exec", map[string]any{"cmd": name, "args": strings.Join(args, " ")})
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	pe := &models.ProcessError{Name: name, ExitCode: -1, Stderr: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		pe.ExitCode = exitErr.ExitCode()
	}
	return nil, pe
}
