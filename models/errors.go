package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput: nothing to synthesize. Local to the slide, which is skippable.
	ErrEmptyInput = errors.New("empty input")
	// ErrMissingAsset: a required upstream artifact is absent or unreadable.
	ErrMissingAsset = errors.New("missing asset")
	// ErrEngineFailure: one synthesis backend attempt failed.
	ErrEngineFailure = errors.New("engine failure")
	// ErrAllEnginesExhausted: every candidate engine failed for a text unit.
	ErrAllEnginesExhausted = errors.New("all engines exhausted")
	// ErrNoValidClips: assembly had zero qualifying clips.
	ErrNoValidClips = errors.New("no valid clips")
	// ErrExternalProcess: an external process (encoder, talking-head model) exited non-zero.
	ErrExternalProcess = errors.New("external process failure")

	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoContent         = errors.New("no content")
	ErrNotFound          = errors.New("not found")
	ErrInvalidStage      = errors.New("invalid stage")
	// ErrStale: a slide changed while a stage ran on an older copy; the result was dropped.
	ErrStale = errors.New("stale result")
)

// StageError scopes a failure to a stage and, when relevant, a slide.
type StageError struct {
	Stage Stage
	Index int // 0 for presentation-level failures
	Err   error
}

func (e *StageError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s stage, slide %d: %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ProcessError carries the raw diagnostic of a failed external process.
type ProcessError struct {
	Name     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > 2000 {
		msg = "..." + msg[len(msg)-2000:]
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.ExitCode, msg)
}

func (e *ProcessError) Is(target error) bool { return target == ErrExternalProcess }

func (e *ProcessError) Unwrap() error { return e.Err }

// Kind returns the taxonomy name of err for reports and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "EmptyInput"
	case errors.Is(err, ErrMissingAsset):
		return "MissingAsset"
	case errors.Is(err, ErrAllEnginesExhausted):
		return "AllEnginesExhausted"
	case errors.Is(err, ErrEngineFailure):
		return "EngineFailure"
	case errors.Is(err, ErrNoValidClips):
		return "NoValidClips"
	case errors.Is(err, ErrExternalProcess):
		return "ExternalProcessFailure"
	case errors.Is(err, ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case errors.Is(err, ErrNoContent):
		return "NoContent"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidStage):
		return "InvalidStage"
	case errors.Is(err, ErrStale):
		return "Stale"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	default:
		return "Internal"
	}
}
