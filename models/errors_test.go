package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cases := map[string]error{
		"EmptyInput":             fmt.Errorf("slide 3: %w", ErrEmptyInput),
		"AllEnginesExhausted":    fmt.Errorf("%w: %w", ErrAllEnginesExhausted, errors.Join(ErrEngineFailure)),
		"ExternalProcessFailure": &ProcessError{Name: "ffmpeg", ExitCode: 1},
		"Timeout":                &StageError{Stage: StageAudio, Index: 2, Err: context.DeadlineExceeded},
		"Stale":                  &StageError{Stage: StageAudio, Index: 1, Err: fmt.Errorf("inputs changed: %w", ErrStale)},
		"Internal":               errors.New("other"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Kind(err), err.Error())
	}
	assert.Empty(t, Kind(nil))
}

func TestProcessErrorTruncatesStderr(t *testing.T) {
	err := &ProcessError{Name: "ffmpeg", ExitCode: 2, Stderr: strings.Repeat("a", 5000) + "tail"}
	msg := err.Error()
	assert.True(t, strings.HasSuffix(msg, "tail"))
	assert.Less(t, len(msg), 2100)
	assert.ErrorIs(t, err, ErrExternalProcess)
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: StageClip, Index: 4, Err: ErrMissingAsset}
	assert.Equal(t, "clip stage, slide 4: missing asset", err.Error())
	assert.ErrorIs(t, err, ErrMissingAsset)
}
