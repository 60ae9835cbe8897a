package tts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/media"
	"SlideToVideo-server/models"
	"SlideToVideo-server/slot"
)

// Hints are optional per-request preferences. Engines that cannot honour them never see them.
type Hints struct {
	Voice         string
	CloneRef      string
	ForceFallback bool
	Language      string
}

type Result struct {
	Engine   string
	Language string
	Duration float64
	Path     string
	Message  string
}

// Dispatcher runs the selected engines in order until one produces valid audio.
type Dispatcher struct {
	Selector *Selector
	Prober   media.Prober
	Gate     *slot.Gate
}

func NewDispatcher(sel *Selector, prober media.Prober, gate *slot.Gate) *Dispatcher {
	return &Dispatcher{Selector: sel, Prober: prober, Gate: gate}
}

var spaceRun = regexp.MustCompile(`[ \t\r\f\v]+`)

// NormalizeText collapses whitespace, turns line breaks into sentence breaks and makes
// sure the text ends with terminal punctuation.
func NormalizeText(text string) string {
	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			sentences = append(sentences, line)
		}
	}
	if len(sentences) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range sentences {
		if i > 0 {
			prev := sentences[i-1]
			if !strings.ContainsAny(prev[len(prev)-1:], ".!?:;,") {
				b.WriteString(".")
			}
			b.WriteString(" ")
		}
		b.WriteString(s)
	}
	out := b.String()
	if !strings.ContainsAny(out[len(out)-1:], ".!?") {
		out += "."
	}
	return out
}

// Synthesize writes narration for text to dest. dest is only replaced when an engine
// produced a non-empty, probe-able file.
func (d *Dispatcher) Synthesize(ctx context.Context, text, dest string, hints Hints) (Result, error) {
	clean := NormalizeText(text)
	if clean == "" {
		return Result{}, models.ErrEmptyInput
	}
	sel := d.Selector.Select(clean, Options{ForceFallback: hints.ForceFallback, Language: hints.Language})
	if len(sel.Engines) == 0 {
		return Result{}, fmt.Errorf("%w: no engine configured for %s", models.ErrAllEnginesExhausted, sel.Language)
	}

	var errs []error
	for i, eng := range sel.Engines {
		req := Request{Text: clean, Language: sel.Language, Voice: hints.Voice}
		if eng.SupportsVoiceClone() {
			req.CloneRef = hints.CloneRef
		}
		start := time.Now()
		duration, err := d.attempt(ctx, eng, req, dest)
		if err == nil {
			msg := fmt.Sprintf("generated using %s (%s)", eng.Name(), sel.Language)
			if i > 0 {
				msg = fmt.Sprintf("generated using %s fallback (%s)", eng.Name(), sel.Language)
			}
			logger.InfoCF("tts", msg, map[string]any{
				"engine":   eng.Name(),
				"duration": duration,
				"elapsed":  time.Since(start).String(),
			})
			return Result{Engine: eng.Name(), Language: sel.Language, Duration: duration, Path: dest, Message: msg}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		logger.WarnCF("tts", "engine failed", map[string]any{
			"engine":   eng.Name(),
			"language": sel.Language,
			"error":    err.Error(),
		})
		errs = append(errs, fmt.Errorf("%s: %w", eng.Name(), err))
	}
	return Result{}, fmt.Errorf("%w for %s: %w", models.ErrAllEnginesExhausted, sel.Language, errors.Join(errs...))
}

func (d *Dispatcher) attempt(ctx context.Context, eng Engine, req Request, dest string) (float64, error) {
	var duration float64
	write := func(ctx context.Context) error {
		return artifact.Write(ctx, dest, func(tmp string) error {
			if err := eng.Synthesize(ctx, req, tmp); err != nil {
				return fmt.Errorf("%w: %w", models.ErrEngineFailure, err)
			}
			if !artifact.Exists(tmp) {
				return fmt.Errorf("%w: empty output", models.ErrEngineFailure)
			}
			dur, err := d.Prober.Duration(ctx, tmp)
			if err != nil || dur <= 0 {
				return fmt.Errorf("%w: unreadable output: %v", models.ErrEngineFailure, err)
			}
			duration = dur
			return nil
		})
	}
	if eng.UsesModelSlot() {
		return duration, d.Gate.Do(ctx, write)
	}
	return duration, write(ctx)
}
