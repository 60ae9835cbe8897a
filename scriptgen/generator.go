// Package scriptgen writes spoken narration for slides with a hosted LLM.
package scriptgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"SlideToVideo-server/models"

	"golang.org/x/time/rate"
)

type Generator interface {
	Generate(ctx context.Context, slideText, language string) (string, error)
	Regenerate(ctx context.Context, slideText, current, feedback string) (string, error)
	Enhance(ctx context.Context, current, instruction string) (string, error)
}

// completer sends one system+user exchange to a provider and returns the text reply.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// LLMGenerator implements Generator on top of any provider. Calls are rate limited;
// retries are left to the caller.
type LLMGenerator struct {
	provider string
	c        completer
	limiter  *rate.Limiter
}

func newLLMGenerator(provider string, c completer, requestsPerMinute float64) *LLMGenerator {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(requestsPerMinute / 60)
	}
	return &LLMGenerator{provider: provider, c: c, limiter: rate.NewLimiter(limit, 1)}
}

var languageNames = map[string]string{
	"vi": "Vietnamese", "en": "English", "zh": "Chinese", "ja": "Japanese", "ko": "Korean",
	"th": "Thai", "fr": "French", "de": "German", "es": "Spanish", "it": "Italian",
	"pt": "Portuguese", "ru": "Russian", "ar": "Arabic", "hi": "Hindi",
}

const systemPrompt = `You are a professional presenter writing narration for text-to-speech.
Write PLAIN TEXT ONLY: no Markdown, lists, bullet points, asterisks, hashtags or emojis.
Write full sentences as if speaking to an audience, professional and clear.`

func (g *LLMGenerator) Generate(ctx context.Context, slideText, language string) (string, error) {
	if strings.TrimSpace(slideText) == "" {
		return "", fmt.Errorf("slide has no text: %w", models.ErrEmptyInput)
	}
	name, ok := languageNames[language]
	if !ok {
		name = language
	}
	prompt := fmt.Sprintf(`Rewrite the following slide content into a natural, engaging speech script.

Slide content:
"%s"

Requirements:
1. Language: %s.
2. Do not just read the text. Explain and expand on the points naturally.
3. Keep it concise, about one to two minutes at most.

Script:`, slideText, name)
	return g.ask(ctx, prompt)
}

func (g *LLMGenerator) Regenerate(ctx context.Context, slideText, current, feedback string) (string, error) {
	prompt := fmt.Sprintf(`Regenerate the speech script for this slide, taking the feedback into account.

Slide content:
"%s"

Current script:
"%s"

Feedback:
"%s"

Address the feedback specifically. Keep the language of the current script.

New script:`, slideText, current, feedback)
	return g.ask(ctx, prompt)
}

func (g *LLMGenerator) Enhance(ctx context.Context, current, instruction string) (string, error) {
	if strings.TrimSpace(current) == "" {
		return "", fmt.Errorf("nothing to enhance: %w", models.ErrEmptyInput)
	}
	prompt := fmt.Sprintf(`Update the following speech script according to the instruction.

Current script:
"%s"

Instruction:
"%s"

Updated script:`, current, instruction)
	return g.ask(ctx, prompt)
}

func (g *LLMGenerator) ask(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := g.c.complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.provider, err)
	}
	script := StripMarkdown(out)
	if script == "" {
		return "", fmt.Errorf("%s returned an empty script: %w", g.provider, models.ErrEmptyInput)
	}
	return script, nil
}

var (
	headingRe  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	listRe     = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.)])\s+`)
	emphasisRe = regexp.MustCompile("[*_`~]{1,3}")
	labelRe    = regexp.MustCompile(`(?i)^\s*(?:script|new script|updated script)\s*:\s*`)
)

// StripMarkdown removes the formatting TTS engines would read aloud.
func StripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	s = labelRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = listRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	s = strings.Trim(s, "\"“” \n")
	return strings.TrimSpace(s)
}
