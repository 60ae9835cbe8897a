package scriptgen

import (
	"context"
	"errors"
	"testing"

	"SlideToVideo-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) complete(_ context.Context, _, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	return f.reply, f.err
}

func TestStripMarkdown(t *testing.T) {
	cases := map[string]string{
		"**Hello** everyone":                     "Hello everyone",
		"## Intro\nWelcome to the talk":          "Intro\nWelcome to the talk",
		"- first point\n- second point":          "first point\nsecond point",
		"1. one\n2) two":                         "one\ntwo",
		"Script: \"Today we look at revenue.\"":  "Today we look at revenue.",
		"  plain text stays  ":                   "plain text stays",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripMarkdown(in), in)
	}
}

func TestGenerateEmptySlide(t *testing.T) {
	fc := &fakeCompleter{reply: "unused"}
	g := newLLMGenerator("fake", fc, 0)

	_, err := g.Generate(context.Background(), "   ", "en")
	assert.ErrorIs(t, err, models.ErrEmptyInput)
	assert.Empty(t, fc.prompts)
}

func TestGenerateCleansReply(t *testing.T) {
	fc := &fakeCompleter{reply: "**Welcome.** Today we cover *growth*."}
	g := newLLMGenerator("fake", fc, 0)

	got, err := g.Generate(context.Background(), "Growth 2024", "vi")
	require.NoError(t, err)
	assert.Equal(t, "Welcome. Today we cover growth.", got)
	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0], "Vietnamese")
	assert.Contains(t, fc.prompts[0], "Growth 2024")
}

func TestRegenerateIncludesFeedback(t *testing.T) {
	fc := &fakeCompleter{reply: "Shorter script."}
	g := newLLMGenerator("fake", fc, 0)

	got, err := g.Regenerate(context.Background(), "slide", "old long script", "make it shorter")
	require.NoError(t, err)
	assert.Equal(t, "Shorter script.", got)
	assert.Contains(t, fc.prompts[0], "old long script")
	assert.Contains(t, fc.prompts[0], "make it shorter")
}

func TestProviderErrorIsWrapped(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("quota exceeded")}
	g := newLLMGenerator("fake", fc, 0)

	_, err := g.Enhance(context.Background(), "a script", "more formal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake: quota exceeded")
}

func TestBlankReplyIsEmptyInput(t *testing.T) {
	fc := &fakeCompleter{reply: "** **"}
	g := newLLMGenerator("fake", fc, 0)

	_, err := g.Enhance(context.Background(), "a script", "x")
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}
