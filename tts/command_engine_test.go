package tts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRunner struct {
	dir  string
	name string
	args []string
	text string
}

func (c *captureRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	c.dir, c.name, c.args = dir, name, args
	for i, a := range args {
		if a == "--text_file" {
			data, _ := os.ReadFile(args[i+1])
			c.text = string(data)
		}
	}
	return nil, nil
}

func TestCommandEngineExpandsPlaceholders(t *testing.T) {
	r := &captureRunner{}
	e := &CommandEngine{
		EngineName: "vieneu",
		Command:    "python",
		Args:       []string{"infer.py", "--text_file", "{text_file}", "--output", "{output}", "--voice", "{voice}", "--ref_audio", "{ref_audio}"},
		WorkDir:    "/opt/vieneu",
		Languages:  []string{"vi"},
		VoiceClone: true,
		Runner:     r,
	}
	dest := filepath.Join(t.TempDir(), "a.wav")
	err := e.Synthesize(context.Background(), Request{Text: "Xin chào.", Language: "vi", Voice: "tuyen", CloneRef: "/missing/ref.wav"}, dest)
	require.NoError(t, err)

	assert.Equal(t, "/opt/vieneu", r.dir)
	assert.Equal(t, "Xin chào.", r.text)
	assert.Contains(t, r.args, "tuyen")
	assert.NotContains(t, r.args, "--ref_audio", "missing clone reference is dropped")
	assert.True(t, e.SupportsLanguage("vi"))
	assert.False(t, e.SupportsLanguage("en"))
	assert.True(t, e.UsesModelSlot())
}

func TestCommandEngineAvailability(t *testing.T) {
	assert.False(t, (&CommandEngine{}).Available())
	assert.False(t, (&CommandEngine{Command: "/definitely/not/here"}).Available())
	assert.True(t, (&CommandEngine{Command: "sh"}).Available())
}

func TestSelectorListsPresetVoices(t *testing.T) {
	s := &Selector{
		Native:    &CommandEngine{EngineName: "vieneu", PresetVoices: []string{"Tuyên=tuyen", "ngoc", " "}},
		Universal: &fakeEngine{name: "universal", available: true},
	}
	voices := s.Voices()
	require.Len(t, voices, 1)
	assert.Equal(t, []Voice{{ID: "tuyen", Name: "Tuyên"}, {ID: "ngoc", Name: "ngoc"}}, voices["vieneu"])

	openai := NewOpenAIEngine("", "", "tts-1", "alloy").Voices()
	assert.Contains(t, openai, Voice{ID: "nova", Name: "nova"})
	assert.Equal(t, "alloy", openai[0].ID)
}
