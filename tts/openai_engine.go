package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var openAIVoices = map[string]bool{
	"alloy": true, "ash": true, "ballad": true, "coral": true, "echo": true,
	"fable": true, "nova": true, "onyx": true, "sage": true, "shimmer": true,
}

// OpenAIEngine speaks any supported language through an OpenAI-compatible
// /v1/audio/speech endpoint. It is the universal fallback.
type OpenAIEngine struct {
	client openai.Client
	model  string
	voice  string
	ready  bool
}

func NewOpenAIEngine(baseURL, apiKey, model, voice string) *OpenAIEngine {
	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: 5 * time.Minute}),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEngine{
		client: openai.NewClient(opts...),
		model:  model,
		voice:  voice,
		ready:  apiKey != "" || baseURL != "",
	}
}

func (e *OpenAIEngine) Name() string { return "openai-tts" }

func (e *OpenAIEngine) SupportsLanguage(lang string) bool { return IsSupported(lang) }

func (e *OpenAIEngine) SupportsVoiceClone() bool { return false }

func (e *OpenAIEngine) Voices() []Voice {
	out := make([]Voice, 0, len(openAIVoices))
	for id := range openAIVoices {
		out = append(out, Voice{ID: id, Name: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *OpenAIEngine) UsesModelSlot() bool { return false }

func (e *OpenAIEngine) Available() bool { return e.ready }

func (e *OpenAIEngine) Synthesize(ctx context.Context, req Request, dest string) error {
	voice := e.voice
	if openAIVoices[req.Voice] {
		voice = req.Voice
	}
	resp, err := e.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(e.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("read speech body: %w", err)
	}
	return f.Close()
}
