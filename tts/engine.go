package tts

import "context"

// Request is what an engine is asked to speak. Voice and CloneRef are only set for
// engines that support them.
type Request struct {
	Text     string
	Language string
	Voice    string
	CloneRef string
}

// Engine is a synthesis backend. Synthesize writes a complete audio file to dest.
type Engine interface {
	Name() string
	SupportsLanguage(lang string) bool
	SupportsVoiceClone() bool
	// Available reports whether the backend can be tried right now.
	Available() bool
	// UsesModelSlot is true for engines that run a local model and must share the
	// inference slot with other model stages.
	UsesModelSlot() bool
	Synthesize(ctx context.Context, req Request, dest string) error
}

// Voice is a preset voice an engine can speak with.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VoiceLister is implemented by engines that offer preset voices.
type VoiceLister interface {
	Voices() []Voice
}
