// Package pipeline drives a presentation from an uploaded deck to a narrated video.
//
// Every collaborator is passed in through Services; nothing in here reaches for a
// package-level singleton, so tests run the whole flow against fakes.
package pipeline

import (
	"context"
	"sync"
	"time"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/assemble"
	"SlideToVideo-server/compose"
	"SlideToVideo-server/extract"
	"SlideToVideo-server/models"
	"SlideToVideo-server/scriptgen"
	"SlideToVideo-server/talkinghead"
	"SlideToVideo-server/tts"
)

// Synthesizer turns narration text into an audio file. *tts.Dispatcher implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, dest string, hints tts.Hints) (tts.Result, error)
}

// ClipComposer renders one slide clip. *compose.Composer implements it.
type ClipComposer interface {
	Compose(ctx context.Context, in compose.Input) (*compose.Output, error)
}

// Publisher makes a finished artifact reachable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, presentationID, path string) (string, error)
}

type Options struct {
	Workers         int
	StageTimeout    time.Duration
	AssembleTimeout time.Duration
	TrailingBuffer  float64
	Fade            float64
	ScriptLanguage  string
	Overlay         assemble.Policy
	ForceFallback   bool
}

type Services struct {
	Store     models.Store
	Artifacts *artifact.Store
	Extractor extract.Extractor
	Scripts   scriptgen.Generator
	Speech    Synthesizer
	Composer  ClipComposer
	Assembler *assemble.Assembler
	Animator  talkinghead.Animator
	Publisher Publisher
	Notifier  Notifier
	Options   Options
}

type Pipeline struct {
	svc Services

	mu       sync.Mutex
	assembly map[string]*sync.Mutex
}

func New(svc Services) *Pipeline {
	if svc.Options.Workers <= 0 {
		svc.Options.Workers = 1
	}
	if svc.Notifier == nil {
		svc.Notifier = NopNotifier{}
	}
	if svc.Publisher == nil {
		svc.Publisher = LocalPublisher{Artifacts: svc.Artifacts}
	}
	return &Pipeline{svc: svc, assembly: make(map[string]*sync.Mutex)}
}

func (p *Pipeline) Services() Services { return p.svc }

// assemblyLock serializes concatenation per presentation.
func (p *Pipeline) assemblyLock(id string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.assembly[id]
	if !ok {
		m = &sync.Mutex{}
		p.assembly[id] = m
	}
	return m
}

// LocalPublisher serves artifacts from the static file route.
type LocalPublisher struct {
	Artifacts *artifact.Store
}

func (l LocalPublisher) Publish(_ context.Context, _ string, path string) (string, error) {
	return l.Artifacts.URL(path), nil
}

// ProgressFunc is told how many slides of a stage are done.
type ProgressFunc func(stage models.Stage, done, total int)

type progressKey struct{}

// WithProgress attaches fn to ctx; stage runners report to it as slides finish.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func reportProgress(ctx context.Context, stage models.Stage, done, total int) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(stage, done, total)
	}
}
