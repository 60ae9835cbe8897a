package main

import (
	"context"
	"fmt"
	"time"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/assemble"
	"SlideToVideo-server/compose"
	"SlideToVideo-server/config"
	"SlideToVideo-server/extract"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/media"
	"SlideToVideo-server/models"
	"SlideToVideo-server/pipeline"
	"SlideToVideo-server/scriptgen"
	"SlideToVideo-server/service"
	"SlideToVideo-server/slot"
	"SlideToVideo-server/talkinghead"
	"SlideToVideo-server/tts"
)

// app is every long-lived collaborator built from one config.
type app struct {
	cfg      *config.Config
	store    models.Store
	pipeline *pipeline.Pipeline
	speech   *tts.Selector
	hub      *service.Hub
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newStore(ctx context.Context, cfg *config.Config) (models.Store, *models.MemoryStore, error) {
	if cfg.Storage.Backend == "mysql" {
		db, err := models.InitDB(cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := models.NewGormStore(db)
		return s, nil, err
	}
	mem, err := models.NewMemoryStore(cfg.Storage.SnapshotPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.SnapshotPath != "" {
		mem.StartAutoFlush(ctx, 30*time.Second)
	}
	return mem, mem, nil
}

func newGenerator(cfg config.LLMConfig) scriptgen.Generator {
	if cfg.Provider == "anthropic" {
		return scriptgen.NewAnthropicGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.RequestsPerMinute)
	}
	return scriptgen.NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.RequestsPerMinute)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, hub: service.NewHub()}
	store, mem, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a.store = store
	if mem != nil && cfg.Storage.SnapshotPath != "" {
		a.closers = append(a.closers, func() {
			if err := mem.Flush(context.Background()); err != nil {
				logger.ErrorCF("main", "final snapshot failed", map[string]any{"error": err.Error()})
			}
		})
	}

	runner := media.ExecRunner{}
	gate := slot.NewGate(cfg.Pipeline.ModelSlots)
	ffmpeg := media.NewFFmpeg(cfg.FFmpeg.Bin, cfg.FFmpeg.ProbeBin, cfg.FFmpeg.Preset, cfg.FFmpeg.FPS,
		cfg.Pipeline.CanvasWidth, cfg.Pipeline.CanvasHeight)

	sel := &tts.Selector{ForceFallback: cfg.TTS.ForceFallback}
	if cfg.TTS.Detector == "lingua" {
		sel.Detector = tts.NewLinguaDetector(cfg.TTS.MinConfidence)
	}
	if cfg.TTS.Native.Command != "" {
		sel.Native = &tts.CommandEngine{
			EngineName:   cfg.TTS.Native.Name,
			Command:      cfg.TTS.Native.Command,
			Args:         cfg.TTS.Native.Args,
			WorkDir:      cfg.TTS.Native.WorkDir,
			Languages:    cfg.TTS.Native.Languages,
			VoiceClone:   cfg.TTS.Native.VoiceClone,
			PresetVoices: cfg.TTS.Native.Voices,
			Runner:       runner,
		}
	}
	u := cfg.TTS.Universal
	sel.Universal = tts.NewOpenAIEngine(u.BaseURL, u.APIKey, u.Model, u.Voice)
	a.speech = sel

	notifiers := service.Fanout{a.hub}
	if cfg.RabbitMQ.URL != "" {
		rn, err := service.NewRabbitNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, rn)
		a.closers = append(a.closers, rn.Close)
	}

	artifacts := artifact.New(cfg.Storage.Root, cfg.Server.StaticURL)
	var publisher pipeline.Publisher
	if cfg.MinIO.Endpoint != "" {
		m := cfg.MinIO
		publisher, err = service.NewMinIOPublisher(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
		if err != nil {
			return nil, err
		}
	}

	th := cfg.TalkingHead
	a.pipeline = pipeline.New(pipeline.Services{
		Store:     store,
		Artifacts: artifacts,
		Extractor: extract.NewDispatcher(runner),
		Scripts:   newGenerator(cfg.LLM),
		Speech:    tts.NewDispatcher(sel, ffmpeg, gate),
		Composer: compose.NewComposer(compose.NewStyler(cfg.Pipeline.CanvasWidth, cfg.Pipeline.CanvasHeight),
			ffmpeg, ffmpeg, cfg.Pipeline.TrailingBuffer, cfg.Pipeline.TransitionDuration),
		Assembler: assemble.New(ffmpeg, ffmpeg),
		Animator: &talkinghead.CommandAnimator{
			Command:   th.Command,
			Args:      th.Args,
			WorkDir:   th.WorkDir,
			ResultDir: th.ResultDir,
			UseCPU:    th.UseCPU,
			Timeout:   th.Timeout,
			Gate:      gate,
			Runner:    runner,
		},
		Publisher: publisher,
		Notifier:  notifiers,
		Options: pipeline.Options{
			Workers:         cfg.Pipeline.Workers,
			StageTimeout:    cfg.Pipeline.StageTimeout,
			AssembleTimeout: cfg.Pipeline.AssembleTimeout,
			TrailingBuffer:  cfg.Pipeline.TrailingBuffer,
			Fade:            cfg.Pipeline.TransitionDuration,
			ScriptLanguage:  cfg.Pipeline.ScriptLanguage,
			ForceFallback:   cfg.TTS.ForceFallback,
			Overlay:         assemble.Policy{Mode: th.Mode, Scale: th.Scale, Margin: th.Margin},
		},
	})
	return a, nil
}
