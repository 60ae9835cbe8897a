package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"
	"SlideToVideo-server/pipeline"

	"github.com/hibiken/asynq"
)

// ErrSuperseded cancels a task when a newer task targets the same slide.
var ErrSuperseded = errors.New("superseded by a newer task")

type running struct {
	cancel context.CancelCauseFunc
	key    string
}

// Processor executes stored tasks against the pipeline. Running tasks can be
// cancelled by id; a new task on a slide cancels the one already working on it.
type Processor struct {
	Pipeline *pipeline.Pipeline
	Store    models.Store

	mu      sync.Mutex
	running map[string]running
	byKey   map[string]string
}

func NewProcessor(p *pipeline.Pipeline, store models.Store) *Processor {
	return &Processor{
		Pipeline: p,
		Store:    store,
		running:  make(map[string]running),
		byKey:    make(map[string]string),
	}
}

// StartProcessor starts an asynq server consuming pipeline tasks.
func (p *Processor) StartProcessor(redisAddr, password string, concurrency int) (*asynq.Server, error) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: password},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{"default": 1},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePipelineTask, p.HandlePipelineTask)

	logger.InfoCF("processor", "starting task processor", map[string]any{"concurrency": concurrency})
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("start asynq server: %w", err)
	}
	return srv, nil
}

func (p *Processor) HandlePipelineTask(ctx context.Context, t *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	err := p.Execute(ctx, payload.TaskID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// slotKey identifies what a task works on; two tasks with the same key never run together.
func slotKey(t *models.Task) string {
	if t.Type == models.TaskTypeRegenerate {
		return fmt.Sprintf("%s/%d", t.PresentationID, t.SlideIndex)
	}
	return ""
}

func (p *Processor) register(t *models.Task, cancel context.CancelCauseFunc) {
	key := slotKey(t)
	p.mu.Lock()
	defer p.mu.Unlock()
	if key != "" {
		if prev, ok := p.byKey[key]; ok {
			if r, ok := p.running[prev]; ok {
				r.cancel(ErrSuperseded)
			}
		}
		p.byKey[key] = t.ID
	}
	p.running[t.ID] = running{cancel: cancel, key: key}
}

func (p *Processor) unregister(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.running[taskID]
	if !ok {
		return
	}
	delete(p.running, taskID)
	if r.key != "" && p.byKey[r.key] == taskID {
		delete(p.byKey, r.key)
	}
}

// Cancel stops a running task, or marks a queued one cancelled so it never starts.
func (p *Processor) Cancel(ctx context.Context, taskID string) (*models.Task, error) {
	p.mu.Lock()
	r, ok := p.running[taskID]
	p.mu.Unlock()
	if ok {
		r.cancel(context.Canceled)
		return p.Store.GetTask(ctx, taskID)
	}
	return p.Store.UpdateTask(ctx, taskID, func(t *models.Task) error {
		if !t.Done() {
			now := time.Now()
			t.Status = models.TaskStatusCancelled
			t.Message = "cancelled before start"
			t.FinishedAt = &now
		}
		return nil
	})
}

// Execute runs one stored task to completion and records the outcome on it. Pipeline
// failures are recorded, not returned: retrying them would only repeat the failure.
func (p *Processor) Execute(ctx context.Context, taskID string) error {
	task, err := p.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Done() {
		return nil
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	p.register(task, cancel)
	defer p.unregister(task.ID)

	now := time.Now()
	if _, err := p.Store.UpdateTask(ctx, task.ID, func(t *models.Task) error {
		t.Status = models.TaskStatusProcessing
		t.StartedAt = &now
		t.Error = ""
		return nil
	}); err != nil {
		return err
	}
	logger.InfoCF("processor", "processing task", map[string]any{"task": task.ID, "type": task.Type, "presentation": task.PresentationID})

	runCtx = pipeline.WithProgress(runCtx, p.progress(task))
	result, runErr := p.dispatch(runCtx, task)

	finished := time.Now()
	_, err = p.Store.UpdateTask(context.WithoutCancel(ctx), task.ID, func(t *models.Task) error {
		t.FinishedAt = &finished
		if result != nil {
			t.Result = *result
			t.Message = result.Summary
		}
		switch {
		case runErr == nil:
			t.Status = models.TaskStatusSuccess
			t.Progress = 100
		case runCtx.Err() != nil && ctx.Err() == nil:
			t.Status = models.TaskStatusCancelled
			t.Error = context.Cause(runCtx).Error()
		default:
			t.Status = models.TaskStatusFailed
			t.Error = runErr.Error()
		}
		return nil
	})
	if runErr != nil {
		logger.WarnCF("processor", "task did not succeed", map[string]any{
			"task":  task.ID,
			"kind":  models.Kind(runErr),
			"error": runErr.Error(),
		})
	} else {
		logger.InfoCF("processor", "task completed", map[string]any{"task": task.ID})
	}
	if ctx.Err() != nil {
		// The worker is shutting down; let the queue hand the task out again.
		return ctx.Err()
	}
	return err
}

var runStageOrder = map[models.Stage]int{
	models.StageScript: 0,
	models.StageAudio:  1,
	models.StageClip:   2,
}

func (p *Processor) progress(task *models.Task) pipeline.ProgressFunc {
	return func(stage models.Stage, done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		if task.Type == models.TaskTypeRun {
			pct = (runStageOrder[stage]*100 + pct) / 4
		}
		msg := fmt.Sprintf("%s: %d/%d slides", stage, done, total)
		if _, err := p.Store.UpdateTask(context.Background(), task.ID, func(t *models.Task) error {
			if pct > t.Progress {
				t.Progress = pct
			}
			t.Message = msg
			return nil
		}); err != nil {
			logger.WarnCF("processor", "progress update failed", map[string]any{"task": task.ID, "error": err.Error()})
		}
	}
}

func (p *Processor) dispatch(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	params := task.Parameters
	id := task.PresentationID
	single := func(r *models.StageReport, err error) (*models.TaskResult, error) {
		if r == nil {
			return nil, err
		}
		return &models.TaskResult{Summary: r.Summary(), Reports: []models.StageReport{*r}}, err
	}

	switch task.Type {
	case models.TaskTypeRun:
		res, err := p.Pipeline.Run(ctx, id, pipeline.RunOptions{
			TTS:            params.TTS,
			UseTalkingHead: params.UseTalkingHead,
			Skip:           params.Skip,
		})
		if res == nil {
			return nil, err
		}
		out := &models.TaskResult{Reports: res.Reports}
		if n := len(res.Reports); n > 0 {
			out.Summary = res.Reports[n-1].Summary()
		}
		fillAssembly(out, res.Assembly)
		return out, err

	case models.TaskTypeScripts:
		return single(p.Pipeline.GenerateScripts(ctx, id, params.Slides))
	case models.TaskTypeAudio:
		return single(p.Pipeline.GenerateAudio(ctx, id, params.Slides, params.TTS))
	case models.TaskTypeClips:
		return single(p.Pipeline.ComposeClips(ctx, id, params.Slides))

	case models.TaskTypeRegenerate:
		s, err := p.Pipeline.Regenerate(ctx, id, task.SlideIndex, params.Stage, pipeline.RegenerateOptions{
			Feedback: params.Feedback,
			TTS:      params.TTS,
		})
		if err != nil {
			return nil, err
		}
		return &models.TaskResult{Summary: fmt.Sprintf("regenerated %s for slide %d (%s)", params.Stage, s.Index, s.Status)}, nil

	case models.TaskTypeAssemble:
		asm, err := p.Pipeline.Assemble(ctx, id, pipeline.AssembleOptions{
			UseTalkingHead: params.UseTalkingHead,
			Skip:           params.Skip,
		})
		if asm == nil {
			return nil, err
		}
		out := &models.TaskResult{Summary: asm.Report.Summary(), Reports: []models.StageReport{asm.Report}}
		fillAssembly(out, asm)
		return out, err
	}
	return nil, fmt.Errorf("unknown task type %q: %w", task.Type, models.ErrInvalidStage)
}

func fillAssembly(out *models.TaskResult, asm *pipeline.AssembleResult) {
	if asm == nil {
		return
	}
	if asm.Video != nil {
		out.VideoURL = asm.Video.URL
	}
	if asm.Audio != nil {
		out.AudioURL = asm.Audio.URL
	}
}
