package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SlideToVideo-server/logger"

	"github.com/hibiken/asynq"
)

const TypePipelineTask = "slides:pipeline"

type TaskPayload struct {
	TaskID string `json:"task_id"`
}

// Enqueuer hands a stored task to whatever executes it.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskID string) error
}

func NewPipelineTask(taskID string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{TaskID: taskID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	return asynq.NewTask(TypePipelineTask, payload,
		asynq.MaxRetry(3),
		// model inference is slow; a whole deck can take a long time
		asynq.Timeout(timeout),
		asynq.Retention(24*time.Hour),
	), nil
}

// AsynqQueue enqueues tasks in Redis for the worker process.
type AsynqQueue struct {
	Client  *asynq.Client
	Timeout time.Duration
}

func NewAsynqQueue(addr, password string, timeout time.Duration) *AsynqQueue {
	return &AsynqQueue{
		Client:  asynq.NewClient(asynq.RedisClientOpt{Addr: addr, Password: password}),
		Timeout: timeout,
	}
}

func (q *AsynqQueue) Enqueue(ctx context.Context, taskID string) error {
	task, err := NewPipelineTask(taskID, q.Timeout)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	logger.InfoCF("queue", "task enqueued", map[string]any{"task": taskID, "asynq_id": info.ID})
	return nil
}

func (q *AsynqQueue) Close() error { return q.Client.Close() }

// InlineQueue runs tasks on a goroutine in this process, for deployments without Redis.
type InlineQueue struct {
	Processor *Processor
	// Base is the parent context of every task; cancelling it stops them all.
	Base context.Context
}

func (q *InlineQueue) Enqueue(_ context.Context, taskID string) error {
	base := q.Base
	if base == nil {
		base = context.Background()
	}
	go func() {
		if err := q.Processor.Execute(base, taskID); err != nil {
			logger.ErrorCF("queue", "inline task failed", map[string]any{"task": taskID, "error": err.Error()})
		}
	}()
	return nil
}
