package pipeline

import (
	"context"
	"time"

	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"
)

// Event is emitted whenever a slide or the presentation changes stage.
type Event struct {
	PresentationID string       `json:"presentation_id"`
	Stage          models.Stage `json:"stage"`
	SlideIndex     int          `json:"slide_index,omitempty"`
	Status         string       `json:"status"`
	Message        string       `json:"message,omitempty"`
	Time           time.Time    `json:"time"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

func (p *Pipeline) emit(ctx context.Context, ev Event) {
	ev.Time = time.Now()
	if err := p.svc.Notifier.Notify(context.WithoutCancel(ctx), ev); err != nil {
		logger.WarnCF("pipeline", "notify failed", map[string]any{
			"presentation": ev.PresentationID,
			"stage":        ev.Stage,
			"error":        err.Error(),
		})
	}
}
