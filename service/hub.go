package service

import (
	"context"
	"sync"

	"SlideToVideo-server/pipeline"
)

// Hub fans pipeline events out to in-process subscribers such as websocket clients.
// Slow subscribers lose events rather than blocking the pipeline.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan pipeline.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan pipeline.Event]struct{})}
}

// Subscribe returns a channel of events for one presentation and a func to stop.
func (h *Hub) Subscribe(presentationID string) (<-chan pipeline.Event, func()) {
	ch := make(chan pipeline.Event, 32)
	h.mu.Lock()
	if h.subs[presentationID] == nil {
		h.subs[presentationID] = make(map[chan pipeline.Event]struct{})
	}
	h.subs[presentationID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[presentationID], ch)
			if len(h.subs[presentationID]) == 0 {
				delete(h.subs, presentationID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Notify(_ context.Context, ev pipeline.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.PresentationID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}
