package models

import "context"

// Store persists presentations and tasks. UpdateSlide holds a lock on a single slide, so
// workers touching different slides of one presentation never block each other.
// UpdatePresentation holds the presentation and all of its slides.
type Store interface {
	CreatePresentation(ctx context.Context, p *Presentation) error
	GetPresentation(ctx context.Context, id string) (*Presentation, error)
	ListPresentations(ctx context.Context) ([]*Presentation, error)
	DeletePresentation(ctx context.Context, id string) error
	UpdatePresentation(ctx context.Context, id string, fn func(p *Presentation) error) (*Presentation, error)
	UpdateSlide(ctx context.Context, id string, index int, fn func(s *Slide) error) (*Slide, error)

	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, id string, fn func(t *Task) error) (*Task, error)
}
