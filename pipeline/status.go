package pipeline

import (
	"context"

	"SlideToVideo-server/models"
)

// StatusView is what callers poll: the presentation with its aggregate progress.
type StatusView struct {
	Presentation *models.Presentation `json:"presentation"`
	Progress     models.Progress      `json:"progress"`
	Stage        string               `json:"stage"`
}

func (p *Pipeline) Status(ctx context.Context, id string) (*StatusView, error) {
	pres, err := p.svc.Store.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}
	prog := pres.Aggregate()
	return &StatusView{Presentation: pres, Progress: prog, Stage: prog.String()}, nil
}

func (p *Pipeline) SlideStatus(ctx context.Context, id string, index int) (*models.Slide, error) {
	pres, err := p.svc.Store.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}
	s := pres.Slide(index)
	if s == nil {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func (p *Pipeline) List(ctx context.Context) ([]*models.Presentation, error) {
	return p.svc.Store.ListPresentations(ctx)
}
