package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/extract"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// Ingest stores an uploaded deck and extracts its slides into a new presentation.
func (p *Pipeline) Ingest(ctx context.Context, filename string, src io.Reader) (*models.Presentation, error) {
	filename = filepath.Base(filename)
	if _, err := extract.Kind(filename); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	dest := p.svc.Artifacts.Path(id, artifact.SourceDir, filename)
	if err := artifact.Write(ctx, dest, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, src); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	pres, err := p.ingest(ctx, id, filename, dest)
	if err != nil {
		_ = p.svc.Artifacts.RemovePresentation(id)
		return nil, err
	}
	return pres, nil
}

// IngestPath extracts a deck already on disk, such as a manifest directory.
func (p *Pipeline) IngestPath(ctx context.Context, path string) (*models.Presentation, error) {
	id := uuid.NewString()
	pres, err := p.ingest(ctx, id, filepath.Base(path), path)
	if err != nil {
		_ = p.svc.Artifacts.RemovePresentation(id)
		return nil, err
	}
	return pres, nil
}

func (p *Pipeline) ingest(ctx context.Context, id, filename, path string) (*models.Presentation, error) {
	kind, err := extract.Kind(path)
	if err != nil {
		return nil, err
	}
	pages, err := p.svc.Extractor.Extract(ctx, path, p.svc.Artifacts.Path(id, artifact.PagesDir))
	if err != nil {
		return nil, &models.StageError{Stage: models.StageExtract, Err: err}
	}

	now := time.Now()
	pres := &models.Presentation{
		ID:         id,
		Filename:   filename,
		SourcePath: path,
		Type:       kind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, pg := range pages {
		pres.Slides = append(pres.Slides, models.Slide{
			Index:     pg.Index,
			Content:   pg.Text,
			Notes:     pg.Notes,
			ImagePath: pg.ImagePath,
			Status:    models.SlideStatusPending,
			UpdatedAt: now,
		})
	}
	if err := p.svc.Store.CreatePresentation(ctx, pres); err != nil {
		return nil, fmt.Errorf("create presentation: %w", err)
	}
	logger.InfoCF("pipeline", "presentation ingested", map[string]any{
		"presentation": id,
		"type":         kind,
		"slides":       len(pres.Slides),
	})
	p.emit(ctx, Event{PresentationID: id, Stage: models.StageExtract, Status: "done",
		Message: fmt.Sprintf("extracted %d slides", len(pres.Slides))})
	return pres, nil
}

// SetAvatar stores the portrait used for the talking head.
func (p *Pipeline) SetAvatar(ctx context.Context, id, filename string, src io.Reader) (*models.Presentation, error) {
	if _, err := p.svc.Store.GetPresentation(ctx, id); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return nil, fmt.Errorf("avatar %q: %w", ext, models.ErrUnsupportedFormat)
	}
	dest := p.svc.Artifacts.Path(id, artifact.AvatarPrefix+ext)
	if err := artifact.Write(ctx, dest, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(f, src); err != nil {
			return err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, _, err := image.DecodeConfig(f); err != nil {
			return fmt.Errorf("avatar is not an image: %w", models.ErrUnsupportedFormat)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return p.svc.Store.UpdatePresentation(ctx, id, func(pres *models.Presentation) error {
		if pres.AvatarPath != "" && pres.AvatarPath != dest {
			_ = os.Remove(pres.AvatarPath)
		}
		pres.AvatarPath = dest
		if pres.FinalVideo != nil && pres.FinalVideo.Overlaid {
			pres.FinalVideo = nil
		}
		return nil
	})
}

// Delete removes a presentation and every artifact it owns.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if err := p.svc.Store.DeletePresentation(ctx, id); err != nil {
		return err
	}
	if err := p.svc.Artifacts.RemovePresentation(id); err != nil {
		logger.WarnCF("pipeline", "artifact cleanup failed", map[string]any{"presentation": id, "error": err.Error()})
	}
	p.mu.Lock()
	delete(p.assembly, id)
	p.mu.Unlock()
	return nil
}
