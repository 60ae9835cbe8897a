// Package extract pulls per-slide text, notes and rendered images out of an uploaded deck.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"SlideToVideo-server/media"
	"SlideToVideo-server/models"
)

// Page is one slide as found in the source document. Index is 1-based.
type Page struct {
	Index     int
	Text      string
	Notes     string
	ImagePath string
}

type Extractor interface {
	// Extract reads the document at path and renders slide images into outDir.
	Extract(ctx context.Context, path, outDir string) ([]Page, error)
}

// Dispatcher picks an extractor by file type.
type Dispatcher struct {
	PDF      *PDFExtractor
	Office   *OfficeExtractor
	Manifest *ManifestExtractor
}

func NewDispatcher(runner media.Runner) *Dispatcher {
	pdf := NewPDFExtractor(runner)
	return &Dispatcher{PDF: pdf, Office: NewOfficeExtractor(runner, pdf), Manifest: &ManifestExtractor{}}
}

// Kind reports the document type of path, or ErrUnsupportedFormat.
func Kind(path string) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "manifest", nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf", nil
	case ".pptx", ".ppt", ".odp":
		return "office", nil
	case ".yaml", ".yml":
		return "manifest", nil
	}
	return "", fmt.Errorf("%s: %w", filepath.Ext(path), models.ErrUnsupportedFormat)
}

func (d *Dispatcher) Extract(ctx context.Context, path, outDir string) ([]Page, error) {
	kind, err := Kind(path)
	if err != nil {
		return nil, err
	}
	var pages []Page
	switch kind {
	case "pdf":
		pages, err = d.PDF.Extract(ctx, path, outDir)
	case "office":
		pages, err = d.Office.Extract(ctx, path, outDir)
	default:
		pages, err = d.Manifest.Extract(ctx, path, outDir)
	}
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), models.ErrNoContent)
	}
	return pages, nil
}
