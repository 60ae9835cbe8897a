package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"SlideToVideo-server/models"

	"gopkg.in/yaml.v2"
)

// ManifestFile is the name looked up when a directory is given.
const ManifestFile = "deck.yaml"

type manifest struct {
	Title  string `yaml:"title"`
	Slides []struct {
		Image string `yaml:"image"`
		Text  string `yaml:"text"`
		Notes string `yaml:"notes"`
	} `yaml:"slides"`
}

// ManifestExtractor reads decks that were already rendered to images, described by a
// YAML manifest. Image paths are relative to the manifest.
type ManifestExtractor struct{}

func (ManifestExtractor) Extract(ctx context.Context, path, outDir string) ([]Page, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ManifestFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	base := filepath.Dir(path)
	pages := make([]Page, 0, len(m.Slides))
	for i, s := range m.Slides {
		img := s.Image
		if img != "" && !filepath.IsAbs(img) {
			img = filepath.Join(base, img)
		}
		if _, err := os.Stat(img); err != nil {
			return nil, fmt.Errorf("slide %d image %q: %w", i+1, s.Image, models.ErrMissingAsset)
		}
		pages = append(pages, Page{Index: i + 1, Text: s.Text, Notes: s.Notes, ImagePath: img})
	}
	return pages, nil
}
