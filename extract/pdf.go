package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"SlideToVideo-server/logger"
	"SlideToVideo-server/media"
)

// PDFExtractor renders pages with poppler's pdftoppm and reads text with pdftotext.
type PDFExtractor struct {
	RenderBin string
	TextBin   string
	DPI       int
	Runner    media.Runner
}

func NewPDFExtractor(runner media.Runner) *PDFExtractor {
	return &PDFExtractor{RenderBin: "pdftoppm", TextBin: "pdftotext", DPI: 144, Runner: runner}
}

func (e *PDFExtractor) Extract(ctx context.Context, path, outDir string) ([]Page, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	prefix := filepath.Join(outDir, "page")
	if _, err := e.Runner.Run(ctx, "", e.RenderBin, "-png", "-r", strconv.Itoa(e.DPI), path, prefix); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	images, err := renderedPages(outDir)
	if err != nil {
		return nil, err
	}

	out, err := e.Runner.Run(ctx, "", e.TextBin, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	texts := strings.Split(string(out), "\f")

	pages := make([]Page, 0, len(images))
	for i, img := range images {
		p := Page{Index: i + 1, ImagePath: img}
		if i < len(texts) {
			p.Text = cleanText(texts[i])
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// renderedPages lists pdftoppm output (page-1.png or page-01.png ...) in page order.
func renderedPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	num := func(p string) int {
		s := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "page-"), ".png")
		n, _ := strconv.Atoi(s)
		return n
	}
	sort.Slice(matches, func(i, j int) bool { return num(matches[i]) < num(matches[j]) })
	return matches, nil
}

func cleanText(s string) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

// OfficeExtractor converts presentations to PDF with LibreOffice, then reads the PDF.
type OfficeExtractor struct {
	Bin    string
	PDF    *PDFExtractor
	Runner media.Runner
}

func NewOfficeExtractor(runner media.Runner, pdf *PDFExtractor) *OfficeExtractor {
	return &OfficeExtractor{Bin: "soffice", PDF: pdf, Runner: runner}
}

func (e *OfficeExtractor) Extract(ctx context.Context, path, outDir string) ([]Page, error) {
	convDir := filepath.Join(outDir, "converted")
	if err := os.MkdirAll(convDir, 0o755); err != nil {
		return nil, err
	}
	if _, err := e.Runner.Run(ctx, "", e.Bin, "--headless", "--convert-to", "pdf", "--outdir", convDir, path); err != nil {
		return nil, fmt.Errorf("convert %s to pdf: %w", filepath.Base(path), err)
	}
	pdf := filepath.Join(convDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".pdf")
	if _, err := os.Stat(pdf); err != nil {
		return nil, fmt.Errorf("converted pdf missing: %w", err)
	}
	pages, err := e.PDF.Extract(ctx, pdf, outDir)
	if err != nil {
		return nil, err
	}
	// The PDF export drops speaker notes; pptx keeps them in notesSlide parts.
	if strings.EqualFold(filepath.Ext(path), ".pptx") {
		notes, err := PPTXNotes(path)
		if err != nil {
			logger.WarnCF("extract", "speaker notes unreadable", map[string]any{"file": filepath.Base(path), "error": err.Error()})
		}
		for i := range pages {
			if n, ok := notes[pages[i].Index]; ok {
				pages[i].Notes = n
			}
		}
	}
	return pages, nil
}
