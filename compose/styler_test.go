package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

func near(t *testing.T, want, got color.NRGBA, tol int) {
	t.Helper()
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			return -d
		}
		return d
	}
	assert.LessOrEqual(t, diff(want.R, got.R), tol, "R")
	assert.LessOrEqual(t, diff(want.G, got.G), tol, "G")
	assert.LessOrEqual(t, diff(want.B, got.B), tol, "B")
}

func TestNearCanvasRatioIsResized(t *testing.T) {
	s := NewStyler(320, 180)
	// 1.92 vs 1.78: within 10% of the canvas ratio
	res := s.Style(solid(192, 100, color.NRGBA{R: 200, A: 255}))
	assert.Equal(t, LayoutResized, res.Layout)
	assert.Equal(t, image.Rect(0, 0, 320, 180), res.Image.Bounds())
	near(t, color.NRGBA{R: 200, A: 255}, res.Image.NRGBAAt(160, 90), 2)
}

func TestSquareSlideIsLetterboxed(t *testing.T) {
	s := NewStyler(320, 180)
	src := color.NRGBA{R: 20, G: 120, B: 220, A: 255}
	res := s.Style(solid(100, 100, src))
	assert.Equal(t, LayoutLetterboxed, res.Layout)
	assert.Equal(t, image.Rect(0, 0, 320, 180), res.Image.Bounds())

	// foreground 162x162 plus a 4px border is centered at x=75..244
	near(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, res.Image.NRGBAAt(76, 90), 2)
	near(t, src, res.Image.NRGBAAt(160, 90), 2)
	// blurred background of a solid image keeps its color
	near(t, src, res.Image.NRGBAAt(10, 90), 3)
	assert.Equal(t, uint8(255), res.Image.NRGBAAt(0, 0).A)
}

func TestStyleIsDeterministic(t *testing.T) {
	s := NewStyler(160, 90)
	src := solid(50, 80, color.NRGBA{G: 90, A: 255})
	a := s.Style(src)
	b := s.Style(src)
	assert.Equal(t, a.Image.Pix, b.Image.Pix)
}

func TestNeedsLetterbox(t *testing.T) {
	s := NewStyler(1920, 1080)
	assert.False(t, s.NeedsLetterbox(1920, 1000))
	assert.False(t, s.NeedsLetterbox(1280, 720))
	assert.True(t, s.NeedsLetterbox(1000, 1000))
	assert.True(t, s.NeedsLetterbox(1024, 768))
	assert.True(t, s.NeedsLetterbox(0, 10))
}
