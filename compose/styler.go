// Package compose turns a slide image and its narration into a fixed-size video clip.
package compose

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

type Layout string

const (
	// LayoutResized: the slide already has roughly the canvas aspect ratio.
	LayoutResized Layout = "resized"
	// LayoutLetterboxed: the slide sits framed on a blurred copy of itself.
	LayoutLetterboxed Layout = "letterboxed"
)

const (
	ratioTolerance = 0.10
	blurSigma      = 20
	foregroundFill = 0.90
	borderWidth    = 4
)

type StyleResult struct {
	Image  *image.NRGBA
	Layout Layout
}

// Styler places slides on a fixed canvas. It is pure: the same input always yields the
// same pixels.
type Styler struct {
	Width  int
	Height int
}

func NewStyler(width, height int) *Styler {
	return &Styler{Width: width, Height: height}
}

// NeedsLetterbox reports whether a w×h image differs from the canvas aspect ratio by
// 10% or more, relative to the canvas ratio.
func (s *Styler) NeedsLetterbox(w, h int) bool {
	if w <= 0 || h <= 0 {
		return true
	}
	target := float64(s.Width) / float64(s.Height)
	ratio := float64(w) / float64(h)
	return math.Abs(ratio-target)/target >= ratioTolerance
}

func (s *Styler) Style(img image.Image) StyleResult {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if !s.NeedsLetterbox(w, h) {
		return StyleResult{Image: imaging.Resize(img, s.Width, s.Height, imaging.Lanczos), Layout: LayoutResized}
	}

	// cover + center crop, then blur
	bg := imaging.Fill(img, s.Width, s.Height, imaging.Center, imaging.Lanczos)
	bg = imaging.Blur(bg, blurSigma)

	scale := math.Min(float64(s.Width)/float64(w), float64(s.Height)/float64(h)) * foregroundFill
	fgW := max(1, int(float64(w)*scale))
	fgH := max(1, int(float64(h)*scale))
	fg := imaging.Resize(img, fgW, fgH, imaging.Lanczos)

	card := imaging.New(fgW+2*borderWidth, fgH+2*borderWidth, color.White)
	card = imaging.Overlay(card, fg, image.Pt(borderWidth, borderWidth), 1.0)

	canvas := imaging.New(s.Width, s.Height, color.Black)
	canvas = imaging.Paste(canvas, bg, image.Pt(0, 0))
	cw, ch := card.Bounds().Dx(), card.Bounds().Dy()
	canvas = imaging.Paste(canvas, card, image.Pt((s.Width-cw)/2, (s.Height-ch)/2))
	return StyleResult{Image: canvas, Layout: LayoutLetterboxed}
}
