package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

// Region is one child area of the surface: an occluder panel or the
// selection highlight.
type Region struct {
	ID      string
	Rect    geometry.Rect
	Visible bool
	Opacity float64 // 0.0 to 1.0
}

// SetOpacity sets the region opacity, clamped to [0, 1]
func (r *Region) SetOpacity(opacity float64) {
	r.Opacity = clamp01(opacity)
}

// BlendImage blends src onto dst at (x, y) with the given opacity, clipping
// to dst bounds.
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	a := alpha8(opacity)
	if a == 0 {
		return
	}
	sb := src.Bounds()
	r := image.Rect(x, y, x+sb.Dx(), y+sb.Dy())

	var mask image.Image
	if a < 0xff {
		mask = image.NewUniform(color.Alpha{A: a})
	}
	draw.DrawMask(dst, r, src, sb.Min, mask, image.Point{}, draw.Over)
}

// DrawRectangle fills a rectangle on dst with c at the given opacity
func DrawRectangle(dst *image.RGBA, x, y, width, height int, c color.Color, opacity float64) {
	a := alpha8(opacity)
	if width <= 0 || height <= 0 || a == 0 {
		return
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(uint32(n.A) * uint32(a) / 0xff)

	// a uniform source over *image.RGBA takes draw's fill fast path
	draw.Draw(dst, image.Rect(x, y, x+width, y+height), image.NewUniform(n), image.Point{}, draw.Over)
}

func alpha8(opacity float64) uint8 {
	return uint8(clamp01(opacity)*255 + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
