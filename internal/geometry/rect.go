// Package geometry holds the integer rectangle math used by the overlay and
// the selection strategies.
package geometry

import (
	"fmt"
	"image"
)

// Size is a width/height pair, usually the desktop bounds
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Area returns Width*Height, or 0 for a degenerate size
func (s Size) Area() int {
	if s.Width <= 0 || s.Height <= 0 {
		return 0
	}
	return s.Width * s.Height
}

// Rect is a pixel rectangle in desktop coordinates
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// String formats the rect as WxH+X+Y
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.Left, r.Top)
}

// Right is the exclusive right edge
func (r Rect) Right() int { return r.Left + r.Width }

// Bottom is the exclusive bottom edge
func (r Rect) Bottom() int { return r.Top + r.Height }

// Empty reports whether the rect cannot be captured
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the pixel area, 0 when empty
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Contains is the closed hit test used for highlights: both edges count.
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x <= r.Left+r.Width &&
		y >= r.Top && y <= r.Top+r.Height
}

// SetPosition moves the rect
func (r *Rect) SetPosition(left, top int) {
	r.Left = left
	r.Top = top
}

// SetSize resizes the rect
func (r *Rect) SetSize(width, height int) {
	r.Width = width
	r.Height = height
}

// Image converts to an image.Rectangle
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right(), r.Bottom())
}

// FromImage converts an image.Rectangle
func FromImage(ir image.Rectangle) Rect {
	ir = ir.Canon()
	return Rect{Left: ir.Min.X, Top: ir.Min.Y, Width: ir.Dx(), Height: ir.Dy()}
}

// Normalize turns a drag rectangle with possibly negative extents into one
// that lies inside bounds. The result may be empty.
func Normalize(left, top, width, height int, bounds Size) Rect {
	if width < 0 {
		left += width
		width = -width
	}
	if height < 0 {
		top += height
		height = -height
	}
	if left < 0 {
		width += left
		left = 0
	}
	if top < 0 {
		height += top
		top = 0
	}

	// a rect starting past the far edge collapses onto it
	if left > bounds.Width {
		left = max(bounds.Width, 0)
	}
	if top > bounds.Height {
		top = max(bounds.Height, 0)
	}
	if left+width > bounds.Width {
		width = bounds.Width - left
	}
	if top+height > bounds.Height {
		height = bounds.Height - top
	}

	return Rect{
		Left:   left,
		Top:    top,
		Width:  max(width, 0),
		Height: max(height, 0),
	}
}

// FromPoints normalizes the rectangle spanned by a drag anchor and the
// current pointer position.
func FromPoints(x0, y0, x1, y1 int, bounds Size) Rect {
	return Normalize(x0, y0, x1-x0, y1-y0, bounds)
}

// Clamp normalizes r against bounds
func (r Rect) Clamp(bounds Size) Rect {
	return Normalize(r.Left, r.Top, r.Width, r.Height, bounds)
}

// Occluders returns the four panels around sel, in top, right, bottom, left
// order. sel is clamped to bounds first so the panels and the hole always
// tile the surface exactly.
func Occluders(sel Rect, bounds Size) [4]Rect {
	s := sel.Clamp(bounds)
	return [4]Rect{
		{Left: 0, Top: 0, Width: bounds.Width, Height: s.Top},
		{Left: s.Right(), Top: s.Top, Width: bounds.Width - s.Right(), Height: s.Height},
		{Left: 0, Top: s.Bottom(), Width: bounds.Width, Height: bounds.Height - s.Bottom()},
		{Left: 0, Top: s.Top, Width: s.Left, Height: s.Height},
	}
}

// Union returns the smallest rect covering all non-empty rects
func Union(rects ...Rect) Rect {
	var u image.Rectangle
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		u = u.Union(r.Image())
	}
	return FromImage(u)
}

// Grow expands the rect by the given margins
func (r Rect) Grow(left, right, top, bottom int) Rect {
	return Rect{
		Left:   r.Left - left,
		Top:    r.Top - top,
		Width:  r.Width + left + right,
		Height: r.Height + top + bottom,
	}
}
