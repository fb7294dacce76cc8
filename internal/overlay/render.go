package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

var (
	dimColor     = color.RGBA{0, 0, 0, 255}
	outlineColor = color.RGBA{255, 255, 255, 255}
)

// OutlineWidth is the highlight border thickness in pixels
const OutlineWidth = 1

// RenderFrame draws frame onto a transparent desktop-sized image
func RenderFrame(frame Frame, bounds geometry.Size) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, bounds.Width, bounds.Height))
	DrawFrame(img, frame)
	return img
}

// DrawFrame composites frame over dst, typically a copy of the desktop
func DrawFrame(dst *image.RGBA, frame Frame) {
	if !frame.HasSelection {
		b := dst.Bounds()
		DrawRectangle(dst, b.Min.X, b.Min.Y, b.Dx(), b.Dy(), dimColor, occluderOpacity)
		return
	}

	for _, o := range frame.Occluders {
		if !o.Visible {
			continue
		}
		DrawRectangle(dst, o.Rect.Left, o.Rect.Top, o.Rect.Width, o.Rect.Height, dimColor, o.Opacity)
	}

	if frame.Highlight.Visible {
		for _, edge := range OutlineEdges(frame.Highlight.Rect) {
			DrawRectangle(dst, edge.Left, edge.Top, edge.Width, edge.Height, outlineColor, frame.Highlight.Opacity)
		}
	}

	if frame.Label != nil {
		b := frame.Label.Bounds()
		r := image.Rectangle{Min: frame.LabelAt, Max: frame.LabelAt.Add(b.Size())}
		draw.Draw(dst, r, frame.Label, b.Min, draw.Over)
	}
}

// OutlineEdges returns the four border strips drawn inside r
func OutlineEdges(r geometry.Rect) []geometry.Rect {
	if r.Empty() {
		return nil
	}
	w := min(OutlineWidth, r.Width)
	h := min(OutlineWidth, r.Height)
	return []geometry.Rect{
		{Left: r.Left, Top: r.Top, Width: r.Width, Height: h},
		{Left: r.Left, Top: r.Bottom() - h, Width: r.Width, Height: h},
		{Left: r.Left, Top: r.Top, Width: w, Height: r.Height},
		{Left: r.Right() - w, Top: r.Top, Width: w, Height: r.Height},
	}
}
