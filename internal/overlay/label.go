package overlay

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

// Label renders the "WxH" readout shown next to the selection
type Label struct {
	textColor color.RGBA
	bgColor   color.RGBA
	opacity   float64
	padding   int
	margin    int
}

// NewLabel creates a label with the default white-on-dark style
func NewLabel() *Label {
	return &Label{
		textColor: color.RGBA{255, 255, 255, 255},
		bgColor:   color.RGBA{20, 20, 20, 200},
		opacity:   1.0,
		padding:   4,
		margin:    6,
	}
}

// Text formats the readout for a selection
func (l *Label) Text(sel geometry.Rect) string {
	return fmt.Sprintf("%dx%d", sel.Width, sel.Height)
}

// Render draws the readout for sel into a new image
func (l *Label) Render(sel geometry.Rect) *image.RGBA {
	face := basicfont.Face7x13
	text := l.Text(sel)

	measure := &font.Drawer{Face: face}
	textWidth := measure.MeasureString(text).Ceil()
	lineHeight := face.Metrics().Height.Ceil()

	w := textWidth + l.padding*2
	h := lineHeight + l.padding*2
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	DrawRectangle(img, 0, 0, w, h, l.bgColor, l.opacity)

	textImg := image.NewRGBA(image.Rect(0, 0, textWidth, lineHeight))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(l.textColor),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: face.Metrics().Ascent},
	}
	d.DrawString(text)
	BlendImage(img, textImg, l.padding, l.padding, l.opacity)

	return img
}

// Position places a label of the given size below the selection's bottom
// right corner, flipping inside the selection when it would leave bounds.
func (l *Label) Position(sel geometry.Rect, size image.Point, bounds geometry.Size) image.Point {
	x := sel.Right() - size.X
	y := sel.Bottom() + l.margin
	if y+size.Y > bounds.Height {
		y = sel.Bottom() - size.Y - l.margin
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x+size.X > bounds.Width {
		x = max(bounds.Width-size.X, 0)
	}
	return image.Point{X: x, Y: y}
}
