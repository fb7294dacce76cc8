package overlay

import (
	"image"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

// EventKind identifies a pointer or keyboard event delivered by a Host
type EventKind int

const (
	EventEnter EventKind = iota
	EventMotion
	EventButtonDown
	EventButtonUp
	EventKey
)

// Pointer buttons
const (
	ButtonLeft   = 1
	ButtonMiddle = 2
	ButtonRight  = 3
)

// Event is an input event in surface coordinates
type Event struct {
	Kind   EventKind
	X, Y   int
	Button int
	Key    KeyCode
}

// Frame is everything a host needs to paint the surface once
type Frame struct {
	Occluders    [4]Region
	Highlight    Region
	HasSelection bool
	Label        *image.RGBA
	LabelAt      image.Point
}

// Host is the platform side of a Surface: a topmost full-desktop window that
// grabs input while shown.
type Host interface {
	// Bounds is the size of the whole desktop
	Bounds() geometry.Size
	// Show maps the surface, grabs pointer and keyboard, sets the crosshair
	// cursor and starts delivering events to handler.
	Show(handler func(Event)) error
	// Paint redraws the surface
	Paint(frame Frame) error
	// Destroy releases the grabs, restores the cursor and frees the surface.
	// It must be safe to call more than once.
	Destroy() error
}
