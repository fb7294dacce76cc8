package window

import (
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

// Type is the EWMH window type, reduced to what selection cares about
type Type int

const (
	TypeOther Type = iota
	TypeNormal
	TypeDialog
	TypeModalDialog
	TypeDock
	TypeDesktop
)

func (t Type) String() string {
	switch t {
	case TypeNormal:
		return "normal"
	case TypeDialog:
		return "dialog"
	case TypeModalDialog:
		return "modal-dialog"
	case TypeDock:
		return "dock"
	case TypeDesktop:
		return "desktop"
	default:
		return "other"
	}
}

// Stacking layers, bottom to top
const (
	LayerDesktop    = 0
	LayerBelow      = 1
	LayerNormal     = 2
	LayerAbove      = 4
	LayerDock       = 4
	LayerFullscreen = 5
)

// Margins are per-edge pixel extents
type Margins struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// Monitor is one output's area on the desktop
type Monitor struct {
	Name    string        `json:"name"`
	Primary bool          `json:"primary"`
	Rect    geometry.Rect `json:"rect"`
}

// Window is a top-level client window
type Window struct {
	ID      uint32        `json:"id"`
	Title   string        `json:"title"`
	Class   string        `json:"class"`
	Type    Type          `json:"type"`
	Visible bool          `json:"visible"`
	Layer   int           `json:"layer"`
	Frame   geometry.Rect `json:"frame"`
	// Shadow is the client-side shadow drawn outside Frame
	Shadow Margins `json:"shadow"`
}

// Registry enumerates monitors and windows
type Registry interface {
	// Monitors returns the active outputs
	Monitors() ([]Monitor, error)
	// Windows returns managed top-level windows, bottom of the stack first
	Windows() ([]Window, error)
}

// Backend is a Registry bound to a display server connection that can
// report monitor configuration changes.
type Backend interface {
	Registry

	// WatchMonitors calls callback after every monitor or resolution
	// change until StopWatching. Runs its own goroutine.
	WatchMonitors(callback func()) error

	// StopWatching stops the watch loop
	StopWatching()

	// Close closes the display connection
	Close() error

	// Name returns the backend name
	Name() string
}

// DesktopRect is the union of all monitor rects
func DesktopRect(monitors []Monitor) geometry.Rect {
	rects := make([]geometry.Rect, 0, len(monitors))
	for _, m := range monitors {
		rects = append(rects, m.Rect)
	}
	return geometry.Union(rects...)
}
