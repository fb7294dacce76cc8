// Package grabber implements the capture session state machine that turns
// pointer input on the overlay into a capture rectangle.
package grabber

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

// Strategy selects how a session derives its rectangle
type Strategy int

const (
	Desktop Strategy = iota
	MonitorHighlight
	WindowHighlight
	FreeDrag
)

// Strategies lists every strategy in menu order
var Strategies = []Strategy{Desktop, MonitorHighlight, WindowHighlight, FreeDrag}

// String returns the action name used by menus, hotkeys and the API
func (s Strategy) String() string {
	switch s {
	case Desktop:
		return "desktop"
	case MonitorHighlight:
		return "monitor"
	case WindowHighlight:
		return "window"
	case FreeDrag:
		return "selection"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Title is the human readable menu label
func (s Strategy) Title() string {
	switch s {
	case Desktop:
		return "Desktop"
	case MonitorHighlight:
		return "Monitor"
	case WindowHighlight:
		return "Window"
	case FreeDrag:
		return "Selection"
	default:
		return s.String()
	}
}

// ParseStrategy accepts an action name ("desktop", "monitor", "window",
// "selection") or the long form ("monitor-highlight", "free-drag", ...).
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "desktop", "all":
		return Desktop, nil
	case "monitor", "monitor-highlight":
		return MonitorHighlight, nil
	case "window", "window-highlight":
		return WindowHighlight, nil
	case "selection", "free-drag", "area":
		return FreeDrag, nil
	}
	return 0, fmt.Errorf("unknown capture mode %q (use desktop, monitor, window or selection)", name)
}

// highlights reports whether the strategy picks from a highlight list
func (s Strategy) highlights() bool {
	return s == MonitorHighlight || s == WindowHighlight
}

// MonitorHighlights returns monitor rects in registry order
func MonitorHighlights(monitors []window.Monitor) []geometry.Rect {
	out := make([]geometry.Rect, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, m.Rect)
	}
	return out
}

// selectableTypes are the window types offered for window capture
var selectableTypes = map[window.Type]bool{
	window.TypeNormal:      true,
	window.TypeDialog:      true,
	window.TypeModalDialog: true,
}

// WindowHighlights filters windows to visible normal and dialog windows and
// orders them lowest stacking layer first. The sort is stable, so windows
// on one layer keep registry order. Overlapping entries are kept; hover
// picks the first match. With shadows the client-side shadow is included.
func WindowHighlights(windows []window.Window, shadows bool) []geometry.Rect {
	picked := make([]window.Window, 0, len(windows))
	for _, w := range windows {
		if !w.Visible || !selectableTypes[w.Type] {
			continue
		}
		picked = append(picked, w)
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Layer < picked[j].Layer
	})

	out := make([]geometry.Rect, 0, len(picked))
	for _, w := range picked {
		r := w.Frame
		if shadows {
			r = r.Grow(w.Shadow.Left, w.Shadow.Right, w.Shadow.Top, w.Shadow.Bottom)
		}
		out = append(out, r)
	}
	return out
}

// HitTest returns the first highlight containing (x, y)
func HitTest(highlights []geometry.Rect, x, y int) (geometry.Rect, bool) {
	for _, r := range highlights {
		if r.Contains(x, y) {
			return r, true
		}
	}
	return geometry.Rect{}, false
}
