// Package overlay implements the full-desktop selection surface: four dimming
// panels around a highlighted hole, a size readout and a small key map.
package overlay

import (
	"image"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

const (
	occluderOpacity  = 0.45
	highlightOpacity = 1.0
)

var occluderIDs = [4]string{"top", "right", "bottom", "left"}

// Surface is the modal selection overlay. It is not safe for concurrent use;
// all calls are expected on the event loop.
type Surface struct {
	host   Host
	bounds geometry.Size

	occluders    [4]Region
	highlight    Region
	hasSelection bool
	label        *Label

	keys      map[KeyCode]func()
	onEvent   func(Event)
	onConfirm func(geometry.Rect)
	onCancel  func()

	opened bool
	closed bool
}

// NewSurface creates a hidden surface over host
func NewSurface(host Host) *Surface {
	s := &Surface{
		host:   host,
		bounds: host.Bounds(),
		label:  NewLabel(),
		keys:   make(map[KeyCode]func()),
	}
	for i := range s.occluders {
		s.occluders[i] = Region{ID: occluderIDs[i]}
		s.occluders[i].SetOpacity(occluderOpacity)
	}
	s.highlight = Region{ID: "highlight"}
	s.highlight.SetOpacity(highlightOpacity)
	s.BindKey(KeyEscape, s.escape)
	return s
}

// Bounds is the size of the desktop the surface spans
func (s *Surface) Bounds() geometry.Size {
	return s.bounds
}

// OnEvent sets the receiver of pointer and key events
func (s *Surface) OnEvent(fn func(Event)) { s.onEvent = fn }

// OnConfirm sets the selectionConfirmed handler
func (s *Surface) OnConfirm(fn func(geometry.Rect)) { s.onConfirm = fn }

// OnCancel sets the cancelled handler
func (s *Surface) OnCancel(fn func()) { s.onCancel = fn }

// Open shows the surface and starts the input grab
func (s *Surface) Open() error {
	if s.opened || s.closed {
		return nil
	}
	if err := s.host.Show(s.dispatch); err != nil {
		return err
	}
	s.opened = true
	s.repaint()
	return nil
}

// Close releases the grab and frees the host. Safe to call repeatedly.
func (s *Surface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.onEvent = nil
	return s.host.Destroy()
}

// Closed reports whether Close has been called
func (s *Surface) Closed() bool {
	return s.closed
}

// SetSelection shows the highlight at r and recomputes the occluders so
// they tile the rest of the surface.
func (s *Surface) SetSelection(r geometry.Rect) {
	r = r.Clamp(s.bounds)
	occ := geometry.Occluders(r, s.bounds)
	for i := range s.occluders {
		s.occluders[i].Rect = occ[i]
		s.occluders[i].Visible = true
	}
	s.highlight.Rect = r
	s.highlight.Visible = true
	s.hasSelection = true
	s.repaint()
}

// ClearSelection hides every region
func (s *Surface) ClearSelection() {
	for i := range s.occluders {
		s.occluders[i].Visible = false
	}
	s.highlight.Visible = false
	s.hasSelection = false
	s.repaint()
}

// Selection returns the highlighted rect, ok=false when none is shown
func (s *Surface) Selection() (geometry.Rect, bool) {
	if !s.highlight.Visible {
		return geometry.Rect{}, false
	}
	return s.highlight.Rect, true
}

// HasSelection reports whether the highlight is shown
func (s *Surface) HasSelection() bool {
	return s.hasSelection
}

// Regions returns the four occluders and the highlight
func (s *Surface) Regions() ([4]Region, Region) {
	return s.occluders, s.highlight
}

// Confirm emits selectionConfirmed for a non-empty selection. Returns false
// without emitting when there is nothing to capture.
func (s *Surface) Confirm() bool {
	if s.closed {
		return false
	}
	r, ok := s.Selection()
	if !ok || r.Empty() {
		logger.WithComponent("overlay").Debug().
			Bool("has_selection", ok).
			Str("rect", r.String()).
			Msg("Ignoring confirm without a usable selection")
		return false
	}
	if s.onConfirm != nil {
		s.onConfirm(r)
	}
	return true
}

// Cancel emits cancelled
func (s *Surface) Cancel() {
	if s.closed {
		return
	}
	if s.onCancel != nil {
		s.onCancel()
	}
}

// BindKey registers handler for code, replacing any previous binding
func (s *Surface) BindKey(code KeyCode, handler func()) {
	if handler == nil {
		delete(s.keys, code)
		return
	}
	s.keys[code] = handler
}

// HandleKey runs the handler bound to code. Unbound keys are ignored.
func (s *Surface) HandleKey(code KeyCode) {
	if h, ok := s.keys[code]; ok {
		h()
	}
}

func (s *Surface) escape() {
	if s.hasSelection {
		s.ClearSelection()
		return
	}
	s.Cancel()
}

// dispatch routes host events. Keys fall back to the key map when no event
// receiver is installed.
func (s *Surface) dispatch(ev Event) {
	if s.closed {
		return
	}
	if s.onEvent != nil {
		s.onEvent(ev)
		return
	}
	if ev.Kind == EventKey {
		s.HandleKey(ev.Key)
	}
}

// Frame builds the paint description for the current state
func (s *Surface) Frame() Frame {
	f := Frame{
		Occluders:    s.occluders,
		Highlight:    s.highlight,
		HasSelection: s.hasSelection,
	}
	if s.highlight.Visible && !s.highlight.Rect.Empty() {
		img := s.label.Render(s.highlight.Rect)
		f.Label = img
		f.LabelAt = s.label.Position(s.highlight.Rect, img.Bounds().Size(), s.bounds)
	}
	return f
}

// Render paints the frame into an RGBA image of the desktop size. Hosts
// without a native fill primitive use this.
func (s *Surface) Render() *image.RGBA {
	return RenderFrame(s.Frame(), s.bounds)
}

func (s *Surface) repaint() {
	if !s.opened || s.closed {
		return
	}
	if err := s.host.Paint(s.Frame()); err != nil {
		logger.WithComponent("overlay").Warn().Err(err).Msg("Failed to paint overlay")
	}
}
