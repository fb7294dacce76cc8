package grabber

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/overlay"
)

// Session is one capture interaction over an overlay surface. It ends with
// exactly one of the screenshot or cancel callbacks, or with neither when
// torn down through Destroy. All methods run on the event loop.
type Session struct {
	id         string
	strategy   Strategy
	surface    *overlay.Surface
	highlights []geometry.Rect
	log        *zerolog.Logger

	dragging         bool
	anchorX, anchorY int

	onScreenshot func(geometry.Rect)
	onCancel     func()

	started bool
	done    bool
}

// New creates a session. highlights is only used by the highlight strategies.
func New(strategy Strategy, surface *overlay.Surface, highlights []geometry.Rect) *Session {
	id := uuid.NewString()
	s := &Session{
		id:         id,
		strategy:   strategy,
		surface:    surface,
		highlights: highlights,
		log:        logger.WithSession("grabber", id),
	}

	surface.OnEvent(s.handleEvent)
	surface.OnConfirm(s.confirmed)
	surface.OnCancel(s.Cancel)

	if strategy.highlights() {
		// hover selection follows the pointer, so Escape has nothing to clear
		surface.BindKey(overlay.KeyEscape, s.Cancel)
	}
	return s
}

// ID is a unique session identifier
func (s *Session) ID() string { return s.id }

// Strategy returns the session strategy
func (s *Session) Strategy() Strategy { return s.strategy }

// Surface returns the overlay the session drives
func (s *Session) Surface() *overlay.Surface { return s.surface }

// Done reports whether the session has finished
func (s *Session) Done() bool { return s.done }

// OnScreenshot sets the handler receiving the confirmed rectangle
func (s *Session) OnScreenshot(fn func(geometry.Rect)) { s.onScreenshot = fn }

// OnCancel sets the handler called when the user cancels
func (s *Session) OnCancel(fn func()) { s.onCancel = fn }

// Start opens the overlay. Desktop sessions confirm the full desktop
// immediately without showing anything.
func (s *Session) Start() error {
	if s.started || s.done {
		return nil
	}
	s.started = true

	s.log.Debug().
		Str("strategy", s.strategy.String()).
		Int("highlights", len(s.highlights)).
		Msg("Session started")

	if s.strategy == Desktop {
		b := s.surface.Bounds()
		s.surface.SetSelection(geometry.Rect{Width: b.Width, Height: b.Height})
		if !s.surface.Confirm() {
			s.Cancel()
		}
		return nil
	}

	if err := s.surface.Open(); err != nil {
		s.Destroy()
		return err
	}
	return nil
}

// SetHighlights replaces the highlight list and clears a stale selection
func (s *Session) SetHighlights(highlights []geometry.Rect) {
	s.highlights = highlights
	if s.strategy.highlights() {
		s.surface.ClearSelection()
	}
}

// Cancel ends the session and emits cancel once. Later calls, and calls
// after a screenshot was emitted, do nothing.
func (s *Session) Cancel() {
	if s.done {
		return
	}
	s.finish()
	s.log.Debug().Msg("Session cancelled")
	if s.onCancel != nil {
		s.onCancel()
	}
}

// Destroy ends the session without emitting anything
func (s *Session) Destroy() {
	if s.done {
		return
	}
	s.finish()
}

func (s *Session) finish() {
	s.done = true
	s.dragging = false
	if err := s.surface.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close overlay")
	}
}

func (s *Session) confirmed(r geometry.Rect) {
	if s.done {
		return
	}
	// tear the overlay down first so it is not part of the capture
	s.finish()
	s.log.Info().Str("rect", r.String()).Msg("Selection confirmed")
	if s.onScreenshot != nil {
		s.onScreenshot(r)
	}
}

func (s *Session) handleEvent(ev overlay.Event) {
	switch ev.Kind {
	case overlay.EventEnter:
		s.OnEnter(ev.X, ev.Y)
	case overlay.EventMotion:
		s.OnMotion(ev.X, ev.Y)
	case overlay.EventButtonDown:
		s.OnButtonDown(ev.Button, ev.X, ev.Y)
	case overlay.EventButtonUp:
		s.OnButtonUp(ev.Button, ev.X, ev.Y)
	case overlay.EventKey:
		s.OnKey(ev.Key)
	}
}

// OnEnter handles the pointer entering the surface
func (s *Session) OnEnter(x, y int) {
	if s.done {
		return
	}
	if s.strategy.highlights() {
		s.hover(x, y)
	}
}

// OnMotion handles pointer movement
func (s *Session) OnMotion(x, y int) {
	if s.done {
		return
	}
	switch {
	case s.strategy.highlights():
		s.hover(x, y)
	case s.strategy == FreeDrag && s.dragging:
		s.surface.SetSelection(geometry.FromPoints(s.anchorX, s.anchorY, x, y, s.surface.Bounds()))
	}
}

// OnButtonDown handles a button press
func (s *Session) OnButtonDown(button, x, y int) {
	if s.done {
		return
	}
	if button == overlay.ButtonRight {
		s.Cancel()
		return
	}
	if button != overlay.ButtonLeft {
		return
	}

	switch {
	case s.strategy.highlights():
		if s.surface.HasSelection() {
			s.surface.Confirm()
		}
	case s.strategy == FreeDrag:
		s.dragging = true
		s.anchorX, s.anchorY = x, y
		s.surface.ClearSelection()
	}
}

// OnButtonUp handles a button release
func (s *Session) OnButtonUp(button, x, y int) {
	if s.done || s.strategy != FreeDrag || button != overlay.ButtonLeft || !s.dragging {
		return
	}
	s.dragging = false
	if !s.surface.HasSelection() {
		return
	}
	// empty drags are declined by Confirm and the session stays open
	s.surface.Confirm()
}

// OnKey dispatches a key through the surface key map
func (s *Session) OnKey(code overlay.KeyCode) {
	if s.done {
		return
	}
	if code == overlay.KeyEscape && s.dragging {
		s.dragging = false
	}
	s.surface.HandleKey(code)
}

func (s *Session) hover(x, y int) {
	if r, ok := HitTest(s.highlights, x, y); ok {
		if cur, shown := s.surface.Selection(); shown && cur == r.Clamp(s.surface.Bounds()) {
			return
		}
		s.surface.SetSelection(r)
		return
	}
	if s.surface.HasSelection() {
		s.surface.ClearSelection()
	}
}
