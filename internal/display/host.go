// Package display is the X11 side of the selection overlay and the capture
// flash: override-redirect windows drawn with PutImage.
package display

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/overlay"
)

// crosshair glyph in the standard cursor font
const (
	cursorCrosshair     = 34
	cursorCrosshairMask = 35
)

const (
	grabAttempts = 10
	grabInterval = 50 * time.Millisecond
)

// Host is an overlay.Host backed by a topmost X11 window spanning the root.
// Each Host shows at most once; create one per selection session.
type Host struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	post   func(func())

	win    xproto.Window
	gc     xproto.Gcontext
	cursor xproto.Cursor
	format pixmapFormat

	// argb is false when the server has no 32-bit visual; the overlay is
	// then drawn over a snapshot of the desktop taken before mapping.
	argb     bool
	backdrop *image.RGBA

	keysyms    []xproto.Keysym
	perKeycode int
	minKeycode xproto.Keycode

	mu        sync.Mutex
	lastFrame overlay.Frame
	destroyed bool

	// buf is reused across paints; paints come from the loop and from Expose
	paintMu sync.Mutex
	buf     *image.RGBA
}

var _ overlay.Host = (*Host)(nil)

// NewHost connects to the X server. post schedules event delivery on the
// caller's event loop.
func NewHost(post func(func())) (*Host, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Host{
		conn:   conn,
		screen: xproto.Setup(conn).DefaultScreen(conn),
		post:   post,
	}, nil
}

// Bounds is the root window size
func (h *Host) Bounds() geometry.Size {
	return geometry.Size{Width: int(h.screen.WidthInPixels), Height: int(h.screen.HeightInPixels)}
}

// Show creates, maps and grabs the overlay window
func (h *Host) Show(handler func(overlay.Event)) error {
	log := logger.WithComponent("display")

	depth, visual, ok := h.argbVisual()
	h.argb = ok
	if !ok {
		depth, visual = h.screen.RootDepth, h.screen.RootVisual
		backdrop, err := grabRoot(h.conn, h.screen)
		if err != nil {
			return fmt.Errorf("failed to snapshot desktop: %w", err)
		}
		h.backdrop = backdrop
		log.Debug().Msg("No ARGB visual, drawing over a desktop snapshot")
	}

	format, err := formatFor(h.conn, depth)
	if err != nil {
		return err
	}
	h.format = format

	if err := h.createWindow(depth, visual); err != nil {
		return err
	}
	if err := h.setWindowTitle("ScreenGrabber"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := h.setWindowClass("screengrabber", "ScreenGrabber"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(h.conn, h.win).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	if err := h.loadKeymap(); err != nil {
		log.Warn().Err(err).Msg("Failed to load keyboard mapping")
	}
	if err := h.grab(); err != nil {
		return err
	}

	go h.eventLoop(handler)

	log.Info().
		Bool("argb", h.argb).
		Uint32("window_id", uint32(h.win)).
		Msg("Overlay shown")
	return nil
}

// Paint renders frame into the overlay window
func (h *Host) Paint(frame overlay.Frame) error {
	h.mu.Lock()
	h.lastFrame = frame
	destroyed := h.destroyed
	h.mu.Unlock()
	if destroyed || h.win == 0 {
		return nil
	}
	return h.paint(frame)
}

func (h *Host) paint(frame overlay.Frame) error {
	h.paintMu.Lock()
	defer h.paintMu.Unlock()

	if h.buf == nil {
		b := h.Bounds()
		h.buf = image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	}
	if h.argb {
		draw.Draw(h.buf, h.buf.Bounds(), image.Transparent, image.Point{}, draw.Src)
	} else {
		draw.Draw(h.buf, h.buf.Bounds(), h.backdrop, image.Point{}, draw.Src)
	}
	overlay.DrawFrame(h.buf, frame)

	if err := putImage(h.conn, xproto.Drawable(h.win), h.gc, h.format, h.buf); err != nil {
		return err
	}
	h.conn.Sync()
	return nil
}

// Destroy ungrabs and frees everything. Safe to call more than once.
func (h *Host) Destroy() error {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil
	}
	h.destroyed = true
	h.mu.Unlock()

	xproto.UngrabPointer(h.conn, xproto.TimeCurrentTime)
	xproto.UngrabKeyboard(h.conn, xproto.TimeCurrentTime)
	if h.gc != 0 {
		xproto.FreeGC(h.conn, h.gc)
	}
	if h.win != 0 {
		xproto.DestroyWindow(h.conn, h.win)
	}
	if h.cursor != 0 {
		xproto.FreeCursor(h.conn, h.cursor)
	}
	h.conn.Sync()
	h.conn.Close()

	logger.WithComponent("display").Debug().Msg("Overlay destroyed")
	return nil
}

// argbVisual finds a 32-bit TrueColor visual
func (h *Host) argbVisual() (byte, xproto.Visualid, bool) {
	for _, d := range h.screen.AllowedDepths {
		if d.Depth != 32 {
			continue
		}
		for _, v := range d.Visuals {
			if v.Class == xproto.VisualClassTrueColor {
				return d.Depth, v.VisualId, true
			}
		}
	}
	return 0, 0, false
}

func (h *Host) createWindow(depth byte, visual xproto.Visualid) error {
	cursor, err := h.crosshair()
	if err != nil {
		logger.WithComponent("display").Warn().Err(err).Msg("Failed to create crosshair cursor")
		cursor = xproto.CursorNone
	}
	h.cursor = cursor

	colormap := xproto.Colormap(h.screen.DefaultColormap)
	if depth != h.screen.RootDepth {
		colormap, err = xproto.NewColormapId(h.conn)
		if err != nil {
			return fmt.Errorf("failed to create colormap ID: %w", err)
		}
		err = xproto.CreateColormapChecked(h.conn, xproto.ColormapAllocNone, colormap, h.screen.Root, visual).Check()
		if err != nil {
			return fmt.Errorf("failed to create colormap: %w", err)
		}
	}

	win, err := xproto.NewWindowId(h.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	h.win = win

	// values must follow mask bit order
	mask := uint32(xproto.CwBackPixel | xproto.CwBorderPixel | xproto.CwOverrideRedirect |
		xproto.CwEventMask | xproto.CwColormap | xproto.CwCursor)
	values := []uint32{
		0x00000000,
		0x00000000,
		1,
		xproto.EventMaskExposure | xproto.EventMaskEnterWindow | xproto.EventMaskPointerMotion |
			xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease | xproto.EventMaskKeyPress,
		uint32(colormap),
		uint32(cursor),
	}

	size := h.Bounds()
	err = xproto.CreateWindowChecked(
		h.conn,
		depth,
		h.win,
		h.screen.Root,
		0, 0,
		uint16(size.Width), uint16(size.Height),
		0,
		xproto.WindowClassInputOutput,
		visual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	gc, err := xproto.NewGcontextId(h.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context ID: %w", err)
	}
	if err := xproto.CreateGCChecked(h.conn, gc, xproto.Drawable(h.win), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	h.gc = gc
	return nil
}

func (h *Host) crosshair() (xproto.Cursor, error) {
	font, err := xproto.NewFontId(h.conn)
	if err != nil {
		return 0, err
	}
	const name = "cursor"
	if err := xproto.OpenFontChecked(h.conn, font, uint16(len(name)), name).Check(); err != nil {
		return 0, err
	}
	defer xproto.CloseFont(h.conn, font)

	cursor, err := xproto.NewCursorId(h.conn)
	if err != nil {
		return 0, err
	}
	err = xproto.CreateGlyphCursorChecked(h.conn, cursor, font, font,
		cursorCrosshair, cursorCrosshairMask,
		0xffff, 0xffff, 0xffff,
		0, 0, 0,
	).Check()
	if err != nil {
		return 0, err
	}
	return cursor, nil
}

// grab takes pointer and keyboard. A hotkey daemon may still hold the
// keyboard for a moment after the shortcut fired, so retry briefly.
func (h *Host) grab() error {
	pointerMask := uint16(xproto.EventMaskPointerMotion | xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease)

	var lastStatus byte
	for i := 0; i < grabAttempts; i++ {
		reply, err := xproto.GrabPointer(h.conn, false, h.win, pointerMask,
			xproto.GrabModeAsync, xproto.GrabModeAsync,
			xproto.WindowNone, h.cursor, xproto.TimeCurrentTime).Reply()
		if err != nil {
			return fmt.Errorf("failed to grab pointer: %w", err)
		}
		lastStatus = reply.Status
		if reply.Status == xproto.GrabStatusSuccess {
			break
		}
		time.Sleep(grabInterval)
	}
	if lastStatus != xproto.GrabStatusSuccess {
		return fmt.Errorf("pointer grab refused (status %d)", lastStatus)
	}

	for i := 0; i < grabAttempts; i++ {
		reply, err := xproto.GrabKeyboard(h.conn, false, h.win, xproto.TimeCurrentTime,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
		if err != nil {
			return fmt.Errorf("failed to grab keyboard: %w", err)
		}
		lastStatus = reply.Status
		if reply.Status == xproto.GrabStatusSuccess {
			return nil
		}
		time.Sleep(grabInterval)
	}
	return fmt.Errorf("keyboard grab refused (status %d)", lastStatus)
}

func (h *Host) loadKeymap() error {
	setup := xproto.Setup(h.conn)
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	reply, err := xproto.GetKeyboardMapping(h.conn, setup.MinKeycode, count).Reply()
	if err != nil {
		return err
	}
	h.keysyms = reply.Keysyms
	h.perKeycode = int(reply.KeysymsPerKeycode)
	h.minKeycode = setup.MinKeycode
	return nil
}

// keyFor maps a keycode to a KeyCode using the unshifted keysym
func (h *Host) keyFor(code xproto.Keycode) overlay.KeyCode {
	if h.perKeycode == 0 || code < h.minKeycode {
		return overlay.KeyNone
	}
	i := int(code-h.minKeycode) * h.perKeycode
	if i >= len(h.keysyms) {
		return overlay.KeyNone
	}
	return overlay.KeyFromKeysym(uint32(h.keysyms[i]))
}

func (h *Host) eventLoop(handler func(overlay.Event)) {
	log := logger.WithComponent("display")
	d := newDispatcher(h.post, handler)
	for {
		xev, err := h.conn.WaitForEvent()
		if xev == nil && err == nil {
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("X error on overlay connection")
			continue
		}

		if _, ok := xev.(xproto.ExposeEvent); ok {
			h.mu.Lock()
			frame, destroyed := h.lastFrame, h.destroyed
			h.mu.Unlock()
			if !destroyed {
				if err := h.paint(frame); err != nil {
					log.Warn().Err(err).Msg("Failed to repaint on expose")
				}
			}
			continue
		}

		ev, ok := h.translate(xev)
		if !ok {
			continue
		}
		d.dispatch(ev)
	}
}

func (h *Host) translate(xev xgb.Event) (overlay.Event, bool) {
	switch e := xev.(type) {
	case xproto.EnterNotifyEvent:
		return overlay.Event{Kind: overlay.EventEnter, X: int(e.EventX), Y: int(e.EventY)}, true
	case xproto.MotionNotifyEvent:
		return overlay.Event{Kind: overlay.EventMotion, X: int(e.EventX), Y: int(e.EventY)}, true
	case xproto.ButtonPressEvent:
		return overlay.Event{Kind: overlay.EventButtonDown, Button: int(e.Detail), X: int(e.EventX), Y: int(e.EventY)}, true
	case xproto.ButtonReleaseEvent:
		return overlay.Event{Kind: overlay.EventButtonUp, Button: int(e.Detail), X: int(e.EventX), Y: int(e.EventY)}, true
	case xproto.KeyPressEvent:
		return overlay.Event{Kind: overlay.EventKey, Key: h.keyFor(e.Detail)}, true
	}
	return overlay.Event{}, false
}

// setWindowTitle sets _NET_WM_NAME
func (h *Host) setWindowTitle(title string) error {
	titleAtom, err := getAtom(h.conn, "_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := getAtom(h.conn, "UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		h.conn,
		xproto.PropModeReplace,
		h.win,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

// setWindowClass sets WM_CLASS
func (h *Host) setWindowClass(instance, class string) error {
	classAtom, err := getAtom(h.conn, "WM_CLASS")
	if err != nil {
		return err
	}

	// WM_CLASS format: instance\0class\0
	classStr := instance + "\x00" + class + "\x00"

	return xproto.ChangePropertyChecked(
		h.conn,
		xproto.PropModeReplace,
		h.win,
		classAtom,
		xproto.AtomString,
		8,
		uint32(len(classStr)),
		[]byte(classStr),
	).Check()
}

func getAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
