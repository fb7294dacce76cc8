package window

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// X11Backend reads monitors through RandR and windows through EWMH
type X11Backend struct {
	conn     *xgb.Conn
	root     xproto.Window
	screen   *xproto.ScreenInfo
	hasRandr bool

	atomsMu sync.Mutex
	atoms   map[string]xproto.Atom

	mu       sync.Mutex
	watching bool
	stopChan chan struct{}
}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend connects to the X server named by $DISPLAY
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	b := &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		atoms:  make(map[string]xproto.Atom),
	}

	if err := randr.Init(conn); err != nil {
		logger.WithComponent("x11-backend").Warn().Err(err).
			Msg("RandR unavailable, treating the screen as one monitor")
	} else {
		b.hasRandr = true
	}

	return b, nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// Close closes the X connection
func (b *X11Backend) Close() error {
	b.StopWatching()
	b.conn.Close()
	return nil
}

// Monitors lists active CRTCs, or the whole screen without RandR
func (b *X11Backend) Monitors() ([]Monitor, error) {
	whole := []Monitor{{
		Name:    "screen",
		Primary: true,
		Rect:    geometry.Rect{Width: int(b.screen.WidthInPixels), Height: int(b.screen.HeightInPixels)},
	}}
	if !b.hasRandr {
		return whole, nil
	}

	res, err := randr.GetScreenResourcesCurrent(b.conn, b.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if p, err := randr.GetOutputPrimary(b.conn, b.root).Reply(); err == nil {
		primary = p.Output
	}

	monitors := make([]Monitor, 0, len(res.Crtcs))
	seen := make(map[geometry.Rect]bool)
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(b.conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			logger.WithComponent("x11-backend").Debug().Err(err).Uint32("crtc", uint32(crtc)).Msg("Skipping crtc")
			continue
		}
		if info.Width == 0 || info.Height == 0 || info.NumOutputs == 0 {
			continue
		}

		rect := geometry.Rect{
			Left:   int(info.X),
			Top:    int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		}
		// mirrored outputs share one crtc rect
		if seen[rect] {
			continue
		}
		seen[rect] = true

		m := Monitor{Rect: rect}
		for _, out := range info.Outputs {
			if out == primary {
				m.Primary = true
			}
		}
		if oi, err := randr.GetOutputInfo(b.conn, info.Outputs[0], res.ConfigTimestamp).Reply(); err == nil {
			m.Name = string(oi.Name)
		}
		monitors = append(monitors, m)
	}

	if len(monitors) == 0 {
		return whole, nil
	}
	return monitors, nil
}

// Windows returns managed windows, bottom of the stack first
func (b *X11Backend) Windows() ([]Window, error) {
	log := logger.WithComponent("x11-backend")

	ids, err := b.clientList("_NET_CLIENT_LIST_STACKING")
	if err != nil || len(ids) == 0 {
		log.Debug().Err(err).Msg("Stacking list unavailable, using _NET_CLIENT_LIST")
		ids, err = b.clientList("_NET_CLIENT_LIST")
		if err != nil {
			return nil, err
		}
	}

	currentDesktop, hasDesktop := b.cardinal(b.root, "_NET_CURRENT_DESKTOP")

	windows := make([]Window, 0, len(ids))
	for _, id := range ids {
		w, err := b.windowInfo(id)
		if err != nil {
			log.Debug().Uint32("window", uint32(id)).Err(err).Msg("Skipping window")
			continue
		}
		if hasDesktop {
			if d, ok := b.cardinal(id, "_NET_WM_DESKTOP"); ok && d != 0xFFFFFFFF && d != currentDesktop {
				w.Visible = false
			}
		}
		windows = append(windows, w)
	}

	log.Debug().Int("count", len(windows)).Msg("Listed windows")
	return windows, nil
}

func (b *X11Backend) windowInfo(win xproto.Window) (Window, error) {
	w := Window{ID: uint32(win)}

	attrs, err := xproto.GetWindowAttributes(b.conn, win).Reply()
	if err != nil {
		return w, fmt.Errorf("failed to get attributes: %w", err)
	}

	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return w, fmt.Errorf("failed to get geometry: %w", err)
	}
	pos, err := xproto.TranslateCoordinates(b.conn, win, b.root, 0, 0).Reply()
	if err != nil {
		return w, fmt.Errorf("failed to translate coordinates: %w", err)
	}
	client := geometry.Rect{
		Left:   int(pos.DstX),
		Top:    int(pos.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}

	// server-side decorations grow the frame, client-side shadows shrink it
	frame := client
	if ext := b.cardinals(win, "_NET_FRAME_EXTENTS"); len(ext) == 4 {
		frame = frame.Grow(int(ext[0]), int(ext[1]), int(ext[2]), int(ext[3]))
	}
	if ext := b.cardinals(win, "_GTK_FRAME_EXTENTS"); len(ext) == 4 {
		w.Shadow = Margins{Left: int(ext[0]), Right: int(ext[1]), Top: int(ext[2]), Bottom: int(ext[3])}
		frame = frame.Grow(-w.Shadow.Left, -w.Shadow.Right, -w.Shadow.Top, -w.Shadow.Bottom)
	}
	w.Frame = frame

	states := b.atomNames(win, "_NET_WM_STATE")
	w.Type = b.windowType(win, states)
	w.Layer = layerFor(w.Type, states)
	w.Visible = attrs.MapState == xproto.MapStateViewable && !states["_NET_WM_STATE_HIDDEN"]

	if title, err := b.stringProperty(win, "_NET_WM_NAME"); err == nil && title != "" {
		w.Title = title
	} else if title, err := b.stringProperty(win, "WM_NAME"); err == nil {
		w.Title = title
	}
	if class, err := b.stringProperty(win, "WM_CLASS"); err == nil {
		// instance\0class\0
		parts := strings.Split(class, "\x00")
		if len(parts) >= 2 && parts[1] != "" {
			w.Class = parts[1]
		} else {
			w.Class = parts[0]
		}
	}

	return w, nil
}

func (b *X11Backend) windowType(win xproto.Window, states map[string]bool) Type {
	types := b.atomList(win, "_NET_WM_WINDOW_TYPE")
	if len(types) == 0 {
		// EWMH: untyped transients are dialogs
		if t := b.cardinals(win, "WM_TRANSIENT_FOR"); len(t) > 0 {
			types = []string{"_NET_WM_WINDOW_TYPE_DIALOG"}
		} else {
			types = []string{"_NET_WM_WINDOW_TYPE_NORMAL"}
		}
	}

	// first recognised type wins
	for _, name := range types {
		switch name {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return TypeNormal
		case "_NET_WM_WINDOW_TYPE_DIALOG":
			if states["_NET_WM_STATE_MODAL"] {
				return TypeModalDialog
			}
			return TypeDialog
		case "_NET_WM_WINDOW_TYPE_DOCK":
			return TypeDock
		case "_NET_WM_WINDOW_TYPE_DESKTOP":
			return TypeDesktop
		}
	}
	return TypeOther
}

func layerFor(t Type, states map[string]bool) int {
	switch {
	case t == TypeDesktop:
		return LayerDesktop
	case t == TypeDock:
		return LayerDock
	case states["_NET_WM_STATE_FULLSCREEN"]:
		return LayerFullscreen
	case states["_NET_WM_STATE_ABOVE"]:
		return LayerAbove
	case states["_NET_WM_STATE_BELOW"]:
		return LayerBelow
	default:
		return LayerNormal
	}
}

// WatchMonitors listens for RandR screen changes and root resizes
func (b *X11Backend) WatchMonitors(callback func()) error {
	b.mu.Lock()
	if b.watching {
		b.mu.Unlock()
		return fmt.Errorf("already watching")
	}
	b.watching = true
	b.stopChan = make(chan struct{})
	stop := b.stopChan
	b.mu.Unlock()

	if b.hasRandr {
		if err := randr.SelectInputChecked(b.conn, b.root, randr.NotifyMaskScreenChange).Check(); err != nil {
			logger.WithComponent("x11-backend").Warn().Err(err).Msg("Failed to select RandR events")
		}
	}
	if err := xproto.ChangeWindowAttributesChecked(
		b.conn,
		b.root,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskStructureNotify},
	).Check(); err != nil {
		return fmt.Errorf("failed to set event mask: %w", err)
	}

	go b.watchLoop(stop, callback)
	return nil
}

func (b *X11Backend) watchLoop(stop chan struct{}, callback func()) {
	log := logger.WithComponent("x11-backend")
	lastW, lastH := b.screen.WidthInPixels, b.screen.HeightInPixels

	for {
		ev, xerr := b.conn.WaitForEvent()
		select {
		case <-stop:
			return
		default:
		}
		if ev == nil && xerr == nil {
			log.Debug().Msg("X connection closed, monitor watch stopped")
			return
		}
		if xerr != nil {
			log.Debug().Str("error", xerr.Error()).Msg("X error in monitor watch")
			continue
		}

		switch e := ev.(type) {
		case randr.ScreenChangeNotifyEvent:
			log.Info().
				Uint16("width", e.Width).
				Uint16("height", e.Height).
				Msg("Monitor configuration changed")
			callback()
		case xproto.ConfigureNotifyEvent:
			if e.Window != b.root || (e.Width == lastW && e.Height == lastH) {
				continue
			}
			lastW, lastH = e.Width, e.Height
			log.Info().
				Uint16("width", e.Width).
				Uint16("height", e.Height).
				Msg("Screen resized")
			callback()
		}
	}
}

// StopWatching stops the monitor watch loop
func (b *X11Backend) StopWatching() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.watching {
		return
	}
	close(b.stopChan)
	b.watching = false
}

func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	b.atomsMu.Lock()
	defer b.atomsMu.Unlock()

	if a, ok := b.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	b.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (b *X11Backend) atomName(atom xproto.Atom) string {
	reply, err := xproto.GetAtomName(b.conn, atom).Reply()
	if err != nil {
		return ""
	}
	return reply.Name
}

func (b *X11Backend) property(win xproto.Window, name string) (*xproto.GetPropertyReply, error) {
	atom, err := b.getAtom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, err
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("empty property %s", name)
	}
	return reply, nil
}

func (b *X11Backend) stringProperty(win xproto.Window, name string) (string, error) {
	reply, err := b.property(win, name)
	if err != nil {
		return "", err
	}
	return string(reply.Value), nil
}

// cardinals decodes a 32-bit list property
func (b *X11Backend) cardinals(win xproto.Window, name string) []uint32 {
	reply, err := b.property(win, name)
	if err != nil || reply.Format != 32 {
		return nil
	}
	return decodeUint32s(reply.Value)
}

func (b *X11Backend) cardinal(win xproto.Window, name string) (uint32, bool) {
	v := b.cardinals(win, name)
	if len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

func (b *X11Backend) atomList(win xproto.Window, name string) []string {
	vals := b.cardinals(win, name)
	names := make([]string, 0, len(vals))
	for _, v := range vals {
		names = append(names, b.atomName(xproto.Atom(v)))
	}
	return names
}

func (b *X11Backend) atomNames(win xproto.Window, name string) map[string]bool {
	set := make(map[string]bool)
	for _, n := range b.atomList(win, name) {
		set[n] = true
	}
	return set
}

func (b *X11Backend) clientList(name string) ([]xproto.Window, error) {
	reply, err := b.property(b.root, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	vals := decodeUint32s(reply.Value)
	ids := make([]xproto.Window, len(vals))
	for i, v := range vals {
		ids[i] = xproto.Window(v)
	}
	return ids, nil
}

// decodeUint32s reads little-endian 32-bit values as delivered by xgb
func decodeUint32s(buf []byte) []uint32 {
	out := make([]uint32, 0, len(buf)/4)
	for i := 0; i+4 <= len(buf); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(buf[i:i+4]))
	}
	return out
}
