package display

import (
	"fmt"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

const (
	flashDuration = 500 * time.Millisecond
	flashSteps    = 10
)

// Flasher blinks a white window over the captured area
type Flasher struct {
	post func(func())
}

// NewFlasher creates a flasher that reports completion through post
func NewFlasher(post func(func())) *Flasher {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Flasher{post: post}
}

// Flash fades a white window over area and calls done afterwards. done is
// called even when the flash could not be shown.
func (f *Flasher) Flash(area geometry.Rect, done func()) {
	go func() {
		if err := flash(area); err != nil {
			logger.WithComponent("flash").Warn().Err(err).Str("area", area.String()).Msg("Visual flash failed")
		}
		f.post(done)
	}()
}

func flash(area geometry.Rect) error {
	if area.Empty() {
		return nil
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer conn.Close()
	screen := xproto.Setup(conn).DefaultScreen(conn)

	win, err := xproto.NewWindowId(conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		win,
		screen.Root,
		int16(area.Left), int16(area.Top),
		uint16(area.Width), uint16(area.Height),
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect,
		[]uint32{screen.WhitePixel, 1},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer xproto.DestroyWindow(conn, win)

	opacityAtom, err := getAtom(conn, "_NET_WM_WINDOW_OPACITY")
	if err != nil {
		return err
	}
	setOpacity := func(v float64) {
		data := make([]byte, 4)
		xgb.Put32(data, fadeOpacity(v))
		xproto.ChangeProperty(conn, xproto.PropModeReplace, win, opacityAtom, xproto.AtomCardinal, 32, 1, data)
	}

	setOpacity(1)
	if err := xproto.MapWindowChecked(conn, win).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	conn.Sync()

	step := flashDuration / flashSteps
	for i := flashSteps - 1; i >= 0; i-- {
		time.Sleep(step)
		setOpacity(float64(i) / flashSteps)
		conn.Sync()
	}
	return nil
}

// fadeOpacity scales v in [0,1] to the _NET_WM_WINDOW_OPACITY range
func fadeOpacity(v float64) uint32 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xffffffff
	}
	return uint32(v * 0xffffffff)
}
