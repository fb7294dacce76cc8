package indicator

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/ScreenGrabber/internal/capture"
	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/grabber"
	"github.com/bryanchriswhite/ScreenGrabber/internal/overlay"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

type fakeHost struct {
	shown     int
	destroyed int
	handler   func(overlay.Event)
}

var _ overlay.Host = (*fakeHost)(nil)

func (h *fakeHost) Bounds() geometry.Size { return geometry.Size{Width: 3840, Height: 1080} }
func (h *fakeHost) Show(fn func(overlay.Event)) error {
	h.shown++
	h.handler = fn
	return nil
}
func (h *fakeHost) Paint(overlay.Frame) error { return nil }
func (h *fakeHost) Destroy() error {
	h.destroyed++
	return nil
}

type fakeRegistry struct {
	monitors []window.Monitor
	windows  []window.Window
	err      error
}

var _ window.Registry = (*fakeRegistry)(nil)

func (r *fakeRegistry) Monitors() ([]window.Monitor, error) { return r.monitors, r.err }
func (r *fakeRegistry) Windows() ([]window.Window, error)   { return r.windows, r.err }

type fakeCapturer struct {
	mu    sync.Mutex
	rects []geometry.Rect
}

var _ capture.Capturer = (*fakeCapturer)(nil)

func (c *fakeCapturer) CaptureRegion(_ context.Context, r geometry.Rect) (image.Image, error) {
	c.mu.Lock()
	c.rects = append(c.rects, r)
	c.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, r.Width, r.Height)), nil
}
func (c *fakeCapturer) Name() string      { return "fake" }
func (c *fakeCapturer) IsAvailable() bool { return true }

type fakePipeline struct {
	mu        sync.Mutex
	results   []capture.Result
	cancelled int
}

var _ Pipeline = (*fakePipeline)(nil)

func (p *fakePipeline) Run(_ context.Context, res capture.Result) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
	if !res.Usable() {
		return ""
	}
	return res.Path
}

func (p *fakePipeline) Cancel() { p.cancelled++ }

var monitors = []window.Monitor{
	{Name: "DP-1", Primary: true, Rect: geometry.Rect{Left: 0, Top: 0, Width: 1920, Height: 1080}},
	{Name: "DP-2", Rect: geometry.Rect{Left: 1920, Top: 0, Width: 1920, Height: 1080}},
}

type harness struct {
	ind      *Indicator
	hosts    []*fakeHost
	capturer *fakeCapturer
	pipeline *fakePipeline
	outcomes chan Outcome
}

func newHarness(t *testing.T, registry *fakeRegistry) *harness {
	t.Helper()
	h := &harness{
		capturer: &fakeCapturer{},
		pipeline: &fakePipeline{},
		outcomes: make(chan Outcome, 4),
	}
	dir := t.TempDir()
	inv := capture.NewInvoker(h.capturer, capture.WithTempFile(func() (string, error) {
		return filepath.Join(dir, "capture.png"), nil
	}))
	settings := config.Snapshot{
		config.KeyShadows:       true,
		config.KeyBindDesktop:   "ctrl+shift+1",
		config.KeyBindMonitor:   "ctrl+shift+2",
		config.KeyBindWindow:    "",
		config.KeyBindSelection: "ctrl+shift+4",
	}
	newHost := func() (overlay.Host, error) {
		host := &fakeHost{}
		h.hosts = append(h.hosts, host)
		return host, nil
	}
	h.ind = New(context.Background(), func(fn func()) { fn() },
		func() config.Settings { return settings },
		registry, newHost, inv, h.pipeline)
	h.ind.SetSettleDelay(0)
	h.ind.OnFinished(func(o Outcome) { h.outcomes <- o })
	return h
}

func (h *harness) wait(t *testing.T) Outcome {
	t.Helper()
	select {
	case o := <-h.outcomes:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
	return Outcome{}
}

func TestMonitorCaptureEndToEnd(t *testing.T) {
	h := newHarness(t, &fakeRegistry{monitors: monitors})
	if err := h.ind.Monitor(); err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if !h.ind.Active() || len(h.hosts) != 1 || h.hosts[0].shown != 1 {
		t.Fatal("overlay not opened")
	}

	host := h.hosts[0]
	host.handler(overlay.Event{Kind: overlay.EventEnter, X: 10, Y: 10})
	host.handler(overlay.Event{Kind: overlay.EventMotion, X: 2500, Y: 600})
	host.handler(overlay.Event{Kind: overlay.EventButtonDown, Button: overlay.ButtonLeft, X: 2500, Y: 600})

	out := h.wait(t)
	if out.Cancelled || out.Action != grabber.MonitorHighlight || out.Path == "" {
		t.Fatalf("outcome = %+v", out)
	}
	if len(h.capturer.rects) != 1 || h.capturer.rects[0] != monitors[1].Rect {
		t.Fatalf("captured %+v, want %+v", h.capturer.rects, monitors[1].Rect)
	}
	if host.destroyed != 1 || h.ind.Active() {
		t.Fatal("overlay not torn down before capture")
	}
	if len(h.pipeline.results) != 1 || !h.pipeline.results[0].Success {
		t.Fatalf("pipeline results = %+v", h.pipeline.results)
	}
}

func TestCaptureWaitsForOverlayToSettle(t *testing.T) {
	h := newHarness(t, &fakeRegistry{monitors: monitors})
	h.ind.SetSettleDelay(60 * time.Millisecond)
	if err := h.ind.Monitor(); err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	host := h.hosts[0]
	host.handler(overlay.Event{Kind: overlay.EventEnter, X: 10, Y: 10})
	clicked := time.Now()
	host.handler(overlay.Event{Kind: overlay.EventButtonDown, Button: overlay.ButtonLeft, X: 10, Y: 10})

	h.capturer.mu.Lock()
	early := len(h.capturer.rects)
	h.capturer.mu.Unlock()
	if host.destroyed != 1 || early != 0 {
		t.Fatalf("destroyed=%d captures=%d right after the click", host.destroyed, early)
	}

	out := h.wait(t)
	if out.Path == "" {
		t.Fatalf("outcome = %+v", out)
	}
	if elapsed := time.Since(clicked); elapsed < 60*time.Millisecond {
		t.Fatalf("captured after %s, before the overlay settled", elapsed)
	}
}

func TestDesktopCapturesUnion(t *testing.T) {
	h := newHarness(t, &fakeRegistry{monitors: monitors})
	if err := h.ind.Desktop(); err != nil {
		t.Fatalf("Desktop: %v", err)
	}
	h.wait(t)
	want := geometry.Rect{Width: 3840, Height: 1080}
	if len(h.capturer.rects) != 1 || h.capturer.rects[0] != want {
		t.Fatalf("captured %+v", h.capturer.rects)
	}
	if h.hosts[0].shown != 0 {
		t.Fatal("desktop capture showed the overlay")
	}
}

func TestWindowCaptureIncludesShadow(t *testing.T) {
	frame := geometry.Rect{Left: 100, Top: 100, Width: 800, Height: 600}
	h := newHarness(t, &fakeRegistry{windows: []window.Window{
		{ID: 1, Type: window.TypeDock, Visible: true, Layer: window.LayerDock, Frame: geometry.Rect{Width: 3840, Height: 30}},
		{ID: 2, Type: window.TypeNormal, Visible: true, Layer: window.LayerNormal, Frame: frame,
			Shadow: window.Margins{Left: 10, Right: 10, Top: 5, Bottom: 15}},
	}})
	if err := h.ind.Window(); err != nil {
		t.Fatalf("Window: %v", err)
	}
	host := h.hosts[0]
	host.handler(overlay.Event{Kind: overlay.EventMotion, X: 10, Y: 10})
	if h.ind.session.Surface().HasSelection() {
		t.Fatal("dock window should not be selectable")
	}
	host.handler(overlay.Event{Kind: overlay.EventMotion, X: 500, Y: 400})
	host.handler(overlay.Event{Kind: overlay.EventButtonDown, Button: overlay.ButtonLeft, X: 500, Y: 400})
	h.wait(t)

	want := geometry.Rect{Left: 90, Top: 95, Width: 820, Height: 620}
	if len(h.capturer.rects) != 1 || h.capturer.rects[0] != want {
		t.Fatalf("captured %+v, want %+v", h.capturer.rects, want)
	}
}

func TestMonitorsChangedCancelsSession(t *testing.T) {
	h := newHarness(t, &fakeRegistry{monitors: monitors})
	h.ind.MonitorsChanged() // no session, nothing to do

	if err := h.ind.Monitor(); err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	h.ind.MonitorsChanged()

	out := h.wait(t)
	if !out.Cancelled {
		t.Fatalf("outcome = %+v", out)
	}
	if h.ind.Active() || h.hosts[0].destroyed != 1 {
		t.Fatal("session still open")
	}
	if len(h.capturer.rects) != 0 {
		t.Fatal("cancelled session captured")
	}
}

func TestStartReplacesActiveSession(t *testing.T) {
	h := newHarness(t, &fakeRegistry{monitors: monitors})
	if err := h.ind.Monitor(); err != nil {
		t.Fatal(err)
	}
	if err := h.ind.Selection(); err != nil {
		t.Fatal(err)
	}
	if h.hosts[0].destroyed != 1 || h.hosts[1].destroyed != 0 {
		t.Fatalf("destroyed = %d, %d", h.hosts[0].destroyed, h.hosts[1].destroyed)
	}
	select {
	case o := <-h.outcomes:
		t.Fatalf("replaced session reported %+v", o)
	default:
	}

	h.ind.Close()
	if h.hosts[1].destroyed != 1 || h.pipeline.cancelled != 1 {
		t.Fatal("Close did not tear down")
	}
}

func TestSelectionDrag(t *testing.T) {
	h := newHarness(t, &fakeRegistry{})
	if err := h.ind.Trigger("selection"); err != nil {
		t.Fatal(err)
	}
	host := h.hosts[0]
	host.handler(overlay.Event{Kind: overlay.EventButtonDown, Button: overlay.ButtonLeft, X: 300, Y: 200})
	host.handler(overlay.Event{Kind: overlay.EventMotion, X: 100, Y: 50})
	host.handler(overlay.Event{Kind: overlay.EventButtonUp, Button: overlay.ButtonLeft, X: 100, Y: 50})
	h.wait(t)

	want := geometry.Rect{Left: 100, Top: 50, Width: 200, Height: 150}
	if len(h.capturer.rects) != 1 || h.capturer.rects[0] != want {
		t.Fatalf("captured %+v", h.capturer.rects)
	}
}

func TestRegistryErrorFailsStart(t *testing.T) {
	h := newHarness(t, &fakeRegistry{err: errors.New("no display")})
	if err := h.ind.Monitor(); err == nil {
		t.Fatal("Monitor should fail")
	}
	if err := h.ind.Trigger("zoom"); err == nil {
		t.Fatal("unknown action should fail")
	}
	if h.ind.Active() || len(h.hosts) != 0 {
		t.Fatal("session created")
	}
}

type fakeRegistrar struct {
	combos   map[string]string
	handlers map[string]func()
	cleared  int
}

var _ KeyRegistrar = (*fakeRegistrar)(nil)

func (r *fakeRegistrar) Register(action, combo string, handler func()) error {
	if combo == "" {
		delete(r.combos, action)
		return nil
	}
	if combo == "bad" {
		return errors.New("grab denied")
	}
	r.combos[action] = combo
	r.handlers[action] = handler
	return nil
}

func (r *fakeRegistrar) UnregisterAll() { r.cleared++ }

func TestBindKeys(t *testing.T) {
	h := newHarness(t, &fakeRegistry{monitors: monitors})
	reg := &fakeRegistrar{combos: map[string]string{}, handlers: map[string]func(){}}
	h.ind.BindKeys(reg)

	want := map[string]string{
		"desktop":   "ctrl+shift+1",
		"monitor":   "ctrl+shift+2",
		"selection": "ctrl+shift+4",
	}
	if len(reg.combos) != len(want) {
		t.Fatalf("combos = %v", reg.combos)
	}
	for action, combo := range want {
		if reg.combos[action] != combo {
			t.Fatalf("%s bound to %q", action, reg.combos[action])
		}
	}

	reg.handlers["monitor"]()
	if !h.ind.Active() || h.ind.session.Strategy() != grabber.MonitorHighlight {
		t.Fatal("shortcut did not start a monitor session")
	}
}

func TestWatchKeysRebinds(t *testing.T) {
	h := newHarness(t, &fakeRegistry{})
	reg := &fakeRegistrar{combos: map[string]string{}, handlers: map[string]func(){}}

	changes := make(chan string, 3)
	changes <- config.KeyFlash
	changes <- config.KeyBindWindow
	close(changes)
	h.ind.WatchKeys(reg, changes)

	if reg.combos["desktop"] != "ctrl+shift+1" {
		t.Fatalf("combos = %v", reg.combos)
	}
}
