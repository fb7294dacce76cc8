package commands

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/ScreenGrabber/internal/capture"
	"github.com/bryanchriswhite/ScreenGrabber/internal/clipboard"
	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/display"
	"github.com/bryanchriswhite/ScreenGrabber/internal/eventloop"
	"github.com/bryanchriswhite/ScreenGrabber/internal/flash"
	"github.com/bryanchriswhite/ScreenGrabber/internal/indicator"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/notification"
	"github.com/bryanchriswhite/ScreenGrabber/internal/overlay"
	"github.com/bryanchriswhite/ScreenGrabber/internal/pipeline"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

// app is the X11 runtime shared by serve and capture
type app struct {
	loop      *eventloop.Loop
	configMgr *config.Manager
	windowMgr *window.Manager
	capturer  *capture.Router
	pipeline  *pipeline.Pipeline
	indicator *indicator.Indicator

	monitorChanges chan struct{}
}

// newApp connects to the display and wires every stage. settings lets a
// command override values for its own run; nil reads the config as is.
func newApp(ctx context.Context, configMgr *config.Manager, settings func() config.Settings) (*app, error) {
	log := logger.WithComponent("app")
	loop := eventloop.New()

	if settings == nil {
		settings = func() config.Settings { return configMgr.Snapshot() }
	}

	backend, err := window.NewX11Backend()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	windowMgr := window.NewManager(backend)

	capturer, err := capture.DefaultRouter()
	if err != nil {
		windowMgr.Stop()
		return nil, fmt.Errorf("failed to set up capture: %w", err)
	}
	log.Info().Str("backends", capturer.Name()).Msg("Capture ready")

	invoker := capture.NewInvoker(capturer, capture.WithPoster(loop.Post))

	flasher := flash.New(display.NewFlasher(loop.Post), flash.DefaultSound)
	copier := clipboard.NewCopier(clipboard.NewSystem())
	notifier := notification.New(notification.DefaultBackend())
	providers := func(id string) (provider.Provider, error) {
		return provider.New(id, provider.WithPoster(loop.Post))
	}

	p := pipeline.New(settings, flasher, copier, notifier, providers)

	newHost := func() (overlay.Host, error) {
		host, err := display.NewHost(loop.Post)
		if err != nil {
			return nil, err
		}
		return host, nil
	}

	ind := indicator.New(ctx, loop.Post, settings, windowMgr, newHost, invoker, p)

	a := &app{
		loop:      loop,
		configMgr: configMgr,
		windowMgr: windowMgr,
		capturer:  capturer,
		pipeline:  p,
		indicator: ind,
	}

	if err := windowMgr.Start(); err != nil {
		log.Warn().Err(err).Msg("Monitor changes will not cancel open sessions")
	} else {
		a.monitorChanges = windowMgr.Subscribe()
		go func() {
			for range a.monitorChanges {
				loop.Post(ind.MonitorsChanged)
			}
		}()
	}

	return a, nil
}

// run drives the event loop until ctx ends
func (a *app) run(ctx context.Context) {
	go a.loop.Run(ctx)
}

// close tears the runtime down
func (a *app) close() {
	ctx := context.Background()
	if err := a.loop.Call(ctx, a.indicator.Close); err != nil {
		a.indicator.Close()
	}
	a.loop.Stop()
	a.windowMgr.Stop()
	a.capturer.Close()
}
