// Package indicator is the top-level controller. It owns the single active
// capture session, starts sessions for the four actions and hands confirmed
// rectangles to capture and then to the pipeline.
package indicator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/ScreenGrabber/internal/capture"
	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/grabber"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/overlay"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

// SettleDelay is how long capture waits after the overlay is torn down, so
// windows underneath have repainted on servers without a compositor.
const SettleDelay = 120 * time.Millisecond

// HostFactory creates the overlay host for a new session
type HostFactory func() (overlay.Host, error)

// Capturer starts an asynchronous capture, see capture.Invoker
type Capturer interface {
	Capture(ctx context.Context, rect geometry.Rect, done func(capture.Result))
}

// Pipeline processes a finished capture, see pipeline.Pipeline
type Pipeline interface {
	Run(ctx context.Context, res capture.Result) string
	Cancel()
}

// Outcome describes how a session ended
type Outcome struct {
	Action    grabber.Strategy
	Cancelled bool
	// Path is the final local path, empty when nothing was saved
	Path string
}

// Indicator drives capture sessions. Every method except Post must run on
// the event loop.
type Indicator struct {
	ctx      context.Context
	post     func(func())
	settings func() config.Settings
	registry window.Registry
	newHost  HostFactory
	capturer Capturer
	pipeline Pipeline
	settle   time.Duration

	session *grabber.Session

	mu        sync.Mutex
	observers []func(Outcome)
}

// New creates an indicator. post schedules work on the event loop.
func New(ctx context.Context, post func(func()), settings func() config.Settings,
	registry window.Registry, newHost HostFactory, capturer Capturer, pipeline Pipeline) *Indicator {
	return &Indicator{
		ctx:      ctx,
		post:     post,
		settings: settings,
		registry: registry,
		newHost:  newHost,
		capturer: capturer,
		pipeline: pipeline,
		settle:   SettleDelay,
	}
}

// SetSettleDelay changes the pause between overlay teardown and capture
func (i *Indicator) SetSettleDelay(d time.Duration) {
	i.settle = d
}

// Post schedules fn on the event loop. Safe from any goroutine.
func (i *Indicator) Post(fn func()) {
	i.post(fn)
}

// OnFinished registers fn to run after every session ends
func (i *Indicator) OnFinished(fn func(Outcome)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.observers = append(i.observers, fn)
}

func (i *Indicator) finished(out Outcome) {
	i.mu.Lock()
	observers := append([]func(Outcome){}, i.observers...)
	i.mu.Unlock()
	for _, fn := range observers {
		fn(out)
	}
}

// Desktop captures the whole desktop
func (i *Indicator) Desktop() error { return i.Start(grabber.Desktop) }

// Monitor lets the user pick a monitor
func (i *Indicator) Monitor() error { return i.Start(grabber.MonitorHighlight) }

// Window lets the user pick a window
func (i *Indicator) Window() error { return i.Start(grabber.WindowHighlight) }

// Selection lets the user drag a rectangle
func (i *Indicator) Selection() error { return i.Start(grabber.FreeDrag) }

// Trigger starts the session named by action ("desktop", "monitor", ...)
func (i *Indicator) Trigger(action string) error {
	strategy, err := grabber.ParseStrategy(action)
	if err != nil {
		return err
	}
	return i.Start(strategy)
}

// Active reports whether a session is open
func (i *Indicator) Active() bool {
	return i.session != nil && !i.session.Done()
}

// Start opens a session for strategy, replacing any open one
func (i *Indicator) Start(strategy grabber.Strategy) error {
	log := logger.WithComponent("indicator")

	if i.session != nil {
		log.Debug().Str("session", i.session.ID()).Msg("Replacing active session")
		i.session.Destroy()
		i.session = nil
	}

	highlights, err := i.highlights(strategy)
	if err != nil {
		return err
	}

	host, err := i.newHost()
	if err != nil {
		return fmt.Errorf("failed to create overlay: %w", err)
	}

	sess := grabber.New(strategy, overlay.NewSurface(host), highlights)
	sess.OnScreenshot(func(r geometry.Rect) {
		i.release(sess)
		i.afterSettle(strategy, func() { i.capture(strategy, r) })
	})
	sess.OnCancel(func() {
		i.release(sess)
		i.finished(Outcome{Action: strategy, Cancelled: true})
	})

	i.session = sess
	log.Info().
		Str("action", strategy.String()).
		Str("session", sess.ID()).
		Msg("Starting capture session")

	if err := sess.Start(); err != nil {
		i.release(sess)
		return fmt.Errorf("failed to start %s session: %w", strategy, err)
	}
	return nil
}

func (i *Indicator) release(sess *grabber.Session) {
	if i.session == sess {
		i.session = nil
	}
}

func (i *Indicator) highlights(strategy grabber.Strategy) ([]geometry.Rect, error) {
	switch strategy {
	case grabber.MonitorHighlight:
		monitors, err := i.registry.Monitors()
		if err != nil {
			return nil, fmt.Errorf("failed to list monitors: %w", err)
		}
		return grabber.MonitorHighlights(monitors), nil
	case grabber.WindowHighlight:
		windows, err := i.registry.Windows()
		if err != nil {
			return nil, fmt.Errorf("failed to list windows: %w", err)
		}
		return grabber.WindowHighlights(windows, i.settings().GetBool(config.KeyShadows)), nil
	}
	return nil, nil
}

// afterSettle runs fn on the loop once the overlay is off screen. Desktop
// sessions never show it.
func (i *Indicator) afterSettle(strategy grabber.Strategy, fn func()) {
	if strategy == grabber.Desktop || i.settle <= 0 {
		fn()
		return
	}
	time.AfterFunc(i.settle, func() { i.post(fn) })
}

func (i *Indicator) capture(strategy grabber.Strategy, r geometry.Rect) {
	i.capturer.Capture(i.ctx, r, func(res capture.Result) {
		path := i.pipeline.Run(i.ctx, res)
		i.finished(Outcome{Action: strategy, Path: path})
	})
}

// MonitorsChanged force-cancels an open session, its highlights are stale
func (i *Indicator) MonitorsChanged() {
	if i.session == nil {
		return
	}
	logger.WithComponent("indicator").Info().
		Str("session", i.session.ID()).
		Msg("Monitor configuration changed, cancelling session")
	i.session.Cancel()
}

// Close destroys any open session and abandons uploads
func (i *Indicator) Close() {
	if i.session != nil {
		i.session.Destroy()
		i.session = nil
	}
	i.pipeline.Cancel()
}
