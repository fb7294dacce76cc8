// Package eventloop serializes all UI work onto one goroutine. Background
// work (captures, uploads, X events, hotkeys) posts its completion here.
package eventloop

import (
	"context"
	"sync"

	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

const queueSize = 64

// Loop runs posted functions one at a time, in order
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// New creates a stopped loop
func New() *Loop {
	return &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Post queues fn. Posts after Stop are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Run executes tasks until ctx is cancelled or Stop is called
func (l *Loop) Run(ctx context.Context) error {
	log := logger.WithComponent("eventloop")
	log.Debug().Msg("Event loop started")
	defer log.Debug().Msg("Event loop stopped")

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// run recovers a panicking task and keeps the loop alive
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithComponent("eventloop").Error().Interface("panic", r).Msg("Task panicked")
		}
	}()
	fn()
}

// Stop ends Run. Safe to call more than once.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop stops
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Call posts fn and waits for it to finish, for callers outside the loop
// that need a result (the API server, the CLI). Returns ctx.Err() if the
// loop is gone or ctx ends first.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return context.Canceled
	}
}
