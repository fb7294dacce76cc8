package display

import (
	"sync"

	"github.com/bryanchriswhite/ScreenGrabber/internal/overlay"
)

// dispatcher posts overlay events to the event loop. Motion events that
// arrive while an earlier motion is still queued only update that queued
// event, so a slow repaint never builds a backlog of stale positions.
type dispatcher struct {
	post    func(func())
	handler func(overlay.Event)

	mu      sync.Mutex
	pending *overlay.Event
}

func newDispatcher(post func(func()), handler func(overlay.Event)) *dispatcher {
	return &dispatcher{post: post, handler: handler}
}

func (d *dispatcher) dispatch(ev overlay.Event) {
	if ev.Kind != overlay.EventMotion {
		// later motion must queue behind this event
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
		d.post(func() { d.handler(ev) })
		return
	}

	d.mu.Lock()
	if d.pending != nil {
		*d.pending = ev
		d.mu.Unlock()
		return
	}
	slot := &ev
	d.pending = slot
	d.mu.Unlock()

	d.post(func() {
		d.mu.Lock()
		latest := *slot
		if d.pending == slot {
			d.pending = nil
		}
		d.mu.Unlock()
		d.handler(latest)
	})
}
