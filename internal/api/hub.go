package api

import (
	"sync"

	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/pipeline"
)

// hub fans pipeline events out to event stream clients
type hub struct {
	mu      sync.Mutex
	clients map[chan pipeline.Event]struct{}
	closed  bool
}

func newHub() *hub {
	return &hub{clients: make(map[chan pipeline.Event]struct{})}
}

func (h *hub) subscribe() chan pipeline.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan pipeline.Event, 16)
	if h.closed {
		close(ch)
		return ch
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// publish never blocks; a client that is not keeping up misses the event
func (h *hub) publish(ev pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			logger.WithComponent("api").Warn().
				Str("kind", string(ev.Kind)).
				Msg("Event stream client full, dropping event")
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[chan pipeline.Event]struct{})
}
