package window

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// Manager fronts a Backend and fans monitor changes out to subscribers
type Manager struct {
	backend   Backend
	mu        sync.Mutex
	listeners []chan struct{}
	started   bool
}

// NewManager wraps backend
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// Start begins watching for monitor changes
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if err := m.backend.WatchMonitors(m.notifyListeners); err != nil {
		return fmt.Errorf("failed to watch monitors: %w", err)
	}
	logger.WithComponent("window").Info().
		Str("backend", m.backend.Name()).
		Msg("Watching monitor configuration")
	return nil
}

// Stop stops watching and closes the backend
func (m *Manager) Stop() {
	m.backend.StopWatching()
	if err := m.backend.Close(); err != nil {
		logger.WithComponent("window").Warn().Err(err).Msg("Failed to close window backend")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.listeners {
		close(ch)
	}
	m.listeners = nil
}

// Monitors lists monitors
func (m *Manager) Monitors() ([]Monitor, error) {
	return m.backend.Monitors()
}

// Windows lists windows bottom of the stack first
func (m *Manager) Windows() ([]Window, error) {
	return m.backend.Windows()
}

// Subscribe returns a channel signalled after every monitor change
func (m *Manager) Subscribe() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{}, 1)
	m.listeners = append(m.listeners, ch)
	return ch
}

// Unsubscribe removes a channel returned by Subscribe
func (m *Manager) Unsubscribe(ch chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.listeners {
		if l == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Manager) notifyListeners() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.listeners {
		// one pending signal is enough, it carries no payload
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
