package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// Manager owns the yaml settings file
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex

	listenersMu sync.Mutex
	listeners   []chan string
}

// DefaultPath returns ~/.config/screengrabber/config.yaml (XDG aware)
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "screengrabber", "config.yaml")
}

// NewManager loads configFile (or the default path), creating it with
// defaults when missing.
func NewManager(configFile string) (*Manager, error) {
	path := DefaultPath()
	if configFile != "" {
		path = configFile
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Str("upload_provider", m.config.UploadProvider).
		Msg("Config loaded")

	return m, nil
}

// NewMemoryManager returns a manager that never touches disk
func NewMemoryManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = Defaults()
	}
	c := *cfg
	return &Manager{config: &c}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	// missing keys keep their defaults
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current config
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := *m.config
	return &c
}

// Snapshot returns a read-only flat view of the current settings
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return newSnapshot(m.config)
}

// Save writes the config to disk. Memory-only managers are a no-op.
func (m *Manager) Save() error {
	if m.configPath == "" {
		return nil
	}

	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Set parses and stores a single setting, saves, and notifies subscribers
func (m *Manager) Set(key, value string) error {
	key = canonicalKey(key)

	m.mu.Lock()
	next := *m.config
	if err := next.apply(key, value); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = &next
	m.mu.Unlock()

	if err := m.Save(); err != nil {
		return err
	}

	logger.WithComponent("config").Info().
		Str("key", key).
		Str("value", value).
		Msg("Setting updated")

	m.notify(key)
	return nil
}

// Value returns the raw value of one setting
func (m *Manager) Value(key string) (any, error) {
	key = canonicalKey(key)

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.config.Flatten()[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return v, nil
}

// Subscribe returns a channel receiving the names of changed settings
func (m *Manager) Subscribe() chan string {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	ch := make(chan string, 16)
	m.listeners = append(m.listeners, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe
func (m *Manager) Unsubscribe(ch chan string) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	for i, l := range m.listeners {
		if l == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Manager) notify(key string) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	for _, ch := range m.listeners {
		select {
		case ch <- key:
		default:
			logger.WithComponent("config").Warn().
				Str("key", key).
				Msg("Config listener full, dropping change")
		}
	}
}

// GetConfigPath returns the path of the settings file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the directory holding the settings file
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
