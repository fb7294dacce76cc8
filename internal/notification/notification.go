// Package notification shows capture results in a single notification that
// is updated in place instead of stacking.
package notification

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// AppName is the notification summary and application name
const AppName = "ScreenGrabber"

const (
	notifyService = "org.freedesktop.Notifications"
	notifyPath    = "/org/freedesktop/Notifications"
	notifyMethod  = notifyService + ".Notify"

	defaultIcon    = "camera-photo"
	defaultTimeout = int32(-1)
)

// Backend delivers one notification. replaces is the id of the notification
// to update, 0 for a new one; the returned id is remembered for the next call.
type Backend interface {
	Notify(replaces uint32, title, body string) (uint32, error)
}

// Notifier owns the single notification slot
type Notifier struct {
	backend Backend
	mu      sync.Mutex
	id      uint32
}

// New creates a notifier over backend
func New(backend Backend) *Notifier {
	return &Notifier{backend: backend}
}

// Show creates the notification on first use and replaces it afterwards
func (n *Notifier) Show(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	id, err := n.backend.Notify(n.id, title, body)
	if err != nil {
		return fmt.Errorf("failed to show notification: %w", err)
	}
	if id != 0 {
		n.id = id
	}
	logger.WithComponent("notification").Debug().
		Uint32("id", n.id).
		Str("body", body).
		Msg("Notification shown")
	return nil
}

// Slot returns the id of the live notification, 0 if none was shown yet
func (n *Notifier) Slot() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.id
}

// DBusBackend talks to org.freedesktop.Notifications, which supports
// replacing by id.
type DBusBackend struct {
	conn *dbus.Conn
	icon string
}

var _ Backend = (*DBusBackend)(nil)

// NewDBusBackend connects to the session bus
func NewDBusBackend() (*DBusBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBusBackend{conn: conn, icon: defaultIcon}, nil
}

// Notify calls Notify(app_name, replaces_id, app_icon, summary, body,
// actions, hints, expire_timeout)
func (b *DBusBackend) Notify(replaces uint32, title, body string) (uint32, error) {
	obj := b.conn.Object(notifyService, notifyPath)
	hints := map[string]dbus.Variant{
		"transient": dbus.MakeVariant(true),
	}

	var id uint32
	call := obj.Call(notifyMethod, 0,
		AppName, replaces, b.icon, title, body, []string{}, hints, defaultTimeout)
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Close closes the bus connection
func (b *DBusBackend) Close() error {
	return b.conn.Close()
}

// BeeepBackend is the fallback when no notification daemon answers on D-Bus.
// It cannot replace, so every call shows a new notification.
type BeeepBackend struct {
	Icon string
}

var _ Backend = BeeepBackend{}

// Notify shows a notification through beeep
func (b BeeepBackend) Notify(_ uint32, title, body string) (uint32, error) {
	if err := beeep.Notify(title, body, b.Icon); err != nil {
		return 0, err
	}
	return 0, nil
}

// DefaultBackend prefers D-Bus and falls back to beeep
func DefaultBackend() Backend {
	b, err := NewDBusBackend()
	if err != nil {
		logger.WithComponent("notification").Warn().Err(err).Msg("D-Bus notifications unavailable, using beeep")
		return BeeepBackend{}
	}
	return b
}
