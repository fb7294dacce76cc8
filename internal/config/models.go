package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Setting keys
const (
	KeyNotifications     = "notifications"
	KeyClipboard         = "clipboard"
	KeyFlash             = "flash"
	KeyShadows           = "shadows"
	KeyTemplate          = "template"
	KeyUploadProvider    = "upload-provider"
	KeyDeleteAfterUpload = "delete-after-upload"
	KeyLogLevel          = "log-level"
	KeyAPIPort           = "api-port"
	KeyBindDesktop       = "key-desktop"
	KeyBindMonitor       = "key-monitor"
	KeyBindWindow        = "key-window"
	KeyBindSelection     = "key-selection"

	// accepted alias of KeyTemplate
	keyFilenameTemplate = "filename-template"
)

// DefaultTemplate is the filename template used when none is configured
const DefaultTemplate = "Screenshot from %Y-%m-%d %H-%M-%S.png"

var (
	// ErrUnknownKey is returned for a setting name that does not exist
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a value fails validation
	ErrInvalidValue = errors.New("invalid config value")
)

// Clipboard modes
const (
	ClipboardNone  = "none"
	ClipboardURI   = "uri"
	ClipboardImage = "image"
)

// Flash modes
const (
	FlashNone  = "none"
	FlashAudio = "audio"
	FlashVideo = "video"
	FlashBoth  = "both"
)

// Keybindings maps the four capture actions to hotkey strings like "ctrl+shift+1"
type Keybindings struct {
	Desktop   string `yaml:"desktop" json:"desktop"`
	Monitor   string `yaml:"monitor" json:"monitor"`
	Window    string `yaml:"window" json:"window"`
	Selection string `yaml:"selection" json:"selection"`
}

// Config is the on-disk settings document
type Config struct {
	Notifications     bool        `yaml:"notifications" json:"notifications"`
	Clipboard         string      `yaml:"clipboard" json:"clipboard"`
	Flash             string      `yaml:"flash" json:"flash"`
	Shadows           bool        `yaml:"shadows" json:"shadows"`
	Template          string      `yaml:"template" json:"template"`
	UploadProvider    string      `yaml:"upload_provider" json:"upload_provider"`
	DeleteAfterUpload bool        `yaml:"delete_after_upload" json:"delete_after_upload"`
	LogLevel          string      `yaml:"log_level" json:"log_level"`
	APIPort           int         `yaml:"api_port" json:"api_port"`
	Keybindings       Keybindings `yaml:"keybindings" json:"keybindings"`
}

// Defaults returns a fresh default configuration
func Defaults() *Config {
	return &Config{
		Notifications: true,
		Clipboard:     ClipboardNone,
		Flash:         FlashBoth,
		Shadows:       true,
		Template:      DefaultTemplate,
		LogLevel:      "info",
		Keybindings: Keybindings{
			Desktop:   "ctrl+shift+1",
			Monitor:   "ctrl+shift+2",
			Window:    "ctrl+shift+3",
			Selection: "ctrl+shift+4",
		},
	}
}

// Keys lists every setting name in display order
func Keys() []string {
	return []string{
		KeyNotifications, KeyClipboard, KeyFlash, KeyShadows, KeyTemplate,
		KeyUploadProvider, KeyDeleteAfterUpload, KeyLogLevel, KeyAPIPort,
		KeyBindDesktop, KeyBindMonitor, KeyBindWindow, KeyBindSelection,
	}
}

// CanonicalKey returns the key name an alias or differently cased key resolves to
func CanonicalKey(key string) string { return canonicalKey(key) }

// canonicalKey resolves aliases and case
func canonicalKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == keyFilenameTemplate {
		return KeyTemplate
	}
	return key
}

// Flatten renders the config as a flat key/value map
func (c *Config) Flatten() map[string]any {
	return map[string]any{
		KeyNotifications:     c.Notifications,
		KeyClipboard:         c.Clipboard,
		KeyFlash:             c.Flash,
		KeyShadows:           c.Shadows,
		KeyTemplate:          c.Template,
		KeyUploadProvider:    c.UploadProvider,
		KeyDeleteAfterUpload: c.DeleteAfterUpload,
		KeyLogLevel:          c.LogLevel,
		KeyAPIPort:           c.APIPort,
		KeyBindDesktop:       c.Keybindings.Desktop,
		KeyBindMonitor:       c.Keybindings.Monitor,
		KeyBindWindow:        c.Keybindings.Window,
		KeyBindSelection:     c.Keybindings.Selection,
	}
}

// apply parses value for key and stores it on c
func (c *Config) apply(key, value string) error {
	invalid := func(reason string) error {
		return fmt.Errorf("%w: %s=%q: %s", ErrInvalidValue, key, value, reason)
	}
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return false, invalid("expected true or false")
		}
		return b, nil
	}

	switch key {
	case KeyNotifications, KeyShadows, KeyDeleteAfterUpload:
		b, err := parseBool()
		if err != nil {
			return err
		}
		switch key {
		case KeyNotifications:
			c.Notifications = b
		case KeyShadows:
			c.Shadows = b
		default:
			c.DeleteAfterUpload = b
		}
	case KeyClipboard:
		v := strings.ToLower(strings.TrimSpace(value))
		if v != ClipboardNone && v != ClipboardURI && v != ClipboardImage {
			return invalid("expected none, uri or image")
		}
		c.Clipboard = v
	case KeyFlash:
		v := strings.ToLower(strings.TrimSpace(value))
		if v != FlashNone && v != FlashAudio && v != FlashVideo && v != FlashBoth {
			return invalid("expected none, audio, video or both")
		}
		c.Flash = v
	case KeyTemplate:
		c.Template = value
	case KeyUploadProvider:
		c.UploadProvider = strings.TrimSpace(value)
	case KeyLogLevel:
		c.LogLevel = strings.ToLower(strings.TrimSpace(value))
	case KeyAPIPort:
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || port < 0 || port > 65535 {
			return invalid("expected a port between 0 and 65535")
		}
		c.APIPort = port
	case KeyBindDesktop:
		c.Keybindings.Desktop = strings.TrimSpace(value)
	case KeyBindMonitor:
		c.Keybindings.Monitor = strings.TrimSpace(value)
	case KeyBindWindow:
		c.Keybindings.Window = strings.TrimSpace(value)
	case KeyBindSelection:
		c.Keybindings.Selection = strings.TrimSpace(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}
