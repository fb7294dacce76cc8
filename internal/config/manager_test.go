package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults not written: %v", err)
	}

	cfg := m.Get()
	if cfg.Template != DefaultTemplate {
		t.Fatalf("template = %q, want %q", cfg.Template, DefaultTemplate)
	}
	if !cfg.Notifications || cfg.Clipboard != ClipboardNone || cfg.Flash != FlashBoth {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestSetPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	sets := map[string]string{
		KeyClipboard:         "image",
		KeyNotifications:     "false",
		"filename-template":  "$pictures/{width}x{height}.png",
		KeyUploadProvider:    "imgur",
		KeyDeleteAfterUpload: "true",
		KeyBindWindow:        "ctrl+alt+w",
	}
	for k, v := range sets {
		if err := m.Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	cfg := reloaded.Get()
	if cfg.Clipboard != "image" || cfg.Notifications || cfg.UploadProvider != "imgur" || !cfg.DeleteAfterUpload {
		t.Fatalf("reloaded config mismatch: %+v", cfg)
	}
	if cfg.Template != "$pictures/{width}x{height}.png" {
		t.Fatalf("template alias not applied: %q", cfg.Template)
	}
	if cfg.Keybindings.Window != "ctrl+alt+w" {
		t.Fatalf("keybinding = %q", cfg.Keybindings.Window)
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	m := NewMemoryManager(nil)

	tests := []struct {
		key, value string
		want       error
	}{
		{KeyClipboard, "bitmap", ErrInvalidValue},
		{KeyFlash, "loud", ErrInvalidValue},
		{KeyNotifications, "maybe", ErrInvalidValue},
		{KeyAPIPort, "70000", ErrInvalidValue},
		{"no-such-key", "x", ErrUnknownKey},
	}
	for _, tt := range tests {
		err := m.Set(tt.key, tt.value)
		if !errors.Is(err, tt.want) {
			t.Errorf("Set(%s,%s) err = %v, want %v", tt.key, tt.value, err, tt.want)
		}
	}

	if got := m.Get().Clipboard; got != ClipboardNone {
		t.Fatalf("failed Set mutated config: clipboard = %q", got)
	}
}

func TestSnapshotFallsBackToDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "clipboard: bitmap\nflash: loud\nnotifications: true\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	s := m.Snapshot()
	if got := s.GetString(KeyClipboard); got != ClipboardNone {
		t.Fatalf("clipboard = %q, want none", got)
	}
	if got := s.GetString(KeyFlash); got != FlashNone {
		t.Fatalf("flash = %q, want none", got)
	}
	if !s.GetBool(KeyNotifications) {
		t.Fatalf("notifications should be true")
	}
	if s.GetBool("missing") || s.GetString("missing") != "" {
		t.Fatalf("missing keys should read as disabled")
	}
	if got := s.GetString(KeyTemplate); got != DefaultTemplate {
		t.Fatalf("missing template should keep default, got %q", got)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	m := NewMemoryManager(nil)
	s := m.Snapshot()
	if err := m.Set(KeyClipboard, "uri"); err != nil {
		t.Fatal(err)
	}
	if got := s.GetString(KeyClipboard); got != ClipboardNone {
		t.Fatalf("snapshot changed after Set: %q", got)
	}
}

func TestSubscribe(t *testing.T) {
	m := NewMemoryManager(nil)
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	if err := m.Set("KEY-SELECTION", "super+s"); err != nil {
		t.Fatal(err)
	}
	select {
	case key := <-ch:
		if key != KeyBindSelection {
			t.Fatalf("notified key = %q", key)
		}
	default:
		t.Fatal("no change notification")
	}
}

func TestValue(t *testing.T) {
	m := NewMemoryManager(nil)
	v, err := m.Value("filename-template")
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := v.(string); !strings.Contains(s, "%Y") {
		t.Fatalf("template value = %v", v)
	}
	if _, err := m.Value("bogus"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("err = %v", err)
	}
}
