package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

func TestWithOverrides(t *testing.T) {
	base := config.Snapshot{
		config.KeyUploadProvider: "",
		config.KeyClipboard:      "none",
	}
	settings := withOverrides(func() config.Snapshot { return base }, map[string]any{
		config.KeyUploadProvider: "imgur",
	})

	s := settings()
	if s.GetString(config.KeyUploadProvider) != "imgur" || s.GetString(config.KeyClipboard) != "none" {
		t.Fatalf("merged = %v", s)
	}
	if base[config.KeyUploadProvider] != "" {
		t.Fatal("override leaked into the base snapshot")
	}
}

func TestShowConfigFormats(t *testing.T) {
	cfg := config.Defaults()

	for _, format := range []string{"yaml", "json", "table"} {
		var buf bytes.Buffer
		if err := showConfig(&buf, cfg, format); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !strings.Contains(buf.String(), "ctrl+shift+2") {
			t.Fatalf("%s output missing keybinding:\n%s", format, buf.String())
		}
	}

	var buf bytes.Buffer
	showConfig(&buf, cfg, "table")
	if !strings.Contains(buf.String(), "key-monitor") {
		t.Fatalf("table output:\n%s", buf.String())
	}

	if err := showConfig(&buf, cfg, "xml"); err == nil {
		t.Fatal("xml should be rejected")
	}
}

func TestSelectableWindows(t *testing.T) {
	windows := []window.Window{
		{ID: 1, Type: window.TypeDesktop, Visible: true},
		{ID: 2, Type: window.TypeNormal, Visible: true, Frame: geometry.Rect{Width: 10, Height: 10}},
		{ID: 3, Type: window.TypeDialog, Visible: false},
		{ID: 4, Type: window.TypeModalDialog, Visible: true},
	}
	got := selectableWindows(windows)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 4 {
		t.Fatalf("selectable = %+v", got)
	}
}

func TestPrintTables(t *testing.T) {
	var buf bytes.Buffer
	printProvidersTable(&buf, provider.List())
	if !strings.Contains(buf.String(), "imgur") || !strings.Contains(buf.String(), "picpaste") {
		t.Fatalf("providers table:\n%s", buf.String())
	}

	buf.Reset()
	printMonitorsTable(&buf, []window.Monitor{{Name: "HDMI-1", Rect: geometry.Rect{Left: 1920, Width: 1280, Height: 1024}}})
	if !strings.Contains(buf.String(), "1280x1024+1920+0") {
		t.Fatalf("monitors table:\n%s", buf.String())
	}
}
