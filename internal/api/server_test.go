package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/pipeline"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

type fakeActions struct {
	triggered []string
	err       error
}

var _ Actions = (*fakeActions)(nil)

func (a *fakeActions) Trigger(action string) error {
	a.triggered = append(a.triggered, action)
	return a.err
}

type fakeRegistry struct{}

var _ window.Registry = fakeRegistry{}

func (fakeRegistry) Monitors() ([]window.Monitor, error) {
	return []window.Monitor{{Name: "DP-1", Primary: true, Rect: geometry.Rect{Width: 1920, Height: 1080}}}, nil
}
func (fakeRegistry) Windows() ([]window.Window, error) { return nil, errors.New("no wm") }

func direct(_ context.Context, fn func()) error {
	fn()
	return nil
}

func newTestServer(t *testing.T, actions *fakeActions) (*Server, *httptest.Server, *config.Manager) {
	t.Helper()
	cfg := config.NewMemoryManager(nil)
	s := NewServer(cfg, fakeRegistry{}, actions, direct)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, cfg
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	_, ts, _ := newTestServer(t, &fakeActions{})
	resp, body := do(t, "GET", ts.URL+"/api/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestConfigEndpoints(t *testing.T) {
	_, ts, cfg := newTestServer(t, &fakeActions{})

	resp, body := do(t, "GET", ts.URL+"/api/config", "")
	if resp.StatusCode != http.StatusOK || body[config.KeyFlash] != "both" {
		t.Fatalf("config = %d %v", resp.StatusCode, body)
	}

	tests := []struct {
		name   string
		key    string
		body   string
		status int
	}{
		{name: "string value", key: "clipboard", body: `{"value":"uri"}`, status: http.StatusOK},
		{name: "bool value", key: "shadows", body: `{"value":false}`, status: http.StatusOK},
		{name: "number value", key: "api-port", body: `{"value":8099}`, status: http.StatusOK},
		{name: "alias", key: "filename-template", body: `{"value":"{width}x{height}.png"}`, status: http.StatusOK},
		{name: "invalid", key: "flash", body: `{"value":"strobe"}`, status: http.StatusBadRequest},
		{name: "unknown", key: "colour", body: `{"value":"red"}`, status: http.StatusNotFound},
		{name: "known provider", key: "upload-provider", body: `{"value":"lutim"}`, status: http.StatusOK},
		{name: "unknown provider", key: "upload-provider", body: `{"value":"imgurr"}`, status: http.StatusBadRequest},
		{name: "bad json", key: "clipboard", body: `{`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, "PUT", ts.URL+"/api/config/"+tt.key, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("PUT %s = %d %v", tt.key, resp.StatusCode, body)
			}
		})
	}

	snap := cfg.Snapshot()
	if snap.GetString(config.KeyClipboard) != "uri" || snap.GetBool(config.KeyShadows) || snap.GetInt(config.KeyAPIPort) != 8099 {
		t.Fatalf("snapshot = %v", snap)
	}
	if snap.GetString(config.KeyUploadProvider) != "lutim" {
		t.Fatalf("upload provider = %q", snap.GetString(config.KeyUploadProvider))
	}
	if snap.GetString(config.KeyTemplate) != "{width}x{height}.png" {
		t.Fatalf("template = %q", snap.GetString(config.KeyTemplate))
	}

	resp, body = do(t, "GET", ts.URL+"/api/config/clipboard", "")
	if resp.StatusCode != http.StatusOK || body["value"] != "uri" {
		t.Fatalf("GET key = %d %v", resp.StatusCode, body)
	}
	resp, _ = do(t, "GET", ts.URL+"/api/config/colour", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET unknown key = %d", resp.StatusCode)
	}
}

func TestProviders(t *testing.T) {
	_, ts, _ := newTestServer(t, &fakeActions{})
	resp, err := http.Get(ts.URL + "/api/providers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var metas []provider.Meta
	if err := json.NewDecoder(resp.Body).Decode(&metas); err != nil {
		t.Fatal(err)
	}
	if len(metas) != len(provider.List()) || metas[0].ID != "none" {
		t.Fatalf("providers = %+v", metas)
	}
}

func TestRegistryEndpoints(t *testing.T) {
	_, ts, _ := newTestServer(t, &fakeActions{})

	resp, err := http.Get(ts.URL + "/api/monitors")
	if err != nil {
		t.Fatal(err)
	}
	var monitors []window.Monitor
	json.NewDecoder(resp.Body).Decode(&monitors)
	resp.Body.Close()
	if len(monitors) != 1 || monitors[0].Name != "DP-1" {
		t.Fatalf("monitors = %+v", monitors)
	}

	resp, _ = do(t, "GET", ts.URL+"/api/windows", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("windows = %d", resp.StatusCode)
	}
}

func TestCapture(t *testing.T) {
	actions := &fakeActions{}
	_, ts, _ := newTestServer(t, actions)

	resp, body := do(t, "POST", ts.URL+"/api/capture/free-drag", "")
	if resp.StatusCode != http.StatusAccepted || body["action"] != "selection" {
		t.Fatalf("capture = %d %v", resp.StatusCode, body)
	}
	if len(actions.triggered) != 1 || actions.triggered[0] != "selection" {
		t.Fatalf("triggered = %v", actions.triggered)
	}

	resp, _ = do(t, "POST", ts.URL+"/api/capture/zoom", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action = %d", resp.StatusCode)
	}

	do(t, "GET", ts.URL+"/api/capture/desktop", "")
	if len(actions.triggered) != 1 {
		t.Fatal("GET must not trigger a capture")
	}

	actions.err = errors.New("no display")
	resp, _ = do(t, "POST", ts.URL+"/api/capture/desktop", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("failing trigger = %d", resp.StatusCode)
	}
}

func TestCaptureLoopGone(t *testing.T) {
	s := NewServer(config.NewMemoryManager(nil), nil, &fakeActions{}, func(context.Context, func()) error {
		return context.Canceled
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, _ := do(t, "POST", ts.URL+"/api/capture/desktop", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("capture = %d", resp.StatusCode)
	}
	resp, _ = do(t, "GET", ts.URL+"/api/monitors", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("monitors = %d", resp.StatusCode)
	}
}

func TestEventStream(t *testing.T) {
	s, ts, _ := newTestServer(t, &fakeActions{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// wait for the handler to subscribe
	deadline := time.Now().Add(2 * time.Second)
	for s.events.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Publish(pipeline.Event{Kind: pipeline.EventSaved, Path: "/tmp/a.png", URI: "file:///tmp/a.png"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev pipeline.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Kind != pipeline.EventSaved || ev.Path != "/tmp/a.png" {
		t.Fatalf("event = %+v", ev)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("stream should close on shutdown")
	}
}

func TestIndex(t *testing.T) {
	_, ts, _ := newTestServer(t, &fakeActions{})
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("index = %d", resp.StatusCode)
	}

	resp, _ = do(t, "GET", ts.URL+"/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path = %d", resp.StatusCode)
	}
}
