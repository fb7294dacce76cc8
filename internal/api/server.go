package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/grabber"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/pipeline"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

// ConfigStore reads and updates settings, see config.Manager
type ConfigStore interface {
	Snapshot() config.Snapshot
	Value(key string) (any, error)
	Set(key, value string) error
}

// Actions starts capture sessions, see indicator.Indicator
type Actions interface {
	Trigger(action string) error
}

// Caller runs fn on the event loop and waits, see eventloop.Loop.Call
type Caller func(ctx context.Context, fn func()) error

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	config   ConfigStore
	registry window.Registry
	actions  Actions
	call     Caller
	events   *hub
	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer creates a new API server. registry and actions may be nil, the
// matching endpoints then answer 503.
func NewServer(cfg ConfigStore, registry window.Registry, actions Actions, call Caller) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		config:   cfg,
		registry: registry,
		actions:  actions,
		call:     call,
		events:   newHub(),
		upgrader: websocket.Upgrader{
			// the listener is bound to localhost
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config/{key}", s.handleGetConfigKey).Methods("GET")
	api.HandleFunc("/config/{key}", s.handleSetConfigKey).Methods("PUT")

	// Capture
	api.HandleFunc("/providers", s.handleProviders).Methods("GET")
	api.HandleFunc("/monitors", s.handleMonitors).Methods("GET")
	api.HandleFunc("/windows", s.handleWindows).Methods("GET")
	api.HandleFunc("/capture/{action}", s.handleCapture).Methods("POST")
	api.HandleFunc("/events", s.handleEvents)

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the router with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Publish forwards a pipeline event to every connected event stream
func (s *Server) Publish(ev pipeline.Event) {
	s.events.publish(ev)
}

// Start listens on localhost:port and serves until Shutdown
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithComponent("api").Info().
		Str("url", "http://"+addr).
		Msg("Starting API server")

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown closes event streams and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": provider.Version,
		"clients": s.events.count(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Snapshot())
}

func (s *Server) handleGetConfigKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, err := s.config.Value(key)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (s *Server) handleSetConfigKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	value := rawValue(req.Value)
	err := provider.CheckSetting(key, value)
	if err == nil {
		err = s.config.Set(key, value)
	}
	if err != nil {
		switch {
		case errors.Is(err, config.ErrUnknownKey):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, config.ErrInvalidValue):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// rawValue accepts a JSON string, bool or number and returns its text
func rawValue(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return strings.TrimSpace(string(raw))
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, provider.List())
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no display connection"))
		return
	}
	monitors, err := s.registry.Monitors()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, monitors)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no display connection"))
		return
	}
	windows, err := s.registry.Windows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	strategy, err := grabber.ParseStrategy(action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.actions == nil || s.call == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("capture is not available"))
		return
	}

	var triggerErr error
	if err := s.call(r.Context(), func() {
		triggerErr = s.actions.Trigger(strategy.String())
	}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if triggerErr != nil {
		writeError(w, http.StatusInternalServerError, triggerErr)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"action": strategy.String(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.events.subscribe()
	defer s.events.unsubscribe(updates)

	// the read side only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

const index = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>ScreenGrabber</title>
    <style>
        body { font-family: sans-serif; max-width: 720px; margin: 40px auto; color: #333; }
        code { background: #f5f5f5; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>ScreenGrabber</h1>
    <p>✅ Running</p>
    <ul>
        <li><a href="/api/health">/api/health</a></li>
        <li><a href="/api/config">/api/config</a> (<code>PUT /api/config/{key}</code>)</li>
        <li><a href="/api/providers">/api/providers</a></li>
        <li><a href="/api/monitors">/api/monitors</a>, <a href="/api/windows">/api/windows</a></li>
        <li><code>POST /api/capture/{desktop|monitor|window|selection}</code></li>
        <li><code>ws://.../api/events</code></li>
    </ul>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(index))
		return
	}
	http.NotFound(w, r)
}
