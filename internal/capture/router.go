package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// Router tries its capturers in order until one succeeds
type Router struct {
	capturers []Capturer
	closers   []func()
	mu        sync.RWMutex
}

var _ Capturer = (*Router)(nil)

// NewRouter creates a router over an explicit list of capturers
func NewRouter(capturers ...Capturer) *Router {
	return &Router{capturers: capturers}
}

// DefaultRouter probes the X server, the desktop portal and finally
// kbinani/screenshot.
func DefaultRouter() (*Router, error) {
	log := logger.WithComponent("capture-router")
	r := &Router{}

	if x11, err := NewX11Capturer(); err != nil {
		log.Warn().Err(err).Msg("X11 capturer not available")
	} else if !x11.IsAvailable() {
		log.Warn().Msg("Unsupported root depth, skipping X11 capturer")
		x11.Close()
	} else {
		r.capturers = append(r.capturers, x11)
		r.closers = append(r.closers, x11.Close)
		log.Info().Msg("X11 capturer initialized")
	}

	if portal, err := NewPortalCapturer(); err != nil {
		log.Warn().Err(err).Msg("Portal capturer not available")
	} else if !portal.IsAvailable() {
		log.Debug().Msg("No screenshot portal on the session bus")
		portal.Close()
	} else {
		r.capturers = append(r.capturers, portal)
		r.closers = append(r.closers, func() { portal.Close() })
		log.Info().Msg("Portal capturer initialized")
	}

	if sc := (ScreenshotCapturer{}); sc.IsAvailable() {
		r.capturers = append(r.capturers, sc)
	}

	if len(r.capturers) == 0 {
		return nil, ErrNoCapturer
	}
	return r, nil
}

// Name lists the backends in order
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.capturers) == 0 {
		return "none"
	}
	name := r.capturers[0].Name()
	for _, c := range r.capturers[1:] {
		name += "," + c.Name()
	}
	return name
}

// IsAvailable reports whether any backend is usable
func (r *Router) IsAvailable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.capturers {
		if c.IsAvailable() {
			return true
		}
	}
	return false
}

// CaptureRegion captures with the first backend that does not fail
func (r *Router) CaptureRegion(ctx context.Context, rect geometry.Rect) (image.Image, error) {
	r.mu.RLock()
	capturers := append([]Capturer(nil), r.capturers...)
	r.mu.RUnlock()

	log := logger.WithComponent("capture-router")

	var lastErr error
	for _, c := range capturers {
		img, err := c.CaptureRegion(ctx, rect)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Err(err).Str("backend", c.Name()).Msg("Falling back to next capturer")
		lastErr = err
	}
	if lastErr == nil {
		return nil, ErrNoCapturer
	}
	return nil, fmt.Errorf("all capturers failed: %w", lastErr)
}

// Close releases backend connections
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.closers {
		c()
	}
	r.closers = nil
	r.capturers = nil
}
