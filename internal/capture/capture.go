// Package capture renders a screen rectangle into a temporary PNG file.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	"github.com/bryanchriswhite/ScreenGrabber/internal/file"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// ErrNoCapturer is returned when no backend can capture on this display
var ErrNoCapturer = errors.New("no capture backend available")

// Capturer grabs pixels of a desktop rectangle
type Capturer interface {
	// CaptureRegion returns the pixels of rect in desktop coordinates
	CaptureRegion(ctx context.Context, rect geometry.Rect) (image.Image, error)

	// Name returns a human-readable name for this capturer
	Name() string

	// IsAvailable checks if this capturer can be used in the current environment
	IsAvailable() bool
}

// Result is the outcome of one capture
type Result struct {
	Path    string        `json:"path"`
	Area    geometry.Rect `json:"area"`
	Success bool          `json:"success"`
	Err     error         `json:"-"`
}

// Usable reports whether the pipeline should run for this result
func (r Result) Usable() bool {
	return r.Success && r.Path != "" && !r.Area.Empty()
}

// Invoker runs captures off the caller's goroutine and reports back through
// a poster, normally the event loop.
type Invoker struct {
	capturer Capturer
	post     func(func())
	tempFile func() (string, error)
}

// Option configures an Invoker
type Option func(*Invoker)

// WithPoster routes completion callbacks through post
func WithPoster(post func(func())) Option {
	return func(inv *Invoker) { inv.post = post }
}

// WithTempFile overrides temp file creation
func WithTempFile(fn func() (string, error)) Option {
	return func(inv *Invoker) { inv.tempFile = fn }
}

// NewInvoker wraps a capturer
func NewInvoker(c Capturer, opts ...Option) *Invoker {
	inv := &Invoker{
		capturer: c,
		post:     func(fn func()) { fn() },
		tempFile: file.Temp,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Capture starts capturing rect and returns immediately. done receives
// exactly one Result; failures arrive as Success=false.
func (inv *Invoker) Capture(ctx context.Context, rect geometry.Rect, done func(Result)) {
	go func() {
		res := inv.CaptureSync(ctx, rect)
		inv.post(func() { done(res) })
	}()
}

// CaptureSync captures rect into a new temp file
func (inv *Invoker) CaptureSync(ctx context.Context, rect geometry.Rect) Result {
	log := logger.WithComponent("capture")
	res := Result{Area: rect}

	if rect.Empty() {
		res.Err = fmt.Errorf("empty capture area %s", rect)
		return res
	}

	img, err := inv.capturer.CaptureRegion(ctx, rect)
	if err != nil {
		log.Error().Err(err).Str("backend", inv.capturer.Name()).Str("rect", rect.String()).Msg("Capture failed")
		res.Err = err
		return res
	}

	path, err := inv.tempFile()
	if err != nil {
		res.Err = err
		return res
	}
	if err := writePNG(path, img); err != nil {
		_ = file.Remove(path)
		log.Error().Err(err).Str("path", path).Msg("Failed to write capture")
		res.Err = err
		return res
	}

	res.Path = path
	res.Success = true
	log.Info().
		Str("backend", inv.capturer.Name()).
		Str("rect", rect.String()).
		Str("path", path).
		Msg("Captured")
	return res
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}
