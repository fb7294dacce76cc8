package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

// ScreenshotCapturer uses kbinani/screenshot, the last resort backend
type ScreenshotCapturer struct{}

var _ Capturer = ScreenshotCapturer{}

// Name returns the capturer name
func (ScreenshotCapturer) Name() string {
	return "screenshot"
}

// IsAvailable reports whether any display is active
func (ScreenshotCapturer) IsAvailable() bool {
	return screenshot.NumActiveDisplays() > 0
}

// CaptureRegion captures rect
func (ScreenshotCapturer) CaptureRegion(ctx context.Context, rect geometry.Rect) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(rect.Image())
	if err != nil {
		return nil, fmt.Errorf("failed to capture rect: %w", err)
	}
	return img, nil
}
