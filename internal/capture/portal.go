package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/ScreenGrabber/internal/file"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// Portal D-Bus constants
const (
	portalService   = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenshotIface = "org.freedesktop.portal.Screenshot"
	requestIface    = "org.freedesktop.portal.Request"

	portalTimeout = 30 * time.Second
)

var portalRequests atomic.Uint32

// PortalCapturer takes a full screenshot through xdg-desktop-portal and
// crops it. Used when the X server refuses GetImage, e.g. under XWayland.
type PortalCapturer struct {
	conn *dbus.Conn
}

var _ Capturer = (*PortalCapturer)(nil)

// NewPortalCapturer connects to the session bus
func NewPortalCapturer() (*PortalCapturer, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &PortalCapturer{conn: conn}, nil
}

// Name returns the capturer name
func (p *PortalCapturer) Name() string {
	return "portal"
}

// IsAvailable reports whether the portal service is on the bus
func (p *PortalCapturer) IsAvailable() bool {
	var names []string
	if err := p.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return false
	}
	for _, n := range names {
		if n == portalService {
			return true
		}
	}
	return false
}

// Close closes the bus connection
func (p *PortalCapturer) Close() error {
	return p.conn.Close()
}

// CaptureRegion asks the portal for a non-interactive screenshot and crops rect
func (p *PortalCapturer) CaptureRegion(ctx context.Context, rect geometry.Rect) (image.Image, error) {
	uri, err := p.screenshot(ctx)
	if err != nil {
		return nil, err
	}
	path, err := file.FromURI(uri)
	if err != nil {
		return nil, err
	}
	// the portal leaves its file behind
	defer os.Remove(path)

	full, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open portal screenshot: %w", err)
	}
	return imaging.Crop(full, rect.Image()), nil
}

func (p *PortalCapturer) screenshot(ctx context.Context) (string, error) {
	log := logger.WithComponent("portal")

	token := fmt.Sprintf("screengrabber%d_%d", os.Getpid(), portalRequests.Add(1))
	sender := strings.ReplaceAll(strings.TrimPrefix(p.conn.Names()[0], ":"), ".", "_")
	expected := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/portal/desktop/request/%s/%s", sender, token))

	// subscribe before calling so a fast Response is not lost
	matchRule := fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, expected)
	if err := p.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
		log.Warn().Err(err).Msg("Failed to add match rule")
	}
	defer p.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, matchRule)

	signals := make(chan *dbus.Signal, 4)
	p.conn.Signal(signals)
	defer p.conn.RemoveSignal(signals)

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"interactive":  dbus.MakeVariant(false),
	}
	var requestPath dbus.ObjectPath
	obj := p.conn.Object(portalService, portalPath)
	if err := obj.CallWithContext(ctx, screenshotIface+".Screenshot", 0, "", options).Store(&requestPath); err != nil {
		return "", fmt.Errorf("screenshot call failed: %w", err)
	}

	timeout := time.NewTimer(portalTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout.C:
			return "", fmt.Errorf("timeout waiting for portal screenshot")
		case sig := <-signals:
			if sig.Name != requestIface+".Response" || (sig.Path != requestPath && sig.Path != expected) {
				continue
			}
			return parsePortalResponse(sig.Body)
		}
	}
}

func parsePortalResponse(body []interface{}) (string, error) {
	if len(body) < 2 {
		return "", fmt.Errorf("invalid portal response")
	}
	code, ok := body[0].(uint32)
	if !ok {
		return "", fmt.Errorf("invalid portal response code %T", body[0])
	}
	if code != 0 {
		return "", fmt.Errorf("portal request denied (code %d)", code)
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return "", fmt.Errorf("invalid portal results %T", body[1])
	}
	uri, ok := results["uri"].Value().(string)
	if !ok || uri == "" {
		return "", fmt.Errorf("no uri in portal response")
	}
	return uri, nil
}
