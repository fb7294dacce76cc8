package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

// X11Capturer reads pixels from the root window with GetImage
type X11Capturer struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
	mu     sync.Mutex
}

var _ Capturer = (*X11Capturer)(nil)

// NewX11Capturer connects to the X server
func NewX11Capturer() (*X11Capturer, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	return &X11Capturer{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}, nil
}

// Name returns the capturer name
func (c *X11Capturer) Name() string {
	return "x11"
}

// IsAvailable reports whether the root visual is one we can decode
func (c *X11Capturer) IsAvailable() bool {
	return c.screen.RootDepth == 24 || c.screen.RootDepth == 32
}

// Close closes the X connection
func (c *X11Capturer) Close() {
	c.conn.Close()
}

// CaptureRegion grabs rect from the root window
func (c *X11Capturer) CaptureRegion(ctx context.Context, rect geometry.Rect) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	screen := geometry.Size{Width: int(c.screen.WidthInPixels), Height: int(c.screen.HeightInPixels)}
	r := rect.Clamp(screen)
	if r.Empty() {
		return nil, fmt.Errorf("capture area %s outside screen", rect)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := xproto.GetImage(
		c.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(c.root),
		int16(r.Left), int16(r.Top),
		uint16(r.Width), uint16(r.Height),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return convertBGRX(reply.Data, r.Width, r.Height)
}

// convertBGRX turns 32bpp ZPixmap data into an opaque RGBA image
func convertBGRX(data []byte, width, height int) (*image.RGBA, error) {
	stride := width * 4
	if len(data) < stride*height {
		return nil, fmt.Errorf("short image data: got %d bytes, want %d", len(data), stride*height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := data[y*stride : (y+1)*stride]
		dst := img.Pix[y*img.Stride : y*img.Stride+stride]
		for i := 0; i < stride; i += 4 {
			dst[i] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i]
			dst[i+3] = 255
		}
	}
	return img, nil
}
