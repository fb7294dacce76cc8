package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

type fakeCapturer struct {
	name  string
	err   error
	calls []geometry.Rect
}

var _ Capturer = (*fakeCapturer)(nil)

func (f *fakeCapturer) Name() string      { return f.name }
func (f *fakeCapturer) IsAvailable() bool { return f.err == nil }
func (f *fakeCapturer) CaptureRegion(_ context.Context, rect geometry.Rect) (image.Image, error) {
	f.calls = append(f.calls, rect)
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, rect.Width, rect.Height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func tempIn(t *testing.T) func() (string, error) {
	dir := t.TempDir()
	n := 0
	return func() (string, error) {
		n++
		return filepath.Join(dir, "shot"+string(rune('a'+n))+".png"), nil
	}
}

func TestCaptureSyncWritesPNG(t *testing.T) {
	fc := &fakeCapturer{name: "fake"}
	inv := NewInvoker(fc, WithTempFile(tempIn(t)))

	rect := geometry.Rect{Left: 1920, Top: 0, Width: 40, Height: 30}
	res := inv.CaptureSync(context.Background(), rect)
	if !res.Usable() {
		t.Fatalf("result not usable: %+v", res)
	}
	if res.Area != rect {
		t.Fatalf("area = %v, want %v", res.Area, rect)
	}
	if len(fc.calls) != 1 || fc.calls[0] != rect {
		t.Fatalf("capturer got %+v", fc.calls)
	}

	img, err := imaging.Open(res.Path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Fatalf("size = %v", b)
	}
}

func TestCaptureSyncFailure(t *testing.T) {
	boom := errors.New("boom")
	inv := NewInvoker(&fakeCapturer{name: "fake", err: boom}, WithTempFile(tempIn(t)))
	res := inv.CaptureSync(context.Background(), geometry.Rect{Width: 10, Height: 10})
	if res.Success || res.Usable() || !errors.Is(res.Err, boom) {
		t.Fatalf("res = %+v", res)
	}
}

func TestCaptureSyncEmptyRect(t *testing.T) {
	fc := &fakeCapturer{name: "fake"}
	inv := NewInvoker(fc, WithTempFile(tempIn(t)))
	res := inv.CaptureSync(context.Background(), geometry.Rect{Width: 0, Height: 10})
	if res.Success || len(fc.calls) != 0 {
		t.Fatalf("empty rect captured: %+v", res)
	}
}

func TestCaptureAsyncPosts(t *testing.T) {
	posted := make(chan func(), 1)
	inv := NewInvoker(&fakeCapturer{name: "fake"},
		WithTempFile(tempIn(t)),
		WithPoster(func(fn func()) { posted <- fn }),
	)

	var got Result
	called := false
	inv.Capture(context.Background(), geometry.Rect{Width: 5, Height: 5}, func(r Result) {
		called = true
		got = r
	})

	fn := <-posted
	if called {
		t.Fatal("done ran before being posted")
	}
	fn()
	if !called || !got.Success {
		t.Fatalf("called=%v result=%+v", called, got)
	}
	if _, err := os.Stat(got.Path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestRouterFallsBack(t *testing.T) {
	first := &fakeCapturer{name: "x11", err: errors.New("BadMatch")}
	second := &fakeCapturer{name: "portal"}
	r := NewRouter(first, second)

	if r.Name() != "x11,portal" {
		t.Fatalf("name = %q", r.Name())
	}
	if _, err := r.CaptureRegion(context.Background(), geometry.Rect{Width: 2, Height: 2}); err != nil {
		t.Fatalf("CaptureRegion: %v", err)
	}
	if len(first.calls) != 1 || len(second.calls) != 1 {
		t.Fatalf("calls = %d, %d", len(first.calls), len(second.calls))
	}
}

func TestRouterAllFail(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(&fakeCapturer{name: "a", err: boom})
	if _, err := r.CaptureRegion(context.Background(), geometry.Rect{Width: 2, Height: 2}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewRouter().CaptureRegion(context.Background(), geometry.Rect{Width: 2, Height: 2}); !errors.Is(err, ErrNoCapturer) {
		t.Fatalf("empty router err = %v", err)
	}
}

func TestConvertBGRX(t *testing.T) {
	data := []byte{
		0x10, 0x20, 0x30, 0x00, 0x01, 0x02, 0x03, 0x00,
	}
	img, err := convertBGRX(data, 2, 1)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xff}) {
		t.Fatalf("pixel 0 = %v", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{R: 0x03, G: 0x02, B: 0x01, A: 0xff}) {
		t.Fatalf("pixel 1 = %v", got)
	}
	if _, err := convertBGRX(data, 3, 1); err == nil {
		t.Fatal("expected short data error")
	}
}

func TestParsePortalResponse(t *testing.T) {
	ok := []interface{}{uint32(0), map[string]dbus.Variant{"uri": dbus.MakeVariant("file:///tmp/s.png")}}
	if uri, err := parsePortalResponse(ok); err != nil || uri != "file:///tmp/s.png" {
		t.Fatalf("uri=%q err=%v", uri, err)
	}

	denied := []interface{}{uint32(1), map[string]dbus.Variant{}}
	if _, err := parsePortalResponse(denied); err == nil {
		t.Fatal("expected denied error")
	}
	if _, err := parsePortalResponse(nil); err == nil {
		t.Fatal("expected invalid error")
	}
}
