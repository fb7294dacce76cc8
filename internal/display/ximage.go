package display

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// pixmapFormat is the server's layout for one depth
type pixmapFormat struct {
	depth         byte
	bytesPerPixel int
	scanlinePad   int
}

func formatFor(conn *xgb.Conn, depth byte) (pixmapFormat, error) {
	for _, f := range xproto.Setup(conn).PixmapFormats {
		if f.Depth == depth {
			return pixmapFormat{
				depth:         depth,
				bytesPerPixel: int(f.BitsPerPixel) / 8,
				scanlinePad:   int(f.ScanlinePad) / 8,
			}, nil
		}
	}
	return pixmapFormat{}, fmt.Errorf("no format found for depth %d", depth)
}

// stride is the padded length of one scanline
func (f pixmapFormat) stride(width int) int {
	unpadded := width * f.bytesPerPixel
	if f.scanlinePad <= 1 {
		return unpadded
	}
	return ((unpadded + f.scanlinePad - 1) / f.scanlinePad) * f.scanlinePad
}

// encode converts rows [y0, y1) of img into ZPixmap data. RGBA is already
// premultiplied, which is what ARGB visuals expect.
func (f pixmapFormat) encode(img *image.RGBA, y0, y1 int) ([]byte, error) {
	b := img.Bounds()
	width := b.Dx()
	stride := f.stride(width)
	data := make([]byte, stride*(y1-y0))

	for y := y0; y < y1; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		out := data[(y-y0)*stride:]
		for x := 0; x < width; x++ {
			src := row[x*4 : x*4+4]
			dst := out[x*f.bytesPerPixel:]
			switch f.bytesPerPixel {
			case 4:
				dst[0] = src[2]
				dst[1] = src[1]
				dst[2] = src[0]
				if f.depth == 32 {
					dst[3] = src[3]
				}
			case 3:
				dst[0] = src[2]
				dst[1] = src[1]
				dst[2] = src[0]
			default:
				return nil, fmt.Errorf("unsupported bytes per pixel: %d", f.bytesPerPixel)
			}
		}
	}
	return data, nil
}

// rowsPerRequest keeps each PutImage under the server's request limit
func rowsPerRequest(conn *xgb.Conn, stride int) int {
	maxBytes := int(xproto.Setup(conn).MaximumRequestLength)*4 - 32
	rows := maxBytes / stride
	if rows < 1 {
		rows = 1
	}
	return rows
}

// putImage sends img to drawable at (0,0) in strips
func putImage(conn *xgb.Conn, drawable xproto.Drawable, gc xproto.Gcontext, f pixmapFormat, img *image.RGBA) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	step := rowsPerRequest(conn, f.stride(width))

	for y := 0; y < height; y += step {
		end := min(y+step, height)
		data, err := f.encode(img, y, end)
		if err != nil {
			return err
		}
		err = xproto.PutImageChecked(
			conn,
			xproto.ImageFormatZPixmap,
			drawable,
			gc,
			uint16(width),
			uint16(end-y),
			0, int16(y),
			0,
			f.depth,
			data,
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image: %w", err)
		}
	}
	return nil
}

// grabRoot reads the whole root window, for hosts without an ARGB visual
func grabRoot(conn *xgb.Conn, screen *xproto.ScreenInfo) (*image.RGBA, error) {
	w, h := int(screen.WidthInPixels), int(screen.HeightInPixels)
	reply, err := xproto.GetImage(
		conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(screen.Root),
		0, 0,
		uint16(w), uint16(h),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if len(reply.Data) < w*h*4 {
		return nil, fmt.Errorf("short root image: %d bytes", len(reply.Data))
	}
	for i := 0; i < w*h*4; i += 4 {
		img.Pix[i] = reply.Data[i+2]
		img.Pix[i+1] = reply.Data[i+1]
		img.Pix[i+2] = reply.Data[i]
		img.Pix[i+3] = 255
	}
	return img, nil
}
