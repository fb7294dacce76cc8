// Package clipboard puts a capture on the system clipboard, either as its
// file URI or as PNG image data.
package clipboard

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/disintegration/imaging"
	"golang.design/x/clipboard"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/file"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// Writer is the system clipboard
type Writer interface {
	WriteText(text string) error
	WriteImage(png []byte) error
}

// System writes through golang.design/x/clipboard
type System struct {
	once    sync.Once
	initErr error
}

var _ Writer = (*System)(nil)

// NewSystem returns the system clipboard. Initialization is deferred to the
// first write so headless commands never touch the display.
func NewSystem() *System {
	return &System{}
}

func (s *System) init() error {
	s.once.Do(func() {
		if err := clipboard.Init(); err != nil {
			s.initErr = fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	})
	return s.initErr
}

// WriteText sets text
func (s *System) WriteText(text string) error {
	if err := s.init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// WriteImage sets PNG image data
func (s *System) WriteImage(png []byte) error {
	if err := s.init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// Copier applies the clipboard setting to a path or an upload URL
type Copier struct {
	writer Writer
}

// NewCopier wraps w
func NewCopier(w Writer) *Copier {
	return &Copier{writer: w}
}

// CopyFile copies path according to mode: its URI or its decoded image
func (c *Copier) CopyFile(mode, path string) error {
	log := logger.WithComponent("clipboard")

	switch mode {
	case config.ClipboardURI:
		uri := file.ToURI(path)
		if err := c.writer.WriteText(uri); err != nil {
			return err
		}
		log.Debug().Str("uri", uri).Msg("Copied URI")
		return nil
	case config.ClipboardImage:
		data, err := encodePNG(path)
		if err != nil {
			return err
		}
		if err := c.writer.WriteImage(data); err != nil {
			return err
		}
		log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Copied image")
		return nil
	}
	return nil
}

// CopyText copies text unless mode is none. Upload results replace whatever
// the file stage copied, even in image mode.
func (c *Copier) CopyText(mode, text string) error {
	if mode != config.ClipboardURI && mode != config.ClipboardImage {
		return nil
	}
	return c.writer.WriteText(text)
}

// encodePNG decodes any supported image file and re-encodes it as PNG, the
// only image format the clipboard library offers.
func encodePNG(path string) ([]byte, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
