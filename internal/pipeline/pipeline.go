// Package pipeline runs the post-capture stages in their fixed order:
// flash, move, clipboard, notification, upload.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/bryanchriswhite/ScreenGrabber/internal/capture"
	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/file"
	"github.com/bryanchriswhite/ScreenGrabber/internal/flash"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/notification"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
)

// Flasher runs the flash stage
type Flasher interface {
	Run(mode flash.Mode, area geometry.Rect, done func())
}

// Clipboard runs the clipboard stage
type Clipboard interface {
	CopyFile(mode, path string) error
	CopyText(mode, text string) error
}

// Notifier runs the notification stage
type Notifier interface {
	Show(title, body string) error
}

// ProviderFactory builds the configured upload provider
type ProviderFactory func(id string) (provider.Provider, error)

// EventKind classifies pipeline events
type EventKind string

const (
	EventSaved    EventKind = "saved"
	EventUploaded EventKind = "uploaded"
	EventFailed   EventKind = "upload_failed"
)

// Event is published to observers after the local stages and after upload
type Event struct {
	Kind   EventKind       `json:"kind"`
	Path   string          `json:"path"`
	URI    string          `json:"uri"`
	Area   geometry.Rect   `json:"area"`
	Upload *provider.Event `json:"upload,omitempty"`
	Time   time.Time       `json:"time"`
}

// Pipeline wires the stages. Run is expected on the event loop; upload
// completion must be posted back to it by the provider factory.
type Pipeline struct {
	settings    func() config.Settings
	flasher     Flasher
	clipboard   Clipboard
	notifier    Notifier
	newProvider ProviderFactory

	render func(area geometry.Rect, template string) string
	move   func(src, dst string) error
	remove func(path string) error

	mu        sync.Mutex
	uploads   map[provider.Provider]struct{}
	observers []func(Event)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRenderer overrides filename template rendering
func WithRenderer(fn func(area geometry.Rect, template string) string) Option {
	return func(p *Pipeline) { p.render = fn }
}

// WithFileOps overrides move and remove
func WithFileOps(move func(src, dst string) error, remove func(path string) error) Option {
	return func(p *Pipeline) {
		p.move = move
		p.remove = remove
	}
}

// New creates a pipeline. Any stage implementation may be nil, which skips it.
func New(settings func() config.Settings, flasher Flasher, clipboard Clipboard, notifier Notifier, providers ProviderFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		settings:    settings,
		flasher:     flasher,
		clipboard:   clipboard,
		notifier:    notifier,
		newProvider: providers,
		render:      file.Screenshot,
		move:        file.Move,
		remove:      file.Remove,
		uploads:     make(map[provider.Provider]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers fn for pipeline events
func (p *Pipeline) Subscribe(fn func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

func (p *Pipeline) publish(ev Event) {
	ev.Time = time.Now()
	p.mu.Lock()
	observers := append([]func(Event){}, p.observers...)
	p.mu.Unlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// Run processes one capture and returns the local path it ended up at.
// Unusable results stop here and return "".
func (p *Pipeline) Run(ctx context.Context, res capture.Result) string {
	log := logger.WithComponent("pipeline")
	if !res.Usable() {
		log.Warn().
			Err(res.Err).
			Bool("success", res.Success).
			Str("area", res.Area.String()).
			Msg("Capture unusable, skipping pipeline")
		return ""
	}

	s := p.settings()
	path := res.Path

	p.flash(s, res.Area)
	path = p.moveToTemplate(s, res.Area, path)

	clipMode := s.GetString(config.KeyClipboard)
	if p.clipboard != nil {
		if err := p.clipboard.CopyFile(clipMode, path); err != nil {
			log.Warn().Err(err).Str("mode", clipMode).Msg("Clipboard stage failed")
		}
	}

	notify := s.GetBool(config.KeyNotifications)
	if notify && p.notifier != nil {
		if err := p.notifier.Show(notification.AppName, file.ToURI(path)); err != nil {
			log.Warn().Err(err).Msg("Notification stage failed")
		}
	}

	p.publish(Event{Kind: EventSaved, Path: path, URI: file.ToURI(path), Area: res.Area})

	p.upload(ctx, s, res.Area, path, clipMode, notify)
	return path
}

func (p *Pipeline) flash(s config.Settings, area geometry.Rect) {
	if p.flasher == nil {
		return
	}
	mode := flash.ParseMode(s.GetString(config.KeyFlash))
	if !mode.Enabled() {
		return
	}
	// the effect is feedback only, later stages do not wait for the fade
	p.flasher.Run(mode, area, func() {})
}

func (p *Pipeline) moveToTemplate(s config.Settings, area geometry.Rect, path string) string {
	template := s.GetString(config.KeyTemplate)
	if template == "" {
		return path
	}

	log := logger.WithComponent("pipeline")
	dst := p.render(area, template)
	if dst == "" {
		return path
	}
	if err := p.move(path, dst); err != nil {
		log.Error().Err(err).Str("src", path).Str("dst", dst).Msg("Failed to move capture")
		return path
	}
	log.Info().Str("path", dst).Msg("Screenshot saved")
	return dst
}

func (p *Pipeline) upload(ctx context.Context, s config.Settings, area geometry.Rect, path, clipMode string, notify bool) {
	if p.newProvider == nil {
		return
	}
	log := logger.WithComponent("pipeline")

	id := s.GetString(config.KeyUploadProvider)
	if _, ok := provider.Lookup(id); !ok {
		log.Warn().Str("provider", id).Msg("Unknown upload provider, upload disabled")
		return
	}
	local := provider.IsNone(id)
	if local && id == "" {
		return
	}

	prov, err := p.newProvider(id)
	if err != nil {
		log.Warn().Err(err).Str("provider", id).Msg("Upload provider unavailable")
		return
	}

	p.mu.Lock()
	p.uploads[prov] = struct{}{}
	p.mu.Unlock()

	deleteAfter := s.GetBool(config.KeyDeleteAfterUpload)

	prov.Upload(ctx, path, func(ev provider.Event) {
		p.mu.Lock()
		delete(p.uploads, prov)
		p.mu.Unlock()

		out := Event{Kind: EventUploaded, Path: path, URI: file.ToURI(path), Area: area, Upload: &ev}
		if !ev.Success {
			out.Kind = EventFailed
		}

		// the local provider only echoes the file URI, nothing to supersede
		if !local {
			p.applyUpload(ev, clipMode, notify)
			if ev.Success && deleteAfter {
				if err := p.remove(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("Failed to delete uploaded file")
				} else {
					log.Info().Str("path", path).Msg("Deleted local copy after upload")
				}
			}
		}
		p.publish(out)
	})
}

// applyUpload supersedes the local notification and clipboard content
func (p *Pipeline) applyUpload(ev provider.Event, clipMode string, notify bool) {
	log := logger.WithComponent("pipeline")

	if ev.Success {
		link := ev.Link()
		if p.clipboard != nil {
			if err := p.clipboard.CopyText(clipMode, link); err != nil {
				log.Warn().Err(err).Msg("Failed to copy upload link")
			}
		}
		if notify && p.notifier != nil {
			if err := p.notifier.Show(notification.AppName, link); err != nil {
				log.Warn().Err(err).Msg("Failed to notify upload link")
			}
		}
		return
	}

	log.Warn().
		Str("provider", ev.Provider.Title).
		Int("status", ev.Status.Code).
		Str("error", ev.Data.Error).
		Msg("Upload failed")
	if notify && p.notifier != nil {
		body := ev.Provider.Title + ": " + ev.Data.Error
		if err := p.notifier.Show(notification.AppName, body); err != nil {
			log.Warn().Err(err).Msg("Failed to notify upload error")
		}
	}
}

// Cancel abandons every in-flight upload
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	uploads := p.uploads
	p.uploads = make(map[provider.Provider]struct{})
	p.mu.Unlock()
	for prov := range uploads {
		prov.Cancel()
	}
}
