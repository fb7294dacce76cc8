// Package provider uploads captures to image hosting services. Every
// provider reports back with a single Event, whether the upload worked,
// failed on the wire or returned something unparseable.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/file"
)

// ErrUnknownProvider is returned by New for ids not in the registry
var ErrUnknownProvider = errors.New("unknown upload provider")

// Version is embedded in the user agent
var Version = "dev"

// UserAgent is sent with every upload unless a provider overrides it
func UserAgent() string {
	return "screengrabber_v" + Version
}

const (
	errUnknown     = "Unknown error"
	errUnparseable = "Unable to parse error message from response"

	defaultTimeout = 60 * time.Second
)

// Status is the HTTP status of the finished request
type Status struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// Info identifies the provider in an event
type Info struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Data carries URLs on success and a message on failure
type Data struct {
	Image   string `json:"image,omitempty"`
	Preview string `json:"preview,omitempty"`
	Delete  string `json:"delete,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Event is the outcome of one upload
type Event struct {
	Success  bool   `json:"success"`
	Status   Status `json:"status"`
	Provider Info   `json:"provider"`
	Data     Data   `json:"data"`
}

// Link is the URL to hand to the user: preview first, then image
func (e Event) Link() string {
	if e.Data.Preview != "" {
		return e.Data.Preview
	}
	return e.Data.Image
}

// Meta describes a provider for listings and settings
type Meta struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	API         string `json:"api"`
}

// Provider uploads one file at a time
type Provider interface {
	Meta() Meta
	// Upload sends path and returns immediately. done receives exactly one
	// Event unless the upload is cancelled first.
	Upload(ctx context.Context, path string, done func(Event))
	// Cancel abandons the in-flight upload, if any
	Cancel()
}

// Options configures providers built by New
type Options struct {
	Client *http.Client
	// Post schedules done callbacks, normally on the event loop
	Post func(func())
	// API overrides the upload endpoint
	API string
}

// Option modifies Options
type Option func(*Options)

// WithClient sets the HTTP client
func WithClient(c *http.Client) Option {
	return func(o *Options) { o.Client = c }
}

// WithPoster routes done callbacks through post
func WithPoster(post func(func())) Option {
	return func(o *Options) { o.Post = post }
}

// WithAPI overrides the upload endpoint
func WithAPI(api string) Option {
	return func(o *Options) { o.API = api }
}

func newOptions(opts []Option) Options {
	o := Options{
		Client: &http.Client{Timeout: defaultTimeout},
		Post:   func(fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type entry struct {
	meta Meta
	new  func(Meta, Options) Provider
}

// registry is ordered the way providers are listed to users
var registry = []entry{
	{noneMeta, func(m Meta, o Options) Provider { return &None{meta: m} }},
	{imgurMeta, newImgur},
	{imgbinMeta, newImgbin},
	{uploadsImMeta, newUploadsIm},
	{anonImageMeta, newAnonImage},
	{unseeMeta, newUnsee},
	{dropfileToMeta, newDropfileTo},
	{lutimMeta, newLutim},
	{picPasteMeta, newPicPaste},
}

// List returns the metadata of every provider
func List() []Meta {
	metas := make([]Meta, len(registry))
	for i, e := range registry {
		metas[i] = e.meta
	}
	return metas
}

// Lookup finds a provider by id, case-insensitively. The empty id is None.
func Lookup(id string) (Meta, bool) {
	e, ok := lookup(id)
	return e.meta, ok
}

func lookup(id string) (entry, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		id = noneMeta.ID
	}
	for _, e := range registry {
		if e.meta.ID == id {
			return e, true
		}
	}
	return entry{}, false
}

// New builds the provider with the given id
func New(id string, opts ...Option) (Provider, error) {
	e, ok := lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	o := newOptions(opts)
	meta := e.meta
	if o.API != "" {
		meta.API = o.API
	}
	return e.new(meta, o), nil
}

// Uploads reports whether id names a provider that sends the file somewhere.
// Unknown ids disable the upload the same way none does.
func Uploads(id string) bool {
	e, ok := lookup(id)
	return ok && e.meta.ID != noneMeta.ID
}

// CheckSetting rejects an upload-provider value that no provider answers to.
// Other keys pass through untouched.
func CheckSetting(key, value string) error {
	if config.CanonicalKey(key) != config.KeyUploadProvider {
		return nil
	}
	if _, ok := lookup(value); !ok {
		return fmt.Errorf("%w: %s=%q (see 'screengrabber providers')", config.ErrInvalidValue, config.KeyUploadProvider, value)
	}
	return nil
}

// IsNone reports whether id selects the local-only provider
func IsNone(id string) bool {
	e, ok := lookup(id)
	return ok && e.meta.ID == noneMeta.ID
}

var noneMeta = Meta{ID: "none", Title: "none"}

// None uploads nothing: the event points at the local file
type None struct {
	meta Meta
}

var _ Provider = (*None)(nil)

// Meta returns the provider metadata
func (n *None) Meta() Meta { return n.meta }

// Upload reports the file URI as both image and preview. done runs on the
// calling goroutine since nothing happens in the background.
func (n *None) Upload(_ context.Context, path string, done func(Event)) {
	uri := file.ToURI(path)
	ev := Event{
		Success:  true,
		Provider: Info{Title: n.meta.Title, URL: n.meta.URL},
		Data:     Data{Image: uri, Preview: uri},
	}
	done(ev)
}

// Cancel is a no-op
func (n *None) Cancel() {}
