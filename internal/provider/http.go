package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/bryanchriswhite/ScreenGrabber/internal/file"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

const maxResponseBody = 1 << 20

// field is one multipart form field; file fields carry a path
type field struct {
	name  string
	value string
	file  bool
}

func fileField(name, path string) field { return field{name: name, value: path, file: true} }
func textField(name, value string) field { return field{name: name, value: value} }

// response is what the parsers see of a finished request
type response struct {
	code   int
	header http.Header
	body   []byte
}

// handler turns a response into an event. Registered per status code.
type handler func(r *response) Event

// HTTPProvider is the common request plumbing shared by every remote
// provider. Providers differ only in the fields they send and how they read
// the answer.
type HTTPProvider struct {
	meta   Meta
	client *http.Client
	post   func(func())

	fields  func(path string) []field
	headers map[string]string
	// headersOnly answers from the response headers and aborts the request
	// without reading the body
	headersOnly bool

	parseSuccess func(r *response) (Data, error)
	parseError   func(r *response) (string, error)
	handlers     map[int]handler

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ Provider = (*HTTPProvider)(nil)

func newHTTPProvider(meta Meta, o Options) *HTTPProvider {
	return &HTTPProvider{
		meta:     meta,
		client:   o.Client,
		post:     o.Post,
		handlers: make(map[int]handler),
		parseError: func(*response) (string, error) {
			return "", nil
		},
	}
}

// noRedirect stops the client from following redirects so the Location
// header can be read
func (p *HTTPProvider) noRedirect() {
	c := *p.client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	p.client = &c
}

// Meta returns the provider metadata
func (p *HTTPProvider) Meta() Meta { return p.meta }

// Upload posts path in the background and reports through done
func (p *HTTPProvider) Upload(ctx context.Context, path string, done func(Event)) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		ev := p.do(ctx, path)
		aborted := ctx.Err() != nil && !ev.Success && ev.Status.Code == 0
		cancel()
		if aborted {
			logger.WithComponent("provider").Debug().Str("provider", p.meta.ID).Msg("Upload cancelled")
			return
		}
		p.post(func() { done(ev) })
	}()
}

// Cancel aborts the in-flight request
func (p *HTTPProvider) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *HTTPProvider) do(ctx context.Context, path string) Event {
	log := logger.WithComponent("provider").With().Str("provider", p.meta.ID).Logger()

	body, contentType, size, err := p.multipart(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to build upload request")
		return p.failure(nil, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.meta.API, body)
	if err != nil {
		return p.failure(nil, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent())
	}

	log.Info().
		Str("api", p.meta.API).
		Str("size", humanize.Bytes(uint64(size))).
		Msg("Uploading")

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Upload request failed")
		return p.failure(nil, err.Error())
	}
	defer resp.Body.Close()

	r := &response{code: resp.StatusCode, header: resp.Header}
	if !p.headersOnly {
		r.body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read response body")
		}
	}

	ev := p.dispatch(r)
	log.Info().
		Bool("success", ev.Success).
		Int("status", ev.Status.Code).
		Str("link", ev.Link()).
		Str("error", ev.Data.Error).
		Msg("Upload finished")
	return ev
}

// dispatch runs the handler registered for the status code, else generic
func (p *HTTPProvider) dispatch(r *response) Event {
	if h, ok := p.handlers[r.code]; ok {
		return h(r)
	}
	return p.generic(r)
}

// generic treats 200 as success when the success parser agrees; anything
// else goes through the error parser
func (p *HTTPProvider) generic(r *response) Event {
	if r.code == http.StatusOK && p.parseSuccess != nil {
		data, err := p.parseSuccess(r)
		if err == nil {
			ev := p.event(r)
			ev.Success = true
			ev.Data = data
			return ev
		}
		logger.WithComponent("provider").Debug().Err(err).Str("provider", p.meta.ID).Msg("Success parse failed")
	}
	return p.errorEvent(r)
}

func (p *HTTPProvider) errorEvent(r *response) Event {
	msg, err := p.parseError(r)
	switch {
	case err != nil:
		msg = errUnparseable
	case msg == "":
		msg = errUnknown
	}
	return p.failure(r, msg)
}

func (p *HTTPProvider) failure(r *response, msg string) Event {
	ev := p.event(r)
	ev.Data = Data{Error: msg}
	return ev
}

func (p *HTTPProvider) event(r *response) Event {
	ev := Event{Provider: Info{Title: p.meta.Title, URL: p.meta.URL}}
	if r != nil {
		ev.Status = Status{Code: r.code, Description: http.StatusText(r.code)}
	}
	return ev
}

// multipart builds the form body in memory
func (p *HTTPProvider) multipart(path string) (io.Reader, string, int, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range p.fields(path) {
		if !f.file {
			if err := w.WriteField(f.name, f.value); err != nil {
				return nil, "", 0, err
			}
			continue
		}

		contents, err := file.Contents(f.value)
		if err != nil {
			return nil, "", 0, err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.name), escapeQuotes(file.Basename(f.value))))
		h.Set("Content-Type", file.Mimetype(f.value))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", 0, err
		}
		if _, err := part.Write(contents); err != nil {
			return nil, "", 0, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", 0, err
	}
	return &buf, w.FormDataContentType(), buf.Len(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
