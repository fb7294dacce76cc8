package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
)

func testImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// upload runs p against handler and waits for the event
func upload(t *testing.T, id string, handler http.HandlerFunc) Event {
	t.Helper()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	p, err := New(id, WithAPI(srv.URL), WithClient(srv.Client()))
	if err != nil {
		t.Fatalf("New(%q): %v", id, err)
	}

	events := make(chan Event, 1)
	p.Upload(context.Background(), testImage(t), func(ev Event) { events <- ev })
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for upload")
	}
	return Event{}
}

func reply(code int, body string, headers ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i+1 < len(headers); i += 2 {
			w.Header().Set(headers[i], headers[i+1])
		}
		w.WriteHeader(code)
		io.WriteString(w, body)
	}
}

func TestProviderSuccess(t *testing.T) {
	tests := []struct {
		id      string
		handler http.HandlerFunc
		want    Data
	}{
		{
			id:      "imgur",
			handler: reply(200, `{"data":{"id":"uZNdb5I","deletehash":"2cZFgTQhdjHPBe7","link":"http://i.imgur.com/uZNdb5I.png"},"success":true,"status":200}`),
			want:    Data{Image: "http://i.imgur.com/uZNdb5I.png", Preview: "http://i.imgur.com/uZNdb5I.png"},
		},
		{
			id:      "imgbin",
			handler: reply(200, "status:3Xz7Ye1d92nm\nurl:https://ibin.co/3Xz7Ye1d92nm.png\n"),
			want:    Data{Image: "https://ibin.co/3Xz7Ye1d92nm.png", Preview: "https://ibin.co/3Xz7Ye1d92nm.png"},
		},
		{
			id:      "uploadsim",
			handler: reply(200, `{"status_code":200,"status_txt":"OK","data":{"img_url":"http://sj.uploads.im/ZQm4W.png","img_view":"http://uploads.im/ZQm4W.png"}}`),
			want:    Data{Image: "http://sj.uploads.im/ZQm4W.png", Preview: "http://uploads.im/ZQm4W.png"},
		},
		{
			id:      "unsee",
			handler: reply(200, `{"hash":"bopenugi"}`),
			want:    Data{Image: "https://unsee.cc/bopenugi", Preview: "https://unsee.cc/bopenugi"},
		},
		{
			id:      "dropfileto",
			handler: reply(200, `{"files":["test.png","8FEBfnV","rDxB4mr","16372"],"status":0,"url":"https://dropfile.to/8FEBfnV"}`),
			want:    Data{Image: "https://dropfile.to/8FEBfnV", Preview: "https://dropfile.to/8FEBfnV"},
		},
		{
			id:      "lutim",
			handler: reply(200, `{"msg":{"ext":"png","short":"jgPH7THpEn/1YdI5UqYDrRaijwb"},"success":true}`),
			want:    Data{Image: "https://lut.im/jgPH7THpEn/1YdI5UqYDrRaijwb.png", Preview: "https://lut.im/jgPH7THpEn/1YdI5UqYDrRaijwb.png"},
		},
		{
			id:      "picpaste",
			handler: reply(200, "<html>", "X-salgar-pic", "test-MbBfvDA9.png", "X-salgar-del", "oN9l6JFo"),
			want: Data{
				Image:   "http://picpaste.com/test-MbBfvDA9.png",
				Preview: "http://picpaste.com/test-MbBfvDA9.png",
				Delete:  "http://picpaste.com/del/oN9l6JFo/test-MbBfvDA9.png",
			},
		},
		{
			id:      "anonimage",
			handler: reply(http.StatusFound, "", "Location", "view/v1iWCxeDYM"),
			want:    Data{Image: "https://anonimage.net/view/v1iWCxeDYM", Preview: "https://anonimage.net/view/v1iWCxeDYM"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			ev := upload(t, tt.id, tt.handler)
			if !ev.Success {
				t.Fatalf("upload failed: %+v", ev)
			}
			if ev.Data.Image != tt.want.Image || ev.Data.Preview != tt.want.Preview {
				t.Fatalf("data = %+v, want %+v", ev.Data, tt.want)
			}
			if tt.want.Delete != "" && ev.Data.Delete != tt.want.Delete {
				t.Fatalf("delete = %q, want %q", ev.Data.Delete, tt.want.Delete)
			}
			meta, _ := Lookup(tt.id)
			if ev.Provider.Title != meta.Title || ev.Provider.URL != meta.URL {
				t.Fatalf("provider = %+v", ev.Provider)
			}
		})
	}
}

func TestImgurDeleteLink(t *testing.T) {
	srv := httptest.NewServer(reply(200, `{"data":{"deletehash":"abc","link":"http://i.imgur.com/x.png"}}`))
	defer srv.Close()
	p, _ := New("imgur", WithAPI(srv.URL), WithClient(srv.Client()))

	events := make(chan Event, 1)
	p.Upload(context.Background(), testImage(t), func(ev Event) { events <- ev })
	if ev := <-events; ev.Data.Delete != srv.URL+"/abc" {
		t.Fatalf("delete = %q", ev.Data.Delete)
	}
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		id      string
		handler http.HandlerFunc
		want    string
	}{
		{"imgur", reply(400, `{"data":{"error":"No image data was sent to the upload api"},"success":false,"status":400}`), "No image data was sent to the upload api"},
		{"imgur", reply(400, `{"data":{"error":{"code":1003,"message":"File type invalid (1)"}},"success":false}`), "File type invalid (1)"},
		{"imgur", reply(200, `<html>not json</html>`), errUnparseable},
		{"imgur", reply(500, `{"data":{}}`), errUnknown},
		{"imgbin", reply(200, "status:error:The uploaded file was either not present or did not complete.\n"), "The uploaded file was either not present or did not complete."},
		{"uploadsim", reply(200, `{"status_code":403,"status_txt":"invalid image"}`), "invalid image"},
		{"unsee", reply(200, `{"error":"The file is not an image"}`), "The file is not an image"},
		{"dropfileto", reply(200, `{"status":2}`), errUnparseable},
		{"lutim", reply(200, `{"msg":{"filename":"invalid.png","msg":"The file invalid.png is not an image."},"success":false}`), "The file invalid.png is not an image."},
		{"lutim", reply(500, `500`), errUnparseable},
		{"picpaste", reply(200, "<html>", "X-salgar-err", "No picture uploaded"), "No picture uploaded"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			ev := upload(t, tt.id, tt.handler)
			if ev.Success {
				t.Fatalf("expected failure: %+v", ev)
			}
			if ev.Data.Error != tt.want {
				t.Fatalf("error = %q, want %q", ev.Data.Error, tt.want)
			}
			if ev.Data.Image != "" || ev.Data.Preview != "" {
				t.Fatalf("failure carries links: %+v", ev.Data)
			}
		})
	}
}

func TestRequestShape(t *testing.T) {
	var (
		agent, auth, fileName, fileType, kind string
	)
	handler := func(w http.ResponseWriter, r *http.Request) {
		agent = r.UserAgent()
		auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		kind = r.FormValue("type")
		if fh := r.MultipartForm.File["image"]; len(fh) == 1 {
			fileName = fh[0].Filename
			fileType = fh[0].Header.Get("Content-Type")
		}
		io.WriteString(w, `{"data":{"link":"x"}}`)
	}

	upload(t, "imgur", handler)

	if agent != UserAgent() || !strings.HasPrefix(agent, "screengrabber_v") {
		t.Errorf("user agent = %q", agent)
	}
	if auth != "Client-ID "+imgurClientID {
		t.Errorf("authorization = %q", auth)
	}
	if fileName != "shot.png" || fileType != "image/png" || kind != "file" {
		t.Errorf("file=%q type=%q kind=%q", fileName, fileType, kind)
	}
}

func TestLutimFields(t *testing.T) {
	got := map[string]string{}
	upload(t, "lutim", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		io.WriteString(w, `{"success":true,"msg":{"short":"a","ext":"png"}}`)
	})
	want := map[string]string{"format": "json", "first-view": "0", "delete-day": "30", "crypt": "0", "keep-exif": "0"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestAnonImageDoesNotFollowRedirect(t *testing.T) {
	followed := false
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			followed = true
			return
		}
		w.Header().Set("Location", "/view/abc")
		w.WriteHeader(http.StatusFound)
	})
	ev := upload(t, "anonimage", mux.ServeHTTP)
	if followed || !ev.Success || ev.Status.Code != http.StatusFound {
		t.Fatalf("followed=%v event=%+v", followed, ev)
	}
}

func TestHeadersOnlyDoesNotWaitForBody(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ev := upload(t, "picpaste", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("X-salgar-pic", "a.png")
		w.Header().Set("X-salgar-del", "d")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	if !ev.Success {
		t.Fatalf("event = %+v", ev)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, _ := New("imgur", WithAPI(url))
	events := make(chan Event, 1)
	p.Upload(context.Background(), testImage(t), func(ev Event) { events <- ev })
	ev := <-events
	if ev.Success || ev.Data.Error == "" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestMissingFile(t *testing.T) {
	p, _ := New("unsee", WithAPI("http://127.0.0.1:1"))
	events := make(chan Event, 1)
	p.Upload(context.Background(), "/nonexistent/shot.png", func(ev Event) { events <- ev })
	if ev := <-events; ev.Success || ev.Data.Error == "" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestCancelSuppressesDone(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		close(started)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p, _ := New("imgur", WithAPI(srv.URL), WithClient(srv.Client()))
	events := make(chan Event, 1)
	p.Upload(context.Background(), testImage(t), func(ev Event) { events <- ev })
	<-started
	p.Cancel()

	select {
	case ev := <-events:
		t.Fatalf("done called after cancel: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNoneProvider(t *testing.T) {
	p, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := testImage(t)

	var got Event
	p.Upload(context.Background(), path, func(ev Event) { got = ev })
	if !got.Success || got.Data.Preview != "file://"+path || got.Data.Image != got.Data.Preview {
		t.Fatalf("event = %+v", got)
	}
	if !IsNone("None") || IsNone("imgur") {
		t.Fatal("IsNone mismatch")
	}
}

func TestNoneProviderSkipsPoster(t *testing.T) {
	// a poster that never drains, like a full event loop queue
	posted := 0
	p, err := New("none", WithPoster(func(func()) { posted++ }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	called := false
	p.Upload(context.Background(), testImage(t), func(Event) { called = true })
	if !called || posted != 0 {
		t.Fatalf("called=%v posted=%d", called, posted)
	}
}

func TestCheckSetting(t *testing.T) {
	tests := []struct {
		key, value string
		valid      bool
	}{
		{"upload-provider", "imgur", true},
		{"upload-provider", " Lutim ", true},
		{"upload-provider", "", true},
		{"upload-provider", "imgurr", false},
		{"UPLOAD-PROVIDER", "nope", false},
		{"clipboard", "imgurr", true},
	}
	for _, tt := range tests {
		err := CheckSetting(tt.key, tt.value)
		if (err == nil) != tt.valid {
			t.Fatalf("CheckSetting(%q, %q) = %v", tt.key, tt.value, err)
		}
		if err != nil && !errors.Is(err, config.ErrInvalidValue) {
			t.Fatalf("error %v does not wrap ErrInvalidValue", err)
		}
	}

	if Uploads("imgurr") || Uploads("none") || Uploads("") || !Uploads("imgur") {
		t.Fatal("Uploads mismatch")
	}
}

func TestRegistry(t *testing.T) {
	want := []string{"none", "imgur", "imgbin", "uploadsim", "anonimage", "unsee", "dropfileto", "lutim", "picpaste"}
	metas := List()
	if len(metas) != len(want) {
		t.Fatalf("got %d providers", len(metas))
	}
	for i, id := range want {
		if metas[i].ID != id {
			t.Fatalf("provider %d = %q, want %q", i, metas[i].ID, id)
		}
		if _, err := New(strings.ToUpper(id)); err != nil {
			t.Fatalf("New(%q): %v", id, err)
		}
	}
	if _, err := New("flickr"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v", err)
	}
}
