package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

var errRejected = errors.New("response rejected")

var (
	imgurMeta = Meta{
		ID:          "imgur",
		Title:       "imgur",
		URL:         "https://imgur.com",
		Description: "The most awesome images on the Internet",
		API:         "https://api.imgur.com/3/image",
	}
	imgbinMeta = Meta{
		ID:          "imgbin",
		Title:       "imgbin",
		URL:         "https://imagebin.ca",
		Description: "Somewhere to Store Random Things",
		API:         "https://imagebin.ca/upload.php",
	}
	uploadsImMeta = Meta{
		ID:          "uploadsim",
		Title:       "uploads.im",
		URL:         "http://uploads.im",
		Description: "Uploads.im Image Hosting",
		API:         "http://uploads.im/api",
	}
	anonImageMeta = Meta{
		ID:          "anonimage",
		Title:       "AnonImage",
		URL:         "https://anonimage.net",
		Description: "Anonymous Image Hosting",
		API:         "https://anonimage.net/upload_magick.php",
	}
	unseeMeta = Meta{
		ID:          "unsee",
		Title:       "Unsee",
		URL:         "https://unsee.cc",
		Description: "Free online private photos sharing",
		API:         "https://unsee.cc/upload",
	}
	dropfileToMeta = Meta{
		ID:    "dropfileto",
		Title: "Dropfile.to",
		URL:   "https://dropfile.to",
		API:   "https://d1.dropfile.to/upload",
	}
	lutimMeta = Meta{
		ID:          "lutim",
		Title:       "Lutim",
		URL:         "https://lut.im",
		Description: "Let's Upload That Image",
		API:         "https://lut.im",
	}
	picPasteMeta = Meta{
		ID:          "picpaste",
		Title:       "PicPaste",
		URL:         "http://picpaste.com",
		Description: "Put your pictures online, easy and quick!",
		API:         "http://picpaste.com/upload.php",
	}
)

const imgurClientID = "47b3024ef07c33c"

func newImgur(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.headers = map[string]string{"Authorization": "Client-ID " + imgurClientID}
	p.fields = func(path string) []field {
		return []field{fileField("image", path), textField("type", "file")}
	}

	type imgurResponse struct {
		Data struct {
			Link       string          `json:"link"`
			DeleteHash string          `json:"deletehash"`
			Error      json.RawMessage `json:"error"`
		} `json:"data"`
	}

	p.parseSuccess = func(r *response) (Data, error) {
		var resp imgurResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return Data{}, err
		}
		if resp.Data.Link == "" {
			return Data{}, errRejected
		}
		return Data{
			Image:   resp.Data.Link,
			Preview: resp.Data.Link,
			Delete:  fmt.Sprintf("%s/%s", meta.API, resp.Data.DeleteHash),
		}, nil
	}
	p.parseError = func(r *response) (string, error) {
		var resp imgurResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return "", err
		}
		if len(resp.Data.Error) == 0 {
			return "", nil
		}
		// error is either {"message": ...} or a plain string
		var detailed struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.Data.Error, &detailed); err == nil && detailed.Message != "" {
			return detailed.Message, nil
		}
		var plain string
		if err := json.Unmarshal(resp.Data.Error, &plain); err == nil {
			return plain, nil
		}
		return "", nil
	}
	return p
}

var (
	imgbinURL   = regexp.MustCompile(`(?m)^url:(.*?)\r?$`)
	imgbinError = regexp.MustCompile(`(?m)^status:error:(.*?)\r?$`)
)

func newImgbin(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.fields = func(path string) []field {
		return []field{fileField("file", path)}
	}
	p.parseSuccess = func(r *response) (Data, error) {
		m := imgbinURL.FindSubmatch(r.body)
		if m == nil || len(m[1]) == 0 {
			return Data{}, errRejected
		}
		link := string(m[1])
		return Data{Image: link, Preview: link}, nil
	}
	p.parseError = func(r *response) (string, error) {
		m := imgbinError.FindSubmatch(r.body)
		if m == nil {
			return "", errRejected
		}
		return string(m[1]), nil
	}
	return p
}

func newUploadsIm(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.fields = func(path string) []field {
		return []field{fileField("file", path)}
	}

	type uploadsImResponse struct {
		StatusText string `json:"status_txt"`
		Data       struct {
			ImgURL  string `json:"img_url"`
			ImgView string `json:"img_view"`
		} `json:"data"`
	}

	p.parseSuccess = func(r *response) (Data, error) {
		var resp uploadsImResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return Data{}, err
		}
		if resp.Data.ImgView == "" && resp.Data.ImgURL == "" {
			return Data{}, errRejected
		}
		d := Data{Preview: resp.Data.ImgView, Image: resp.Data.ImgURL}
		if d.Image == "" {
			d.Image = d.Preview
		}
		return d, nil
	}
	p.parseError = func(r *response) (string, error) {
		var resp uploadsImResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return "", err
		}
		return resp.StatusText, nil
	}
	return p
}

// newAnonImage answers with a redirect to the image page and keeps the
// connection open afterwards, so the Location header is the result
func newAnonImage(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.noRedirect()
	p.headersOnly = true
	p.fields = func(path string) []field {
		return []field{fileField("imgulfile[]", path)}
	}
	p.parseSuccess = func(r *response) (Data, error) {
		loc := r.header.Get("Location")
		if loc == "" {
			return Data{}, errRejected
		}
		link := fmt.Sprintf("%s/%s", meta.URL, loc)
		return Data{Image: link, Preview: link}, nil
	}
	p.handlers[http.StatusFound] = func(r *response) Event {
		data, err := p.parseSuccess(r)
		if err != nil {
			return p.errorEvent(r)
		}
		ev := p.event(r)
		ev.Success = true
		ev.Data = data
		return ev
	}
	return p
}

func newUnsee(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.fields = func(path string) []field {
		return []field{fileField("image[]", path), textField("time", "86400")}
	}

	type unseeResponse struct {
		Hash  string `json:"hash"`
		Error string `json:"error"`
	}

	p.parseSuccess = func(r *response) (Data, error) {
		var resp unseeResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return Data{}, err
		}
		if resp.Error != "" || resp.Hash == "" {
			return Data{}, errRejected
		}
		link := fmt.Sprintf("%s/%s", meta.URL, resp.Hash)
		return Data{Image: link, Preview: link}, nil
	}
	p.parseError = func(r *response) (string, error) {
		var resp unseeResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return "", err
		}
		return resp.Error, nil
	}
	return p
}

// newDropfileTo has no readable error format; failures always end up as
// the unparseable-error message
func newDropfileTo(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.fields = func(path string) []field {
		return []field{fileField("files[]", path)}
	}
	p.parseSuccess = func(r *response) (Data, error) {
		var resp struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return Data{}, err
		}
		if resp.URL == "" {
			return Data{}, errRejected
		}
		return Data{Image: resp.URL, Preview: resp.URL}, nil
	}
	p.parseError = func(*response) (string, error) {
		return "", errRejected
	}
	return p
}

func newLutim(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.fields = func(path string) []field {
		return []field{
			fileField("file", path),
			textField("format", "json"),
			textField("first-view", "0"),
			textField("delete-day", "30"),
			textField("crypt", "0"),
			textField("keep-exif", "0"),
		}
	}

	type lutimResponse struct {
		Success bool `json:"success"`
		Msg     struct {
			Short string `json:"short"`
			Ext   string `json:"ext"`
			Msg   string `json:"msg"`
		} `json:"msg"`
	}

	p.parseSuccess = func(r *response) (Data, error) {
		var resp lutimResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return Data{}, err
		}
		if !resp.Success {
			return Data{}, errRejected
		}
		link := fmt.Sprintf("%s/%s.%s", meta.URL, resp.Msg.Short, resp.Msg.Ext)
		return Data{Image: link, Preview: link}, nil
	}
	p.parseError = func(r *response) (string, error) {
		var resp lutimResponse
		if err := json.Unmarshal(r.body, &resp); err != nil {
			return "", err
		}
		return resp.Msg.Msg, nil
	}
	return p
}

// newPicPaste reports everything in X-salgar-* headers
func newPicPaste(meta Meta, o Options) Provider {
	p := newHTTPProvider(meta, o)
	p.headersOnly = true
	p.fields = func(path string) []field {
		return []field{
			fileField("upload", path),
			textField("storetime", "8"),
			textField("addprivacy", "1"),
			textField("rules", "yes"),
		}
	}
	p.parseSuccess = func(r *response) (Data, error) {
		pic := r.header.Get("X-Salgar-Pic")
		if pic == "" {
			return Data{}, errRejected
		}
		link := fmt.Sprintf("%s/%s", meta.URL, pic)
		return Data{
			Image:   link,
			Preview: link,
			Delete:  fmt.Sprintf("%s/del/%s/%s", meta.URL, r.header.Get("X-Salgar-Del"), pic),
		}, nil
	}
	p.parseError = func(r *response) (string, error) {
		return r.header.Get("X-Salgar-Err"), nil
	}
	return p
}
