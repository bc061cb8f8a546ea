package offline

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Zachkp/portfolio/internal/cachestore"
)

// Mode is the request mode a page attaches to a fetch.
type Mode string

const (
	ModeNavigate   Mode = "navigate"
	ModeSameOrigin Mode = "same-origin"
	ModeNoCORS     Mode = "no-cors"
	ModeCORS       Mode = "cors"
)

// Request is an outgoing request seen by the controller.
type Request struct {
	Method string
	URL    *url.URL
	Mode   Mode
	Header http.Header
}

// NewRequest parses rawURL and returns a GET-style request for it.
func NewRequest(method, rawURL string, mode Mode) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{Method: strings.ToUpper(method), URL: u, Mode: mode, Header: http.Header{}}, nil
}

// FromHTTP converts an inbound request into a controller request. Relative
// request targets are resolved against origin; absolute-form targets (as
// sent to a forward proxy) are kept as-is.
func FromHTTP(r *http.Request, origin *url.URL) *Request {
	var u *url.URL
	if r.URL.IsAbs() {
		cp := *r.URL
		u = &cp
	} else {
		u = origin.ResolveReference(&url.URL{Path: r.URL.Path, RawPath: r.URL.RawPath, RawQuery: r.URL.RawQuery})
	}

	req := &Request{
		Method: r.Method,
		URL:    u,
		Header: r.Header.Clone(),
	}
	switch m := Mode(r.Header.Get("Sec-Fetch-Mode")); m {
	case ModeNavigate, ModeSameOrigin, ModeNoCORS, ModeCORS:
		req.Mode = m
	default:
		switch {
		case r.Method == http.MethodGet && prefersHTML(r.Header.Get("Accept")):
			req.Mode = ModeNavigate
		case r.URL.IsAbs() && !strings.EqualFold(u.Host, origin.Host):
			req.Mode = ModeNoCORS
		default:
			req.Mode = ModeSameOrigin
		}
	}
	return req
}

// IsNavigation reports whether the request is a top-level document load.
func (r *Request) IsNavigation() bool {
	return r.Mode == ModeNavigate
}

// Accepts reports whether the Accept header names a media type starting
// with prefix, for example "image/".
func (r *Request) Accepts(prefix string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.HasPrefix(strings.ToLower(mt), prefix) {
			return true
		}
	}
	return false
}

func (r *Request) key() cachestore.Key {
	return cachestore.NewKey(r.Method, r.URL.String())
}

func prefersHTML(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == "text/html" || mt == "application/xhtml+xml" {
			return true
		}
	}
	return false
}

// ResponseType classifies a response the way a browser does.
type ResponseType string

const (
	TypeBasic  ResponseType = "basic"
	TypeCORS   ResponseType = "cors"
	TypeOpaque ResponseType = "opaque"
	TypeError  ResponseType = "error"
)

// Response is a captured or synthesized response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Type   ResponseType
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// Serve writes the response to w.
func (r *Response) Serve(w http.ResponseWriter) error {
	h := w.Header()
	for k, vv := range r.Header {
		if isHopHeader(k) {
			continue
		}
		if http.CanonicalHeaderKey(k) == "Set-Cookie" {
			// Keep cookies the caller already set on w.
			h[k] = append(h[k], vv...)
			continue
		}
		h[k] = append([]string(nil), vv...)
	}
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(r.Body)
	return err
}

// entry converts r for storage. Per-client headers stay with the response
// that carried them and are never replayed from the cache.
func (r *Response) entry() *cachestore.Entry {
	h := r.Header.Clone()
	for _, k := range privateHeaders {
		h.Del(k)
	}
	return &cachestore.Entry{
		Status: r.Status,
		Header: h,
		Body:   append([]byte(nil), r.Body...),
		Type:   string(r.Type),
	}
}

func fromEntry(e *cachestore.Entry) *Response {
	return &Response{
		Status: e.Status,
		Header: e.Header,
		Body:   e.Body,
		Type:   ResponseType(e.Type),
	}
}

var privateHeaders = []string{"Set-Cookie", "Set-Cookie2"}

var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

func isHopHeader(k string) bool {
	return hopHeaders[http.CanonicalHeaderKey(k)]
}
