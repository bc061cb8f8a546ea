package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Fetcher performs network requests on behalf of the controller.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

const defaultMaxBody = 32 << 20

// ErrTooLarge is returned by HTTPFetcher when a response body exceeds
// MaxBody. The controller leaves such requests to the network.
var ErrTooLarge = errors.New("offline: response body too large")

// HTTPFetcher fetches over HTTP and classifies responses relative to Origin.
type HTTPFetcher struct {
	Client *http.Client
	Origin *url.URL
	// Rewrite, when set, maps the request URL to the URL actually dialed.
	// The proxy uses it to send same-origin requests to its upstream.
	Rewrite func(*url.URL) *url.URL
	// MaxBody caps how much of a response body is read. Zero means 32MiB.
	MaxBody int64
}

// Fetch issues the request. Transport failures and oversized bodies are
// errors; any HTTP status is a successful fetch. Oversized bodies wrap
// ErrTooLarge.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	target := req.URL
	if f.Rewrite != nil {
		target = f.Rewrite(req.URL)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vv := range req.Header {
		// The transport negotiates Accept-Encoding itself and decodes the body,
		// so cached bodies are always plain.
		ck := http.CanonicalHeaderKey(k)
		if isHopHeader(ck) || ck == "Accept-Encoding" || strings.HasPrefix(ck, "Sec-") {
			continue
		}
		hreq.Header[k] = append([]string(nil), vv...)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	limit := f.MaxBody
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", req.URL, ErrTooLarge, limit)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
		Type:   f.classify(req),
	}, nil
}

func (f *HTTPFetcher) classify(req *Request) ResponseType {
	if f.Origin != nil && (Config{Origin: f.Origin}).SameOrigin(req.URL) {
		return TypeBasic
	}
	if req.Mode == ModeNoCORS {
		return TypeOpaque
	}
	return TypeCORS
}
