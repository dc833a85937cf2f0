// Package httpcap is the HTTP client capability consumed by the URL
// seeder and robots.txt preflight checks. It exists so those callers
// depend on an interface rather than *http.Client directly, matching
// the other injected capabilities in pkg/browserdriver and pkg/llmcap.
package httpcap

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Response is a trimmed-down response the capability returns, closed
// by the caller after reading Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Client is the capability interface.
type Client interface {
	Get(ctx context.Context, url string) (*Response, error)
	Head(ctx context.Context, url string) (*Response, error)
}

// Default wraps a stdlib *http.Client. It's the concrete client used
// unless a caller injects their own (e.g. one routed through
// FlareSolverr, mirroring the teacher's cmd/refyne/fetcher/flaresolverr.go).
type Default struct {
	HTTP *http.Client
}

// NewDefault returns a Default client with a sane timeout, grounded on
// the teacher's pkg/fetcher/static.go client construction.
func NewDefault(timeout time.Duration) *Default {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Default{HTTP: &http.Client{Timeout: timeout}}
}

func (d *Default) Get(ctx context.Context, url string) (*Response, error) {
	return d.do(ctx, http.MethodGet, url)
}

func (d *Default) Head(ctx context.Context, url string) (*Response, error) {
	return d.do(ctx, http.MethodHead, url)
}

func (d *Default) do(ctx context.Context, method, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}
