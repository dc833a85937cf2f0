package httpcap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/crawlforge/crawlforge/internal/logger"
)

// CollyClient is an httpcap.Client implementation backed by
// gocolly/colly, grounded on the teacher's pkg/fetcher/static.go
// StaticFetcher: a fresh collector per request, a response/error
// callback pair feeding a buffered result, and SetRequestTimeout in
// place of a shared *http.Client's Timeout field. The collector is
// built inside each Get/Head call and is not exposed, so only
// UserAgent and Timeout are configurable; ctx is not consulted.
type CollyClient struct {
	UserAgent string
	Timeout   time.Duration
}

// NewCollyClient returns a CollyClient with the given user agent and
// per-request timeout.
func NewCollyClient(userAgent string, timeout time.Duration) *CollyClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CollyClient{UserAgent: userAgent, Timeout: timeout}
}

func (c *CollyClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url)
}

func (c *CollyClient) Head(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodHead, url)
}

func (c *CollyClient) do(ctx context.Context, method, url string) (*Response, error) {
	collector := colly.NewCollector(colly.UserAgent(c.UserAgent))
	collector.SetRequestTimeout(c.Timeout)

	var (
		statusCode int
		header     http.Header
		body       []byte
		fetchErr   error
	)

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	var visitErr error
	switch method {
	case http.MethodHead:
		visitErr = collector.Head(url)
	default:
		visitErr = collector.Visit(url)
	}
	if visitErr != nil {
		logger.Debug("colly client visit failed", "url", url, "method", method, "error", visitErr)
		return nil, fmt.Errorf("colly %s %s: %w", method, url, visitErr)
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("colly %s %s: %w", method, url, fetchErr)
	}

	return &Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}
