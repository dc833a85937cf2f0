// Package pagesession implements the per-page interaction pipeline
// (§4.2): preflight -> navigate -> waits -> JS -> scroll -> captures ->
// extract HTML -> hooks, generalizing the teacher's
// cmd/refyne/fetcher/dynamic.go fetchWithBrowser action-list
// construction into the fixed, named pipeline steps.
package pagesession

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/pkg/crawlerr"
	"github.com/crawlforge/crawlforge/pkg/hooks"
)

// rawScheme marks a URL whose remainder is literal HTML to render
// directly, skipping the network entirely (§4.2 step 1).
const rawScheme = "raw:"

// fileScheme marks a URL that names a local file to read as HTML.
const fileScheme = "file://"

// RobotsChecker answers whether a crawl may fetch rawURL under the
// host's robots.txt, consulting a cache so repeated pages on the same
// host only fetch robots.txt once.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
}

// WaitFor describes one of the css:/xpath:/js: wait predicates.
type WaitFor struct {
	Selector string // "css:.ready", "xpath://div[@id='x']", "js:()=>window.ready"
	Timeout  time.Duration
}

// Options configures one Run of the page session pipeline.
type Options struct {
	URL             string
	JS              []string
	ScrollToBottom  bool
	WaitFor         []WaitFor
	Screenshot      bool
	PDF             bool
	MHTML           bool
	PageTimeout     time.Duration
	CaptureOnError  bool
	CheckRobotsTxt  bool
	Robots          RobotsChecker
}

// Result is what the pipeline produces before the content pipeline
// (pkg/pipeline) takes over.
type Result struct {
	FinalURL          string
	HTML              string
	StatusCode        int
	Screenshot        []byte
	PDF               []byte
	MHTML             []byte
	DebugScreenshot   []byte
	Warnings          []string
	JSExecutionResult any
}

// Session wraps a chromedp page context and enforces that only the
// goroutine currently holding its turnstile token touches the page,
// satisfying the "operations against the same session_id are
// serialized" invariant when a caller reuses a session_id across
// crawls.
type Session struct {
	ID         string
	pageCtx    context.Context
	cancelPage context.CancelFunc
	hookReg    *hooks.Registry

	turnstile chan struct{}
}

// New wraps an already-created chromedp page context as a Session.
func New(id string, pageCtx context.Context, cancel context.CancelFunc, hookReg *hooks.Registry) *Session {
	if hookReg == nil {
		hookReg = hooks.NewRegistry()
	}
	s := &Session{ID: id, pageCtx: pageCtx, cancelPage: cancel, hookReg: hookReg, turnstile: make(chan struct{}, 1)}
	s.turnstile <- struct{}{}
	return s
}

// Close releases the page context.
func (s *Session) Close() {
	if s.cancelPage != nil {
		s.cancelPage()
	}
}

// Run executes the fixed 9-step pipeline against opts, serialized
// against any other Run call sharing this Session.
func (s *Session) Run(ctx context.Context, opts Options) (Result, error) {
	select {
	case <-s.turnstile:
	case <-ctx.Done():
		return Result{}, crawlerr.New(crawlerr.KindCancelled, opts.URL, "cancelled waiting for session turnstile", ctx.Err())
	}
	defer func() { s.turnstile <- struct{}{} }()

	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(s.pageCtx, timeout)
	defer cancel()

	contextWarnings, err := s.hookReg.Run(runCtx, hooks.OnPageContextCreated, s)
	if err != nil {
		return Result{}, crawlerr.New(crawlerr.KindInternal, opts.URL, "on_page_context_created hook failed", err)
	}

	result := Result{Warnings: contextWarnings}

	if warnings, err := s.hookReg.Run(runCtx, hooks.BeforeGoto, opts); err != nil {
		return result, crawlerr.New(crawlerr.KindInternal, opts.URL, "before_goto hook failed", err)
	} else {
		result.Warnings = append(result.Warnings, warnings...)
	}

	navigateURL, overrideFinalURL, err := s.preflight(runCtx, opts)
	if err != nil {
		result.StatusCode = 403
		return result, err
	}

	if err := chromedp.Run(runCtx, chromedp.Navigate(navigateURL)); err != nil {
		if opts.CaptureOnError {
			result.DebugScreenshot = s.bestEffortScreenshot(runCtx)
		}
		return result, crawlerr.New(crawlerr.KindNavigation, opts.URL, "navigation failed", err)
	}

	if warnings, err := s.hookReg.Run(runCtx, hooks.AfterGoto, opts); err != nil {
		return result, crawlerr.New(crawlerr.KindInternal, opts.URL, "after_goto hook failed", err)
	} else {
		result.Warnings = append(result.Warnings, warnings...)
	}

	for _, w := range opts.WaitFor {
		if err := s.wait(runCtx, w); err != nil {
			if opts.CaptureOnError {
				result.DebugScreenshot = s.bestEffortScreenshot(runCtx)
			}
			return result, crawlerr.New(crawlerr.KindWaitTimeout, opts.URL, fmt.Sprintf("wait_for %q timed out", w.Selector), err)
		}
	}

	if warnings, err := s.hookReg.Run(runCtx, hooks.OnExecutionStarted, opts); err != nil {
		return result, crawlerr.New(crawlerr.KindInternal, opts.URL, "on_execution_started hook failed", err)
	} else {
		result.Warnings = append(result.Warnings, warnings...)
	}

	for _, script := range opts.JS {
		var out any
		if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &out)); err != nil {
			return result, crawlerr.New(crawlerr.KindScript, opts.URL, "js execution failed", err)
		}
		result.JSExecutionResult = out
	}

	if opts.ScrollToBottom {
		if err := chromedp.Run(runCtx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("scroll failed: %v", err))
		}
	}

	if opts.Screenshot {
		var buf []byte
		if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("screenshot failed: %v", err))
		} else {
			result.Screenshot = buf
		}
	}
	if opts.PDF {
		var buf []byte
		if err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var pdfErr error
			buf, _, pdfErr = page.PrintToPDF().Do(ctx)
			return pdfErr
		})); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("pdf capture failed: %v", err))
		} else {
			result.PDF = buf
		}
	}
	if opts.MHTML {
		var snapshot string
		if err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var snapErr error
			snapshot, snapErr = page.CaptureSnapshot().Do(ctx)
			return snapErr
		})); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("mhtml capture failed: %v", err))
		} else {
			result.MHTML = []byte(snapshot)
		}
	}

	if warnings, err := s.hookReg.Run(runCtx, hooks.BeforeRetrieveHTML, opts); err != nil {
		return result, crawlerr.New(crawlerr.KindInternal, opts.URL, "before_retrieve_html hook failed", err)
	} else {
		result.Warnings = append(result.Warnings, warnings...)
	}

	var html, finalURL string
	if err := chromedp.Run(runCtx,
		chromedp.OuterHTML("html", &html),
		chromedp.Location(&finalURL),
	); err != nil {
		return result, crawlerr.New(crawlerr.KindExtraction, opts.URL, "html extraction failed", err)
	}
	result.HTML = html
	result.FinalURL = finalURL
	if overrideFinalURL != "" {
		result.FinalURL = overrideFinalURL
	}
	result.StatusCode = 200

	if warnings, err := s.hookReg.Run(runCtx, hooks.BeforeReturnHTML, &result); err != nil {
		return result, crawlerr.New(crawlerr.KindInternal, opts.URL, "before_return_html hook failed", err)
	} else {
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

// preflight implements §4.2 step 1: a raw: URL short-circuits the
// network entirely and renders its remainder as literal HTML; a
// file:// URL reads a local path instead of fetching over the wire;
// anything else is checked against the cached robots.txt result (when
// opts.CheckRobotsTxt is set) before the caller navigates to it.
// Returns the URL chromedp should actually navigate to, and a
// FinalURL override to report in the Result (empty to keep chromedp's
// own reported location).
func (s *Session) preflight(ctx context.Context, opts Options) (navigateURL, finalURLOverride string, err error) {
	switch {
	case strings.HasPrefix(opts.URL, rawScheme):
		payload := strings.TrimPrefix(opts.URL, rawScheme)
		return "data:text/html;charset=utf-8," + url.PathEscape(payload), "Raw HTML", nil

	case strings.HasPrefix(opts.URL, fileScheme):
		path := strings.TrimPrefix(opts.URL, fileScheme)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", "", crawlerr.New(crawlerr.KindNavigation, opts.URL, "reading file:// path failed", readErr)
		}
		return "data:text/html;charset=utf-8," + url.PathEscape(string(data)), opts.URL, nil

	default:
		if opts.CheckRobotsTxt && opts.Robots != nil {
			allowed, robotsErr := opts.Robots.Allowed(ctx, opts.URL)
			if robotsErr == nil && !allowed {
				return "", "", crawlerr.New(crawlerr.KindRobotsDisallow, opts.URL, "robots.txt disallow", nil)
			}
		}
		return opts.URL, "", nil
	}
}

func (s *Session) wait(ctx context.Context, w WaitFor) error {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case strings.HasPrefix(w.Selector, "css:"):
		sel := strings.TrimPrefix(w.Selector, "css:")
		return chromedp.Run(waitCtx, chromedp.WaitReady(sel))
	case strings.HasPrefix(w.Selector, "xpath:"):
		sel := strings.TrimPrefix(w.Selector, "xpath:")
		return chromedp.Run(waitCtx, chromedp.WaitReady(sel, chromedp.BySearch))
	case strings.HasPrefix(w.Selector, "js:"):
		expr := strings.TrimPrefix(w.Selector, "js:")
		return pollJS(waitCtx, expr)
	default:
		return chromedp.Run(waitCtx, chromedp.WaitReady(w.Selector))
	}
}

func pollJS(ctx context.Context, expr string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var ok bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf("Boolean((%s)())", expr), &ok)); err == nil && ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) bestEffortScreenshot(ctx context.Context) []byte {
	var buf []byte
	shotCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		logger.Debug("debug screenshot capture failed", "error", err)
		return nil
	}
	return buf
}

// Manager keys sessions by session_id so repeated crawls can reuse the
// same page (and its JS-side state) across calls, per the ordering
// guarantee in §4.2.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns an empty session Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the existing Session for id, or registers create's result.
func (m *Manager) GetOrCreate(id string, create func() (*Session, error)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s, err := create()
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	return s, nil
}

// Close closes and forgets the session for id.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Close()
		delete(m.sessions, id)
	}
}
