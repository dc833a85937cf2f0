// Package browserdriver abstracts the browser engine so
// internal/browserpool and internal/pagesession can be exercised
// against a fake in tests without launching real Chrome.
package browserdriver

import "context"

// LaunchOptions mirrors the browser-affecting subset of
// crawlforge.BrowserConfig that a Driver needs to start an instance.
type LaunchOptions struct {
	Headless   bool
	Proxy      string
	UserAgent  string
	ViewportW  int
	ViewportH  int
	ExtraArgs  []string
	Persistent bool
}

// Instance is a running browser process a Driver can hand back pages from.
type Instance interface {
	// NewPage opens a new page/tab and returns a context scoped to it.
	NewPage(ctx context.Context) (context.Context, error)
	// Close terminates the browser process.
	Close() error
}

// Driver launches browser instances. The chromedp-backed implementation
// lives in internal/browserpool; tests substitute a fake.
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Instance, error)
}
