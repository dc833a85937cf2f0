package browserpool

import (
	"context"

	"github.com/chromedp/chromedp"

	"github.com/crawlforge/crawlforge/pkg/browserdriver"
)

// ChromeDriver implements browserdriver.Driver on top of chromedp,
// grounded on cmd/refyne/fetcher/dynamic.go's NewExecAllocator
// construction (the same flag set, generalized to take its options
// from browserdriver.LaunchOptions instead of a hardcoded Config).
type ChromeDriver struct {
	// StealthOptions, when non-nil, supplies the allocator options used
	// in place of the plain headless flag set (grounded on
	// cmd/refyne/fetcher/stealth.go's StealthExecAllocatorOptions).
	StealthOptions func() []chromedp.ExecAllocatorOption
}

func (d *ChromeDriver) Launch(ctx context.Context, opts browserdriver.LaunchOptions) (browserdriver.Instance, error) {
	var allocOpts []chromedp.ExecAllocatorOption
	if d.StealthOptions != nil {
		allocOpts = append(chromedp.DefaultExecAllocatorOptions[:], d.StealthOptions()...)
	} else {
		allocOpts = append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		if opts.ViewportW > 0 && opts.ViewportH > 0 {
			allocOpts = append(allocOpts, chromedp.WindowSize(opts.ViewportW, opts.ViewportH))
		}
	}

	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	for _, arg := range opts.ExtraArgs {
		allocOpts = append(allocOpts, chromedp.Flag(arg, true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Force the browser process to actually start so Launch fails fast
	// on a bad binary/flag combination instead of lazily on first use.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &chromeInstance{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

type chromeInstance struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func (c *chromeInstance) NewPage(ctx context.Context) (context.Context, error) {
	pageCtx, _ := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(pageCtx); err != nil {
		return nil, err
	}
	return pageCtx, nil
}

func (c *chromeInstance) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}
