package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"rental-digest/utils"
)

// PageRenderer returns the fully rendered HTML of a JavaScript-driven page.
type PageRenderer interface {
	Render(ctx context.Context, pageURL, waitSelector string) (string, error)
}

// ChromeRenderer drives a shared headless Chrome through chromedp. Each
// Render opens its own tab.
type ChromeRenderer struct {
	logger      *utils.Logger
	retry       *utils.RetryConfig
	timeout     time.Duration
	waitTimeout time.Duration

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// RendererOptions configures NewChromeRenderer.
type RendererOptions struct {
	ChromeBin   string
	UserAgent   string
	Timeout     time.Duration
	WaitTimeout time.Duration
	MaxRetries  int
}

// NewChromeRenderer starts the browser allocator. Close must be called to
// shut Chrome down.
func NewChromeRenderer(opts RendererOptions, logger *utils.Logger) *ChromeRenderer {
	chromeBin := findChromeBinary(opts.ChromeBin)
	logger.Info("[browser] Using browser binary: %q", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 15 * time.Second
	}

	return &ChromeRenderer{
		logger:      logger,
		retry:       &utils.RetryConfig{MaxAttempts: opts.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger},
		timeout:     opts.Timeout,
		waitTimeout: opts.WaitTimeout,

		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}
}

// Render navigates to pageURL and waits up to the wait timeout for
// waitSelector. A page where the selector never appears is returned as-is:
// an empty result page is not an error.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL, waitSelector string) (string, error) {
	var html string

	err := r.retry.Do(ctx, "render "+pageURL, func() error {
		tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
		defer cancelTab()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
		defer cancelTimeout()
		stop := context.AfterFunc(ctx, cancelTimeout)
		defer stop()

		if err := chromedp.Run(tabCtx, chromedp.Navigate(pageURL)); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		waitCtx, cancelWait := context.WithTimeout(tabCtx, r.waitTimeout)
		werr := chromedp.Run(waitCtx, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
		cancelWait()
		if werr != nil {
			r.logger.Debug("[browser] %s never showed %q: %v", pageURL, waitSelector, werr)
		}

		return chromedp.Run(tabCtx,
			// scroll so lazy-loaded cards are in the DOM
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
			chromedp.Sleep(time.Second),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down.
func (r *ChromeRenderer) Close() {
	r.cancelBrowser()
	r.cancelAlloc()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
