package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"OlxWatcher/internal/infrastructure/useragent"
)

// maskWebdriver hides the automation flag before any page script runs.
const maskWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Renderer executes a page in a browser and returns the resulting DOM.
type Renderer interface {
	Render(ctx context.Context, pageURL, readySelector string) (string, error)
}

// ChromeRenderer drives a headless Chrome through chromedp.
type ChromeRenderer struct {
	execPath     string
	timeout      time.Duration
	readyTimeout time.Duration
	logger       *slog.Logger
}

var _ Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer bounds each render by timeout; execPath may be empty to use the default lookup.
func NewChromeRenderer(execPath string, timeout time.Duration, logger *slog.Logger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ChromeRenderer{
		execPath:     execPath,
		timeout:      timeout,
		readyTimeout: timeout / 3,
		logger:       logger,
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, pageURL, readySelector string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 768),
		chromedp.UserAgent(useragent.Random()),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	var markup string
	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(maskWebdriver).Do(ctx)
			return err
		}),
		chromedp.Navigate(pageURL),
		r.waitReady(readySelector),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return markup, nil
}

// waitReady waits a bounded time for selector; a miss still lets the DOM be captured.
func (r *ChromeRenderer) waitReady(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if selector == "" {
			return nil
		}
		waitCtx, cancel := context.WithTimeout(ctx, r.readyTimeout)
		defer cancel()

		err := chromedp.WaitVisible(selector, chromedp.ByQuery).Do(waitCtx)
		if err != nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			r.debug("ready selector not visible, capturing anyway", "selector", selector)
			return nil
		}
		return err
	})
}

func (r *ChromeRenderer) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
