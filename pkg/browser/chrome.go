package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// clearCacheStorageJS drops CacheStorage entries so a service worker cannot
// serve a stale page.
const clearCacheStorageJS = `
if ('caches' in window) {
	caches.keys().then(function(names) {
		for (let name of names) caches.delete(name);
	});
}
`

const clearWebStorageJS = `window.localStorage.clear(); window.sessionStorage.clear();`

// ChromeEngine observes pages through a headless Chrome instance driven
// over the DevTools protocol. One browser survives across polls; every
// Observe clears cookies, storage, and cache so each check sees a fresh
// page.
type ChromeEngine struct {
	opts Options

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
}

// NewChromeEngine creates the chrome engine. Start launches the browser.
func NewChromeEngine(opts Options) *ChromeEngine {
	return &ChromeEngine{opts: opts.normalize()}
}

// Name identifies the engine.
func (e *ChromeEngine) Name() string {
	return "chrome"
}

// Start launches the browser process.
func (e *ChromeEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(ctx)
}

func (e *ChromeEngine) startLocked(ctx context.Context) error {
	if e.started {
		return nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(e.opts.WindowWidth, e.opts.WindowHeight),
		chromedp.UserAgent(e.opts.UserAgent),
	)
	if e.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(e.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run with no actions forces the browser to actually launch, so a
	// missing binary fails Start instead of the first Observe.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return opErr(e.Name(), "start", err)
	}

	e.allocCtx = allocCtx
	e.allocCancel = allocCancel
	e.ctx = browserCtx
	e.cancel = browserCancel
	e.started = true
	return nil
}

// Observe runs the full check cycle: reset browser state, navigate with a
// cache-busting URL, wait for the page to settle, then resolve the locator.
func (e *ChromeEngine) Observe(ctx context.Context, pageURL string, loc Locator) (Observation, error) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return Observation{}, opErr(e.Name(), "observe", ErrNotStarted)
	}
	browserCtx := e.ctx
	e.mu.Unlock()

	started := time.Now()
	obs, err := e.observe(ctx, browserCtx, pageURL, loc)
	recordFetch(e.Name(), err, obs.Found, time.Since(started))
	return obs, err
}

func (e *ChromeEngine) observe(ctx, browserCtx context.Context, pageURL string, loc Locator) (Observation, error) {
	obs := Observation{FetchedAt: time.Now()}

	if err := ctx.Err(); err != nil {
		return obs, opErr(e.Name(), "observe", err)
	}
	if err := browserCtx.Err(); err != nil {
		return obs, opErr(e.Name(), "observe", fmt.Errorf("%w: %v", ErrBrowserGone, err))
	}

	// Cookie and storage clearing failures are tolerated; a stale cookie
	// is not worth failing the whole check over.
	clearCtx, cancelClear := context.WithTimeout(browserCtx, 5*time.Second)
	_ = chromedp.Run(clearCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.ClearBrowserCookies().Do(ctx)
		}),
		chromedp.Evaluate(clearWebStorageJS, nil),
	)
	cancelClear()

	target := pageURL
	if e.opts.CacheBust {
		target = cacheBustURL(pageURL, time.Now())
	}

	// A navigation timeout is tolerated: the page may be partially loaded
	// and still usable. A dead browser context is not.
	navCtx, cancelNav := context.WithTimeout(browserCtx, e.opts.PageLoadTimeout)
	navErr := chromedp.Run(navCtx, chromedp.Navigate(target))
	cancelNav()
	if navErr != nil && browserCtx.Err() != nil {
		return obs, opErr(e.Name(), "navigate", fmt.Errorf("%w: %v", ErrBrowserGone, navErr))
	}

	evalCtx, cancelEval := context.WithTimeout(browserCtx, 5*time.Second)
	_ = chromedp.Run(evalCtx, chromedp.Evaluate(clearCacheStorageJS, nil))
	cancelEval()

	if e.opts.SettleDelay > 0 {
		select {
		case <-time.After(e.opts.SettleDelay):
		case <-ctx.Done():
			return obs, opErr(e.Name(), "observe", ctx.Err())
		case <-browserCtx.Done():
			return obs, opErr(e.Name(), "observe", ErrBrowserGone)
		}
	}

	e.waitReady(browserCtx)

	text, found, err := e.elementText(browserCtx, loc)
	if err != nil {
		return obs, err
	}
	obs.Text = strings.TrimSpace(text)
	obs.Found = found

	infoCtx, cancelInfo := context.WithTimeout(browserCtx, 5*time.Second)
	_ = chromedp.Run(infoCtx, chromedp.Location(&obs.FinalURL), chromedp.Title(&obs.Title))
	cancelInfo()

	return obs, nil
}

// waitReady polls document.readyState until "complete" or the ready
// timeout elapses. Slow pages are tolerated; the element lookup has its
// own timeout.
func (e *ChromeEngine) waitReady(browserCtx context.Context) {
	deadline := time.Now().Add(e.opts.ReadyTimeout)
	for time.Now().Before(deadline) {
		var state string
		pollCtx, cancel := context.WithTimeout(browserCtx, time.Second)
		err := chromedp.Run(pollCtx, chromedp.Evaluate("document.readyState", &state))
		cancel()
		if err == nil && state == "complete" {
			return
		}

		select {
		case <-time.After(100 * time.Millisecond):
		case <-browserCtx.Done():
			return
		}
	}
}

func (e *ChromeEngine) elementText(browserCtx context.Context, loc Locator) (string, bool, error) {
	var sel string
	var queryOpt chromedp.QueryOption

	switch loc.Strategy {
	case StrategyCSS:
		sel, queryOpt = loc.Value, chromedp.ByQuery
	case StrategyID:
		sel, queryOpt = "#"+loc.Value, chromedp.ByQuery
	case StrategyXPath, StrategyAuto:
		sel, queryOpt = loc.XPath(), chromedp.BySearch
	default:
		return "", false, opErr(e.Name(), "locate", fmt.Errorf("%w: %s", ErrUnsupportedSelector, loc.Strategy))
	}

	var text string
	elemCtx, cancel := context.WithTimeout(browserCtx, e.opts.ElementTimeout)
	defer cancel()

	err := chromedp.Run(elemCtx, chromedp.Text(sel, &text, queryOpt))
	if err != nil {
		if browserCtx.Err() != nil {
			return "", false, opErr(e.Name(), "locate", fmt.Errorf("%w: %v", ErrBrowserGone, err))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// The element never appeared within the timeout.
			return "", false, nil
		}
		return "", false, opErr(e.Name(), "locate", err)
	}
	return text, true, nil
}

// Restart tears the browser down and launches a fresh one.
func (e *ChromeEngine) Restart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeLocked()
	recordRestart(e.Name())
	return e.startLocked(ctx)
}

// Close shuts the browser down.
func (e *ChromeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
	return nil
}

func (e *ChromeEngine) closeLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.allocCancel != nil {
		e.allocCancel()
		e.allocCancel = nil
	}
	e.ctx = nil
	e.allocCtx = nil
	e.started = false
}
