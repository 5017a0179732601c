// Package browser provides the page-fetch capability: render a page and
// extract the text of one element. Two engines implement it: "chrome"
// renders the DOM through a headless browser, while "http" does a plain
// GET and parses the static HTML.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultUserAgent is a desktop Chrome user agent, used when none is
// configured. Bot-protected sites reject obvious automation UAs.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Observation is the result of one page check.
type Observation struct {
	// Text is the element's text, whitespace-trimmed. Empty when Found is
	// false.
	Text string

	// Found reports whether the element was located. A missing element is
	// not an error; the monitor decides what it means.
	Found bool

	// FinalURL is the page URL after redirects, captured best-effort.
	FinalURL string

	// Title is the page title, captured best-effort.
	Title string

	// FetchedAt is when the observation was taken.
	FetchedAt time.Time
}

// Options tunes engine behavior.
type Options struct {
	Headless  bool
	CacheBust bool

	PageLoadTimeout time.Duration
	ElementTimeout  time.Duration
	SettleDelay     time.Duration
	ReadyTimeout    time.Duration

	WindowWidth  int
	WindowHeight int
	UserAgent    string

	// ChromePath overrides browser binary discovery (chrome engine only).
	ChromePath string
}

// DefaultOptions returns the defaults the monitor historically ran with.
func DefaultOptions() Options {
	return Options{
		Headless:        true,
		CacheBust:       true,
		PageLoadTimeout: 30 * time.Second,
		ElementTimeout:  5 * time.Second,
		SettleDelay:     2 * time.Second,
		ReadyTimeout:    5 * time.Second,
		WindowWidth:     1920,
		WindowHeight:    1080,
		UserAgent:       DefaultUserAgent,
	}
}

// normalize backfills zero values so callers can pass a sparse Options.
func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.PageLoadTimeout <= 0 {
		o.PageLoadTimeout = def.PageLoadTimeout
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = def.ElementTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = def.SettleDelay
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = def.ReadyTimeout
	}
	if o.WindowWidth <= 0 {
		o.WindowWidth = def.WindowWidth
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = def.WindowHeight
	}
	if o.UserAgent == "" {
		o.UserAgent = def.UserAgent
	}
	return o
}

// Engine renders pages and resolves locators against them.
type Engine interface {
	// Name identifies the engine ("chrome" or "http").
	Name() string

	// Start brings the engine up. Observe before Start returns
	// ErrNotStarted.
	Start(ctx context.Context) error

	// Observe runs one full check cycle against the page and resolves the
	// locator. A missing element is Found=false with a nil error.
	Observe(ctx context.Context, pageURL string, loc Locator) (Observation, error)

	// Restart tears the engine down and brings it back up. The monitor
	// calls it after too many consecutive check failures.
	Restart(ctx context.Context) error

	// Close releases the engine's resources.
	Close() error
}

// New constructs the configured engine.
func New(engine string, opts Options) (Engine, error) {
	switch engine {
	case "chrome":
		return NewChromeEngine(opts), nil
	case "http":
		return NewStaticEngine(opts), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q (must be chrome or http)", engine)
	}
}

// cacheBustURL appends a _nocache timestamp parameter so intermediaries and
// the browser cache cannot serve a stale copy.
func cacheBustURL(pageURL string, now time.Time) string {
	sep := "?"
	if strings.Contains(pageURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_nocache=%d", pageURL, sep, now.UnixMilli())
}
