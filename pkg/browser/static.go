package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StaticEngine observes pages with a plain HTTP GET and static HTML
// parsing. No JavaScript runs, so it only suits server-rendered pages, but
// it needs no browser binary and restarts are free.
type StaticEngine struct {
	opts   Options
	client *http.Client

	mu      sync.Mutex
	started bool
}

// NewStaticEngine creates the http engine.
func NewStaticEngine(opts Options) *StaticEngine {
	opts = opts.normalize()
	return &StaticEngine{
		opts: opts,
		client: &http.Client{
			Timeout: opts.PageLoadTimeout,
		},
	}
}

// Name identifies the engine.
func (e *StaticEngine) Name() string {
	return "http"
}

// Start marks the engine ready. There is no process to launch.
func (e *StaticEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = true
	return nil
}

// Observe fetches the page and resolves the locator against the parsed
// HTML.
func (e *StaticEngine) Observe(ctx context.Context, pageURL string, loc Locator) (Observation, error) {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return Observation{}, opErr(e.Name(), "observe", ErrNotStarted)
	}

	begin := time.Now()
	obs, err := e.observe(ctx, pageURL, loc)
	recordFetch(e.Name(), err, obs.Found, time.Since(begin))
	return obs, err
}

func (e *StaticEngine) observe(ctx context.Context, pageURL string, loc Locator) (Observation, error) {
	obs := Observation{FetchedAt: time.Now()}

	if loc.Strategy == StrategyXPath {
		return obs, opErr(e.Name(), "locate", fmt.Errorf("%w: xpath", ErrUnsupportedSelector))
	}

	target := pageURL
	if e.opts.CacheBust {
		target = cacheBustURL(pageURL, time.Now())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return obs, opErr(e.Name(), "fetch", err)
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := e.client.Do(req)
	if err != nil {
		return obs, opErr(e.Name(), "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return obs, opErr(e.Name(), "fetch", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	obs.FinalURL = resp.Request.URL.String()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return obs, opErr(e.Name(), "parse", err)
	}
	obs.Title = strings.TrimSpace(doc.Find("title").First().Text())

	switch loc.Strategy {
	case StrategyCSS, StrategyID:
		sel := loc.Value
		if loc.Strategy == StrategyID {
			sel = "#" + loc.Value
		}
		match := doc.Find(sel).First()
		if match.Length() == 0 {
			return obs, nil
		}
		obs.Text = strings.TrimSpace(match.Text())
		obs.Found = true
	case StrategyAuto:
		node := findElementByText(doc.Get(0), loc.Value)
		if node == nil {
			return obs, nil
		}
		obs.Text = strings.TrimSpace(nodeText(node))
		obs.Found = true
	default:
		return obs, opErr(e.Name(), "locate", fmt.Errorf("%w: %s", ErrUnsupportedSelector, loc.Strategy))
	}

	return obs, nil
}

// findElementByText walks the tree in document order and returns the first
// element with a direct text node containing text. Script and style bodies
// are skipped; matching invisible code is never what the operator meant.
func findElementByText(n *html.Node, text string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode {
		if n.Data == "script" || n.Data == "style" {
			return nil
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && strings.Contains(c.Data, text) {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElementByText(c, text); found != nil {
			return found
		}
	}
	return nil
}

// nodeText concatenates all descendant text nodes.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Restart drops idle connections. The http engine has no long-lived state
// beyond the connection pool.
func (e *StaticEngine) Restart(ctx context.Context) error {
	e.client.CloseIdleConnections()
	recordRestart(e.Name())

	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	return nil
}

// Close releases the connection pool.
func (e *StaticEngine) Close() error {
	e.client.CloseIdleConnections()
	e.mu.Lock()
	e.started = false
	e.mu.Unlock()
	return nil
}
