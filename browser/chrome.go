// Package browser loads a page in headless Chrome and extracts the text of a
// single element from it.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// DefaultSelector matches the price element on dex.coinmarketcap.com token pages.
const DefaultSelector = "[data-qa-id='dex-price']"

// Fetcher loads url and returns the extracted text, or a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Chrome launches one headless browser per Fetch call and tears it down
// before returning.
type Chrome struct {
	selector string
	execPath string
	log      zerolog.Logger
}

type Option func(*Chrome)

func WithSelector(sel string) Option {
	return func(c *Chrome) {
		if sel != "" {
			c.selector = sel
		}
	}
}

// WithExecPath points at a specific Chrome binary instead of searching PATH.
func WithExecPath(p string) Option {
	return func(c *Chrome) { c.execPath = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Chrome) { c.log = l }
}

func NewChrome(opts ...Option) *Chrome {
	c := &Chrome{
		selector: DefaultSelector,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	return opts
}

// Fetch implements Fetcher. The deadline on ctx bounds the whole fetch,
// browser start-up included.
func (c *Chrome) Fetch(ctx context.Context, url string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			c.log.Debug().Str("url", url).Msgf(format, args...)
		}),
	)
	defer cancelTab()

	// An empty Run starts the browser and opens the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		return "", fail(ctx, "launch", url, ErrLaunch, err)
	}

	w := newSettleWatcher(cdp.FrameID(chromedp.FromContext(tabCtx).Target.TargetID))
	chromedp.ListenTarget(tabCtx, w.observe)

	err := chromedp.Run(tabCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(context.Context) error {
			w.arm()
			return nil
		}),
		chromedp.Navigate(url),
		w.wait(),
	)
	if err != nil {
		return "", fail(ctx, "navigate", url, ErrNavigation, err)
	}

	var res extraction
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(extractScript(c.selector), &res)); err != nil {
		return "", fail(ctx, "extract", url, ErrExtraction, err)
	}
	if !res.Found {
		return "", fail(ctx, "extract", url, ErrExtraction, fmt.Errorf("no element matches %s", c.selector))
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fail(ctx, "extract", url, ErrExtraction, fmt.Errorf("element %s has no text", c.selector))
	}
	return text, nil
}

type extraction struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

// extractScript returns a JS expression yielding {found, text} for the first
// element matching sel.
func extractScript(sel string) string {
	quoted, _ := json.Marshal(sel)
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	return el ? { found: true, text: (el.textContent || "").trim() } : { found: false, text: "" };
})()`, quoted)
}

// settleWatcher signals once the main frame's navigation reaches
// networkAlmostIdle (no more than two connections open for 500ms).
// Events seen before arm are ignored, which skips the about:blank
// lifecycle replayed when lifecycle events are enabled.
type settleWatcher struct {
	frame   cdp.FrameID
	armed   atomic.Bool
	mu      sync.Mutex
	loader  cdp.LoaderID
	once    sync.Once
	settled chan struct{}
}

func newSettleWatcher(frame cdp.FrameID) *settleWatcher {
	return &settleWatcher{frame: frame, settled: make(chan struct{})}
}

func (w *settleWatcher) arm() { w.armed.Store(true) }

func (w *settleWatcher) observe(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || !w.armed.Load() || e.FrameID != w.frame {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch e.Name {
	case "init":
		w.loader = e.LoaderID
	case "networkAlmostIdle":
		if w.loader != "" && e.LoaderID == w.loader {
			w.once.Do(func() { close(w.settled) })
		}
	}
}

func (w *settleWatcher) wait() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		select {
		case <-w.settled:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for network idle: %w", ctx.Err())
		}
	}
}

var _ Fetcher = (*Chrome)(nil)

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// IsTimeout reports whether err is, or wraps, a fetch timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
