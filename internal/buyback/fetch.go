package buyback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/lepinkainen/buyback/internal/automation"
)

// Quote is the outcome of a price fetch. Price is nil when the page could not
// be loaded or did not show a parsable price.
type Quote struct {
	URL   string   `json:"url" yaml:"url"`
	Price *float64 `json:"price" yaml:"price"`
}

// Session is a browser tab the fetcher drives.
type Session interface {
	Run(actions ...chromedp.Action) error
	WaitNetworkIdle(quiet, timeout time.Duration) error
	OuterHTML(selector string) (string, error)
	Close()
}

// Launcher starts a new isolated browser session.
type Launcher func(ctx context.Context) (Session, error)

// Options configures how pages are loaded.
type Options struct {
	Selector          string
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	IdleWindow        time.Duration
	IdleConnections   int
	Headless          bool
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Selector:          DefaultPriceSelector,
		NavigationTimeout: 30 * time.Second,
		SelectorTimeout:   30 * time.Second,
		IdleWindow:        500 * time.Millisecond,
		IdleConnections:   2,
		Headless:          true,
	}
}

// Fetcher scrapes buyback prices with one fresh browser session per call.
type Fetcher struct {
	opts   Options
	launch Launcher
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLauncher replaces the Chrome launcher.
func WithLauncher(launch Launcher) FetcherOption {
	return func(f *Fetcher) {
		f.launch = launch
	}
}

// NewFetcher creates a Fetcher. Zero values in opts fall back to DefaultOptions.
func NewFetcher(opts Options, options ...FetcherOption) *Fetcher {
	defaults := DefaultOptions()
	if opts.Selector == "" {
		opts.Selector = defaults.Selector
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaults.NavigationTimeout
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = defaults.SelectorTimeout
	}
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = defaults.IdleWindow
	}
	if opts.IdleConnections < 0 {
		opts.IdleConnections = defaults.IdleConnections
	}

	f := &Fetcher{opts: opts}
	f.launch = f.chromeLauncher
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *Fetcher) chromeLauncher(ctx context.Context) (Session, error) {
	session, err := automation.NewSession(ctx, nil, automation.Options{
		Headless:        f.opts.Headless,
		IdleConnections: f.opts.IdleConnections,
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FetchPrice loads url and reads the offered price. It never fails: any
// problem is logged and reported as a Quote without a price.
func (f *Fetcher) FetchPrice(ctx context.Context, url string) Quote {
	quote := Quote{URL: url}

	start := time.Now()
	price, err := f.scrape(ctx, url)
	if err != nil {
		slog.Warn("Buyback price unavailable", "url", url, "error", err, "elapsed", time.Since(start))
		return quote
	}

	slog.Debug("Buyback price fetched", "url", url, "price", price, "elapsed", time.Since(start))
	quote.Price = &price
	return quote
}

func (f *Fetcher) scrape(ctx context.Context, url string) (float64, error) {
	session, err := f.launch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start browser session: %w", err)
	}
	defer session.Close()

	// Navigation and the idle wait share one budget.
	deadline := time.Now().Add(f.opts.NavigationTimeout)
	if err := session.Run(automation.WithTimeout(f.opts.NavigationTimeout, chromedp.Navigate(url))); err != nil {
		return 0, fmt.Errorf("navigation failed: %w", err)
	}
	if err := session.WaitNetworkIdle(f.opts.IdleWindow, time.Until(deadline)); err != nil {
		return 0, fmt.Errorf("page did not settle: %w", err)
	}

	if err := session.Run(automation.WithTimeout(f.opts.SelectorTimeout, chromedp.WaitReady(f.opts.Selector, chromedp.ByQuery))); err != nil {
		return 0, fmt.Errorf("price element %q not found: %w", f.opts.Selector, err)
	}

	html, err := session.OuterHTML("html")
	if err != nil {
		return 0, err
	}

	text, err := ExtractPriceText(html, f.opts.Selector)
	if err != nil {
		return 0, err
	}
	return ParsePrice(text)
}
