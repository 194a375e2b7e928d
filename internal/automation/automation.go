package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// CDPRunner abstracts the chromedp entry points a session needs.
type CDPRunner interface {
	NewExecAllocator(ctx context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc)
	NewContext(parent context.Context, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc)
	Run(ctx context.Context, actions ...chromedp.Action) error
	ListenTarget(ctx context.Context, fn func(ev any))
}

// DefaultCDPRunner drives a real Chrome through chromedp.
type DefaultCDPRunner struct{}

func (DefaultCDPRunner) NewExecAllocator(ctx context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc) {
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (DefaultCDPRunner) NewContext(parent context.Context, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(parent, opts...)
}

func (DefaultCDPRunner) Run(ctx context.Context, actions ...chromedp.Action) error {
	return chromedp.Run(ctx, actions...)
}

func (DefaultCDPRunner) ListenTarget(ctx context.Context, fn func(ev any)) {
	chromedp.ListenTarget(ctx, fn)
}

var activeSessions atomic.Int64

// ActiveSessions returns the number of browser sessions that have been
// started and not yet closed.
func ActiveSessions() int64 {
	return activeSessions.Load()
}

// Options holds common configuration for browser automation
type Options struct {
	Headless  bool
	UserAgent string
	// IdleConnections is the number of in-flight requests still considered idle
	IdleConnections int
}

// Session is an isolated headless browser with a single tab.
type Session struct {
	runner  CDPRunner
	ctx     context.Context
	cancels []context.CancelFunc
	idle    *IdleTracker
	once    sync.Once
}

// NewSession launches a browser bound to parent. The browser is killed when
// Close is called or parent is done, whichever happens first. A nil runner
// uses DefaultCDPRunner.
func NewSession(parent context.Context, runner CDPRunner, opts Options) (*Session, error) {
	if runner == nil {
		runner = DefaultCDPRunner{}
	}
	allocCtx, cancelAllocator := runner.NewExecAllocator(parent, BuildAllocatorOptions(opts)...)
	browserCtx, cancelBrowser := runner.NewContext(allocCtx)

	activeSessions.Add(1)
	s := &Session{
		runner:  runner,
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAllocator},
		idle:    NewIdleTracker(opts.IdleConnections),
	}

	// The first Run starts the browser; enabling the network domain lets the
	// idle tracker see request events.
	if err := runner.Run(browserCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	runner.ListenTarget(browserCtx, s.idle.Handle)

	slog.Debug("Browser session started", "headless", opts.Headless, "active", ActiveSessions())
	return s, nil
}

// Run executes actions in the session's tab.
func (s *Session) Run(actions ...chromedp.Action) error {
	return s.runner.Run(s.ctx, actions...)
}

// OuterHTML returns the serialized markup of the first element matching selector.
func (s *Session) OuterHTML(selector string) (string, error) {
	var html string
	if err := s.runner.Run(s.ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", selector, err)
	}
	return html, nil
}

// WaitNetworkIdle blocks until the tab has had at most the configured number
// of in-flight requests for the quiet window, or fails after timeout.
func (s *Session) WaitNetworkIdle(quiet, timeout time.Duration) error {
	_, err := PollWithTimeout(s.ctx, 100*time.Millisecond, timeout, "network idle",
		func() (struct{}, bool, error) {
			return struct{}{}, s.idle.IdleFor() >= quiet, nil
		})
	return err
}

// Close kills the browser and releases its resources. It is safe to call
// more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}
		activeSessions.Add(-1)
		slog.Debug("Browser session closed", "active", ActiveSessions())
	})
}

// BuildAllocatorOptions returns the Chrome flags used for every session.
func BuildAllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	return allocOpts
}

// WithTimeout bounds a single action without affecting the rest of the session.
func WithTimeout(d time.Duration, action chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return action.Do(ctx)
	})
}

// PollWithTimeout polls a condition function at regular intervals until it succeeds, times out, or context is canceled.
// The checkFunc returns (result, found, error). If found is true, polling stops and result is returned.
// If checkFunc returns an error, polling stops and the error is returned.
func PollWithTimeout[T any](ctx context.Context, interval, timeout time.Duration, description string, checkFunc func() (T, bool, error)) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tries := 0
	for {
		result, found, err := checkFunc()
		if err != nil {
			return zero, err
		}
		if found {
			return result, nil
		}

		tries++
		if tries%20 == 0 {
			slog.Debug("Polling", "description", description, "tries", tries, "elapsed", time.Since(deadline.Add(-timeout)))
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("polling canceled for %s: %w", description, ctx.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return zero, fmt.Errorf("timeout waiting for %s", description)
			}
		}
	}
}
