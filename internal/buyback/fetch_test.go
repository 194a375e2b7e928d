package buyback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricePage = `<html><body><p class="text-p__detail--price">15,50 €</p></body></html>`

// fakeSession scripts the outcome of each step of a page load.
type fakeSession struct {
	navigateErr error
	idleErr     error
	selectorErr error
	html        string
	htmlErr     error

	mu     sync.Mutex
	runs   int
	closed int
}

func (s *fakeSession) Run(actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	if s.runs == 1 {
		return s.navigateErr
	}
	return s.selectorErr
}

func (s *fakeSession) WaitNetworkIdle(quiet, timeout time.Duration) error {
	return s.idleErr
}

func (s *fakeSession) OuterHTML(selector string) (string, error) {
	return s.html, s.htmlErr
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func launcherFor(session *fakeSession) Launcher {
	return func(ctx context.Context) (Session, error) {
		return session, nil
	}
}

func TestFetchPrice(t *testing.T) {
	t.Parallel()

	const url = "https://vykupujeme-online.sk/9780441172719-dune-1990"

	tests := []struct {
		name      string
		session   *fakeSession
		wantPrice *float64
	}{
		{
			name:      "price found",
			session:   &fakeSession{html: pricePage},
			wantPrice: ptr(15.50),
		},
		{
			name:    "navigation error",
			session: &fakeSession{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
		},
		{
			name:    "page never settles",
			session: &fakeSession{idleErr: errors.New("timeout waiting for network idle")},
		},
		{
			name:    "selector timeout",
			session: &fakeSession{selectorErr: context.DeadlineExceeded},
		},
		{
			name:    "snapshot fails",
			session: &fakeSession{htmlErr: errors.New("target closed")},
		},
		{
			name:    "unparsable price",
			session: &fakeSession{html: `<p class="text-p__detail--price">Nevykupujeme</p>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fetcher := NewFetcher(DefaultOptions(), WithLauncher(launcherFor(tt.session)))

			quote := fetcher.FetchPrice(context.Background(), url)

			assert.Equal(t, url, quote.URL)
			if tt.wantPrice == nil {
				assert.Nil(t, quote.Price)
			} else {
				require.NotNil(t, quote.Price)
				assert.InDelta(t, *tt.wantPrice, *quote.Price, 1e-9)
			}
			assert.Equal(t, 1, tt.session.closeCount(), "session must be closed exactly once")
		})
	}
}

func TestFetchPriceLaunchFailure(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(DefaultOptions(), WithLauncher(func(ctx context.Context) (Session, error) {
		return nil, errors.New("fork/exec chrome: resource temporarily unavailable")
	}))

	quote := fetcher.FetchPrice(context.Background(), "https://vykupujeme-online.sk/x")
	assert.Equal(t, "https://vykupujeme-online.sk/x", quote.URL)
	assert.Nil(t, quote.Price)
}

func TestFetchPriceReleasesSessionsUnderLoad(t *testing.T) {
	t.Parallel()

	var open atomic.Int64
	var launched atomic.Int64

	fetcher := NewFetcher(DefaultOptions(), WithLauncher(func(ctx context.Context) (Session, error) {
		n := launched.Add(1)
		s := &countingSession{open: &open}
		switch n % 4 {
		case 0:
			s.html = pricePage
		case 1:
			s.navigateErr = errors.New("navigation failed")
		case 2:
			s.selectorErr = context.DeadlineExceeded
		case 3:
			s.html = "<p>no price</p>"
		}
		open.Add(1)
		return s, nil
	}))

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetcher.FetchPrice(context.Background(), fmt.Sprintf("https://vykupujeme-online.sk/%d", i))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(64), launched.Load())
	assert.Zero(t, open.Load(), "every launched session must be closed")
}

type countingSession struct {
	fakeSession
	open *atomic.Int64
}

func (s *countingSession) Close() {
	s.fakeSession.Close()
	s.open.Add(-1)
}

func TestNewFetcherDefaults(t *testing.T) {
	t.Parallel()

	f := NewFetcher(Options{IdleConnections: -1})
	assert.Equal(t, DefaultOptions().Selector, f.opts.Selector)
	assert.Equal(t, 30*time.Second, f.opts.NavigationTimeout)
	assert.Equal(t, 30*time.Second, f.opts.SelectorTimeout)
	assert.Equal(t, 500*time.Millisecond, f.opts.IdleWindow)
	assert.Equal(t, 2, f.opts.IdleConnections)
	assert.NotNil(t, f.launch)
}

func ptr(v float64) *float64 { return &v }
