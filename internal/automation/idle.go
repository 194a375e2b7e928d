package automation

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// IdleTracker counts in-flight network requests of a tab and remembers since
// when the count has stayed at or below the allowed maximum. The quiet window
// restarts with the first request, so time spent before a navigation does not
// count.
type IdleTracker struct {
	mu          sync.Mutex
	inflight    map[network.RequestID]struct{}
	maxInflight int
	quietSince  time.Time
	loading     bool
	now         func() time.Time
}

// NewIdleTracker creates a tracker that treats up to maxInflight open
// requests as idle. Negative values are treated as zero.
func NewIdleTracker(maxInflight int) *IdleTracker {
	if maxInflight < 0 {
		maxInflight = 0
	}
	t := &IdleTracker{
		inflight:    make(map[network.RequestID]struct{}),
		maxInflight: maxInflight,
		now:         time.Now,
	}
	t.quietSince = t.now()
	return t
}

// Handle consumes a CDP event; pass it to chromedp.ListenTarget.
func (t *IdleTracker) Handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.update(func() {
			if !t.loading {
				t.loading = true
				t.quietSince = t.now()
			}
			t.inflight[e.RequestID] = struct{}{}
		})
	case *network.EventLoadingFinished:
		t.update(func() { delete(t.inflight, e.RequestID) })
	case *network.EventLoadingFailed:
		t.update(func() { delete(t.inflight, e.RequestID) })
	}
}

func (t *IdleTracker) update(change func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasQuiet := len(t.inflight) <= t.maxInflight
	change()
	isQuiet := len(t.inflight) <= t.maxInflight

	switch {
	case !isQuiet:
		t.quietSince = time.Time{}
	case !wasQuiet:
		t.quietSince = t.now()
	}
}

// Inflight returns the number of open requests.
func (t *IdleTracker) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// IdleFor returns how long the tab has been idle; zero while busy.
func (t *IdleTracker) IdleFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.quietSince.IsZero() {
		return 0
	}
	return t.now().Sub(t.quietSince)
}
