package searcher

import (
	"context"
	"sync"
	"time"

	"github.com/filescout/filescout/pkg/types"
)

// DefaultDebounce is the quiet period before a debounced search runs.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer serializes rapid repeated search invocations from one logical
// caller. Each call cancels any not-yet-completed prior invocation and
// waits the quiet period before executing; only the most recent call's
// result is meaningful.
type Debouncer struct {
	searcher *Searcher
	delay    time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDebouncer wraps a Searcher with a debounce delay. A non-positive
// delay falls back to DefaultDebounce.
func NewDebouncer(searcher *Searcher, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{searcher: searcher, delay: delay}
}

// Search runs a debounced search. The returned bool reports whether this
// invocation's result is meaningful: superseded calls resolve to
// (nil, false, nil) rather than racing to deliver stale data.
func (d *Debouncer) Search(ctx context.Context, query, category, rootFilter string) ([]types.SearchMatch, bool, error) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-runCtx.Done():
		// Superseded by a newer call, or the caller gave up.
		return nil, false, nil
	case <-timer.C:
	}

	matches, err := d.searcher.Search(runCtx, query, category, rootFilter)
	if runCtx.Err() != nil {
		// Superseded while the search was running.
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	return matches, true, nil
}
