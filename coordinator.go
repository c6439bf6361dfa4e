package sigma

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fetcher is anything that can produce a full snapshot, usually a *Client.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (Snapshot, error)
}

// Coordinator polls a Fetcher and decides when stale data is still good
// enough to serve.
type Coordinator struct {
	fetcher     Fetcher
	maxFailures int

	// poll makes refreshes run one at a time.
	poll sync.Mutex

	mu       sync.RWMutex
	last     *Snapshot
	failures int
}

func NewCoordinator(fetcher Fetcher, maxFailures int) *Coordinator {
	return &Coordinator{
		fetcher:     fetcher,
		maxFailures: max(maxFailures, 1),
	}
}

// Refresh fetches a new snapshot.
//
// When the fetch fails and fewer than maxFailures fetches failed in a row,
// the last good snapshot is returned instead, with a nil error. Its
// FetchedAt tells how old it is. Otherwise the error wraps ErrUpdateFailed.
func (c *Coordinator) Refresh(ctx context.Context) (Snapshot, error) {
	c.poll.Lock()
	defer c.poll.Unlock()

	snap, err := c.fetcher.FetchSnapshot(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.last = &snap
		c.failures = 0
		return snap, nil
	}

	c.failures++
	if c.last != nil && c.failures < c.maxFailures {
		log.Warn(
			"serving stale data",
			"failures", fmt.Sprintf("%d/%d", c.failures, c.maxFailures),
			"age", time.Since(c.last.FetchedAt).Round(time.Second),
			"err", err,
		)
		return *c.last, nil
	}
	log.Error("update failed", "failures", c.failures, "err", err)
	return Snapshot{}, fmt.Errorf("%w: %d consecutive failures: %w", ErrUpdateFailed, c.failures, err)
}

// Last returns the last good snapshot, if any.
func (c *Coordinator) Last() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Snapshot{}, false
	}
	return *c.last, true
}

func (c *Coordinator) Failures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// Run refreshes right away, then every interval and whenever changes
// fires, passing each result to fn. It returns when ctx is done.
func (c *Coordinator) Run(
	ctx context.Context,
	interval time.Duration,
	changes <-chan struct{},
	fn func(Snapshot, error),
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(c.Refresh(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-changes:
			log.Debug("refreshing after a change")
		}
	}
}
