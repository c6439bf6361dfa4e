package sigma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff is a bounded exponential retry schedule: the n-th retry waits
// Base * 2^(n-1).
type Backoff struct {
	Attempts int
	Base     time.Duration
}

func (b Backoff) attempts() int {
	return max(b.Attempts, 1)
}

func (b Backoff) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(b.Base),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(time.Hour),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.attempts()-1)), ctx)
}

// RetryPolicy holds the four independent retry layers.
type RetryPolicy struct {
	// HTTP retries a single request on connection errors and on
	// RetryStatuses.
	HTTP          Backoff
	RetryStatuses []int
	// HTML re-reads a page whose DOM could not be parsed.
	HTML Backoff
	// Fetch repeats the whole read, including a fresh login.
	Fetch Backoff
	// Action repeats a command up to the point the trigger was sent.
	Action Backoff
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		HTTP:          Backoff{Attempts: 5, Base: 500 * time.Millisecond},
		RetryStatuses: []int{500, 502, 503, 504},
		HTML:          Backoff{Attempts: 3, Base: 500 * time.Millisecond},
		Fetch:         Backoff{Attempts: 3, Base: 500 * time.Millisecond},
		Action:        Backoff{Attempts: 5, Base: 2 * time.Second},
	}
}

// retry runs op until it succeeds, returns an error retryable rejects, or the
// schedule is exhausted. A nil retryable retries everything.
func retry[T any](
	ctx context.Context,
	name string,
	b Backoff,
	retryable func(error) bool,
	op func() (T, error),
) (T, error) {
	attempt := 0
	res, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		res, err := op()
		if err != nil && retryable != nil && !retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, b.newBackOff(ctx), func(err error, next time.Duration) {
		log.Warn(
			name+" failed",
			"attempt", fmt.Sprintf("%d/%d", attempt, b.attempts()),
			"retry_in", next,
			"err", err,
		)
	})
	if err != nil && attempt >= b.attempts() && !errors.Is(err, context.Canceled) {
		return res, fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt, err)
	}
	return res, err
}

func isParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

func isTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
