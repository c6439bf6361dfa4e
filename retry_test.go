package sigma

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	fast := Backoff{Attempts: 3, Base: time.Millisecond}

	t.Run("succeeds eventually", func(t *testing.T) {
		calls := 0
		v, err := retry(context.Background(), "op", fast, nil, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("nope")
			}
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, v)
		require.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), "op", fast, nil, func() (int, error) {
			calls++
			return 0, ErrParse
		})
		require.ErrorIs(t, err, ErrParse)
		require.ErrorContains(t, err, "giving up after 3 attempts")
		require.Equal(t, 3, calls)
	})

	t.Run("permanent", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), "op", fast, isParseError, func() (int, error) {
			calls++
			return 0, fmt.Errorf("wrapped: %w", ErrAuthentication)
		})
		require.ErrorIs(t, err, ErrAuthentication)
		require.Equal(t, 1, calls)
	})

	t.Run("zero attempts runs once", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), "op", Backoff{}, nil, func() (int, error) {
			calls++
			return 0, ErrParse
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := retry(ctx, "op", Backoff{Attempts: 10, Base: time.Hour}, nil, func() (int, error) {
			calls++
			cancel()
			return 0, ErrParse
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	})
}

func TestBackoffSchedule(t *testing.T) {
	b := Backoff{Attempts: 4, Base: 500 * time.Millisecond}.newBackOff(context.Background())
	require.Equal(t, 500*time.Millisecond, b.NextBackOff())
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, 2*time.Second, b.NextBackOff())
	require.Equal(t, time.Duration(-1), b.NextBackOff())
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	require.Equal(t, 5, p.HTTP.Attempts)
	require.Equal(t, 3, p.HTML.Attempts)
	require.Equal(t, 3, p.Fetch.Attempts)
	require.Equal(t, 5, p.Action.Attempts)
	require.Equal(t, 2*time.Second, p.Action.Base)
	require.Equal(t, []int{500, 502, 503, 504}, p.RetryStatuses)
}
