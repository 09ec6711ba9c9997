package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recordingPolicy(maxRetries int, base time.Duration, delays *[]time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, BaseDelay: base}.WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestSucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	policy := recordingPolicy(3, time.Second, &delays)

	calls := 0
	result, err := Do(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestExhaustsRetryBudget(t *testing.T) {
	var delays []time.Duration
	policy := recordingPolicy(3, time.Second, &delays)

	calls := 0
	_, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("db unreachable")
	})
	require.Error(t, err)
	require.Equal(t, 4, calls)
	require.Contains(t, err.Error(), "after 3 retries")
	require.Contains(t, err.Error(), "db unreachable")
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxRetries: 5, BaseDelay: time.Second}.WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	calls := 0
	_, err := Do(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 0, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
