// Package retry wraps fallible remote operations with bounded retries and
// exponential backoff. Every data-store access in the planning engine goes
// through this executor.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds the retry loop. MaxRetries counts retries after the first
// attempt, so an always-failing operation runs MaxRetries+1 times.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// sleep is swapped out by tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy mirrors the planner defaults: 3 retries, 1s base delay.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second}
}

// WithSleep overrides the backoff sleeper. Test hook.
func (p Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

func (p Policy) sleeper() func(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep
	}
	return sleepCtx
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do invokes op until it succeeds or the retry budget is exhausted. The delay
// before retry n (0-indexed) is BaseDelay << n, with no jitter. On exhaustion
// the returned error carries the attempt count and wraps the last cause.
//
// Each attempt re-executes op in full; op must be idempotent or side-effect
// free on failure. The executor does not enforce this.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	sleep := policy.sleeper()

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == policy.MaxRetries {
			break
		}
		delay := policy.BaseDelay << attempt
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("retry: operation failed after %d retries: %w", policy.MaxRetries, lastErr)
}
