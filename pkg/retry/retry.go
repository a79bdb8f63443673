// Package retry wraps fallible calls to the external model service with
// bounded exponential backoff.
package retry

import (
	"context"
	"time"
)

const (
	// DefaultMaxRetries bounds retries beyond the first attempt.
	DefaultMaxRetries = 3
	// DefaultInitialDelay is the wait before the first retry; it doubles on
	// each subsequent retry.
	DefaultInitialDelay = 2000 * time.Millisecond
)

// Policy controls retry behavior. Retryable classifies failures; a nil
// classifier never retries.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Retryable    func(error) bool

	sleep func(context.Context, time.Duration) error
}

// NewPolicy builds a policy with defaults applied for non-positive values.
// A policy that never retries is expressed with a nil Retryable classifier,
// not with MaxRetries 0.
func NewPolicy(maxRetries int, initialDelay time.Duration, retryable func(error) bool) Policy {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		Retryable:    retryable,
	}
}

// Do invokes op, retrying on failures the policy classifies as retryable.
// Attempts are strictly sequential; total invocations never exceed
// MaxRetries+1. Non-retryable failures and exhaustion propagate the
// operation's error unmodified. The backoff wait aborts when ctx is
// canceled.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var zero T
	remaining := p.MaxRetries
	for {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if remaining <= 0 || p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
		delay *= 2
		remaining--
	}
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
