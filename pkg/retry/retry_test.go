package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func noSleepPolicy(maxRetries int, delays *[]time.Duration) Policy {
	p := NewPolicy(maxRetries, 2*time.Second, isTransient)
	p.sleep = func(_ context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
	return p
}

func TestDoRetriesTransientFailuresThenSucceeds(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), noSleepPolicy(3, nil), func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected result: %q", out)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", calls)
	}
}

func TestDoDoesNotRetryNonRetryableFailure(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), noSleepPolicy(3, nil), func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", calls)
	}
}

func TestDoExhaustionPropagatesLastError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), noSleepPolicy(2, nil), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected maxRetries+1 = 3 invocations, got %d", calls)
	}
}

func TestDoBackoffDoublesFromInitialDelay(t *testing.T) {
	var delays []time.Duration
	_, _ = Do(context.Background(), noSleepPolicy(3, &delays), func(context.Context) (int, error) {
		return 0, errTransient
	})
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d waits, got %d", len(want), len(delays))
	}
	for i, d := range want {
		if delays[i] != d {
			t.Fatalf("wait %d: expected %v, got %v", i+1, d, delays[i])
		}
	}
}

func TestDoAbortsBackoffOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := NewPolicy(3, time.Hour, isTransient)
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 invocation before cancellation, got %d", calls)
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	for _, maxRetries := range []int{-1, 0} {
		p := NewPolicy(maxRetries, 0, nil)
		if p.MaxRetries != DefaultMaxRetries {
			t.Fatalf("maxRetries=%d: expected default max retries, got %d", maxRetries, p.MaxRetries)
		}
		if p.InitialDelay != DefaultInitialDelay {
			t.Fatalf("maxRetries=%d: expected default initial delay, got %v", maxRetries, p.InitialDelay)
		}
	}
}
