// Package retry implements bounded retry with exponential backoff for
// external service calls. Policies are plain values parameterizing each call
// wrapper; the clock is injectable so backoff behavior is testable without
// real waits.
package retry

import (
	"context"
	"time"
)

// Clock abstracts time for tests.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy describes a bounded retry schedule. The backoff for attempt n
// (1-based) is InitialBackoff * 2^(n-1): 1s, 2s, 4s for the default
// narrative policy.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries everything.
	Retryable func(error) bool

	clock Clock
}

// NewPolicy creates a Policy with the given attempt budget and initial
// backoff.
func NewPolicy(maxAttempts int, initialBackoff time.Duration) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: initialBackoff,
	}
}

// WithRetryable returns a copy of the policy using the given predicate.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// WithClock returns a copy of the policy using the given clock.
func (p Policy) WithClock(c Clock) Policy {
	p.clock = c
	return p
}

// Do runs fn until it succeeds, the attempt budget is exhausted, a
// non-retryable error occurs, or the context is canceled. The last error is
// returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	clock := p.clock
	if clock == nil {
		clock = realClock{}
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := p.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		if err := clock.Sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
	return lastErr
}
