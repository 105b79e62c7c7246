// Package retry provides the bounded-retry-with-delay policy applied
// uniformly to mail provider and sentiment backend calls.
package retry

import (
	"context"
	"errors"
	"time"
)

// Backoff selects how the delay grows between attempts
type Backoff string

const (
	// BackoffFixed waits the same delay between every attempt
	BackoffFixed Backoff = "fixed"
	// BackoffLinear waits delay * attempt between attempts
	BackoffLinear Backoff = "linear"
)

// Policy is an explicit retry policy: attempt count, base delay and backoff
// strategy. The zero value performs a single attempt with no delay.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     Backoff
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying; Do returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op up to p.MaxAttempts times, sleeping between attempts and
// honoring ctx cancellation both between attempts and through the ctx passed
// to op. The last attempt's error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.delayFor(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

func (p Policy) delayFor(attempt int) time.Duration {
	if p.Backoff == BackoffLinear {
		return p.Delay * time.Duration(attempt)
	}
	return p.Delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
