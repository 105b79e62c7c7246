package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 3}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 3, Delay: time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastErrorOnExhaustion(t *testing.T) {
	last := errors.New("still failing")
	calls := 0
	err := Policy{MaxAttempts: 2, Delay: time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return last
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, last, err)
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := Policy{MaxAttempts: 5, Delay: time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	assert.Equal(t, 1, calls)
	// The permanent wrapper is stripped before returning
	assert.Equal(t, sentinel, err)
}

func TestDoZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})
	assert.Equal(t, 1, calls)
	assert.Error(t, err)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{MaxAttempts: 10, Delay: time.Minute}.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Policy{MaxAttempts: 3}.Do(ctx, func(ctx context.Context) error {
		t.Fatal("op should not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayFor(t *testing.T) {
	fixed := Policy{Delay: time.Second, Backoff: BackoffFixed}
	assert.Equal(t, time.Second, fixed.delayFor(1))
	assert.Equal(t, time.Second, fixed.delayFor(3))

	linear := Policy{Delay: time.Second, Backoff: BackoffLinear}
	assert.Equal(t, time.Second, linear.delayFor(1))
	assert.Equal(t, 3*time.Second, linear.delayFor(3))
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
