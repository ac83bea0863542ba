package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streampipe/pkg/errors"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.ErrPublishTimeout
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.ErrPublishTimeout
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.IsPublishTimeout(err))
}

func TestRetry_FatalErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return errors.ErrValidation
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_PlainErrorIsRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return stderrors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_CanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Retry(ctx, fastPolicy(100), func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.ErrPublishTimeout
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 3)
}

func TestRetryWithCallback_ReportsEachRetry(t *testing.T) {
	type retryEvent struct {
		attempt int
		delay   time.Duration
	}
	var events []retryEvent

	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.ErrPublishTimeout
	}, func(attempt int, err error, nextDelay time.Duration) {
		events = append(events, retryEvent{attempt: attempt, delay: nextDelay})
	})

	require.Error(t, err)
	// The final attempt has no retry after it, so only two events fire.
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].attempt)
	assert.Equal(t, 2, events[1].attempt)
	assert.Greater(t, events[1].delay, time.Duration(0))
}

func TestCalculateBackoffDuration_CapsAtMaxInterval(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second

	assert.Equal(t, 200*time.Millisecond, CalculateBackoffDuration(1, initial, 2.0, max))
	assert.Equal(t, 400*time.Millisecond, CalculateBackoffDuration(2, initial, 2.0, max))
	assert.Equal(t, max, CalculateBackoffDuration(10, initial, 2.0, max))
}
