package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute, HalfOpenMax: 1})

	failing := func() error { return assert.AnError }

	for i := 0; i < 5; i++ {
		err := b.Do(failing)
		require.ErrorIs(t, err, assert.AnError)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 5, b.Failures())

	// Sixth call inside the reset timeout must fail fast without
	// invoking the operation.
	invoked := false
	err := b.Do(func() error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	assert.False(t, invoked)
}

func TestBreaker_HalfOpenTrialClosesOnSuccess(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: 10 * time.Second, HalfOpenMax: 1})

	clock := time.Now()
	b.now = func() time.Time { return clock }

	require.Error(t, b.Do(func() error { return assert.AnError }))
	require.Error(t, b.Do(func() error { return assert.AnError }))
	require.Equal(t, StateOpen, b.State())

	// Advance past the reset timeout; one trial call is allowed.
	clock = clock.Add(11 * time.Second)
	err := b.Do(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_HalfOpenTrialReopensOnFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: 10 * time.Second, HalfOpenMax: 1})

	clock := time.Now()
	b.now = func() time.Time { return clock }

	require.Error(t, b.Do(func() error { return assert.AnError }))
	require.Error(t, b.Do(func() error { return assert.AnError }))

	clock = clock.Add(11 * time.Second)
	require.ErrorIs(t, b.Do(func() error { return assert.AnError }), assert.AnError)
	assert.Equal(t, StateOpen, b.State())

	// The timeout restarts from the trial failure.
	clock = clock.Add(5 * time.Second)
	require.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)
}

func TestBreaker_HalfOpenBudgetRejectsExtraTrials(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second, HalfOpenMax: 1})

	clock := time.Now()
	b.now = func() time.Time { return clock }

	require.Error(t, b.Do(func() error { return assert.AnError }))
	clock = clock.Add(2 * time.Second)

	// Move into half-open with the single trial slot taken.
	require.NoError(t, b.before())
	require.Equal(t, StateHalfOpen, b.State())
	require.ErrorIs(t, b.before(), ErrOpen)
}

func TestBreaker_StateChangeHook(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second, HalfOpenMax: 1})

	var seen []BreakerState
	b.OnStateChange(func(s BreakerState) { seen = append(seen, s) })

	clock := time.Now()
	b.now = func() time.Time { return clock }

	require.Error(t, b.Do(func() error { return assert.AnError }))
	clock = clock.Add(2 * time.Second)
	require.NoError(t, b.Do(func() error { return nil }))

	assert.Equal(t, []BreakerState{StateOpen, StateHalfOpen, StateClosed}, seen)
}

func TestRetry_PropagatesLastErrorAfterExhaustion(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	attempts := 0
	lastErr := errors.New("attempt 3 failed")
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts == 3 {
			return lastErr
		}
		return assert.AnError
	})

	require.ErrorIs(t, err, lastErr)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnFirstSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts == 2 {
			return nil
		}
		return assert.AnError
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		attempts++
		return assert.AnError
	})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}

func TestBackoffDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, backoffDelay(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(cfg, 2))
	assert.Equal(t, 300*time.Millisecond, backoffDelay(cfg, 3))
	assert.Equal(t, 300*time.Millisecond, backoffDelay(cfg, 10))
}

func TestGuard_RetrySequenceCountsAsOneBreakerFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute, HalfOpenMax: 1})
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Guard(context.Background(), b, cfg, func() error {
		calls++
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, b.Failures())
	assert.Equal(t, StateClosed, b.State())
}
