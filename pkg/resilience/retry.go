package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls backoff behavior for retried operations.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterMax   time.Duration
}

// DefaultRetryConfig returns the retry policy used for durable operations.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		JitterMax:   50 * time.Millisecond,
	}
}

// Retry runs op up to cfg.MaxAttempts times, sleeping
// min(base*2^(attempt-1), maxDelay) plus random jitter between attempts.
// The last error is returned when all attempts fail.
func Retry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (context canceled after %d attempts)", lastErr, attempt-1)
			}
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (context canceled after %d attempts)", lastErr, attempt)
		case <-timer.C:
		}
	}

	return lastErr
}

// backoffDelay computes the wait before the next attempt (1-based).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.JitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(cfg.JitterMax)))
	}
	return delay
}
