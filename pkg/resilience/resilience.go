// Package resilience wraps durable operations with retry and
// circuit-breaking. Every persistence call in the host flows through
// Guard, which composes the two as breaker(retry(op)).
package resilience

import "context"

// Guard runs op as circuitBreaker(retry(op)): the retry loop counts as a
// single call against the breaker, so one exhausted retry sequence adds one
// consecutive failure.
func Guard(ctx context.Context, b *Breaker, cfg RetryConfig, op func() error) error {
	return b.Do(func() error {
		return Retry(ctx, cfg, op)
	})
}
