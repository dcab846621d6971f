// Package rate paces bulk chat API requests such as role reconciliation.
package rate

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a steady request rate with random jitter between requests.
type Limiter struct {
	limiter   *rate.Limiter
	maxJitter time.Duration
}

// New creates a rate limiter allowing one request per interval with bursts of burst.
// For example, interval=1s and jitter=200ms will result in delays between 1s-1.2s.
func New(interval, jitter time.Duration, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter:   rate.NewLimiter(rate.Every(interval), burst),
		maxJitter: jitter,
	}
}

// WaitForNextSlot blocks until the next request may be made.
func (r *Limiter) WaitForNextSlot(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	if r.maxJitter <= 0 {
		return nil
	}

	timer := time.NewTimer(rand.N(r.maxJitter))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
