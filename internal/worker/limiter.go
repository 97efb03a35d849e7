package worker

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles how fast conversions are started. A zero value or a
// Limiter built with a non-positive rate never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter admitting perSecond conversion starts with
// the given burst
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return &Limiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Unlimited reports whether the limiter never blocks
func (l *Limiter) Unlimited() bool {
	return l == nil || l.limiter == nil
}

// Wait blocks until the next conversion may start or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if l.Unlimited() {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}
