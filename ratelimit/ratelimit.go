package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing upstream requests. A nil *Limiter never blocks.
type Limiter struct {
	inner *rate.Limiter
}

// New returns a limiter allowing perSecond requests with the given burst, or
// nil when perSecond is not positive.
func New(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))}
}

func (l *Limiter) Wait(ctx context.Context) error {
	if nil == l {
		return nil
	}
	return l.inner.Wait(ctx)
}

// BatchConcurrency clamps the configured number of in-flight batch lookups to
// something sensible for the number of chunks at hand.
func BatchConcurrency(configured, chunks int) int {
	switch {
	case chunks <= 1, configured <= 1:
		return 1
	case configured > chunks:
		return chunks
	default:
		return configured
	}
}
