// Package ratelimit throttles outbound presence queries across the whole
// tracked fleet.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter grants at most perSecond permits within any rolling one-second
// window. Acquire blocks the caller until a permit is free; waiters are
// served in roughly FIFO order by the underlying token source.
type Limiter struct {
	lim *rate.Limiter
}

// New builds a limiter for perSecond queries per second. The burst is pinned
// to one so grants are spaced evenly; a burst of N would admit up to 2N
// grants inside a single rolling window.
func New(perSecond int) *Limiter {
	if perSecond < 1 {
		perSecond = 1
	}
	return &Limiter{
		lim: rate.NewLimiter(rate.Every(time.Second/time.Duration(perSecond)), 1),
	}
}

// Acquire blocks until a permit is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.lim.Wait(ctx)
}
