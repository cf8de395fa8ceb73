package telegram

import (
	"sync"
	"time"
)

// Backoff tracks the adaptive delay applied after the platform signals
// throttling. Each throttle doubles the delay up to a cap (or jumps straight
// to the platform's retry-after hint when that is larger); a sustained run of
// successes clears it. This is separate from the local outbound rate limiter,
// which always applies.
type Backoff struct {
	mu sync.Mutex

	base          time.Duration
	max           time.Duration
	successWindow int

	delay     time.Duration
	successes int
}

func NewBackoff() *Backoff {
	return NewBackoffWithConfig(2*time.Second, 5*time.Minute, 10)
}

func NewBackoffWithConfig(base, max time.Duration, successWindow int) *Backoff {
	if base <= 0 {
		base = 2 * time.Second
	}
	if max < base {
		max = 5 * time.Minute
	}
	if successWindow < 1 {
		successWindow = 10
	}
	return &Backoff{
		base:          base,
		max:           max,
		successWindow: successWindow,
	}
}

// RecordThrottle registers a platform-signalled rate limit. retryAfter may
// be zero when the platform gave no hint.
func (b *Backoff) RecordThrottle(retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0

	next := b.base
	if b.delay > 0 {
		next = b.delay * 2
	}
	if retryAfter > next {
		next = retryAfter
	}
	if next > b.max {
		next = b.max
	}
	b.delay = next
}

// RecordSuccess counts one clean query. The delay resets only after a full
// window of consecutive successes, so a single lucky call in the middle of a
// flood does not drop the guard.
func (b *Backoff) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.delay == 0 {
		return
	}
	b.successes++
	if b.successes >= b.successWindow {
		b.delay = 0
		b.successes = 0
	}
}

// Delay returns the wait to apply before the next query, zero when clear.
func (b *Backoff) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay
}
