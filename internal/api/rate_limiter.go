package api

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every request of a client.
// The broker allows a fixed number of calls per minute per consumer key,
// token refreshes included.
type RateLimiter struct {
	mu       sync.Mutex
	capacity int
	interval time.Duration
	avail    int
	refilled time.Time
	now      func() time.Time
}

// NewRateLimiter holds up to capacity tokens and adds one every interval.
func NewRateLimiter(capacity int, interval time.Duration) *RateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	rl := &RateLimiter{capacity: capacity, interval: interval, avail: capacity, now: time.Now}
	rl.refilled = rl.now()
	return rl
}

// PerMinute allows n calls per minute with bursts of up to n.
func PerMinute(n int) *RateLimiter {
	if n <= 0 {
		n = 1
	}
	return NewRateLimiter(n, time.Minute/time.Duration(n))
}

// Wait blocks until a token is taken or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		delay := rl.take()
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take consumes a token if one is available. Otherwise it reports how long
// until the next one is added.
func (rl *RateLimiter) take() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.interval > 0 {
		if n := int(now.Sub(rl.refilled) / rl.interval); n > 0 {
			rl.avail = min(rl.capacity, rl.avail+n)
			rl.refilled = rl.refilled.Add(time.Duration(n) * rl.interval)
		}
	}

	if rl.avail > 0 {
		rl.avail--
		return 0
	}
	if rl.interval <= 0 {
		return time.Millisecond
	}
	return rl.interval - now.Sub(rl.refilled)
}
