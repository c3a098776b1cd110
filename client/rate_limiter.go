package client

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that smooths outgoing API calls to a
// per-minute rate. The bucket holds at most one second's worth of tokens, so
// a short burst goes out immediately and sustained traffic settles at the
// configured rate.
type RateLimiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	tokens float64
	last   time.Time
}

// NewRateLimiter builds a limiter for perMinute requests. A zero or negative
// rate returns nil, which Wait treats as unlimited.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	rate := float64(perMinute) / 60.0
	return &RateLimiter{rate: rate, tokens: bucketSize(rate), last: time.Now()}
}

func bucketSize(rate float64) float64 {
	if rate < 1 {
		return 1
	}
	return rate
}

// Wait blocks until a token is available or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	for {
		rl.mu.Lock()
		// Refill tokens
		now := time.Now()
		elapsed := now.Sub(rl.last).Seconds()
		if elapsed > 0 {
			rl.tokens += elapsed * rl.rate
			if size := bucketSize(rl.rate); rl.tokens > size {
				rl.tokens = size
			}
			rl.last = now
		}
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		// Need to wait for the next refill cycle
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
