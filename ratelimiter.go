package qfilter

import (
	"context"
	"sync"
	"time"
)

/*
RateLimiter paces requests to the hardware service with a token bucket.
Each request consumes a token; tokens come back one per refillRate up to
maxTokens, so short bursts go through and sustained polling is spread out.
*/
type RateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	mu         sync.Mutex
}

/*
NewRateLimiter creates a full bucket.

Parameters:
  - maxTokens: burst capacity
  - refillRate: time between token replenishments
*/
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     max(maxTokens, 1),
		maxTokens:  max(maxTokens, 1),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Limit consumes a token if one is available and reports whether the caller
// has to hold off.
func (rl *RateLimiter) Limit() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return false
	}
	return true
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for rl.Limit() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.refillRate):
		}
	}
	return nil
}

// Tokens reports the tokens currently in the bucket.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return rl.tokens
}

// refill assumes the caller holds the lock.
func (rl *RateLimiter) refill() {
	if rl.refillRate <= 0 {
		rl.tokens = rl.maxTokens
		return
	}

	added := int(time.Since(rl.lastRefill) / rl.refillRate)
	if added > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+added)
		// Only whole periods move the clock forward.
		rl.lastRefill = rl.lastRefill.Add(time.Duration(added) * rl.refillRate)
	}
}
