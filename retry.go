package qfilter

import (
	"context"
	"math"
	"time"

	"github.com/theapemachine/errnie"
)

// RetryPolicy defines retry behavior
type RetryPolicy struct {
	MaxAttempts int
	Strategy    RetryStrategy
	Filter      func(error) bool
}

// RetryStrategy defines the interface for retry behavior
type RetryStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements RetryStrategy
type ExponentialBackoff struct {
	Initial time.Duration
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	return eb.Initial * time.Duration(math.Pow(2, float64(attempt-1)))
}

// NewRetryPolicy returns a policy with exponential backoff.
func NewRetryPolicy(attempts int, initial time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: attempts,
		Strategy:    &ExponentialBackoff{Initial: initial},
	}
}

/*
Do calls fn until it succeeds, the attempts run out, the filter rejects the
error, or ctx is done. The last error is returned.
*/
func (rp *RetryPolicy) Do(ctx context.Context, name string, fn func() error) error {
	attempts := max(rp.MaxAttempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && rp.Strategy != nil {
			delay := rp.Strategy.NextDelay(attempt)
			errnie.Warn("%s retrying attempt %d after %v", name, attempt+1, delay)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if rp.Filter != nil && !rp.Filter(lastErr) {
			break
		}
	}

	return lastErr
}
