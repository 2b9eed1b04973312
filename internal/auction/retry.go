package auction

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how transactional conflicts are retried before being
// surfaced as a CONFLICT error.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff cap
	Jitter     float64       // fraction of the delay randomized in both directions
}

// DefaultRetryPolicy retries a conflicted transaction 3 times with
// exponential backoff from 100ms capped at 2s, ±25% jitter.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  100 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

// withRetry runs fn, retrying per policy whenever retryable(err) is true.
// A non-retryable error is returned as-is; exhausting the retry budget
// returns a CONFLICT error. The delay between attempts respects ctx
// cancellation.
func withRetry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}

		if attempt >= policy.MaxRetries {
			return conflictError(attempt + 1)
		}

		delay := backoffDelay(policy, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := time.Duration(float64(policy.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	if policy.Jitter > 0 {
		// Spread the delay across [1-j, 1+j] to avoid thundering herds.
		factor := 1 + policy.Jitter*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}
