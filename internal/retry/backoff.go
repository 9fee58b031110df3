package retry

import (
	"context"
	"time"
)

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt, base * 2^attempt, and never exceeds
// limit when limit is positive.
func ExponentialBackoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := base * (1 << attempt)
	if limit > 0 && (d > limit || d < 0) {
		return limit
	}
	return d
}

// Do calls fn until it succeeds, attempts run out, or ctx ends. It sleeps
// ExponentialBackoff(i, base, limit) between failures and returns the last error.
func Do(ctx context.Context, attempts int, base, limit time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(ExponentialBackoff(attempt, base, limit))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
