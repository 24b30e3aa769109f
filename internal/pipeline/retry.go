package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/fieldmark/internal/extract"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *extract.RetryableError
	return errors.As(err, &retryErr)
}

// BackoffPolicy doubles Base per attempt up to Max and adds up to 50%
// jitter.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry n (0-indexed).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	base := p.Base << uint(attempt)
	if base <= 0 || (p.Max > 0 && base > p.Max) {
		base = p.Max
	}
	if half := int64(base) / 2; half > 0 {
		return base + time.Duration(rand.Int64N(half))
	}
	return base
}

// withRetry calls fn up to MaxRetries times while it fails with a retryable
// error. onRetry runs before each wait.
func withRetry[T any](ctx context.Context, policy BackoffPolicy, onRetry func(attempt int, err error), fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := range MaxRetries {
		out, err = fn(ctx)
		if err == nil || !IsRetryable(err) || attempt == MaxRetries-1 {
			return out, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		select {
		case <-time.After(policy.Delay(attempt)):
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
	return out, err
}
