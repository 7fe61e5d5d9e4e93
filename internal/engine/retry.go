package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/terrane-dev/terrane/internal/cloud"
)

// RetryPolicy bounds the exponential backoff applied to transient remote
// failures and to operation polling.
//
// Only TRANSIENT and QUOTA_EXCEEDED error classes are retried; everything
// else fails the attempt immediately.
type RetryPolicy struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// Multiplier scales the delay after each retry.
	Multiplier float64
	// MaxInterval caps the per-retry delay.
	MaxInterval time.Duration
	// MaxAttempts is the total number of attempts (first try included).
	MaxAttempts int
}

// DefaultRetryPolicy is applied when no WithRetryPolicy option is given.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 500 * time.Millisecond,
	Multiplier:      2.0,
	MaxInterval:     30 * time.Second,
	MaxAttempts:     5,
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall time
	b.RandomizationFactor = 0
	var bo backoff.BackOff = b
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(bo, ctx)
}

// retryTransient runs op, retrying per the policy while op returns a
// retryable remote error. ALREADY_EXISTS is also retried: it signals a
// create race, and the next attempt re-observes and takes the update or
// no-op path instead.
func (p RetryPolicy) retryTransient(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if cloud.IsRetryable(err) || cloud.IsAlreadyExists(err) {
			return err
		}
		return backoff.Permanent(err)
	}, p.newBackOff(ctx))
}
