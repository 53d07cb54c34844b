package tracker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryBase = 500 * time.Millisecond
	// retryMax caps the attempts after the initial call.
	retryMax = 3
)

// newRetryBackoff returns the standard policy for transient tracker
// failures: exponential from 500ms, jittered, capped at three retries.
func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBase
	bo.MaxInterval = 8 * time.Second
	bo.RandomizationFactor = 0.5
	return backoff.WithMaxRetries(bo, retryMax)
}

// Retry runs op under the standard backoff policy. Auth, not-found and
// malformed failures stop immediately; rate-limit and network failures
// are retried, then surfaced as unavailable.
func Retry(ctx context.Context, op func() error) error {
	err := backoff.Retry(func() error {
		if err := op(); err != nil {
			if IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newRetryBackoff(), ctx))

	if err != nil && IsRetryable(err) {
		return &Error{Kind: KindUnavailable, Op: "retry exhausted", Err: err}
	}
	return err
}
