package cfapi

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// maxAttempts bounds the retry budget for transient failures.
	maxAttempts = 3
	// baseDelay is the initial backoff interval; it doubles per attempt.
	baseDelay = 250 * time.Millisecond
)

// withRetry runs op, retrying transient failures with bounded exponential
// backoff. Non-transient failures propagate immediately. Callers that must
// never retry (experimental settings) pass retries=1.
func withRetry(ctx context.Context, attempts uint, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if !Retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))
	return err
}
