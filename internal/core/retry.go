package core

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries an operation with exponential backoff. Only errors
// accepted by Retryable are retried; anything else fails immediately.
// Attempts counts the first call, so Attempts=3 sleeps at most twice.
type RetryPolicy struct {
	Name      string
	Attempts  int
	MinWait   time.Duration
	MaxWait   time.Duration
	Retryable func(error) bool
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts the
// attempts or ctx is done. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, logger *Logger, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.MinWait
	expo.MaxInterval = p.MaxWait
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if logger == nil {
			return
		}
		logger.Warn("Retrying after error",
			"policy", p.Name,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(operation, policy, notify)
}
