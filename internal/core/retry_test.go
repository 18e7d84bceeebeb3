package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		Name:      "test",
		Attempts:  attempts,
		MinWait:   time.Millisecond,
		MaxWait:   4 * time.Millisecond,
		Retryable: func(err error) bool { return errors.Is(err, errFlaky) },
	}
}

func TestRetryPolicySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), NewNopLogger(), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyReturnsFinalErrorOnExhaustion(t *testing.T) {
	calls := 0
	err := fastPolicy(4).Do(context.Background(), NewNopLogger(), func() error {
		calls++
		return errFlaky
	})

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 4, calls)
}

func TestRetryPolicyDoesNotRetryUnlistedErrors(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := fastPolicy(5).Do(context.Background(), NewNopLogger(), func() error {
		calls++
		return permanent
	})

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy(10)
	policy.MinWait = time.Second
	policy.MaxWait = time.Second

	calls := 0
	err := policy.Do(ctx, nil, func() error {
		calls++
		cancel()
		return errFlaky
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
