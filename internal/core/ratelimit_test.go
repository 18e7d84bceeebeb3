package core

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainLimiterSpacesSameDomain(t *testing.T) {
	limiter := NewDomainLimiter(60*time.Millisecond, 60*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "example.com"))
	assert.Less(t, time.Since(start), 30*time.Millisecond, "first access should not wait")

	require.NoError(t, limiter.Wait(ctx, "EXAMPLE.com"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, limiter.Domains())
}

func TestDomainLimiterKeepsMinimumGapWithJitter(t *testing.T) {
	const minDelay = 30 * time.Millisecond
	ctx := context.Background()

	for run := 0; run < 5; run++ {
		limiter := NewDomainLimiter(minDelay, 90*time.Millisecond)

		var last time.Time
		for i := 0; i < 4; i++ {
			require.NoError(t, limiter.Wait(ctx, "example.com"))
			now := time.Now()
			if i > 0 {
				assert.GreaterOrEqual(t, now.Sub(last), minDelay-2*time.Millisecond, "run %d access %d", run, i)
			}
			last = now
		}
	}
}

func TestDomainLimiterQueuesConcurrentCallers(t *testing.T) {
	const minDelay = 40 * time.Millisecond
	limiter := NewDomainLimiter(minDelay, 60*time.Millisecond)

	var mu sync.Mutex
	var times []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, limiter.Wait(context.Background(), "example.com"))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), minDelay-5*time.Millisecond)
	}
}

func TestDomainLimiterIndependentDomains(t *testing.T) {
	limiter := NewDomainLimiter(200*time.Millisecond, 200*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "a.example"))
	require.NoError(t, limiter.Wait(ctx, "b.example"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestDomainLimiterHonoursContext(t *testing.T) {
	limiter := NewDomainLimiter(time.Hour, time.Hour)
	require.NoError(t, limiter.Wait(context.Background(), "slow.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(ctx, "slow.example"), context.DeadlineExceeded)
}

func TestDomainLimiterDisabled(t *testing.T) {
	var nilLimiter *DomainLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "x"))

	limiter := NewDomainLimiter(0, 0)
	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Wait(context.Background(), "x"))
	}
}
