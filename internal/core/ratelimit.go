package core

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// DomainLimiter spaces out requests to the same domain. After every access
// the next one is held back by MinDelay plus a random jitter of up to
// MaxDelay-MinDelay.
//
// The state is local to the process and never evicted. It is politeness,
// not admission control: separate processes do not see each other.
type DomainLimiter struct {
	minDelay time.Duration
	maxDelay time.Duration
	now      func() time.Time

	mu   sync.Mutex
	next map[string]time.Time
}

// NewDomainLimiter creates a limiter. A zero minDelay disables waiting.
func NewDomainLimiter(minDelay, maxDelay time.Duration) *DomainLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &DomainLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		now:      time.Now,
		next:     make(map[string]time.Time),
	}
}

// reserve claims the earliest free slot for domain and books the gap that
// must follow it
func (d *DomainLimiter) reserve(domain string) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.now()
	if next, ok := d.next[domain]; ok && next.After(slot) {
		slot = next
	}

	gap := d.minDelay
	if spread := d.maxDelay - d.minDelay; spread > 0 {
		gap += time.Duration(rand.Int64N(int64(spread)))
	}
	d.next[domain] = slot.Add(gap)

	return slot
}

// Wait blocks until domain may be contacted again. The access is recorded
// before sleeping, so concurrent callers queue behind each other.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	if d == nil || d.minDelay <= 0 {
		return nil
	}

	slot := d.reserve(strings.ToLower(domain))
	delay := slot.Sub(d.now())
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Domains returns how many domains have been seen
func (d *DomainLimiter) Domains() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.next)
}
