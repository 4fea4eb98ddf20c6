package retry

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the circuit breaker rejects a call
// without reaching the external dependency.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Breaker is a failure-count circuit breaker: FailureCount failures within
// a rolling Window open it for Cooldown, after which calls flow again.
// State is process-local and resets on restart; construct one per owner
// rather than sharing a package-level instance.
type Breaker struct {
	FailureCount int
	Window       time.Duration
	Cooldown     time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time

	mu        sync.Mutex
	failures  []time.Time
	openUntil time.Time
}

// NewBreaker constructs a breaker with the given thresholds.
func NewBreaker(failureCount int, window, cooldown time.Duration) *Breaker {
	return &Breaker{FailureCount: failureCount, Window: window, Cooldown: cooldown}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.now().Before(b.openUntil)
}

// RecordSuccess clears the failure window.
func (b *Breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = b.failures[:0]
}

// RecordFailure notes a failure and opens the breaker when the rolling
// window fills up.
func (b *Breaker) RecordFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-b.window())
	kept := b.failures[:0]
	for _, at := range b.failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	b.failures = append(kept, now)

	threshold := b.FailureCount
	if threshold <= 0 {
		threshold = 1
	}
	if len(b.failures) >= threshold {
		b.openUntil = now.Add(b.cooldown())
		b.failures = b.failures[:0]
	}
}

func (b *Breaker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Breaker) window() time.Duration {
	if b.Window <= 0 {
		return time.Minute
	}
	return b.Window
}

func (b *Breaker) cooldown() time.Duration {
	if b.Cooldown <= 0 {
		return time.Minute
	}
	return b.Cooldown
}
