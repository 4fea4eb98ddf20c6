package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy controls retry attempts and exponential backoff timing.
// MaxAttempts counts the initial call, so MaxAttempts=3 means at most
// two retries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction of the delay randomized, 0..1

	// Sleep overrides how delays are waited out; tests inject a recorder.
	Sleep func(context.Context, time.Duration) error
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Do invokes op until it succeeds, the attempts are exhausted, or
// retryable reports the failure as permanent. The last error is returned
// once retries exhaust.
func Do(ctx context.Context, policy Policy, retryable func(error) bool, op func(context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if err := policy.sleep(ctx, policy.delay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// delay computes the backoff before the attempt following attempt n:
// base, base*2, base*4, ... capped at MaxDelay, with jitter applied.
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = base
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	if p.Jitter > 0 {
		jitter := p.Jitter
		if jitter > 1 {
			jitter = 1
		}
		span := float64(delay) * jitter
		delay = time.Duration(float64(delay) - span/2 + rand.Float64()*span)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
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
