package retry

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(3, time.Minute, 5*time.Minute)
	b.Now = func() time.Time { return now }

	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("breaker open before threshold")
	}
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker still closed after threshold")
	}
}

func TestBreakerClosesAfterCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(1, time.Minute, 5*time.Minute)
	b.Now = func() time.Time { return now }

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should be open")
	}

	now = now.Add(5*time.Minute + time.Second)
	if !b.Allow() {
		t.Fatal("breaker should close after cooldown")
	}
}

func TestBreakerWindowExpiresOldFailures(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(3, time.Minute, 5*time.Minute)
	b.Now = func() time.Time { return now }

	b.RecordFailure()
	b.RecordFailure()

	// Old failures age out of the rolling window.
	now = now.Add(2 * time.Minute)
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("aged-out failures should not open the breaker")
	}
}

func TestBreakerSuccessResetsWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(2, time.Minute, time.Minute)
	b.Now = func() time.Time { return now }

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("success should have cleared the failure window")
	}
}

func TestNilBreakerAllows(t *testing.T) {
	var b *Breaker
	if !b.Allow() {
		t.Fatal("nil breaker must allow calls")
	}
	b.RecordFailure()
	b.RecordSuccess()
}
