package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestAllowDrainsAndRefills(t *testing.T) {
	l, clock := newLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("user-1") {
			t.Fatalf("request %d denied within limit", i+1)
		}
	}
	if l.Allow("user-1") {
		t.Fatal("fourth request allowed")
	}
	if !l.Allow("user-2") {
		t.Error("keys must not share a bucket")
	}

	clock.advance(20 * time.Second)
	if !l.Allow("user-1") {
		t.Error("one token should refill after window/limit")
	}
	if l.Allow("user-1") {
		t.Error("only one token should have refilled")
	}
}

func TestRefillIsCapped(t *testing.T) {
	l, clock := newLimiter(2, time.Second)
	l.Allow("k")
	clock.advance(time.Hour)
	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("k") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d after long idle, want 2", allowed)
	}
}

func TestEvictIdleKeys(t *testing.T) {
	l, clock := newLimiter(1, time.Minute)
	l.Allow("old")
	clock.advance(3 * time.Minute)
	l.Allow("fresh")
	l.evict()
	if l.size() != 1 {
		t.Errorf("size = %d, want 1", l.size())
	}
}

func TestRetryAfter(t *testing.T) {
	l, _ := newLimiter(6, time.Minute)
	if got := l.RetryAfter(); got != 10*time.Second {
		t.Errorf("RetryAfter = %v, want 10s", got)
	}
}
