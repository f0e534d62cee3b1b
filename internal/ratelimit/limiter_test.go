package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock is an advanceable clock for deterministic limiter tests
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestAllowConsumesBurst(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(5, 3, clock.Now)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if limiter.Allow() {
		t.Error("request beyond burst capacity should be denied")
	}
}

func TestRefillOverTime(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(5, 5, clock.Now)

	for i := 0; i < 5; i++ {
		limiter.Allow()
	}
	if limiter.Allow() {
		t.Fatal("bucket should be empty")
	}

	// 5 rps: 200ms buys exactly one token
	clock.Advance(200 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("one token should have refilled after 200ms")
	}
	if limiter.Allow() {
		t.Error("only one token should have refilled")
	}
}

func TestRefillCapsAtBurst(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(5, 2, clock.Now)

	clock.Advance(time.Hour)
	if tokens := limiter.Tokens(); tokens != 2 {
		t.Errorf("expected tokens capped at burst 2, got %v", tokens)
	}
}

func TestWaitReturnsImmediatelyWithTokens(t *testing.T) {
	limiter := New(5, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait with available token failed: %v", err)
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	// A tiny refill rate forces Wait to block
	limiter := New(0.001, 1)
	limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}
