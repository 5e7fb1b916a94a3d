package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	limiter.now = fixedClock(time.Date(2026, 10, 19, 12, 0, 10, 0, time.UTC))
	ctx := context.Background()
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	redis.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresRedisAddr(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter("", "", "test:ratelimit", 1, time.Second)
	if err == nil || limiter != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestMemoryFixedWindowLimiterResetsEachWindow(t *testing.T) {
	limiter, err := NewMemoryFixedWindowLimiter(1, time.Minute)
	if err != nil {
		t.Fatalf("new memory limiter: %v", err)
	}
	now := time.Date(2026, 10, 19, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first request should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("second request in window should be blocked")
	}
	now = now.Add(time.Minute)
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("request in next window should pass")
	}
}

func TestFixedWindowLimiterRejectsBadConfig(t *testing.T) {
	if _, err := NewMemoryFixedWindowLimiter(0, time.Second); err == nil {
		t.Fatalf("expected zero limit to fail")
	}
	if _, err := NewMemoryFixedWindowLimiter(1, 0); err == nil {
		t.Fatalf("expected zero window to fail")
	}
}
