package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestAuditAlerterTriggersOnLoginBurst(t *testing.T) {
	redis := miniredis.RunT(t)
	alerter := NewAuditAlerter(redis.Addr(), "", "test:alerts")
	if alerter == nil {
		t.Fatalf("expected alerter")
	}
	defer alerter.Close()

	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		result, err := alerter.Observe(ctx, "login", "failure", "10.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if want := i >= 10; result.Triggered != want {
			t.Fatalf("attempt %d triggered = %v, want %v", i, result.Triggered, want)
		}
	}

	// Other IPs keep their own counters.
	result, err := alerter.Observe(ctx, "login", "failure", "10.0.0.2")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 1 {
		t.Fatalf("separate ip result = %+v", result)
	}
}

func TestAuditAlerterImpersonationTriggersImmediately(t *testing.T) {
	redis := miniredis.RunT(t)
	alerter := NewAuditAlerter(redis.Addr(), "", "")
	result, err := alerter.Observe(context.Background(), "impersonation", "failure", "10.0.0.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if !result.Triggered || result.Window != time.Hour {
		t.Fatalf("result = %+v", result)
	}
	if len(redis.Keys()) != 1 {
		t.Fatalf("keys = %v", redis.Keys())
	}
}

func TestAuditAlerterIgnoresSuccessAndUnknownEvents(t *testing.T) {
	redis := miniredis.RunT(t)
	alerter := NewAuditAlerter(redis.Addr(), "", "test:alerts")
	for _, tc := range [][2]string{{"login", "success"}, {"chat_cleared", "failure"}} {
		result, err := alerter.Observe(context.Background(), tc[0], tc[1], "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered || result.Count != 0 {
			t.Fatalf("%v: unexpected result %+v", tc, result)
		}
	}
	if len(redis.Keys()) != 0 {
		t.Fatalf("keys written for ignored events: %v", redis.Keys())
	}
}

func TestNilAlerterIsNoop(t *testing.T) {
	alerter := NewAuditAlerter("", "", "")
	if alerter != nil {
		t.Fatalf("expected nil alerter without address")
	}
	result, err := alerter.Observe(context.Background(), "login", "failure", "127.0.0.1")
	if err != nil || result.Triggered {
		t.Fatalf("nil observe = %+v, %v", result, err)
	}
	if err := alerter.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
