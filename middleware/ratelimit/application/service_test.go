package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"query-gateway/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	dec   domain.Decision
	err   error
	calls int
}

func (f *fakeLimiter) Allow(context.Context, domain.Key) (domain.Decision, error) {
	f.calls++
	return f.dec, f.err
}

func TestService_Decide_AllowsWhenNoLimiters(t *testing.T) {
	svc := Service{}
	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_KeepsWindowInfoWhenAllowed(t *testing.T) {
	lim := &fakeLimiter{dec: domain.Decision{Allowed: true, Limit: 5, Remaining: 3}}
	svc := Service{Limiters: []domain.Limiter{lim}}

	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed || dec.Limit != 5 || dec.Remaining != 3 {
		t.Fatalf("unexpected decision %+v", dec)
	}
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Limiters: []domain.Limiter{&fakeLimiter{dec: domain.Decision{Allowed: false}}}}
	dec := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_PrefersLimiterRetryAfter(t *testing.T) {
	lim := &fakeLimiter{dec: domain.Decision{Allowed: false, RetryAfter: 42 * time.Second}}
	svc := Service{Limiters: []domain.Limiter{lim}, RetryAfter: 2 * time.Second}
	dec := svc.Decide(context.Background(), "k")
	if dec.RetryAfter != 42*time.Second {
		t.Fatalf("expected RetryAfter=42s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_StopsAtFirstDenial(t *testing.T) {
	first := &fakeLimiter{dec: domain.Decision{Allowed: false}}
	second := &fakeLimiter{dec: domain.Decision{Allowed: true}}
	svc := Service{Limiters: []domain.Limiter{first, second}}

	if svc.Decide(context.Background(), "k").Allowed {
		t.Fatalf("expected blocked")
	}
	if second.calls != 0 {
		t.Fatalf("expected second limiter not to be consulted, got %d calls", second.calls)
	}
}

func TestService_Decide_FailsOpenOnStoreError(t *testing.T) {
	lim := &fakeLimiter{err: errors.New("redis down")}
	svc := Service{Limiters: []domain.Limiter{lim}}
	if !svc.Decide(context.Background(), "k").Allowed {
		t.Fatalf("expected allowed when the store fails")
	}
}
