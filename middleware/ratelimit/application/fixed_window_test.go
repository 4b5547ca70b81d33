package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"query-gateway/middleware/ratelimit/domain"
)

// fakeWindowStore conta em memória sem expiração; suficiente para a regra de decisão.
type fakeWindowStore struct {
	counts  map[string]int
	lastKey string
	err     error
}

func (s *fakeWindowStore) Take(_ context.Context, key string, max int, window time.Duration) (bool, int, time.Duration, error) {
	if s.err != nil {
		return false, 0, 0, s.err
	}
	if s.counts == nil {
		s.counts = map[string]int{}
	}
	s.lastKey = key
	if s.counts[key] >= max {
		return false, s.counts[key], window, nil
	}
	s.counts[key]++
	return true, s.counts[key], window, nil
}

func TestFixedWindow_AdmitsUpToMaxThenDenies(t *testing.T) {
	store := &fakeWindowStore{}
	fw := FixedWindow{Store: store, Max: 5, Window: time.Minute, Scope: "/ask"}

	for i := 1; i <= 5; i++ {
		dec, err := fw.Allow(context.Background(), "10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if dec.Remaining != 5-i {
			t.Fatalf("expected remaining=%d, got %d", 5-i, dec.Remaining)
		}
	}

	dec, err := fw.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("expected 6th request to be denied")
	}
	if dec.RetryAfter != time.Minute {
		t.Fatalf("expected RetryAfter=1m, got %s", dec.RetryAfter)
	}
	if store.lastKey != "10.0.0.1:/ask" {
		t.Fatalf("expected scoped key, got %q", store.lastKey)
	}
}

func TestFixedWindow_PropagatesStoreError(t *testing.T) {
	fw := FixedWindow{Store: &fakeWindowStore{err: errors.New("boom")}, Max: 5}
	if _, err := fw.Allow(context.Background(), "k"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFixedWindow_NoStoreAllows(t *testing.T) {
	dec, err := FixedWindow{Max: 5}.Allow(context.Background(), "k")
	if err != nil || !dec.Allowed {
		t.Fatalf("expected allowed without store, got %+v %v", dec, err)
	}
}
