package infra

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryWindowStore_SixthRequestDeniedThenResets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryWindowStore(WithClock(clock.Now))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok, count, _, err := s.Take(ctx, "10.0.0.1", 5, time.Minute)
		if err != nil || !ok || count != i {
			t.Fatalf("request %d: ok=%v count=%d err=%v", i, ok, count, err)
		}
		clock.Advance(time.Second)
	}

	ok, count, ttl, _ := s.Take(ctx, "10.0.0.1", 5, time.Minute)
	if ok {
		t.Fatalf("expected 6th request to be denied")
	}
	if count != 5 {
		t.Fatalf("expected denied request not to increment, got %d", count)
	}
	// janela ancorada na 1ª requisição: 60s - 5s já passados
	if ttl != 55*time.Second {
		t.Fatalf("expected ttl=55s, got %s", ttl)
	}

	clock.Advance(55 * time.Second)
	ok, count, ttl, _ = s.Take(ctx, "10.0.0.1", 5, time.Minute)
	if !ok || count != 1 || ttl != time.Minute {
		t.Fatalf("expected fresh window, got ok=%v count=%d ttl=%s", ok, count, ttl)
	}
}

func TestMemoryWindowStore_KeysAreIndependent(t *testing.T) {
	s := NewMemoryWindowStore()
	ctx := context.Background()

	if ok, _, _, _ := s.Take(ctx, "a", 1, time.Minute); !ok {
		t.Fatalf("expected a to be allowed")
	}
	if ok, _, _, _ := s.Take(ctx, "b", 1, time.Minute); !ok {
		t.Fatalf("expected b to be allowed")
	}
	if ok, _, _, _ := s.Take(ctx, "a", 1, time.Minute); ok {
		t.Fatalf("expected second a to be denied")
	}
}

func TestMemoryWindowStore_CleanupRemovesExpiredWindows(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := NewMemoryWindowStore(WithClock(clock.Now), WithCleanupEvery(0))
	_, _, _, _ = s.Take(context.Background(), "k", 5, time.Minute)

	s.Cleanup()
	if s.Len() != 1 {
		t.Fatalf("expected live window to survive cleanup")
	}

	clock.Advance(time.Minute)
	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected expired window to be removed, got %d", s.Len())
	}
}
