package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryWindowStore é um domain.WindowStore local ao processo, com limpeza
// periódica de janelas expiradas.
//
// Útil para testes, desenvolvimento e instância única. Não é compartilhado
// entre réplicas do gateway.
type MemoryWindowStore struct {
	mu           sync.Mutex
	windows      map[string]*window
	now          func() time.Time
	cleanupEvery time.Duration
}

type window struct {
	count     int
	expiresAt time.Time
}

type MemoryWindowOption func(*MemoryWindowStore)

// WithClock troca o relógio (testes usam relógio fake).
func WithClock(now func() time.Time) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.now = now }
}

func WithCleanupEvery(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

func NewMemoryWindowStore(opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows:      make(map[string]*window),
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryWindowStore) Take(_ context.Context, key string, max int, d time.Duration) (bool, int, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(d)}
		s.windows[key] = w
	}
	ttl := w.expiresAt.Sub(now)
	if w.count >= max {
		return false, w.count, ttl, nil
	}
	w.count++
	return true, w.count, ttl, nil
}

// Len retorna quantas janelas estão em memória (inclui expiradas ainda não limpas).
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryWindowStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove janelas expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
