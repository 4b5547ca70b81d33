package infra

import (
	"context"
	"sync"

	"query-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore guarda contadores de decisão em memória.
// Exposto em /debug/ratelimit quando RATE_STATS_BACKEND=memory.
//
// Não faz expiração e não é indicada para múltiplas instâncias.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	c := s.byRoute[route]
	c.add(ev.Allowed)
	s.byRoute[route] = c
	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Allowed)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

// Snapshot é a visão serializável dos contadores.
type Snapshot struct {
	Total   Counters            `json:"total"`
	ByRoute map[string]Counters `json:"by_route"`
	ByKey   map[string]Counters `json:"by_key,omitempty"`
}

func (s *MemoryStatsStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Total:   s.total,
		ByRoute: make(map[string]Counters, len(s.byRoute)),
	}
	for k, v := range s.byRoute {
		out.ByRoute[k] = v
	}
	if s.trackKeys {
		out.ByKey = make(map[string]Counters, len(s.byKey))
		for k, v := range s.byKey {
			out.ByKey[k] = v
		}
	}
	return out
}
