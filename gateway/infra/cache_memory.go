package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// entry guarda o valor com o instante de expiração próprio.
type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCacheStore é um domain.CacheStore em memória (W-TinyLFU via otter).
// Não é compartilhado entre instâncias; serve para desenvolvimento e testes.
type MemoryCacheStore struct {
	cache *otter.Cache[string, entry]
	now   func() time.Time
}

type MemoryCacheOption func(*MemoryCacheStore)

// WithCacheClock troca o relógio usado para expirar entradas.
func WithCacheClock(now func() time.Time) MemoryCacheOption {
	return func(m *MemoryCacheStore) { m.now = now }
}

// NewMemoryCacheStore cria o cache com capacidade maxSize. maxTTL é o teto de
// vida de qualquer entrada dentro do otter; a expiração por entrada é checada no Get.
func NewMemoryCacheStore(maxSize int, maxTTL time.Duration, opts ...MemoryCacheOption) (*MemoryCacheStore, error) {
	c, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](maxTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	m := &MemoryCacheStore{cache: c, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *MemoryCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.cache.Invalidate(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

func (m *MemoryCacheStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.cache.Set(key, entry{
		data:      val,
		expiresAt: m.now().Add(ttl),
	})
	return nil
}
