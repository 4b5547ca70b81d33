package infra

import (
	"context"
	"sync"
	"time"

	"query-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// TokenBucket é um limiter local (por processo) baseado em x/time/rate, usado
// como primeira barreira contra rajadas antes do limiter de janela no Redis.
// Mantém um rate.Limiter por chave e descarta chaves ociosas.
type TokenBucket struct {
	mu           sync.Mutex
	entries      map[domain.Key]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenBucketOption func(*TokenBucket)

func WithIdleTTL(d time.Duration) TokenBucketOption {
	return func(b *TokenBucket) { b.idleTTL = d }
}

func WithBucketCleanupEvery(d time.Duration) TokenBucketOption {
	return func(b *TokenBucket) { b.cleanupEvery = d }
}

func NewTokenBucket(rps float64, burst int, opts ...TokenBucketOption) *TokenBucket {
	b := &TokenBucket{
		entries:      make(map[domain.Key]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *TokenBucket) RPS() float64 { return float64(b.rps) }
func (b *TokenBucket) Burst() int   { return b.burst }

// Allow implementa domain.Limiter.
func (b *TokenBucket) Allow(_ context.Context, key domain.Key) (domain.Decision, error) {
	lim := b.limiter(key)
	r := lim.Reserve()
	if !r.OK() {
		return domain.Decision{Allowed: false}, nil
	}
	if d := r.Delay(); d > 0 {
		// não espera: devolve o token e informa quando tentar de novo
		r.Cancel()
		return domain.Decision{Allowed: false, RetryAfter: d}, nil
	}
	return domain.Decision{Allowed: true}, nil
}

func (b *TokenBucket) limiter(key domain.Key) *rate.Limiter {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if ent, ok := b.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(b.rps, b.burst)
	b.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (b *TokenBucket) Cleanup() {
	cutoff := time.Now().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	for k, ent := range b.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(b.entries, k)
		}
	}
}

// StartJanitor limpa chaves inativas periodicamente até o ctx encerrar.
func (b *TokenBucket) StartJanitor(ctx context.Context) {
	if b.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(b.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.Cleanup()
			}
		}
	}()
}
