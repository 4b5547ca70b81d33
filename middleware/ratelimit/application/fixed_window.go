package application

import (
	"context"
	"time"

	"query-gateway/middleware/ratelimit/domain"
)

// FixedWindow implementa domain.Limiter com janela fixa (tumbling) de Window,
// ancorada na primeira requisição da janela, admitindo no máximo Max requisições.
//
// Estados por chave: aberto (count < Max) e fechado (count == Max) até a janela expirar.
type FixedWindow struct {
	Store  domain.WindowStore
	Max    int
	Window time.Duration
	// Scope separa contadores de rotas/limiters diferentes para a mesma identidade.
	Scope string
}

func (f FixedWindow) Allow(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if f.Store == nil || f.Max <= 0 {
		return domain.Decision{Allowed: true}, nil
	}
	window := f.Window
	if window <= 0 {
		window = time.Minute
	}

	allowed, count, ttl, err := f.Store.Take(ctx, f.storeKey(key), f.Max, window)
	if err != nil {
		return domain.Decision{}, err
	}

	remaining := f.Max - count
	if remaining < 0 {
		remaining = 0
	}
	dec := domain.Decision{Allowed: allowed, Limit: f.Max, Remaining: remaining}
	if !allowed {
		dec.RetryAfter = ttl
	}
	return dec, nil
}

func (f FixedWindow) storeKey(key domain.Key) string {
	if f.Scope == "" {
		return string(key)
	}
	return string(key) + ":" + f.Scope
}
