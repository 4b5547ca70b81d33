package application

import (
	"context"
	"net/http"
	"strings"
	"time"

	"query-gateway/gateway/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL   = 60 * time.Second
	defaultBackendCap = 10 * time.Second
)

// CacheKey compõe a chave do cache: "<url>-<método em minúsculas>".
func CacheKey(url, method string) string {
	return url + "-" + strings.ToLower(method)
}

// CacheObserver recebe eventos do cache (métricas). Todos os métodos podem ser no-op.
type CacheObserver interface {
	CacheHit(url string)
	CacheMiss(url string)
	CacheError(op string)
}

// ResponseCache é um cache read-through na frente do backend.
//
// Por requisição: exatamente uma leitura no store, no máximo uma escrita e no
// máximo uma chamada ao backend (nenhuma em hit). Só respostas 2xx são gravadas.
// Hits podem servir dado desatualizado por até TTL.
type ResponseCache struct {
	store    domain.CacheStore
	backend  domain.Backend
	ttl      time.Duration
	method   string
	logger   *zap.Logger
	observer CacheObserver

	// single-flight: misses concorrentes da mesma chave dividem a chamada ao backend
	group        *singleflight.Group
	sharedBudget time.Duration
}

type CacheOption func(*ResponseCache)

func WithTTL(d time.Duration) CacheOption {
	return func(c *ResponseCache) { c.ttl = d }
}

func WithLogger(l *zap.Logger) CacheOption {
	return func(c *ResponseCache) { c.logger = l }
}

func WithObserver(o CacheObserver) CacheOption {
	return func(c *ResponseCache) { c.observer = o }
}

// WithSingleFlight liga a deduplicação de misses. A chamada compartilhada não é
// cancelada quando um cliente desiste; budget limita seu tempo total.
func WithSingleFlight(enabled bool, budget time.Duration) CacheOption {
	return func(c *ResponseCache) {
		if !enabled {
			c.group = nil
			return
		}
		c.group = &singleflight.Group{}
		if budget > 0 {
			c.sharedBudget = budget
		}
	}
}

func NewResponseCache(store domain.CacheStore, backend domain.Backend, opts ...CacheOption) *ResponseCache {
	c := &ResponseCache{
		store:        store,
		backend:      backend,
		ttl:          DefaultCacheTTL,
		method:       http.MethodPost,
		logger:       zap.NewNop(),
		observer:     nopObserver{},
		sharedBudget: defaultBackendCap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Forward devolve o corpo cacheado para url ou chama o backend e popula o cache.
func (c *ResponseCache) Forward(ctx context.Context, url string, payload []byte) (domain.Response, error) {
	key := CacheKey(url, c.method)

	if c.store != nil {
		body, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			// store fora do ar não derruba a consulta: segue como miss
			c.observer.CacheError("get")
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			c.observer.CacheHit(url)
			c.logger.Debug("returning cached response", zap.String("key", key))
			return domain.Response{Body: body, FromCache: true}, nil
		}
	}
	c.observer.CacheMiss(url)

	if c.group == nil {
		body, err := c.fetch(ctx, key, url, payload)
		if err != nil {
			return domain.Response{}, err
		}
		return domain.Response{Body: body}, nil
	}

	// O payload não faz parte da chave, então também não faz parte da chave do grupo.
	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sharedBudget)
		defer cancel()
		return c.fetch(shared, key, url, payload)
	})
	select {
	case <-ctx.Done():
		return domain.Response{}, domain.Unavailable(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.Response{}, res.Err
		}
		return domain.Response{Body: res.Val.([]byte)}, nil
	}
}

func (c *ResponseCache) fetch(ctx context.Context, key, url string, payload []byte) ([]byte, error) {
	status, body, err := c.backend.Call(ctx, url, payload)
	if err != nil {
		return nil, err
	}
	if c.store != nil && status >= 200 && status < 300 {
		if err := c.store.Set(ctx, key, body, c.ttl); err != nil {
			c.observer.CacheError("set")
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return body, nil
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)   {}
func (nopObserver) CacheMiss(string)  {}
func (nopObserver) CacheError(string) {}
