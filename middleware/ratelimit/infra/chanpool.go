package infra

import (
	"context"
	"sync"

	"query-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	slots chan struct{}
}

// NewChanPool cria um SlotPool de capacidade max sobre um channel bufferizado.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{slots: make(chan struct{}, max)}
}

// Acquire ocupa uma vaga. O release devolvido é idempotente.
func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.slots <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.slots }) }, true
	case <-ctx.Done():
		return nil, false
	}
}
