package application

import (
	"context"
	"time"

	"query-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService controla quantas requisições /ask ficam em voo ao mesmo tempo.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta ocupar uma vaga do pool.
// Com AcquireTimeout <= 0 espera até o ctx da requisição encerrar; caso contrário
// desiste após AcquireTimeout. Sem pool configurado, sempre libera.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	return s.Pool.Acquire(ctx)
}
