package application

import (
	"context"
	"time"

	"query-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Os limiters são avaliados em ordem; o primeiro que negar encerra a avaliação.
// Falha de store é fail-open: a requisição segue e o erro é logado.
type Service struct {
	Limiters   []domain.Limiter
	RetryAfter time.Duration
	Logger     *zap.Logger
}

func (s Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	out := domain.Decision{Allowed: true}
	for _, lim := range s.Limiters {
		if lim == nil {
			continue
		}
		dec, err := lim.Allow(ctx, key)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("rate limit store error, admitting request",
					zap.String("key", string(key)),
					zap.Error(err),
				)
			}
			continue
		}
		if !dec.Allowed {
			if dec.RetryAfter <= 0 {
				dec.RetryAfter = s.RetryAfter
			}
			return dec
		}
		if dec.Limit > 0 {
			out.Limit = dec.Limit
			out.Remaining = dec.Remaining
		}
	}
	return out
}
