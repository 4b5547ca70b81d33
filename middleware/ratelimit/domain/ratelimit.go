package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// Decision é o resultado de uma consulta ao limiter.
type Decision struct {
	Allowed bool

	// Limit e Remaining descrevem a janela atual. Zero quando o limiter
	// não trabalha com janelas (ex: token bucket).
	Limit     int
	Remaining int

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// Limiter decide se uma requisição identificada por key pode seguir agora.
//
// Cada chamada que retorna Allowed=true consome uma unidade da cota.
type Limiter interface {
	Allow(ctx context.Context, key Key) (Decision, error)
}

// WindowStore guarda contadores de janela fixa (tumbling window).
//
// Take deve ser atômico: na primeira requisição da janela cria o contador
// com count=1 e expiração = window; nas seguintes incrementa sem renovar a
// expiração. Quando o contador já atingiu max, não incrementa e retorna
// allowed=false.
// count é o valor do contador após a operação e ttl o tempo até a janela acabar.
type WindowStore interface {
	Take(ctx context.Context, key string, max int, window time.Duration) (allowed bool, count int, ttl time.Duration, err error)
}
