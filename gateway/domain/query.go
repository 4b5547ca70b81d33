package domain

import (
	"context"
	"time"
)

// Route associa uma tag de consulta do envelope a um path do backend.
// Rotas são fixas na inicialização e compartilhadas somente leitura.
type Route struct {
	Tag  string
	Path string
}

// DefaultRoutes segue a ordem de precedência das tags.
var DefaultRoutes = []Route{
	{Tag: "financials", Path: "/query/financials"},
	{Tag: "news", Path: "/query/news"},
}

// Response é o corpo bruto devolvido ao cliente, idêntico ao que o backend enviou,
// venha do backend ou do cache.
type Response struct {
	Body      []byte
	FromCache bool
}

// CacheStore é o armazenamento chave/valor compartilhado entre instâncias.
// Get retorna ok=false para chave ausente ou expirada.
type CacheStore interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Backend faz uma única chamada POST ao serviço de consulta.
// Retorna status e corpo quando o status é 2xx. Não-2xx vira *BackendError;
// falha de transporte satisfaz errors.Is(err, ErrServiceUnavailable).
type Backend interface {
	Call(ctx context.Context, url string, payload []byte) (status int, body []byte, err error)
}
