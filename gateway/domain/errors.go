package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest: corpo sem nenhuma (ou com mais de uma) chave de consulta reconhecida.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRateLimited: admissão negada pelo limiter.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrServiceUnavailable: falha de transporte até o backend (conexão, timeout, DNS,
	// resposta malformada). A causa é logada e nunca exposta ao cliente.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// BackendError é uma resposta não-2xx do backend. Status e Body são repassados
// ao cliente como vieram.
type BackendError struct {
	Status      int
	Body        []byte
	ContentType string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Body)
}

// InvalidRequest cria um erro que satisfaz errors.Is(err, ErrInvalidRequest).
func InvalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Unavailable embrulha uma falha de transporte em ErrServiceUnavailable.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}
