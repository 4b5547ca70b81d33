package application

import (
	"context"

	"query-gateway/gateway/domain"
)

// Service é o pipeline de /ask depois da admissão: Router -> ResponseCache -> Backend.
type Service struct {
	Router *Router
	Cache  *ResponseCache
}

// Ask classifica o envelope e encaminha o sub-payload. Envelope inválido falha
// antes de qualquer leitura de cache ou chamada ao backend.
func (s Service) Ask(ctx context.Context, body []byte) (domain.Response, error) {
	url, payload, err := s.Router.Route(body)
	if err != nil {
		return domain.Response{}, err
	}
	return s.Cache.Forward(ctx, url, payload)
}
