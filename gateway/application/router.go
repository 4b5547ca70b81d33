package application

import (
	"strings"

	"query-gateway/gateway/domain"

	"github.com/tidwall/gjson"
)

// Router escolhe o backend a partir do envelope da requisição.
//
// É puro e O(número de rotas): só lê o corpo, sem efeitos colaterais.
type Router struct {
	baseURL string
	routes  []domain.Route
	tags    string
}

// NewRouter monta um Router sobre baseURL. Sem rotas, usa domain.DefaultRoutes.
func NewRouter(baseURL string, routes ...domain.Route) *Router {
	if len(routes) == 0 {
		routes = domain.DefaultRoutes
	}
	tags := make([]string, len(routes))
	for i, rt := range routes {
		tags[i] = rt.Tag
	}
	return &Router{
		baseURL: strings.TrimRight(baseURL, "/"),
		routes:  append([]domain.Route(nil), routes...),
		tags:    strings.Join(tags, ", "),
	}
}

// Route retorna a URL alvo e o sub-payload da tag encontrada, byte a byte como veio.
// Envelope que não é um objeto JSON, sem tag reconhecida ou com mais de uma tag
// reconhecida falha com ErrInvalidRequest.
func (r *Router) Route(body []byte) (string, []byte, error) {
	if !gjson.ValidBytes(body) {
		return "", nil, domain.InvalidRequest("body is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return "", nil, domain.InvalidRequest("body must be a JSON object")
	}

	var (
		match   *domain.Route
		payload string
	)
	for i := range r.routes {
		v := doc.Get(r.routes[i].Tag)
		if !v.Exists() {
			continue
		}
		if match != nil {
			return "", nil, domain.InvalidRequest("only one of %s may be present", r.tags)
		}
		match = &r.routes[i]
		payload = v.Raw
	}
	if match == nil {
		return "", nil, domain.InvalidRequest("body must contain one of %s", r.tags)
	}
	return r.baseURL + match.Path, []byte(payload), nil
}
