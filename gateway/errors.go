package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"query-gateway/gateway/domain"

	"go.uber.org/zap"
)

// ErrorEnvelope é o corpo das respostas de erro geradas pelo próprio gateway.
type ErrorEnvelope struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

const unavailableDetail = "Service unavailable"

// WriteError escreve o envelope de erro. Tem a assinatura de ratelimit.ErrorWriter.
func WriteError(w http.ResponseWriter, _ *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Status: status, Detail: detail})
}

// writeRateLimited é o ErrorWriter do rate limit em /ask.
func writeRateLimited(w http.ResponseWriter, r *http.Request, status int, _ string) {
	WriteError(w, r, status, domain.ErrRateLimited.Error())
}

// writeFailure traduz erros do pipeline em resposta.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var be *domain.BackendError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &be):
		ct := be.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(be.Status)
		_, _ = w.Write(be.Body)
	default:
		// a causa fica no log; o cliente só vê a mensagem genérica
		logger.Error("query failed", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, unavailableDetail)
	}
}
