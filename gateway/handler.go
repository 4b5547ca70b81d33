package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"query-gateway/gateway/application"
	"query-gateway/gateway/domain"
	"query-gateway/middleware/ratelimit"
	rlinfra "query-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxBodyBytes limita o envelope aceito em /ask.
const MaxBodyBytes = 1 << 20

type Options struct {
	Service application.Service

	RateEnabled bool
	RateLimit   ratelimit.Options
	Concurrency ratelimit.ConcurrencyOptions

	// Health é consultado em /healthz (ex: ping no Redis). nil = sempre ok.
	Health func(ctx context.Context) error
	// Metrics é servido em /metrics quando não nil.
	Metrics http.Handler
	// DebugStats é servido em /debug/ratelimit quando não nil.
	DebugStats *rlinfra.MemoryStatsStore

	Logger *zap.Logger
}

// NewHandler monta o roteador HTTP do gateway.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	ask := http.Handler(askHandler{svc: opts.Service, logger: logger})
	if opts.Concurrency.ErrorWriter == nil {
		opts.Concurrency.ErrorWriter = WriteError
	}
	ask = ratelimit.ConcurrencyMiddleware(opts.Concurrency)(ask)
	if opts.RateEnabled {
		rl := opts.RateLimit
		if rl.ErrorWriter == nil {
			rl.ErrorWriter = writeRateLimited
		}
		if rl.Logger == nil {
			rl.Logger = logger
		}
		ask = ratelimit.Middleware(rl)(ask)
	}
	r.Method(http.MethodPost, "/ask", ask)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				WriteError(w, r, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.DebugStats != nil {
		r.Get("/debug/ratelimit", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, opts.DebugStats.Snapshot())
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

type askHandler struct {
	svc    application.Service
	logger *zap.Logger
}

func (h askHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", w.Header().Get(requestIDHeader)))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, r, logger, domain.InvalidRequest("body exceeds %d bytes", MaxBodyBytes))
			return
		}
		writeFailure(w, r, logger, domain.InvalidRequest("unreadable body"))
		return
	}

	res, err := h.svc.Ask(r.Context(), body)
	if err != nil {
		writeFailure(w, r, logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if res.FromCache {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

const requestIDHeader = "X-Request-ID"

// requestID propaga o X-Request-ID recebido ou gera um novo.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("request_id", w.Header().Get(requestIDHeader)),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
