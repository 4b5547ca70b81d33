package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"query-gateway/middleware/ratelimit/application"
	"query-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

type KeyFunc func(r *http.Request) string

// ErrorWriter escreve a resposta de rejeição. O padrão é http.Error com o texto do status.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, detail string)

type Options struct {
	// Limiters são avaliados em ordem (ex: token bucket local e depois janela no Redis).
	Limiters            []domain.Limiter
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	ErrorWriter         ErrorWriter
	Logger              *zap.Logger
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func defaultErrorWriter(w http.ResponseWriter, _ *http.Request, status int, _ string) {
	http.Error(w, http.StatusText(status), status)
}

// Middleware é o portão de admissão: roda antes de qualquer trabalho do handler.
// Requisição negada recebe RejectStatus (429) e nunca chega ao próximo handler.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.ErrorWriter == nil {
		opts.ErrorWriter = defaultErrorWriter
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.Service{
		Limiters:   opts.Limiters,
		RetryAfter: opts.RetryAfter,
		Logger:     opts.Logger,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec := svc.Decide(r.Context(), domain.Key(key))
			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
				if err != nil {
					opts.Logger.Debug("rate limit stats not recorded", zap.Error(err))
				}
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if dec.Limit > 0 {
					w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
					w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				}
			}

			if !dec.Allowed {
				opts.Logger.Info("rate limit exceeded",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.Duration("retry_after", dec.RetryAfter),
				)
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				opts.ErrorWriter(w, r, opts.RejectStatus, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
