package ratelimit

import (
	"net/http"
	"time"

	"query-gateway/middleware/ratelimit/application"
	"query-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	ErrorWriter    ErrorWriter
}

// ConcurrencyMiddleware limita requisições em voo. Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.ErrorWriter == nil {
		opts.ErrorWriter = defaultErrorWriter
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.ErrorWriter(w, r, opts.RejectStatus, "too many concurrent requests")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
