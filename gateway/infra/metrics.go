package infra

import (
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrega as métricas do pipeline de consulta. Implementa
// application.CacheObserver. Um *Metrics nil é válido e não faz nada.
type Metrics struct {
	cacheRequests   *prometheus.CounterVec
	cacheErrors     *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cache_requests_total",
			Help: "Response cache lookups by backend path and result.",
		}, []string{"path", "result"}),
		cacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cache_errors_total",
			Help: "Cache store failures by operation.",
		}, []string{"op"}),
		backendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_backend_requests_total",
			Help: "Backend calls by path and status (0 = transport failure).",
		}, []string{"path", "status"}),
		backendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_backend_request_duration_seconds",
			Help:    "Backend call latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"path"}),
	}
}

func (m *Metrics) CacheHit(rawURL string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(pathOf(rawURL), "hit").Inc()
}

func (m *Metrics) CacheMiss(rawURL string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(pathOf(rawURL), "miss").Inc()
}

func (m *Metrics) CacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) observeBackend(rawURL string, status int, d time.Duration) {
	if m == nil {
		return
	}
	path := pathOf(rawURL)
	m.backendRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.backendDuration.WithLabelValues(path).Observe(d.Seconds())
}

// pathOf usa só o path como label para não levar host/query à cardinalidade.
func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}
