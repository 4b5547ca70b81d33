// Package infra liga o pipeline de consulta ao mundo externo: cliente HTTP do
// backend, stores de cache (Redis e memória) e métricas Prometheus.
package infra
