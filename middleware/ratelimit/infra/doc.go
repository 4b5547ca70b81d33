// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - RedisWindowStore: janela fixa atômica via script Lua (go-redis)
//   - MemoryWindowStore: janela fixa em memória, com relógio injetável
//   - TokenBucket: limiter local por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - *StatsStore: estatísticas de decisão em memória, Redis ou Prometheus
package infra
