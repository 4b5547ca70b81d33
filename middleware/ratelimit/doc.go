// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência
// usados na frente do endpoint /ask do gateway.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, janela fixa, acquire/timeout)
//   - infra: implementações concretas (Redis, memória, token bucket, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 (rate limit) ou 503 (concorrência) sem tocar cache/backend
//  4. Se permitido, chama o próximo handler
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_LIMIT, RATE_WINDOW, RATE_STORE, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
