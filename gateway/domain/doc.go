// Package domain define os tipos do pipeline de consulta do gateway: rotas,
// contratos de cache e backend e a taxonomia de erros.
//
// Não depende de net/http nem de Redis.
package domain
