// Package gateway é o adapter HTTP do gateway de consultas.
//
// POST /ask passa por: rate limit (429) -> limite de concorrência (503) ->
// Router (400) -> ResponseCache -> BackendClient. Toda falha vira resposta HTTP
// aqui; erros do backend passam com o status e o corpo originais, falhas de
// transporte viram 500 genérico.
package gateway
