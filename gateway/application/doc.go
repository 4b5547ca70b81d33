// Package application contém o pipeline de consulta sem conhecer HTTP de entrada:
// Router (envelope -> URL + payload), ResponseCache (read-through sobre o backend)
// e Service, que compõe os dois.
package application
