// Package middlewares contiene los decoradores HTTP del emulador: request ID,
// logging, recover, CORS, no-store y rate limit.
package middlewares

import "net/http"

// Middleware es un decorador de http.Handler; chi los acepta en Use y With.
type Middleware func(http.Handler) http.Handler
