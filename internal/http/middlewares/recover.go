package middlewares

import (
	"fmt"
	"net/http"

	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// WithRecover convierte un panic en un 500 INTERNAL_ERROR con el envelope usual.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.From(r.Context()).Error("panic recovered",
					logger.Layer("http"),
					logger.String("panic", fmt.Sprint(rec)),
				)
				errors.WriteError(w, errors.ErrInternal)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
