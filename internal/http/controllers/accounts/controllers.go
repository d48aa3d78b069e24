// Package accounts contiene los controllers de la API pública de Identity
// Toolkit (accounts:*, mfaEnrollment:*, mfaSignIn:*) y de securetoken.
package accounts

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// Controllers agrupa los controllers del dominio accounts.
type Controllers struct {
	Accounts *AccountsController
	Mfa      *MfaController
	Token    *TokenController
}

// NewControllers crea el agregador. defaultProject resuelve las rutas sin proyecto.
func NewControllers(svc *auth.Service, defaultProject string) *Controllers {
	return &Controllers{
		Accounts: NewAccountsController(svc, defaultProject),
		Mfa:      NewMfaController(svc, defaultProject),
		Token:    NewTokenController(svc),
	}
}

// handlerFunc es una operación ya ligada a su request tipado.
type handlerFunc func(ctx context.Context, c auth.Caller, w http.ResponseWriter, r *http.Request) (any, error)

// bind decodifica el body estricto en Req y llama a la operación.
func bind[Req any, Resp any](fn func(context.Context, auth.Caller, Req) (Resp, error)) handlerFunc {
	return func(ctx context.Context, c auth.Caller, w http.ResponseWriter, r *http.Request) (any, error) {
		var req Req
		if err := helpers.DecodeStrict(w, r, &req); err != nil {
			return nil, err
		}
		return fn(ctx, c, req)
	}
}

// serve corre h y escribe la respuesta o el error.
func serve(w http.ResponseWriter, r *http.Request, op string, c auth.Caller, h handlerFunc) {
	ctx := logger.ToContext(r.Context(), logger.From(r.Context()).With(
		logger.Layer("controller"),
		logger.Op(op),
		logger.ProjectID(c.ProjectID),
	))

	resp, err := h(ctx, c, w, r)
	if err != nil {
		appErr := errors.FromError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.From(ctx).Error("operation failed", logger.Err(err))
		} else {
			logger.From(ctx).Debug("operation rejected", logger.Code(appErr.Code))
		}
		errors.WriteError(w, appErr)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
