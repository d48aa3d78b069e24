// Package admin contiene los controllers v2 de tenants y config de proyecto.
// Todos requieren credenciales de admin.
package admin

import (
	"net/http"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// Controllers agrupa los controllers admin.
type Controllers struct {
	Tenants *TenantsController
	Config  *ConfigController
}

// NewControllers crea el agregador.
func NewControllers(svc *auth.Service) *Controllers {
	return &Controllers{
		Tenants: NewTenantsController(svc),
		Config:  NewConfigController(svc),
	}
}

// write centraliza la respuesta de los controllers admin.
func write(w http.ResponseWriter, r *http.Request, op string, v any, err error) {
	if err != nil {
		logger.From(r.Context()).Debug("admin operation rejected",
			logger.Layer("controller"), logger.Op(op), logger.Code(errors.FromError(err).Code))
		errors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, v)
}
