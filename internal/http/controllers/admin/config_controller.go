package admin

import (
	"net/http"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
)

// ConfigController maneja GET|PATCH /v2/projects/{projectId}/config.
type ConfigController struct {
	svc *auth.Service
}

// NewConfigController crea el controller de config.
func NewConfigController(svc *auth.Service) *ConfigController {
	return &ConfigController{svc: svc}
}

// Get devuelve la config del proyecto.
func (c *ConfigController) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := c.svc.GetConfig(r.Context(), projectCaller(r))
	write(w, r, "config:get", cfg, err)
}

// Patch aplica el body según updateMask; sin máscara el body se mergea sobre los defaults.
func (c *ConfigController) Patch(w http.ResponseWriter, r *http.Request) {
	patch, err := helpers.DecodeMap(w, r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	cfg, err := c.svc.UpdateConfig(r.Context(), projectCaller(r), patch, r.URL.Query().Get("updateMask"))
	write(w, r, "config:patch", cfg, err)
}
