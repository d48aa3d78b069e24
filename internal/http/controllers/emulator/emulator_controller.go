// Package emulator contiene los endpoints propios del emulador: config,
// wipe, listado de códigos pendientes y el handler de links OOB.
package emulator

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// EmulatorController maneja /emulator/v1/projects/{projectId}/...
type EmulatorController struct {
	svc *auth.Service
}

// NewEmulatorController crea el controller.
func NewEmulatorController(svc *auth.Service) *EmulatorController {
	return &EmulatorController{svc: svc}
}

func caller(r *http.Request) auth.Caller {
	return helpers.Caller(r, chi.URLParam(r, "projectId"), chi.URLParam(r, "tenantId"))
}

func write(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		logger.From(r.Context()).Debug("emulator operation rejected",
			logger.Layer("controller"), logger.Code(errors.FromError(err).Code))
		errors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, v)
}

// GetConfig maneja GET /emulator/v1/projects/{projectId}/config
func (c *EmulatorController) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := c.svc.GetEmulatorConfig(r.Context(), caller(r))
	write(w, r, cfg, err)
}

// PatchConfig maneja PATCH /emulator/v1/projects/{projectId}/config; solo
// cambian los campos presentes.
func (c *EmulatorController) PatchConfig(w http.ResponseWriter, r *http.Request) {
	patch, err := helpers.DecodeMap(w, r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	cfg, err := c.svc.UpdateEmulatorConfig(r.Context(), caller(r), patch)
	write(w, r, cfg, err)
}

// DeleteAccounts maneja DELETE .../accounts
func (c *EmulatorController) DeleteAccounts(w http.ResponseWriter, r *http.Request) {
	err := c.svc.WipeAccounts(r.Context(), caller(r))
	write(w, r, struct{}{}, err)
}

// OobCodes maneja GET .../oobCodes
func (c *EmulatorController) OobCodes(w http.ResponseWriter, r *http.Request) {
	resp, err := c.svc.ListOobCodes(r.Context(), caller(r))
	write(w, r, resp, err)
}

// VerificationCodes maneja GET .../verificationCodes
func (c *EmulatorController) VerificationCodes(w http.ResponseWriter, r *http.Request) {
	resp, err := c.svc.ListVerificationCodes(r.Context(), caller(r))
	write(w, r, resp, err)
}
