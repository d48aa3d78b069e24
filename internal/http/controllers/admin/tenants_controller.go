package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
)

// TenantsController maneja /v2/projects/{projectId}/tenants[/{tenantId}].
type TenantsController struct {
	svc *auth.Service
}

// NewTenantsController crea el controller de tenants.
func NewTenantsController(svc *auth.Service) *TenantsController {
	return &TenantsController{svc: svc}
}

func projectCaller(r *http.Request) auth.Caller {
	return helpers.Caller(r, chi.URLParam(r, "projectId"), "")
}

// Create maneja POST /v2/projects/{projectId}/tenants
func (c *TenantsController) Create(w http.ResponseWriter, r *http.Request) {
	var req auth.TenantRequest
	if err := helpers.DecodeStrict(w, r, &req); err != nil {
		errors.WriteError(w, err)
		return
	}
	t, err := c.svc.CreateTenant(r.Context(), projectCaller(r), req)
	write(w, r, "tenants:create", t, err)
}

// List maneja GET /v2/projects/{projectId}/tenants?pageSize=&pageToken=
func (c *TenantsController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := 0
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errors.WriteError(w, errors.ErrInvalidJSON.WithDetail("Invalid value at 'page_size'"))
			return
		}
		pageSize = n
	}
	resp, err := c.svc.ListTenants(r.Context(), projectCaller(r), pageSize, q.Get("pageToken"))
	write(w, r, "tenants:list", resp, err)
}

// Get maneja GET /v2/projects/{projectId}/tenants/{tenantId}
func (c *TenantsController) Get(w http.ResponseWriter, r *http.Request) {
	t, err := c.svc.GetTenant(r.Context(), projectCaller(r), chi.URLParam(r, "tenantId"))
	write(w, r, "tenants:get", t, err)
}

// Patch maneja PATCH /v2/projects/{projectId}/tenants/{tenantId}?updateMask=
func (c *TenantsController) Patch(w http.ResponseWriter, r *http.Request) {
	patch, err := helpers.DecodeMap(w, r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	t, err := c.svc.UpdateTenant(r.Context(), projectCaller(r), chi.URLParam(r, "tenantId"), patch, r.URL.Query().Get("updateMask"))
	write(w, r, "tenants:patch", t, err)
}

// Delete maneja DELETE /v2/projects/{projectId}/tenants/{tenantId}
func (c *TenantsController) Delete(w http.ResponseWriter, r *http.Request) {
	err := c.svc.DeleteTenant(r.Context(), projectCaller(r), chi.URLParam(r, "tenantId"))
	write(w, r, "tenants:delete", struct{}{}, err)
}
