package helpers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Scope resuelve proyecto y tenant desde el path. Las rutas sin proyecto
// usan defaultProject. "demo:createSessionCookie" se queda con "demo".
func Scope(r *http.Request, defaultProject string) (projectID, tenantID string) {
	projectID, _, _ = strings.Cut(chi.URLParam(r, "projectId"), ":")
	if projectID == "" {
		projectID = defaultProject
	}
	return projectID, chi.URLParam(r, "tenantId")
}
