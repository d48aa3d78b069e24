package helpers

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/http/middlewares"
)

// ownerToken es la credencial de admin que aceptan el emulador y los Admin SDKs.
const ownerToken = "owner"

// IsPrivileged indica si el request trae credenciales de admin.
func IsPrivileged(r *http.Request) bool {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	return ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) == ownerToken
}

// Caller arma el auth.Caller del request para el scope del path.
func Caller(r *http.Request, projectID, tenantID string) auth.Caller {
	return auth.Caller{
		ProjectID:  projectID,
		TenantID:   tenantID,
		Privileged: IsPrivileged(r),
		IPAddress:  middlewares.ClientIP(r),
		UserAgent:  r.UserAgent(),
	}
}
