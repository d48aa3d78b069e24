package accounts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
)

// MfaController maneja /v2/accounts/mfaEnrollment:{op} y mfaSignIn:{op}.
type MfaController struct {
	defaultProject string
	enrollment     map[string]handlerFunc
	signIn         map[string]handlerFunc
}

// NewMfaController crea el controller de MFA.
func NewMfaController(svc *auth.Service, defaultProject string) *MfaController {
	return &MfaController{
		defaultProject: defaultProject,
		enrollment: map[string]handlerFunc{
			"start":    bind(svc.MfaEnrollmentStart),
			"finalize": bind(svc.MfaEnrollmentFinalize),
			"withdraw": bind(svc.MfaEnrollmentWithdraw),
		},
		signIn: map[string]handlerFunc{
			"start":    bind(svc.MfaSignInStart),
			"finalize": bind(svc.MfaSignInFinalize),
		},
	}
}

// Enrollment maneja POST /v2/accounts/mfaEnrollment:{op}
func (c *MfaController) Enrollment(w http.ResponseWriter, r *http.Request) {
	c.Op(GroupEnrollment, chi.URLParam(r, "op")).ServeHTTP(w, r)
}

// SignIn maneja POST /v2/accounts/mfaSignIn:{op}
func (c *MfaController) SignIn(w http.ResponseWriter, r *http.Request) {
	c.Op(GroupSignIn, chi.URLParam(r, "op")).ServeHTTP(w, r)
}

// Grupos de operaciones MFA.
const (
	GroupEnrollment = "mfaEnrollment"
	GroupSignIn     = "mfaSignIn"
)

// Op devuelve el handler de una operación fija del grupo.
func (c *MfaController) Op(group, name string) http.HandlerFunc {
	ops := c.enrollment
	if group == GroupSignIn {
		ops = c.signIn
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := ops[name]
		if !ok {
			errors.WriteError(w, errors.ErrNotFound.WithDetail("unknown operation: "+group+":"+name))
			return
		}
		projectID, tenantID := helpers.Scope(r, c.defaultProject)
		serve(w, r, group+":"+name, helpers.Caller(r, projectID, tenantID), h)
	}
}
