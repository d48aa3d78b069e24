package accounts

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
)

// AccountsController maneja POST .../accounts:{op} y projects/{id}:createSessionCookie.
type AccountsController struct {
	defaultProject string
	ops            map[string]handlerFunc
	createCookie   handlerFunc
}

// NewAccountsController arma la tabla de operaciones.
func NewAccountsController(svc *auth.Service, defaultProject string) *AccountsController {
	return &AccountsController{
		defaultProject: defaultProject,
		ops: map[string]handlerFunc{
			"signUp":                bind(svc.SignUp),
			"signInWithPassword":    bind(svc.SignInWithPassword),
			"sendVerificationCode":  bind(svc.SendVerificationCode),
			"signInWithPhoneNumber": bind(svc.SignInWithPhoneNumber),
			"signInWithIdp":         bind(svc.SignInWithIdp),
			"signInWithEmailLink":   bind(svc.SignInWithEmailLink),
			"signInWithCustomToken": bind(svc.SignInWithCustomToken),
			"sendOobCode":           bind(svc.SendOobCode),
			"resetPassword":         bind(svc.ResetPassword),
			"update":                bind(svc.SetAccountInfo),
			"lookup":                bind(svc.Lookup),
			"delete":                bind(svc.DeleteAccount),
			"createAuthUri":         bind(svc.CreateAuthURI),
			"batchCreate":           bind(svc.BatchCreate),
			"batchDelete":           bind(svc.BatchDelete),
			"query":                 bind(svc.QueryAccounts),
		},
		createCookie: bind(svc.CreateSessionCookie),
	}
}

// Dispatch maneja POST .../accounts:{op}
func (c *AccountsController) Dispatch(w http.ResponseWriter, r *http.Request) {
	c.Op(chi.URLParam(r, "op")).ServeHTTP(w, r)
}

// Op devuelve el handler de una operación fija; el router lo usa para
// colgar middlewares (rate limit) de operaciones puntuales.
func (c *AccountsController) Op(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := c.ops[name]
		if !ok {
			errors.WriteError(w, errors.ErrNotFound.WithDetail("unknown operation: accounts:"+name))
			return
		}
		projectID, tenantID := helpers.Scope(r, c.defaultProject)
		serve(w, r, "accounts:"+name, helpers.Caller(r, projectID, tenantID), h)
	}
}

// ProjectVerb maneja POST /v1/projects/{projectId}:{verb}. Solo existe
// createSessionCookie.
func (c *AccountsController) ProjectVerb(w http.ResponseWriter, r *http.Request) {
	_, verb, _ := strings.Cut(chi.URLParam(r, "projectId"), ":")
	if verb != "createSessionCookie" {
		errors.WriteError(w, errors.ErrNotFound)
		return
	}
	projectID, tenantID := helpers.Scope(r, c.defaultProject)
	serve(w, r, "createSessionCookie", helpers.Caller(r, projectID, tenantID), c.createCookie)
}
