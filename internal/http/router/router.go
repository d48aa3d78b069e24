// Package router arma el árbol de rutas HTTP del emulador con chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/controllers/accounts"
	"github.com/dropDatabas3/authemu/internal/http/controllers/admin"
	"github.com/dropDatabas3/authemu/internal/http/controllers/emulator"
	"github.com/dropDatabas3/authemu/internal/http/controllers/health"
	mw "github.com/dropDatabas3/authemu/internal/http/middlewares"
	"github.com/dropDatabas3/authemu/internal/metrics"
	"github.com/dropDatabas3/authemu/internal/rate"
)

const (
	identityV1 = "/identitytoolkit.googleapis.com/v1"
	identityV2 = "/identitytoolkit.googleapis.com/v2"
	emulatorV1 = "/emulator/v1/projects/{projectId}"
)

// Deps son las dependencias del router.
type Deps struct {
	Service        *auth.Service
	DefaultProject string
	CORSOrigins    []string

	// Limiters opcionales para envío de SMS y OOB codes.
	SMSLimiter rate.Limiter
	OobLimiter rate.Limiter

	// Metrics es el handler de /metrics; nil lo deshabilita.
	Metrics http.Handler
	Version string
}

// New devuelve el handler raíz con middlewares y rutas.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithCORS(d.CORSOrigins),
	)
	if d.Metrics != nil {
		r.Use(metrics.WithMetrics)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { errors.WriteError(w, errors.ErrNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { errors.WriteError(w, errors.ErrMethodNotAllowed) })

	ac := accounts.NewControllers(d.Service, d.DefaultProject)
	ad := admin.NewControllers(d.Service)
	em := emulator.NewEmulatorController(d.Service)
	act := emulator.NewActionController(d.Service)
	hc := health.NewHealthController(d.Service.Store(), clockwork.NewRealClock(), d.Version)

	r.Get("/healthz", hc.Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/emulator/action", act.Action)

	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())
		smsLimit := mw.WithRateLimit(d.SMSLimiter, "sms")
		oobLimit := mw.WithRateLimit(d.OobLimiter, "oob")

		// ─── accounts:{op} (sin proyecto, por proyecto y por tenant) ───
		for _, prefix := range []string{
			identityV1,
			identityV1 + "/projects/{projectId}",
			identityV1 + "/projects/{projectId}/tenants/{tenantId}",
		} {
			r.With(smsLimit).Post(prefix+"/accounts:sendVerificationCode", ac.Accounts.Op("sendVerificationCode"))
			r.With(oobLimit).Post(prefix+"/accounts:sendOobCode", ac.Accounts.Op("sendOobCode"))
			r.Post(prefix+"/accounts:{op}", ac.Accounts.Dispatch)
		}
		r.Post(identityV1+"/projects/{projectId}", ac.Accounts.ProjectVerb)

		// ─── MFA ───
		r.With(smsLimit).Post(identityV2+"/accounts/mfaEnrollment:start", ac.Mfa.Op(accounts.GroupEnrollment, "start"))
		r.With(smsLimit).Post(identityV2+"/accounts/mfaSignIn:start", ac.Mfa.Op(accounts.GroupSignIn, "start"))
		r.Post(identityV2+"/accounts/mfaEnrollment:{op}", ac.Mfa.Enrollment)
		r.Post(identityV2+"/accounts/mfaSignIn:{op}", ac.Mfa.SignIn)

		// ─── Refresh ───
		r.Post("/securetoken.googleapis.com/v1/token", ac.Token.Token)

		// ─── Tenants y config (admin) ───
		r.Route(identityV2+"/projects/{projectId}", func(r chi.Router) {
			r.Get("/config", ad.Config.Get)
			r.Patch("/config", ad.Config.Patch)
			r.Post("/tenants", ad.Tenants.Create)
			r.Get("/tenants", ad.Tenants.List)
			r.Get("/tenants/{tenantId}", ad.Tenants.Get)
			r.Patch("/tenants/{tenantId}", ad.Tenants.Patch)
			r.Delete("/tenants/{tenantId}", ad.Tenants.Delete)
		})

		// ─── Emulator-only ───
		r.Get(emulatorV1+"/config", em.GetConfig)
		r.Patch(emulatorV1+"/config", em.PatchConfig)
		for _, prefix := range []string{emulatorV1, emulatorV1 + "/tenants/{tenantId}"} {
			r.Delete(prefix+"/accounts", em.DeleteAccounts)
			r.Get(prefix+"/oobCodes", em.OobCodes)
			r.Get(prefix+"/verificationCodes", em.VerificationCodes)
		}
	})

	return r
}
