package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/blocking"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/rate"
	"github.com/dropDatabas3/authemu/internal/store"
)

const v1 = "/identitytoolkit.googleapis.com/v1"

type env struct {
	t   *testing.T
	svc *auth.Service
	h   http.Handler
}

func newEnv(t *testing.T, mutate ...func(*Deps)) *env {
	t.Helper()
	logger.Init(logger.Config{Env: "test"})
	st := store.New(store.Options{TenantAutoCreate: true})
	svc := auth.NewService(auth.Deps{Store: st, Blocking: &blocking.FakeInvoker{}})
	d := Deps{Service: svc, DefaultProject: "demo", CORSOrigins: []string{"*"}}
	for _, m := range mutate {
		m(&d)
	}
	return &env{t: t, svc: svc, h: New(d)}
}

func (e *env) do(method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := decode(t, rec)["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return e["message"].(string)
}

var owner = []string{"Authorization", "Bearer owner"}

func TestSignUpAndSignIn(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":"alice@example.com","password":"secret1","returnSecureToken":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode(t, rec)
	require.NotEmpty(t, up["idToken"])
	require.NotEmpty(t, up["localId"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	// la ruta con proyecto ve las mismas cuentas que la ruta sin proyecto
	rec = e.do(http.MethodPost, v1+"/projects/demo/accounts:signInWithPassword", `{"email":"ALICE@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, up["localId"], decode(t, rec)["localId"])

	rec = e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":"alice@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "EMAIL_EXISTS", body["message"])
	assert.EqualValues(t, 400, body["code"])
	item := body["errors"].([]any)[0].(map[string]any)
	assert.Equal(t, "invalid", item["reason"])
	assert.Equal(t, "global", item["domain"])
}

func TestStrictDecoding(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":"a@example.com","bogus":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `INVALID_JSON_PAYLOAD : Invalid JSON payload received. Unknown name "bogus": Cannot find field.`, errMessage(t, rec))

	rec = e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(errMessage(t, rec), "INVALID_JSON_PAYLOAD"))
}

func TestRoutingErrors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, v1+"/accounts:nope", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errMessage(t, rec), "accounts:nope")

	rec = e.do(http.MethodGet, "/does/not/exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errMessage(t, rec))

	rec = e.do(http.MethodPost, v1+"/projects/demo:somethingElse", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantPathMismatch(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, v1+"/projects/demo/tenants/t-1/accounts:signUp", `{"tenantId":"t-2"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TENANT_ID_MISMATCH", errMessage(t, rec))

	rec = e.do(http.MethodPost, v1+"/projects/demo/tenants/t-1/accounts:signUp", `{"email":"t@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// otro tenant no ve la cuenta
	rec = e.do(http.MethodPost, v1+"/projects/demo/tenants/t-2/accounts:signInWithPassword", `{"email":"t@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMAIL_NOT_FOUND", errMessage(t, rec))
}

func TestRefreshTokenForm(t *testing.T) {
	e := newEnv(t)
	up := decode(t, e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":"bob@example.com","password":"secret1"}`))

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {up["refreshToken"].(string)}}
	req := httptest.NewRequest(http.MethodPost, "/securetoken.googleapis.com/v1/token?key=fake", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, up["localId"], out["user_id"])
	assert.Equal(t, "demo", out["project_id"])
	assert.NotEmpty(t, out["id_token"])

	rec = e.do(http.MethodPost, "/securetoken.googleapis.com/v1/token", `{"grant_type":"password"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_GRANT_TYPE", errMessage(t, rec))
}

func TestSessionCookie(t *testing.T) {
	e := newEnv(t)
	up := decode(t, e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":"s@example.com","password":"secret1"}`))
	body := `{"idToken":"` + up["idToken"].(string) + `","validDuration":"3600"}`

	rec := e.do(http.MethodPost, v1+"/projects/demo:createSessionCookie", body)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INSUFFICIENT_PERMISSION", errMessage(t, rec))

	rec = e.do(http.MethodPost, v1+"/projects/demo:createSessionCookie", body, owner...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["sessionCookie"])
}

func TestTenantsRequireOwner(t *testing.T) {
	e := newEnv(t)
	const base = "/identitytoolkit.googleapis.com/v2/projects/demo/tenants"

	rec := e.do(http.MethodPost, base, `{"displayName":"Acme"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodPost, base, `{"displayName":"Acme","allowPasswordSignup":true}`, owner...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id, _ := created["tenantId"].(string)
	require.NotEmpty(t, id)

	rec = e.do(http.MethodPatch, base+"/"+id+"?updateMask=displayName", `{"displayName":"Acme 2"}`, owner...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme 2", decode(t, rec)["displayName"])

	rec = e.do(http.MethodGet, base+"?pageSize=10", "", owner...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["tenants"], 1)

	rec = e.do(http.MethodDelete, base+"/"+id, "", owner...)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(http.MethodGet, base+"/"+id, "", owner...)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TENANT_NOT_FOUND", errMessage(t, rec))
}

func TestEmulatorActionResetsPassword(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":"carl@example.com","password":"secret1"}`)

	rec := e.do(http.MethodPost, v1+"/accounts:sendOobCode", `{"requestType":"PASSWORD_RESET","email":"carl@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/emulator/v1/projects/demo/oobCodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	codes := decode(t, rec)["oobCodes"].([]any)
	require.Len(t, codes, 1)
	link := codes[0].(map[string]any)["oobLink"].(string)
	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/emulator/action", u.Path)

	// sin newPassword muestra el form
	rec = e.do(http.MethodGet, u.RequestURI(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="newPassword"`)

	rec = e.do(http.MethodGet, u.RequestURI()+"&newPassword=changed1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Password changed")

	rec = e.do(http.MethodGet, u.RequestURI()+"&newPassword=again12", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, v1+"/accounts:signInWithPassword", `{"email":"carl@example.com","password":"changed1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestEmulatorConfigAndWipe(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodPost, v1+"/accounts:signUp", `{"email":"w@example.com","password":"secret1"}`)

	rec := e.do(http.MethodPatch, "/emulator/v1/projects/demo/config", `{"signIn":{"allowDuplicateEmails":true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signIn := decode(t, rec)["signIn"].(map[string]any)
	assert.Equal(t, true, signIn["allowDuplicateEmails"])

	rec = e.do(http.MethodPatch, "/emulator/v1/projects/demo/config", `{"nope":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(errMessage(t, rec), "INVALID_CONFIG"))

	rec = e.do(http.MethodDelete, "/emulator/v1/projects/demo/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(http.MethodPost, v1+"/accounts:signInWithPassword", `{"email":"w@example.com","password":"secret1"}`)
	assert.Equal(t, "EMAIL_NOT_FOUND", errMessage(t, rec))
}

func TestRateLimitOnSMS(t *testing.T) {
	e := newEnv(t, func(d *Deps) {
		d.SMSLimiter = rate.NewMemoryLimiter(1, time.Minute, clockwork.NewRealClock())
	})
	body := `{"phoneNumber":"+15555550100"}`

	rec := e.do(http.MethodPost, v1+"/accounts:sendVerificationCode", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = e.do(http.MethodPost, v1+"/accounts:sendVerificationCode", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TOO_MANY_ATTEMPTS_TRY_LATER", errMessage(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// el limiter de SMS no toca el resto de las operaciones
	rec = e.do(http.MethodPost, v1+"/accounts:signUp", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCORSAndHealth(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodOptions, v1+"/accounts:signUp", "",
		"Origin", "http://localhost:3000", "Access-Control-Request-Method", "POST")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}
