package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authemu/internal/errors"
)

type fakeScopes []ScopeStat

func (f fakeScopes) Stats() []ScopeStat { return f }

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/identitytoolkit.googleapis.com/v1/accounts:signUp":                   "/identitytoolkit.googleapis.com/v1/accounts:signUp",
		"/identitytoolkit.googleapis.com/v1/projects/demo/accounts:lookup":     "/identitytoolkit.googleapis.com/v1/projects/:param/accounts:lookup",
		"/identitytoolkit.googleapis.com/v1/projects/demo:createSessionCookie": "/identitytoolkit.googleapis.com/v1/projects/:param:createSessionCookie",
		"/emulator/v1/projects/demo/tenants/t-1/oobCodes":                      "/emulator/v1/projects/:param/tenants/:param/oobCodes",
		"/emulator/action": "/emulator/action",
		"":                 "/",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizePath(in), in)
	}
}

func TestRegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := Register(Config{Registry: reg, Gatherer: reg, Scopes: fakeScopes{{ProjectID: "demo", Accounts: 3}}})
	require.NoError(t, err)

	ObserveOperation("accounts:signUp", nil)
	ObserveOperation("accounts:signUp", errors.ErrEmailExists)
	TokenIssued("id_token")
	BlockingCall("beforeCreate", nil)

	wrapped := WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/emulator/action", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	require.True(t, strings.Contains(body, `authemu_accounts{project="demo",tenant=""} 3`), body)
	require.Contains(t, body, `http_requests_total{method="POST",path="/emulator/action",status="418"}`)
	require.Contains(t, body, `authemu_operations_total{code="EMAIL_EXISTS",op="accounts:signUp"} 1`)
	require.Contains(t, body, `authemu_tokens_issued_total{kind="id_token"} 1`)
}
