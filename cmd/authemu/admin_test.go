package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/blocking"
	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/http/router"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAdminCommands(t *testing.T) {
	logger.Init(logger.Config{Env: "test"})
	svc := auth.NewService(auth.Deps{Blocking: &blocking.FakeInvoker{}})
	srv := httptest.NewServer(router.New(router.Deps{Service: svc, DefaultProject: "demo"}))
	defer srv.Close()

	ctx := context.Background()
	caller := auth.Caller{ProjectID: "demo"}
	_, err := svc.SignUp(ctx, caller, auth.SignUpRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.SendOobCode(ctx, caller, auth.SendOobCodeRequest{RequestType: types.OobPasswordReset, Email: "a@example.com"})
	require.NoError(t, err)

	base := []string{"admin", "--url", srv.URL, "--project", "demo"}

	out, err := runCLI(t, append(base, "oob-codes")...)
	require.NoError(t, err)
	require.Contains(t, out, `"requestType": "PASSWORD_RESET"`)

	out, err = runCLI(t, append(base, "config", "--set", `{"signIn":{"allowDuplicateEmails":true}}`)...)
	require.NoError(t, err)
	require.Contains(t, out, `"allowDuplicateEmails": true`)

	_, err = runCLI(t, append(base, "config", "--set", `{"bogus":1}`)...)
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_CONFIG")

	out, err = runCLI(t, append(base, "wipe")...)
	require.NoError(t, err)
	require.Contains(t, out, "ok")

	_, err = svc.SignInWithPassword(ctx, caller, auth.SignInWithPasswordRequest{Email: "a@example.com", Password: "secret1"})
	require.Error(t, err)
}
