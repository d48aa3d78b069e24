package auth

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
)

func TestBatchCreate_DuplicateLocalIDAbortsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.BatchCreate(ctx, admin, BatchCreateRequest{Users: []BatchUser{
		{LocalID: "test1", Email: "one@example.com"},
		{LocalID: "test1", Email: "two@example.com"},
	}})
	require.ErrorIs(t, err, errors.ErrDuplicateLocalID)

	q, err := h.svc.QueryAccounts(ctx, admin, QueryAccountsRequest{})
	require.NoError(t, err)
	require.Equal(t, "0", q.RecordsCount)

	_, err = h.svc.BatchCreate(ctx, user, BatchCreateRequest{Users: []BatchUser{{LocalID: "x"}}})
	require.ErrorIs(t, err, errors.ErrInsufficientPermission)
	_, err = h.svc.BatchCreate(ctx, admin, BatchCreateRequest{})
	require.ErrorIs(t, err, errors.ErrMissingUserAccount)
}

func TestBatchCreate_PerItemErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "taken@example.com", "secret1")

	resp, err := h.svc.BatchCreate(ctx, admin, BatchCreateRequest{Users: []BatchUser{
		{LocalID: "ok-1", Email: "ok@example.com", RawPassword: "secret1"},
		{LocalID: "bad-email", Email: "nope"},
		{LocalID: "taken", Email: "taken@example.com"},
		{LocalID: "claims", CustomAttributes: `{"sub":"x"}`},
		{LocalID: "fed", ProviderUserInfo: []types.ProviderUserInfo{{ProviderID: "google.com"}}},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Error, 4)
	require.Equal(t, 1, resp.Error[0].Index)
	require.Equal(t, "email is invalid", resp.Error[0].Message)
	require.Equal(t, "email exists in other account in database", resp.Error[1].Message)
	require.Equal(t, "Invalid custom claims provided.", resp.Error[2].Message)
	require.Equal(t, 4, resp.Error[3].Index)

	in, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "ok@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "ok-1", in.LocalID)
}

func TestBatchCreate_SanityCheckAndHashes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.BatchCreate(ctx, admin, BatchCreateRequest{SanityCheck: true, Users: []BatchUser{
		{LocalID: "a", Email: "same@example.com"},
		{LocalID: "b", Email: "SAME@example.com"},
	}})
	require.ErrorIs(t, err, errors.ErrDuplicateEmail)

	_, err = h.svc.BatchCreate(ctx, admin, BatchCreateRequest{SanityCheck: true, Users: []BatchUser{
		{LocalID: "a", ProviderUserInfo: []types.ProviderUserInfo{{ProviderID: "google.com", RawID: "r"}}},
		{LocalID: "b", ProviderUserInfo: []types.ProviderUserInfo{{ProviderID: "google.com", RawID: "r"}}},
	}})
	require.ErrorIs(t, err, errors.ErrDuplicateRawID)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	resp, err := h.svc.BatchCreate(ctx, admin, BatchCreateRequest{HashAlgorithm: "BCRYPT", Users: []BatchUser{
		{LocalID: "bc", Email: "bc@example.com", PasswordHash: base64.StdEncoding.EncodeToString(hash)},
	}})
	require.NoError(t, err)
	require.Empty(t, resp.Error)
	_, err = h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "bc@example.com", Password: "hunter22"})
	require.NoError(t, err)

	resp, err = h.svc.BatchCreate(ctx, admin, BatchCreateRequest{HashAlgorithm: "SCRYPT", Users: []BatchUser{
		{LocalID: "sc", PasswordHash: base64.StdEncoding.EncodeToString([]byte("whatever"))},
	}})
	require.NoError(t, err)
	require.Equal(t, "Unsupported hash algorithm: SCRYPT", resp.Error[0].Message)

	// allowOverwrite reemplaza la cuenta existente
	resp, err = h.svc.BatchCreate(ctx, admin, BatchCreateRequest{AllowOverwrite: true, Users: []BatchUser{
		{LocalID: "bc", DisplayName: "replaced"},
	}})
	require.NoError(t, err)
	require.Empty(t, resp.Error)
	lk, err := h.svc.Lookup(ctx, admin, LookupRequest{LocalID: []string{"bc"}})
	require.NoError(t, err)
	require.Equal(t, "replaced", lk.Users[0].DisplayName)
	require.Empty(t, lk.Users[0].Email)
}

func TestBatchDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.BatchCreate(ctx, admin, BatchCreateRequest{Users: []BatchUser{
		{LocalID: "enabled"},
		{LocalID: "off", Disabled: true},
	}})
	require.NoError(t, err)

	resp, err := h.svc.BatchDelete(ctx, admin, BatchDeleteRequest{LocalIDs: []string{"enabled", "off", "ghost"}})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "enabled", resp.Errors[0].LocalID)
	require.Equal(t, "NOT_DISABLED : Disable the account before batch deletion.", resp.Errors[0].Message)

	resp, err = h.svc.BatchDelete(ctx, admin, BatchDeleteRequest{LocalIDs: []string{"enabled"}, Force: true})
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	q, err := h.svc.QueryAccounts(ctx, admin, QueryAccountsRequest{})
	require.NoError(t, err)
	require.Equal(t, "0", q.RecordsCount)

	_, err = h.svc.BatchDelete(ctx, admin, BatchDeleteRequest{})
	require.ErrorIs(t, err, errors.ErrMissingLocalID)
}

func TestQueryAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.BatchCreate(ctx, admin, BatchCreateRequest{Users: []BatchUser{
		{LocalID: "u1", Email: "c@example.com", DisplayName: "Zed"},
		{LocalID: "u2", Email: "a@example.com", DisplayName: "Amy"},
		{LocalID: "u3", Email: "b@example.com", DisplayName: "Bob"},
	}})
	require.NoError(t, err)

	q, err := h.svc.QueryAccounts(ctx, admin, QueryAccountsRequest{SortBy: "NAME", Order: "DESC", Limit: "2"})
	require.NoError(t, err)
	require.Equal(t, "3", q.RecordsCount)
	require.Len(t, q.UserInfo, 2)
	require.Equal(t, "Zed", q.UserInfo[0].DisplayName)
	require.Equal(t, "Bob", q.UserInfo[1].DisplayName)

	q, err = h.svc.QueryAccounts(ctx, admin, QueryAccountsRequest{Expression: []QueryExpression{
		{Email: "A@example.com"}, {UserID: "u3"}, {UserID: "u1", Email: "nomatch@example.com"},
	}})
	require.NoError(t, err)
	require.Equal(t, "2", q.RecordsCount)

	q, err = h.svc.QueryAccounts(ctx, admin, QueryAccountsRequest{ReturnUserInfo: boolPtr(false)})
	require.NoError(t, err)
	require.Equal(t, "3", q.RecordsCount)
	require.Empty(t, q.UserInfo)

	_, err = h.svc.QueryAccounts(ctx, admin, QueryAccountsRequest{SortBy: "SHOE_SIZE"})
	require.Error(t, err)
	require.Equal(t, "INVALID_SORT_BY", errors.CodeOf(err))

	_, err = h.svc.QueryAccounts(ctx, user, QueryAccountsRequest{})
	require.ErrorIs(t, err, errors.ErrInsufficientPermission)
}

func TestTenantLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.CreateTenant(ctx, admin, TenantRequest{DisplayName: "Acme", AllowPasswordSignup: true})
	require.NoError(t, err)
	require.NotEmpty(t, created.TenantID)
	require.Equal(t, "projects/demo/tenants/"+created.TenantID, created.Name)
	require.False(t, created.EnableAnonymousUser)

	_, err = h.svc.CreateTenant(ctx, admin, TenantRequest{TenantID: created.TenantID})
	require.ErrorIs(t, err, errors.ErrTenantExists)

	_, err = h.svc.CreateTenant(ctx, user, TenantRequest{})
	require.ErrorIs(t, err, errors.ErrInsufficientPermission)
	_, err = h.svc.CreateTenant(ctx, Caller{ProjectID: project, TenantID: "t", Privileged: true}, TenantRequest{})
	require.ErrorIs(t, err, errors.ErrUnsupportedTenantOperation)

	updated, err := h.svc.UpdateTenant(ctx, admin, created.TenantID, map[string]any{
		"displayName": "Acme 2", "enableAnonymousUser": true,
	}, "displayName")
	require.NoError(t, err)
	require.Equal(t, "Acme 2", updated.DisplayName)
	require.False(t, updated.EnableAnonymousUser)
	require.True(t, updated.AllowPasswordSignup)

	_, err = h.svc.UpdateTenant(ctx, admin, created.TenantID, map[string]any{"tenantId": "other"}, "")
	require.ErrorIs(t, err, errors.ErrTenantIDMismatch)

	for _, id := range []string{"t-b", "t-a"} {
		_, err = h.svc.CreateTenant(ctx, admin, TenantRequest{TenantID: id})
		require.NoError(t, err)
	}
	page, err := h.svc.ListTenants(ctx, admin, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Tenants, 2)
	require.Equal(t, "t-a", page.Tenants[0].TenantID)
	require.Equal(t, "2", page.NextPageToken)
	page, err = h.svc.ListTenants(ctx, admin, 2, page.NextPageToken)
	require.NoError(t, err)
	require.Len(t, page.Tenants, 1)
	require.Empty(t, page.NextPageToken)
	_, err = h.svc.ListTenants(ctx, admin, 2, "abc")
	require.Error(t, err)

	// el tenant borrado se lleva sus cuentas
	tc := Caller{ProjectID: project, TenantID: "t-a"}
	_, err = h.svc.SignUp(ctx, tc, SignUpRequest{Email: "x@example.com", Password: "secret1"})
	require.ErrorIs(t, err, errors.ErrOperationNotAllowed)

	require.NoError(t, h.svc.DeleteTenant(ctx, admin, "t-a"))
	_, err = h.svc.GetTenant(ctx, admin, "t-a")
	require.ErrorIs(t, err, errors.ErrTenantNotFound)
}

func TestProjectConfig(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cfg, err := h.svc.GetConfig(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, "projects/demo/config", cfg.Name)
	require.Equal(t, types.MfaStateEnabled, cfg.Mfa.State)

	cfg, err = h.svc.UpdateConfig(ctx, admin, map[string]any{
		"signIn": map[string]any{"allowDuplicateEmails": true},
		"mfa":    map[string]any{"state": "DISABLED"},
	}, "signIn.allowDuplicateEmails")
	require.NoError(t, err)
	require.True(t, cfg.SignIn.AllowDuplicateEmails)
	require.Equal(t, types.MfaStateEnabled, cfg.Mfa.State)

	_, err = h.svc.GetConfig(ctx, user)
	require.ErrorIs(t, err, errors.ErrInsufficientPermission)

	emu, err := h.svc.UpdateEmulatorConfig(ctx, admin, map[string]any{"emailPrivacyConfig": map[string]any{"enableImprovedEmailPrivacy": true}})
	require.NoError(t, err)
	require.True(t, emu.SignIn.AllowDuplicateEmails)
	require.True(t, emu.EmailPrivacyConfig.EnableImprovedEmailPrivacy)

	_, err = h.svc.UpdateEmulatorConfig(ctx, admin, map[string]any{"mfa": map[string]any{}})
	require.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestWipeAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	up := h.signUp(t, "w@example.com", "secret1")
	_, err := h.svc.SendOobCode(ctx, user, SendOobCodeRequest{RequestType: types.OobVerifyEmail, IDToken: up.IDToken})
	require.NoError(t, err)

	require.NoError(t, h.svc.WipeAccounts(ctx, admin))
	q, err := h.svc.QueryAccounts(ctx, admin, QueryAccountsRequest{})
	require.NoError(t, err)
	require.Equal(t, "0", q.RecordsCount)
	codes, err := h.svc.ListOobCodes(ctx, admin)
	require.NoError(t, err)
	require.Empty(t, codes.OobCodes)
}
