package auth

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authemu/internal/errors"
)

func idpRequest(t *testing.T, providerID string, claims map[string]any) SignInWithIdpRequest {
	t.Helper()
	raw, err := json.Marshal(claims)
	require.NoError(t, err)
	body := url.Values{"providerId": {providerID}, "id_token": {string(raw)}}
	return SignInWithIdpRequest{RequestURI: "http://localhost", PostBody: body.Encode()}
}

func TestSignInWithIdp_CreatesThenSignsIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := idpRequest(t, "google.com", map[string]any{
		"sub": "g-1", "email": "Gina@Example.com", "email_verified": true, "name": "Gina",
	})

	first, err := h.svc.SignInWithIdp(ctx, user, req)
	require.NoError(t, err)
	require.True(t, first.IsNewUser)
	require.Equal(t, "https://accounts.google.com/g-1", first.FederatedID)
	require.Equal(t, "gina@example.com", first.Email)
	require.True(t, first.EmailVerified)
	require.Equal(t, "Gina", first.DisplayName)
	require.Equal(t, "FirebaseAuthEmulatorFakeAccessToken_google.com", first.OAuthAccessToken)
	require.Equal(t, "google.com", firebaseClaim(t, first.IDToken, "sign_in_provider"))

	again, err := h.svc.SignInWithIdp(ctx, user, req)
	require.NoError(t, err)
	require.False(t, again.IsNewUser)
	require.Equal(t, first.LocalID, again.LocalID)
}

func TestSignInWithIdp_InvalidAssertions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SignInWithIdp(ctx, user, SignInWithIdpRequest{PostBody: "providerId=google.com"})
	require.ErrorIs(t, err, errors.ErrMissingRequestURI)

	_, err = h.svc.SignInWithIdp(ctx, user, idpRequest(t, "password", map[string]any{"sub": "x"}))
	require.ErrorIs(t, err, errors.ErrInvalidProviderID)

	_, err = h.svc.SignInWithIdp(ctx, user, idpRequest(t, "google.com", map[string]any{"email": "a@b.com"}))
	require.ErrorIs(t, err, errors.ErrInvalidIdpResponse)

	_, err = h.svc.SignInWithIdp(ctx, user, idpRequest(t, "google.com", map[string]any{"sub": 42}))
	require.ErrorIs(t, err, errors.ErrInvalidIdpResponse)

	// sin postBody se usa la query del requestUri
	_, err = h.svc.SignInWithIdp(ctx, user, SignInWithIdpRequest{RequestURI: "http://localhost?id_token=x"})
	require.ErrorIs(t, err, errors.ErrInvalidCredOrProviderID)
}

func TestSignInWithIdp_UnverifiedEmailNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	up := h.signUp(t, "alice@example.com", "secret1")

	resp, err := h.svc.SignInWithIdp(ctx, user, idpRequest(t, "facebook.com", map[string]any{
		"sub": "fb-1", "email": "alice@example.com", "email_verified": false,
	}))
	require.NoError(t, err)
	require.True(t, resp.NeedConfirmation)
	require.Equal(t, up.LocalID, resp.LocalID)
	require.Equal(t, []string{"password"}, resp.VerifiedProvider)
	require.Empty(t, resp.IDToken)

	lk, err := h.svc.Lookup(ctx, admin, LookupRequest{LocalID: []string{up.LocalID}})
	require.NoError(t, err)
	require.Len(t, lk.Users[0].ProviderUserInfo, 1)
}

func TestSignInWithIdp_VerifiedEmailTakesOverUnverifiedAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	up := h.signUp(t, "alice@example.com", "secret1")
	h.clock.Advance(2 * time.Second)

	resp, err := h.svc.SignInWithIdp(ctx, user, idpRequest(t, "google.com", map[string]any{
		"sub": "g-2", "email": "alice@example.com", "email_verified": true, "name": "Alice G",
	}))
	require.NoError(t, err)
	require.False(t, resp.IsNewUser)
	require.Equal(t, up.LocalID, resp.LocalID)
	require.True(t, resp.EmailVerified)
	require.Equal(t, "Alice G", resp.DisplayName)

	_, err = h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "alice@example.com", Password: "secret1"})
	require.ErrorIs(t, err, errors.ErrInvalidPassword)

	// la contraseña descartada revoca las sesiones anteriores
	_, err = h.svc.Lookup(ctx, user, LookupRequest{IDToken: up.IDToken})
	require.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestSignInWithIdp_VerifiedEmailLinksVerifiedAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.SignUp(ctx, admin, SignUpRequest{Email: "v@example.com", Password: "secret1", EmailVerified: true})
	require.NoError(t, err)

	resp, err := h.svc.SignInWithIdp(ctx, user, idpRequest(t, "google.com", map[string]any{
		"sub": "g-3", "email": "v@example.com", "email_verified": true,
	}))
	require.NoError(t, err)
	require.False(t, resp.IsNewUser)

	in, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "v@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, resp.LocalID, in.LocalID)
}

func TestSignInWithIdp_LinkOutcomes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.signUp(t, "a@example.com", "secret1")
	b := h.signUp(t, "b@example.com", "secret1")

	req := idpRequest(t, "github.com", map[string]any{"sub": "gh-1"})
	req.IDToken = a.IDToken
	linked, err := h.svc.SignInWithIdp(ctx, user, req)
	require.NoError(t, err)
	require.Equal(t, a.LocalID, linked.LocalID)
	require.Empty(t, linked.ErrorMessage)
	require.Equal(t, "github.com", firebaseClaim(t, linked.IDToken, "sign_in_provider"))

	// mismo usuario: error suave en el body
	soft, err := h.svc.SignInWithIdp(ctx, user, req)
	require.NoError(t, err)
	require.Equal(t, "FEDERATED_USER_ID_ALREADY_LINKED", soft.ErrorMessage)

	// otro usuario: error duro
	req.IDToken = b.IDToken
	_, err = h.svc.SignInWithIdp(ctx, user, req)
	require.ErrorIs(t, err, errors.ErrFederatedAlreadyLinked)

	req.ReturnIdpCredential = true
	cred, err := h.svc.SignInWithIdp(ctx, user, req)
	require.NoError(t, err)
	require.Equal(t, "FEDERATED_USER_ID_ALREADY_LINKED", cred.ErrorMessage)
	require.Empty(t, cred.IDToken)

	// el email del IDP pertenece a otra cuenta
	other := idpRequest(t, "github.com", map[string]any{"sub": "gh-2", "email": "a@example.com"})
	other.IDToken = b.IDToken
	_, err = h.svc.SignInWithIdp(ctx, user, other)
	require.ErrorIs(t, err, errors.ErrEmailExists)
}

func TestSignInWithIdp_DuplicateEmailsAllowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.UpdateEmulatorConfig(ctx, admin, map[string]any{"signIn": map[string]any{"allowDuplicateEmails": true}})
	require.NoError(t, err)
	h.signUp(t, "dup@example.com", "secret1")

	resp, err := h.svc.SignInWithIdp(ctx, user, idpRequest(t, "google.com", map[string]any{
		"sub": "g-9", "email": "dup@example.com", "email_verified": false,
	}))
	require.NoError(t, err)
	require.True(t, resp.IsNewUser)
	require.False(t, resp.NeedConfirmation)
}
