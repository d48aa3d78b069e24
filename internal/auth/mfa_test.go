package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authemu/internal/errors"
)

// mfaUser crea por admin una cuenta verificada con un segundo factor.
func mfaUser(t *testing.T, h *harness) *SignUpResponse {
	t.Helper()
	resp, err := h.svc.SignUp(context.Background(), admin, SignUpRequest{
		Email:         "mfa@example.com",
		Password:      "secret1",
		EmailVerified: true,
		MfaInfo:       []MfaEnrollmentInput{{MfaEnrollmentID: "enr-1", PhoneInfo: "+15555550100", DisplayName: "work"}},
	})
	require.NoError(t, err)
	return resp
}

func TestMfa_PrimaryFactorNeverReturnsTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mfaUser(t, h)

	in, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "mfa@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Empty(t, in.IDToken)
	require.Empty(t, in.RefreshToken)
	require.NotEmpty(t, in.MfaPendingCredential)
	require.Len(t, in.MfaInfo, 1)
	require.Equal(t, "enr-1", in.MfaInfo[0].MfaEnrollmentID)
	require.Equal(t, "+*******0100", in.MfaInfo[0].PhoneInfo)

	start, err := h.svc.MfaSignInStart(ctx, user, MfaSignInStartRequest{
		MfaPendingCredential: in.MfaPendingCredential,
		MfaEnrollmentID:      in.MfaInfo[0].MfaEnrollmentID,
	})
	require.NoError(t, err)
	code := h.lastCode(t, user)

	_, err = h.svc.MfaSignInFinalize(ctx, user, MfaSignInFinalizeRequest{
		MfaPendingCredential:  in.MfaPendingCredential,
		PhoneVerificationInfo: &PhoneVerificationInfo{SessionInfo: start.PhoneResponseInfo.SessionInfo, Code: "000000x"},
	})
	require.ErrorIs(t, err, errors.ErrInvalidCode)

	done, err := h.svc.MfaSignInFinalize(ctx, user, MfaSignInFinalizeRequest{
		MfaPendingCredential:  in.MfaPendingCredential,
		PhoneVerificationInfo: &PhoneVerificationInfo{SessionInfo: start.PhoneResponseInfo.SessionInfo, Code: code},
	})
	require.NoError(t, err)
	require.NotEmpty(t, done.IDToken)
	require.Equal(t, "phone", firebaseClaim(t, done.IDToken, "sign_in_second_factor"))
	require.Equal(t, "enr-1", firebaseClaim(t, done.IDToken, "second_factor_identifier"))
	require.Equal(t, "password", firebaseClaim(t, done.IDToken, "sign_in_provider"))

	// la credencial pendiente es de un solo uso
	_, err = h.svc.MfaSignInStart(ctx, user, MfaSignInStartRequest{MfaPendingCredential: in.MfaPendingCredential, MfaEnrollmentID: "enr-1"})
	require.ErrorIs(t, err, errors.ErrInvalidMfaPendingCred)
}

func TestMfa_PhoneAsFirstFactorOnMfaUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	up := mfaUser(t, h)

	_, err := h.svc.SetAccountInfo(ctx, admin, SetAccountInfoRequest{LocalID: up.LocalID, PhoneNumber: "+15555550199"})
	require.NoError(t, err)

	sent, err := h.svc.SendVerificationCode(ctx, user, SendVerificationCodeRequest{PhoneNumber: "+15555550199"})
	require.NoError(t, err)
	_, err = h.svc.SignInWithPhoneNumber(ctx, user, SignInWithPhoneNumberRequest{SessionInfo: sent.SessionInfo, Code: h.lastCode(t, user)})
	require.ErrorIs(t, err, errors.ErrUnsupportedFirstFactor)
}

func TestMfaEnrollment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SignUp(ctx, admin, SignUpRequest{Email: "e@example.com", Password: "secret1", EmailVerified: true})
	require.NoError(t, err)
	in, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "e@example.com", Password: "secret1"})
	require.NoError(t, err)

	start, err := h.svc.MfaEnrollmentStart(ctx, user, MfaEnrollmentStartRequest{
		IDToken:             in.IDToken,
		PhoneEnrollmentInfo: &PhoneEnrollmentInfo{PhoneNumber: "+15555550100"},
	})
	require.NoError(t, err)

	fin, err := h.svc.MfaEnrollmentFinalize(ctx, user, MfaEnrollmentFinalizeRequest{
		IDToken:               in.IDToken,
		DisplayName:           "phone",
		PhoneVerificationInfo: &PhoneVerificationInfo{SessionInfo: start.PhoneSessionInfo.SessionInfo, Code: h.lastCode(t, user)},
	})
	require.NoError(t, err)
	require.Equal(t, "phone", firebaseClaim(t, fin.IDToken, "sign_in_second_factor"))

	// el mismo teléfono no se puede enrolar dos veces
	_, err = h.svc.MfaEnrollmentStart(ctx, user, MfaEnrollmentStartRequest{
		IDToken:             fin.IDToken,
		PhoneEnrollmentInfo: &PhoneEnrollmentInfo{PhoneNumber: "+15555550100"},
	})
	require.ErrorIs(t, err, errors.ErrSecondFactorExists)

	next, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "e@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, next.MfaPendingCredential)

	enrollmentID := next.MfaInfo[0].MfaEnrollmentID
	_, err = h.svc.MfaEnrollmentWithdraw(ctx, user, MfaWithdrawRequest{IDToken: fin.IDToken, MfaEnrollmentID: "missing"})
	require.ErrorIs(t, err, errors.ErrMfaEnrollmentNotFound)
	_, err = h.svc.MfaEnrollmentWithdraw(ctx, user, MfaWithdrawRequest{IDToken: fin.IDToken, MfaEnrollmentID: enrollmentID})
	require.NoError(t, err)

	plain, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "e@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, plain.IDToken)
}

func TestMfaEnrollment_Eligibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	anon, err := h.svc.SignUp(ctx, user, SignUpRequest{})
	require.NoError(t, err)
	_, err = h.svc.MfaEnrollmentStart(ctx, user, MfaEnrollmentStartRequest{
		IDToken: anon.IDToken, PhoneEnrollmentInfo: &PhoneEnrollmentInfo{PhoneNumber: "+15555550100"},
	})
	require.ErrorIs(t, err, errors.ErrUnsupportedFirstFactor)

	unverified := h.signUp(t, "u@example.com", "secret1")
	_, err = h.svc.MfaEnrollmentStart(ctx, user, MfaEnrollmentStartRequest{
		IDToken: unverified.IDToken, PhoneEnrollmentInfo: &PhoneEnrollmentInfo{PhoneNumber: "+15555550100"},
	})
	require.ErrorIs(t, err, errors.ErrUnverifiedEmail)

	_, err = h.svc.UpdateConfig(ctx, admin, map[string]any{"mfa": map[string]any{"state": "DISABLED"}}, "mfa.state")
	require.NoError(t, err)
	_, err = h.svc.MfaEnrollmentStart(ctx, user, MfaEnrollmentStartRequest{
		IDToken: unverified.IDToken, PhoneEnrollmentInfo: &PhoneEnrollmentInfo{PhoneNumber: "+15555550100"},
	})
	require.ErrorIs(t, err, errors.ErrOperationNotAllowed)
}

func TestSetAccountInfo_ReplaceEnrollments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	up := mfaUser(t, h)

	resp, err := h.svc.SetAccountInfo(ctx, admin, SetAccountInfoRequest{LocalID: up.LocalID, Mfa: &MfaUpdate{
		Enrollments: []MfaEnrollmentInput{{PhoneInfo: "+15555550111"}, {PhoneInfo: "+15555550111"}},
	}})
	require.NoError(t, err)
	lk, err := h.svc.Lookup(ctx, admin, LookupRequest{LocalID: []string{resp.LocalID}})
	require.NoError(t, err)
	require.Len(t, lk.Users[0].MfaInfo, 1)
	require.NotEmpty(t, lk.Users[0].MfaInfo[0].MfaEnrollmentID)

	_, err = h.svc.SetAccountInfo(ctx, admin, SetAccountInfoRequest{LocalID: up.LocalID, Mfa: &MfaUpdate{
		Enrollments: []MfaEnrollmentInput{{MfaEnrollmentID: "x", PhoneInfo: "+15555550111"}, {MfaEnrollmentID: "x", PhoneInfo: "+15555550122"}},
	}})
	require.ErrorIs(t, err, errors.ErrDuplicateMfaEnrollment)

	_, err = h.svc.SetAccountInfo(ctx, admin, SetAccountInfoRequest{LocalID: up.LocalID, Mfa: &MfaUpdate{
		Enrollments: []MfaEnrollmentInput{{PhoneInfo: "not-a-phone"}},
	}})
	require.ErrorIs(t, err, errors.ErrInvalidMfaPhoneNumber)

	_, err = h.svc.SetAccountInfo(ctx, admin, SetAccountInfoRequest{LocalID: up.LocalID, Mfa: &MfaUpdate{}})
	require.NoError(t, err)
	lk, err = h.svc.Lookup(ctx, admin, LookupRequest{LocalID: []string{up.LocalID}})
	require.NoError(t, err)
	require.Empty(t, lk.Users[0].MfaInfo)

	_, err = h.svc.SetAccountInfo(ctx, user, SetAccountInfoRequest{IDToken: up.IDToken, Mfa: &MfaUpdate{}})
	require.Error(t, err)
}

func TestSetAccountInfo_ProfileAndClaims(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	up := h.signUp(t, "alice@example.com", "secret1")

	resp, err := h.svc.SetAccountInfo(ctx, user, SetAccountInfoRequest{IDToken: up.IDToken, DisplayName: strPtr("Alice"), PhotoURL: strPtr("http://p/a.png")})
	require.NoError(t, err)
	require.Equal(t, "Alice", resp.DisplayName)
	require.Empty(t, resp.IDToken)

	_, err = h.svc.SetAccountInfo(ctx, user, SetAccountInfoRequest{IDToken: up.IDToken, CustomAttributes: strPtr(`{"role":"x"}`)})
	require.ErrorIs(t, err, errors.ErrInsufficientPermission)

	_, err = h.svc.SetAccountInfo(ctx, admin, SetAccountInfoRequest{LocalID: up.LocalID, CustomAttributes: strPtr(`{"iss":"x"}`)})
	require.ErrorIs(t, err, errors.ErrForbiddenClaim)
	_, err = h.svc.SetAccountInfo(ctx, admin, SetAccountInfoRequest{LocalID: up.LocalID, CustomAttributes: strPtr(`{"role":"x"}`)})
	require.NoError(t, err)

	resp, err = h.svc.SetAccountInfo(ctx, user, SetAccountInfoRequest{IDToken: up.IDToken, DeleteAttribute: []string{"DISPLAY_NAME"}})
	require.NoError(t, err)
	require.Empty(t, resp.DisplayName)

	in, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "x", claimsOf(t, in.IDToken)["role"])
}

func TestMfaSignInFinalize_ForeignSessionKeepsCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mfaUser(t, h)

	in, err := h.svc.SignInWithPassword(ctx, user, SignInWithPasswordRequest{Email: "mfa@example.com", Password: "secret1"})
	require.NoError(t, err)

	// sesión SMS de primer factor, ajena a la credencial pendiente
	sent, err := h.svc.SendVerificationCode(ctx, user, SendVerificationCodeRequest{PhoneNumber: "+15555550188"})
	require.NoError(t, err)
	code := h.lastCode(t, user)

	_, err = h.svc.MfaSignInFinalize(ctx, user, MfaSignInFinalizeRequest{
		MfaPendingCredential:  in.MfaPendingCredential,
		PhoneVerificationInfo: &PhoneVerificationInfo{SessionInfo: sent.SessionInfo, Code: code},
	})
	require.ErrorIs(t, err, errors.ErrInvalidSessionInfo)

	phone, err := h.svc.SignInWithPhoneNumber(ctx, user, SignInWithPhoneNumberRequest{SessionInfo: sent.SessionInfo, Code: code})
	require.NoError(t, err)
	require.True(t, phone.IsNewUser)
}
