package auth

import (
	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// ClientFields son campos que mandan los SDKs y el emulador ignora. Van
// embebidos para que el decode estricto no los rechace.
type ClientFields struct {
	ReturnSecureToken bool   `json:"returnSecureToken,omitempty"`
	ClientType        string `json:"clientType,omitempty"`
	CaptchaResponse   string `json:"captchaResponse,omitempty"`
	RecaptchaVersion  string `json:"recaptchaVersion,omitempty"`
	TargetProjectID   string `json:"targetProjectId,omitempty"`
	DelegatedProject  string `json:"delegatedProjectNumber,omitempty"`
}

// TokenFields es el par de tokens de una sesión completa.
type TokenFields struct {
	IDToken      string `json:"idToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    string `json:"expiresIn,omitempty"`
}

// MfaPendingFields reemplaza a TokenFields cuando falta el segundo factor.
type MfaPendingFields struct {
	MfaPendingCredential string                `json:"mfaPendingCredential,omitempty"`
	MfaInfo              []types.MfaEnrollment `json:"mfaInfo,omitempty"`
}

// MfaEnrollmentInput es un segundo factor tal como llega en signUp/update/batchCreate.
type MfaEnrollmentInput struct {
	MfaEnrollmentID string `json:"mfaEnrollmentId,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	PhoneInfo       string `json:"phoneInfo,omitempty"`
	EnrolledAt      string `json:"enrolledAt,omitempty"`
}

// UserInfo es una cuenta tal como la devuelven lookup y query.
type UserInfo = types.Account

// userInfo redacta el hash salvo para callers privilegiados.
func userInfo(acc *types.Account, privileged bool) *UserInfo {
	out := acc.Clone()
	if !privileged {
		out.PasswordHash = ""
		out.Salt = ""
	}
	return out
}

// redactedMfaInfo ofusca los teléfonos para la respuesta de MFA pendiente.
func redactedMfaInfo(enrollments []types.MfaEnrollment) []types.MfaEnrollment {
	out := make([]types.MfaEnrollment, len(enrollments))
	for i, e := range enrollments {
		e.PhoneInfo = validation.ObfuscatePhone(e.PhoneInfo)
		out[i] = e
	}
	return out
}

func cloneClaims(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Kinds de respuesta.
const (
	kindSignUp         = "identitytoolkit#SignupNewUserResponse"
	kindVerifyPassword = "identitytoolkit#VerifyPasswordResponse"
	kindVerifyAssert   = "identitytoolkit#VerifyAssertionResponse"
	kindCustomToken    = "identitytoolkit#VerifyCustomTokenResponse"
	kindEmailLink      = "identitytoolkit#EmailLinkSigninResponse"
	kindOobCode        = "identitytoolkit#GetOobConfirmationCodeResponse"
	kindResetPassword  = "identitytoolkit#ResetPasswordResponse"
	kindSetAccountInfo = "identitytoolkit#SetAccountInfoResponse"
	kindLookup         = "identitytoolkit#GetAccountInfoResponse"
	kindDelete         = "identitytoolkit#DeleteAccountResponse"
	kindCreateAuthURI  = "identitytoolkit#CreateAuthUriResponse"
	kindUpload         = "identitytoolkit#UploadAccountResponse"
)
