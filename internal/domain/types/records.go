package types

import "time"

// Tipos de OOB code.
const (
	OobVerifyEmail          = "VERIFY_EMAIL"
	OobPasswordReset        = "PASSWORD_RESET"
	OobEmailSignin          = "EMAIL_SIGNIN"
	OobVerifyAndChangeEmail = "VERIFY_AND_CHANGE_EMAIL"
	OobRecoverEmail         = "RECOVER_EMAIL"
)

// OobRecord es un código out-of-band pendiente. Se consume una sola vez.
type OobRecord struct {
	OobCode     string    `json:"oobCode"`
	Email       string    `json:"email"`
	NewEmail    string    `json:"newEmail,omitempty"`
	RequestType string    `json:"requestType"`
	OobLink     string    `json:"oobLink"`
	LocalID     string    `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// VerificationCode es una sesión SMS. Las de MFA quedan ligadas a la cuenta
// y al enrollment (o al teléfono a enrolar).
type VerificationCode struct {
	SessionInfo     string    `json:"sessionInfo"`
	PhoneNumber     string    `json:"phoneNumber"`
	Code            string    `json:"code"`
	LocalID         string    `json:"-"`
	MfaEnrollmentID string    `json:"-"`
	ExpiresAt       time.Time `json:"-"`
}

// MfaPending representa "primer factor verificado, falta el segundo".
type MfaPending struct {
	Credential  string
	LocalID     string
	Provider    string
	ExtraClaims map[string]any
	ExpiresAt   time.Time
}

// TemporaryProof permite reintentar un link de teléfono que ya es de otra cuenta.
type TemporaryProof struct {
	Proof       string
	PhoneNumber string
	ExpiresAt   time.Time
}
