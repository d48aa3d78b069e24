package errors

import (
	"errors"
	"net/http"
)

// AppError es el error tipado que devuelven los services.
// El mensaje que ve el cliente es "CODE" o "CODE : detalle".
type AppError struct {
	Code       string
	Detail     string
	HTTPStatus int
	Err        error // causa original, solo para logs
}

// Message arma el texto que viaja en error.message.
func (e *AppError) Message() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + " : " + e.Detail
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message() + ": " + e.Err.Error()
	}
	return e.Message()
}

func (e *AppError) Unwrap() error { return e.Err }

// Is compara por código, así errors.Is(err, ErrEmailExists) funciona aunque
// el error tenga detalle o causa.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New crea un AppError.
func New(status int, code string) *AppError {
	return &AppError{Code: code, HTTPStatus: status}
}

// BadRequest es el caso común: 400 con código y detalle opcional.
func BadRequest(code string, detail ...string) *AppError {
	e := &AppError{Code: code, HTTPStatus: http.StatusBadRequest}
	if len(detail) > 0 {
		e.Detail = detail[0]
	}
	return e
}

// FromError convierte cualquier error en AppError; lo desconocido es INTERNAL_ERROR.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// CodeOf devuelve el código de un error o "" si no es un AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// WithDetail devuelve una COPIA con detalle, sin mutar las variables base.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 - Validación de input
// ---------------------------------------------------------------------------------
var (
	ErrInvalidEmail             = BadRequest("INVALID_EMAIL")
	ErrInvalidPhoneNumber       = BadRequest("INVALID_PHONE_NUMBER", "Invalid format.")
	ErrInvalidMfaPhoneNumber    = BadRequest("INVALID_MFA_PHONE_NUMBER", "Invalid format.")
	ErrInvalidContinueURI       = BadRequest("INVALID_CONTINUE_URI")
	ErrInvalidClaims            = BadRequest("INVALID_CLAIMS")
	ErrForbiddenClaim           = BadRequest("FORBIDDEN_CLAIM")
	ErrClaimsTooLarge           = BadRequest("CLAIMS_TOO_LARGE")
	ErrWeakPassword             = BadRequest("WEAK_PASSWORD", "Password should be at least 6 characters")
	ErrMissingEmail             = BadRequest("MISSING_EMAIL")
	ErrMissingPassword          = BadRequest("MISSING_PASSWORD")
	ErrMissingPhoneNumber       = BadRequest("MISSING_PHONE_NUMBER")
	ErrMissingIDToken           = BadRequest("MISSING_ID_TOKEN")
	ErrMissingLocalID           = BadRequest("MISSING_LOCAL_ID")
	ErrMissingOobCode           = BadRequest("MISSING_OOB_CODE")
	ErrMissingReqType           = BadRequest("MISSING_REQ_TYPE")
	ErrMissingRefreshToken      = BadRequest("MISSING_REFRESH_TOKEN")
	ErrMissingGrantType         = BadRequest("MISSING_GRANT_TYPE")
	ErrInvalidGrantType         = BadRequest("INVALID_GRANT_TYPE")
	ErrMissingCustomToken       = BadRequest("MISSING_CUSTOM_TOKEN")
	ErrMissingIdentifier        = BadRequest("MISSING_IDENTIFIER")
	ErrMissingSessionInfo       = BadRequest("MISSING_SESSION_INFO")
	ErrMissingCode              = BadRequest("MISSING_CODE")
	ErrMissingMfaPendingCred    = BadRequest("MISSING_MFA_PENDING_CREDENTIAL")
	ErrMissingMfaEnrollmentID   = BadRequest("MISSING_MFA_ENROLLMENT_ID")
	ErrMissingUserAccount       = BadRequest("MISSING_USER_ACCOUNT")
	ErrMissingContinueURI       = BadRequest("MISSING_CONTINUE_URI")
	ErrMissingRequestURI        = BadRequest("MISSING_REQUEST_URI")
	ErrMissingTenantID          = BadRequest("MISSING_TENANT_ID")
	ErrInvalidIDToken           = BadRequest("INVALID_ID_TOKEN")
	ErrInvalidRefreshToken      = BadRequest("INVALID_REFRESH_TOKEN")
	ErrInvalidCustomToken       = BadRequest("INVALID_CUSTOM_TOKEN")
	ErrInvalidOobCode           = BadRequest("INVALID_OOB_CODE")
	ErrExpiredOobCode           = BadRequest("EXPIRED_OOB_CODE")
	ErrInvalidCode              = BadRequest("INVALID_CODE")
	ErrInvalidSessionInfo       = BadRequest("INVALID_SESSION_INFO")
	ErrSessionExpired           = BadRequest("SESSION_EXPIRED")
	ErrInvalidMfaPendingCred    = BadRequest("INVALID_MFA_PENDING_CREDENTIAL")
	ErrInvalidTemporaryProof    = BadRequest("INVALID_TEMPORARY_PROOF")
	ErrInvalidIdpResponse       = BadRequest("INVALID_IDP_RESPONSE")
	ErrInvalidCredOrProviderID  = BadRequest("INVALID_CREDENTIAL_OR_PROVIDER_ID")
	ErrInvalidDuration          = BadRequest("INVALID_DURATION")
	ErrInvalidReqType           = BadRequest("INVALID_REQ_TYPE")
	ErrInvalidPassword          = BadRequest("INVALID_PASSWORD")
	ErrInvalidProviderID        = BadRequest("INVALID_PROVIDER_ID")
	ErrInvalidTenantID          = BadRequest("INVALID_TENANT_ID")
	ErrInvalidConfig            = BadRequest("INVALID_CONFIG")
	ErrInvalidJSON              = BadRequest("INVALID_JSON_PAYLOAD")
	ErrUnexpectedParameter      = BadRequest("UNEXPECTED_PARAMETER")
	ErrEmailNotFound            = BadRequest("EMAIL_NOT_FOUND")
	ErrUserNotFound             = BadRequest("USER_NOT_FOUND")
	ErrMfaEnrollmentNotFound    = BadRequest("MFA_ENROLLMENT_NOT_FOUND")
	ErrTenantNotFound           = BadRequest("TENANT_NOT_FOUND")
	ErrProjectNotFound          = BadRequest("PROJECT_NOT_FOUND")
	ErrBlockingFunctionResponse = BadRequest("BLOCKING_FUNCTION_ERROR_RESPONSE")
)

// ---------------------------------------------------------------------------------
// 400 - Conflictos de estado
// ---------------------------------------------------------------------------------
var (
	ErrEmailExists             = BadRequest("EMAIL_EXISTS")
	ErrPhoneNumberExists       = BadRequest("PHONE_NUMBER_EXISTS")
	ErrFederatedAlreadyLinked  = BadRequest("FEDERATED_USER_ID_ALREADY_LINKED")
	ErrDuplicateLocalID        = BadRequest("DUPLICATE_LOCAL_ID")
	ErrDuplicateEmail          = BadRequest("DUPLICATE_EMAIL")
	ErrDuplicateRawID          = BadRequest("DUPLICATE_RAW_ID")
	ErrSecondFactorExists      = BadRequest("SECOND_FACTOR_EXISTS", "Phone number already enrolled as second factor for this account.")
	ErrDuplicateMfaEnrollment  = BadRequest("DUPLICATE_MFA_ENROLLMENT_ID")
	ErrUnverifiedEmail         = BadRequest("UNVERIFIED_EMAIL", "Need to verify email first before enrolling second factors.")
	ErrUnsupportedFirstFactor  = BadRequest("UNSUPPORTED_FIRST_FACTOR")
	ErrTenantIDMismatch        = BadRequest("TENANT_ID_MISMATCH")
	ErrTenantExists            = BadRequest("TENANT_ID_ALREADY_EXISTS")
	ErrNotDisabled             = BadRequest("NOT_DISABLED", "Disable the account before batch deletion.")
	ErrTooManyAttemptsTryLater = New(http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS_TRY_LATER")
)

// ---------------------------------------------------------------------------------
// 400 - Política / configuración del scope
// ---------------------------------------------------------------------------------
var (
	ErrProjectDisabled            = BadRequest("PROJECT_DISABLED")
	ErrOperationNotAllowed        = BadRequest("OPERATION_NOT_ALLOWED")
	ErrPasswordLoginDisabled      = BadRequest("PASSWORD_LOGIN_DISABLED")
	ErrAdminOnlyOperation         = BadRequest("ADMIN_ONLY_OPERATION")
	ErrUnsupportedTenantOperation = BadRequest("UNSUPPORTED_TENANT_OPERATION")
)

// ---------------------------------------------------------------------------------
// 400 - Sesión
// ---------------------------------------------------------------------------------
var (
	ErrUserDisabled = BadRequest("USER_DISABLED")
	ErrTokenExpired = BadRequest("TOKEN_EXPIRED")
)

// ---------------------------------------------------------------------------------
// 403 - Credenciales faltantes o insuficientes
// ---------------------------------------------------------------------------------
var (
	ErrInsufficientPermission = New(http.StatusForbidden, "INSUFFICIENT_PERMISSION")
	ErrPermissionDenied       = New(http.StatusForbidden, "PERMISSION_DENIED")
)

// ---------------------------------------------------------------------------------
// 404 / 405 / 500
// ---------------------------------------------------------------------------------
var (
	ErrNotFound         = New(http.StatusNotFound, "NOT_FOUND")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	ErrInternal         = New(http.StatusInternalServerError, "INTERNAL_ERROR")
)
