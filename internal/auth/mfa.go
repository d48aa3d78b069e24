package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

var errSMSMfaDisabled = errors.ErrOperationNotAllowed.WithDetail("SMS based MFA not enabled.")

// primeros factores que no pueden tener MFA
var ineligibleFirstFactors = map[string]bool{
	types.ProviderAnonymous: true,
	types.ProviderPhone:     true,
	types.ProviderCustom:    true,
}

// PhoneEnrollmentInfo es el teléfono a enrolar.
type PhoneEnrollmentInfo struct {
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

// PhoneVerificationInfo cierra una sesión SMS de MFA.
type PhoneVerificationInfo struct {
	SessionInfo string `json:"sessionInfo,omitempty"`
	Code        string `json:"code,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// PhoneSessionInfo es el handle devuelto por los :start.
type PhoneSessionInfo struct {
	SessionInfo string `json:"sessionInfo"`
}

// MfaEnrollmentStartRequest es el body de mfaEnrollment:start.
type MfaEnrollmentStartRequest struct {
	IDToken             string               `json:"idToken,omitempty"`
	PhoneEnrollmentInfo *PhoneEnrollmentInfo `json:"phoneEnrollmentInfo,omitempty"`
	TenantID            string               `json:"tenantId,omitempty"`
}

// MfaEnrollmentStartResponse es la respuesta de mfaEnrollment:start.
type MfaEnrollmentStartResponse struct {
	PhoneSessionInfo PhoneSessionInfo `json:"phoneSessionInfo"`
}

// MfaEnrollmentFinalizeRequest es el body de mfaEnrollment:finalize.
type MfaEnrollmentFinalizeRequest struct {
	IDToken               string                 `json:"idToken,omitempty"`
	DisplayName           string                 `json:"displayName,omitempty"`
	PhoneVerificationInfo *PhoneVerificationInfo `json:"phoneVerificationInfo,omitempty"`
	TenantID              string                 `json:"tenantId,omitempty"`
}

// MfaTokensResponse es la respuesta de finalize/withdraw: tokens nuevos.
type MfaTokensResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// MfaWithdrawRequest es el body de mfaEnrollment:withdraw.
type MfaWithdrawRequest struct {
	IDToken         string `json:"idToken,omitempty"`
	MfaEnrollmentID string `json:"mfaEnrollmentId,omitempty"`
	TenantID        string `json:"tenantId,omitempty"`
}

// MfaSignInStartRequest es el body de mfaSignIn:start.
type MfaSignInStartRequest struct {
	MfaPendingCredential string `json:"mfaPendingCredential,omitempty"`
	MfaEnrollmentID      string `json:"mfaEnrollmentId,omitempty"`
	PhoneSignInInfo      *struct {
		RecaptchaToken string `json:"recaptchaToken,omitempty"`
	} `json:"phoneSignInInfo,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// MfaSignInStartResponse es la respuesta de mfaSignIn:start.
type MfaSignInStartResponse struct {
	PhoneResponseInfo PhoneSessionInfo `json:"phoneResponseInfo"`
}

// MfaSignInFinalizeRequest es el body de mfaSignIn:finalize.
type MfaSignInFinalizeRequest struct {
	MfaPendingCredential  string                 `json:"mfaPendingCredential,omitempty"`
	MfaEnrollmentID       string                 `json:"mfaEnrollmentId,omitempty"`
	PhoneVerificationInfo *PhoneVerificationInfo `json:"phoneVerificationInfo,omitempty"`
	TenantID              string                 `json:"tenantId,omitempty"`
}

// mfaEligible exige MFA SMS habilitado, un primer factor apto y email verificado.
func mfaEligible(sc *store.Scope, acc *types.Account, claims *jwt.IDTokenClaims) error {
	if !sc.Policy().Mfa.SMSEnabled() {
		return errSMSMfaDisabled
	}
	if ineligibleFirstFactors[claims.SignInProvider] {
		return errors.ErrUnsupportedFirstFactor.WithDetail("MFA is not available for the given first factor.")
	}
	if !acc.EmailVerified {
		return errors.ErrUnverifiedEmail
	}
	return nil
}

// MfaEnrollmentStart manda un código al teléfono a enrolar.
func (s *Service) MfaEnrollmentStart(ctx context.Context, c Caller, req MfaEnrollmentStartRequest) (resp *MfaEnrollmentStartResponse, err error) {
	defer observe("mfaEnrollment:start", &err)

	var vc types.VerificationCode
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.IDToken == "" {
			return errors.ErrMissingIDToken
		}
		acc, claims, err := s.parseIDToken(ctx, sc, req.IDToken)
		if err != nil {
			return err
		}
		if err := mfaEligible(sc, acc, claims); err != nil {
			return err
		}
		phone := ""
		if req.PhoneEnrollmentInfo != nil {
			phone = req.PhoneEnrollmentInfo.PhoneNumber
		}
		if !validation.ValidPhoneNumber(phone) {
			return errors.ErrInvalidPhoneNumber
		}
		for _, e := range acc.MfaInfo {
			if e.PhoneInfo == phone {
				return errors.ErrSecondFactorExists
			}
		}
		vc = sc.PutVerificationCode(types.VerificationCode{PhoneNumber: phone, LocalID: acc.LocalID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.SendSMS(ctx, vc.PhoneNumber, vc.Code)
	return &MfaEnrollmentStartResponse{PhoneSessionInfo: PhoneSessionInfo{SessionInfo: vc.SessionInfo}}, nil
}

// MfaEnrollmentFinalize verifica el código y agrega el segundo factor.
func (s *Service) MfaEnrollmentFinalize(ctx context.Context, c Caller, req MfaEnrollmentFinalizeRequest) (resp *MfaTokensResponse, err error) {
	defer observe("mfaEnrollment:finalize", &err)
	log := s.log(ctx, "MfaEnrollmentFinalize")

	var enrolled types.MfaEnrollment
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.IDToken == "" {
			return errors.ErrMissingIDToken
		}
		acc, claims, err := s.parseIDToken(ctx, sc, req.IDToken)
		if err != nil {
			return err
		}
		if err := mfaEligible(sc, acc, claims); err != nil {
			return err
		}
		info := req.PhoneVerificationInfo
		if info == nil || info.SessionInfo == "" {
			return errors.ErrMissingSessionInfo
		}
		if info.Code == "" {
			return errors.ErrMissingCode
		}
		vc, err := sc.PeekVerificationCode(info.SessionInfo, info.Code)
		if err != nil {
			return err
		}
		if vc.LocalID != acc.LocalID || vc.MfaEnrollmentID != "" {
			return errors.ErrInvalidSessionInfo
		}
		for _, e := range acc.MfaInfo {
			if e.PhoneInfo == vc.PhoneNumber {
				return errors.ErrSecondFactorExists
			}
		}

		enrolled = types.MfaEnrollment{
			MfaEnrollmentID: uuid.NewString(),
			DisplayName:     req.DisplayName,
			PhoneInfo:       vc.PhoneNumber,
			EnrolledAt:      isoTime(sc),
		}
		acc.MfaInfo = append(acc.MfaInfo, enrolled)
		updated, err := sc.UpdateAccount(acc)
		if err != nil {
			return err
		}
		if _, err := sc.ConsumeVerificationCode(info.SessionInfo, info.Code); err != nil {
			return err
		}
		toks, err := s.issueTokens(sc, updated, claims.SignInProvider,
			&jwt.SecondFactor{Factor: types.ProviderPhone, EnrollmentID: enrolled.MfaEnrollmentID}, nil)
		if err != nil {
			return err
		}
		resp = &MfaTokensResponse{IDToken: toks.IDToken, RefreshToken: toks.RefreshToken}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("second factor enrolled", logger.String("mfa_enrollment_id", enrolled.MfaEnrollmentID))
	return resp, nil
}

// MfaEnrollmentWithdraw quita un segundo factor.
func (s *Service) MfaEnrollmentWithdraw(ctx context.Context, c Caller, req MfaWithdrawRequest) (resp *MfaTokensResponse, err error) {
	defer observe("mfaEnrollment:withdraw", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.IDToken == "" {
			return errors.ErrMissingIDToken
		}
		acc, claims, err := s.parseIDToken(ctx, sc, req.IDToken)
		if err != nil {
			return err
		}
		if req.MfaEnrollmentID == "" {
			return errors.ErrMissingMfaEnrollmentID
		}
		kept := acc.MfaInfo[:0:0]
		for _, e := range acc.MfaInfo {
			if e.MfaEnrollmentID != req.MfaEnrollmentID {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(acc.MfaInfo) {
			return errors.ErrMfaEnrollmentNotFound
		}
		acc.MfaInfo = kept
		updated, err := sc.UpdateAccount(acc)
		if err != nil {
			return err
		}
		toks, err := s.issueTokens(sc, updated, claims.SignInProvider, nil, nil)
		if err != nil {
			return err
		}
		resp = &MfaTokensResponse{IDToken: toks.IDToken, RefreshToken: toks.RefreshToken}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// MfaSignInStart manda un código al teléfono del enrollment elegido.
func (s *Service) MfaSignInStart(ctx context.Context, c Caller, req MfaSignInStartRequest) (resp *MfaSignInStartResponse, err error) {
	defer observe("mfaSignIn:start", &err)

	var vc types.VerificationCode
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if !sc.Policy().Mfa.SMSEnabled() {
			return errSMSMfaDisabled
		}
		if req.MfaPendingCredential == "" {
			return errors.ErrMissingMfaPendingCred
		}
		if req.MfaEnrollmentID == "" {
			return errors.ErrMissingMfaEnrollmentID
		}
		pending, err := sc.PeekMfaPending(req.MfaPendingCredential)
		if err != nil {
			return err
		}
		acc, ok := sc.Get(pending.LocalID)
		if !ok {
			return errors.ErrUserNotFound
		}
		enr := acc.Enrollment(req.MfaEnrollmentID)
		if enr == nil {
			return errors.ErrMfaEnrollmentNotFound
		}
		vc = sc.PutVerificationCode(types.VerificationCode{
			PhoneNumber:     enr.PhoneInfo,
			LocalID:         acc.LocalID,
			MfaEnrollmentID: enr.MfaEnrollmentID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.SendSMS(ctx, vc.PhoneNumber, vc.Code)
	return &MfaSignInStartResponse{PhoneResponseInfo: PhoneSessionInfo{SessionInfo: vc.SessionInfo}}, nil
}

// MfaSignInFinalize verifica el segundo factor y completa el sign-in.
func (s *Service) MfaSignInFinalize(ctx context.Context, c Caller, req MfaSignInFinalizeRequest) (resp *MfaTokensResponse, err error) {
	defer observe("mfaSignIn:finalize", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if !sc.Policy().Mfa.SMSEnabled() {
			return errSMSMfaDisabled
		}
		if req.MfaPendingCredential == "" {
			return errors.ErrMissingMfaPendingCred
		}
		info := req.PhoneVerificationInfo
		if info == nil || info.SessionInfo == "" {
			return errors.ErrMissingSessionInfo
		}
		if info.Code == "" {
			return errors.ErrMissingCode
		}
		pending, err := sc.PeekMfaPending(req.MfaPendingCredential)
		if err != nil {
			return err
		}
		vc, err := sc.PeekVerificationCode(info.SessionInfo, info.Code)
		if err != nil {
			return err
		}
		if vc.LocalID != pending.LocalID || vc.MfaEnrollmentID == "" {
			return errors.ErrInvalidSessionInfo
		}
		acc, ok := sc.Get(pending.LocalID)
		if !ok {
			return errors.ErrUserNotFound
		}
		if acc.Disabled {
			return errors.ErrUserDisabled
		}
		enr := acc.Enrollment(vc.MfaEnrollmentID)
		if enr == nil {
			return errors.ErrMfaEnrollmentNotFound
		}
		_, toks, err := s.finishSignIn(ctx, c, sc, acc, session{
			Provider:     pending.Provider,
			SecondFactor: &jwt.SecondFactor{Factor: types.ProviderPhone, EnrollmentID: enr.MfaEnrollmentID},
			ExtraClaims:  pending.ExtraClaims,
		})
		if err != nil {
			return err
		}
		if _, err := sc.ConsumeVerificationCode(info.SessionInfo, info.Code); err != nil {
			return err
		}
		if _, err := sc.ConsumeMfaPending(req.MfaPendingCredential); err != nil {
			return err
		}
		resp = &MfaTokensResponse{IDToken: toks.IDToken, RefreshToken: toks.RefreshToken}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
