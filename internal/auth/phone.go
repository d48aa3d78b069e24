package auth

import (
	"context"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

var errPhoneFirstFactorOnMfaUser = errors.ErrUnsupportedFirstFactor.WithDetail("A phone number cannot be set as a first factor on an SMS based MFA user.")

// SendVerificationCodeRequest es el body de accounts:sendVerificationCode.
type SendVerificationCodeRequest struct {
	ClientFields
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
	IOSReceipt     string `json:"iosReceipt,omitempty"`
	IOSSecret      string `json:"iosSecret,omitempty"`
	PlayIntegrity  string `json:"playIntegrityToken,omitempty"`
	AutoRetrieval  string `json:"autoRetrievalInfo,omitempty"`
	TenantID       string `json:"tenantId,omitempty"`
}

// SendVerificationCodeResponse lleva el handle de la sesión SMS.
type SendVerificationCodeResponse struct {
	SessionInfo string `json:"sessionInfo"`
}

// SendVerificationCode abre una sesión SMS para el teléfono.
func (s *Service) SendVerificationCode(ctx context.Context, c Caller, req SendVerificationCodeRequest) (resp *SendVerificationCodeResponse, err error) {
	defer observe("accounts:sendVerificationCode", &err)

	var vc types.VerificationCode
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.PhoneNumber == "" {
			return errors.ErrMissingPhoneNumber
		}
		if !validation.ValidPhoneNumber(req.PhoneNumber) {
			return errors.ErrInvalidPhoneNumber
		}
		vc = sc.PutVerificationCode(types.VerificationCode{PhoneNumber: req.PhoneNumber})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.SendSMS(ctx, vc.PhoneNumber, vc.Code)
	return &SendVerificationCodeResponse{SessionInfo: vc.SessionInfo}, nil
}

// SignInWithPhoneNumberRequest es el body de accounts:signInWithPhoneNumber.
type SignInWithPhoneNumberRequest struct {
	ClientFields
	SessionInfo    string `json:"sessionInfo,omitempty"`
	Code           string `json:"code,omitempty"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	TemporaryProof string `json:"temporaryProof,omitempty"`
	IDToken        string `json:"idToken,omitempty"`
	Operation      string `json:"operation,omitempty"`
	TenantID       string `json:"tenantId,omitempty"`
}

// SignInWithPhoneNumberResponse trae tokens o, si el teléfono ya es de otra
// cuenta al linkear, un temporaryProof.
type SignInWithPhoneNumberResponse struct {
	LocalID        string `json:"localId,omitempty"`
	PhoneNumber    string `json:"phoneNumber"`
	IsNewUser      bool   `json:"isNewUser"`
	TemporaryProof string `json:"temporaryProof,omitempty"`
	TokenFields
}

// SignInWithPhoneNumber verifica el código (o un temporaryProof) y hace
// sign-in, alta o link del teléfono a la cuenta del idToken.
func (s *Service) SignInWithPhoneNumber(ctx context.Context, c Caller, req SignInWithPhoneNumberRequest) (resp *SignInWithPhoneNumberResponse, err error) {
	defer observe("accounts:signInWithPhoneNumber", &err)
	log := s.log(ctx, "SignInWithPhoneNumber")

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}

		var phone string
		usedProof := req.TemporaryProof != ""
		if usedProof {
			if req.PhoneNumber == "" {
				return errors.ErrMissingPhoneNumber
			}
			if err := sc.PeekTemporaryProof(req.TemporaryProof, req.PhoneNumber); err != nil {
				return err
			}
			phone = req.PhoneNumber
		} else {
			if req.SessionInfo == "" {
				return errors.ErrMissingSessionInfo
			}
			if req.Code == "" {
				return errors.ErrMissingCode
			}
			vc, err := sc.PeekVerificationCode(req.SessionInfo, req.Code)
			if err != nil {
				return err
			}
			if vc.LocalID != "" {
				// sesión de MFA, no sirve como primer factor
				return errors.ErrInvalidSessionInfo
			}
			phone = vc.PhoneNumber
		}
		// el código o la prueba se gastan recién cuando el flujo terminó bien
		consume := func() error {
			if usedProof {
				return sc.ConsumeTemporaryProof(req.TemporaryProof, req.PhoneNumber)
			}
			_, err := sc.ConsumeVerificationCode(req.SessionInfo, req.Code)
			return err
		}
		sess := session{Provider: types.ProviderPhone}

		if req.IDToken != "" {
			user, _, err := s.parseIDToken(ctx, sc, req.IDToken)
			if err != nil {
				return err
			}
			if owner, ok := sc.ByPhone(phone); ok && owner.LocalID != user.LocalID {
				if usedProof {
					return errors.ErrPhoneNumberExists
				}
				if err := consume(); err != nil {
					return err
				}
				proof := sc.PutTemporaryProof(phone)
				resp = &SignInWithPhoneNumberResponse{PhoneNumber: phone, TemporaryProof: proof.Proof}
				return nil
			}
			if user.HasMfa() {
				return errPhoneFirstFactorOnMfaUser
			}
			user.PhoneNumber = phone
			sess.SkipSignInTrigger = true
			done, tokens, err := s.finishSignIn(ctx, c, sc, user, sess)
			if err != nil {
				return err
			}
			resp = &SignInWithPhoneNumberResponse{LocalID: done.LocalID, PhoneNumber: phone, TokenFields: tokens}
			return consume()
		}

		acc, ok := sc.ByPhone(phone)
		if !ok {
			acc = &types.Account{PhoneNumber: phone}
			sess.NewUser = true
		} else {
			if acc.Disabled {
				return errors.ErrUserDisabled
			}
			if acc.HasMfa() {
				return errPhoneFirstFactorOnMfaUser
			}
		}
		done, tokens, err := s.finishSignIn(ctx, c, sc, acc, sess)
		if err != nil {
			return err
		}
		resp = &SignInWithPhoneNumberResponse{LocalID: done.LocalID, PhoneNumber: phone, IsNewUser: sess.NewUser, TokenFields: tokens}
		return consume()
	})
	if err != nil {
		return nil, err
	}
	log.Debug("phone sign in", logger.LocalID(resp.LocalID), logger.PhoneNumber(resp.PhoneNumber))
	return resp, nil
}
