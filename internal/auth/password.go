package auth

import (
	"context"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/security/password"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// SignInWithPasswordRequest es el body de accounts:signInWithPassword.
type SignInWithPasswordRequest struct {
	ClientFields
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// SignInWithPasswordResponse es la respuesta; trae tokens o MFA pendiente.
type SignInWithPasswordResponse struct {
	Kind        string `json:"kind"`
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Registered  bool   `json:"registered"`
	TokenFields
	MfaPendingFields
}

// SignInWithPassword verifica email/password.
func (s *Service) SignInWithPassword(ctx context.Context, c Caller, req SignInWithPasswordRequest) (resp *SignInWithPasswordResponse, err error) {
	defer observe("accounts:signInWithPassword", &err)
	log := s.log(ctx, "SignInWithPassword")

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if !sc.Policy().AllowPasswordSignup {
			return errors.ErrPasswordLoginDisabled
		}
		if req.Email == "" {
			return errors.ErrMissingEmail
		}
		if !validation.ValidEmail(req.Email) {
			return errors.ErrInvalidEmail
		}
		if req.Password == "" {
			return errors.ErrMissingPassword
		}

		candidates := sc.AllByEmail(req.Email)
		if len(candidates) == 0 {
			return errors.ErrEmailNotFound
		}
		var acc *types.Account
		for _, cand := range candidates {
			if cand.PasswordHash != "" && password.Verify(req.Password, cand.PasswordHash, cand.Salt) {
				acc = cand
				break
			}
		}
		if acc == nil {
			return errors.ErrInvalidPassword
		}
		if acc.Disabled {
			return errors.ErrUserDisabled
		}

		sess := session{Provider: types.ProviderPassword}
		resp = &SignInWithPasswordResponse{Kind: kindVerifyPassword, Registered: true}
		if acc.HasMfa() {
			acc, pending, err := s.startMfa(sc, acc, sess)
			if err != nil {
				return err
			}
			resp.LocalID, resp.Email, resp.DisplayName = acc.LocalID, acc.Email, acc.DisplayName
			resp.MfaPendingFields = pending
			return nil
		}

		done, tokens, err := s.finishSignIn(ctx, c, sc, acc, sess)
		if err != nil {
			return err
		}
		resp.LocalID, resp.Email, resp.DisplayName = done.LocalID, done.Email, done.DisplayName
		resp.TokenFields = tokens
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug("password sign in", logger.LocalID(resp.LocalID), logger.Bool("mfa_pending", resp.MfaPendingCredential != ""))
	return resp, nil
}
