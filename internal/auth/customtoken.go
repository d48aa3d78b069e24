package auth

import (
	"context"
	"encoding/json"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// SignInWithCustomTokenRequest es el body de accounts:signInWithCustomToken.
type SignInWithCustomTokenRequest struct {
	ClientFields
	Token    string `json:"token,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// SignInWithCustomTokenResponse es la respuesta de accounts:signInWithCustomToken.
type SignInWithCustomTokenResponse struct {
	Kind      string `json:"kind"`
	IsNewUser bool   `json:"isNewUser"`
	TokenFields
}

type customTokenPayload struct {
	UID      string
	TenantID string
	Claims   map[string]any
}

func (s *Service) parseCustomToken(ctx context.Context, token string) (*customTokenPayload, error) {
	var claims map[string]any
	if !jwt.IsJWT(token) {
		if err := json.Unmarshal([]byte(token), &claims); err != nil {
			return nil, errors.ErrInvalidCustomToken.WithDetail(err.Error())
		}
	} else {
		decoded, signed, err := jwt.DecodeUnverified(token)
		if err != nil {
			return nil, errors.ErrInvalidCustomToken.WithCause(err)
		}
		if signed {
			logger.From(ctx).Warn("received a signed custom token; the emulator does not validate signatures",
				logger.Component("auth"))
		}
		if aud, _ := decoded["aud"].(string); aud != jwt.CustomTokenAudience {
			return nil, errors.ErrInvalidCustomToken.WithDetail("Invalid audience: " + aud)
		}
		claims = decoded
	}

	out := &customTokenPayload{}
	out.TenantID, _ = claims["tenant_id"].(string)
	uid, present := claims["uid"]
	if !present {
		uid = claims["user_id"]
	}
	if out.UID, _ = uid.(string); out.UID == "" {
		return nil, errors.ErrMissingIdentifier
	}
	if raw, ok := claims["claims"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, errors.ErrInvalidClaims
		}
		if err := validation.CheckForbiddenClaims(m); err != nil {
			return nil, err
		}
		out.Claims = m
	}
	return out, nil
}

// SignInWithCustomToken hace sign-in (o alta) del uid del token. Las claims
// del token van como claims extra de la sesión.
func (s *Service) SignInWithCustomToken(ctx context.Context, c Caller, req SignInWithCustomTokenRequest) (resp *SignInWithCustomTokenResponse, err error) {
	defer observe("accounts:signInWithCustomToken", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.Token == "" {
			return errors.ErrMissingCustomToken
		}
		payload, err := s.parseCustomToken(ctx, req.Token)
		if err != nil {
			return err
		}
		if payload.TenantID != sc.TenantID() {
			return errors.ErrTenantIDMismatch
		}

		sess := session{Provider: types.ProviderCustom, ExtraClaims: payload.Claims}
		acc, ok := sc.Get(payload.UID)
		if !ok {
			acc = &types.Account{LocalID: payload.UID}
			sess.NewUser = true
		} else if acc.Disabled {
			return errors.ErrUserDisabled
		}
		acc.CustomAuth = true

		_, tokens, err := s.finishSignIn(ctx, c, sc, acc, sess)
		if err != nil {
			return err
		}
		resp = &SignInWithCustomTokenResponse{Kind: kindCustomToken, IsNewUser: sess.NewUser, TokenFields: tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
