package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/metrics"
	"github.com/dropDatabas3/authemu/internal/store"
)

// RefreshTokenRequest es el body de securetoken /v1/token (form o JSON).
type RefreshTokenRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenResponse usa snake_case como el endpoint real.
type RefreshTokenResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    string `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

// ExchangeRefreshToken emite un ID token nuevo a partir del refresh token.
// El proyecto y el tenant salen del propio token; si el caller fija un
// proyecto tiene que coincidir.
func (s *Service) ExchangeRefreshToken(ctx context.Context, c Caller, req RefreshTokenRequest) (resp *RefreshTokenResponse, err error) {
	defer observe("token", &err)

	if req.GrantType == "" {
		return nil, errors.ErrMissingGrantType
	}
	if req.GrantType != "refresh_token" {
		return nil, errors.ErrInvalidGrantType
	}
	if req.RefreshToken == "" {
		return nil, errors.ErrMissingRefreshToken
	}
	rec, err := jwt.DecodeRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if c.ProjectID != "" && c.ProjectID != rec.ProjectID {
		return nil, errors.ErrInvalidRefreshToken
	}

	err = s.store.Do(ctx, rec.ProjectID, rec.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		acc, ok := sc.Get(rec.LocalID)
		if !ok {
			return errors.ErrUserNotFound
		}
		if acc.Disabled {
			return errors.ErrUserDisabled
		}
		if acc.ValidSince != 0 && rec.IssuedAt < acc.ValidSince {
			return errors.ErrTokenExpired
		}
		acc.LastRefreshAt = isoTime(sc)
		updated, err := sc.UpdateAccount(acc)
		if err != nil {
			return err
		}
		idToken, err := s.codec.EncodeIDToken(jwt.IDTokenInput{
			ProjectID:      rec.ProjectID,
			TenantID:       rec.TenantID,
			Account:        updated,
			SignInProvider: rec.Provider,
			SecondFactor:   rec.SecondFactor,
			ExtraClaims:    rec.ExtraClaims,
			NotBefore:      issuedAt(sc, updated),
		})
		if err != nil {
			return errors.ErrInternal.WithCause(err)
		}
		metrics.TokenIssued("id_token")
		resp = &RefreshTokenResponse{
			IDToken:      idToken,
			AccessToken:  idToken,
			ExpiresIn:    strconv.FormatInt(int64(s.codec.IDTokenTTL().Seconds()), 10),
			RefreshToken: req.RefreshToken,
			TokenType:    "Bearer",
			UserID:       updated.LocalID,
			ProjectID:    rec.ProjectID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateSessionCookieRequest es el body de projects:createSessionCookie.
type CreateSessionCookieRequest struct {
	IDToken       string `json:"idToken,omitempty"`
	ValidDuration string `json:"validDuration,omitempty"`
	TenantID      string `json:"tenantId,omitempty"`
}

// CreateSessionCookieResponse es la respuesta de projects:createSessionCookie.
type CreateSessionCookieResponse struct {
	SessionCookie string `json:"sessionCookie"`
}

// CreateSessionCookie deriva una session cookie de un ID token válido.
func (s *Service) CreateSessionCookie(ctx context.Context, c Caller, req CreateSessionCookieRequest) (resp *CreateSessionCookieResponse, err error) {
	defer observe("createSessionCookie", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if !c.Privileged {
			return errors.ErrInsufficientPermission
		}
		if req.IDToken == "" {
			return errors.ErrMissingIDToken
		}
		_, claims, err := s.parseIDToken(ctx, sc, req.IDToken)
		if err != nil {
			return err
		}
		var dur time.Duration
		if req.ValidDuration != "" {
			secs, err := strconv.ParseInt(req.ValidDuration, 10, 64)
			if err != nil {
				return errors.ErrInvalidDuration
			}
			dur = time.Duration(secs) * time.Second
		}
		cookie, err := s.codec.EncodeSessionCookie(claims.Raw, dur)
		if err != nil {
			return err
		}
		metrics.TokenIssued("session_cookie")
		resp = &CreateSessionCookieResponse{SessionCookie: cookie}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
