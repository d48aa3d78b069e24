package auth

import (
	"context"
	"strconv"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/metrics"
	"github.com/dropDatabas3/authemu/internal/store"
)

// session describe cómo termina un flujo de sign-in.
type session struct {
	Provider     string
	SecondFactor *jwt.SecondFactor
	ExtraClaims  map[string]any

	// NewUser: la cuenta todavía no existe en el store; se crea al final.
	NewUser bool
	// SkipSignInTrigger evita beforeSignIn (ej: signUp privilegiado).
	SkipSignInTrigger bool

	RawUserInfo string
	OAuth       oauthCredentials
}

type oauthCredentials struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// issueTokens emite ID token y refresh token para la cuenta ya persistida.
func (s *Service) issueTokens(sc *store.Scope, acc *types.Account, provider string, sf *jwt.SecondFactor, extra map[string]any) (TokenFields, error) {
	iat := issuedAt(sc, acc)
	idToken, err := s.codec.EncodeIDToken(jwt.IDTokenInput{
		ProjectID:      sc.ProjectID(),
		TenantID:       sc.TenantID(),
		Account:        acc,
		SignInProvider: provider,
		SecondFactor:   sf,
		ExtraClaims:    extra,
		NotBefore:      iat,
	})
	if err != nil {
		return TokenFields{}, errors.ErrInternal.WithCause(err)
	}
	refresh, err := s.codec.EncodeRefreshToken(jwt.RefreshRecord{
		LocalID:      acc.LocalID,
		Provider:     provider,
		ExtraClaims:  extra,
		ProjectID:    sc.ProjectID(),
		TenantID:     sc.TenantID(),
		SecondFactor: sf,
		IssuedAt:     iat,
	})
	if err != nil {
		return TokenFields{}, errors.ErrInternal.WithCause(err)
	}
	metrics.TokenIssued("id_token")
	metrics.TokenIssued("refresh_token")
	return TokenFields{
		IDToken:      idToken,
		RefreshToken: refresh,
		ExpiresIn:    strconv.FormatInt(int64(s.codec.IDTokenTTL().Seconds()), 10),
	}, nil
}

// finishSignIn lleva la cuenta a Fully-Authenticated: blocking functions,
// lastLoginAt, persistencia (create o update) y tokens.
func (s *Service) finishSignIn(ctx context.Context, c Caller, sc *store.Scope, acc *types.Account, sess session) (*types.Account, TokenFields, error) {
	extra := cloneClaims(sess.ExtraClaims)

	if sess.NewUser {
		if acc.LocalID == "" {
			acc.LocalID = sc.NewLocalID()
		}
		if _, err := s.runBlocking(ctx, c, sc, acc, types.TriggerBeforeCreate, sess); err != nil {
			return nil, TokenFields{}, err
		}
	}
	if !sess.SkipSignInTrigger {
		sessionClaims, err := s.runBlocking(ctx, c, sc, acc, types.TriggerBeforeSignIn, sess)
		if err != nil {
			return nil, TokenFields{}, err
		}
		for k, v := range sessionClaims {
			extra[k] = v
		}
	}

	acc.LastLoginAt = sc.NowMillis()
	var err error
	if sess.NewUser {
		acc, err = sc.CreateAccount(acc, store.CreateOptions{})
	} else {
		acc, err = sc.UpdateAccount(acc)
	}
	if err != nil {
		return nil, TokenFields{}, err
	}

	tokens, err := s.issueTokens(sc, acc, sess.Provider, sess.SecondFactor, extra)
	if err != nil {
		return nil, TokenFields{}, err
	}
	return acc, tokens, nil
}

// startMfa deja la cuenta en MFA-Pending: persiste lo que cambió en el
// primer factor y emite la credencial pendiente. No toca lastLoginAt.
func (s *Service) startMfa(sc *store.Scope, acc *types.Account, sess session) (*types.Account, MfaPendingFields, error) {
	acc, err := sc.UpdateAccount(acc)
	if err != nil {
		return nil, MfaPendingFields{}, err
	}
	cred := sc.PutMfaPending(types.MfaPending{
		LocalID:     acc.LocalID,
		Provider:    sess.Provider,
		ExtraClaims: cloneClaims(sess.ExtraClaims),
	})
	return acc, MfaPendingFields{
		MfaPendingCredential: cred,
		MfaInfo:              redactedMfaInfo(acc.MfaInfo),
	}, nil
}
