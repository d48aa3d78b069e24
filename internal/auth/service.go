// Package auth implementa las operaciones del emulador (signUp, signIn*,
// update, MFA, OOB codes, refresh, tenants, config). Cada operación corre
// dentro del lock de su scope: valida, llama a las blocking functions si
// corresponde, aplica una sola mutación en el store y emite tokens.
package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authemu/internal/blocking"
	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/email"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/metrics"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/security/password"
	"github.com/dropDatabas3/authemu/internal/store"
)

// Deps son las dependencias del service.
type Deps struct {
	Store    *store.Store
	Codec    *jwt.Codec
	Blocking blocking.Invoker
	Notifier *email.Notifier
	Password password.Policy

	// BaseURL es el origen público del emulador, se usa para armar oobLink.
	BaseURL string
}

// Service ejecuta las operaciones contra el store.
type Service struct {
	store    *store.Store
	codec    *jwt.Codec
	blocking blocking.Invoker
	notifier *email.Notifier
	policy   password.Policy
	baseURL  string
}

// NewService arma el service con defaults razonables para lo que falte.
func NewService(d Deps) *Service {
	if d.Store == nil {
		d.Store = store.New(store.Options{})
	}
	if d.Codec == nil {
		d.Codec = jwt.NewCodec(d.Store.Clock(), 0)
	}
	if d.Blocking == nil {
		d.Blocking = blocking.NewHTTPInvoker(0, d.Store.Clock())
	}
	if d.Notifier == nil {
		d.Notifier = email.NewNotifier(nil)
	}
	if d.Password.MinLength == 0 {
		d.Password = password.DefaultPolicy
	}
	if d.BaseURL == "" {
		d.BaseURL = "http://localhost:9099"
	}
	return &Service{
		store:    d.Store,
		codec:    d.Codec,
		blocking: d.Blocking,
		notifier: d.Notifier,
		policy:   d.Password,
		baseURL:  d.BaseURL,
	}
}

// Store expone el store (lo usan los controllers de admin y los tests).
func (s *Service) Store() *store.Store { return s.store }

// Caller describe quién hace el request y contra qué scope.
type Caller struct {
	ProjectID string
	// TenantID viene del path; el del body tiene que coincidir.
	TenantID string
	// Privileged: credenciales de admin (Authorization: Bearer owner).
	Privileged bool
	IPAddress  string
	UserAgent  string
}

func (c Caller) tenant(bodyTenant string) (string, error) {
	if c.TenantID != "" && bodyTenant != "" && c.TenantID != bodyTenant {
		return "", errors.ErrTenantIDMismatch
	}
	if c.TenantID != "" {
		return c.TenantID, nil
	}
	return bodyTenant, nil
}

// within resuelve el scope y corre fn con su lock tomado.
func (s *Service) within(ctx context.Context, c Caller, bodyTenant string, fn func(sc *store.Scope) error) error {
	tenantID, err := c.tenant(bodyTenant)
	if err != nil {
		return err
	}
	return s.store.Do(ctx, c.ProjectID, tenantID, fn)
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op(op))
}

// observe registra la métrica de la operación; usar con defer y &err.
func observe(op string, err *error) {
	metrics.ObserveOperation(op, *err)
}

func requireEnabled(sc *store.Scope) error {
	if sc.Policy().DisableAuth {
		return errors.ErrProjectDisabled
	}
	return nil
}

// parseIDToken valida un ID token contra el estado actual de la cuenta.
func (s *Service) parseIDToken(ctx context.Context, sc *store.Scope, token string) (*types.Account, *jwt.IDTokenClaims, error) {
	claims, err := s.codec.DecodeIDToken(token)
	if err != nil {
		return nil, nil, err
	}
	if claims.Signed {
		logger.From(ctx).Warn("received a signed JWT; the emulator does not validate signatures",
			logger.Component("auth"), logger.LocalID(claims.LocalID))
	}
	if claims.ProjectID != sc.ProjectID() {
		return nil, nil, errors.ErrInvalidIDToken.WithDetail("Project ID mismatch")
	}
	if claims.TenantID != sc.TenantID() {
		return nil, nil, errors.ErrTenantIDMismatch
	}
	acc, ok := sc.Get(claims.LocalID)
	if !ok {
		return nil, nil, errors.ErrUserNotFound
	}
	if acc.ValidSince != 0 && claims.IssuedAt < acc.ValidSince {
		return nil, nil, errors.ErrTokenExpired
	}
	if acc.Disabled {
		return nil, nil, errors.ErrUserDisabled
	}
	return acc, claims, nil
}

// targetAccount resuelve la cuenta de update/delete: por idToken o, con
// privilegios, por localId.
func (s *Service) targetAccount(ctx context.Context, c Caller, sc *store.Scope, idToken, localID string) (*types.Account, *jwt.IDTokenClaims, error) {
	if idToken != "" {
		return s.parseIDToken(ctx, sc, idToken)
	}
	if !c.Privileged {
		return nil, nil, errors.ErrMissingIDToken
	}
	if localID == "" {
		return nil, nil, errors.ErrMissingLocalID
	}
	acc, ok := sc.Get(localID)
	if !ok {
		return nil, nil, errors.ErrUserNotFound
	}
	return acc, nil, nil
}
