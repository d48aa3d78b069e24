package auth

import (
	"context"
	"encoding/json"

	"github.com/dropDatabas3/authemu/internal/blocking"
	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/metrics"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// runBlocking llama al trigger si hay functionUri configurado y aplica el
// delta sobre acc. Devuelve las sessionClaims (solo beforeSignIn las puede
// setear). disabled:true aborta con USER_DISABLED.
func (s *Service) runBlocking(ctx context.Context, c Caller, sc *store.Scope, acc *types.Account, trigger string, sess session) (map[string]any, error) {
	pol := sc.Policy()
	uri := pol.TriggerURI(trigger)
	if uri == "" {
		return nil, nil
	}
	log := logger.From(ctx).With(logger.Component("auth.blocking"), logger.Trigger(trigger), logger.LocalID(acc.LocalID))

	ev := blocking.Event{
		Trigger:      trigger,
		ProjectID:    sc.ProjectID(),
		TenantID:     sc.TenantID(),
		Account:      acc,
		SignInMethod: sess.Provider,
		RawUserInfo:  sess.RawUserInfo,
		IPAddress:    c.IPAddress,
		UserAgent:    c.UserAgent,
	}
	if sess.SecondFactor != nil {
		ev.SignInSecondFactor = sess.SecondFactor.Factor
	}
	fwd := sc.Project().Config().BlockingFunctions.ForwardInboundCredentials
	if fwd.IDToken {
		ev.OAuthIDToken = sess.OAuth.IDToken
	}
	if fwd.AccessToken {
		ev.OAuthAccessToken = sess.OAuth.AccessToken
	}
	if fwd.RefreshToken {
		ev.OAuthRefreshToken = sess.OAuth.RefreshToken
	}

	delta, err := s.blocking.Invoke(ctx, uri, ev)
	metrics.BlockingCall(trigger, err)
	if err != nil {
		log.Warn("blocking function failed", logger.Err(err))
		return nil, errors.ErrBlockingFunctionResponse.WithDetail(err.Error()).WithCause(err)
	}
	if delta.Empty() {
		return nil, nil
	}

	if delta.DisplayName != nil {
		acc.DisplayName = *delta.DisplayName
	}
	if delta.PhotoURL != nil {
		acc.PhotoURL = *delta.PhotoURL
	}
	if delta.EmailVerified != nil {
		acc.EmailVerified = *delta.EmailVerified
	}
	if delta.CustomClaims != nil {
		raw, err := json.Marshal(delta.CustomClaims)
		if err != nil {
			return nil, errors.ErrBlockingFunctionResponse.WithCause(err)
		}
		if _, err := validation.ValidateCustomClaims(string(raw)); err != nil {
			return nil, errors.ErrBlockingFunctionResponse.WithDetail(errors.FromError(err).Message())
		}
		acc.CustomAttributes = string(raw)
	}
	if delta.Disabled != nil {
		acc.Disabled = *delta.Disabled
	}
	if acc.Disabled {
		log.Info("blocking function disabled the user")
		return nil, errors.ErrUserDisabled
	}

	if trigger != types.TriggerBeforeSignIn || delta.SessionClaims == nil {
		return nil, nil
	}
	if err := validation.CheckForbiddenClaims(delta.SessionClaims); err != nil {
		return nil, errors.ErrBlockingFunctionResponse.WithDetail(errors.FromError(err).Message())
	}
	return delta.SessionClaims, nil
}
