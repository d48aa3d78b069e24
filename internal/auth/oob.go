package auth

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/security/password"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// modo del link de acción por tipo de código
var oobModes = map[string]string{
	types.OobVerifyEmail:          "verifyEmail",
	types.OobPasswordReset:        "resetPassword",
	types.OobEmailSignin:          "signIn",
	types.OobVerifyAndChangeEmail: "verifyAndChangeEmail",
	types.OobRecoverEmail:         "recoverEmail",
}

// SendOobCodeRequest es el body de accounts:sendOobCode.
type SendOobCodeRequest struct {
	ClientFields
	RequestType        string `json:"requestType,omitempty"`
	Email              string `json:"email,omitempty"`
	NewEmail           string `json:"newEmail,omitempty"`
	IDToken            string `json:"idToken,omitempty"`
	ContinueURL        string `json:"continueUrl,omitempty"`
	CanHandleCodeInApp bool   `json:"canHandleCodeInApp,omitempty"`
	ReturnOobLink      bool   `json:"returnOobLink,omitempty"`
	IOSBundleID        string `json:"iOSBundleId,omitempty"`
	AndroidPackageName string `json:"androidPackageName,omitempty"`
	AndroidInstallApp  bool   `json:"androidInstallApp,omitempty"`
	AndroidMinVersion  string `json:"androidMinimumVersion,omitempty"`
	DynamicLinkDomain  string `json:"dynamicLinkDomain,omitempty"`
	LinkDomain         string `json:"linkDomain,omitempty"`
	UserIP             string `json:"userIp,omitempty"`
	TenantID           string `json:"tenantId,omitempty"`
}

// SendOobCodeResponse trae oobCode/oobLink solo si el caller pidió returnOobLink.
type SendOobCodeResponse struct {
	Kind    string `json:"kind"`
	Email   string `json:"email,omitempty"`
	OobCode string `json:"oobCode,omitempty"`
	OobLink string `json:"oobLink,omitempty"`
}

// oobLinkFor arma el link de acción que apunta al propio emulador.
func (s *Service) oobLinkFor(requestType, tenantID, continueURL string) func(code string) string {
	return func(code string) string {
		link := s.baseURL + "/emulator/action?mode=" + oobModes[requestType] +
			"&lang=en&oobCode=" + url.QueryEscape(code) + "&apiKey=fake-api-key"
		if tenantID != "" {
			link += "&tenantId=" + url.QueryEscape(tenantID)
		}
		if continueURL != "" {
			link += "&continueUrl=" + url.QueryEscape(continueURL)
		}
		return link
	}
}

// SendOobCode registra un código out-of-band y manda el mail.
func (s *Service) SendOobCode(ctx context.Context, c Caller, req SendOobCodeRequest) (resp *SendOobCodeResponse, err error) {
	defer observe("accounts:sendOobCode", &err)
	log := s.log(ctx, "SendOobCode")

	var rec types.OobRecord
	sent := false
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.RequestType == "" {
			return errors.ErrMissingReqType
		}
		if req.ReturnOobLink && !c.Privileged {
			return errors.ErrInsufficientPermission
		}
		if req.ContinueURL != "" && !validation.ValidContinueURL(req.ContinueURL) {
			return errors.ErrInvalidContinueURI
		}
		pol := sc.Policy()

		pending := types.OobRecord{RequestType: req.RequestType}
		switch req.RequestType {
		case types.OobEmailSignin:
			if !pol.EnableEmailLinkSignin {
				return errors.ErrOperationNotAllowed
			}
			email, err := requireEmail(req.Email)
			if err != nil {
				return err
			}
			pending.Email = email

		case types.OobPasswordReset:
			email, err := requireEmail(req.Email)
			if err != nil {
				return err
			}
			acc, ok := sc.ByEmail(email)
			if !ok {
				if pol.ImprovedEmailPrivacy {
					// no revelamos si el mail existe
					resp = &SendOobCodeResponse{Kind: kindOobCode, Email: email}
					return nil
				}
				return errors.ErrEmailNotFound
			}
			pending.Email, pending.LocalID = acc.Email, acc.LocalID

		case types.OobVerifyEmail:
			var acc *types.Account
			if req.IDToken != "" {
				user, _, err := s.parseIDToken(ctx, sc, req.IDToken)
				if err != nil {
					return err
				}
				acc = user
			} else if c.Privileged && req.Email != "" {
				email, err := requireEmail(req.Email)
				if err != nil {
					return err
				}
				owner, ok := sc.ByEmail(email)
				if !ok {
					return errors.ErrEmailNotFound
				}
				acc = owner
			} else {
				return errors.ErrMissingIDToken
			}
			if acc.Email == "" {
				return errors.ErrMissingEmail
			}
			pending.Email, pending.LocalID = acc.Email, acc.LocalID

		case types.OobVerifyAndChangeEmail:
			if req.IDToken == "" {
				return errors.ErrMissingIDToken
			}
			user, _, err := s.parseIDToken(ctx, sc, req.IDToken)
			if err != nil {
				return err
			}
			newEmail, err := requireEmail(req.NewEmail)
			if err != nil {
				return err
			}
			if !pol.AllowDuplicateEmails {
				if owner, ok := sc.ByEmail(newEmail); ok && owner.LocalID != user.LocalID {
					return errors.ErrEmailExists
				}
			}
			pending.Email, pending.NewEmail, pending.LocalID = user.Email, newEmail, user.LocalID

		default:
			return errors.ErrInvalidReqType.WithDetail("Unsupported request parameters.")
		}

		rec = sc.PutOobCode(pending, s.oobLinkFor(req.RequestType, sc.TenantID(), req.ContinueURL))
		sent = true
		resp = &SendOobCodeResponse{Kind: kindOobCode, Email: rec.Email}
		if req.ReturnOobLink {
			resp.OobCode, resp.OobLink = rec.OobCode, rec.OobLink
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sent {
		log.Info("oob code issued", logger.Email(rec.Email), logger.String("request_type", rec.RequestType))
		if !req.ReturnOobLink {
			s.notifier.SendOob(ctx, rec)
		}
	}
	return resp, nil
}

func requireEmail(email string) (string, error) {
	if email == "" {
		return "", errors.ErrMissingEmail
	}
	if !validation.ValidEmail(email) {
		return "", errors.ErrInvalidEmail
	}
	return validation.CanonicalizeEmail(email), nil
}

// ResetPasswordRequest es el body de accounts:resetPassword.
type ResetPasswordRequest struct {
	OobCode     string `json:"oobCode,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
	Email       string `json:"email,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
}

// ResetPasswordResponse es la respuesta de accounts:resetPassword.
type ResetPasswordResponse struct {
	Kind        string `json:"kind"`
	RequestType string `json:"requestType"`
	Email       string `json:"email,omitempty"`
	NewEmail    string `json:"newEmail,omitempty"`
}

// ResetPassword sin newPassword solo inspecciona el código; con newPassword
// lo consume, cambia la contraseña y revoca los tokens anteriores.
func (s *Service) ResetPassword(ctx context.Context, c Caller, req ResetPasswordRequest) (resp *ResetPasswordResponse, err error) {
	defer observe("accounts:resetPassword", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if !sc.Policy().AllowPasswordSignup {
			return errors.ErrPasswordLoginDisabled
		}
		if req.OobCode == "" {
			return errors.ErrMissingOobCode
		}
		rec, err := sc.PeekOobCode(req.OobCode)
		if err != nil {
			return err
		}
		resp = &ResetPasswordResponse{Kind: kindResetPassword, RequestType: rec.RequestType, Email: rec.Email, NewEmail: rec.NewEmail}
		if req.NewPassword == "" {
			return nil
		}
		if rec.RequestType != types.OobPasswordReset {
			return errors.ErrInvalidOobCode
		}
		if err := s.policy.Check(req.NewPassword); err != nil {
			return err
		}
		acc, ok := sc.Get(rec.LocalID)
		if !ok {
			return errors.ErrUserNotFound
		}
		acc.Salt = password.NewSalt()
		acc.PasswordHash = password.Hash(req.NewPassword, acc.Salt)
		acc.PasswordUpdatedAt = sc.NowMillis()
		revokeTokens(sc, acc)
		acc.EmailVerified = true
		if _, err := sc.UpdateAccount(acc); err != nil {
			return err
		}
		_, err = sc.ConsumeOobCode(req.OobCode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// applyOobCode aplica un código VERIFY_EMAIL, VERIFY_AND_CHANGE_EMAIL o
// RECOVER_EMAIL (accounts:update con oobCode).
func (s *Service) applyOobCode(ctx context.Context, sc *store.Scope, code string) (*types.Account, *types.OobRecord, error) {
	rec, err := sc.PeekOobCode(code)
	if err != nil {
		return nil, nil, err
	}
	acc, ok := sc.Get(rec.LocalID)
	if !ok {
		return nil, nil, errors.ErrUserNotFound
	}

	var recovery *types.OobRecord
	switch rec.RequestType {
	case types.OobVerifyEmail:
		if validation.CanonicalizeEmail(acc.Email) != validation.CanonicalizeEmail(rec.Email) {
			return nil, nil, errors.ErrInvalidOobCode
		}
		acc.EmailVerified = true

	case types.OobVerifyAndChangeEmail:
		if !sc.Policy().AllowDuplicateEmails {
			if owner, ok := sc.ByEmail(rec.NewEmail); ok && owner.LocalID != acc.LocalID {
				return nil, nil, errors.ErrEmailExists
			}
		}
		old := acc.Email
		acc.Email = rec.NewEmail
		acc.EmailVerified = true
		if old != "" {
			// Email = el actual, NewEmail = el que se restaura
			r := types.OobRecord{RequestType: types.OobRecoverEmail, Email: rec.NewEmail, NewEmail: old, LocalID: acc.LocalID}
			recovery = &r
		}

	case types.OobRecoverEmail:
		if !sc.Policy().AllowDuplicateEmails {
			if owner, ok := sc.ByEmail(rec.NewEmail); ok && owner.LocalID != acc.LocalID {
				return nil, nil, errors.ErrEmailExists
			}
		}
		acc.Email = rec.NewEmail
		acc.EmailVerified = true

	default:
		return nil, nil, errors.ErrInvalidOobCode
	}

	updated, err := sc.UpdateAccount(acc)
	if err != nil {
		return nil, nil, err
	}
	if _, err := sc.ConsumeOobCode(code); err != nil {
		return nil, nil, err
	}
	if recovery != nil {
		r := sc.PutOobCode(*recovery, s.oobLinkFor(types.OobRecoverEmail, sc.TenantID(), ""))
		recovery = &r
	}
	return updated, recovery, nil
}

// LocateOobCode busca en qué scope vive un código. Lo usa /emulator/action,
// cuyo link no lleva el proyecto.
func (s *Service) LocateOobCode(code, tenantID string) (projectID string, ok bool) {
	for _, id := range s.store.ProjectIDs() {
		var found bool
		_ = s.store.DoExisting(context.Background(), id, tenantID, func(sc *store.Scope) error {
			_, err := sc.PeekOobCode(code)
			found = err == nil || errors.CodeOf(err) == errors.ErrExpiredOobCode.Code
			return nil
		})
		if found {
			return id, true
		}
	}
	return "", false
}
