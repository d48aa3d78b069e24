package auth

import (
	"context"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// SignInWithEmailLinkRequest es el body de accounts:signInWithEmailLink.
type SignInWithEmailLinkRequest struct {
	ClientFields
	Email    string `json:"email,omitempty"`
	OobCode  string `json:"oobCode,omitempty"`
	IDToken  string `json:"idToken,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// SignInWithEmailLinkResponse es la respuesta de accounts:signInWithEmailLink.
type SignInWithEmailLinkResponse struct {
	Kind      string `json:"kind"`
	LocalID   string `json:"localId"`
	Email     string `json:"email"`
	IsNewUser bool   `json:"isNewUser"`
	TokenFields
	MfaPendingFields
}

// SignInWithEmailLink consume un código EMAIL_SIGNIN. Marca el email como
// verificado y, si viene idToken, lo asocia a esa cuenta.
func (s *Service) SignInWithEmailLink(ctx context.Context, c Caller, req SignInWithEmailLinkRequest) (resp *SignInWithEmailLinkResponse, err error) {
	defer observe("accounts:signInWithEmailLink", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		pol := sc.Policy()
		if !pol.EnableEmailLinkSignin {
			return errors.ErrOperationNotAllowed
		}
		if req.Email == "" {
			return errors.ErrMissingEmail
		}
		if req.OobCode == "" {
			return errors.ErrMissingOobCode
		}
		rec, err := sc.PeekOobCode(req.OobCode)
		if err != nil {
			return err
		}
		if rec.RequestType != types.OobEmailSignin {
			return errors.ErrInvalidOobCode
		}
		email := validation.CanonicalizeEmail(req.Email)
		if email != validation.CanonicalizeEmail(rec.Email) {
			return errors.ErrInvalidEmail.WithDetail("The email provided does not match the sign-in email address.")
		}

		sess := session{Provider: types.ProviderPassword}
		var acc *types.Account
		if req.IDToken != "" {
			user, _, err := s.parseIDToken(ctx, sc, req.IDToken)
			if err != nil {
				return err
			}
			if !pol.AllowDuplicateEmails {
				if owner, ok := sc.ByEmail(email); ok && owner.LocalID != user.LocalID {
					return errors.ErrEmailExists
				}
			}
			acc = user
			sess.SkipSignInTrigger = true
		} else if existing, ok := sc.ByEmail(email); ok {
			if existing.Disabled {
				return errors.ErrUserDisabled
			}
			acc = existing
		} else {
			acc = &types.Account{}
			sess.NewUser = true
		}
		acc.Email = email
		acc.EmailVerified = true
		acc.EmailLinkSignin = true

		resp = &SignInWithEmailLinkResponse{Kind: kindEmailLink, Email: email, IsNewUser: sess.NewUser}
		if !sess.NewUser && req.IDToken == "" && acc.HasMfa() {
			acc, pending, err := s.startMfa(sc, acc, sess)
			if err != nil {
				return err
			}
			resp.LocalID = acc.LocalID
			resp.MfaPendingFields = pending
			_, err = sc.ConsumeOobCode(req.OobCode)
			return err
		}
		done, tokens, err := s.finishSignIn(ctx, c, sc, acc, sess)
		if err != nil {
			return err
		}
		resp.LocalID = done.LocalID
		resp.TokenFields = tokens
		_, err = sc.ConsumeOobCode(req.OobCode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
