package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/security/password"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// SignUpRequest es el body de accounts:signUp.
type SignUpRequest struct {
	ClientFields
	Email         string               `json:"email,omitempty"`
	Password      string               `json:"password,omitempty"`
	DisplayName   string               `json:"displayName,omitempty"`
	PhotoURL      string               `json:"photoUrl,omitempty"`
	IDToken       string               `json:"idToken,omitempty"`
	TenantID      string               `json:"tenantId,omitempty"`
	LocalID       string               `json:"localId,omitempty"`
	PhoneNumber   string               `json:"phoneNumber,omitempty"`
	EmailVerified bool                 `json:"emailVerified,omitempty"`
	Disabled      bool                 `json:"disabled,omitempty"`
	MfaInfo       []MfaEnrollmentInput `json:"mfaInfo,omitempty"`
}

// SignUpResponse es la respuesta de accounts:signUp.
type SignUpResponse struct {
	Kind        string `json:"kind"`
	LocalID     string `json:"localId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	TokenFields
}

// SignUp crea una cuenta (email/password, anónima o, con privilegios, con
// campos de admin) o convierte una cuenta anónima cuando viene idToken.
func (s *Service) SignUp(ctx context.Context, c Caller, req SignUpRequest) (resp *SignUpResponse, err error) {
	defer observe("accounts:signUp", &err)
	log := s.log(ctx, "SignUp")

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		pol := sc.Policy()

		if !c.Privileged {
			switch {
			case req.LocalID != "":
				return errors.ErrUnexpectedParameter.WithDetail("User ID")
			case req.PhoneNumber != "":
				return errors.ErrUnexpectedParameter.WithDetail("Phone number")
			case req.EmailVerified:
				return errors.ErrUnexpectedParameter.WithDetail("Email verified status")
			case req.Disabled:
				return errors.ErrUnexpectedParameter.WithDetail("Disabled flag")
			case len(req.MfaInfo) > 0:
				return errors.ErrUnexpectedParameter.WithDetail("MFA info")
			}
		}

		email := ""
		if req.Email != "" {
			if !validation.ValidEmail(req.Email) {
				return errors.ErrInvalidEmail
			}
			email = validation.CanonicalizeEmail(req.Email)
		}
		if req.Password != "" {
			if err := s.policy.Check(req.Password); err != nil {
				return err
			}
		}

		var acc *types.Account
		sess := session{NewUser: true}
		if req.IDToken != "" {
			user, claims, err := s.parseIDToken(ctx, sc, req.IDToken)
			if err != nil {
				return err
			}
			acc = user
			sess = session{Provider: claims.SignInProvider}
		} else {
			acc = &types.Account{LocalID: req.LocalID}
			if acc.LocalID != "" && sc.Exists(acc.LocalID) {
				return errors.ErrDuplicateLocalID.WithDetail(acc.LocalID)
			}
		}

		switch {
		case email == "" && req.Password == "":
			if req.IDToken == "" && !c.Privileged && !pol.EnableAnonymousUser {
				return errors.ErrAdminOnlyOperation
			}
			if sess.Provider == "" {
				sess.Provider = types.ProviderAnonymous
			}
		case email == "" && !c.Privileged:
			return errors.ErrMissingEmail
		case req.Password == "" && !c.Privileged:
			return errors.ErrMissingPassword
		default:
			if !c.Privileged && !pol.AllowPasswordSignup {
				return errors.ErrOperationNotAllowed
			}
			sess.Provider = types.ProviderPassword
		}

		if email != "" && email != acc.Email && !pol.AllowDuplicateEmails {
			if owner, ok := sc.ByEmail(email); ok && owner.LocalID != acc.LocalID {
				return errors.ErrEmailExists
			}
		}

		if email != "" {
			acc.Email = email
		}
		if req.Password != "" {
			acc.Salt = password.NewSalt()
			acc.PasswordHash = password.Hash(req.Password, acc.Salt)
			acc.PasswordUpdatedAt = sc.NowMillis()
			revokeTokens(sc, acc)
		}
		if req.DisplayName != "" {
			acc.DisplayName = req.DisplayName
		}
		if req.PhotoURL != "" {
			acc.PhotoURL = req.PhotoURL
		}

		if c.Privileged {
			if req.PhoneNumber != "" {
				if !validation.ValidPhoneNumber(req.PhoneNumber) {
					return errors.ErrInvalidPhoneNumber
				}
				acc.PhoneNumber = req.PhoneNumber
			}
			acc.EmailVerified = acc.EmailVerified || req.EmailVerified
			acc.Disabled = req.Disabled
			if len(req.MfaInfo) > 0 {
				enrollments, err := buildEnrollments(sc, req.MfaInfo)
				if err != nil {
					return err
				}
				acc.MfaInfo = enrollments
			}
		}

		if c.Privileged && req.IDToken == "" {
			// Alta administrativa: no hay sesión ni blocking functions.
			if acc.LocalID == "" {
				acc.LocalID = sc.NewLocalID()
			}
			created, err := sc.CreateAccount(acc, store.CreateOptions{})
			if err != nil {
				return err
			}
			resp = &SignUpResponse{Kind: kindSignUp, LocalID: created.LocalID, Email: created.Email, DisplayName: created.DisplayName}
			return nil
		}

		if sess.NewUser && email == "" {
			// Las anónimas no disparan blocking functions.
			sess.SkipSignInTrigger = true
			acc.LocalID = sc.NewLocalID()
			acc.LastLoginAt = sc.NowMillis()
			created, err := sc.CreateAccount(acc, store.CreateOptions{})
			if err != nil {
				return err
			}
			tokens, err := s.issueTokens(sc, created, sess.Provider, nil, nil)
			if err != nil {
				return err
			}
			resp = &SignUpResponse{Kind: kindSignUp, LocalID: created.LocalID, TokenFields: tokens}
			return nil
		}
		if !sess.NewUser {
			sess.SkipSignInTrigger = true
		}

		done, tokens, err := s.finishSignIn(ctx, c, sc, acc, sess)
		if err != nil {
			return err
		}
		resp = &SignUpResponse{Kind: kindSignUp, LocalID: done.LocalID, Email: done.Email, DisplayName: done.DisplayName, TokenFields: tokens}
		return nil
	})
	if err != nil {
		log.Debug("sign up rejected", logger.Err(err))
		return nil, err
	}
	log.Info("account signed up", logger.LocalID(resp.LocalID))
	return resp, nil
}

// buildEnrollments normaliza una lista de segundos factores: valida teléfonos,
// colapsa teléfonos repetidos y exige IDs únicos.
func buildEnrollments(sc *store.Scope, in []MfaEnrollmentInput) ([]types.MfaEnrollment, error) {
	out := make([]types.MfaEnrollment, 0, len(in))
	phones := map[string]bool{}
	ids := map[string]bool{}
	for _, e := range in {
		if !validation.ValidPhoneNumber(e.PhoneInfo) {
			return nil, errors.ErrInvalidMfaPhoneNumber
		}
		if phones[e.PhoneInfo] {
			continue
		}
		phones[e.PhoneInfo] = true

		id := e.MfaEnrollmentID
		if id == "" {
			id = uuid.NewString()
		}
		if ids[id] {
			return nil, errors.ErrDuplicateMfaEnrollment.WithDetail(id)
		}
		ids[id] = true

		enrolledAt := e.EnrolledAt
		if enrolledAt == "" {
			enrolledAt = isoTime(sc)
		}
		out = append(out, types.MfaEnrollment{
			MfaEnrollmentID: id,
			DisplayName:     e.DisplayName,
			PhoneInfo:       e.PhoneInfo,
			EnrolledAt:      enrolledAt,
		})
	}
	return out, nil
}
