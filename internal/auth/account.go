package auth

import (
	"context"
	"sort"
	"strconv"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/security/password"
	tokens "github.com/dropDatabas3/authemu/internal/security/token"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// MfaUpdate reemplaza la lista completa de segundos factores.
type MfaUpdate struct {
	Enrollments []MfaEnrollmentInput `json:"enrollments"`
}

// SetAccountInfoRequest es el body de accounts:update.
type SetAccountInfoRequest struct {
	ClientFields
	IDToken          string     `json:"idToken,omitempty"`
	LocalID          string     `json:"localId,omitempty"`
	OobCode          string     `json:"oobCode,omitempty"`
	Email            string     `json:"email,omitempty"`
	Password         string     `json:"password,omitempty"`
	DisplayName      *string    `json:"displayName,omitempty"`
	PhotoURL         *string    `json:"photoUrl,omitempty"`
	PhoneNumber      string     `json:"phoneNumber,omitempty"`
	DeleteAttribute  []string   `json:"deleteAttribute,omitempty"`
	DeleteProvider   []string   `json:"deleteProvider,omitempty"`
	EmailVerified    *bool      `json:"emailVerified,omitempty"`
	DisableUser      *bool      `json:"disableUser,omitempty"`
	ValidSince       string     `json:"validSince,omitempty"`
	CustomAttributes *string    `json:"customAttributes,omitempty"`
	Mfa              *MfaUpdate `json:"mfa,omitempty"`
	TenantID         string     `json:"tenantId,omitempty"`
}

// SetAccountInfoResponse es la respuesta de accounts:update.
type SetAccountInfoResponse struct {
	Kind             string                   `json:"kind"`
	LocalID          string                   `json:"localId"`
	Email            string                   `json:"email,omitempty"`
	EmailVerified    bool                     `json:"emailVerified,omitempty"`
	DisplayName      string                   `json:"displayName,omitempty"`
	PhotoURL         string                   `json:"photoUrl,omitempty"`
	PasswordHash     string                   `json:"passwordHash,omitempty"`
	ProviderUserInfo []types.ProviderUserInfo `json:"providerUserInfo,omitempty"`
	NewEmail         string                   `json:"newEmail,omitempty"`
	RequestType      string                   `json:"requestType,omitempty"`
	TokenFields
}

func setAccountInfoResponse(acc *types.Account) *SetAccountInfoResponse {
	resp := &SetAccountInfoResponse{
		Kind:             kindSetAccountInfo,
		LocalID:          acc.LocalID,
		Email:            acc.Email,
		EmailVerified:    acc.EmailVerified,
		DisplayName:      acc.DisplayName,
		PhotoURL:         acc.PhotoURL,
		ProviderUserInfo: acc.ProviderUserInfo,
	}
	if acc.PasswordHash != "" {
		resp.PasswordHash = "UkVEQUNURUQ="
	}
	return resp
}

// SetAccountInfo modifica la cuenta del idToken (o, con privilegios, la de
// localId), o aplica un oobCode de verificación / cambio de email.
func (s *Service) SetAccountInfo(ctx context.Context, c Caller, req SetAccountInfoRequest) (resp *SetAccountInfoResponse, err error) {
	defer observe("accounts:update", &err)
	log := s.log(ctx, "SetAccountInfo")

	var recovery *types.OobRecord
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.OobCode != "" {
			acc, rec, err := s.applyOobCode(ctx, sc, req.OobCode)
			if err != nil {
				return err
			}
			recovery = rec
			resp = setAccountInfoResponse(acc)
			return nil
		}

		acc, claims, err := s.targetAccount(ctx, c, sc, req.IDToken, req.LocalID)
		if err != nil {
			return err
		}
		if !c.Privileged {
			if req.CustomAttributes != nil || req.DisableUser != nil || req.EmailVerified != nil ||
				req.ValidSince != "" || req.Mfa != nil {
				return errors.ErrInsufficientPermission
			}
		}
		pol := sc.Policy()
		credentialsChanged := false

		if req.Email != "" {
			email, err := requireEmail(req.Email)
			if err != nil {
				return err
			}
			if email != acc.Email {
				if !pol.AllowDuplicateEmails {
					if owner, ok := sc.ByEmail(email); ok && owner.LocalID != acc.LocalID {
						return errors.ErrEmailExists
					}
				}
				acc.Email = email
				acc.EmailVerified = false
				credentialsChanged = true
			}
		}
		if req.Password != "" {
			if err := s.policy.Check(req.Password); err != nil {
				return err
			}
			acc.Salt = password.NewSalt()
			acc.PasswordHash = password.Hash(req.Password, acc.Salt)
			acc.PasswordUpdatedAt = sc.NowMillis()
			revokeTokens(sc, acc)
			credentialsChanged = true
		}
		if req.PhoneNumber != "" {
			if !validation.ValidPhoneNumber(req.PhoneNumber) {
				return errors.ErrInvalidPhoneNumber
			}
			if acc.HasMfa() && !c.Privileged {
				return errPhoneFirstFactorOnMfaUser
			}
			acc.PhoneNumber = req.PhoneNumber
		}
		if req.DisplayName != nil {
			acc.DisplayName = *req.DisplayName
		}
		if req.PhotoURL != nil {
			acc.PhotoURL = *req.PhotoURL
		}
		for _, attr := range req.DeleteAttribute {
			switch attr {
			case "DISPLAY_NAME":
				acc.DisplayName = ""
			case "PHOTO_URL":
				acc.PhotoURL = ""
			}
		}
		for _, p := range req.DeleteProvider {
			switch p {
			case types.ProviderPhone:
				acc.PhoneNumber = ""
			case types.ProviderPassword:
				acc.PasswordHash, acc.Salt = "", ""
				acc.EmailLinkSignin = false
			default:
				acc.RemoveProvider(p)
			}
		}

		if c.Privileged {
			if req.CustomAttributes != nil {
				if *req.CustomAttributes == "" {
					acc.CustomAttributes = ""
				} else {
					if _, err := validation.ValidateCustomClaims(*req.CustomAttributes); err != nil {
						return err
					}
					acc.CustomAttributes = *req.CustomAttributes
				}
			}
			if req.DisableUser != nil {
				acc.Disabled = *req.DisableUser
			}
			if req.EmailVerified != nil {
				acc.EmailVerified = *req.EmailVerified
			}
			if req.ValidSince != "" {
				v, err := strconv.ParseInt(req.ValidSince, 10, 64)
				if err != nil {
					return errors.ErrInvalidJSON.WithDetail("Invalid value for validSince")
				}
				acc.ValidSince = v
			}
			if req.Mfa != nil {
				enrollments, err := buildEnrollments(sc, req.Mfa.Enrollments)
				if err != nil {
					return err
				}
				acc.MfaInfo = enrollments
			}
		}

		updated, err := sc.UpdateAccount(acc)
		if err != nil {
			return err
		}
		resp = setAccountInfoResponse(updated)

		// La sesión vieja quedó revocada; el cliente recibe tokens nuevos.
		if claims != nil && credentialsChanged {
			toks, err := s.issueTokens(sc, updated, claims.SignInProvider, claims.SecondFactor, nil)
			if err != nil {
				return err
			}
			resp.TokenFields = toks
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if recovery != nil {
		s.notifier.SendOob(ctx, *recovery)
	}
	log.Debug("account updated", logger.LocalID(resp.LocalID))
	return resp, nil
}

// FederatedUserID identifica una cuenta por (providerId, rawId).
type FederatedUserID struct {
	ProviderID string `json:"providerId"`
	RawID      string `json:"rawId"`
}

// LookupRequest es el body de accounts:lookup.
type LookupRequest struct {
	IDToken         string            `json:"idToken,omitempty"`
	LocalID         []string          `json:"localId,omitempty"`
	Email           []string          `json:"email,omitempty"`
	PhoneNumber     []string          `json:"phoneNumber,omitempty"`
	FederatedUserID []FederatedUserID `json:"federatedUserId,omitempty"`
	InitialEmail    []string          `json:"initialEmail,omitempty"`
	TenantID        string            `json:"tenantId,omitempty"`
	TargetProjectID string            `json:"targetProjectId,omitempty"`
}

// LookupResponse es la respuesta de accounts:lookup.
type LookupResponse struct {
	Kind  string      `json:"kind"`
	Users []*UserInfo `json:"users,omitempty"`
}

// Lookup devuelve la cuenta del idToken o, con privilegios, las que matcheen
// cualquiera de los identificadores.
func (s *Service) Lookup(ctx context.Context, c Caller, req LookupRequest) (resp *LookupResponse, err error) {
	defer observe("accounts:lookup", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		resp = &LookupResponse{Kind: kindLookup}
		if req.IDToken != "" {
			acc, _, err := s.parseIDToken(ctx, sc, req.IDToken)
			if err != nil {
				return err
			}
			resp.Users = []*UserInfo{userInfo(acc, c.Privileged)}
			return nil
		}
		if !c.Privileged {
			return errors.ErrMissingIDToken
		}

		seen := map[string]bool{}
		add := func(acc *types.Account, ok bool) {
			if !ok || seen[acc.LocalID] {
				return
			}
			seen[acc.LocalID] = true
			resp.Users = append(resp.Users, userInfo(acc, true))
		}
		for _, id := range req.LocalID {
			add(sc.Get(id))
		}
		for _, e := range req.Email {
			for _, acc := range sc.AllByEmail(e) {
				add(acc, true)
			}
		}
		for _, p := range req.PhoneNumber {
			add(sc.ByPhone(p))
		}
		for _, f := range req.FederatedUserID {
			add(sc.ByProvider(f.ProviderID, f.RawID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DeleteAccountRequest es el body de accounts:delete.
type DeleteAccountRequest struct {
	IDToken  string `json:"idToken,omitempty"`
	LocalID  string `json:"localId,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// DeleteAccountResponse es la respuesta de accounts:delete.
type DeleteAccountResponse struct {
	Kind string `json:"kind"`
}

// DeleteAccount borra la cuenta y los códigos pendientes que la referencian.
func (s *Service) DeleteAccount(ctx context.Context, c Caller, req DeleteAccountRequest) (resp *DeleteAccountResponse, err error) {
	defer observe("accounts:delete", &err)
	log := s.log(ctx, "DeleteAccount")

	var localID string
	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		acc, _, err := s.targetAccount(ctx, c, sc, req.IDToken, req.LocalID)
		if err != nil {
			return err
		}
		localID = acc.LocalID
		sc.DeleteAccount(acc.LocalID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("account deleted", logger.LocalID(localID))
	return &DeleteAccountResponse{Kind: kindDelete}, nil
}

// CreateAuthURIRequest es el body de accounts:createAuthUri.
type CreateAuthURIRequest struct {
	ClientFields
	Identifier   string `json:"identifier,omitempty"`
	ContinueURI  string `json:"continueUri,omitempty"`
	ProviderID   string `json:"providerId,omitempty"`
	OAuthScope   string `json:"oauthScope,omitempty"`
	CustomParams any    `json:"customParameter,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	TenantID     string `json:"tenantId,omitempty"`
}

// CreateAuthURIResponse es la respuesta de accounts:createAuthUri.
type CreateAuthURIResponse struct {
	Kind          string   `json:"kind"`
	Registered    bool     `json:"registered,omitempty"`
	AllProviders  []string `json:"allProviders,omitempty"`
	SigninMethods []string `json:"signinMethods,omitempty"`
	SessionID     string   `json:"sessionId"`
}

// CreateAuthURI informa qué métodos de sign-in tiene un email. Con
// improved email privacy no revela nada.
func (s *Service) CreateAuthURI(ctx context.Context, c Caller, req CreateAuthURIRequest) (resp *CreateAuthURIResponse, err error) {
	defer observe("accounts:createAuthUri", &err)

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.Identifier == "" {
			return errors.ErrMissingIdentifier
		}
		if !validation.ValidEmail(req.Identifier) {
			return errors.ErrInvalidEmail.WithDetail(req.Identifier)
		}
		if req.ContinueURI == "" {
			return errors.ErrMissingContinueURI
		}
		if !validation.ValidContinueURL(req.ContinueURI) {
			return errors.ErrInvalidContinueURI
		}
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = tokens.RandomID(24)
		}
		resp = &CreateAuthURIResponse{Kind: kindCreateAuthURI, SessionID: sessionID}
		if sc.Policy().ImprovedEmailPrivacy {
			return nil
		}

		providers := map[string]bool{}
		methods := map[string]bool{}
		for _, acc := range sc.AllByEmail(req.Identifier) {
			resp.Registered = true
			for _, p := range acc.ProviderIDs() {
				providers[p] = true
			}
			if acc.PasswordHash != "" {
				methods["password"] = true
			}
			if acc.EmailLinkSignin {
				methods[types.ProviderEmailLink] = true
			}
			for _, p := range acc.FederatedProviders() {
				methods[p.ProviderID] = true
			}
		}
		resp.AllProviders = sortedKeys(providers)
		resp.SigninMethods = sortedKeys(methods)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
