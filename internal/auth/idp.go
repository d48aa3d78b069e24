package auth

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/store"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// SignInWithIdpRequest es el body de accounts:signInWithIdp.
type SignInWithIdpRequest struct {
	ClientFields
	RequestURI          string `json:"requestUri,omitempty"`
	PostBody            string `json:"postBody,omitempty"`
	IDToken             string `json:"idToken,omitempty"`
	SessionID           string `json:"sessionId,omitempty"`
	PendingToken        string `json:"pendingToken,omitempty"`
	ReturnIdpCredential bool   `json:"returnIdpCredential,omitempty"`
	ReturnRefreshToken  bool   `json:"returnRefreshToken,omitempty"`
	AutoCreate          bool   `json:"autoCreate,omitempty"`
	TenantID            string `json:"tenantId,omitempty"`
}

// SignInWithIdpResponse combina la info del IDP con el resultado del sign-in.
type SignInWithIdpResponse struct {
	Kind             string   `json:"kind"`
	ProviderID       string   `json:"providerId"`
	FederatedID      string   `json:"federatedId,omitempty"`
	LocalID          string   `json:"localId,omitempty"`
	Email            string   `json:"email,omitempty"`
	EmailVerified    bool     `json:"emailVerified,omitempty"`
	DisplayName      string   `json:"displayName,omitempty"`
	FirstName        string   `json:"firstName,omitempty"`
	LastName         string   `json:"lastName,omitempty"`
	FullName         string   `json:"fullName,omitempty"`
	PhotoURL         string   `json:"photoUrl,omitempty"`
	ScreenName       string   `json:"screenName,omitempty"`
	RawUserInfo      string   `json:"rawUserInfo,omitempty"`
	OAuthIDToken     string   `json:"oauthIdToken,omitempty"`
	OAuthAccessToken string   `json:"oauthAccessToken,omitempty"`
	OAuthExpireIn    int      `json:"oauthExpireIn,omitempty"`
	IsNewUser        bool     `json:"isNewUser,omitempty"`
	NeedConfirmation bool     `json:"needConfirmation,omitempty"`
	VerifiedProvider []string `json:"verifiedProvider,omitempty"`
	ErrorMessage     string   `json:"errorMessage,omitempty"`
	TokenFields
	MfaPendingFields
}

// idpAssertion es lo que sacamos del postBody: el provider y las claims del
// token del IDP (JSON plano o JWT sin firmar).
type idpAssertion struct {
	ProviderID    string
	Sub           string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
	FirstName     string
	LastName      string
	ScreenName    string
	RawUserInfo   string
	IDToken       string
	AccessToken   string
}

func (a *idpAssertion) providerInfo() types.ProviderUserInfo {
	return types.ProviderUserInfo{
		ProviderID:  a.ProviderID,
		RawID:       a.Sub,
		FederatedID: a.federatedID(),
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
		ScreenName:  a.ScreenName,
	}
}

func (a *idpAssertion) federatedID() string {
	if a.ProviderID == "google.com" {
		return "https://accounts.google.com/" + a.Sub
	}
	return a.Sub
}

func (a *idpAssertion) response() *SignInWithIdpResponse {
	access := a.AccessToken
	if access == "" {
		access = "FirebaseAuthEmulatorFakeAccessToken_" + a.ProviderID
	}
	return &SignInWithIdpResponse{
		Kind:             kindVerifyAssert,
		ProviderID:       a.ProviderID,
		FederatedID:      a.federatedID(),
		Email:            a.Email,
		EmailVerified:    a.EmailVerified,
		DisplayName:      a.DisplayName,
		FullName:         a.DisplayName,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		PhotoURL:         a.PhotoURL,
		ScreenName:       a.ScreenName,
		RawUserInfo:      a.RawUserInfo,
		OAuthIDToken:     a.IDToken,
		OAuthAccessToken: access,
		OAuthExpireIn:    3600,
	}
}

func parseIdpAssertion(req SignInWithIdpRequest) (*idpAssertion, error) {
	if req.RequestURI == "" {
		return nil, errors.ErrMissingRequestURI
	}
	raw := req.PostBody
	if raw == "" {
		if u, err := url.Parse(req.RequestURI); err == nil {
			raw = u.RawQuery
		}
	}
	params, err := url.ParseQuery(raw)
	if err != nil {
		return nil, errors.ErrInvalidCredOrProviderID.WithDetail("Invalid IdP response/credential: " + raw)
	}
	providerID := params.Get("providerId")
	if providerID == "" {
		return nil, errors.ErrInvalidCredOrProviderID.WithDetail("Invalid IdP response/credential: " + raw)
	}
	switch providerID {
	case types.ProviderPassword, types.ProviderPhone, types.ProviderAnonymous, types.ProviderCustom:
		return nil, errors.ErrInvalidProviderID.WithDetail("Provider Id is not supported.")
	}

	a := &idpAssertion{
		ProviderID:  providerID,
		IDToken:     params.Get("id_token"),
		AccessToken: params.Get("access_token"),
	}
	token := a.IDToken
	if token == "" {
		token = a.AccessToken
	}
	if token == "" {
		return nil, errors.ErrInvalidIdpResponse.WithDetail("Unable to parse id_token: empty")
	}
	claims, err := parseIdpClaims(token)
	if err != nil {
		return nil, errors.ErrInvalidIdpResponse.WithDetail("Unable to parse id_token: " + token)
	}
	subRaw, present := claims["sub"]
	if !present {
		return nil, errors.ErrInvalidIdpResponse.WithDetail(`Invalid Idp Response: id_token missing field "sub".`)
	}
	sub, ok := subRaw.(string)
	if !ok || sub == "" {
		return nil, errors.ErrInvalidIdpResponse.WithDetail(`Invalid Idp Response: field "sub" must be a valid non-empty string.`)
	}
	a.Sub = sub

	str := func(k string) string { v, _ := claims[k].(string); return v }
	a.Email = str("email")
	a.DisplayName = str("name")
	a.PhotoURL = str("picture")
	a.FirstName = str("given_name")
	a.LastName = str("family_name")
	a.ScreenName = str("screen_name")
	switch v := claims["email_verified"].(type) {
	case bool:
		a.EmailVerified = v
	case string:
		a.EmailVerified = v == "true"
	}
	if b, err := json.Marshal(claims); err == nil {
		a.RawUserInfo = string(b)
	}
	return a, nil
}

func parseIdpClaims(token string) (map[string]any, error) {
	if jwt.IsJWT(token) {
		claims, _, err := jwt.DecodeUnverified(token)
		if err != nil {
			return nil, err
		}
		return claims, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(token), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SignInWithIdp hace sign-in, alta o link con una credencial de IDP.
func (s *Service) SignInWithIdp(ctx context.Context, c Caller, req SignInWithIdpRequest) (resp *SignInWithIdpResponse, err error) {
	defer observe("accounts:signInWithIdp", &err)
	log := s.log(ctx, "SignInWithIdp")

	a, err := parseIdpAssertion(req)
	if err != nil {
		return nil, err
	}
	resp = a.response()

	err = s.within(ctx, c, req.TenantID, func(sc *store.Scope) error {
		if err := requireEnabled(sc); err != nil {
			return err
		}
		if req.IDToken != "" {
			return s.linkIdp(ctx, c, sc, req.IDToken, a, resp)
		}
		return s.signInIdp(ctx, c, sc, a, resp)
	})
	if err != nil {
		// Con returnIdpCredential los conflictos vuelven como 200 + errorMessage.
		code := errors.CodeOf(err)
		if req.ReturnIdpCredential && (code == errors.ErrFederatedAlreadyLinked.Code || code == errors.ErrEmailExists.Code) {
			out := a.response()
			out.ErrorMessage = code
			return out, nil
		}
		return nil, err
	}
	log.Debug("idp sign in", logger.Provider(a.ProviderID), logger.LocalID(resp.LocalID),
		logger.Bool("new_user", resp.IsNewUser), logger.Bool("need_confirmation", resp.NeedConfirmation))
	return resp, nil
}

func (s *Service) linkIdp(ctx context.Context, c Caller, sc *store.Scope, idToken string, a *idpAssertion, resp *SignInWithIdpResponse) error {
	user, _, err := s.parseIDToken(ctx, sc, idToken)
	if err != nil {
		return err
	}
	if owner, ok := sc.ByProvider(a.ProviderID, a.Sub); ok {
		if owner.LocalID != user.LocalID {
			return errors.ErrFederatedAlreadyLinked
		}
		// ya linkeado a la misma cuenta: error "suave"
		resp.LocalID = user.LocalID
		resp.ErrorMessage = errors.ErrFederatedAlreadyLinked.Code
		return nil
	}
	pol := sc.Policy()
	if a.Email != "" && !pol.AllowDuplicateEmails {
		if owner, ok := sc.ByEmail(a.Email); ok && owner.LocalID != user.LocalID {
			return errors.ErrEmailExists
		}
	}

	user.UpsertProvider(a.providerInfo())
	if user.Email == "" && a.Email != "" && !pol.AllowDuplicateEmails {
		user.Email = validation.CanonicalizeEmail(a.Email)
		user.EmailVerified = a.EmailVerified
	}
	if user.DisplayName == "" {
		user.DisplayName = a.DisplayName
	}
	if user.PhotoURL == "" {
		user.PhotoURL = a.PhotoURL
	}

	done, tokens, err := s.finishSignIn(ctx, c, sc, user, session{
		Provider:          a.ProviderID,
		SkipSignInTrigger: true,
	})
	if err != nil {
		return err
	}
	fillIdpResponse(resp, done)
	resp.TokenFields = tokens
	return nil
}

func (s *Service) signInIdp(ctx context.Context, c Caller, sc *store.Scope, a *idpAssertion, resp *SignInWithIdpResponse) error {
	pol := sc.Policy()
	sess := session{
		Provider:    a.ProviderID,
		RawUserInfo: a.RawUserInfo,
		OAuth:       oauthCredentials{IDToken: a.IDToken, AccessToken: a.AccessToken},
	}

	acc, found := sc.ByProvider(a.ProviderID, a.Sub)
	if found {
		acc.UpsertProvider(a.providerInfo())
	} else if a.Email != "" && !pol.AllowDuplicateEmails {
		if owner, ok := sc.ByEmail(a.Email); ok {
			if !a.EmailVerified {
				// No se puede probar que el dueño del mail sea el mismo.
				resp.NeedConfirmation = true
				resp.LocalID = owner.LocalID
				resp.Email = owner.Email
				resp.VerifiedProvider = owner.ProviderIDs()
				return nil
			}
			acc, found = owner, true
			if !acc.EmailVerified {
				// El IDP verificó un mail que la cuenta local nunca probó:
				// se descartan password y teléfono y se pisa el perfil.
				acc.PasswordHash, acc.Salt = "", ""
				acc.EmailLinkSignin = false
				acc.PhoneNumber = ""
				revokeTokens(sc, acc)
				acc.DisplayName = a.DisplayName
				acc.PhotoURL = a.PhotoURL
			} else {
				if acc.DisplayName == "" {
					acc.DisplayName = a.DisplayName
				}
				if acc.PhotoURL == "" {
					acc.PhotoURL = a.PhotoURL
				}
			}
			acc.EmailVerified = true
			acc.UpsertProvider(a.providerInfo())
		}
	}

	if !found {
		acc = &types.Account{
			DisplayName: a.DisplayName,
			PhotoURL:    a.PhotoURL,
		}
		if a.Email != "" && !pol.AllowDuplicateEmails {
			acc.Email = validation.CanonicalizeEmail(a.Email)
			acc.EmailVerified = a.EmailVerified
		}
		acc.UpsertProvider(a.providerInfo())
		sess.NewUser = true
		resp.IsNewUser = true
	} else {
		if acc.Disabled {
			return errors.ErrUserDisabled
		}
		if acc.HasMfa() {
			acc, pending, err := s.startMfa(sc, acc, sess)
			if err != nil {
				return err
			}
			fillIdpResponse(resp, acc)
			resp.MfaPendingFields = pending
			return nil
		}
	}

	done, tokens, err := s.finishSignIn(ctx, c, sc, acc, sess)
	if err != nil {
		return err
	}
	fillIdpResponse(resp, done)
	resp.TokenFields = tokens
	return nil
}

func fillIdpResponse(resp *SignInWithIdpResponse, acc *types.Account) {
	resp.LocalID = acc.LocalID
	if acc.Email != "" {
		resp.Email = acc.Email
		resp.EmailVerified = acc.EmailVerified
	}
	if acc.DisplayName != "" {
		resp.DisplayName = acc.DisplayName
	}
	if acc.PhotoURL != "" {
		resp.PhotoURL = acc.PhotoURL
	}
}
