package jwt

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
)

// SecondFactor identifica el segundo factor usado en la sesión.
type SecondFactor struct {
	Factor       string `json:"factor"`
	EnrollmentID string `json:"enrollmentId"`
}

// IDTokenInput es todo lo que hace falta para armar un ID token.
type IDTokenInput struct {
	ProjectID      string
	TenantID       string
	Account        *types.Account
	SignInProvider string
	SecondFactor   *SecondFactor
	ExtraClaims    map[string]any
	// NotBefore es el iat mínimo (segundos); se usa para quedar en o
	// después del validSince de la cuenta.
	NotBefore int64
}

// IDTokenClaims es la vista tipada de un ID token decodificado.
type IDTokenClaims struct {
	Raw            jwtv5.MapClaims
	LocalID        string
	ProjectID      string
	TenantID       string
	IssuedAt       int64
	ExpiresAt      int64
	SignInProvider string
	SecondFactor   *SecondFactor
	Signed         bool
}

// Identities arma firebase.identities: email, phone y el rawId de cada IDP.
func Identities(acc *types.Account) map[string]any {
	ids := map[string]any{}
	if acc.Email != "" {
		ids["email"] = []any{acc.Email}
	}
	if acc.PhoneNumber != "" {
		ids["phone"] = []any{acc.PhoneNumber}
	}
	for _, p := range acc.FederatedProviders() {
		ids[p.ProviderID] = []any{p.RawID}
	}
	return ids
}

// EncodeIDToken emite un ID token para la cuenta. auth_time sale siempre de
// lastLoginAt; custom claims y extra claims quedan debajo de los estándar.
func (c *Codec) EncodeIDToken(in IDTokenInput) (string, error) {
	acc := in.Account
	now := c.clock.Now().Unix()
	if in.NotBefore > now {
		now = in.NotBefore
	}

	claims := jwtv5.MapClaims{}
	for k, v := range acc.Claims() {
		claims[k] = v
	}
	for k, v := range in.ExtraClaims {
		claims[k] = v
	}

	claims["iss"] = idTokenIssuerPrefix + in.ProjectID
	claims["aud"] = in.ProjectID
	claims["auth_time"] = acc.LastLoginAt / 1000
	claims["user_id"] = acc.LocalID
	claims["sub"] = acc.LocalID
	claims["iat"] = now
	claims["exp"] = now + int64(c.idTokenTTL.Seconds())
	if acc.Email != "" {
		claims["email"] = acc.Email
		claims["email_verified"] = acc.EmailVerified
	}
	if acc.PhoneNumber != "" {
		claims["phone_number"] = acc.PhoneNumber
	}
	if acc.DisplayName != "" {
		claims["name"] = acc.DisplayName
	}
	if acc.PhotoURL != "" {
		claims["picture"] = acc.PhotoURL
	}

	fb := map[string]any{
		"identities":       Identities(acc),
		"sign_in_provider": in.SignInProvider,
	}
	if in.SecondFactor != nil {
		fb["sign_in_second_factor"] = in.SecondFactor.Factor
		fb["second_factor_identifier"] = in.SecondFactor.EnrollmentID
	}
	if in.TenantID != "" {
		fb["tenant"] = in.TenantID
	}
	claims["firebase"] = fb

	return Sign(claims)
}

// DecodeIDToken parsea un ID token. Falla INVALID_ID_TOKEN si no se puede
// leer o no trae sujeto, TOKEN_EXPIRED si exp ya pasó. El chequeo contra
// validSince lo hace quien tiene la cuenta.
func (c *Codec) DecodeIDToken(token string) (*IDTokenClaims, error) {
	if token == "" {
		return nil, errors.ErrInvalidIDToken
	}
	raw, signed, err := DecodeUnverified(token)
	if err != nil {
		return nil, errors.ErrInvalidIDToken.WithCause(err)
	}
	out := &IDTokenClaims{Raw: raw, Signed: signed}
	out.LocalID, _ = raw["user_id"].(string)
	if out.LocalID == "" {
		out.LocalID, _ = raw["sub"].(string)
	}
	if out.LocalID == "" {
		return nil, errors.ErrInvalidIDToken
	}
	out.ProjectID, _ = raw["aud"].(string)
	out.IssuedAt, _ = numClaim(raw, "iat")
	out.ExpiresAt, _ = numClaim(raw, "exp")

	if fb, ok := raw["firebase"].(map[string]any); ok {
		out.TenantID, _ = fb["tenant"].(string)
		out.SignInProvider, _ = fb["sign_in_provider"].(string)
		if f, _ := fb["sign_in_second_factor"].(string); f != "" {
			id, _ := fb["second_factor_identifier"].(string)
			out.SecondFactor = &SecondFactor{Factor: f, EnrollmentID: id}
		}
	}

	if out.ExpiresAt != 0 && out.ExpiresAt < c.clock.Now().Unix() {
		return nil, errors.ErrTokenExpired
	}
	return out, nil
}
