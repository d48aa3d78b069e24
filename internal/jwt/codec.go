// Package jwt implementa el codec de tokens del emulador. Todos los tokens
// emitidos llevan alg "none" y firma vacía ("header.payload."), así los
// tests pueden decodificarlos sin llaves.
package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Duraciones por defecto.
const (
	DefaultIDTokenTTL         = time.Hour
	DefaultSessionCookieTTL   = 14 * 24 * time.Hour
	MinSessionCookieDuration  = 5 * time.Minute
	MaxSessionCookieDuration  = 14 * 24 * time.Hour
	CustomTokenAudience       = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"
	idTokenIssuerPrefix       = "https://securetoken.google.com/"
	sessionCookieIssuerPrefix = "https://session.firebase.google.com/"
)

// Codec firma (sin firma) y decodifica tokens contra un reloj inyectable.
type Codec struct {
	clock      clockwork.Clock
	idTokenTTL time.Duration
}

// NewCodec crea un codec. ttl <= 0 usa DefaultIDTokenTTL.
func NewCodec(clock clockwork.Clock, ttl time.Duration) *Codec {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultIDTokenTTL
	}
	return &Codec{clock: clock, idTokenTTL: ttl}
}

// IDTokenTTL es el exp - iat de los ID tokens emitidos.
func (c *Codec) IDTokenTTL() time.Duration { return c.idTokenTTL }

// Sign serializa claims como JWT sin firma.
func Sign(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, claims)
	tk.Header["typ"] = "JWT"
	return tk.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
}

// DecodeUnverified parsea un JWT sin verificar firma. signed indica si el
// header traía un alg distinto de "none".
func DecodeUnverified(token string) (claims jwtv5.MapClaims, signed bool, err error) {
	claims = jwtv5.MapClaims{}
	tk, _, err := jwtv5.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, false, err
	}
	alg, _ := tk.Header["alg"].(string)
	return claims, alg != "" && alg != "none", nil
}

// IsJWT es un chequeo de forma: tres segmentos base64url separados por
// punto (el último puede venir vacío, alg:none). No decodifica nada.
func IsJWT(s string) bool {
	dots := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '.':
			dots++
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '=':
		default:
			return false
		}
	}
	return dots == 2
}

func numClaim(claims jwtv5.MapClaims, key string) (int64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
