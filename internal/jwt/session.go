package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authemu/internal/errors"
)

// EncodeSessionCookie deriva una session cookie de las claims de un ID token.
// validDuration 0 usa el default de dos semanas; fuera de [5m, 2w] es
// INVALID_DURATION.
func (c *Codec) EncodeSessionCookie(idClaims jwtv5.MapClaims, validDuration time.Duration) (string, error) {
	if validDuration == 0 {
		validDuration = DefaultSessionCookieTTL
	}
	if validDuration < MinSessionCookieDuration || validDuration > MaxSessionCookieDuration {
		return "", errors.ErrInvalidDuration
	}
	aud, _ := idClaims["aud"].(string)
	now := c.clock.Now().Unix()

	claims := jwtv5.MapClaims{}
	for k, v := range idClaims {
		claims[k] = v
	}
	claims["iss"] = sessionCookieIssuerPrefix + aud
	claims["iat"] = now
	claims["exp"] = now + int64(validDuration.Seconds())
	return Sign(claims)
}
