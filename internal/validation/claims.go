package validation

import (
	"encoding/json"

	"github.com/dropDatabas3/authemu/internal/errors"
)

// MaxClaimsBytes es el tamaño máximo serializado de customAttributes.
const MaxClaimsBytes = 1000

// ForbiddenClaims no pueden aparecer en custom claims ni en session claims.
var ForbiddenClaims = []string{
	"acr", "amr", "at_hash", "aud", "auth_time", "azp", "cnf", "c_hash",
	"exp", "firebase", "iat", "iss", "jti", "nbf", "nonce", "sub",
}

// ValidateCustomClaims aplica las reglas de customAttributes y devuelve el
// objeto parseado. "" es válido y equivale a un objeto vacío.
func ValidateCustomClaims(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	if len(raw) > MaxClaimsBytes {
		return nil, errors.ErrClaimsTooLarge
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.ErrInvalidClaims.WithCause(err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		// arrays, strings, números y null no son objetos de claims
		return nil, errors.ErrInvalidClaims
	}
	if err := CheckForbiddenClaims(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// CheckForbiddenClaims falla con FORBIDDEN_CLAIM : <name> sobre el primer
// claim reservado encontrado, en orden alfabético.
func CheckForbiddenClaims(claims map[string]any) error {
	for _, name := range ForbiddenClaims {
		if _, ok := claims[name]; ok {
			return errors.ErrForbiddenClaim.WithDetail(name)
		}
	}
	return nil
}
