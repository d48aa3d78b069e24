package validation

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// ValidEmail chequea la forma local@dominio, sin ir más allá.
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// CanonicalizeEmail es la forma que se indexa: los emails son
// case-insensitive dentro de un scope.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
