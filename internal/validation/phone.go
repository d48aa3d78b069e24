package validation

import (
	"regexp"
	"strings"
)

var e164Re = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ValidPhoneNumber acepta solo E.164 (+ y de 7 a 15 dígitos).
func ValidPhoneNumber(phone string) bool {
	return e164Re.MatchString(phone)
}

// ObfuscatePhone enmascara todos los dígitos menos los últimos 4:
// +15555550100 -> +*******0100.
func ObfuscatePhone(phone string) string {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	var b strings.Builder
	seen := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-4 {
				b.WriteByte('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
