package password

import (
	"github.com/dropDatabas3/authemu/internal/errors"
)

// Policy es la política de contraseñas del emulador: solo longitud mínima.
type Policy struct {
	MinLength int
}

// DefaultPolicy replica el mínimo de 6 caracteres del backend real.
var DefaultPolicy = Policy{MinLength: 6}

// Validate devuelve (ok, reasons); reasons usa los códigos cortos de las policies ("too_short").
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	return len(reasons) == 0, reasons
}

// Check traduce el resultado a WEAK_PASSWORD.
func (p Policy) Check(s string) error {
	if ok, _ := p.Validate(s); !ok {
		return errors.ErrWeakPassword
	}
	return nil
}
