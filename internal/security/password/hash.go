package password

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	tokens "github.com/dropDatabas3/authemu/internal/security/token"
)

const (
	fakePrefix   = "fakeHash:"
	bcryptPrefix = "bcrypt:"
)

// NewSalt genera el salt "fakeSalt" + 20 caracteres aleatorios.
func NewSalt() string {
	return "fakeSalt" + tokens.RandomID(20)
}

// Hash arma el hash reversible que usa el emulador. No es criptografía:
// el password queda a la vista para inspección en tests.
func Hash(password, salt string) string {
	return fakePrefix + "salt=" + salt + ":password=" + password
}

// ImportBcrypt envuelve un hash bcrypt importado (batchCreate con BCRYPT).
func ImportBcrypt(hash []byte) (string, error) {
	if _, err := bcrypt.Cost(hash); err != nil {
		return "", err
	}
	return bcryptPrefix + string(hash), nil
}

// Verify compara password contra un hash fake o bcrypt importado.
func Verify(password, hash, salt string) bool {
	switch {
	case strings.HasPrefix(hash, fakePrefix):
		want := Hash(password, salt)
		return subtle.ConstantTimeCompare([]byte(want), []byte(hash)) == 1
	case strings.HasPrefix(hash, bcryptPrefix):
		return bcrypt.CompareHashAndPassword([]byte(strings.TrimPrefix(hash, bcryptPrefix)), []byte(password)) == nil
	default:
		return false
	}
}
