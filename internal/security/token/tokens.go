package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
// Se usa para oobCode, sessionInfo, mfaPendingCredential y temporaryProof.
func GenerateOpaqueToken(nBytes int) string {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		panic("tokens: crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// RandomID genera un ID alfanumérico de n caracteres (localId usa 28).
func RandomID(n int) string {
	return pick(alnum, n)
}

// RandomDigits genera un código numérico de n dígitos (códigos SMS).
func RandomDigits(n int) string {
	return pick("0123456789", n)
}

func pick(alphabet string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("tokens: crypto/rand failed: " + err.Error())
		}
		out[i] = alphabet[v.Int64()]
	}
	return string(out)
}
