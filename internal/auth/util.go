package auth

import (
	"time"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/store"
)

func isoTime(sc *store.Scope) string {
	return sc.Now().UTC().Format(time.RFC3339Nano)
}

// revokeTokens invalida todo token ya emitido para la cuenta. iat tiene
// resolución de segundos, así que validSince pasa al segundo siguiente.
func revokeTokens(sc *store.Scope, acc *types.Account) {
	if next := sc.Now().Unix() + 1; next > acc.ValidSince {
		acc.ValidSince = next
	}
}

// issuedAt es el iat de un token nuevo: ahora, o validSince si quedó adelante.
func issuedAt(sc *store.Scope, acc *types.Account) int64 {
	if now := sc.Now().Unix(); now > acc.ValidSince {
		return now
	}
	return acc.ValidSince
}
