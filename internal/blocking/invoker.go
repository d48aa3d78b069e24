// Package blocking modela las blocking functions (beforeCreate / beforeSignIn)
// como un colaborador síncrono: recibe el evento, devuelve un delta de campos
// a aplicar sobre la cuenta o un error que aborta el flujo.
package blocking

import (
	"context"

	"github.com/dropDatabas3/authemu/internal/domain/types"
)

// Event es lo que se le manda a la función.
type Event struct {
	Trigger            string
	ProjectID          string
	TenantID           string
	Account            *types.Account
	SignInMethod       string
	SignInSecondFactor string
	RawUserInfo        string
	IPAddress          string
	UserAgent          string

	// Credenciales del IDP, solo si forwardInboundCredentials lo pide.
	OAuthIDToken      string
	OAuthAccessToken  string
	OAuthRefreshToken string
}

// Delta son los campos que la función puede modificar. nil = sin cambios.
type Delta struct {
	DisplayName   *string
	PhotoURL      *string
	EmailVerified *bool
	Disabled      *bool
	CustomClaims  map[string]any
	SessionClaims map[string]any
}

// Empty reporta si la función no pidió ningún cambio.
func (d *Delta) Empty() bool {
	return d == nil || (d.DisplayName == nil && d.PhotoURL == nil && d.EmailVerified == nil &&
		d.Disabled == nil && d.CustomClaims == nil && d.SessionClaims == nil)
}

// Invoker llama a la función configurada en uri y espera la respuesta.
type Invoker interface {
	Invoke(ctx context.Context, uri string, ev Event) (*Delta, error)
}
