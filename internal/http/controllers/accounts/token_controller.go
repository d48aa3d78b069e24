package accounts

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
)

// TokenController maneja POST /securetoken.googleapis.com/v1/token.
type TokenController struct {
	svc *auth.Service
}

// NewTokenController crea el controller de refresh.
func NewTokenController(svc *auth.Service) *TokenController {
	return &TokenController{svc: svc}
}

// Token acepta form-urlencoded (lo que mandan los SDKs) o JSON. El proyecto
// sale del refresh token.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "token", helpers.Caller(r, "", ""), func(ctx context.Context, caller auth.Caller, w http.ResponseWriter, r *http.Request) (any, error) {
		var req auth.RefreshTokenRequest
		ct := strings.ToLower(r.Header.Get("Content-Type"))
		if strings.Contains(ct, "application/json") {
			if err := helpers.DecodeStrict(w, r, &req); err != nil {
				return nil, err
			}
		} else {
			r.Body = http.MaxBytesReader(w, r.Body, helpers.MaxBodySize)
			if err := r.ParseForm(); err != nil {
				return nil, errors.ErrInvalidJSON.WithDetail("invalid form body").WithCause(err)
			}
			req.GrantType = r.Form.Get("grant_type")
			req.RefreshToken = r.Form.Get("refresh_token")
		}
		return c.svc.ExchangeRefreshToken(ctx, caller, req)
	})
}
