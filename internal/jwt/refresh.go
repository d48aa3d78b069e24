package jwt

import (
	"encoding/base64"
	"encoding/json"

	"github.com/dropDatabas3/authemu/internal/errors"
)

const refreshMagic = "DO NOT MODIFY"

// RefreshRecord es el contenido del refresh token. No hay estado del lado
// servidor: la validez se recalcula contra la cuenta al usarlo.
type RefreshRecord struct {
	Magic        string         `json:"_AuthEmulatorRefreshToken"`
	LocalID      string         `json:"localId"`
	Provider     string         `json:"provider"`
	ExtraClaims  map[string]any `json:"extraClaims"`
	ProjectID    string         `json:"projectId"`
	TenantID     string         `json:"tenantId,omitempty"`
	SecondFactor *SecondFactor  `json:"secondFactor,omitempty"`
	IssuedAt     int64          `json:"iat"`
}

// EncodeRefreshToken serializa el record como base64(JSON).
func (c *Codec) EncodeRefreshToken(rec RefreshRecord) (string, error) {
	rec.Magic = refreshMagic
	if rec.ExtraClaims == nil {
		rec.ExtraClaims = map[string]any{}
	}
	if rec.IssuedAt == 0 {
		rec.IssuedAt = c.clock.Now().Unix()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeRefreshToken falla INVALID_REFRESH_TOKEN ante cualquier cosa que no
// haya salido de EncodeRefreshToken.
func DecodeRefreshToken(token string) (*RefreshRecord, error) {
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.ErrInvalidRefreshToken.WithCause(err)
	}
	var rec RefreshRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, errors.ErrInvalidRefreshToken.WithCause(err)
	}
	if rec.Magic != refreshMagic || rec.LocalID == "" {
		return nil, errors.ErrInvalidRefreshToken
	}
	return &rec, nil
}
