package types

import (
	"encoding/json"
	"sort"
)

// Provider IDs reservados por el emulador.
const (
	ProviderPassword  = "password"
	ProviderPhone     = "phone"
	ProviderAnonymous = "anonymous"
	ProviderCustom    = "custom"
	ProviderEmailLink = "emailLink"
)

// Account representa una cuenta dentro de un scope (proyecto o tenant).
// Los timestamps siguen el formato del wire: createdAt/lastLoginAt en ms,
// validSince en segundos, ambos serializados como string.
type Account struct {
	LocalID           string             `json:"localId"`
	Email             string             `json:"email,omitempty"`
	EmailVerified     bool               `json:"emailVerified"`
	EmailLinkSignin   bool               `json:"emailLinkSignin,omitempty"`
	DisplayName       string             `json:"displayName,omitempty"`
	PhotoURL          string             `json:"photoUrl,omitempty"`
	PhoneNumber       string             `json:"phoneNumber,omitempty"`
	PasswordHash      string             `json:"passwordHash,omitempty"`
	Salt              string             `json:"salt,omitempty"`
	PasswordUpdatedAt int64              `json:"passwordUpdatedAt,omitempty"`
	ValidSince        int64              `json:"validSince,string,omitempty"`
	Disabled          bool               `json:"disabled,omitempty"`
	CustomAttributes  string             `json:"customAttributes,omitempty"`
	CustomAuth        bool               `json:"customAuth,omitempty"`
	ProviderUserInfo  []ProviderUserInfo `json:"providerUserInfo,omitempty"`
	MfaInfo           []MfaEnrollment    `json:"mfaInfo,omitempty"`
	CreatedAt         int64              `json:"createdAt,string,omitempty"`
	LastLoginAt       int64              `json:"lastLoginAt,string,omitempty"`
	LastRefreshAt     string             `json:"lastRefreshAt,omitempty"`
	TenantID          string             `json:"tenantId,omitempty"`
}

// ProviderUserInfo es un vínculo (providerId, rawId) de la cuenta.
type ProviderUserInfo struct {
	ProviderID  string `json:"providerId"`
	RawID       string `json:"rawId"`
	FederatedID string `json:"federatedId,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	ScreenName  string `json:"screenName,omitempty"`
}

// MfaEnrollment es un segundo factor SMS. El ID es único dentro de la cuenta.
type MfaEnrollment struct {
	MfaEnrollmentID string `json:"mfaEnrollmentId"`
	DisplayName     string `json:"displayName,omitempty"`
	PhoneInfo       string `json:"phoneInfo,omitempty"`
	EnrolledAt      string `json:"enrolledAt,omitempty"`
}

// Clone devuelve una copia profunda; el store nunca expone sus punteros.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.ProviderUserInfo != nil {
		c.ProviderUserInfo = append([]ProviderUserInfo(nil), a.ProviderUserInfo...)
	}
	if a.MfaInfo != nil {
		c.MfaInfo = append([]MfaEnrollment(nil), a.MfaInfo...)
	}
	return &c
}

// Provider busca el vínculo con providerID.
func (a *Account) Provider(providerID string) *ProviderUserInfo {
	for i := range a.ProviderUserInfo {
		if a.ProviderUserInfo[i].ProviderID == providerID {
			return &a.ProviderUserInfo[i]
		}
	}
	return nil
}

// ProviderIDs lista los providers vinculados, ordenados.
func (a *Account) ProviderIDs() []string {
	out := make([]string, 0, len(a.ProviderUserInfo))
	for _, p := range a.ProviderUserInfo {
		out = append(out, p.ProviderID)
	}
	sort.Strings(out)
	return out
}

// FederatedProviders devuelve los vínculos de IDP (sin password ni phone).
func (a *Account) FederatedProviders() []ProviderUserInfo {
	var out []ProviderUserInfo
	for _, p := range a.ProviderUserInfo {
		if p.ProviderID == ProviderPassword || p.ProviderID == ProviderPhone {
			continue
		}
		out = append(out, p)
	}
	return out
}

// RemoveProvider quita el vínculo y reporta si existía.
func (a *Account) RemoveProvider(providerID string) bool {
	for i, p := range a.ProviderUserInfo {
		if p.ProviderID == providerID {
			a.ProviderUserInfo = append(a.ProviderUserInfo[:i], a.ProviderUserInfo[i+1:]...)
			return true
		}
	}
	return false
}

// UpsertProvider reemplaza el vínculo con el mismo providerId o lo agrega.
func (a *Account) UpsertProvider(info ProviderUserInfo) {
	for i, p := range a.ProviderUserInfo {
		if p.ProviderID == info.ProviderID {
			a.ProviderUserInfo[i] = info
			return
		}
	}
	a.ProviderUserInfo = append(a.ProviderUserInfo, info)
}

// IsAnonymous: ningún método de sign-in vinculado.
func (a *Account) IsAnonymous() bool {
	return len(a.ProviderUserInfo) == 0 && !a.CustomAuth && a.PasswordHash == "" && a.PhoneNumber == ""
}

// HasMfa reporta si la cuenta tiene al menos un segundo factor.
func (a *Account) HasMfa() bool { return len(a.MfaInfo) > 0 }

// Enrollment busca un segundo factor por ID.
func (a *Account) Enrollment(id string) *MfaEnrollment {
	for i := range a.MfaInfo {
		if a.MfaInfo[i].MfaEnrollmentID == id {
			return &a.MfaInfo[i]
		}
	}
	return nil
}

// Claims parsea customAttributes; vacío o inválido es un mapa vacío.
func (a *Account) Claims() map[string]any {
	out := map[string]any{}
	if a.CustomAttributes == "" {
		return out
	}
	_ = json.Unmarshal([]byte(a.CustomAttributes), &out)
	return out
}

// SyncBuiltinProviders mantiene las entradas "password" y "phone" de
// ProviderUserInfo alineadas con email/password y phoneNumber.
func (a *Account) SyncBuiltinProviders() {
	if a.Email != "" && (a.PasswordHash != "" || a.EmailLinkSignin) {
		a.UpsertProvider(ProviderUserInfo{
			ProviderID:  ProviderPassword,
			RawID:       a.Email,
			FederatedID: a.Email,
			Email:       a.Email,
			DisplayName: a.DisplayName,
			PhotoURL:    a.PhotoURL,
		})
	} else {
		a.RemoveProvider(ProviderPassword)
	}
	if a.PhoneNumber != "" {
		a.UpsertProvider(ProviderUserInfo{
			ProviderID:  ProviderPhone,
			RawID:       a.PhoneNumber,
			PhoneNumber: a.PhoneNumber,
		})
	} else {
		a.RemoveProvider(ProviderPhone)
	}
}
