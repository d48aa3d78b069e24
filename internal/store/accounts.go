package store

import (
	"sort"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	tokens "github.com/dropDatabas3/authemu/internal/security/token"
	"github.com/dropDatabas3/authemu/internal/validation"
)

// CreateOptions controla CreateAccount.
type CreateOptions struct {
	// AllowOverwrite reemplaza una cuenta existente con el mismo localId.
	AllowOverwrite bool
}

// Get devuelve una copia de la cuenta.
func (sc *Scope) Get(localID string) (*types.Account, bool) {
	acc, ok := sc.accounts[localID]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// Exists reporta si hay una cuenta con ese localId.
func (sc *Scope) Exists(localID string) bool {
	_, ok := sc.accounts[localID]
	return ok
}

// Count de cuentas en el scope.
func (sc *Scope) Count() int { return len(sc.accounts) }

// ByEmail devuelve la cuenta más antigua con ese email (case-insensitive).
func (sc *Scope) ByEmail(email string) (*types.Account, bool) {
	all := sc.AllByEmail(email)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// AllByEmail devuelve todas las cuentas con ese email, por createdAt.
func (sc *Scope) AllByEmail(email string) []*types.Account {
	ids := sc.byEmail[validation.CanonicalizeEmail(email)]
	out := make([]*types.Account, 0, len(ids))
	for id := range ids {
		out = append(out, sc.accounts[id].Clone())
	}
	sortAccounts(out)
	return out
}

// ByPhone busca por número E.164.
func (sc *Scope) ByPhone(phone string) (*types.Account, bool) {
	id, ok := sc.byPhone[phone]
	if !ok {
		return nil, false
	}
	return sc.Get(id)
}

// ByProvider busca por el par (providerId, rawId).
func (sc *Scope) ByProvider(providerID, rawID string) (*types.Account, bool) {
	id, ok := sc.byProvider[providerKey{providerID, rawID}]
	if !ok {
		return nil, false
	}
	return sc.Get(id)
}

// List devuelve todas las cuentas ordenadas por createdAt y localId.
func (sc *Scope) List() []*types.Account {
	out := make([]*types.Account, 0, len(sc.accounts))
	for _, acc := range sc.accounts {
		out = append(out, acc.Clone())
	}
	sortAccounts(out)
	return out
}

func sortAccounts(accs []*types.Account) {
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].CreatedAt != accs[j].CreatedAt {
			return accs[i].CreatedAt < accs[j].CreatedAt
		}
		return accs[i].LocalID < accs[j].LocalID
	})
}

// NewLocalID genera un localId de 28 caracteres libre en el scope.
func (sc *Scope) NewLocalID() string {
	for {
		id := tokens.RandomID(28)
		if _, taken := sc.accounts[id]; !taken {
			return id
		}
	}
}

// CreateAccount inserta una cuenta nueva tras chequear unicidad de localId,
// email, teléfono y vínculos de IDP.
func (sc *Scope) CreateAccount(acc *types.Account, opts CreateOptions) (*types.Account, error) {
	acc = acc.Clone()
	if acc.LocalID == "" {
		acc.LocalID = sc.NewLocalID()
	}
	old, exists := sc.accounts[acc.LocalID]
	if exists && !opts.AllowOverwrite {
		return nil, errors.ErrDuplicateLocalID.WithDetail(acc.LocalID)
	}

	acc.TenantID = sc.tenantID
	acc.SyncBuiltinProviders()
	if err := sc.checkUnique(acc); err != nil {
		return nil, err
	}
	if acc.CreatedAt == 0 {
		acc.CreatedAt = sc.NowMillis()
	}

	if exists {
		sc.unindex(old)
	}
	sc.accounts[acc.LocalID] = acc
	sc.index(acc)
	return acc.Clone(), nil
}

// UpdateAccount reemplaza la cuenta con acc, re-chequeando unicidad de
// cada identificador.
func (sc *Scope) UpdateAccount(acc *types.Account) (*types.Account, error) {
	old, ok := sc.accounts[acc.LocalID]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	acc = acc.Clone()
	acc.TenantID = sc.tenantID
	acc.CreatedAt = old.CreatedAt
	acc.SyncBuiltinProviders()
	if err := sc.checkUnique(acc); err != nil {
		return nil, err
	}
	sc.unindex(old)
	sc.accounts[acc.LocalID] = acc
	sc.index(acc)
	return acc.Clone(), nil
}

// DeleteAccount borra la cuenta, sus índices y todo registro pendiente
// que la referencie.
func (sc *Scope) DeleteAccount(localID string) bool {
	acc, ok := sc.accounts[localID]
	if !ok {
		return false
	}
	sc.unindex(acc)
	delete(sc.accounts, localID)

	for code, e := range sc.oob {
		if e.rec.LocalID == localID {
			delete(sc.oob, code)
		}
	}
	for s, e := range sc.sms {
		if e.rec.LocalID == localID {
			delete(sc.sms, s)
		}
	}
	for cred, p := range sc.mfaPending {
		if p.LocalID == localID {
			delete(sc.mfaPending, cred)
		}
	}
	return true
}

// checkUnique valida los invariantes de la cuenta contra el resto del scope.
func (sc *Scope) checkUnique(acc *types.Account) error {
	if acc.Email != "" && !sc.Policy().AllowDuplicateEmails {
		for id := range sc.byEmail[validation.CanonicalizeEmail(acc.Email)] {
			if id != acc.LocalID {
				return errors.ErrEmailExists
			}
		}
	}
	if acc.PhoneNumber != "" {
		if id, ok := sc.byPhone[acc.PhoneNumber]; ok && id != acc.LocalID {
			return errors.ErrPhoneNumberExists
		}
	}
	for _, p := range acc.FederatedProviders() {
		if id, ok := sc.byProvider[providerKey{p.ProviderID, p.RawID}]; ok && id != acc.LocalID {
			return errors.ErrFederatedAlreadyLinked
		}
	}
	return checkMfa(acc.MfaInfo)
}

// checkMfa: IDs y teléfonos únicos dentro de la cuenta.
func checkMfa(enrollments []types.MfaEnrollment) error {
	ids := map[string]struct{}{}
	phones := map[string]struct{}{}
	for _, e := range enrollments {
		if _, dup := ids[e.MfaEnrollmentID]; dup {
			return errors.ErrDuplicateMfaEnrollment.WithDetail(e.MfaEnrollmentID)
		}
		ids[e.MfaEnrollmentID] = struct{}{}
		if _, dup := phones[e.PhoneInfo]; dup {
			return errors.ErrSecondFactorExists
		}
		phones[e.PhoneInfo] = struct{}{}
	}
	return nil
}

func (sc *Scope) index(acc *types.Account) {
	if acc.Email != "" {
		key := validation.CanonicalizeEmail(acc.Email)
		set, ok := sc.byEmail[key]
		if !ok {
			set = make(map[string]struct{})
			sc.byEmail[key] = set
		}
		set[acc.LocalID] = struct{}{}
	}
	if acc.PhoneNumber != "" {
		sc.byPhone[acc.PhoneNumber] = acc.LocalID
	}
	for _, p := range acc.FederatedProviders() {
		sc.byProvider[providerKey{p.ProviderID, p.RawID}] = acc.LocalID
	}
}

func (sc *Scope) unindex(acc *types.Account) {
	if acc.Email != "" {
		key := validation.CanonicalizeEmail(acc.Email)
		if set, ok := sc.byEmail[key]; ok {
			delete(set, acc.LocalID)
			if len(set) == 0 {
				delete(sc.byEmail, key)
			}
		}
	}
	if acc.PhoneNumber != "" && sc.byPhone[acc.PhoneNumber] == acc.LocalID {
		delete(sc.byPhone, acc.PhoneNumber)
	}
	for _, p := range acc.FederatedProviders() {
		k := providerKey{p.ProviderID, p.RawID}
		if sc.byProvider[k] == acc.LocalID {
			delete(sc.byProvider, k)
		}
	}
}
