package store

import (
	"sync"
	"time"

	"github.com/dropDatabas3/authemu/internal/domain/types"
)

type providerKey struct {
	providerID string
	rawID      string
}

// Scope es un namespace de cuentas: la raíz de un proyecto o un tenant.
// Los métodos asumen que el caller tiene el lock (ver Store.Do).
type Scope struct {
	mu sync.Mutex

	project  *Project
	tenantID string
	opts     *Options

	accounts   map[string]*types.Account
	byEmail    map[string]map[string]struct{}
	byPhone    map[string]string
	byProvider map[providerKey]string

	seq        uint64
	oob        map[string]*oobEntry
	sms        map[string]*smsEntry
	smsUsed    map[string]struct{}
	mfaPending map[string]*types.MfaPending
	proofs     map[string]*types.TemporaryProof
}

type oobEntry struct {
	rec types.OobRecord
	seq uint64
}

type smsEntry struct {
	rec types.VerificationCode
	seq uint64
}

func newScope(p *Project, tenantID string) *Scope {
	sc := &Scope{project: p, tenantID: tenantID, opts: p.opts}
	sc.reset()
	return sc
}

func (sc *Scope) reset() {
	sc.accounts = make(map[string]*types.Account)
	sc.byEmail = make(map[string]map[string]struct{})
	sc.byPhone = make(map[string]string)
	sc.byProvider = make(map[providerKey]string)
	sc.oob = make(map[string]*oobEntry)
	sc.sms = make(map[string]*smsEntry)
	sc.smsUsed = make(map[string]struct{})
	sc.mfaPending = make(map[string]*types.MfaPending)
	sc.proofs = make(map[string]*types.TemporaryProof)
}

// ProjectID del scope.
func (sc *Scope) ProjectID() string { return sc.project.ID }

// TenantID del scope ("" para la raíz).
func (sc *Scope) TenantID() string { return sc.tenantID }

// Project al que pertenece el scope.
func (sc *Scope) Project() *Project { return sc.project }

// Policy es la configuración efectiva del scope en este momento.
func (sc *Scope) Policy() types.Policy { return sc.project.Policy(sc.tenantID) }

// Now según el reloj del store.
func (sc *Scope) Now() time.Time { return sc.opts.Clock.Now() }

// NowMillis es el formato de createdAt / lastLoginAt.
func (sc *Scope) NowMillis() int64 { return sc.Now().UnixMilli() }

// WipeAccounts borra cuentas y todos los registros pendientes del scope.
func (sc *Scope) WipeAccounts() {
	sc.reset()
}
