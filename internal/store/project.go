package store

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	tokens "github.com/dropDatabas3/authemu/internal/security/token"
)

type tenantEntry struct {
	info  types.Tenant
	scope *Scope
}

// Project agrupa la config del proyecto, su scope raíz y sus tenants.
type Project struct {
	ID   string
	opts *Options

	mu      sync.RWMutex
	config  types.ProjectConfig
	root    *Scope
	tenants map[string]*tenantEntry
}

func newProject(id string, opts *Options) *Project {
	p := &Project{
		ID:      id,
		opts:    opts,
		config:  types.DefaultProjectConfig(id),
		tenants: make(map[string]*tenantEntry),
	}
	p.root = newScope(p, "")
	return p
}

// Config devuelve una copia de la config actual.
func (p *Project) Config() types.ProjectConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneConfig(p.config)
}

// UpdateConfig aplica un PATCH. Con mask solo cambian esas rutas; sin mask
// el payload se mergea sobre los defaults.
func (p *Project) UpdateConfig(patch map[string]any, mask []string) (types.ProjectConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base := types.DefaultProjectConfig(p.ID)
	if len(mask) > 0 {
		base = p.config
	}
	var next types.ProjectConfig
	if err := patchStruct(base, patch, mask, &next); err != nil {
		return types.ProjectConfig{}, err
	}
	next.Name = "projects/" + p.ID + "/config"
	p.config = next
	return cloneConfig(next), nil
}

// Policy combina la config del proyecto con la del tenant (si hay).
func (p *Project) Policy(tenantID string) types.Policy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pol := types.Policy{
		AllowPasswordSignup:   true,
		EnableAnonymousUser:   true,
		EnableEmailLinkSignin: true,
		AllowDuplicateEmails:  p.config.SignIn.AllowDuplicateEmails,
		ImprovedEmailPrivacy:  p.config.EmailPrivacyConfig.EnableImprovedEmailPrivacy,
		Mfa:                   p.config.Mfa,
		Triggers:              cloneTriggers(p.config.BlockingFunctions.Triggers),
	}
	if tenantID == "" {
		return pol
	}
	if t, ok := p.tenants[tenantID]; ok {
		pol.DisableAuth = t.info.DisableAuth
		pol.AllowPasswordSignup = t.info.AllowPasswordSignup
		pol.EnableAnonymousUser = t.info.EnableAnonymousUser
		pol.EnableEmailLinkSignin = t.info.EnableEmailLinkSignin
		pol.Mfa = t.info.MfaConfig
	}
	return pol
}

// =================================================================================
// TENANTS
// =================================================================================

// enabledTenant son los defaults del auto-create: todo habilitado.
func enabledTenant(projectID, tenantID string) types.Tenant {
	return types.Tenant{
		Name:                  "projects/" + projectID + "/tenants/" + tenantID,
		TenantID:              tenantID,
		AllowPasswordSignup:   true,
		EnableEmailLinkSignin: true,
		EnableAnonymousUser:   true,
		MfaConfig: types.MfaConfig{
			State:            types.MfaStateEnabled,
			EnabledProviders: []string{types.MfaProviderSMS},
		},
	}
}

func (p *Project) tenantScope(tenantID string, autoCreate bool) (*Scope, error) {
	p.mu.RLock()
	t, ok := p.tenants[tenantID]
	p.mu.RUnlock()
	if ok {
		return t.scope, nil
	}
	if !autoCreate {
		return nil, errors.ErrTenantNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tenants[tenantID]; ok {
		return t.scope, nil
	}
	t = &tenantEntry{info: enabledTenant(p.ID, tenantID), scope: newScope(p, tenantID)}
	p.tenants[tenantID] = t
	return t.scope, nil
}

// Tenant devuelve la config del tenant.
func (p *Project) Tenant(tenantID string) (types.Tenant, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tenants[tenantID]
	if !ok {
		return types.Tenant{}, errors.ErrTenantNotFound
	}
	return cloneTenant(t.info), nil
}

// Tenants lista los tenants ordenados por ID.
func (p *Project) Tenants() []types.Tenant {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.Tenant, 0, len(p.tenants))
	for _, t := range p.tenants {
		out = append(out, cloneTenant(t.info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

// CreateTenant crea un tenant explícito. Los flags que no vengan quedan en
// false, a diferencia del auto-create.
func (p *Project) CreateTenant(t types.Tenant) (types.Tenant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.TenantID == "" {
		for {
			t.TenantID = "tenant-" + tokens.RandomID(6)
			if _, exists := p.tenants[t.TenantID]; !exists {
				break
			}
		}
	} else if _, exists := p.tenants[t.TenantID]; exists {
		return types.Tenant{}, errors.ErrTenantExists
	}
	t.Name = "projects/" + p.ID + "/tenants/" + t.TenantID
	p.tenants[t.TenantID] = &tenantEntry{info: t, scope: newScope(p, t.TenantID)}
	return cloneTenant(t), nil
}

// UpdateTenant aplica un PATCH con la misma semántica de mask que la config.
// Sin mask, el payload se mergea sobre el tenant actual.
func (p *Project) UpdateTenant(tenantID string, patch map[string]any, mask []string) (types.Tenant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tenants[tenantID]
	if !ok {
		return types.Tenant{}, errors.ErrTenantNotFound
	}
	var next types.Tenant
	if err := patchStruct(t.info, patch, mask, &next); err != nil {
		return types.Tenant{}, err
	}
	next.TenantID = tenantID
	next.Name = t.info.Name
	t.info = next
	return cloneTenant(next), nil
}

// DeleteTenant borra el tenant con todas sus cuentas.
func (p *Project) DeleteTenant(tenantID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tenants[tenantID]; !ok {
		return errors.ErrTenantNotFound
	}
	delete(p.tenants, tenantID)
	return nil
}

// =================================================================================
// HELPERS
// =================================================================================

func cloneConfig(c types.ProjectConfig) types.ProjectConfig {
	c.BlockingFunctions.Triggers = cloneTriggers(c.BlockingFunctions.Triggers)
	c.Mfa.EnabledProviders = append([]string(nil), c.Mfa.EnabledProviders...)
	return c
}

func cloneTenant(t types.Tenant) types.Tenant {
	t.MfaConfig.EnabledProviders = append([]string(nil), t.MfaConfig.EnabledProviders...)
	return t
}

func cloneTriggers(in map[string]types.BlockingTrigger) map[string]types.BlockingTrigger {
	if in == nil {
		return nil
	}
	out := make(map[string]types.BlockingTrigger, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// patchStruct pasa base a mapa JSON, aplica el patch y decodifica en out.
func patchStruct(base any, patch map[string]any, mask []string, out any) error {
	raw, err := json.Marshal(base)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if len(mask) > 0 {
		ApplyMask(doc, patch, mask)
	} else {
		DeepMerge(doc, patch)
	}
	raw, err = json.Marshal(doc)
	if err != nil {
		return errors.ErrInvalidConfig.WithCause(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.ErrInvalidConfig.WithDetail(err.Error())
	}
	return nil
}
