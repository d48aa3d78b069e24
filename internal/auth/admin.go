package auth

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/store"
)

// =================================================================================
// TENANTS (v2)
// =================================================================================

// TenantRequest es el body de create/patch de tenants.
type TenantRequest struct {
	Name                  string           `json:"name,omitempty"`
	TenantID              string           `json:"tenantId,omitempty"`
	DisplayName           string           `json:"displayName,omitempty"`
	AllowPasswordSignup   bool             `json:"allowPasswordSignup,omitempty"`
	EnableEmailLinkSignin bool             `json:"enableEmailLinkSignin,omitempty"`
	EnableAnonymousUser   bool             `json:"enableAnonymousUser,omitempty"`
	DisableAuth           bool             `json:"disableAuth,omitempty"`
	MfaConfig             *types.MfaConfig `json:"mfaConfig,omitempty"`
}

// ListTenantsResponse es la respuesta de GET tenants.
type ListTenantsResponse struct {
	Tenants       []types.Tenant `json:"tenants"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func requireProjectScope(c Caller) error {
	if !c.Privileged {
		return errors.ErrInsufficientPermission
	}
	if c.TenantID != "" {
		return errors.ErrUnsupportedTenantOperation
	}
	return nil
}

// CreateTenant crea un tenant con flags explícitos (ausentes = false).
func (s *Service) CreateTenant(ctx context.Context, c Caller, req TenantRequest) (t types.Tenant, err error) {
	defer observe("tenants:create", &err)
	if err = requireProjectScope(c); err != nil {
		return t, err
	}
	in := types.Tenant{
		TenantID:              req.TenantID,
		DisplayName:           req.DisplayName,
		AllowPasswordSignup:   req.AllowPasswordSignup,
		EnableEmailLinkSignin: req.EnableEmailLinkSignin,
		EnableAnonymousUser:   req.EnableAnonymousUser,
		DisableAuth:           req.DisableAuth,
	}
	if req.MfaConfig != nil {
		in.MfaConfig = *req.MfaConfig
	}
	t, err = s.store.Project(c.ProjectID).CreateTenant(in)
	if err != nil {
		return t, err
	}
	s.log(ctx, "CreateTenant").Info("tenant created", logger.ProjectID(c.ProjectID), logger.TenantID(t.TenantID))
	return t, nil
}

// GetTenant devuelve un tenant.
func (s *Service) GetTenant(ctx context.Context, c Caller, tenantID string) (t types.Tenant, err error) {
	defer observe("tenants:get", &err)
	if err = requireProjectScope(c); err != nil {
		return t, err
	}
	return s.store.Project(c.ProjectID).Tenant(tenantID)
}

// ListTenants pagina los tenants por ID. pageToken es el offset.
func (s *Service) ListTenants(ctx context.Context, c Caller, pageSize int, pageToken string) (resp *ListTenantsResponse, err error) {
	defer observe("tenants:list", &err)
	if err = requireProjectScope(c); err != nil {
		return nil, err
	}
	all := s.store.Project(c.ProjectID).Tenants()
	offset := 0
	if pageToken != "" {
		if offset, err = strconv.Atoi(pageToken); err != nil || offset < 0 {
			return nil, errors.BadRequest("INVALID_PAGE_SELECTION")
		}
	}
	if offset > len(all) {
		offset = len(all)
	}
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 20
	}
	end := offset + pageSize
	resp = &ListTenantsResponse{Tenants: []types.Tenant{}}
	if end < len(all) {
		resp.NextPageToken = strconv.Itoa(end)
	} else {
		end = len(all)
	}
	resp.Tenants = append(resp.Tenants, all[offset:end]...)
	return resp, nil
}

// UpdateTenant aplica un PATCH sobre el tenant.
func (s *Service) UpdateTenant(ctx context.Context, c Caller, tenantID string, patch map[string]any, updateMask string) (t types.Tenant, err error) {
	defer observe("tenants:patch", &err)
	if err = requireProjectScope(c); err != nil {
		return t, err
	}
	if id, ok := patch["tenantId"].(string); ok && id != tenantID {
		return t, errors.ErrTenantIDMismatch
	}
	return s.store.Project(c.ProjectID).UpdateTenant(tenantID, patch, splitMask(updateMask))
}

// DeleteTenant borra el tenant y todas sus cuentas.
func (s *Service) DeleteTenant(ctx context.Context, c Caller, tenantID string) (err error) {
	defer observe("tenants:delete", &err)
	if err = requireProjectScope(c); err != nil {
		return err
	}
	if err = s.store.Project(c.ProjectID).DeleteTenant(tenantID); err != nil {
		return err
	}
	s.log(ctx, "DeleteTenant").Info("tenant deleted", logger.ProjectID(c.ProjectID), logger.TenantID(tenantID))
	return nil
}

// =================================================================================
// PROJECT CONFIG (v2)
// =================================================================================

// GetConfig devuelve la config del proyecto.
func (s *Service) GetConfig(ctx context.Context, c Caller) (cfg types.ProjectConfig, err error) {
	defer observe("config:get", &err)
	if err = requireProjectScope(c); err != nil {
		return cfg, err
	}
	return s.store.Project(c.ProjectID).Config(), nil
}

// UpdateConfig aplica un PATCH: con updateMask solo esas rutas, sin mask el
// payload reemplaza la config (mergeado sobre los defaults).
func (s *Service) UpdateConfig(ctx context.Context, c Caller, patch map[string]any, updateMask string) (cfg types.ProjectConfig, err error) {
	defer observe("config:patch", &err)
	if err = requireProjectScope(c); err != nil {
		return cfg, err
	}
	cfg, err = s.store.Project(c.ProjectID).UpdateConfig(patch, splitMask(updateMask))
	if err != nil {
		return cfg, err
	}
	s.log(ctx, "UpdateConfig").Info("project config updated", logger.ProjectID(c.ProjectID))
	return cfg, nil
}

func splitMask(mask string) []string {
	var out []string
	for _, p := range strings.Split(mask, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =================================================================================
// EMULATOR ADMIN (/emulator/v1)
// =================================================================================

// EmulatorConfig es la vista reducida de /emulator/v1/.../config.
type EmulatorConfig struct {
	SignIn             types.SignInConfig       `json:"signIn"`
	EmailPrivacyConfig types.EmailPrivacyConfig `json:"emailPrivacyConfig"`
}

// OobCodesResponse lista los OOB codes pendientes.
type OobCodesResponse struct {
	OobCodes []types.OobRecord `json:"oobCodes"`
}

// VerificationCodesResponse lista las sesiones SMS pendientes.
type VerificationCodesResponse struct {
	VerificationCodes []types.VerificationCode `json:"verificationCodes"`
}

// ListOobCodes devuelve los OOB codes vigentes del scope.
func (s *Service) ListOobCodes(ctx context.Context, c Caller) (resp *OobCodesResponse, err error) {
	err = s.within(ctx, c, "", func(sc *store.Scope) error {
		resp = &OobCodesResponse{OobCodes: sc.OobCodes()}
		return nil
	})
	return resp, err
}

// ListVerificationCodes devuelve las sesiones SMS vigentes del scope.
func (s *Service) ListVerificationCodes(ctx context.Context, c Caller) (resp *VerificationCodesResponse, err error) {
	err = s.within(ctx, c, "", func(sc *store.Scope) error {
		resp = &VerificationCodesResponse{VerificationCodes: sc.VerificationCodes()}
		return nil
	})
	return resp, err
}

// WipeAccounts borra cuentas y registros pendientes del scope.
func (s *Service) WipeAccounts(ctx context.Context, c Caller) error {
	err := s.within(ctx, c, "", func(sc *store.Scope) error {
		sc.WipeAccounts()
		return nil
	})
	if err != nil {
		return err
	}
	s.log(ctx, "WipeAccounts").Info("accounts wiped", logger.ProjectID(c.ProjectID), logger.TenantID(c.TenantID))
	return nil
}

// GetEmulatorConfig devuelve la config del emulador del proyecto.
func (s *Service) GetEmulatorConfig(ctx context.Context, c Caller) (*EmulatorConfig, error) {
	cfg := s.store.Project(c.ProjectID).Config()
	return &EmulatorConfig{SignIn: cfg.SignIn, EmailPrivacyConfig: cfg.EmailPrivacyConfig}, nil
}

// UpdateEmulatorConfig mergea solo los campos presentes en el payload.
func (s *Service) UpdateEmulatorConfig(ctx context.Context, c Caller, patch map[string]any) (*EmulatorConfig, error) {
	allowed := map[string]any{}
	for _, k := range []string{"signIn", "emailPrivacyConfig"} {
		if v, ok := patch[k]; ok {
			allowed[k] = v
		}
	}
	for k := range patch {
		if _, ok := allowed[k]; !ok {
			return nil, errors.ErrInvalidConfig.WithDetail("unknown field: " + k)
		}
	}
	mask := leafPaths(allowed, "")
	if len(mask) == 0 {
		return s.GetEmulatorConfig(ctx, c)
	}
	cfg, err := s.store.Project(c.ProjectID).UpdateConfig(allowed, mask)
	if err != nil {
		return nil, err
	}
	return &EmulatorConfig{SignIn: cfg.SignIn, EmailPrivacyConfig: cfg.EmailPrivacyConfig}, nil
}

// leafPaths lista las rutas "a.b.c" de las hojas de un payload.
func leafPaths(m map[string]any, prefix string) []string {
	var out []string
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
			out = append(out, leafPaths(sub, path)...)
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
