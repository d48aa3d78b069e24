package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/dropDatabas3/authemu/internal/domain/types"
)

// Seed es un archivo de import: cuentas y config opcional para un scope.
// Acepta JSONC (comentarios y comas finales), el mismo shape que devuelve
// el export de cuentas.
type Seed struct {
	ProjectID string          `json:"projectId"`
	TenantID  string          `json:"tenantId,omitempty"`
	Config    map[string]any  `json:"config,omitempty"`
	Users     []types.Account `json:"users"`
	Tenants   []types.Tenant  `json:"tenants,omitempty"`
}

// ParseSeed decodifica un seed JSONC.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if s.ProjectID == "" {
		return nil, fmt.Errorf("parse seed: projectId is required")
	}
	return &s, nil
}

// LoadSeedFile lee y parsea un seed desde disco.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// Import aplica el seed: tenants, config y cuentas (con overwrite).
// Devuelve cuántas cuentas se importaron.
func (s *Store) Import(seed *Seed) (int, error) {
	p := s.Project(seed.ProjectID)
	for _, t := range seed.Tenants {
		if _, err := p.Tenant(t.TenantID); err == nil {
			continue
		}
		if _, err := p.CreateTenant(t); err != nil {
			return 0, fmt.Errorf("import tenant %s: %w", t.TenantID, err)
		}
	}
	if len(seed.Config) > 0 {
		if _, err := p.UpdateConfig(seed.Config, nil); err != nil {
			return 0, fmt.Errorf("import config: %w", err)
		}
	}

	sc, err := s.Scope(seed.ProjectID, seed.TenantID)
	if err != nil {
		return 0, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i := range seed.Users {
		if _, err := sc.CreateAccount(&seed.Users[i], CreateOptions{AllowOverwrite: true}); err != nil {
			return i, fmt.Errorf("import user %d (%s): %w", i, seed.Users[i].LocalID, err)
		}
	}
	return len(seed.Users), nil
}
