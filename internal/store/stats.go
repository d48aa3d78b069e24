package store

import "github.com/dropDatabas3/authemu/internal/metrics"

// Stats toma una foto del tamaño de cada scope (para /metrics).
func (s *Store) Stats() []metrics.ScopeStat {
	var out []metrics.ScopeStat
	for _, id := range s.ProjectIDs() {
		p := s.Project(id)
		scopes := []*Scope{p.root}
		p.mu.RLock()
		for _, t := range p.tenants {
			scopes = append(scopes, t.scope)
		}
		p.mu.RUnlock()

		for _, sc := range scopes {
			sc.mu.Lock()
			out = append(out, metrics.ScopeStat{
				ProjectID:         id,
				TenantID:          sc.tenantID,
				Accounts:          len(sc.accounts),
				OobCodes:          len(sc.oob),
				VerificationCodes: len(sc.sms),
			})
			sc.mu.Unlock()
		}
	}
	return out
}
