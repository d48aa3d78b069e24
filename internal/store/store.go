// Package store guarda el estado en memoria del emulador: proyectos, tenants,
// cuentas con sus índices de unicidad y registros pendientes (OOB codes,
// sesiones SMS, credenciales MFA, temporary proofs).
//
// Cada scope (proyecto raíz o tenant) tiene su propio mutex. Las operaciones
// corren dentro de Store.Do, que mantiene el lock desde la validación hasta
// el commit, incluida la llamada a blocking functions.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// Options configura el store.
type Options struct {
	Clock clockwork.Clock

	// TenantAutoCreate crea tenants al vuelo con todo habilitado cuando un
	// request referencia uno inexistente. Solo tiene sentido en el emulador.
	TenantAutoCreate bool

	OobCodeTTL          time.Duration
	VerificationCodeTTL time.Duration
	MfaPendingTTL       time.Duration
	TemporaryProofTTL   time.Duration
}

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.OobCodeTTL <= 0 {
		o.OobCodeTTL = time.Hour
	}
	if o.VerificationCodeTTL <= 0 {
		o.VerificationCodeTTL = 10 * time.Minute
	}
	if o.MfaPendingTTL <= 0 {
		o.MfaPendingTTL = 20 * time.Minute
	}
	if o.TemporaryProofTTL <= 0 {
		o.TemporaryProofTTL = 10 * time.Minute
	}
}

// Store es el contexto de proceso: un mapa de proyectos creados on-demand.
type Store struct {
	opts Options

	mu       sync.RWMutex
	projects map[string]*Project
	sf       singleflight.Group
}

// New crea un store vacío.
func New(opts Options) *Store {
	opts.setDefaults()
	return &Store{
		opts:     opts,
		projects: make(map[string]*Project),
	}
}

// Clock es el reloj que usan expiraciones y timestamps.
func (s *Store) Clock() clockwork.Clock { return s.opts.Clock }

// Project devuelve el proyecto, creándolo en el primer acceso.
func (s *Store) Project(id string) *Project {
	s.mu.RLock()
	p := s.projects[id]
	s.mu.RUnlock()
	if p != nil {
		return p
	}

	v, _, _ := s.sf.Do(id, func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if p, ok := s.projects[id]; ok {
			return p, nil
		}
		p := newProject(id, &s.opts)
		s.projects[id] = p
		logger.L().Debug("project state created", logger.Component("store"), logger.ProjectID(id))
		return p, nil
	})
	return v.(*Project)
}

// ProjectIDs lista los proyectos existentes, ordenados.
func (s *Store) ProjectIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.projects))
	for id := range s.projects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Scope resuelve el scope de cuentas: raíz del proyecto o tenant.
func (s *Store) Scope(projectID, tenantID string) (*Scope, error) {
	p := s.Project(projectID)
	if tenantID == "" {
		return p.root, nil
	}
	return p.tenantScope(tenantID, s.opts.TenantAutoCreate)
}

// Do ejecuta fn con el lock del scope tomado. Todo lo que lee un índice de
// unicidad y después escribe tiene que pasar por acá.
func (s *Store) Do(ctx context.Context, projectID, tenantID string, fn func(sc *Scope) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sc, err := s.Scope(projectID, tenantID)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return fn(sc)
}

// DoExisting es Do sin efectos laterales: no crea el proyecto ni el tenant.
// Si alguno no existe devuelve PROJECT_NOT_FOUND / TENANT_NOT_FOUND.
func (s *Store) DoExisting(ctx context.Context, projectID, tenantID string, fn func(sc *Scope) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	p := s.projects[projectID]
	s.mu.RUnlock()
	if p == nil {
		return errors.ErrProjectNotFound
	}
	sc := p.root
	if tenantID != "" {
		var err error
		if sc, err = p.tenantScope(tenantID, false); err != nil {
			return err
		}
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return fn(sc)
}
