package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// ErrTenantNotFound is returned by a TenantStore for unknown tenants.
var ErrTenantNotFound = errors.New("tenant not found")

// ModuleStore supplies the module catalog.
type ModuleStore interface {
	Catalog(ctx context.Context) (v1alpha1.Catalog, error)
}

// TenantStore persists the enabled modules of each tenant.
type TenantStore interface {
	Enabled(ctx context.Context, tenant string) (v1alpha1.EnabledModules, error)
	SetEnabled(ctx context.Context, tenant string, enabled v1alpha1.EnabledModules) error
}

// MemoryModuleStore is a ModuleStore backed by a map.
type MemoryModuleStore struct {
	mu      sync.RWMutex
	modules v1alpha1.Catalog
}

func NewMemoryModuleStore(mds ...v1alpha1.ModuleDescriptor) *MemoryModuleStore {
	s := &MemoryModuleStore{modules: make(v1alpha1.Catalog, len(mds))}
	s.Add(mds...)
	return s
}

// Add registers modules, replacing any with the same id.
func (s *MemoryModuleStore) Add(mds ...v1alpha1.ModuleDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, md := range mds {
		s.modules[md.ID] = md
	}
}

func (s *MemoryModuleStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modules, id)
}

// Catalog returns a snapshot of the registered modules.
func (s *MemoryModuleStore) Catalog(_ context.Context) (v1alpha1.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(v1alpha1.Catalog, len(s.modules))
	for id, md := range s.modules {
		out[id] = md
	}
	return out, nil
}

// MemoryTenantStore is a TenantStore backed by a map.
type MemoryTenantStore struct {
	mu      sync.RWMutex
	tenants map[string]v1alpha1.EnabledModules
}

func NewMemoryTenantStore() *MemoryTenantStore {
	return &MemoryTenantStore{tenants: make(map[string]v1alpha1.EnabledModules)}
}

// Create registers tenant with no modules enabled. Creating an existing
// tenant is an error.
func (s *MemoryTenantStore) Create(tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant]; ok {
		return fmt.Errorf("tenant: %s already exists", tenant)
	}
	s.tenants[tenant] = v1alpha1.EnabledModules{}
	return nil
}

func (s *MemoryTenantStore) Enabled(_ context.Context, tenant string) (v1alpha1.EnabledModules, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.tenants[tenant]
	if !ok {
		return nil, fmt.Errorf("tenant: %s: %w", tenant, ErrTenantNotFound)
	}
	return copyEnabled(enabled), nil
}

func (s *MemoryTenantStore) SetEnabled(_ context.Context, tenant string, enabled v1alpha1.EnabledModules) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant]; !ok {
		return fmt.Errorf("tenant: %s: %w", tenant, ErrTenantNotFound)
	}
	s.tenants[tenant] = copyEnabled(enabled)
	return nil
}

func copyEnabled(enabled v1alpha1.EnabledModules) v1alpha1.EnabledModules {
	out := make(v1alpha1.EnabledModules, len(enabled))
	for product, md := range enabled {
		out[product] = md
	}
	return out
}
