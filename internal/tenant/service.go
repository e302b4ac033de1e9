// Package tenant plans and commits module installs for tenants.
package tenant

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/graph"
	"github.com/okapi-platform/okapi/internal/metrics"
	"github.com/okapi-platform/okapi/internal/resolver"
	"github.com/okapi-platform/okapi/internal/semver"
)

// Options tune a single planning call.
type Options struct {
	Fixup         bool
	Reinstall     bool
	MaxIterations int
}

// DefaultOptions enables fixup, which is what interactive installs use.
func DefaultOptions() Options {
	return Options{Fixup: true}
}

// Service serializes installs per tenant and commits the resulting enabled
// set only when planning succeeds.
type Service struct {
	Modules ModuleStore
	Tenants TenantStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(modules ModuleStore, tenants TenantStore) *Service {
	return &Service{Modules: modules, Tenants: tenants}
}

func (s *Service) tenantLock(tenant string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[tenant]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenant] = l
	}
	return l
}

func (s *Service) logger(ctx context.Context, tenant string) logr.Logger {
	return log.FromContext(ctx).WithName("tenant").WithValues("tenant", tenant)
}

// Install plans requested for tenant and stores the new enabled set.
func (s *Service) Install(ctx context.Context, tenant string, requested []v1alpha1.TenantModuleDescriptor, opts Options) ([]v1alpha1.TenantModuleDescriptor, error) {
	l := s.tenantLock(tenant)
	l.Lock()
	defer l.Unlock()
	return s.install(ctx, tenant, requested, opts, true)
}

// Simulate plans requested for tenant without committing anything.
func (s *Service) Simulate(ctx context.Context, tenant string, requested []v1alpha1.TenantModuleDescriptor, opts Options) ([]v1alpha1.TenantModuleDescriptor, error) {
	l := s.tenantLock(tenant)
	l.Lock()
	defer l.Unlock()
	return s.install(ctx, tenant, requested, opts, false)
}

// Upgrade moves every enabled module of tenant to the newest catalog version
// of its product.
func (s *Service) Upgrade(ctx context.Context, tenant string, opts Options) ([]v1alpha1.TenantModuleDescriptor, error) {
	l := s.tenantLock(tenant)
	l.Lock()
	defer l.Unlock()

	catalog, enabled, err := s.load(ctx, tenant)
	if err != nil {
		return nil, err
	}
	requested := upgradeRequest(catalog, enabled)
	s.logger(ctx, tenant).V(1).Info("upgrade requested", "modules", len(requested))
	return s.install(ctx, tenant, requested, opts, true)
}

// Check reports interface conflicts among the modules enabled for tenant.
func (s *Service) Check(ctx context.Context, tenant string) ([]string, error) {
	enabled, err := s.Tenants.Enabled(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("tenant: check %s: %w", tenant, err)
	}
	return resolver.CheckEnabled(enabled), nil
}

func (s *Service) load(ctx context.Context, tenant string) (v1alpha1.Catalog, v1alpha1.EnabledModules, error) {
	catalog, err := s.Modules.Catalog(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: load catalog: %w", err)
	}
	enabled, err := s.Tenants.Enabled(ctx, tenant)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: load enabled modules: %w", err)
	}
	return catalog, enabled, nil
}

func (s *Service) install(ctx context.Context, tenant string, requested []v1alpha1.TenantModuleDescriptor, opts Options, commit bool) ([]v1alpha1.TenantModuleDescriptor, error) {
	logger := s.logger(ctx, tenant)
	catalog, enabled, err := s.load(ctx, tenant)
	if err != nil {
		return nil, err
	}

	p := &resolver.Planner{Fixup: opts.Fixup, Reinstall: opts.Reinstall, MaxIterations: opts.MaxIterations}
	start := time.Now()
	plan, err := p.Install(log.IntoContext(ctx, logger), resolver.Input{Catalog: catalog, Enabled: enabled, Requested: requested})
	if err != nil {
		outcome := metrics.OutcomeError
		if resolver.IsUserError(err) {
			outcome = metrics.OutcomeUserError
		}
		metrics.ObservePlan(outcome, time.Since(start), 0, nil)
		logger.Info("install rejected", "reason", err.Error())
		return nil, err
	}
	metrics.ObservePlan(metrics.OutcomeSuccess, time.Since(start), plan.Iterations, plan.Actions)

	if commit {
		next, err := resolver.ApplyPlan(catalog, enabled, plan.Actions)
		if err != nil {
			return nil, fmt.Errorf("tenant: apply plan: %w", err)
		}
		if err := s.Tenants.SetEnabled(ctx, tenant, next); err != nil {
			return nil, fmt.Errorf("tenant: store enabled modules: %w", err)
		}
	}
	logger.Info("install planned", "actions", len(plan.Actions), "iterations", plan.Iterations, "committed", commit)
	return plan.Actions, nil
}

// upgradeRequest asks for the newest version of every enabled product that
// has a newer release in the catalog.
func upgradeRequest(catalog v1alpha1.Catalog, enabled v1alpha1.EnabledModules) []v1alpha1.TenantModuleDescriptor {
	index := graph.NewIndex(catalog)
	products := make([]string, 0, len(enabled))
	for product := range enabled {
		products = append(products, product)
	}
	sort.Strings(products)

	var out []v1alpha1.TenantModuleDescriptor
	for _, product := range products {
		newest, ok := index.Newest(product)
		if !ok || semver.CompareIDs(newest.ID, enabled[product].ID) <= 0 {
			continue
		}
		out = append(out, v1alpha1.TenantModuleDescriptor{ID: newest.ID, Action: v1alpha1.ActionEnable})
	}
	return out
}
