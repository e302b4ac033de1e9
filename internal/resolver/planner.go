package resolver

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/graph"
)

// Planner is the default Installer.
type Planner struct {
	// Fixup lets the planner disable modules the caller did not name in order
	// to resolve interface conflicts and removed dependencies.
	Fixup bool
	// Reinstall turns enable requests for an already enabled version into
	// enable actions with From equal to the id.
	Reinstall bool
	// MaxIterations bounds the number of fixup passes. Zero selects
	// DefaultMaxIterations.
	MaxIterations int
}

func NewDefault() *Planner {
	return &Planner{Fixup: true}
}

// DefaultMaxIterations returns an iteration budget large enough for any
// dependency chain the catalog can express.
func DefaultMaxIterations(catalog v1alpha1.Catalog) int {
	return 2*len(catalog) + 2
}

// Install plans requested against enabled and returns the classified,
// ordered actions.
func Install(ctx context.Context, catalog v1alpha1.Catalog, enabled v1alpha1.EnabledModules, requested []v1alpha1.TenantModuleDescriptor, fixup bool) ([]v1alpha1.TenantModuleDescriptor, error) {
	return InstallMaxIterations(ctx, catalog, enabled, requested, fixup, DefaultMaxIterations(catalog))
}

// InstallMaxIterations is Install with an explicit iteration budget.
func InstallMaxIterations(ctx context.Context, catalog v1alpha1.Catalog, enabled v1alpha1.EnabledModules, requested []v1alpha1.TenantModuleDescriptor, fixup bool, maxIterations int) ([]v1alpha1.TenantModuleDescriptor, error) {
	if maxIterations <= 0 {
		return nil, userErrorf("Dependency resolution not completing in %d iterations", maxIterations)
	}
	p := &Planner{Fixup: fixup, MaxIterations: maxIterations}
	plan, err := p.Install(ctx, Input{Catalog: catalog, Enabled: enabled, Requested: requested})
	if err != nil {
		return nil, err
	}
	return plan.Actions, nil
}

func (p *Planner) Install(ctx context.Context, in Input) (Plan, error) {
	logger := log.FromContext(ctx).WithName("planner")

	pc := &planContext{
		catalog:   in.Catalog,
		enabled:   in.Enabled,
		index:     graph.NewIndex(in.Catalog),
		fixup:     p.Fixup,
		reinstall: p.Reinstall,
	}
	state, err := pc.classify(in.Requested)
	if err != nil {
		return Plan{}, err
	}

	maxIterations := p.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations(in.Catalog)
	}
	iterations := 0
	for {
		iterations++
		if iterations > maxIterations {
			return Plan{}, userErrorf("Dependency resolution not completing in %d iterations", maxIterations)
		}
		res, err := pc.step(state)
		if err != nil {
			return Plan{}, err
		}
		if res.done {
			break
		}
		if v := logger.V(1); v.Enabled() {
			v.Info("fixup pass", "iteration", iterations, "deltas", describeEntries(res.deltas))
		}
		state = state.apply(res.deltas)
	}

	actions, err := sequence(state)
	if err != nil {
		return Plan{}, err
	}
	logger.V(1).Info("install planned", "actions", len(actions), "iterations", iterations)
	return Plan{Actions: actions, Iterations: iterations}, nil
}

// classify resolves the caller's entries to concrete module ids and decides
// each entry's action against the enabled set.
func (pc *planContext) classify(requested []v1alpha1.TenantModuleDescriptor) (installState, error) {
	entries := make([]entry, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, tm := range requested {
		e := entry{tm: tm, explicit: true}
		switch tm.Action {
		case v1alpha1.ActionSuggest, v1alpha1.ActionConflict:
			e.product = v1alpha1.ProductOf(tm.ID)
			e.module = pc.catalog[tm.ID]
		case v1alpha1.ActionEnable, v1alpha1.ActionUptodate:
			md, ok := pc.resolveEnable(tm.ID)
			if !ok {
				return installState{}, &UserError{Message: msgModuleNotFound(tm.ID)}
			}
			e.product = md.Product()
			e.module = md
			e.tm.ID = md.ID
			e.tm.Action = v1alpha1.ActionEnable
			e.tm.From = nil
			if old, ok := pc.enabled[e.product]; ok {
				switch {
				case old.ID != md.ID:
					e.tm.From = ptr.To(old.ID)
				case pc.reinstall:
					e.tm.From = ptr.To(old.ID)
				default:
					e.tm.Action = v1alpha1.ActionUptodate
				}
			}
		case v1alpha1.ActionDisable:
			old, ok := pc.resolveDisable(tm.ID)
			if !ok {
				return installState{}, &UserError{Message: msgModuleNotFound(tm.ID)}
			}
			e.product = old.Product()
			e.module = old
			e.tm.ID = old.ID
			e.tm.From = nil
		default:
			return installState{}, userErrorf("Unknown action %q for module %s", tm.Action, tm.ID)
		}
		if seen[e.product] {
			return installState{}, userErrorf("Module %s given more than once", e.product)
		}
		seen[e.product] = true
		entries = append(entries, e)
	}
	return newInstallState(entries), nil
}

// resolveEnable maps a module id or bare product to a catalog module. A bare
// product resolves to its newest version.
func (pc *planContext) resolveEnable(id string) (v1alpha1.ModuleDescriptor, bool) {
	if md, ok := pc.catalog[id]; ok {
		return md, true
	}
	if v1alpha1.VersionOf(id) != "" {
		return v1alpha1.ModuleDescriptor{}, false
	}
	return pc.index.Newest(id)
}

// resolveDisable maps a module id or bare product to the enabled module.
func (pc *planContext) resolveDisable(id string) (v1alpha1.ModuleDescriptor, bool) {
	old, ok := pc.enabled[v1alpha1.ProductOf(id)]
	if !ok {
		return v1alpha1.ModuleDescriptor{}, false
	}
	if old.ID != id && v1alpha1.VersionOf(id) != "" {
		return v1alpha1.ModuleDescriptor{}, false
	}
	return old, true
}

// sequence orders the final entries so providers are enabled before their
// consumers and consumers are disabled before their providers.
func sequence(s installState) ([]v1alpha1.TenantModuleDescriptor, error) {
	nodes := make([]graph.Node, len(s.entries))
	for i, e := range s.entries {
		nodes[i] = graph.Node{Module: e.module, Disable: e.tm.Action == v1alpha1.ActionDisable}
	}
	order, err := graph.Sort(nodes)
	if err != nil {
		var cycle *graph.CycleError
		if errors.As(err, &cycle) {
			return nil, &UserError{Message: cycle.Error()}
		}
		return nil, err
	}
	actions := s.actions()
	out := make([]v1alpha1.TenantModuleDescriptor, 0, len(order))
	for _, i := range order {
		out = append(out, actions[i])
	}
	return out, nil
}

func describeEntries(entries []entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("%s %s", e.tm.Action, e.tm.ID)
	}
	return out
}
