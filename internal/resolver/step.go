package resolver

import (
	"k8s.io/utils/ptr"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/graph"
	"github.com/okapi-platform/okapi/internal/semver"
)

// planContext holds the inputs that stay fixed for one planning call.
type planContext struct {
	catalog   v1alpha1.Catalog
	enabled   v1alpha1.EnabledModules
	index     *graph.Index
	fixup     bool
	reinstall bool
}

// stepResult is the outcome of one fixup pass. Done is set when the pass
// produced no deltas.
type stepResult struct {
	done   bool
	deltas []entry
}

// pass accumulates the findings of one step.
type pass struct {
	state      installState
	deltas     *deltaSet
	violations []string
}

// step validates the prospective module set described by s and proposes the
// actions that fix what can be fixed. It never modifies s.
func (pc *planContext) step(s installState) (stepResult, error) {
	p := &pass{state: s, deltas: newDeltaSet()}
	prospective := pc.project(s)

	for _, md := range prospective {
		for _, req := range md.Requires {
			pc.checkRequired(p, prospective, md, req)
		}
		for _, opt := range md.Optional {
			pc.checkOptional(p, prospective, md, opt)
		}
	}
	pc.checkConflicts(p, prospective)

	if len(p.violations) > 0 {
		return stepResult{}, joinViolations(p.violations)
	}
	if len(p.deltas.entries) == 0 {
		return stepResult{done: true}, nil
	}
	return stepResult{deltas: p.deltas.entries}, nil
}

// project returns the module set that would be enabled after s: entries in
// list order first, then the untouched enabled modules in product order.
func (pc *planContext) project(s installState) []v1alpha1.ModuleDescriptor {
	out := make([]v1alpha1.ModuleDescriptor, 0, len(s.entries)+len(pc.enabled))
	for _, e := range s.entries {
		switch e.tm.Action {
		case v1alpha1.ActionEnable, v1alpha1.ActionUptodate:
			out = append(out, e.module)
		}
	}
	for _, md := range modulesByProduct(pc.enabled) {
		if e, ok := s.lookup(md.Product()); ok && !e.tm.Action.Advisory() {
			continue
		}
		out = append(out, md)
	}
	return out
}

// presentProviders returns the prospective modules declaring iface and the
// subset whose version satisfies ref.
func presentProviders(prospective []v1alpha1.ModuleDescriptor, ref v1alpha1.InterfaceDescriptor) (present, compatible []v1alpha1.ModuleDescriptor) {
	for _, md := range prospective {
		if _, ok := graph.ProvidedInterface(md, ref.ID); !ok {
			continue
		}
		present = append(present, md)
		if graph.ProvidesCompatible(md, ref) {
			compatible = append(compatible, md)
		}
	}
	return present, compatible
}

func (pc *planContext) checkRequired(p *pass, prospective []v1alpha1.ModuleDescriptor, md v1alpha1.ModuleDescriptor, req v1alpha1.InterfaceDescriptor) {
	present, compatible := presentProviders(prospective, req)
	switch {
	case len(compatible) > 0:
		// Several compatible products are reported by checkConflicts.
	case len(present) > 0:
		pc.resolveIncompatible(p, prospective, md, req, present[0], true)
	default:
		pc.pullProvider(p, prospective, md, req)
	}
}

func (pc *planContext) checkOptional(p *pass, prospective []v1alpha1.ModuleDescriptor, md v1alpha1.ModuleDescriptor, opt v1alpha1.InterfaceDescriptor) {
	present, compatible := presentProviders(prospective, opt)
	if len(compatible) > 0 || len(present) == 0 {
		return
	}
	pc.resolveIncompatible(p, prospective, md, opt, present[0], false)
}

// pullProvider enables the single catalog product able to satisfy req.
func (pc *planContext) pullProvider(p *pass, prospective []v1alpha1.ModuleDescriptor, md v1alpha1.ModuleDescriptor, req v1alpha1.InterfaceDescriptor) {
	pinned := p.state.pinned()
	found := pc.index.FindProviders(req)
	excluded := false
	for product := range found {
		if pinned.Has(product) {
			delete(found, product)
			excluded = true
		}
	}

	products := found.Products()
	switch len(products) {
	case 1:
		candidate, _, ok := pc.providerFor(p, found[products[0]], prospective, md, req)
		if !ok {
			candidate, _ = found.Newest(products[0])
		}
		pc.propose(p, pc.enableEntry(candidate))
	case 0:
		product := md.Product()
		if excluded && pc.fixup && pc.isIncumbent(md) && !p.state.explicit(product) {
			if _, touched := p.state.lookup(product); !touched {
				pc.propose(p, pc.disableEntry(md))
				return
			}
		}
		p.violations = append(p.violations, msgInterfaceNotFound(req.ID, md.ID))
	default:
		p.violations = append(p.violations, msgMultipleProducts(req.ID, md.ID, products))
	}
}

// resolveIncompatible handles a provider that is present at a version md
// cannot use. A provider version picked in an earlier pass is kept when md
// can follow it; otherwise the provider moves to a version every consumer
// accepts, and only then is md itself changed.
func (pc *planContext) resolveIncompatible(p *pass, prospective []v1alpha1.ModuleDescriptor, md v1alpha1.ModuleDescriptor, ref v1alpha1.InterfaceDescriptor, provider v1alpha1.ModuleDescriptor, required bool) {
	providerProduct := provider.Product()
	pi, _ := graph.ProvidedInterface(provider, ref.ID)

	if _, touched := p.state.lookup(providerProduct); touched && required && pc.upgradeConsumer(p, md, ref.ID, pi.Version) {
		return
	}

	var blocked *blocker
	if !p.state.explicit(providerProduct) {
		candidate, b, ok := pc.providerFor(p, pc.index.Versions(providerProduct), prospective, md, ref)
		if ok {
			pc.propose(p, pc.enableEntry(candidate))
			return
		}
		blocked = b
	}

	if required && pc.upgradeConsumer(p, md, ref.ID, pi.Version) {
		return
	}
	if blocked != nil {
		p.violations = append(p.violations, msgIncompatible(blocked.consumer.md.ID, ref.ID, blocked.consumer.ref.Version, blocked.provided, blocked.candidate.ID))
		return
	}
	p.violations = append(p.violations, msgIncompatible(md.ID, ref.ID, ref.Version, pi.Version, provider.ID))
}

// upgradeConsumer moves a non-explicit md to its newest version whose
// references to iface accept provided.
func (pc *planContext) upgradeConsumer(p *pass, md v1alpha1.ModuleDescriptor, iface, provided string) bool {
	if p.state.explicit(md.Product()) {
		return false
	}
	candidate, ok := newestWith(pc.index.Versions(md.Product()), func(c v1alpha1.ModuleDescriptor) bool {
		return satisfiedBy(c, iface, provided)
	})
	if !ok || candidate.ID == md.ID {
		return false
	}
	pc.propose(p, pc.enableEntry(candidate))
	return true
}

// consumerRef is one prospective module's reference to an interface.
type consumerRef struct {
	md  v1alpha1.ModuleDescriptor
	ref v1alpha1.InterfaceDescriptor
}

// blocker records the first consumer that rules out a provider candidate.
type blocker struct {
	consumer  consumerRef
	candidate v1alpha1.ModuleDescriptor
	provided  string
}

func consumersOf(prospective []v1alpha1.ModuleDescriptor, iface string) []consumerRef {
	var out []consumerRef
	for _, md := range prospective {
		for _, refs := range [][]v1alpha1.InterfaceDescriptor{md.Requires, md.Optional} {
			for _, ref := range refs {
				if ref.ID == iface {
					out = append(out, consumerRef{md: md, ref: ref})
				}
			}
		}
	}
	return out
}

// accepts reports whether c can live with provided, either as is or after
// an upgrade of a consumer the caller did not name.
func (pc *planContext) accepts(p *pass, c consumerRef, provided string) bool {
	if semver.IsCompatibleAny(provided, c.ref.Version) {
		return true
	}
	if p.state.explicit(c.md.Product()) {
		return false
	}
	_, ok := newestWith(pc.index.Versions(c.md.Product()), func(v v1alpha1.ModuleDescriptor) bool {
		return satisfiedBy(v, c.ref.ID, provided)
	})
	return ok
}

// providerFor returns the newest of versions that satisfies ref and is
// accepted by every other prospective consumer of the interface. When none
// qualifies, the blocker of the newest ref-compatible version is returned.
func (pc *planContext) providerFor(p *pass, versions, prospective []v1alpha1.ModuleDescriptor, md v1alpha1.ModuleDescriptor, ref v1alpha1.InterfaceDescriptor) (v1alpha1.ModuleDescriptor, *blocker, bool) {
	consumers := consumersOf(prospective, ref.ID)
	var first *blocker
	for _, candidate := range versions {
		if !graph.ProvidesCompatible(candidate, ref) {
			continue
		}
		pi, _ := graph.ProvidedInterface(candidate, ref.ID)
		var b *blocker
		for _, c := range consumers {
			if c.md.ID == md.ID || c.md.Product() == candidate.Product() {
				continue
			}
			if !pc.accepts(p, c, pi.Version) {
				b = &blocker{consumer: c, candidate: candidate, provided: pi.Version}
				break
			}
		}
		if b == nil {
			return candidate, nil, true
		}
		if first == nil {
			first = b
		}
	}
	return v1alpha1.ModuleDescriptor{}, first, false
}

// checkConflicts reports or resolves exclusive interfaces provided by more
// than one prospective product.
func (pc *planContext) checkConflicts(p *pass, prospective []v1alpha1.ModuleDescriptor) {
	for _, c := range interfaceConflicts(prospective) {
		if !pc.fixup {
			p.violations = append(p.violations, msgMultipleModules(moduleIDs(c.modules), c.iface))
			continue
		}
		var removable, pinnedIncumbents []v1alpha1.ModuleDescriptor
		implicitNewcomer := false
		for _, md := range c.modules {
			explicit := p.state.explicit(md.Product())
			switch incumbent := pc.isIncumbent(md); {
			case incumbent && !explicit:
				removable = append(removable, md)
			case incumbent:
				pinnedIncumbents = append(pinnedIncumbents, md)
			case !explicit:
				implicitNewcomer = true
			}
		}
		switch {
		case len(removable) == 1:
			pc.propose(p, pc.disableEntry(removable[0]))
		case len(removable) == 0 && len(pinnedIncumbents) > 0 && implicitNewcomer:
			p.violations = append(p.violations, msgExplicitlyGiven(pinnedIncumbents[0].ID))
		default:
			p.violations = append(p.violations, msgMultipleModules(moduleIDs(c.modules), c.iface))
		}
	}
}

// propose records e unless the state already holds the same action or the
// product was named by the caller.
func (pc *planContext) propose(p *pass, e entry) {
	if cur, ok := p.state.lookup(e.product); ok {
		if cur.explicit {
			return
		}
		if cur.tm.Action == e.tm.Action && cur.tm.ID == e.tm.ID {
			return
		}
	}
	p.deltas.add(e)
}

// isIncumbent reports whether md is the version enabled before this call.
func (pc *planContext) isIncumbent(md v1alpha1.ModuleDescriptor) bool {
	old, ok := pc.enabled[md.Product()]
	return ok && old.ID == md.ID
}

// enableEntry builds an automatic action that puts md in the enabled set.
func (pc *planContext) enableEntry(md v1alpha1.ModuleDescriptor) entry {
	e := entry{
		tm:      v1alpha1.TenantModuleDescriptor{ID: md.ID, Action: v1alpha1.ActionEnable},
		product: md.Product(),
		module:  md,
	}
	if old, ok := pc.enabled[e.product]; ok {
		if old.ID == md.ID {
			e.tm.Action = v1alpha1.ActionUptodate
		} else {
			e.tm.From = ptr.To(old.ID)
		}
	}
	return e
}

func (pc *planContext) disableEntry(md v1alpha1.ModuleDescriptor) entry {
	return entry{
		tm:      v1alpha1.TenantModuleDescriptor{ID: md.ID, Action: v1alpha1.ActionDisable},
		product: md.Product(),
		module:  md,
	}
}
