package resolver

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// entry is one classified action together with the module it targets.
type entry struct {
	tm       v1alpha1.TenantModuleDescriptor
	product  string
	module   v1alpha1.ModuleDescriptor
	explicit bool
}

// installState is the immutable action list between fixup passes.
type installState struct {
	entries []entry
	index   map[string]int
}

func newInstallState(entries []entry) installState {
	s := installState{entries: entries, index: make(map[string]int, len(entries))}
	for i, e := range entries {
		s.index[e.product] = i
	}
	return s
}

func (s installState) lookup(product string) (entry, bool) {
	i, ok := s.index[product]
	if !ok {
		return entry{}, false
	}
	return s.entries[i], true
}

func (s installState) explicit(product string) bool {
	e, ok := s.lookup(product)
	return ok && e.explicit
}

// pinned returns products that fixup must not enable: those being disabled
// and those carrying advisory tags.
func (s installState) pinned() sets.Set[string] {
	pinned := sets.New[string]()
	for _, e := range s.entries {
		if e.tm.Action == v1alpha1.ActionDisable || e.tm.Action.Advisory() {
			pinned.Insert(e.product)
		}
	}
	return pinned
}

// apply returns a new state with deltas merged in. A delta replaces the
// entry of its product or is appended when the product has none.
func (s installState) apply(deltas []entry) installState {
	entries := make([]entry, len(s.entries), len(s.entries)+len(deltas))
	copy(entries, s.entries)
	index := make(map[string]int, len(s.index))
	for product, i := range s.index {
		index[product] = i
	}
	for _, d := range deltas {
		if i, ok := index[d.product]; ok {
			entries[i] = d
			continue
		}
		index[d.product] = len(entries)
		entries = append(entries, d)
	}
	return installState{entries: entries, index: index}
}

// actions returns the tenant module descriptors in entry order.
func (s installState) actions() []v1alpha1.TenantModuleDescriptor {
	out := make([]v1alpha1.TenantModuleDescriptor, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.tm
	}
	return out
}

// deltaSet collects at most one new entry per product within a pass.
type deltaSet struct {
	entries  []entry
	products sets.Set[string]
}

func newDeltaSet() *deltaSet {
	return &deltaSet{products: sets.New[string]()}
}

func (d *deltaSet) add(e entry) {
	if d.products.Has(e.product) {
		return
	}
	d.products.Insert(e.product)
	d.entries = append(d.entries, e)
}
