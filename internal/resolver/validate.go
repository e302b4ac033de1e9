package resolver

import (
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/graph"
	"github.com/okapi-platform/okapi/internal/semver"
)

// CheckAvailable verifies that every requirement of every catalog module is
// met by exactly one catalog product. It returns the violations joined by
// ". ", or "" when the catalog is consistent.
func CheckAvailable(catalog v1alpha1.Catalog) string {
	index := graph.NewIndex(catalog)
	var msgs []string
	for _, id := range graph.SortedIDs(catalog) {
		md := catalog[id]
		for _, req := range md.Requires {
			products := index.FindProviders(req).Products()
			switch len(products) {
			case 0:
				msgs = append(msgs, msgInterfaceNotFound(req.ID, md.ID))
			case 1:
			default:
				msgs = append(msgs, msgMultipleProducts(req.ID, md.ID, products))
			}
		}
	}
	return strings.Join(msgs, ". ")
}

// CheckAvailableSubset validates candidates against the catalog extended by
// the candidates themselves.
//
// With pruneRedundant, a requirement that is ambiguous only because some
// candidates offer an alternative to a single catalog product is accepted,
// and those alternative candidates are dropped from the returned list.
func CheckAvailableSubset(catalog v1alpha1.Catalog, candidates []v1alpha1.ModuleDescriptor, pruneRedundant bool) ([]v1alpha1.ModuleDescriptor, string) {
	universe := make(v1alpha1.Catalog, len(catalog)+len(candidates))
	resident := sets.New[string]()
	for id, md := range catalog {
		universe[id] = md
		resident.Insert(md.Product())
	}
	candidateIDs := sets.New[string]()
	for _, md := range candidates {
		universe[md.ID] = md
		candidateIDs.Insert(md.ID)
	}

	index := graph.NewIndex(universe)
	redundant := sets.New[string]()
	var msgs []string
	for _, md := range candidates {
		for _, req := range md.Requires {
			found := index.FindProviders(req)
			products := found.Products()
			switch len(products) {
			case 0:
				msgs = append(msgs, msgInterfaceNotFound(req.ID, md.ID))
				continue
			case 1:
				continue
			}
			if pruneRedundant {
				var residentProducts []string
				for _, p := range products {
					if resident.Has(p) {
						residentProducts = append(residentProducts, p)
					}
				}
				if len(residentProducts) == 1 {
					for _, p := range products {
						if p == residentProducts[0] {
							continue
						}
						for _, alt := range found[p] {
							if candidateIDs.Has(alt.ID) && alt.ID != md.ID {
								redundant.Insert(alt.ID)
							}
						}
					}
					continue
				}
			}
			msgs = append(msgs, msgMultipleProducts(req.ID, md.ID, products))
		}
	}

	kept := make([]v1alpha1.ModuleDescriptor, 0, len(candidates))
	for _, md := range candidates {
		if !redundant.Has(md.ID) {
			kept = append(kept, md)
		}
	}
	return kept, strings.Join(msgs, ". ")
}

// CheckEnabled reports every exclusive interface that more than one enabled
// product provides, in the order the interfaces are first declared.
func CheckEnabled(enabled v1alpha1.EnabledModules) []string {
	var msgs []string
	for _, c := range interfaceConflicts(modulesByProduct(enabled)) {
		msgs = append(msgs, msgMultipleModules(moduleIDs(c.modules), c.iface))
	}
	return msgs
}

type conflict struct {
	iface   string
	modules []v1alpha1.ModuleDescriptor
}

// interfaceConflicts groups mods by the exclusive interfaces they provide
// and returns the groups with more than one product.
func interfaceConflicts(mods []v1alpha1.ModuleDescriptor) []conflict {
	var order []string
	providers := make(map[string][]v1alpha1.ModuleDescriptor)
	for _, md := range mods {
		seen := sets.New[string]()
		for _, pi := range md.Provides {
			if !pi.Exclusive() || seen.Has(pi.ID) {
				continue
			}
			seen.Insert(pi.ID)
			if _, ok := providers[pi.ID]; !ok {
				order = append(order, pi.ID)
			}
			providers[pi.ID] = append(providers[pi.ID], md)
		}
	}
	var out []conflict
	for _, iface := range order {
		if len(providers[iface]) > 1 {
			out = append(out, conflict{iface: iface, modules: providers[iface]})
		}
	}
	return out
}

func modulesByProduct(enabled v1alpha1.EnabledModules) []v1alpha1.ModuleDescriptor {
	products := make([]string, 0, len(enabled))
	for product := range enabled {
		products = append(products, product)
	}
	sort.Strings(products)
	mods := make([]v1alpha1.ModuleDescriptor, 0, len(products))
	for _, product := range products {
		mods = append(mods, enabled[product])
	}
	return mods
}

func moduleIDs(mods []v1alpha1.ModuleDescriptor) []string {
	ids := make([]string, len(mods))
	for i, md := range mods {
		ids[i] = md.ID
	}
	return ids
}

// newestWith returns the newest module in versions accepted by ok.
func newestWith(versions []v1alpha1.ModuleDescriptor, ok func(v1alpha1.ModuleDescriptor) bool) (v1alpha1.ModuleDescriptor, bool) {
	for _, md := range versions {
		if ok(md) {
			return md, true
		}
	}
	return v1alpha1.ModuleDescriptor{}, false
}

// satisfiedBy reports whether every reference md makes to iface accepts the
// provided version.
func satisfiedBy(md v1alpha1.ModuleDescriptor, iface, provided string) bool {
	for _, refs := range [][]v1alpha1.InterfaceDescriptor{md.Requires, md.Optional} {
		for _, ref := range refs {
			if ref.ID == iface && !semver.IsCompatibleAny(provided, ref.Version) {
				return false
			}
		}
	}
	return true
}
