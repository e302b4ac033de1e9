// Package graph indexes a module catalog by provided interface and orders
// planned module actions along their interface dependencies.
package graph

import (
	"slices"
	"sort"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/semver"
)

// ShadowMap maps a superseded product to the product that replaces it.
type ShadowMap map[string]string

// BuildShadowMap derives the supersession relation from every module's
// replaces list. Modules are visited in id order and the first declaration
// for a product wins.
func BuildShadowMap(catalog v1alpha1.Catalog) ShadowMap {
	return buildShadowMap(catalog, SortedIDs(catalog))
}

func buildShadowMap(catalog v1alpha1.Catalog, ids []string) ShadowMap {
	shadow := make(ShadowMap)
	for _, id := range ids {
		md := catalog[id]
		product := md.Product()
		for _, replaced := range md.Replaces {
			if replaced == "" || replaced == product {
				continue
			}
			if _, ok := shadow[replaced]; !ok {
				shadow[replaced] = product
			}
		}
	}
	return shadow
}

// Shadowed reports whether product is superseded by another catalog product.
func (s ShadowMap) Shadowed(product string) bool {
	_, ok := s[product]
	return ok
}

// Providers groups compatible provider modules by product. Each product's
// modules are sorted newest first.
type Providers map[string][]v1alpha1.ModuleDescriptor

// Products returns the distinct provider products, sorted.
func (p Providers) Products() []string {
	products := make([]string, 0, len(p))
	for product := range p {
		products = append(products, product)
	}
	sort.Strings(products)
	return products
}

// Newest returns the newest provider module of product.
func (p Providers) Newest(product string) (v1alpha1.ModuleDescriptor, bool) {
	mds := p[product]
	if len(mds) == 0 {
		return v1alpha1.ModuleDescriptor{}, false
	}
	return mds[0], true
}

// Index is a read-only view of a catalog keyed by provided interface id and
// by product. Build it once per planning call.
type Index struct {
	shadow      ShadowMap
	byInterface map[string][]v1alpha1.ModuleDescriptor
	byProduct   map[string][]v1alpha1.ModuleDescriptor
}

func NewIndex(catalog v1alpha1.Catalog) *Index {
	parsed, bad := splitIDs(catalog)
	return newIndex(catalog, parsed, bad, buildShadowMap(catalog, append(slices.Clone(parsed), bad...)))
}

// newIndex lists every product's modules newest first, with ids that do not
// parse after all parsed versions.
func newIndex(catalog v1alpha1.Catalog, parsed, bad []string, shadow ShadowMap) *Index {
	x := &Index{
		shadow:      shadow,
		byInterface: make(map[string][]v1alpha1.ModuleDescriptor),
		byProduct:   make(map[string][]v1alpha1.ModuleDescriptor),
	}
	ids := make([]string, 0, len(parsed)+len(bad))
	for i := len(parsed) - 1; i >= 0; i-- {
		ids = append(ids, parsed[i])
	}
	ids = append(ids, bad...)
	for _, id := range ids {
		md := catalog[id]
		seen := make(map[string]bool, len(md.Provides))
		for _, pi := range md.Provides {
			if seen[pi.ID] {
				continue
			}
			seen[pi.ID] = true
			x.byInterface[pi.ID] = append(x.byInterface[pi.ID], md)
		}
		x.byProduct[md.Product()] = append(x.byProduct[md.Product()], md)
	}
	return x
}

func (x *Index) Shadow() ShadowMap {
	return x.shadow
}

// Versions returns every catalog module of product, newest first.
func (x *Index) Versions(product string) []v1alpha1.ModuleDescriptor {
	return x.byProduct[product]
}

// Newest returns the newest catalog module of product.
func (x *Index) Newest(product string) (v1alpha1.ModuleDescriptor, bool) {
	versions := x.byProduct[product]
	if len(versions) == 0 {
		return v1alpha1.ModuleDescriptor{}, false
	}
	return versions[0], true
}

// FindProviders returns the modules that provide an interface compatible
// with req, skipping superseded products.
func (x *Index) FindProviders(req v1alpha1.InterfaceDescriptor) Providers {
	found := make(Providers)
	for _, md := range x.byInterface[req.ID] {
		product := md.Product()
		if x.shadow.Shadowed(product) {
			continue
		}
		if ProvidesCompatible(md, req) {
			found[product] = append(found[product], md)
		}
	}
	return found
}

// FindProviders returns the catalog modules that provide an interface
// compatible with req, skipping products superseded in shadow.
func FindProviders(catalog v1alpha1.Catalog, req v1alpha1.InterfaceDescriptor, shadow ShadowMap) Providers {
	parsed, bad := splitIDs(catalog)
	return newIndex(catalog, parsed, bad, shadow).FindProviders(req)
}

// ProvidesCompatible reports whether md provides req.ID at a version that
// satisfies one of req's alternatives.
func ProvidesCompatible(md v1alpha1.ModuleDescriptor, req v1alpha1.InterfaceDescriptor) bool {
	for _, pi := range md.Provides {
		if pi.ID == req.ID && semver.IsCompatibleAny(pi.Version, req.Version) {
			return true
		}
	}
	return false
}

// ProvidedInterface returns md's declaration of interface id.
func ProvidedInterface(md v1alpha1.ModuleDescriptor, id string) (v1alpha1.InterfaceDescriptor, bool) {
	for _, pi := range md.Provides {
		if pi.ID == id {
			return pi, true
		}
	}
	return v1alpha1.InterfaceDescriptor{}, false
}

// SortedIDs returns the catalog's module ids ordered by product and version.
// Ids that do not parse come last in string order.
func SortedIDs(catalog v1alpha1.Catalog) []string {
	parsed, bad := splitIDs(catalog)
	return append(parsed, bad...)
}

// splitIDs returns the parseable ids in ascending order and the rest sorted
// as strings.
func splitIDs(catalog v1alpha1.Catalog) (parsed, bad []string) {
	ids := make([]semver.ModuleID, 0, len(catalog))
	for id := range catalog {
		m, err := semver.ParseModuleID(id)
		if err != nil {
			bad = append(bad, id)
			continue
		}
		ids = append(ids, m)
	}
	slices.SortFunc(ids, func(a, b semver.ModuleID) int { return a.Compare(b) })
	sort.Strings(bad)

	parsed = make([]string, 0, len(catalog))
	for _, m := range ids {
		parsed = append(parsed, m.ID)
	}
	return parsed, bad
}
