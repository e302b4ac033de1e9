// Package pruner selects module versions to retain or retire per product.
package pruner

import (
	"slices"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/semver"
)

type parsed struct {
	md v1alpha1.ModuleDescriptor
	id semver.ModuleID
	ok bool
}

func parseAll(modules []v1alpha1.ModuleDescriptor) []parsed {
	out := make([]parsed, len(modules))
	for i, md := range modules {
		id, err := semver.ParseModuleID(md.ID)
		out[i] = parsed{md: md, id: id, ok: err == nil && id.HasVersion}
	}
	return out
}

// newestFirst orders by product ascending and version descending. Modules
// without a parseable version sort last in their original order.
func newestFirst(a, b parsed) int {
	switch {
	case !a.ok && !b.ok:
		return 0
	case !a.ok:
		return 1
	case !b.ok:
		return -1
	}
	if a.id.Product != b.id.Product {
		if a.id.Product < b.id.Product {
			return -1
		}
		return 1
	}
	return b.id.Compare(a.id)
}

// LatestProducts keeps the keep newest versions of every product. The
// retained modules are compacted into the front of modules, ordered by
// product and newest first, and the shortened slice is returned. Modules
// whose ids do not carry a version are always kept.
func LatestProducts(keep int, modules []v1alpha1.ModuleDescriptor) []v1alpha1.ModuleDescriptor {
	ps := parseAll(modules)
	slices.SortStableFunc(ps, newestFirst)

	seen := make(map[string]int)
	n := 0
	for _, p := range ps {
		if p.ok {
			if seen[p.id.Product] >= keep {
				continue
			}
			seen[p.id.Product]++
		}
		modules[n] = p.md
		n++
	}
	clear(modules[n:])
	return modules[:n]
}

// Obsolete returns the modules that fall outside the retention counts. Releases
// and pre-releases are counted separately per product. The result is ordered by
// product and newest first; modules is not modified.
func Obsolete(modules []v1alpha1.ModuleDescriptor, keepReleases, keepPreReleases int) []v1alpha1.ModuleDescriptor {
	ps := parseAll(modules)
	slices.SortStableFunc(ps, newestFirst)

	releases := make(map[string]int)
	preReleases := make(map[string]int)
	var out []v1alpha1.ModuleDescriptor
	for _, p := range ps {
		if !p.ok {
			continue
		}
		counts, limit := releases, keepReleases
		if p.id.Version.IsPreRelease() {
			counts, limit = preReleases, keepPreReleases
		}
		if counts[p.id.Product] < limit {
			counts[p.id.Product]++
			continue
		}
		out = append(out, p.md)
	}
	return out
}
