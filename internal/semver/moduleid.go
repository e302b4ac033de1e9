package semver

import (
	"fmt"
	"strings"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// ModuleID is a parsed module id of the form <product>-<version>.
//
// A bare product name parses with HasVersion false.
type ModuleID struct {
	ID         string
	Product    string
	Version    Version
	HasVersion bool
}

func ParseModuleID(id string) (ModuleID, error) {
	if strings.TrimSpace(id) == "" {
		return ModuleID{}, fmt.Errorf("semver: empty module id")
	}
	product := v1alpha1.ProductOf(id)
	raw := v1alpha1.VersionOf(id)
	if raw == "" {
		return ModuleID{ID: id, Product: product}, nil
	}
	v, err := ParseVersion(raw)
	if err != nil {
		return ModuleID{}, fmt.Errorf("semver: module id %q: %w", id, err)
	}
	return ModuleID{ID: id, Product: product, Version: v, HasVersion: true}, nil
}

// Compare orders by product name and then by version precedence.
// A bare product sorts below any of its versions.
func (m ModuleID) Compare(o ModuleID) int {
	if c := strings.Compare(m.Product, o.Product); c != 0 {
		return c
	}
	switch {
	case !m.HasVersion && !o.HasVersion:
		return 0
	case !m.HasVersion:
		return -1
	case !o.HasVersion:
		return 1
	}
	if c := Compare(m.Version, o.Version); c != 0 {
		return c
	}
	// Equal precedence (e.g. differing build metadata); keep order total.
	return strings.Compare(m.ID, o.ID)
}

// CompareIDs compares two module ids. Ids that fail to parse fall back to
// plain string comparison.
func CompareIDs(a, b string) int {
	ma, errA := ParseModuleID(a)
	mb, errB := ParseModuleID(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ma.Compare(mb)
}

// Latest returns the newest id among ids, or "" when ids is empty.
func Latest(ids []string) string {
	latest := ""
	for _, id := range ids {
		if latest == "" || CompareIDs(id, latest) > 0 {
			latest = id
		}
	}
	return latest
}
