package resolver

import (
	"fmt"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// ApplyPlan returns the enabled set that results from executing actions
// against enabled. Neither argument is modified.
func ApplyPlan(catalog v1alpha1.Catalog, enabled v1alpha1.EnabledModules, actions []v1alpha1.TenantModuleDescriptor) (v1alpha1.EnabledModules, error) {
	out := make(v1alpha1.EnabledModules, len(enabled))
	for product, md := range enabled {
		out[product] = md
	}
	for _, tm := range actions {
		switch tm.Action {
		case v1alpha1.ActionEnable:
			md, ok := catalog[tm.ID]
			if !ok {
				return nil, fmt.Errorf("resolver: apply plan: module %s not in catalog", tm.ID)
			}
			out[md.Product()] = md
		case v1alpha1.ActionDisable:
			delete(out, v1alpha1.ProductOf(tm.ID))
		}
	}
	return out, nil
}
