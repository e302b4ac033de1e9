package resolver

import (
	"context"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// Installer computes the ordered actions that take a tenant from its enabled
// module set to one that honors the requested changes.
type Installer interface {
	Install(ctx context.Context, in Input) (Plan, error)
}

// Input is the planner's view of the world. Catalog and Enabled are never
// modified; Requested is copied before classification.
type Input struct {
	Catalog   v1alpha1.Catalog
	Enabled   v1alpha1.EnabledModules
	Requested []v1alpha1.TenantModuleDescriptor
}

// Plan is the result of a successful install planning call.
type Plan struct {
	// Actions holds one entry per product, in an order that enables
	// providers before their consumers.
	Actions []v1alpha1.TenantModuleDescriptor
	// Iterations is the number of fixup passes needed to reach a fixed point.
	Iterations int
}
