package v1alpha1

// TenantModuleDescriptor is one planned step of a tenant install.
//
// Callers submit enable/disable requests; the planner classifies each entry,
// sets From for upgrades and downgrades, and appends entries for
// dependencies it had to pull in or conflicts it had to remove.
type TenantModuleDescriptor struct {
	ID string `json:"id"`
	// From is the module id being replaced. Nil when the product was not
	// enabled before.
	From    *string `json:"from,omitempty"`
	Action  Action  `json:"action"`
	Message string  `json:"message,omitempty"`
	// Stage is owned by the install job executor.
	Stage string `json:"stage,omitempty"`
}

// Catalog maps module ids to descriptors.
type Catalog map[string]ModuleDescriptor

// EnabledModules maps product names to the single enabled module version.
type EnabledModules map[string]ModuleDescriptor
