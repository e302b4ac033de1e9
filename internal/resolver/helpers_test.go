package resolver

import (
	"fmt"

	"k8s.io/utils/ptr"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

func iface(id, version string) v1alpha1.InterfaceDescriptor {
	return v1alpha1.InterfaceDescriptor{ID: id, Version: version}
}

func ifaces(pairs ...string) []v1alpha1.InterfaceDescriptor {
	out := make([]v1alpha1.InterfaceDescriptor, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, iface(pairs[i], pairs[i+1]))
	}
	return out
}

func md(id string, provides, requires []v1alpha1.InterfaceDescriptor) v1alpha1.ModuleDescriptor {
	return v1alpha1.ModuleDescriptor{ID: id, Provides: provides, Requires: requires}
}

func catalogOf(mds ...v1alpha1.ModuleDescriptor) v1alpha1.Catalog {
	c := make(v1alpha1.Catalog, len(mds))
	for _, m := range mds {
		c[m.ID] = m
	}
	return c
}

func enabledOf(mds ...v1alpha1.ModuleDescriptor) v1alpha1.EnabledModules {
	e := make(v1alpha1.EnabledModules, len(mds))
	for _, m := range mds {
		e[m.Product()] = m
	}
	return e
}

func enable(id string) v1alpha1.TenantModuleDescriptor {
	return v1alpha1.TenantModuleDescriptor{ID: id, Action: v1alpha1.ActionEnable}
}

func disable(id string) v1alpha1.TenantModuleDescriptor {
	return v1alpha1.TenantModuleDescriptor{ID: id, Action: v1alpha1.ActionDisable}
}

// describe renders actions as "action id[ from old]" for compact comparisons.
func describe(tms []v1alpha1.TenantModuleDescriptor) []string {
	out := make([]string, len(tms))
	for i, tm := range tms {
		out[i] = fmt.Sprintf("%s %s", tm.Action, tm.ID)
		if tm.From != nil {
			out[i] += " from " + ptr.Deref(tm.From, "")
		}
	}
	return out
}

// chain builds m0..m(n-1) where mi requires the interface provided by m(i-1).
func chain(n int) v1alpha1.Catalog {
	c := make(v1alpha1.Catalog, n)
	for i := 0; i < n; i++ {
		m := md(fmt.Sprintf("m%d-1.0.0", i), ifaces(fmt.Sprintf("int%d", i), "1.0"), nil)
		if i > 0 {
			m.Requires = ifaces(fmt.Sprintf("int%d", i-1), "1.0")
		}
		c[m.ID] = m
	}
	return c
}
