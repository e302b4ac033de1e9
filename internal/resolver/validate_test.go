package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

func TestCheckAvailable(t *testing.T) {
	a := md("A-1.0.0", ifaces("int", "1.0"), nil)
	b := md("B-1.0.0", ifaces("int", "1.0"), nil)
	e := md("E-1.0.0", nil, ifaces("int", "1.0"))
	f := md("F-1.0.0", nil, ifaces("missing", "1.0"))

	tests := []struct {
		name    string
		catalog v1alpha1.Catalog
		want    string
	}{
		{name: "empty", catalog: catalogOf(), want: ""},
		{name: "consistent", catalog: catalogOf(a, e), want: ""},
		{name: "missing", catalog: catalogOf(a, e, f), want: "interface missing required by module F-1.0.0 not found"},
		{
			name:    "ambiguous and missing",
			catalog: catalogOf(a, b, e, f),
			want:    "interface int required by module E-1.0.0 is provided by multiple products: A, B. interface missing required by module F-1.0.0 not found",
		},
		{name: "incompatible only", catalog: catalogOf(a, md("G-1.0.0", nil, ifaces("int", "2.0"))), want: "interface int required by module G-1.0.0 not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckAvailable(tt.catalog); got != tt.want {
				t.Fatalf("CheckAvailable:\n got: %q\nwant: %q", got, tt.want)
			}
		})
	}
}

func TestCheckAvailable_ReplacedProductIgnored(t *testing.T) {
	old := md("mod-old-1.0.0", ifaces("int", "1.0"), nil)
	repl := md("mod-new-1.0.0", ifaces("int", "1.0"), nil)
	repl.Replaces = []string{"mod-old"}
	e := md("E-1.0.0", nil, ifaces("int", "1.0"))

	if got := CheckAvailable(catalogOf(old, repl, e)); got != "" {
		t.Fatalf("expected consistent catalog, got %q", got)
	}
}

func TestCheckAvailableSubset(t *testing.T) {
	a := md("A-1.0.0", ifaces("int", "1.0"), nil)
	b := md("B-1.0.0", ifaces("int", "1.0"), nil)
	e := md("E-1.0.0", nil, ifaces("int", "1.0"))
	f := md("F-1.0.0", nil, ifaces("missing", "1.0"))

	t.Run("candidate satisfied by catalog", func(t *testing.T) {
		kept, msg := CheckAvailableSubset(catalogOf(a), []v1alpha1.ModuleDescriptor{e}, false)
		if msg != "" {
			t.Fatalf("unexpected violation %q", msg)
		}
		if diff := cmp.Diff([]v1alpha1.ModuleDescriptor{e}, kept); diff != "" {
			t.Fatalf("unexpected kept (-want +got):\n%s", diff)
		}
	})

	t.Run("candidate satisfied by candidate", func(t *testing.T) {
		_, msg := CheckAvailableSubset(catalogOf(), []v1alpha1.ModuleDescriptor{e, a}, false)
		if msg != "" {
			t.Fatalf("unexpected violation %q", msg)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, msg := CheckAvailableSubset(catalogOf(a), []v1alpha1.ModuleDescriptor{f}, false)
		if msg != "interface missing required by module F-1.0.0 not found" {
			t.Fatalf("unexpected violation %q", msg)
		}
	})

	t.Run("ambiguous without pruning", func(t *testing.T) {
		kept, msg := CheckAvailableSubset(catalogOf(a), []v1alpha1.ModuleDescriptor{e, b}, false)
		if msg != "interface int required by module E-1.0.0 is provided by multiple products: A, B" {
			t.Fatalf("unexpected violation %q", msg)
		}
		if len(kept) != 2 {
			t.Fatalf("expected both candidates kept, got %d", len(kept))
		}
	})

	t.Run("ambiguous with pruning", func(t *testing.T) {
		kept, msg := CheckAvailableSubset(catalogOf(a), []v1alpha1.ModuleDescriptor{e, b}, true)
		if msg != "" {
			t.Fatalf("unexpected violation %q", msg)
		}
		if diff := cmp.Diff([]v1alpha1.ModuleDescriptor{e}, kept); diff != "" {
			t.Fatalf("unexpected kept (-want +got):\n%s", diff)
		}
	})
}

func TestCheckEnabled(t *testing.T) {
	a := md("A-1.0.0", ifaces("int", "1.0", "other", "1.0"), nil)
	b := md("B-1.0.0", ifaces("other", "1.0", "int", "1.1"), nil)
	c := md("C-1.0.0", ifaces("_timer", "1.0"), nil)
	d := md("D-1.0.0", ifaces("_timer", "1.0"), nil)

	if got := CheckEnabled(enabledOf(c, d)); len(got) != 0 {
		t.Fatalf("expected no conflicts for shared interfaces, got %v", got)
	}

	want := []string{
		"Multiple modules A-1.0.0, B-1.0.0 provide interface int",
		"Multiple modules A-1.0.0, B-1.0.0 provide interface other",
	}
	if diff := cmp.Diff(want, CheckEnabled(enabledOf(b, a, c, d))); diff != "" {
		t.Fatalf("unexpected conflicts (-want +got):\n%s", diff)
	}
}

func TestApplyPlan(t *testing.T) {
	a1 := md("A-1.0.0", nil, nil)
	a2 := md("A-2.0.0", nil, nil)
	b := md("B-1.0.0", nil, nil)
	c := md("C-1.0.0", nil, nil)
	catalog := catalogOf(a1, a2, b, c)
	enabled := enabledOf(a1, b)

	got, err := ApplyPlan(catalog, enabled, []v1alpha1.TenantModuleDescriptor{
		{ID: "A-2.0.0", Action: v1alpha1.ActionEnable},
		{ID: "B-1.0.0", Action: v1alpha1.ActionDisable},
		{ID: "C-1.0.0", Action: v1alpha1.ActionUptodate},
		{ID: "X-1.0.0", Action: v1alpha1.ActionSuggest},
	})
	if err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	if diff := cmp.Diff(enabledOf(a2), got); diff != "" {
		t.Fatalf("unexpected enabled set (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(enabledOf(a1, b), enabled); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}

	if _, err := ApplyPlan(catalog, enabled, []v1alpha1.TenantModuleDescriptor{enable("Z-1.0.0")}); err == nil {
		t.Fatalf("expected error for module outside the catalog")
	}
}
