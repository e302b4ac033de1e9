package tenant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/resolver"
)

func module(id string, provides, requires []string) v1alpha1.ModuleDescriptor {
	md := v1alpha1.ModuleDescriptor{ID: id}
	for _, p := range provides {
		md.Provides = append(md.Provides, v1alpha1.InterfaceDescriptor{ID: p, Version: "1.0"})
	}
	for _, r := range requires {
		md.Requires = append(md.Requires, v1alpha1.InterfaceDescriptor{ID: r, Version: "1.0"})
	}
	return md
}

func newTestService(t *testing.T, mds ...v1alpha1.ModuleDescriptor) (*Service, *MemoryTenantStore) {
	t.Helper()
	tenants := NewMemoryTenantStore()
	if err := tenants.Create("diku"); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return NewService(NewMemoryModuleStore(mds...), tenants), tenants
}

func enabledIDs(t *testing.T, store TenantStore, tenant string) []string {
	t.Helper()
	enabled, err := store.Enabled(context.Background(), tenant)
	if err != nil {
		t.Fatalf("enabled: %v", err)
	}
	var ids []string
	for _, md := range enabled {
		ids = append(ids, md.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestService_InstallCommits(t *testing.T) {
	svc, tenants := newTestService(t,
		module("mod-users-1.0.0", []string{"users"}, nil),
		module("mod-login-1.0.0", []string{"login"}, []string{"users"}),
	)

	actions, err := svc.Install(context.Background(), "diku",
		[]v1alpha1.TenantModuleDescriptor{{ID: "mod-login-1.0.0", Action: v1alpha1.ActionEnable}}, DefaultOptions())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(actions) != 2 || actions[0].ID != "mod-users-1.0.0" || actions[1].ID != "mod-login-1.0.0" {
		t.Fatalf("unexpected actions: %+v", actions)
	}
	if diff := cmp.Diff([]string{"mod-login-1.0.0", "mod-users-1.0.0"}, enabledIDs(t, tenants, "diku")); diff != "" {
		t.Fatalf("unexpected enabled set (-want +got):\n%s", diff)
	}
}

func TestService_FailedInstallLeavesTenantUntouched(t *testing.T) {
	svc, tenants := newTestService(t,
		module("mod-users-1.0.0", []string{"users"}, nil),
		module("mod-login-1.0.0", []string{"login"}, []string{"perms"}),
	)
	if _, err := svc.Install(context.Background(), "diku",
		[]v1alpha1.TenantModuleDescriptor{{ID: "mod-users-1.0.0", Action: v1alpha1.ActionEnable}}, DefaultOptions()); err != nil {
		t.Fatalf("Install: %v", err)
	}

	_, err := svc.Install(context.Background(), "diku",
		[]v1alpha1.TenantModuleDescriptor{{ID: "mod-login-1.0.0", Action: v1alpha1.ActionEnable}}, DefaultOptions())
	if !resolver.IsUserError(err) {
		t.Fatalf("expected user error, got %v", err)
	}
	if err.Error() != "interface perms required by module mod-login-1.0.0 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if diff := cmp.Diff([]string{"mod-users-1.0.0"}, enabledIDs(t, tenants, "diku")); diff != "" {
		t.Fatalf("unexpected enabled set (-want +got):\n%s", diff)
	}
}

func TestService_SimulateDoesNotCommit(t *testing.T) {
	svc, tenants := newTestService(t, module("mod-users-1.0.0", []string{"users"}, nil))

	actions, err := svc.Simulate(context.Background(), "diku",
		[]v1alpha1.TenantModuleDescriptor{{ID: "mod-users", Action: v1alpha1.ActionEnable}}, DefaultOptions())
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(actions) != 1 || actions[0].ID != "mod-users-1.0.0" {
		t.Fatalf("unexpected actions: %+v", actions)
	}
	if got := enabledIDs(t, tenants, "diku"); len(got) != 0 {
		t.Fatalf("expected nothing enabled, got %v", got)
	}
}

func TestService_Upgrade(t *testing.T) {
	svc, tenants := newTestService(t,
		module("mod-users-1.0.0", []string{"users"}, nil),
		module("mod-users-1.1.0", []string{"users"}, nil),
		module("mod-login-1.0.0", []string{"login"}, []string{"users"}),
	)
	if _, err := svc.Install(context.Background(), "diku",
		[]v1alpha1.TenantModuleDescriptor{
			{ID: "mod-users-1.0.0", Action: v1alpha1.ActionEnable},
			{ID: "mod-login-1.0.0", Action: v1alpha1.ActionEnable},
		}, DefaultOptions()); err != nil {
		t.Fatalf("Install: %v", err)
	}

	actions, err := svc.Upgrade(context.Background(), "diku", DefaultOptions())
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if len(actions) != 1 || actions[0].ID != "mod-users-1.1.0" || actions[0].From == nil || *actions[0].From != "mod-users-1.0.0" {
		t.Fatalf("unexpected actions: %+v", actions)
	}
	if diff := cmp.Diff([]string{"mod-login-1.0.0", "mod-users-1.1.0"}, enabledIDs(t, tenants, "diku")); diff != "" {
		t.Fatalf("unexpected enabled set (-want +got):\n%s", diff)
	}

	actions, err = svc.Upgrade(context.Background(), "diku", DefaultOptions())
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no actions on second upgrade, got %+v", actions)
	}
}

func TestService_Check(t *testing.T) {
	ctx := context.Background()
	svc, tenants := newTestService(t)
	if err := tenants.SetEnabled(ctx, "diku", v1alpha1.EnabledModules{
		"mod-a": module("mod-a-1.0.0", []string{"int"}, nil),
		"mod-b": module("mod-b-1.0.0", []string{"int"}, nil),
	}); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	msgs, err := svc.Check(ctx, "diku")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if diff := cmp.Diff([]string{"Multiple modules mod-a-1.0.0, mod-b-1.0.0 provide interface int"}, msgs); diff != "" {
		t.Fatalf("unexpected messages (-want +got):\n%s", diff)
	}
}

func TestService_UnknownTenant(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Install(context.Background(), "nobody", nil, DefaultOptions())
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
	if _, err := svc.Check(context.Background(), "nobody"); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestService_ConcurrentInstallsSerialized(t *testing.T) {
	var mds []v1alpha1.ModuleDescriptor
	for i := 0; i < 16; i++ {
		mds = append(mds, module(fmt.Sprintf("mod-%c-1.0.0", 'a'+i), nil, nil))
	}
	svc, tenants := newTestService(t, mds...)

	var wg sync.WaitGroup
	errs := make(chan error, len(mds))
	for _, md := range mds {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Install(context.Background(), "diku",
				[]v1alpha1.TenantModuleDescriptor{{ID: id, Action: v1alpha1.ActionEnable}}, DefaultOptions())
			errs <- err
		}(md.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Install: %v", err)
		}
	}
	if got := enabledIDs(t, tenants, "diku"); len(got) != len(mds) {
		t.Fatalf("expected %d enabled modules, got %d: %v", len(mds), len(got), got)
	}
}

func TestMemoryTenantStore_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTenantStore()
	if err := store.Create("diku"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create("diku"); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}

	in := v1alpha1.EnabledModules{"mod-a": module("mod-a-1.0.0", nil, nil)}
	if err := store.SetEnabled(ctx, "diku", in); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	delete(in, "mod-a")

	out, err := store.Enabled(ctx, "diku")
	if err != nil {
		t.Fatalf("Enabled: %v", err)
	}
	if _, ok := out["mod-a"]; !ok {
		t.Fatalf("store shares caller map")
	}
	out["mod-b"] = module("mod-b-1.0.0", nil, nil)
	again, _ := store.Enabled(ctx, "diku")
	if len(again) != 1 {
		t.Fatalf("store returned its internal map")
	}
}
