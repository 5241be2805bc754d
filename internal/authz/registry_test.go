package authz

import (
	"sync"
	"testing"
)

func TestNewRegistrySeedsBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{RoleAdmin, RoleODataUser, RoleMCPUser, RoleReadonly} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("built-in role %q missing", name)
		}
	}
	if got := len(r.List()); got != 4 {
		t.Fatalf("expected 4 built-in roles, got %d", got)
	}
}

func TestRegisterUpsertKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(Role{Name: "custom", Permissions: []Permission{{Resource: "billing", Action: "read"}}})

	before := r.List()
	r.Register(Role{Name: RoleODataUser, Description: "replaced", Permissions: []Permission{
		{Resource: "odata", Action: "read"},
	}})
	after := r.List()

	if len(after) != len(before) {
		t.Fatalf("upsert changed role count: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Name != after[i].Name {
			t.Fatalf("order changed at %d: %q -> %q", i, before[i].Name, after[i].Name)
		}
	}
	role, _ := r.Lookup(RoleODataUser)
	if role.Description != "replaced" || len(role.Permissions) != 1 {
		t.Fatalf("upsert did not replace role: %+v", role)
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	if !r.Unregister(RoleReadonly) {
		t.Fatal("unregistering an existing role must report true")
	}
	if _, ok := r.Lookup(RoleReadonly); ok {
		t.Fatal("role still present after unregister")
	}

	before := r.List()
	if r.Unregister("nonexistent") {
		t.Fatal("unregistering a missing role must report false")
	}
	after := r.List()
	if len(after) != len(before) {
		t.Fatal("failed unregister must leave the registry unchanged")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Register(Role{Name: "spin", Permissions: []Permission{{Resource: "x", Action: "y"}}})
				r.Unregister("spin")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Lookup(RoleAdmin)
				r.List()
			}
		}()
	}
	wg.Wait()
}
