package rbac

import (
	"testing"

	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/store"
)

const testSpace = "personal:alice.chen"

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(store.NewMemStore())
}

func defineFamilyRoles(t *testing.T, e *Engine) {
	t.Helper()
	roles := []model.Role{
		{Name: "member", Caps: []string{"memory.read", "memory.write", "memory.refer"}},
		{Name: "guardian", Caps: []string{"memory.project", "memory.detach"}, Inherits: []string{"member"}},
		{Name: "admin", Caps: []string{"privacy.manage", "memory.undo"}, Inherits: []string{"guardian"}},
	}
	for _, r := range roles {
		if err := e.DefineRole(r); err != nil {
			t.Fatalf("define %s: %v", r.Name, err)
		}
	}
}

func TestListCapsResolvesInheritance(t *testing.T) {
	e := testEngine(t)
	defineFamilyRoles(t, e)
	if err := e.Bind(model.Binding{PrincipalID: "alice", Role: "admin", SpaceID: testSpace}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	caps, err := e.ListCaps("alice", testSpace)
	if err != nil {
		t.Fatalf("list caps: %v", err)
	}
	want := []string{
		"memory.detach", "memory.project", "memory.read",
		"memory.refer", "memory.undo", "memory.write", "privacy.manage",
	}
	if len(caps) != len(want) {
		t.Fatalf("expected %d caps, got %v", len(want), caps)
	}
	for i, c := range want {
		if caps[i] != c {
			t.Errorf("caps[%d]: expected %s, got %s", i, c, caps[i])
		}
	}

	// Resolution is pure: a second call yields the same answer.
	again, err := e.ListCaps("alice", testSpace)
	if err != nil {
		t.Fatalf("second list caps: %v", err)
	}
	if len(again) != len(caps) {
		t.Errorf("expected stable resolution, got %v then %v", caps, again)
	}
}

func TestListCapsScopedToSpace(t *testing.T) {
	e := testEngine(t)
	defineFamilyRoles(t, e)
	if err := e.Bind(model.Binding{PrincipalID: "alice", Role: "member", SpaceID: testSpace}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	caps, err := e.ListCaps("alice", "shared:chen-house")
	if err != nil {
		t.Fatalf("list caps: %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("expected no caps in unbound space, got %v", caps)
	}
}

func TestDefineRoleRejectsCycle(t *testing.T) {
	e := testEngine(t)
	if err := e.DefineRole(model.Role{Name: "a", Inherits: []string{"b"}}); err != nil {
		t.Fatalf("define a: %v", err)
	}
	if err := e.DefineRole(model.Role{Name: "b", Inherits: []string{"c"}}); err != nil {
		t.Fatalf("define b: %v", err)
	}

	err := e.DefineRole(model.Role{Name: "c", Inherits: []string{"a"}})
	if err == nil {
		t.Fatal("expected cycle rejection")
	}
	if !model.IsRBACCode(err, model.CodeCircularDependency) {
		t.Errorf("expected circular_dependency, got %v", err)
	}

	// The rejected role must not be partially written.
	roles, err := e.Roles()
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	for _, r := range roles {
		if r.Name == "c" {
			t.Error("rejected role was persisted")
		}
	}
}

func TestDefineRoleSelfCycle(t *testing.T) {
	e := testEngine(t)
	err := e.DefineRole(model.Role{Name: "self", Inherits: []string{"self"}})
	if !model.IsRBACCode(err, model.CodeCircularDependency) {
		t.Errorf("expected circular_dependency, got %v", err)
	}
}

func TestDiamondInheritanceResolvesOnce(t *testing.T) {
	e := testEngine(t)
	for _, r := range []model.Role{
		{Name: "base", Caps: []string{"memory.read"}},
		{Name: "left", Caps: []string{"memory.write"}, Inherits: []string{"base"}},
		{Name: "right", Caps: []string{"memory.refer"}, Inherits: []string{"base"}},
		{Name: "top", Inherits: []string{"left", "right"}},
	} {
		if err := e.DefineRole(r); err != nil {
			t.Fatalf("define %s: %v", r.Name, err)
		}
	}
	if err := e.Bind(model.Binding{PrincipalID: "bo", Role: "top", SpaceID: testSpace}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	caps, err := e.ListCaps("bo", testSpace)
	if err != nil {
		t.Fatalf("list caps: %v", err)
	}
	if len(caps) != 3 {
		t.Errorf("expected 3 caps through the diamond, got %v", caps)
	}
}

func TestBindUnknownRole(t *testing.T) {
	e := testEngine(t)
	err := e.Bind(model.Binding{PrincipalID: "alice", Role: "nope", SpaceID: testSpace})
	if !model.IsRBACCode(err, model.CodeUnknownRole) {
		t.Errorf("expected unknown_role, got %v", err)
	}
}

func TestBindIdempotent(t *testing.T) {
	e := testEngine(t)
	defineFamilyRoles(t, e)
	b := model.Binding{PrincipalID: "alice", Role: "member", SpaceID: testSpace}
	if err := e.Bind(b); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := e.Bind(b); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	doc, err := e.store.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(doc.Bindings) != 1 {
		t.Errorf("expected 1 binding, got %d", len(doc.Bindings))
	}
}

func TestRemoveRoleCascadesBindings(t *testing.T) {
	e := testEngine(t)
	defineFamilyRoles(t, e)
	if err := e.Bind(model.Binding{PrincipalID: "alice", Role: "member", SpaceID: testSpace}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := e.RemoveRole("member"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	caps, err := e.ListCaps("alice", testSpace)
	if err != nil {
		t.Fatalf("list caps: %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("expected no caps after role removal, got %v", caps)
	}

	// Removing again is a no-op.
	if err := e.RemoveRole("member"); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestRemovedParentDegradesGracefully(t *testing.T) {
	e := testEngine(t)
	defineFamilyRoles(t, e)
	if err := e.Bind(model.Binding{PrincipalID: "alice", Role: "guardian", SpaceID: testSpace}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	// Drop the inherited parent: the dangling edge resolves to nothing.
	if err := e.RemoveRole("member"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	caps, err := e.ListCaps("alice", testSpace)
	if err != nil {
		t.Fatalf("list caps: %v", err)
	}
	for _, c := range caps {
		if c == "memory.read" {
			t.Error("caps from removed parent still resolve")
		}
	}
	if len(caps) != 2 {
		t.Errorf("expected guardian's own 2 caps, got %v", caps)
	}
}

func TestHasCap(t *testing.T) {
	e := testEngine(t)
	defineFamilyRoles(t, e)
	if err := e.Bind(model.Binding{PrincipalID: "alice", Role: "member", SpaceID: testSpace}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	ok, err := e.HasCap("alice", testSpace, "memory.read")
	if err != nil || !ok {
		t.Errorf("expected memory.read held, got %v %v", ok, err)
	}
	ok, err = e.HasCap("alice", testSpace, "memory.project")
	if err != nil || ok {
		t.Errorf("expected memory.project absent, got %v %v", ok, err)
	}
}

func TestRoleHierarchy(t *testing.T) {
	e := testEngine(t)
	defineFamilyRoles(t, e)

	h, err := e.RoleHierarchy("guardian")
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if len(h.Inherits) != 1 || h.Inherits[0] != "member" {
		t.Errorf("expected inherits [member], got %v", h.Inherits)
	}
	if len(h.InheritedBy) != 1 || h.InheritedBy[0] != "admin" {
		t.Errorf("expected inherited_by [admin], got %v", h.InheritedBy)
	}

	if _, err := e.RoleHierarchy("ghost"); !model.IsRBACCode(err, model.CodeUnknownRole) {
		t.Errorf("expected unknown_role, got %v", err)
	}
}
