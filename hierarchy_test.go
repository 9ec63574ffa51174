package echelon

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/role"
	"github.com/xraph/echelon/store/memory"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func TestAddCustomRole(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")
	seedRole(t, s, "leaf", "LEAF")

	cr, err := eng.AddCustomRole(ctx, &CustomRoleRequest{
		RequesterID: "mid", TenantID: tenant, RoleType: "REVIEWER",
		ParentRoleType: "MID", Permissions: []string{"doc:read", "report:read"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr.Level != 2 || cr.DisplayName != "REVIEWER" || cr.ID.IsNil() {
		t.Fatalf("unexpected custom role %+v", cr)
	}

	v, err := eng.ResolveHierarchy(ctx, tenant)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Exists("REVIEWER") || v.Level("REVIEWER") != 2 {
		t.Fatal("custom role should appear in the tenant hierarchy")
	}
	if other, _ := eng.ResolveHierarchy(ctx, "t2"); other.Exists("REVIEWER") {
		t.Fatal("custom roles must not leak across tenants")
	}
	// MID already assigns LEAF, so it may also assign custom roles below it.
	if ok, _ := eng.CanAssignToRole(ctx, tenant, "MID", "REVIEWER"); !ok {
		t.Fatal("MID should assign the custom role below it")
	}
}

func TestAddCustomRole_Rejections(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")
	seedRole(t, s, "leaf", "LEAF")

	tests := []struct {
		name string
		req  CustomRoleRequest
		want error
	}{
		{"builtin type", CustomRoleRequest{RequesterID: "mid", RoleType: "LEAF", Level: intPtr(3)}, ErrSystemRoleImmutable},
		{"peer level", CustomRoleRequest{RequesterID: "leaf", RoleType: "X", ParentRoleType: "MID"}, ErrAuthorizationDenied},
		{"own level", CustomRoleRequest{RequesterID: "mid", RoleType: "X", Level: intPtr(1)}, ErrAuthorizationDenied},
		{"no role", CustomRoleRequest{RequesterID: "nobody", RoleType: "X", Level: intPtr(5)}, ErrAuthorizationDenied},
		{"unknown parent", CustomRoleRequest{RequesterID: "mid", RoleType: "X", ParentRoleType: "GHOST"}, ErrRoleNotFound},
		{"self parent", CustomRoleRequest{RequesterID: "mid", RoleType: "X", ParentRoleType: "X"}, ErrCycleDetected},
		{"no level", CustomRoleRequest{RequesterID: "mid", RoleType: "X"}, ErrInvalidRequest},
		{"zero level", CustomRoleRequest{RequesterID: "mid", RoleType: "X", Level: intPtr(0)}, ErrInvalidRequest},
		{"ungrantable permission", CustomRoleRequest{RequesterID: "mid", RoleType: "X", Level: intPtr(3), Permissions: []string{"billing:manage"}}, ErrAuthorizationDenied},
		{"unknown permission", CustomRoleRequest{RequesterID: "mid", RoleType: "X", Level: intPtr(3), Permissions: []string{"x:y"}}, ErrInvalidPermissionName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.TenantID = tenant
			if _, err := eng.AddCustomRole(ctx, &req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	roles, _ := s.ListCustomRoles(ctx, tenant)
	if len(roles) != 0 {
		t.Fatalf("rejected requests must not write, found %d roles", len(roles))
	}
}

func TestAddCustomRole_ReparentUnderOwnSubtree(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "root", "ROOT")

	for _, req := range []CustomRoleRequest{
		{RoleType: "A", ParentRoleType: "MID"},
		{RoleType: "B", ParentRoleType: "A"},
	} {
		req.RequesterID, req.TenantID = "root", tenant
		if _, err := eng.AddCustomRole(ctx, &req); err != nil {
			t.Fatal(err)
		}
	}
	_, err := eng.AddCustomRole(ctx, &CustomRoleRequest{RequesterID: "root", TenantID: tenant, RoleType: "A", ParentRoleType: "B"})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

// scenarioE builds ROOT with custom MID (level 1) and LEAF (level 2).
func scenarioE(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(
		WithStore(s),
		WithCatalog(catalog.MustNew([]catalog.RoleDefinition{{RoleType: "ROOT", Level: 0, GrantsAll: true}})),
	)
	if err != nil {
		t.Fatal(err)
	}
	seedRole(t, s, "root", "ROOT")
	ctx := context.Background()
	for _, req := range []CustomRoleRequest{
		{RoleType: "MID", ParentRoleType: "ROOT"},
		{RoleType: "LEAF", ParentRoleType: "MID"},
	} {
		req.RequesterID, req.TenantID = "root", tenant
		if _, err := eng.AddCustomRole(ctx, &req); err != nil {
			t.Fatal(err)
		}
	}
	return eng, s
}

func TestUpdateRoleHierarchy_RelevelsDescendants(t *testing.T) {
	ctx := context.Background()
	eng, _ := scenarioE(t)

	// Warm the overlay cache so the update has to invalidate it.
	if v, _ := eng.ResolveHierarchy(ctx, tenant); v.Level("LEAF") != 2 {
		t.Fatalf("expected LEAF at level 2, got %d", v.Level("LEAF"))
	}

	updates, err := eng.UpdateRoleHierarchy(ctx, &UpdateHierarchyRequest{
		RequesterID: "root", TenantID: tenant, RoleType: "MID", NewLevel: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 || updates[0].RoleType != "MID" || updates[1] != (role.LevelUpdate{RoleType: "LEAF", Level: 6}) {
		t.Fatalf("unexpected updates %+v", updates)
	}

	v, err := eng.ResolveHierarchy(ctx, tenant)
	if err != nil {
		t.Fatal(err)
	}
	if v.Level("MID") != 5 || v.Level("LEAF") != 6 {
		t.Fatalf("expected MID=5 LEAF=6, got %d %d", v.Level("MID"), v.Level("LEAF"))
	}
}

func TestUpdateRoleHierarchy_Rejections(t *testing.T) {
	ctx := context.Background()
	eng, s := scenarioE(t)
	seedRole(t, s, "mid", "MID")

	tests := []struct {
		name string
		req  UpdateHierarchyRequest
		want error
	}{
		{"builtin", UpdateHierarchyRequest{RequesterID: "root", RoleType: "ROOT", NewLevel: 3}, ErrSystemRoleImmutable},
		{"unknown", UpdateHierarchyRequest{RequesterID: "root", RoleType: "GHOST", NewLevel: 3}, ErrRoleNotFound},
		{"under own child", UpdateHierarchyRequest{RequesterID: "root", RoleType: "MID", NewLevel: 3, NewParentRoleType: strPtr("LEAF")}, ErrCycleDetected},
		{"peer requester", UpdateHierarchyRequest{RequesterID: "mid", RoleType: "MID", NewLevel: 3}, ErrAuthorizationDenied},
		{"above parent", UpdateHierarchyRequest{RequesterID: "root", RoleType: "LEAF", NewLevel: 1}, ErrInvalidRequest},
		{"zero level", UpdateHierarchyRequest{RequesterID: "root", RoleType: "MID", NewLevel: 0}, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.TenantID = tenant
			if _, err := eng.UpdateRoleHierarchy(ctx, &req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	mid, _ := s.GetCustomRole(ctx, tenant, "MID")
	if mid.Level != 1 {
		t.Fatalf("rejected updates must not move MID, level %d", mid.Level)
	}
}

func TestUpdateRoleHierarchy_CycleGuard(t *testing.T) {
	ctx := context.Background()
	eng, s := scenarioE(t)

	// A cyclic pair written behind the engine's back.
	_ = s.UpsertCustomRole(ctx, &role.CustomRole{TenantID: tenant, RoleType: "A", Level: 3, ParentRoleType: "B"})
	_ = s.UpsertCustomRole(ctx, &role.CustomRole{TenantID: tenant, RoleType: "B", Level: 4, ParentRoleType: "A"})

	_, err := eng.UpdateRoleHierarchy(ctx, &UpdateHierarchyRequest{RequesterID: "root", TenantID: tenant, RoleType: "A", NewLevel: 7})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	a, _ := s.GetCustomRole(ctx, tenant, "A")
	if a.Level != 3 {
		t.Fatal("a failed walk must not write anything")
	}
}

func TestUpdateRoleHierarchy_DepthLimit(t *testing.T) {
	ctx := context.Background()
	eng, _ := scenarioE(t)
	eng.config.MaxHierarchyDepth = 0

	if _, err := eng.UpdateRoleHierarchy(ctx, &UpdateHierarchyRequest{RequesterID: "root", TenantID: tenant, RoleType: "MID", NewLevel: 2}); err != nil {
		t.Fatalf("zero depth means unlimited: %v", err)
	}
	eng.config.MaxHierarchyDepth = 1
	if _, err := eng.AddCustomRole(ctx, &CustomRoleRequest{RequesterID: "root", TenantID: tenant, RoleType: "DEEP", ParentRoleType: "LEAF"}); err != nil {
		t.Fatal(err)
	}
	_, err := eng.UpdateRoleHierarchy(ctx, &UpdateHierarchyRequest{RequesterID: "root", TenantID: tenant, RoleType: "MID", NewLevel: 4})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestRemoveCustomRole(t *testing.T) {
	ctx := context.Background()
	eng, s := scenarioE(t)

	if err := eng.RemoveCustomRole(ctx, "root", "MID", tenant); !errors.Is(err, ErrRoleInUse) {
		t.Fatalf("MID has a child role, got %v", err)
	}
	a, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "root", PersonID: "p1", RoleType: "LEAF", TenantID: tenant})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.RemoveCustomRole(ctx, "root", "LEAF", tenant); !errors.Is(err, ErrRoleInUse) {
		t.Fatalf("LEAF has a holder, got %v", err)
	}
	if err := s.DeactivateRoleAssignment(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := eng.RemoveCustomRole(ctx, "root", "LEAF", tenant); err != nil {
		t.Fatal(err)
	}
	if v, _ := eng.ResolveHierarchy(ctx, tenant); v.Exists("LEAF") {
		t.Fatal("removed role should leave the hierarchy")
	}
	if err := eng.RemoveCustomRole(ctx, "root", "LEAF", tenant); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if err := eng.RemoveCustomRole(ctx, "root", "ROOT", tenant); !errors.Is(err, ErrSystemRoleImmutable) {
		t.Fatalf("expected ErrSystemRoleImmutable, got %v", err)
	}

	visible, _ := eng.GetVisibleRolesForUser(ctx, "root", tenant)
	if !slices.ContainsFunc(visible, func(d catalog.RoleDefinition) bool { return d.RoleType == "MID" }) {
		t.Fatal("MID should remain visible to root")
	}
}
