package echelon

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/store/memory"
)

const tenant = "t1"

// scenarioCatalog is ROOT > MID > LEAF with a FINANCE branch beside MID.
func scenarioCatalog() *catalog.Catalog {
	return catalog.MustNew([]catalog.RoleDefinition{
		{RoleType: "ROOT", Level: 0, GrantsAll: true, AssignableTargets: []string{"MID"}},
		{RoleType: "MID", Level: 1, ParentRoleType: "ROOT", AssignableTargets: []string{"LEAF"},
			Permissions: []string{"doc:read", "doc:write", "report:read"}},
		{RoleType: "LEAF", Level: 2, ParentRoleType: "MID", Permissions: []string{"doc:read"}},
		{RoleType: "FINANCE", Level: 1, ParentRoleType: "ROOT", Permissions: []string{"billing:manage", "doc:read"}},
	})
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	opts = append([]Option{WithStore(s), WithCatalog(scenarioCatalog())}, opts...)
	eng, err := NewEngine(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

func seedRole(t *testing.T, s *memory.Store, personID, roleType string) {
	t.Helper()
	err := s.CreateRoleAssignment(context.Background(), &assignment.RoleAssignment{
		PersonID: personID, RoleType: roleType, TenantID: tenant,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestNewEngine_DefaultsToBuiltinCatalog(t *testing.T) {
	eng, err := NewEngine(WithStore(memory.New()))
	if err != nil {
		t.Fatal(err)
	}
	if !eng.Catalog().Exists(catalog.SuperAdmin) {
		t.Fatal("expected the built-in hierarchy")
	}
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "root", "ROOT")
	seedRole(t, s, "mid", "MID")
	seedRole(t, s, "leaf", "LEAF")

	// Root may assign anything, even outside its target list.
	a, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "root", PersonID: "p1", RoleType: "LEAF", TenantID: tenant})
	if err != nil {
		t.Fatal(err)
	}
	if a.Level != 2 || !a.IsActive || a.AssignedBy != "root" {
		t.Fatalf("unexpected assignment %+v", a)
	}

	if _, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "mid", PersonID: "p2", RoleType: "LEAF", TenantID: tenant}); err != nil {
		t.Fatalf("MID should assign LEAF: %v", err)
	}

	_, err = eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "leaf", PersonID: "p3", RoleType: "MID", TenantID: tenant})
	if !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
	if IsPersistenceFailure(err) {
		t.Fatal("a denial must not look like a persistence failure")
	}

	_, err = eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "nobody", PersonID: "p3", RoleType: "LEAF", TenantID: tenant})
	if !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("expected denial for assigner without role, got %v", err)
	}

	_, err = eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "root", PersonID: "p3", RoleType: "GHOST", TenantID: tenant})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}

	_, err = eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "root", PersonID: "p1", RoleType: "LEAF", TenantID: tenant})
	if !errors.Is(err, ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}

	_, err = eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "root", RoleType: "LEAF", TenantID: tenant})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAssignRole_TenantFromContext(t *testing.T) {
	eng, s := newTestEngine(t)
	seedRole(t, s, "root", "ROOT")

	ctx := WithTenant(context.Background(), "app", tenant)
	a, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "root", PersonID: "p1", RoleType: "MID"})
	if err != nil {
		t.Fatal(err)
	}
	if a.TenantID != tenant {
		t.Fatalf("expected tenant from context, got %q", a.TenantID)
	}
}

type staticDirectory map[string]bool

func (d staticDirectory) PersonExists(_ context.Context, _, personID string) (bool, error) {
	return d[personID], nil
}

func TestAssignRole_UnknownPerson(t *testing.T) {
	eng, s := newTestEngine(t, WithDirectory(staticDirectory{"p1": true}))
	seedRole(t, s, "root", "ROOT")

	_, err := eng.AssignRole(context.Background(), &AssignRoleRequest{AssignerID: "root", PersonID: "ghost", RoleType: "MID", TenantID: tenant})
	if !errors.Is(err, ErrPersonNotFound) {
		t.Fatalf("expected ErrPersonNotFound, got %v", err)
	}
}

func TestAssignRole_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "mid", PersonID: "P", RoleType: "LEAF", TenantID: tenant})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrDuplicateAssignment):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || dup.Load() != 19 {
		t.Fatalf("expected 1 success and 19 duplicates, got %d/%d", ok.Load(), dup.Load())
	}
	active, _ := s.ListActiveRoleAssignments(ctx, "P", tenant)
	if len(active) != 1 {
		t.Fatalf("expected a single active row, got %d", len(active))
	}
}

func TestDeactivateRoleAssignment(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")
	seedRole(t, s, "fin", "FINANCE")

	a, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "mid", PersonID: "p1", RoleType: "LEAF", TenantID: tenant})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.DeactivateRoleAssignment(ctx, "p1", a.ID); !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("LEAF cannot deactivate its own LEAF assignment, got %v", err)
	}
	// FINANCE outranks LEAF by level even on another branch.
	if err := eng.DeactivateRoleAssignment(ctx, "fin", a.ID); err != nil {
		t.Fatal(err)
	}
	if err := eng.DeactivateRoleAssignment(ctx, "fin", a.ID); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
	if _, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "mid", PersonID: "p1", RoleType: "LEAF", TenantID: tenant}); err != nil {
		t.Fatalf("role should be assignable again: %v", err)
	}
}

func TestDeactivateRoleAssignment_RoleMissingFromHierarchy(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "root", "ROOT")
	seedRole(t, s, "leaf", "LEAF")
	seedRole(t, s, "p1", "RETIRED")

	active, err := s.ListActiveRoleAssignments(ctx, "p1", tenant)
	if err != nil || len(active) != 1 {
		t.Fatalf("expected one seeded assignment, got %v %v", active, err)
	}
	asgID := active[0].ID

	if err := eng.DeactivateRoleAssignment(ctx, "leaf", asgID); !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("only root may end an assignment of a role missing from the hierarchy, got %v", err)
	}
	if err := eng.DeactivateRoleAssignment(ctx, "root", asgID); err != nil {
		t.Fatal(err)
	}
}

func TestAssignPermissions(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")

	res, err := eng.AssignPermissions(ctx, &AssignPermissionsRequest{
		AssignerID: "mid", PersonID: "p1", TenantID: tenant,
		Permissions: []string{"report:read", "doc:read", "doc:read"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Grants) != 2 || res.Created() != 2 {
		t.Fatalf("expected two new grants, got %+v", res.Grants)
	}

	again, err := eng.AssignPermissions(ctx, &AssignPermissionsRequest{
		AssignerID: "mid", PersonID: "p1", TenantID: tenant, Permissions: []string{"doc:read"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if again.Created() != 0 || again.Grants[0].Grant.ID != res.Grants[0].Grant.ID {
		t.Fatal("re-granting should return the existing grant")
	}
}

func TestAssignPermissions_ReportsEveryViolation(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")

	_, err := eng.AssignPermissions(ctx, &AssignPermissionsRequest{
		AssignerID: "mid", PersonID: "p1", TenantID: tenant,
		Permissions: []string{"doc:write", "billing:manage", "bogus:thing", "payroll:run"},
	})
	var de *DeniedError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DeniedError, got %v", err)
	}
	if !slices.Equal(de.Rejected, []string{"billing:manage"}) {
		t.Errorf("unexpected rejected %v", de.Rejected)
	}
	if !slices.Equal(de.Invalid, []string{"bogus:thing", "payroll:run"}) {
		t.Errorf("unexpected invalid %v", de.Invalid)
	}
	if !errors.Is(err, ErrAuthorizationDenied) || !errors.Is(err, ErrInvalidPermissionName) {
		t.Error("mixed violations should match both sentinels")
	}

	grants, _ := s.ListActivePermissionGrants(ctx, "p1", tenant)
	if len(grants) != 0 {
		t.Fatalf("nothing may be granted when any name is refused, got %d", len(grants))
	}

	_, err = eng.AssignPermissions(ctx, &AssignPermissionsRequest{
		AssignerID: "mid", PersonID: "p1", TenantID: tenant, Permissions: []string{"bogus:thing"},
	})
	if !errors.Is(err, ErrInvalidPermissionName) || errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("unknown names alone should be ErrInvalidPermissionName only, got %v", err)
	}
}

func TestRevokePermission(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")
	seedRole(t, s, "leaf", "LEAF")

	if _, err := eng.AssignPermissions(ctx, &AssignPermissionsRequest{
		AssignerID: "mid", PersonID: "p1", TenantID: tenant, Permissions: []string{"doc:write"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := eng.RevokePermission(ctx, "leaf", "p1", "doc:write", tenant); !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("LEAF cannot revoke doc:write, got %v", err)
	}
	if err := eng.RevokePermission(ctx, "mid", "p1", "doc:write", tenant); err != nil {
		t.Fatal(err)
	}
	if err := eng.RevokePermission(ctx, "mid", "p1", "doc:write", tenant); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}
}

func TestRevokePermission_RequiresOutrankingHolder(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")
	seedRole(t, s, "fin", "FINANCE")
	seedRole(t, s, "root", "ROOT")

	if _, err := s.CreatePermissionGrant(ctx, &permission.Grant{
		PersonID: "fin", TenantID: tenant, PermissionName: "doc:read", GrantedBy: "root",
	}); err != nil {
		t.Fatal(err)
	}
	// MID may grant doc:read but sits at the same level as FINANCE.
	if err := eng.RevokePermission(ctx, "mid", "fin", "doc:read", tenant); !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("expected denial for an equal-level holder, got %v", err)
	}
	if err := eng.RevokePermission(ctx, "root", "fin", "doc:read", tenant); err != nil {
		t.Fatal(err)
	}
}

func TestGetUserRoleHierarchy(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "p", "MID")
	seedRole(t, s, "p", "LEAF")
	seedRole(t, s, "mid", "MID")

	if _, err := eng.AssignPermissions(ctx, &AssignPermissionsRequest{
		AssignerID: "mid", PersonID: "p", TenantID: tenant, Permissions: []string{"report:read"},
	}); err != nil {
		t.Fatal(err)
	}

	h, err := eng.GetUserRoleHierarchy(ctx, "p", tenant)
	if err != nil {
		t.Fatal(err)
	}
	if h.HighestRole != "MID" || h.HighestLevel != 1 {
		t.Fatalf("expected MID at level 1, got %s/%d", h.HighestRole, h.HighestLevel)
	}
	if len(h.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(h.Roles))
	}
	if !slices.Equal(h.PathToRoot, []string{"ROOT", "MID"}) {
		t.Fatalf("unexpected path %v", h.PathToRoot)
	}
	if !slices.Equal(h.Permissions, []string{"doc:read", "doc:write", "report:read"}) {
		t.Fatalf("unexpected permissions %v", h.Permissions)
	}
	if !slices.Equal(h.DirectPermissions, []string{"report:read"}) {
		t.Fatalf("unexpected direct permissions %v", h.DirectPermissions)
	}

	empty, err := eng.GetUserRoleHierarchy(ctx, "stranger", tenant)
	if err != nil {
		t.Fatal(err)
	}
	if empty.HighestRole != "" || empty.HighestLevel != catalog.Unranked {
		t.Fatalf("unexpected hierarchy for a person without roles: %+v", empty)
	}
}

func TestGetVisibleRolesForUser(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "root", "ROOT")
	seedRole(t, s, "p", "MID")
	seedRole(t, s, "p", "LEAF")

	if _, err := eng.AddCustomRole(ctx, &CustomRoleRequest{
		RequesterID: "root", TenantID: tenant, RoleType: "INTERN", ParentRoleType: "LEAF",
	}); err != nil {
		t.Fatal(err)
	}

	visible, err := eng.GetVisibleRolesForUser(ctx, "p", tenant)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range visible {
		names = append(names, d.RoleType)
	}
	if !slices.Equal(names, []string{"LEAF", "INTERN"}) {
		t.Fatalf("expected [LEAF INTERN], got %v", names)
	}

	none, err := eng.GetVisibleRolesForUser(ctx, "stranger", tenant)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("a person without roles sees nothing, got %v", none)
	}
}

func TestReadOnlyAccessors(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "p", "LEAF")

	ok, err := eng.CanAssignToRole(ctx, tenant, "ROOT", "LEAF")
	if err != nil || !ok {
		t.Fatalf("root should assign LEAF: %v %v", ok, err)
	}
	if ok, _ := eng.CanAssignToRole(ctx, tenant, "LEAF", "MID"); ok {
		t.Fatal("LEAF must not assign MID")
	}
	if ok, _ := eng.CanManageRole(ctx, tenant, "MID", "MID"); ok {
		t.Fatal("equal levels never manage each other")
	}

	// ROOT holds the wildcard: its expansion is the whole universe.
	perms, err := eng.EffectivePermissions(ctx, tenant, []string{"ROOT"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(perms, []string{"billing:manage", "doc:read", "doc:write", "report:read"}) {
		t.Fatalf("unexpected wildcard expansion %v", perms)
	}

	has, err := eng.HasPermission(ctx, "p", tenant, "doc:read")
	if err != nil || !has {
		t.Fatalf("LEAF holder should read docs: %v %v", has, err)
	}
	if has, _ := eng.HasPermission(ctx, "p", tenant, "doc:write"); has {
		t.Fatal("LEAF holder must not write docs")
	}

	preview, err := eng.PreviewRoleChange(ctx, tenant, "LEAF", "MID")
	if err != nil {
		t.Fatal(err)
	}
	if !preview.IsPromotion || !slices.Equal(preview.Gained, []string{"doc:write", "report:read"}) || len(preview.Lost) != 0 {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if _, err := eng.PreviewRoleChange(ctx, tenant, "LEAF", "GHOST"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}

	vr, err := eng.ValidateRolePermissions(ctx, tenant, "LEAF", []string{"doc:read", "nope:nope"})
	if err != nil {
		t.Fatal(err)
	}
	if vr.Valid() || !slices.Equal(vr.Invalid, []string{"nope:nope"}) {
		t.Fatalf("unexpected validation %+v", vr)
	}
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedRole(t, s, "mid", "MID")
	seedRole(t, s, "leaf", "LEAF")

	_, _ = eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "mid", PersonID: "p1", RoleType: "LEAF", TenantID: tenant})
	_, _ = eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "leaf", PersonID: "p2", RoleType: "MID", TenantID: tenant})

	entries, err := eng.ListAuditEntries(ctx, &audit.QueryFilter{TenantID: tenant, Operation: audit.OpAssignRole})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	denied, _ := eng.ListAuditEntries(ctx, &audit.QueryFilter{Decision: audit.DecisionDeny})
	if len(denied) != 1 || denied[0].RequesterID != "leaf" || denied[0].Reason == "" {
		t.Fatalf("unexpected deny entries %+v", denied)
	}
}

func TestAuditDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableAudit = true
	eng, s := newTestEngine(t, WithConfig(cfg))
	seedRole(t, s, "mid", "MID")

	ctx := context.Background()
	if _, err := eng.AssignRole(ctx, &AssignRoleRequest{AssignerID: "mid", PersonID: "p1", RoleType: "LEAF", TenantID: tenant}); err != nil {
		t.Fatal(err)
	}
	entries, _ := s.ListAuditEntries(ctx, nil)
	if len(entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(entries))
	}
}
