package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
)

func TestCustomRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.CustomRole{
		TenantID:       "t1",
		RoleType:       "project_lead",
		ParentRoleType: "company_admin",
		Level:          3,
		Permissions:    []string{"report:read"},
		CreatedBy:      "p1",
	}
	if err := s.UpsertCustomRole(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.ID.IsNil() {
		t.Fatal("expected ID to be assigned")
	}
	firstID := r.ID

	// Upsert of the same role type keeps identity.
	again := &role.CustomRole{TenantID: "t1", RoleType: "project_lead", Level: 4, ParentRoleType: "manager"}
	if err := s.UpsertCustomRole(ctx, again); err != nil {
		t.Fatal(err)
	}
	if again.ID != firstID {
		t.Fatal("upsert should preserve the existing ID")
	}

	got, err := s.GetCustomRole(ctx, "t1", "project_lead")
	if err != nil {
		t.Fatal(err)
	}
	if got.Level != 4 || got.CreatedBy != "p1" {
		t.Fatalf("unexpected role after upsert: %+v", got)
	}

	// Other tenants do not see it.
	list, _ := s.ListCustomRoles(ctx, "t2")
	if len(list) != 0 {
		t.Fatalf("expected no roles for t2, got %d", len(list))
	}

	if err := s.SoftDeleteCustomRole(ctx, "t1", "project_lead"); err != nil {
		t.Fatal(err)
	}
	list, _ = s.ListCustomRoles(ctx, "t1")
	if len(list) != 0 {
		t.Fatal("soft-deleted role should be excluded")
	}
	if _, err := s.GetCustomRole(ctx, "t1", "project_lead"); !errors.Is(err, role.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRoleLevelsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.UpsertCustomRole(ctx, &role.CustomRole{TenantID: "t1", RoleType: "a", Level: 2})
	_ = s.UpsertCustomRole(ctx, &role.CustomRole{TenantID: "t1", RoleType: "b", Level: 3, ParentRoleType: "a"})

	err := s.UpdateRoleLevels(ctx, "t1", []role.LevelUpdate{
		{RoleType: "a", Level: 5},
		{RoleType: "missing", Level: 6},
	})
	if !errors.Is(err, role.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	a, _ := s.GetCustomRole(ctx, "t1", "a")
	if a.Level != 2 {
		t.Fatal("partial update was applied")
	}

	err = s.UpdateRoleLevels(ctx, "t1", []role.LevelUpdate{
		{RoleType: "a", Level: 5, ParentRoleType: "root", SetParent: true},
		{RoleType: "b", Level: 6},
	})
	if err != nil {
		t.Fatal(err)
	}
	a, _ = s.GetCustomRole(ctx, "t1", "a")
	b, _ := s.GetCustomRole(ctx, "t1", "b")
	if a.Level != 5 || a.ParentRoleType != "root" || b.Level != 6 || b.ParentRoleType != "a" {
		t.Fatalf("unexpected levels a=%+v b=%+v", a, b)
	}
}

func TestAssignmentUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	newAsg := func() *assignment.RoleAssignment {
		return &assignment.RoleAssignment{PersonID: "p1", RoleType: "employee", TenantID: "t1", Level: 4}
	}

	first := newAsg()
	if err := s.CreateRoleAssignment(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRoleAssignment(ctx, newAsg()); !errors.Is(err, assignment.ErrDuplicateAssignment) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	// Same person and role in another tenant is fine.
	other := newAsg()
	other.TenantID = "t2"
	if err := s.CreateRoleAssignment(ctx, other); err != nil {
		t.Fatal(err)
	}

	// After deactivation the role can be assigned again.
	if err := s.DeactivateRoleAssignment(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeactivateRoleAssignment(ctx, first.ID); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("expected second deactivation to fail, got %v", err)
	}
	if err := s.CreateRoleAssignment(ctx, newAsg()); err != nil {
		t.Fatal(err)
	}

	active, _ := s.ListActiveRoleAssignments(ctx, "p1", "t1")
	if len(active) != 1 {
		t.Fatalf("expected 1 active assignment, got %d", len(active))
	}
	all, _ := s.ListRoleAssignments(ctx, &assignment.ListFilter{TenantID: "t1"})
	if len(all) != 2 {
		t.Fatalf("expected 2 assignments in t1, got %d", len(all))
	}
	n, _ := s.CountActiveRoleAssignments(ctx, "t1", "employee")
	if n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
}

func TestConcurrentCreateRoleAssignment(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateRoleAssignment(ctx, &assignment.RoleAssignment{PersonID: "p", RoleType: "leaf", TenantID: "t"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, assignment.ErrDuplicateAssignment):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 1 || dup.Load() != 31 {
		t.Fatalf("expected 1 success and 31 duplicates, got %d/%d", ok.Load(), dup.Load())
	}
}

func TestGrantPermissionsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	grant := func(name string) *permission.Grant {
		return &permission.Grant{PersonID: "p1", TenantID: "t1", PermissionName: name, GrantedBy: "boss"}
	}

	out, err := s.GrantPermissions(ctx, []*permission.Grant{grant("doc:read"), grant("doc:write")})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || !out[0].Created || !out[1].Created {
		t.Fatalf("expected two new grants, got %+v", out)
	}

	again, err := s.CreatePermissionGrant(ctx, grant("doc:read"))
	if err != nil {
		t.Fatal(err)
	}
	if again.Created || again.Grant.ID != out[0].Grant.ID {
		t.Fatal("re-grant should return the existing record")
	}

	// A malformed name aborts the whole batch.
	if _, err := s.GrantPermissions(ctx, []*permission.Grant{grant("doc:delete"), grant("broken")}); !errors.Is(err, permission.ErrMalformedName) {
		t.Fatalf("expected malformed name error, got %v", err)
	}
	active, _ := s.ListActivePermissionGrants(ctx, "p1", "t1")
	if len(active) != 2 {
		t.Fatalf("expected 2 active grants, got %d", len(active))
	}

	perms, _ := s.ListPermissions(ctx)
	if len(perms) != 2 || perms[0].Resource != "doc" || perms[0].Action != "read" {
		t.Fatalf("unexpected permission rows %+v", perms)
	}

	if err := s.RevokePermissionGrant(ctx, "p1", "t1", "doc:read"); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokePermissionGrant(ctx, "p1", "t1", "doc:read"); !errors.Is(err, permission.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditEntries(t *testing.T) {
	ctx := context.Background()
	s := New()

	old := time.Now().Add(-48 * time.Hour)
	_ = s.CreateAuditEntry(ctx, &audit.Entry{TenantID: "t1", Operation: audit.OpAssignRole, Decision: audit.DecisionAllow, CreatedAt: old})
	_ = s.CreateAuditEntry(ctx, &audit.Entry{TenantID: "t1", Operation: audit.OpAssignRole, Decision: audit.DecisionDeny})
	_ = s.CreateAuditEntry(ctx, &audit.Entry{TenantID: "t2", Operation: audit.OpAddCustomRole, Decision: audit.DecisionAllow})

	denied, _ := s.ListAuditEntries(ctx, &audit.QueryFilter{TenantID: "t1", Decision: audit.DecisionDeny})
	if len(denied) != 1 {
		t.Fatalf("expected 1 denied entry, got %d", len(denied))
	}

	purged, err := s.PurgeAuditEntries(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged entry, got %d", purged)
	}
	all, _ := s.ListAuditEntries(ctx, nil)
	if len(all) != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", len(all))
	}
}
