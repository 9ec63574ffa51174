package catalog

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func scenarioDefs() []RoleDefinition {
	return []RoleDefinition{
		{RoleType: "ROOT", Level: 0, AssignableTargets: []string{"MID"}, GrantsAll: true},
		{RoleType: "MID", Level: 1, ParentRoleType: "ROOT", AssignableTargets: []string{"LEAF"}, Permissions: []string{"doc:read", "doc:write"}},
		{RoleType: "LEAF", Level: 2, ParentRoleType: "MID", Permissions: []string{"doc:read"}},
	}
}

func TestBuiltinIsValid(t *testing.T) {
	c := Builtin()
	root, ok := c.Root()
	if !ok || root != SuperAdmin {
		t.Fatalf("expected root %q, got %q", SuperAdmin, root)
	}
	if c.Level(Guest) != 5 {
		t.Fatalf("expected guest at level 5, got %d", c.Level(Guest))
	}
	if !c.GrantsAll(SuperAdmin) {
		t.Fatal("super_admin should grant all")
	}
	if got := c.RolesAtLevel(3); !slices.Equal(got, []string{Accountant, Auditor, HRManager, Manager}) {
		t.Fatalf("unexpected level-3 roles: %v", got)
	}
	if len(c.PermissionUniverse()) == 0 {
		t.Fatal("expected a non-empty permission universe")
	}
}

func TestUnknownRoleIsNeutral(t *testing.T) {
	c := MustNew(scenarioDefs())
	if c.Exists("NOPE") {
		t.Fatal("unexpected role")
	}
	if c.Level("NOPE") != Unranked {
		t.Fatalf("expected Unranked, got %d", c.Level("NOPE"))
	}
	if _, ok := c.Parent("NOPE"); ok {
		t.Fatal("unknown role should have no parent")
	}
	if c.Permissions("NOPE") != nil || c.AssignableTargets("NOPE") != nil || c.Children("NOPE") != nil {
		t.Fatal("unknown role should have empty sets")
	}
}

func TestNewRejectsMalformedDefinitions(t *testing.T) {
	tests := []struct {
		name string
		defs []RoleDefinition
		want error
	}{
		{
			name: "duplicate",
			defs: append(scenarioDefs(), RoleDefinition{RoleType: "MID", Level: 1, ParentRoleType: "ROOT"}),
			want: ErrInvalidCatalog,
		},
		{
			name: "unknown parent",
			defs: append(scenarioDefs(), RoleDefinition{RoleType: "X", Level: 3, ParentRoleType: "GHOST"}),
			want: ErrInvalidCatalog,
		},
		{
			name: "level gap",
			defs: append(scenarioDefs(), RoleDefinition{RoleType: "X", Level: 4, ParentRoleType: "LEAF"}),
			want: ErrInvalidCatalog,
		},
		{
			name: "two roots",
			defs: append(scenarioDefs(), RoleDefinition{RoleType: "OTHER", Level: 0}),
			want: ErrInvalidCatalog,
		},
		{
			name: "unknown target",
			defs: append(scenarioDefs(), RoleDefinition{RoleType: "X", Level: 3, ParentRoleType: "LEAF", AssignableTargets: []string{"GHOST"}}),
			want: ErrInvalidCatalog,
		},
		{
			name: "custom cycle",
			defs: append(scenarioDefs(),
				RoleDefinition{RoleType: "A", Level: 3, ParentRoleType: "B", IsCustom: true},
				RoleDefinition{RoleType: "B", Level: 4, ParentRoleType: "A", IsCustom: true},
			),
			want: ErrCycleDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWildcardTokenBecomesFlag(t *testing.T) {
	defs := scenarioDefs()
	defs[0].GrantsAll = false
	defs[0].Permissions = []string{WildcardToken}
	c := MustNew(defs)
	if !c.GrantsAll("ROOT") {
		t.Fatal("expected wildcard token to set GrantsAll")
	}
	if len(c.Permissions("ROOT")) != 0 {
		t.Fatalf("wildcard token should not remain literal: %v", c.Permissions("ROOT"))
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := MustNew(scenarioDefs())
	perms := c.Permissions("MID")
	perms[0] = "tampered"
	if c.Permissions("MID")[0] == "tampered" {
		t.Fatal("catalog state leaked through accessor")
	}
	d, _ := c.Definition("MID")
	d.AssignableTargets[0] = "tampered"
	if c.AssignableTargets("MID")[0] != "LEAF" {
		t.Fatal("definition copy shares storage with catalog")
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
roles:
  - role_type: owner
    level: 0
    assignable_targets: [member]
    permissions: ["*"]
  - role_type: member
    level: 1
    parent: owner
    display_name: Member
    permissions: [doc:read, doc:read, doc:comment]
`
	c, err := LoadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !c.GrantsAll("owner") {
		t.Fatal("expected owner to grant all")
	}
	if got := c.Permissions("member"); !slices.Equal(got, []string{"doc:comment", "doc:read"}) {
		t.Fatalf("unexpected member permissions: %v", got)
	}
	if p, _ := c.Parent("member"); p != "owner" {
		t.Fatalf("expected parent owner, got %q", p)
	}

	if _, err := LoadYAML(strings.NewReader("roles:\n  - role_type: x\n    bogus: 1\n")); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestMergeAddsCustomRoles(t *testing.T) {
	base := MustNew(scenarioDefs())
	view, skipped := Merge(base, "t1", []RoleDefinition{
		{RoleType: "REVIEWER", Level: 2, ParentRoleType: "MID", Permissions: []string{"doc:read", "unknown:perm"}},
		{RoleType: "INTERN", Level: 3, ParentRoleType: "REVIEWER"},
		{RoleType: "MID", Level: 9, ParentRoleType: "ROOT"},
		{RoleType: "ORPHAN", Level: 4, ParentRoleType: "GONE"},
		{RoleType: "ORPHAN_CHILD", Level: 5, ParentRoleType: "ORPHAN"},
	})

	if !slices.Equal(skipped, []string{"MID", "ORPHAN", "ORPHAN_CHILD"}) {
		t.Fatalf("unexpected skipped set: %v", skipped)
	}
	if view.TenantID() != "t1" {
		t.Fatalf("expected tenant t1, got %q", view.TenantID())
	}
	if view.Level("MID") != 1 {
		t.Fatal("custom role must not shadow a built-in role")
	}

	d, ok := view.Definition("REVIEWER")
	if !ok || !d.IsCustom || d.TenantID != "t1" {
		t.Fatalf("unexpected reviewer definition: %+v", d)
	}
	if !slices.Equal(d.Permissions, []string{"doc:read"}) {
		t.Fatalf("unknown permissions should be dropped: %v", d.Permissions)
	}
	if !slices.Equal(d.AssignableTargets, []string{"INTERN"}) {
		t.Fatalf("reviewer should assign strictly lower roles only: %v", d.AssignableTargets)
	}
	if !slices.Contains(view.AssignableTargets("MID"), "REVIEWER") {
		t.Fatal("built-in assigner should gain lower custom roles")
	}
	if slices.Contains(view.AssignableTargets("LEAF"), "INTERN") {
		t.Fatal("role without targets must not gain custom targets")
	}
	if !slices.Equal(view.Children("MID"), []string{"LEAF", "REVIEWER"}) {
		t.Fatalf("unexpected children: %v", view.Children("MID"))
	}
	if base.Exists("REVIEWER") {
		t.Fatal("merge mutated the base catalog")
	}
}
