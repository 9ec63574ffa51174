// Package catalog holds the role hierarchy: an immutable adjacency table of
// role definitions with level, parent, assignable targets and permissions.
//
// A Catalog is built once and never mutated, so any number of goroutines may
// read it without synchronization. Tenant views that include custom roles are
// produced by Merge and are just as immutable.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Unranked is the level reported for role types that are not in the catalog.
// It compares as the weakest possible authority.
const Unranked = math.MaxInt32

// WildcardToken is the legacy permission token that means "every permission".
// It is accepted on input only and converted into RoleDefinition.GrantsAll.
const WildcardToken = "*"

var (
	// ErrInvalidCatalog is returned when a definition set violates a
	// structural rule (duplicate key, unknown parent, bad level, ...).
	ErrInvalidCatalog = errors.New("catalog: invalid definition")

	// ErrCycleDetected is returned when a parent chain revisits a role.
	ErrCycleDetected = errors.New("catalog: cycle detected in role hierarchy")
)

// RoleDefinition is a single entry of the hierarchy.
type RoleDefinition struct {
	RoleType          string   `json:"role_type" yaml:"role_type" validate:"required,max=64"`
	Level             int      `json:"level" yaml:"level" validate:"gte=0"`
	ParentRoleType    string   `json:"parent_role_type,omitempty" yaml:"parent,omitempty"`
	DisplayName       string   `json:"display_name" yaml:"display_name"`
	Description       string   `json:"description,omitempty" yaml:"description,omitempty"`
	AssignableTargets []string `json:"assignable_targets,omitempty" yaml:"assignable_targets,omitempty"`
	Permissions       []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	GrantsAll         bool     `json:"grants_all,omitempty" yaml:"grants_all,omitempty"`
	IsCustom          bool     `json:"is_custom" yaml:"-"`
	TenantID          string   `json:"tenant_id,omitempty" yaml:"-"`
}

// View is the read surface shared by the static catalog and tenant overlays.
// Unknown role types never cause an error: they report Unranked, no parent
// and empty sets.
type View interface {
	TenantID() string
	Exists(roleType string) bool
	Level(roleType string) int
	Parent(roleType string) (string, bool)
	Children(roleType string) []string
	AssignableTargets(roleType string) []string
	Permissions(roleType string) []string
	GrantsAll(roleType string) bool
	Definition(roleType string) (RoleDefinition, bool)
	RoleTypes() []string
	RolesAtLevel(level int) []string
	PermissionUniverse() []string
}

type node struct {
	def      RoleDefinition
	children []string
}

// Catalog is an immutable role hierarchy. The zero value is an empty catalog.
type Catalog struct {
	tenantID string
	nodes    map[string]*node
	order    []string
	byLevel  map[int][]string
	universe []string
}

var _ View = (*Catalog)(nil)

// New validates defs and builds a catalog from them. Built-in definitions
// must form a single tree rooted at level 0 in which every child sits exactly
// one level below its parent.
func New(defs []RoleDefinition) (*Catalog, error) {
	c := build("", defs)
	if len(defs) != len(c.nodes) {
		return nil, fmt.Errorf("%w: duplicate or empty role type", ErrInvalidCatalog)
	}

	roots := 0
	for _, rt := range c.order {
		d := c.nodes[rt].def
		if d.Level < 0 {
			return nil, fmt.Errorf("%w: role %q has negative level", ErrInvalidCatalog, rt)
		}
		for _, target := range d.AssignableTargets {
			if _, ok := c.nodes[target]; !ok {
				return nil, fmt.Errorf("%w: role %q lists unknown target %q", ErrInvalidCatalog, rt, target)
			}
		}
		if d.ParentRoleType == "" {
			if d.Level != 0 {
				return nil, fmt.Errorf("%w: parentless role %q must be level 0", ErrInvalidCatalog, rt)
			}
			roots++
			continue
		}
		parent, ok := c.nodes[d.ParentRoleType]
		if !ok {
			return nil, fmt.Errorf("%w: role %q has unknown parent %q", ErrInvalidCatalog, rt, d.ParentRoleType)
		}
		if !d.IsCustom && d.Level != parent.def.Level+1 {
			return nil, fmt.Errorf("%w: role %q level %d, parent %q level %d",
				ErrInvalidCatalog, rt, d.Level, d.ParentRoleType, parent.def.Level)
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("%w: expected exactly one root, found %d", ErrInvalidCatalog, roots)
	}

	for _, rt := range c.order {
		if err := c.checkChain(rt); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(defs []RoleDefinition) *Catalog {
	c, err := New(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// build indexes defs without validating them. Empty and repeated role types
// are dropped (first wins).
func build(tenantID string, defs []RoleDefinition) *Catalog {
	c := &Catalog{
		tenantID: tenantID,
		nodes:    make(map[string]*node, len(defs)),
		byLevel:  make(map[int][]string),
	}
	universe := make(map[string]struct{})
	for _, d := range defs {
		if d.RoleType == "" {
			continue
		}
		if _, dup := c.nodes[d.RoleType]; dup {
			continue
		}
		d = normalize(d)
		c.nodes[d.RoleType] = &node{def: d}
		c.order = append(c.order, d.RoleType)
		c.byLevel[d.Level] = append(c.byLevel[d.Level], d.RoleType)
		for _, p := range d.Permissions {
			universe[p] = struct{}{}
		}
	}
	sort.Strings(c.order)
	for _, rt := range c.order {
		if p := c.nodes[rt].def.ParentRoleType; p != "" {
			if parent, ok := c.nodes[p]; ok {
				parent.children = append(parent.children, rt)
			}
		}
	}
	for lvl := range c.byLevel {
		sort.Strings(c.byLevel[lvl])
	}
	c.universe = make([]string, 0, len(universe))
	for p := range universe {
		c.universe = append(c.universe, p)
	}
	sort.Strings(c.universe)
	return c
}

// normalize returns a copy of d with sorted, de-duplicated sets and the
// wildcard token folded into GrantsAll.
func normalize(d RoleDefinition) RoleDefinition {
	perms := make([]string, 0, len(d.Permissions))
	for _, p := range d.Permissions {
		if p == WildcardToken {
			d.GrantsAll = true
			continue
		}
		if p != "" {
			perms = append(perms, p)
		}
	}
	d.Permissions = sortedSet(perms)
	d.AssignableTargets = sortedSet(slices.Clone(d.AssignableTargets))
	return d
}

func (c *Catalog) checkChain(roleType string) error {
	seen := map[string]struct{}{}
	for cur := roleType; cur != ""; {
		if _, ok := seen[cur]; ok {
			return fmt.Errorf("%w: at %q", ErrCycleDetected, cur)
		}
		seen[cur] = struct{}{}
		n, ok := c.nodes[cur]
		if !ok {
			return nil
		}
		cur = n.def.ParentRoleType
	}
	return nil
}

// TenantID returns the tenant this view was merged for, or "" for the static catalog.
func (c *Catalog) TenantID() string { return c.tenantID }

// Exists reports whether roleType is defined.
func (c *Catalog) Exists(roleType string) bool {
	_, ok := c.nodes[roleType]
	return ok
}

// Level returns the role's level, or Unranked for unknown roles.
func (c *Catalog) Level(roleType string) int {
	n, ok := c.nodes[roleType]
	if !ok {
		return Unranked
	}
	return n.def.Level
}

// Parent returns the parent role type.
func (c *Catalog) Parent(roleType string) (string, bool) {
	n, ok := c.nodes[roleType]
	if !ok || n.def.ParentRoleType == "" {
		return "", false
	}
	return n.def.ParentRoleType, true
}

// Children returns the direct children of roleType.
func (c *Catalog) Children(roleType string) []string {
	n, ok := c.nodes[roleType]
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

// AssignableTargets returns the roles roleType may grant to others.
func (c *Catalog) AssignableTargets(roleType string) []string {
	n, ok := c.nodes[roleType]
	if !ok {
		return nil
	}
	return slices.Clone(n.def.AssignableTargets)
}

// Permissions returns the literal permission set, without wildcard expansion.
func (c *Catalog) Permissions(roleType string) []string {
	n, ok := c.nodes[roleType]
	if !ok {
		return nil
	}
	return slices.Clone(n.def.Permissions)
}

// GrantsAll reports whether roleType holds every permission.
func (c *Catalog) GrantsAll(roleType string) bool {
	n, ok := c.nodes[roleType]
	return ok && n.def.GrantsAll
}

// Definition returns a copy of the role's definition.
func (c *Catalog) Definition(roleType string) (RoleDefinition, bool) {
	n, ok := c.nodes[roleType]
	if !ok {
		return RoleDefinition{}, false
	}
	d := n.def
	d.Permissions = slices.Clone(d.Permissions)
	d.AssignableTargets = slices.Clone(d.AssignableTargets)
	return d, true
}

// Definitions returns a copy of every definition, ordered by level then role type.
func (c *Catalog) Definitions() []RoleDefinition {
	out := make([]RoleDefinition, 0, len(c.order))
	for _, rt := range c.order {
		d, _ := c.Definition(rt)
		out = append(out, d)
	}
	SortByLevel(out)
	return out
}

// RoleTypes returns every role type in lexical order.
func (c *Catalog) RoleTypes() []string { return slices.Clone(c.order) }

// RolesAtLevel returns the role types defined at exactly level.
func (c *Catalog) RolesAtLevel(level int) []string { return slices.Clone(c.byLevel[level]) }

// PermissionUniverse returns every permission name defined by any role.
func (c *Catalog) PermissionUniverse() []string { return slices.Clone(c.universe) }

// Root returns the level-0 role type of the static tree, if present.
func (c *Catalog) Root() (string, bool) {
	for _, rt := range c.byLevel[0] {
		if c.nodes[rt].def.ParentRoleType == "" {
			return rt, true
		}
	}
	return "", false
}

// SortByLevel orders defs by ascending level, breaking ties on role type.
func SortByLevel(defs []RoleDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Level != defs[j].Level {
			return defs[i].Level < defs[j].Level
		}
		return defs[i].RoleType < defs[j].RoleType
	})
}

func sortedSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	return slices.Compact(in)
}
