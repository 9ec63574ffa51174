// Package graph implements authority and path queries over a role hierarchy.
//
// Every function is pure over a catalog.View. Authority comparisons use only
// role levels; path and ancestry queries follow parent pointers and guard
// against cycles in tenant-defined parent chains.
package graph

import (
	"fmt"
	"slices"

	"github.com/xraph/echelon/catalog"
)

// ErrCycleDetected is returned when a parent or child walk revisits a role.
var ErrCycleDetected = catalog.ErrCycleDetected

// RootLevel is the level of the designated root authority.
const RootLevel = 0

// IsRoot reports whether roleType is a known role at the root level.
func IsRoot(v catalog.View, roleType string) bool {
	return v.Exists(roleType) && v.Level(roleType) == RootLevel
}

// PathToRoot returns the parent chain of roleType ordered root first.
// Unknown roles yield an empty path.
func PathToRoot(v catalog.View, roleType string) ([]string, error) {
	if !v.Exists(roleType) {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var path []string
	for cur := roleType; ; {
		if _, ok := seen[cur]; ok {
			return nil, fmt.Errorf("%w: parent chain of %q revisits %q", ErrCycleDetected, roleType, cur)
		}
		seen[cur] = struct{}{}
		path = append(path, cur)
		parent, ok := v.Parent(cur)
		if !ok || !v.Exists(parent) {
			break
		}
		cur = parent
	}
	slices.Reverse(path)
	return path, nil
}

// IsAncestor reports whether ancestor appears strictly above roleType on its
// path to the root.
func IsAncestor(v catalog.View, ancestor, roleType string) (bool, error) {
	if ancestor == roleType {
		return false, nil
	}
	path, err := PathToRoot(v, roleType)
	if err != nil {
		return false, err
	}
	return slices.Contains(path, ancestor), nil
}

// IsDescendant reports whether descendant sits strictly below roleType.
func IsDescendant(v catalog.View, descendant, roleType string) (bool, error) {
	return IsAncestor(v, roleType, descendant)
}

// CanAssignToRole reports whether a holder of assigner may grant target.
// The root authority may grant anything; every other role is limited to its
// explicit assignable-target list, which may include peers.
func CanAssignToRole(v catalog.View, assigner, target string) bool {
	if IsRoot(v, assigner) {
		return true
	}
	return slices.Contains(v.AssignableTargets(assigner), target)
}

// CanManageRole reports whether manager strictly outranks target. Equal
// levels never manage each other. A target missing from the view can only
// be managed by the root authority.
func CanManageRole(v catalog.View, manager, target string) bool {
	if IsRoot(v, manager) {
		return true
	}
	if !v.Exists(manager) || !v.Exists(target) {
		return false
	}
	return v.Level(manager) < v.Level(target)
}

// HighestAuthority returns the role with the lowest level. Ties go to the
// lexically smallest role type so the answer does not depend on input order.
// Unknown roles rank as catalog.Unranked.
func HighestAuthority(v catalog.View, roles []string) (string, bool) {
	best, bestLevel, found := "", 0, false
	for _, r := range roles {
		if r == "" {
			continue
		}
		lvl := v.Level(r)
		if !found || lvl < bestLevel || (lvl == bestLevel && r < best) {
			best, bestLevel, found = r, lvl, true
		}
	}
	return best, found
}

// HierarchicalDistance is the absolute level difference between a and b.
func HierarchicalDistance(v catalog.View, a, b string) int {
	d := v.Level(a) - v.Level(b)
	if d < 0 {
		return -d
	}
	return d
}

// AreSiblings reports whether a and b are distinct roles sharing both level
// and parent.
func AreSiblings(v catalog.View, a, b string) bool {
	if a == b || !v.Exists(a) || !v.Exists(b) {
		return false
	}
	if v.Level(a) != v.Level(b) {
		return false
	}
	pa, okA := v.Parent(a)
	pb, okB := v.Parent(b)
	return okA == okB && pa == pb
}

// Siblings returns every sibling of roleType.
func Siblings(v catalog.View, roleType string) []string {
	var out []string
	for _, other := range v.RolesAtLevel(v.Level(roleType)) {
		if AreSiblings(v, roleType, other) {
			out = append(out, other)
		}
	}
	return out
}

// SubordinatesOf returns every role with a strictly greater level than
// roleType. This is a level comparison, not a subtree test: roles on other
// branches below roleType's level are included.
func SubordinatesOf(v catalog.View, roleType string) []string {
	if !v.Exists(roleType) {
		return nil
	}
	lvl := v.Level(roleType)
	var out []string
	for _, r := range v.RoleTypes() {
		if v.Level(r) > lvl {
			out = append(out, r)
		}
	}
	return out
}

// SuperiorsOf returns every role with a strictly lower level than roleType.
// Like SubordinatesOf it compares levels only.
func SuperiorsOf(v catalog.View, roleType string) []string {
	if !v.Exists(roleType) {
		return nil
	}
	lvl := v.Level(roleType)
	var out []string
	for _, r := range v.RoleTypes() {
		if v.Level(r) < lvl {
			out = append(out, r)
		}
	}
	return out
}

// LowestCommonAncestor returns the deepest role on both paths to the root.
func LowestCommonAncestor(v catalog.View, a, b string) (string, bool, error) {
	pa, err := PathToRoot(v, a)
	if err != nil {
		return "", false, err
	}
	pb, err := PathToRoot(v, b)
	if err != nil {
		return "", false, err
	}
	i := commonPrefix(pa, pb)
	if i == 0 {
		return "", false, nil
	}
	return pa[i-1], true, nil
}

// ShortestPath returns the route from one role to another through their
// lowest common ancestor, both ends included. It is empty when either role is
// unknown or the two share no ancestor.
func ShortestPath(v catalog.View, from, to string) ([]string, error) {
	pf, err := PathToRoot(v, from)
	if err != nil {
		return nil, err
	}
	pt, err := PathToRoot(v, to)
	if err != nil {
		return nil, err
	}
	i := commonPrefix(pf, pt)
	if i == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(pf)-i+1+len(pt)-i)
	for j := len(pf) - 1; j >= i-1; j-- {
		out = append(out, pf[j])
	}
	out = append(out, pt[i:]...)
	return out, nil
}

// Descendants returns every role below roleType in depth-first order.
func Descendants(v catalog.View, roleType string) ([]string, error) {
	var out []string
	visited := map[string]struct{}{roleType: {}}
	var walk func(string) error
	walk = func(r string) error {
		for _, child := range v.Children(r) {
			if _, ok := visited[child]; ok {
				return fmt.Errorf("%w: %q reached twice below %q", ErrCycleDetected, child, roleType)
			}
			visited[child] = struct{}{}
			out = append(out, child)
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(roleType); err != nil {
		return nil, err
	}
	return out, nil
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
