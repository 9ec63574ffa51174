// Package aggregator computes permission sets over a role hierarchy: wildcard
// expansion, unions across the roles a principal holds, diffs for role swap
// previews and validation of requested permission sets.
package aggregator

import (
	"slices"
	"sort"

	"github.com/xraph/echelon/catalog"
)

// Expand returns the effective permissions of roleType. A grants-all role
// expands to the view's whole permission universe.
func Expand(v catalog.View, roleType string) []string {
	if v.GrantsAll(roleType) {
		return v.PermissionUniverse()
	}
	return v.Permissions(roleType)
}

// EffectivePermissions is the union of Expand over roles.
func EffectivePermissions(v catalog.View, roles []string) []string {
	set := make(map[string]struct{})
	for _, r := range roles {
		if v.GrantsAll(r) {
			return v.PermissionUniverse()
		}
		for _, p := range v.Permissions(r) {
			set[p] = struct{}{}
		}
	}
	return keys(set)
}

// HasPermission reports whether roleType holds permission.
func HasPermission(v catalog.View, roleType, permission string) bool {
	if v.GrantsAll(roleType) {
		return slices.Contains(v.PermissionUniverse(), permission)
	}
	return slices.Contains(v.Permissions(roleType), permission)
}

// PrincipalHasPermission reports whether any of roles holds permission.
func PrincipalHasPermission(v catalog.View, roles []string, permission string) bool {
	for _, r := range roles {
		if HasPermission(v, r, permission) {
			return true
		}
	}
	return false
}

// AssignablePermissions returns what a holder of assigner may grant to
// others: exactly what the role itself holds.
func AssignablePermissions(v catalog.View, assigner string) []string {
	return Expand(v, assigner)
}

// MissingPermissions returns the permissions target has that current lacks.
func MissingPermissions(v catalog.View, current, target string) []string {
	return difference(Expand(v, target), Expand(v, current))
}

// ExcessPermissions returns the permissions current has that target lacks.
func ExcessPermissions(v catalog.View, current, target string) []string {
	return difference(Expand(v, current), Expand(v, target))
}

// CommonPermissions is the intersection of Expand over roles. It is empty
// for an empty role list.
func CommonPermissions(v catalog.View, roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	counts := make(map[string]int)
	distinct := make(map[string]struct{})
	for _, r := range roles {
		if _, dup := distinct[r]; dup {
			continue
		}
		distinct[r] = struct{}{}
		for _, p := range Expand(v, r) {
			counts[p]++
		}
	}
	var out []string
	for p, n := range counts {
		if n == len(distinct) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// AllUniquePermissions is the union of Expand over roles.
func AllUniquePermissions(v catalog.View, roles []string) []string {
	return EffectivePermissions(v, roles)
}

// Diff describes what changes when a principal moves between two roles.
type Diff struct {
	Gained []string `json:"gained"`
	Lost   []string `json:"lost"`
	Kept   []string `json:"kept"`
}

// RoleDiff computes the permission changes of swapping current for target.
func RoleDiff(v catalog.View, current, target string) Diff {
	return Diff{
		Gained: MissingPermissions(v, current, target),
		Lost:   ExcessPermissions(v, current, target),
		Kept:   CommonPermissions(v, []string{current, target}),
	}
}

// ValidationResult reports how a requested permission set relates to the
// permission universe and to a role's own set.
type ValidationResult struct {
	// Invalid lists requested names unknown to the hierarchy.
	Invalid []string `json:"invalid,omitempty"`
	// Missing lists permissions the role holds that were not requested.
	Missing []string `json:"missing,omitempty"`
	// Extra lists known permissions requested beyond the role's set.
	Extra []string `json:"extra,omitempty"`
}

// Valid reports whether every requested name is known.
func (r ValidationResult) Valid() bool { return len(r.Invalid) == 0 }

// Exact reports whether the request matches the role's set exactly.
func (r ValidationResult) Exact() bool {
	return len(r.Invalid) == 0 && len(r.Missing) == 0 && len(r.Extra) == 0
}

// Validate checks requested against the permission universe and the role's
// expanded set.
func Validate(v catalog.View, roleType string, requested []string) ValidationResult {
	universe := toSet(v.PermissionUniverse())
	req := make(map[string]struct{}, len(requested))
	var res ValidationResult
	for _, p := range requested {
		if _, dup := req[p]; dup {
			continue
		}
		req[p] = struct{}{}
		if _, ok := universe[p]; !ok {
			res.Invalid = append(res.Invalid, p)
		}
	}
	held := toSet(Expand(v, roleType))
	for p := range held {
		if _, ok := req[p]; !ok {
			res.Missing = append(res.Missing, p)
		}
	}
	for p := range req {
		_, known := universe[p]
		if _, ok := held[p]; known && !ok {
			res.Extra = append(res.Extra, p)
		}
	}
	sort.Strings(res.Invalid)
	sort.Strings(res.Missing)
	sort.Strings(res.Extra)
	return res
}

// Partition splits requested into names the assigner may grant, names it
// may not, and names unknown to the hierarchy. Each output is sorted and
// de-duplicated.
func Partition(v catalog.View, assigner string, requested []string) (allowed, rejected, invalid []string) {
	universe := toSet(v.PermissionUniverse())
	grantable := toSet(AssignablePermissions(v, assigner))
	seen := make(map[string]struct{}, len(requested))
	for _, p := range requested {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		switch _, known := universe[p]; {
		case !known:
			invalid = append(invalid, p)
		case contains(grantable, p):
			allowed = append(allowed, p)
		default:
			rejected = append(rejected, p)
		}
	}
	sort.Strings(allowed)
	sort.Strings(rejected)
	sort.Strings(invalid)
	return allowed, rejected, invalid
}

func contains(set map[string]struct{}, k string) bool {
	_, ok := set[k]
	return ok
}

func difference(a, b []string) []string {
	exclude := toSet(b)
	var out []string
	for _, p := range a {
		if _, ok := exclude[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func toSet(in []string) map[string]struct{} {
	s := make(map[string]struct{}, len(in))
	for _, p := range in {
		s[p] = struct{}{}
	}
	return s
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
