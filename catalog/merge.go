package catalog

import "slices"

// Merge overlays tenant custom roles on base and returns the tenant view
// together with the role types that were left out.
//
// A custom role is left out when it shadows a role of base, repeats an
// earlier custom role, or hangs off a parent that is not part of the view.
// Custom permissions outside the base permission universe are dropped.
// Custom parent chains are not checked for cycles here; graph walks over the
// view detect them.
//
// Assignable targets are computed rather than stored: a custom role may
// assign every role with a strictly greater level, and a built-in role that
// already assigns something may additionally assign custom roles below it.
func Merge(base *Catalog, tenantID string, custom []RoleDefinition) (*Catalog, []string) {
	if base == nil {
		base = &Catalog{}
	}
	known := make(map[string]struct{}, len(base.universe))
	for _, p := range base.universe {
		known[p] = struct{}{}
	}

	var skipped []string
	pending := make(map[string]RoleDefinition, len(custom))
	var pendingOrder []string
	for _, d := range custom {
		if d.RoleType == "" {
			continue
		}
		if base.Exists(d.RoleType) {
			skipped = append(skipped, d.RoleType)
			continue
		}
		if _, dup := pending[d.RoleType]; dup {
			skipped = append(skipped, d.RoleType)
			continue
		}
		d.IsCustom = true
		d.TenantID = tenantID
		d.Permissions = slices.DeleteFunc(slices.Clone(d.Permissions), func(p string) bool {
			_, ok := known[p]
			return !ok
		})
		pending[d.RoleType] = d
		pendingOrder = append(pendingOrder, d.RoleType)
	}

	// Drop orphans until the remaining set is closed under the parent relation.
	for changed := true; changed; {
		changed = false
		for _, rt := range pendingOrder {
			d, ok := pending[rt]
			if !ok || d.ParentRoleType == "" {
				continue
			}
			_, inBase := base.nodes[d.ParentRoleType]
			_, inCustom := pending[d.ParentRoleType]
			if !inBase && !inCustom {
				delete(pending, rt)
				skipped = append(skipped, rt)
				changed = true
			}
		}
	}

	defs := make([]RoleDefinition, 0, len(base.order)+len(pending))
	for _, rt := range base.order {
		defs = append(defs, base.nodes[rt].def)
	}
	var customs []RoleDefinition
	for _, rt := range pendingOrder {
		if d, ok := pending[rt]; ok {
			customs = append(customs, d)
		}
	}

	all := append(slices.Clone(defs), customs...)
	for i := range defs {
		if len(defs[i].AssignableTargets) == 0 {
			continue
		}
		targets := slices.Clone(defs[i].AssignableTargets)
		for _, c := range customs {
			if c.Level > defs[i].Level {
				targets = append(targets, c.RoleType)
			}
		}
		defs[i].AssignableTargets = targets
	}
	for i := range customs {
		var targets []string
		for _, other := range all {
			if other.RoleType != customs[i].RoleType && other.Level > customs[i].Level {
				targets = append(targets, other.RoleType)
			}
		}
		customs[i].AssignableTargets = targets
	}

	view := build(tenantID, append(defs, customs...))
	view.universe = slices.Clone(base.universe)
	slices.Sort(skipped)
	return view, skipped
}
