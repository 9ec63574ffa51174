package echelon

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/echelon/aggregator"
	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/graph"
	"github.com/xraph/echelon/permission"
)

// GetUserRoleHierarchy returns a person's roles, direct grants, effective
// permissions and highest role in a tenant.
func (e *Engine) GetUserRoleHierarchy(ctx context.Context, personID, tenantID string) (_ *RoleHierarchy, err error) {
	const op = "get user role hierarchy"
	ctx, done := e.begin(ctx, "GetUserRoleHierarchy", attribute.String("tenant_id", tenantID))
	defer func() { done(err) }()

	v, err := e.view(ctx, op, tenantID)
	if err != nil {
		return nil, err
	}
	as, highest, ok, err := e.principal(ctx, op, v, personID, tenantID)
	if err != nil {
		return nil, err
	}
	grants, err := e.store.ListActivePermissionGrants(ctx, personID, tenantID)
	if err != nil {
		return nil, persistenceError(op, err)
	}

	h := &RoleHierarchy{
		PersonID:          personID,
		TenantID:          tenantID,
		Roles:             as,
		HighestLevel:      catalog.Unranked,
		RolePermissions:   aggregator.EffectivePermissions(v, assignment.RoleTypes(as)),
		DirectPermissions: permission.Names(grants),
	}
	sort.Strings(h.DirectPermissions)
	h.Permissions = union(h.RolePermissions, h.DirectPermissions)
	if ok {
		h.HighestRole = highest
		h.HighestLevel = v.Level(highest)
		if h.PathToRoot, err = graph.PathToRoot(v, highest); err != nil {
			return nil, fmt.Errorf("echelon: %s: %w", op, err)
		}
	}
	return h, nil
}

// GetVisibleRolesForUser returns every role of the tenant hierarchy, built-in
// or custom, that sits strictly below the person's highest role, ordered by
// level. A person without a role sees nothing.
func (e *Engine) GetVisibleRolesForUser(ctx context.Context, personID, tenantID string) (_ []catalog.RoleDefinition, err error) {
	const op = "get visible roles"
	ctx, done := e.begin(ctx, "GetVisibleRolesForUser", attribute.String("tenant_id", tenantID))
	defer func() { done(err) }()

	v, err := e.view(ctx, op, tenantID)
	if err != nil {
		return nil, err
	}
	_, highest, ok, err := e.principal(ctx, op, v, personID, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	level := v.Level(highest)
	var out []catalog.RoleDefinition
	for _, d := range v.Definitions() {
		if d.Level > level {
			out = append(out, d)
		}
	}
	return out, nil
}

// ResolveHierarchy returns the tenant's merged hierarchy.
func (e *Engine) ResolveHierarchy(ctx context.Context, tenantID string) (*catalog.Catalog, error) {
	return e.view(ctx, "resolve hierarchy", tenantID)
}

// EffectivePermissions returns the union of the expanded permission sets of
// roles in the tenant's hierarchy.
func (e *Engine) EffectivePermissions(ctx context.Context, tenantID string, roles []string) ([]string, error) {
	v, err := e.view(ctx, "effective permissions", tenantID)
	if err != nil {
		return nil, err
	}
	return aggregator.EffectivePermissions(v, roles), nil
}

// CanAssignToRole reports whether a holder of assigner may assign target.
func (e *Engine) CanAssignToRole(ctx context.Context, tenantID, assigner, target string) (bool, error) {
	v, err := e.view(ctx, "can assign to role", tenantID)
	if err != nil {
		return false, err
	}
	return graph.CanAssignToRole(v, assigner, target), nil
}

// CanManageRole reports whether manager strictly outranks target.
func (e *Engine) CanManageRole(ctx context.Context, tenantID, manager, target string) (bool, error) {
	v, err := e.view(ctx, "can manage role", tenantID)
	if err != nil {
		return false, err
	}
	return graph.CanManageRole(v, manager, target), nil
}

// HasPermission reports whether a person holds perm in a tenant, through a
// role or a direct grant.
func (e *Engine) HasPermission(ctx context.Context, personID, tenantID, perm string) (bool, error) {
	const op = "has permission"
	v, err := e.view(ctx, op, tenantID)
	if err != nil {
		return false, err
	}
	as, err := e.store.ListActiveRoleAssignments(ctx, personID, tenantID)
	if err != nil {
		return false, persistenceError(op, err)
	}
	if aggregator.PrincipalHasPermission(v, assignment.RoleTypes(as), perm) {
		return true, nil
	}
	grants, err := e.store.ListActivePermissionGrants(ctx, personID, tenantID)
	if err != nil {
		return false, persistenceError(op, err)
	}
	return slices.Contains(permission.Names(grants), perm), nil
}

// PreviewRoleChange describes the permission changes of moving someone from
// currentRole to targetRole without writing anything.
func (e *Engine) PreviewRoleChange(ctx context.Context, tenantID, currentRole, targetRole string) (*RoleChangePreview, error) {
	const op = "preview role change"
	v, err := e.view(ctx, op, tenantID)
	if err != nil {
		return nil, err
	}
	for _, r := range []string{currentRole, targetRole} {
		if !v.Exists(r) {
			return nil, fmt.Errorf("echelon: %s: %w: %s", op, ErrRoleNotFound, r)
		}
	}
	d := aggregator.RoleDiff(v, currentRole, targetRole)
	return &RoleChangePreview{
		CurrentRole:  currentRole,
		TargetRole:   targetRole,
		CurrentLevel: v.Level(currentRole),
		TargetLevel:  v.Level(targetRole),
		IsPromotion:  v.Level(targetRole) < v.Level(currentRole),
		Gained:       d.Gained,
		Lost:         d.Lost,
		Kept:         d.Kept,
	}, nil
}

// ValidateRolePermissions compares requested with the permission universe
// and with roleType's own set.
func (e *Engine) ValidateRolePermissions(ctx context.Context, tenantID, roleType string, requested []string) (aggregator.ValidationResult, error) {
	const op = "validate role permissions"
	v, err := e.view(ctx, op, tenantID)
	if err != nil {
		return aggregator.ValidationResult{}, err
	}
	if !v.Exists(roleType) {
		return aggregator.ValidationResult{}, fmt.Errorf("echelon: %s: %w: %s", op, ErrRoleNotFound, roleType)
	}
	return aggregator.Validate(v, roleType, requested), nil
}

// ListAuditEntries returns recorded decisions, newest first.
func (e *Engine) ListAuditEntries(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	entries, err := e.store.ListAuditEntries(ctx, filter)
	if err != nil {
		return nil, persistenceError("list audit entries", err)
	}
	return entries, nil
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Strings(out)
	return slices.Compact(out)
}
