package echelon

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/echelon/aggregator"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/graph"
	"github.com/xraph/echelon/id"
	"github.com/xraph/echelon/role"
)

// AddCustomRole creates a tenant custom role, or replaces the custom role of
// the same type. The level is the parent's level plus one when a parent is
// given, else req.Level.
//
// The requester must be the root authority or sit strictly above the new
// level, and may only attach permissions they can grant.
func (e *Engine) AddCustomRole(ctx context.Context, req *CustomRoleRequest) (_ *role.CustomRole, err error) {
	const op = "add custom role"
	if req.TenantID == "" {
		req.TenantID = ScopeFromContext(ctx).TenantID
	}
	ctx, done := e.begin(ctx, "AddCustomRole",
		attribute.String("tenant_id", req.TenantID),
		attribute.String("role_type", req.RoleType),
	)
	defer func() { done(err) }()

	entry := &audit.Entry{
		TenantID:    req.TenantID,
		Operation:   audit.OpAddCustomRole,
		RequesterID: req.RequesterID,
		RoleType:    req.RoleType,
		Permissions: req.Permissions,
	}
	defer func() { e.record(ctx, entry, err) }()

	if err := e.validateRequest(op, req); err != nil {
		return nil, err
	}
	if e.base.Exists(req.RoleType) {
		return nil, fmt.Errorf("echelon: %s: %w: %s", op, ErrSystemRoleImmutable, req.RoleType)
	}

	unlock := e.locks.Lock(tenantKey(req.TenantID))
	defer unlock()

	v, err := e.freshView(ctx, op, req.TenantID)
	if err != nil {
		return nil, err
	}

	level, err := e.customRoleLevel(op, v, req)
	if err != nil {
		return nil, err
	}

	_, highest, ok, err := e.principal(ctx, op, v, req.RequesterID, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, denied(op, "requester %s holds no role in tenant %s", req.RequesterID, req.TenantID)
	}
	if !graph.IsRoot(v, highest) && v.Level(highest) >= level {
		return nil, denied(op, "role %s (level %d) may not create a role at level %d", highest, v.Level(highest), level)
	}

	current, replacing := v.Definition(req.RoleType)
	if replacing {
		if !graph.CanManageRole(v, highest, req.RoleType) {
			return nil, denied(op, "role %s does not outrank %s", highest, req.RoleType)
		}
		moved := current.Level != level || current.ParentRoleType != req.ParentRoleType
		if moved && len(v.Children(req.RoleType)) > 0 {
			return nil, fmt.Errorf("echelon: %s: %w: %s has child roles, use UpdateRoleHierarchy to move it",
				op, ErrInvalidRequest, req.RoleType)
		}
	}

	allowed, rejected, invalid := aggregator.Partition(v, highest, req.Permissions)
	if len(rejected) > 0 || len(invalid) > 0 {
		return nil, &DeniedError{Operation: op, Rejected: rejected, Invalid: invalid}
	}

	now := e.now()
	cr := &role.CustomRole{
		ID:             id.NewCustomRoleID(),
		TenantID:       req.TenantID,
		RoleType:       req.RoleType,
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		ParentRoleType: req.ParentRoleType,
		Level:          level,
		Permissions:    allowed,
		CreatedBy:      req.RequesterID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if cr.DisplayName == "" {
		cr.DisplayName = req.RoleType
	}
	if cr.Permissions == nil {
		cr.Permissions = []string{}
	}
	if err := e.store.UpsertCustomRole(ctx, cr); err != nil {
		return nil, persistenceError(op, err)
	}
	e.resolver.Invalidate(ctx, req.TenantID)

	if e.plugins != nil {
		e.plugins.EmitCustomRoleCreated(ctx, cr)
	}
	return cr, nil
}

func (e *Engine) customRoleLevel(op string, v catalog.View, req *CustomRoleRequest) (int, error) {
	if req.ParentRoleType == "" {
		if req.Level == nil {
			return 0, fmt.Errorf("echelon: %s: %w: parent role or level required", op, ErrInvalidRequest)
		}
		return *req.Level, nil
	}
	if req.ParentRoleType == req.RoleType {
		return 0, fmt.Errorf("echelon: %s: %w: %s cannot be its own parent", op, ErrCycleDetected, req.RoleType)
	}
	if !v.Exists(req.ParentRoleType) {
		return 0, fmt.Errorf("echelon: %s: %w: parent %s", op, ErrRoleNotFound, req.ParentRoleType)
	}
	below, err := graph.IsAncestor(v, req.RoleType, req.ParentRoleType)
	if err != nil {
		return 0, fmt.Errorf("echelon: %s: %w", op, err)
	}
	if below {
		return 0, fmt.Errorf("echelon: %s: %w: %s is below %s", op, ErrCycleDetected, req.ParentRoleType, req.RoleType)
	}
	return v.Level(req.ParentRoleType) + 1, nil
}

// RemoveCustomRole soft-deletes a custom role. Roles that still have active
// holders or child roles are refused with ErrRoleInUse.
func (e *Engine) RemoveCustomRole(ctx context.Context, requesterID, roleType, tenantID string) (err error) {
	const op = "remove custom role"
	if tenantID == "" {
		tenantID = ScopeFromContext(ctx).TenantID
	}
	ctx, done := e.begin(ctx, "RemoveCustomRole",
		attribute.String("tenant_id", tenantID),
		attribute.String("role_type", roleType),
	)
	defer func() { done(err) }()

	entry := &audit.Entry{
		TenantID:    tenantID,
		Operation:   audit.OpRemoveCustomRole,
		RequesterID: requesterID,
		RoleType:    roleType,
	}
	defer func() { e.record(ctx, entry, err) }()

	if e.base.Exists(roleType) {
		return fmt.Errorf("echelon: %s: %w: %s", op, ErrSystemRoleImmutable, roleType)
	}

	unlock := e.locks.Lock(tenantKey(tenantID))
	defer unlock()

	v, err := e.freshView(ctx, op, tenantID)
	if err != nil {
		return err
	}
	if !v.Exists(roleType) {
		return fmt.Errorf("echelon: %s: %w: %s", op, ErrRoleNotFound, roleType)
	}
	_, highest, ok, err := e.principal(ctx, op, v, requesterID, tenantID)
	if err != nil {
		return err
	}
	if !ok || !graph.CanManageRole(v, highest, roleType) {
		return denied(op, "requester %s does not outrank %s", requesterID, roleType)
	}
	if children := v.Children(roleType); len(children) > 0 {
		return fmt.Errorf("echelon: %s: %w: %s has child roles %v", op, ErrRoleInUse, roleType, children)
	}
	n, err := e.store.CountActiveRoleAssignments(ctx, tenantID, roleType)
	if err != nil {
		return persistenceError(op, err)
	}
	if n > 0 {
		return fmt.Errorf("echelon: %s: %w: %s has %d active holders", op, ErrRoleInUse, roleType, n)
	}

	if err := e.store.SoftDeleteCustomRole(ctx, tenantID, roleType); err != nil {
		if errors.Is(err, role.ErrNotFound) {
			return fmt.Errorf("echelon: %s: %w: %s", op, ErrRoleNotFound, roleType)
		}
		return persistenceError(op, err)
	}
	e.resolver.Invalidate(ctx, tenantID)

	if e.plugins != nil {
		e.plugins.EmitCustomRoleRemoved(ctx, tenantID, roleType)
	}
	return nil
}
