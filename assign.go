package echelon

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/graph"
	"github.com/xraph/echelon/id"
)

// AssignRole gives req.RoleType to req.PersonID. The assigner's highest
// role must be allowed to assign the target role, the role must exist in
// the tenant's hierarchy and the person must not already hold it.
func (e *Engine) AssignRole(ctx context.Context, req *AssignRoleRequest) (_ *assignment.RoleAssignment, err error) {
	const op = "assign role"
	if req.TenantID == "" {
		req.TenantID = ScopeFromContext(ctx).TenantID
	}
	ctx, done := e.begin(ctx, "AssignRole",
		attribute.String("tenant_id", req.TenantID),
		attribute.String("role_type", req.RoleType),
	)
	defer func() { done(err) }()

	entry := &audit.Entry{
		TenantID:    req.TenantID,
		Operation:   audit.OpAssignRole,
		RequesterID: req.AssignerID,
		SubjectID:   req.PersonID,
		RoleType:    req.RoleType,
	}
	defer func() { e.record(ctx, entry, err) }()

	if err := e.validateRequest(op, req); err != nil {
		return nil, err
	}
	v, err := e.view(ctx, op, req.TenantID)
	if err != nil {
		return nil, err
	}
	_, highest, ok, err := e.principal(ctx, op, v, req.AssignerID, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, denied(op, "assigner %s holds no role in tenant %s", req.AssignerID, req.TenantID)
	}
	if !graph.CanAssignToRole(v, highest, req.RoleType) {
		return nil, denied(op, "role %s may not assign %s", highest, req.RoleType)
	}
	if !v.Exists(req.RoleType) {
		return nil, fmt.Errorf("echelon: %s: %w: %s", op, ErrRoleNotFound, req.RoleType)
	}
	if err := e.checkPerson(ctx, op, req.TenantID, req.PersonID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(assignKey(req.TenantID, req.PersonID, req.RoleType))
	defer unlock()

	held, err := e.store.ListActiveRoleAssignments(ctx, req.PersonID, req.TenantID)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	if slices.Contains(assignment.RoleTypes(held), req.RoleType) {
		return nil, fmt.Errorf("echelon: %s: %w: %s holds %s", op, ErrDuplicateAssignment, req.PersonID, req.RoleType)
	}

	a := &assignment.RoleAssignment{
		ID:         id.NewAssignmentID(),
		PersonID:   req.PersonID,
		RoleType:   req.RoleType,
		TenantID:   req.TenantID,
		CompanyID:  req.CompanyID,
		AssignedBy: req.AssignerID,
		AssignedAt: e.now(),
		IsActive:   true,
		IsPrimary:  req.IsPrimary,
		Level:      v.Level(req.RoleType),
	}
	if err := e.store.CreateRoleAssignment(ctx, a); err != nil {
		if errors.Is(err, assignment.ErrDuplicateAssignment) {
			return nil, fmt.Errorf("echelon: %s: %w", op, err)
		}
		return nil, persistenceError(op, err)
	}

	if e.plugins != nil {
		e.plugins.EmitRoleAssigned(ctx, a)
	}
	return a, nil
}

// DeactivateRoleAssignment ends an active assignment. The requester must
// strictly outrank the assigned role in the assignment's tenant.
func (e *Engine) DeactivateRoleAssignment(ctx context.Context, requesterID string, assignmentID id.AssignmentID) (err error) {
	const op = "deactivate role assignment"
	ctx, done := e.begin(ctx, "DeactivateRoleAssignment", attribute.String("assignment_id", assignmentID.String()))
	defer func() { done(err) }()

	a, err := e.store.GetRoleAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			return fmt.Errorf("echelon: %s: %w", op, err)
		}
		return persistenceError(op, err)
	}

	entry := &audit.Entry{
		TenantID:    a.TenantID,
		Operation:   audit.OpDeactivateRole,
		RequesterID: requesterID,
		SubjectID:   a.PersonID,
		RoleType:    a.RoleType,
	}
	defer func() { e.record(ctx, entry, err) }()

	if !a.IsActive {
		return fmt.Errorf("echelon: %s: %w: %s is inactive", op, ErrAssignmentNotFound, assignmentID)
	}
	v, err := e.view(ctx, op, a.TenantID)
	if err != nil {
		return err
	}
	_, highest, ok, err := e.principal(ctx, op, v, requesterID, a.TenantID)
	if err != nil {
		return err
	}
	if !ok || !graph.CanManageRole(v, highest, a.RoleType) {
		return denied(op, "requester %s does not outrank %s", requesterID, a.RoleType)
	}

	unlock := e.locks.Lock(assignKey(a.TenantID, a.PersonID, a.RoleType))
	defer unlock()

	if err := e.store.DeactivateRoleAssignment(ctx, assignmentID); err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			return fmt.Errorf("echelon: %s: %w", op, err)
		}
		return persistenceError(op, err)
	}
	a.IsActive = false
	now := e.now()
	a.DeactivatedAt = &now

	if e.plugins != nil {
		e.plugins.EmitRoleUnassigned(ctx, a)
	}
	return nil
}
