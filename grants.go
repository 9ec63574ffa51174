package echelon

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/echelon/aggregator"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/graph"
	"github.com/xraph/echelon/id"
	"github.com/xraph/echelon/permission"
)

// AssignPermissions grants permissions directly to a person. Every name is
// checked before anything is written: unknown names and names the
// assigner's highest role may not grant are all reported in one
// *DeniedError and nothing is granted. Otherwise all grants are written in
// one atomic step; grants that already exist are returned unchanged.
func (e *Engine) AssignPermissions(ctx context.Context, req *AssignPermissionsRequest) (_ *GrantResult, err error) {
	const op = "assign permissions"
	if req.TenantID == "" {
		req.TenantID = ScopeFromContext(ctx).TenantID
	}
	ctx, done := e.begin(ctx, "AssignPermissions",
		attribute.String("tenant_id", req.TenantID),
		attribute.Int("permissions", len(req.Permissions)),
	)
	defer func() { done(err) }()

	entry := &audit.Entry{
		TenantID:    req.TenantID,
		Operation:   audit.OpAssignPermissions,
		RequesterID: req.AssignerID,
		SubjectID:   req.PersonID,
		Permissions: req.Permissions,
	}
	defer func() { e.record(ctx, entry, err) }()

	if err := e.validateRequest(op, req); err != nil {
		return nil, err
	}
	v, err := e.view(ctx, op, req.TenantID)
	if err != nil {
		return nil, err
	}
	_, highest, _, err := e.principal(ctx, op, v, req.AssignerID, req.TenantID)
	if err != nil {
		return nil, err
	}

	allowed, rejected, invalid := aggregator.Partition(v, highest, req.Permissions)
	if len(rejected) > 0 || len(invalid) > 0 {
		return nil, &DeniedError{Operation: op, Rejected: rejected, Invalid: invalid}
	}
	if err := e.checkPerson(ctx, op, req.TenantID, req.PersonID); err != nil {
		return nil, err
	}

	now := e.now()
	grants := make([]*permission.Grant, 0, len(allowed))
	for _, name := range allowed {
		grants = append(grants, &permission.Grant{
			ID:             id.NewGrantID(),
			PersonID:       req.PersonID,
			TenantID:       req.TenantID,
			PermissionName: name,
			GrantedBy:      req.AssignerID,
			GrantedAt:      now,
			IsActive:       true,
		})
	}
	outcomes, err := e.store.GrantPermissions(ctx, grants)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	entry.Permissions = allowed

	if e.plugins != nil {
		e.plugins.EmitPermissionsGranted(ctx, outcomes)
	}
	return &GrantResult{Grants: outcomes}, nil
}

// RevokePermission deactivates a person's direct grant. The requester must
// be able to grant the permission themselves and must strictly outrank
// every role the person holds.
func (e *Engine) RevokePermission(ctx context.Context, requesterID, personID, permissionName, tenantID string) (err error) {
	const op = "revoke permission"
	if tenantID == "" {
		tenantID = ScopeFromContext(ctx).TenantID
	}
	ctx, done := e.begin(ctx, "RevokePermission",
		attribute.String("tenant_id", tenantID),
		attribute.String("permission", permissionName),
	)
	defer func() { done(err) }()

	entry := &audit.Entry{
		TenantID:    tenantID,
		Operation:   audit.OpRevokePermission,
		RequesterID: requesterID,
		SubjectID:   personID,
		Permissions: []string{permissionName},
	}
	defer func() { e.record(ctx, entry, err) }()

	v, err := e.view(ctx, op, tenantID)
	if err != nil {
		return err
	}
	_, highest, _, err := e.principal(ctx, op, v, requesterID, tenantID)
	if err != nil {
		return err
	}
	_, rejected, invalid := aggregator.Partition(v, highest, []string{permissionName})
	if len(rejected) > 0 || len(invalid) > 0 {
		return &DeniedError{Operation: op, Rejected: rejected, Invalid: invalid}
	}
	held, subjectHighest, _, err := e.principal(ctx, op, v, personID, tenantID)
	if err != nil {
		return err
	}
	if len(held) > 0 && !graph.CanManageRole(v, highest, subjectHighest) {
		return denied(op, "requester %s does not outrank %s of %s", requesterID, subjectHighest, personID)
	}

	if err := e.store.RevokePermissionGrant(ctx, personID, tenantID, permissionName); err != nil {
		if errors.Is(err, permission.ErrNotFound) {
			return fmt.Errorf("echelon: %s: %w", op, err)
		}
		return persistenceError(op, err)
	}
	if e.plugins != nil {
		e.plugins.EmitPermissionRevoked(ctx, tenantID, personID, permissionName)
	}
	return nil
}
