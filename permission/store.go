package permission

import "context"

// Store defines persistence operations for permissions and direct grants.
type Store interface {
	// ListActivePermissionGrants returns a person's active grants in a tenant.
	ListActivePermissionGrants(ctx context.Context, personID, tenantID string) ([]*Grant, error)

	// CreatePermissionGrant writes g unless an active grant for the same
	// person, tenant and permission exists, in which case the existing grant
	// is returned with Created false.
	CreatePermissionGrant(ctx context.Context, g *Grant) (*GrantOutcome, error)

	// GrantPermissions applies CreatePermissionGrant to every grant and
	// ensures a Permission row exists for each name, all in one atomic step.
	GrantPermissions(ctx context.Context, grants []*Grant) ([]GrantOutcome, error)

	// RevokePermissionGrant deactivates the active grant of one permission.
	RevokePermissionGrant(ctx context.Context, personID, tenantID, permissionName string) error

	// ListPermissions returns every Permission row, ordered by name.
	ListPermissions(ctx context.Context) ([]*Permission, error)
}
