package role

import "context"

// Store defines persistence operations for tenant custom roles.
type Store interface {
	// ListCustomRoles returns the active, non-deleted custom roles of a tenant.
	ListCustomRoles(ctx context.Context, tenantID string) ([]*CustomRole, error)

	// GetCustomRole returns a non-deleted custom role by tenant and role type.
	GetCustomRole(ctx context.Context, tenantID, roleType string) (*CustomRole, error)

	// UpsertCustomRole inserts the role, or replaces the non-deleted role
	// with the same tenant and role type. ID and CreatedAt of an existing row
	// are preserved and written back into r.
	UpsertCustomRole(ctx context.Context, r *CustomRole) error

	// UpdateRoleLevels applies every update in one atomic step. Either all
	// roles move or none do.
	UpdateRoleLevels(ctx context.Context, tenantID string, updates []LevelUpdate) error

	// SoftDeleteCustomRole marks a custom role deleted.
	SoftDeleteCustomRole(ctx context.Context, tenantID, roleType string) error
}
