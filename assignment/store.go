package assignment

import (
	"context"

	"github.com/xraph/echelon/id"
)

// Store defines persistence operations for role assignments.
type Store interface {
	// ListActiveRoleAssignments returns a person's active assignments in a tenant.
	ListActiveRoleAssignments(ctx context.Context, personID, tenantID string) ([]*RoleAssignment, error)

	// CreateRoleAssignment persists a new assignment. It must return
	// ErrDuplicateAssignment when an active row for the same person, role
	// and tenant exists, even under concurrent calls.
	CreateRoleAssignment(ctx context.Context, a *RoleAssignment) error

	// GetRoleAssignment retrieves an assignment by ID.
	GetRoleAssignment(ctx context.Context, assID id.AssignmentID) (*RoleAssignment, error)

	// DeactivateRoleAssignment flips an active assignment to inactive.
	DeactivateRoleAssignment(ctx context.Context, assID id.AssignmentID) error

	// ListRoleAssignments returns assignments matching the filter.
	ListRoleAssignments(ctx context.Context, filter *ListFilter) ([]*RoleAssignment, error)

	// CountActiveRoleAssignments returns how many active assignments hold a role.
	CountActiveRoleAssignments(ctx context.Context, tenantID, roleType string) (int64, error)
}
