// Package assignment defines the RoleAssignment entity (principal to role
// edge) and its store interface.
package assignment

import (
	"errors"
	"time"

	"github.com/xraph/echelon/id"
)

var (
	// ErrNotFound is returned when an assignment does not exist.
	ErrNotFound = errors.New("assignment: not found")

	// ErrDuplicateAssignment is returned when an active assignment for the
	// same person, role and tenant already exists.
	ErrDuplicateAssignment = errors.New("assignment: role already assigned to person")
)

// RoleAssignment binds a role to a person within a tenant. At most one
// active assignment exists per (PersonID, RoleType, TenantID).
type RoleAssignment struct {
	ID            id.AssignmentID `json:"id" db:"id"`
	PersonID      string          `json:"person_id" db:"person_id"`
	RoleType      string          `json:"role_type" db:"role_type"`
	TenantID      string          `json:"tenant_id" db:"tenant_id"`
	CompanyID     string          `json:"company_id,omitempty" db:"company_id"`
	AssignedBy    string          `json:"assigned_by" db:"assigned_by"`
	AssignedAt    time.Time       `json:"assigned_at" db:"assigned_at"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	IsPrimary     bool            `json:"is_primary" db:"is_primary"`
	Level         int             `json:"level" db:"level"`
	DeactivatedAt *time.Time      `json:"deactivated_at,omitempty" db:"deactivated_at"`
}

// ListFilter contains filters for listing assignments.
type ListFilter struct {
	TenantID   string `json:"tenant_id,omitempty"`
	PersonID   string `json:"person_id,omitempty"`
	RoleType   string `json:"role_type,omitempty"`
	ActiveOnly bool   `json:"active_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// RoleTypes returns the role types of as in order.
func RoleTypes(as []*RoleAssignment) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.RoleType)
	}
	return out
}
