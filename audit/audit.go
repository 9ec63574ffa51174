// Package audit defines the decision audit Entry written for every allow or
// deny outcome of a mutating engine operation.
package audit

import (
	"time"

	"github.com/xraph/echelon/id"
)

// Decision is the outcome recorded in an Entry.
type Decision string

// Decisions.
const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionError Decision = "error"
)

// Operation names recorded in entries.
const (
	OpAssignRole        = "assign_role"
	OpAssignPermissions = "assign_permissions"
	OpAddCustomRole     = "add_custom_role"
	OpUpdateHierarchy   = "update_role_hierarchy"
	OpDeactivateRole    = "deactivate_role_assignment"
	OpRevokePermission  = "revoke_permission"
	OpRemoveCustomRole  = "remove_custom_role"
)

// Entry is a single audit record.
type Entry struct {
	ID          id.AuditID `json:"id" db:"id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	Operation   string     `json:"operation" db:"operation"`
	RequesterID string     `json:"requester_id" db:"requester_id"`
	SubjectID   string     `json:"subject_id,omitempty" db:"subject_id"`
	RoleType    string     `json:"role_type,omitempty" db:"role_type"`
	Permissions []string   `json:"permissions,omitempty" db:"permissions"`
	Decision    Decision   `json:"decision" db:"decision"`
	Reason      string     `json:"reason,omitempty" db:"reason"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying audit entries.
type QueryFilter struct {
	TenantID    string     `json:"tenant_id,omitempty"`
	Operation   string     `json:"operation,omitempty"`
	RequesterID string     `json:"requester_id,omitempty"`
	SubjectID   string     `json:"subject_id,omitempty"`
	Decision    Decision   `json:"decision,omitempty"`
	After       *time.Time `json:"after,omitempty"`
	Before      *time.Time `json:"before,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}
