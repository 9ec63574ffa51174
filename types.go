package echelon

import (
	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/permission"
)

// AssignRoleRequest asks for RoleType to be given to PersonID. An empty
// TenantID is taken from the context scope.
type AssignRoleRequest struct {
	AssignerID string `json:"assigner_id" validate:"required"`
	PersonID   string `json:"person_id" validate:"required"`
	RoleType   string `json:"role_type" validate:"required,max=64"`
	TenantID   string `json:"tenant_id" validate:"required"`
	CompanyID  string `json:"company_id,omitempty"`
	IsPrimary  bool   `json:"is_primary,omitempty"`
}

// AssignPermissionsRequest asks for direct grants of Permissions.
type AssignPermissionsRequest struct {
	AssignerID  string   `json:"assigner_id" validate:"required"`
	PersonID    string   `json:"person_id" validate:"required"`
	TenantID    string   `json:"tenant_id" validate:"required"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

// GrantResult lists every grant of an AssignPermissions call, new or
// pre-existing.
type GrantResult struct {
	Grants []permission.GrantOutcome `json:"grants"`
}

// Created returns the number of grants written by the call.
func (r *GrantResult) Created() int {
	n := 0
	for _, g := range r.Grants {
		if g.Created {
			n++
		}
	}
	return n
}

// RoleHierarchy is the aggregate authority of one person in one tenant.
type RoleHierarchy struct {
	PersonID          string                       `json:"person_id"`
	TenantID          string                       `json:"tenant_id"`
	Roles             []*assignment.RoleAssignment `json:"roles"`
	HighestRole       string                       `json:"highest_role,omitempty"`
	HighestLevel      int                          `json:"highest_level"`
	PathToRoot        []string                     `json:"path_to_root,omitempty"`
	RolePermissions   []string                     `json:"role_permissions"`
	DirectPermissions []string                     `json:"direct_permissions"`
	Permissions       []string                     `json:"permissions"`
}

// CustomRoleRequest defines a tenant custom role. When ParentRoleType is
// set the level is derived from the parent and Level is ignored.
type CustomRoleRequest struct {
	RequesterID    string   `json:"requester_id" validate:"required"`
	TenantID       string   `json:"tenant_id" validate:"required"`
	RoleType       string   `json:"role_type" validate:"required,max=64,excludesall=:"`
	DisplayName    string   `json:"display_name,omitempty" validate:"max=128"`
	Description    string   `json:"description,omitempty"`
	ParentRoleType string   `json:"parent_role_type,omitempty" validate:"max=64"`
	Level          *int     `json:"level,omitempty" validate:"omitempty,gte=1"`
	Permissions    []string `json:"permissions,omitempty" validate:"dive,required"`
}

// UpdateHierarchyRequest moves a custom role to NewLevel and, when
// NewParentRoleType is non-nil, under a new parent. Descendants follow.
type UpdateHierarchyRequest struct {
	RequesterID       string  `json:"requester_id" validate:"required"`
	TenantID          string  `json:"tenant_id" validate:"required"`
	RoleType          string  `json:"role_type" validate:"required"`
	NewLevel          int     `json:"new_level" validate:"gte=1"`
	NewParentRoleType *string `json:"new_parent_role_type,omitempty"`
}

// RoleChangePreview describes what moving a person from CurrentRole to
// TargetRole would change.
type RoleChangePreview struct {
	CurrentRole  string   `json:"current_role"`
	TargetRole   string   `json:"target_role"`
	CurrentLevel int      `json:"current_level"`
	TargetLevel  int      `json:"target_level"`
	IsPromotion  bool     `json:"is_promotion"`
	Gained       []string `json:"gained"`
	Lost         []string `json:"lost"`
	Kept         []string `json:"kept"`
}
