package api

// ──────────────────────────────────────────────────
// Access requests
// ──────────────────────────────────────────────────

// RolePairRequest compares two roles in a tenant hierarchy.
type RolePairRequest struct {
	TenantID string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
	From     string `query:"from" description:"Acting role type"`
	To       string `query:"to" description:"Target role type"`
}

// EffectivePermissionsRequest expands a role set.
type EffectivePermissionsRequest struct {
	TenantID string   `json:"tenant_id,omitempty" description:"Tenant (defaults to the request scope)"`
	Roles    []string `json:"roles" description:"Role types"`
}

// HasPermissionRequest checks one permission of one person.
type HasPermissionRequest struct {
	TenantID   string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
	PersonID   string `query:"person_id" description:"Person to check (defaults to the caller)"`
	Permission string `query:"permission" description:"Permission name (resource:action)"`
}

// ──────────────────────────────────────────────────
// Hierarchy requests
// ──────────────────────────────────────────────────

// TenantRequest carries an optional tenant override.
type TenantRequest struct {
	TenantID string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
}

// PersonRequest identifies a person in a tenant.
type PersonRequest struct {
	PersonID string `path:"personId" description:"Person ID"`
	TenantID string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
}

// CreateCustomRoleRequest is the body for creating a custom role.
type CreateCustomRoleRequest struct {
	TenantID       string   `json:"tenant_id,omitempty" description:"Tenant (defaults to the request scope)"`
	RoleType       string   `json:"role_type" description:"Role type key"`
	DisplayName    string   `json:"display_name,omitempty" description:"Human-readable name"`
	Description    string   `json:"description,omitempty" description:"Human-readable description"`
	ParentRoleType string   `json:"parent_role_type,omitempty" description:"Parent role; the level is derived from it"`
	Level          *int     `json:"level,omitempty" description:"Level when no parent is given"`
	Permissions    []string `json:"permissions,omitempty" description:"Permission names"`
}

// GetCustomRoleRequest is the path parameter for a custom role.
type GetCustomRoleRequest struct {
	RoleType string `path:"roleType" description:"Role type"`
	TenantID string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
}

// UpdateHierarchyRequest is the body for moving a custom role.
type UpdateHierarchyRequest struct {
	TenantID          string  `json:"tenant_id,omitempty" description:"Tenant (defaults to the request scope)"`
	NewLevel          int     `json:"new_level" description:"New level of the role"`
	NewParentRoleType *string `json:"new_parent_role_type,omitempty" description:"New parent role; empty string detaches"`
}

// PreviewRoleChangeRequest previews a role swap.
type PreviewRoleChangeRequest struct {
	TenantID    string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
	CurrentRole string `query:"current" description:"Current role type"`
	TargetRole  string `query:"target" description:"Target role type"`
}

// ValidatePermissionsRequest checks requested permissions against a role.
type ValidatePermissionsRequest struct {
	TenantID    string   `json:"tenant_id,omitempty" description:"Tenant (defaults to the request scope)"`
	RoleType    string   `json:"role_type" description:"Role type"`
	Permissions []string `json:"permissions" description:"Requested permission names"`
}

// ──────────────────────────────────────────────────
// Assignment requests
// ──────────────────────────────────────────────────

// AssignRoleRequest is the body for assigning a role to a person.
type AssignRoleRequest struct {
	TenantID  string `json:"tenant_id,omitempty" description:"Tenant (defaults to the request scope)"`
	PersonID  string `json:"person_id" description:"Person receiving the role"`
	RoleType  string `json:"role_type" description:"Role type to assign"`
	CompanyID string `json:"company_id,omitempty" description:"Company the assignment belongs to"`
	IsPrimary bool   `json:"is_primary,omitempty" description:"Primary role flag"`
}

// GetAssignmentRequest is the path parameter for an assignment.
type GetAssignmentRequest struct {
	AssignmentID string `path:"assignmentId" description:"Assignment ID"`
}

// ListAssignmentsRequest holds query parameters.
type ListAssignmentsRequest struct {
	TenantID   string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
	PersonID   string `query:"person_id" description:"Filter by person"`
	RoleType   string `query:"role_type" description:"Filter by role type"`
	ActiveOnly bool   `query:"active_only" description:"Only active assignments"`
	Limit      int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset     int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// AssignPermissionsRequest is the body for direct grants.
type AssignPermissionsRequest struct {
	TenantID    string   `json:"tenant_id,omitempty" description:"Tenant (defaults to the request scope)"`
	PersonID    string   `json:"person_id" description:"Person receiving the grants"`
	Permissions []string `json:"permissions" description:"Permission names (resource:action)"`
}

// RevokePermissionRequest identifies a direct grant.
type RevokePermissionRequest struct {
	TenantID   string `json:"tenant_id,omitempty" description:"Tenant (defaults to the request scope)"`
	PersonID   string `json:"person_id" description:"Person holding the grant"`
	Permission string `json:"permission" description:"Permission name"`
}

// ListPermissionsRequest has no parameters.
type ListPermissionsRequest struct{}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditEntriesRequest holds query parameters.
type ListAuditEntriesRequest struct {
	TenantID    string `query:"tenant_id" description:"Tenant (defaults to the request scope)"`
	Operation   string `query:"operation" description:"Filter by operation"`
	RequesterID string `query:"requester_id" description:"Filter by requester"`
	SubjectID   string `query:"subject_id" description:"Filter by subject"`
	Decision    string `query:"decision" description:"Filter by decision (allow, deny, error)"`
	After       string `query:"after" description:"Entries after (RFC3339)"`
	Before      string `query:"before" description:"Entries before (RFC3339)"`
	Limit       int    `query:"limit" description:"Maximum results"`
	Offset      int    `query:"offset" description:"Results to skip"`
}
