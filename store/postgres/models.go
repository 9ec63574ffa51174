package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/id"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
)

// ──────────────────────────────────────────────────
// Custom role model
// ──────────────────────────────────────────────────

type customRoleModel struct {
	grove.BaseModel `grove:"table:echelon_custom_roles"`
	ID              string     `grove:"id,pk"`
	TenantID        string     `grove:"tenant_id,notnull"`
	RoleType        string     `grove:"role_type,notnull"`
	DisplayName     string     `grove:"display_name,notnull"`
	Description     string     `grove:"description,notnull"`
	ParentRoleType  string     `grove:"parent_role_type,notnull"`
	Level           int        `grove:"level,notnull"`
	Permissions     []string   `grove:"permissions,type:jsonb"`
	CreatedBy       string     `grove:"created_by,notnull"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
	DeletedAt       *time.Time `grove:"deleted_at"`
}

func customRoleToModel(r *role.CustomRole) *customRoleModel {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &customRoleModel{
		ID:             r.ID.String(),
		TenantID:       r.TenantID,
		RoleType:       r.RoleType,
		DisplayName:    r.DisplayName,
		Description:    r.Description,
		ParentRoleType: r.ParentRoleType,
		Level:          r.Level,
		Permissions:    perms,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		DeletedAt:      r.DeletedAt,
	}
}

func customRoleFromModel(m *customRoleModel) *role.CustomRole {
	rid, _ := id.ParseCustomRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &role.CustomRole{
		ID:             rid,
		TenantID:       m.TenantID,
		RoleType:       m.RoleType,
		DisplayName:    m.DisplayName,
		Description:    m.Description,
		ParentRoleType: m.ParentRoleType,
		Level:          m.Level,
		Permissions:    m.Permissions,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		DeletedAt:      m.DeletedAt,
	}
}

// ──────────────────────────────────────────────────
// Role assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:echelon_role_assignments"`
	ID              string     `grove:"id,pk"`
	PersonID        string     `grove:"person_id,notnull"`
	RoleType        string     `grove:"role_type,notnull"`
	TenantID        string     `grove:"tenant_id,notnull"`
	CompanyID       string     `grove:"company_id,notnull"`
	AssignedBy      string     `grove:"assigned_by,notnull"`
	AssignedAt      time.Time  `grove:"assigned_at,notnull"`
	IsActive        bool       `grove:"is_active,notnull"`
	IsPrimary       bool       `grove:"is_primary,notnull"`
	Level           int        `grove:"level,notnull"`
	DeactivatedAt   *time.Time `grove:"deactivated_at"`
}

func assignmentToModel(a *assignment.RoleAssignment) *assignmentModel {
	return &assignmentModel{
		ID:            a.ID.String(),
		PersonID:      a.PersonID,
		RoleType:      a.RoleType,
		TenantID:      a.TenantID,
		CompanyID:     a.CompanyID,
		AssignedBy:    a.AssignedBy,
		AssignedAt:    a.AssignedAt,
		IsActive:      a.IsActive,
		IsPrimary:     a.IsPrimary,
		Level:         a.Level,
		DeactivatedAt: a.DeactivatedAt,
	}
}

func assignmentFromModel(m *assignmentModel) *assignment.RoleAssignment {
	aid, _ := id.ParseAssignmentID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &assignment.RoleAssignment{
		ID:            aid,
		PersonID:      m.PersonID,
		RoleType:      m.RoleType,
		TenantID:      m.TenantID,
		CompanyID:     m.CompanyID,
		AssignedBy:    m.AssignedBy,
		AssignedAt:    m.AssignedAt,
		IsActive:      m.IsActive,
		IsPrimary:     m.IsPrimary,
		Level:         m.Level,
		DeactivatedAt: m.DeactivatedAt,
	}
}

// ──────────────────────────────────────────────────
// Permission and grant models
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:echelon_permissions"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Resource        string    `grove:"resource,notnull"`
	Action          string    `grove:"action,notnull"`
	Description     string    `grove:"description,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Resource:    p.Resource,
		Action:      p.Action,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &permission.Permission{
		ID:          pid,
		Name:        m.Name,
		Resource:    m.Resource,
		Action:      m.Action,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

type grantModel struct {
	grove.BaseModel `grove:"table:echelon_permission_grants"`
	ID              string     `grove:"id,pk"`
	PersonID        string     `grove:"person_id,notnull"`
	TenantID        string     `grove:"tenant_id,notnull"`
	PermissionName  string     `grove:"permission_name,notnull"`
	GrantedBy       string     `grove:"granted_by,notnull"`
	GrantedAt       time.Time  `grove:"granted_at,notnull"`
	IsActive        bool       `grove:"is_active,notnull"`
	RevokedAt       *time.Time `grove:"revoked_at"`
}

func grantToModel(g *permission.Grant) *grantModel {
	return &grantModel{
		ID:             g.ID.String(),
		PersonID:       g.PersonID,
		TenantID:       g.TenantID,
		PermissionName: g.PermissionName,
		GrantedBy:      g.GrantedBy,
		GrantedAt:      g.GrantedAt,
		IsActive:       g.IsActive,
		RevokedAt:      g.RevokedAt,
	}
}

func grantFromModel(m *grantModel) *permission.Grant {
	gid, _ := id.ParseGrantID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &permission.Grant{
		ID:             gid,
		PersonID:       m.PersonID,
		TenantID:       m.TenantID,
		PermissionName: m.PermissionName,
		GrantedBy:      m.GrantedBy,
		GrantedAt:      m.GrantedAt,
		IsActive:       m.IsActive,
		RevokedAt:      m.RevokedAt,
	}
}

// ──────────────────────────────────────────────────
// Audit entry model
// ──────────────────────────────────────────────────

type auditEntryModel struct {
	grove.BaseModel `grove:"table:echelon_audit_entries"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Operation       string    `grove:"operation,notnull"`
	RequesterID     string    `grove:"requester_id,notnull"`
	SubjectID       string    `grove:"subject_id,notnull"`
	RoleType        string    `grove:"role_type,notnull"`
	Permissions     []string  `grove:"permissions,type:jsonb"`
	Decision        string    `grove:"decision,notnull"`
	Reason          string    `grove:"reason,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func auditEntryToModel(e *audit.Entry) *auditEntryModel {
	perms := e.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &auditEntryModel{
		ID:          e.ID.String(),
		TenantID:    e.TenantID,
		Operation:   e.Operation,
		RequesterID: e.RequesterID,
		SubjectID:   e.SubjectID,
		RoleType:    e.RoleType,
		Permissions: perms,
		Decision:    string(e.Decision),
		Reason:      e.Reason,
		CreatedAt:   e.CreatedAt,
	}
}

func auditEntryFromModel(m *auditEntryModel) *audit.Entry {
	aid, _ := id.ParseAuditID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &audit.Entry{
		ID:          aid,
		TenantID:    m.TenantID,
		Operation:   m.Operation,
		RequesterID: m.RequesterID,
		SubjectID:   m.SubjectID,
		RoleType:    m.RoleType,
		Permissions: m.Permissions,
		Decision:    audit.Decision(m.Decision),
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt,
	}
}
