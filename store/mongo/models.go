package mongo

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
	ID              string     `grove:"id,pk"            bson:"_id"`
	TenantID        string     `grove:"tenant_id"        bson:"tenant_id"`
	RoleType        string     `grove:"role_type"        bson:"role_type"`
	DisplayName     string     `grove:"display_name"     bson:"display_name"`
	Description     string     `grove:"description"      bson:"description"`
	ParentRoleType  string     `grove:"parent_role_type" bson:"parent_role_type"`
	Level           int        `grove:"level"            bson:"level"`
	Permissions     []string   `grove:"permissions"      bson:"permissions"`
	CreatedBy       string     `grove:"created_by"       bson:"created_by"`
	CreatedAt       time.Time  `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time  `grove:"updated_at"       bson:"updated_at"`
	DeletedAt       *time.Time `grove:"deleted_at"       bson:"deleted_at,omitempty"`
	// Deleted mirrors DeletedAt so the partial unique index can match on it.
	Deleted bool `grove:"deleted" bson:"deleted"`
}

func customRoleToModel(r *role.CustomRole) *customRoleModel {
	return &customRoleModel{
		ID:             r.ID.String(),
		TenantID:       r.TenantID,
		RoleType:       r.RoleType,
		DisplayName:    r.DisplayName,
		Description:    r.Description,
		ParentRoleType: r.ParentRoleType,
		Level:          r.Level,
		Permissions:    r.Permissions,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		DeletedAt:      r.DeletedAt,
		Deleted:        r.DeletedAt != nil,
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
	ID              string     `grove:"id,pk"          bson:"_id"`
	PersonID        string     `grove:"person_id"      bson:"person_id"`
	RoleType        string     `grove:"role_type"      bson:"role_type"`
	TenantID        string     `grove:"tenant_id"      bson:"tenant_id"`
	CompanyID       string     `grove:"company_id"     bson:"company_id,omitempty"`
	AssignedBy      string     `grove:"assigned_by"    bson:"assigned_by"`
	AssignedAt      time.Time  `grove:"assigned_at"    bson:"assigned_at"`
	IsActive        bool       `grove:"is_active"      bson:"is_active"`
	IsPrimary       bool       `grove:"is_primary"     bson:"is_primary"`
	Level           int        `grove:"level"          bson:"level"`
	DeactivatedAt   *time.Time `grove:"deactivated_at" bson:"deactivated_at,omitempty"`
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
	ID              string    `grove:"id,pk"       bson:"_id"`
	Name            string    `grove:"name"        bson:"name"`
	Resource        string    `grove:"resource"    bson:"resource"`
	Action          string    `grove:"action"      bson:"action"`
	Description     string    `grove:"description" bson:"description,omitempty"`
	CreatedAt       time.Time `grove:"created_at"  bson:"created_at"`
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
	ID              string     `grove:"id,pk"           bson:"_id"`
	PersonID        string     `grove:"person_id"       bson:"person_id"`
	TenantID        string     `grove:"tenant_id"       bson:"tenant_id"`
	PermissionName  string     `grove:"permission_name" bson:"permission_name"`
	GrantedBy       string     `grove:"granted_by"      bson:"granted_by"`
	GrantedAt       time.Time  `grove:"granted_at"      bson:"granted_at"`
	IsActive        bool       `grove:"is_active"       bson:"is_active"`
	RevokedAt       *time.Time `grove:"revoked_at"      bson:"revoked_at,omitempty"`
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
	ID              string    `grove:"id,pk"        bson:"_id"`
	TenantID        string    `grove:"tenant_id"    bson:"tenant_id"`
	Operation       string    `grove:"operation"    bson:"operation"`
	RequesterID     string    `grove:"requester_id" bson:"requester_id"`
	SubjectID       string    `grove:"subject_id"   bson:"subject_id,omitempty"`
	RoleType        string    `grove:"role_type"    bson:"role_type,omitempty"`
	Permissions     []string  `grove:"permissions"  bson:"permissions,omitempty"`
	Decision        string    `grove:"decision"     bson:"decision"`
	Reason          string    `grove:"reason"       bson:"reason,omitempty"`
	CreatedAt       time.Time `grove:"created_at"   bson:"created_at"`
}

func auditEntryToModel(e *audit.Entry) *auditEntryModel {
	return &auditEntryModel{
		ID:          e.ID.String(),
		TenantID:    e.TenantID,
		Operation:   e.Operation,
		RequesterID: e.RequesterID,
		SubjectID:   e.SubjectID,
		RoleType:    e.RoleType,
		Permissions: e.Permissions,
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
