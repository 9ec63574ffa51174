// Package role defines the tenant CustomRole entity and its store interface.
// Built-in roles live in the catalog package and are never persisted.
package role

import (
	"errors"
	"slices"
	"time"

	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/id"
)

// ErrNotFound is returned by stores when a custom role does not exist.
var ErrNotFound = errors.New("role: custom role not found")

// CustomRole is a tenant-scoped extension of the role hierarchy.
type CustomRole struct {
	ID             id.CustomRoleID `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	RoleType       string          `json:"role_type" db:"role_type"`
	DisplayName    string          `json:"display_name" db:"display_name"`
	Description    string          `json:"description,omitempty" db:"description"`
	ParentRoleType string          `json:"parent_role_type,omitempty" db:"parent_role_type"`
	Level          int             `json:"level" db:"level"`
	Permissions    []string        `json:"permissions" db:"permissions"`
	CreatedBy      string          `json:"created_by" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsDeleted reports whether the role has been soft-deleted.
func (r *CustomRole) IsDeleted() bool { return r.DeletedAt != nil }

// Clone returns a deep copy of r.
func (r *CustomRole) Clone() *CustomRole {
	c := *r
	c.Permissions = slices.Clone(r.Permissions)
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// Definition converts the row into a hierarchy entry.
func (r *CustomRole) Definition() catalog.RoleDefinition {
	return catalog.RoleDefinition{
		RoleType:       r.RoleType,
		Level:          r.Level,
		ParentRoleType: r.ParentRoleType,
		DisplayName:    r.DisplayName,
		Description:    r.Description,
		Permissions:    slices.Clone(r.Permissions),
		IsCustom:       true,
		TenantID:       r.TenantID,
	}
}

// Definitions converts a list of rows, skipping soft-deleted ones.
func Definitions(roles []*CustomRole) []catalog.RoleDefinition {
	out := make([]catalog.RoleDefinition, 0, len(roles))
	for _, r := range roles {
		if r == nil || r.IsDeleted() {
			continue
		}
		out = append(out, r.Definition())
	}
	return out
}

// LevelUpdate moves one custom role to a new level, and optionally a new parent.
type LevelUpdate struct {
	RoleType       string `json:"role_type"`
	Level          int    `json:"level"`
	ParentRoleType string `json:"parent_role_type,omitempty"`
	// SetParent applies ParentRoleType, including clearing it.
	SetParent bool `json:"-"`
}
