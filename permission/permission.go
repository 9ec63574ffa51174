// Package permission defines permission names, the Permission catalog row
// and the Grant entity (a direct principal to permission edge that exists
// independently of any role).
package permission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/echelon/id"
)

var (
	// ErrNotFound is returned when a grant or permission does not exist.
	ErrNotFound = errors.New("permission: not found")

	// ErrMalformedName is returned by Parse for names not of the form
	// "resource:action".
	ErrMalformedName = errors.New("permission: malformed name")
)

// Permission is an atomic capability, named "resource:action".
type Permission struct {
	ID          id.PermissionID `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Resource    string          `json:"resource" db:"resource"`
	Action      string          `json:"action" db:"action"`
	Description string          `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Parse splits a permission name into resource and action.
func Parse(name string) (resource, action string, err error) {
	resource, action, ok := strings.Cut(name, ":")
	if !ok || resource == "" || action == "" || strings.Contains(action, ":") {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedName, name)
	}
	return resource, action, nil
}

// New builds a Permission row for name.
func New(name string) (*Permission, error) {
	resource, action, err := Parse(name)
	if err != nil {
		return nil, err
	}
	return &Permission{
		ID:       id.NewPermissionID(),
		Name:     name,
		Resource: resource,
		Action:   action,
	}, nil
}

// Grant gives a person one permission within a tenant. At most one active
// grant exists per (PersonID, TenantID, PermissionName).
type Grant struct {
	ID             id.GrantID `json:"id" db:"id"`
	PersonID       string     `json:"person_id" db:"person_id"`
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	PermissionName string     `json:"permission_name" db:"permission_name"`
	GrantedBy      string     `json:"granted_by" db:"granted_by"`
	GrantedAt      time.Time  `json:"granted_at" db:"granted_at"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// GrantOutcome reports whether a grant was written or already present.
type GrantOutcome struct {
	Grant   *Grant `json:"grant"`
	Created bool   `json:"created"`
}

// Names returns the permission names of gs in order.
func Names(gs []*Grant) []string {
	out := make([]string, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.PermissionName)
	}
	return out
}
