// Package plugin defines the plugin system for echelon.
// Plugins are notified of lifecycle events (decision made, role assigned,
// custom role created, hierarchy moved, etc.) and can react with logging,
// metrics, notifications or cache warming.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Decision hook
// ──────────────────────────────────────────────────

// Decision is called for every allow, deny or error outcome of a mutating
// engine operation. The entry is the one written to the audit trail.
type Decision interface {
	OnDecision(ctx context.Context, e *audit.Entry) error
}

// ──────────────────────────────────────────────────
// Assignment hooks
// ──────────────────────────────────────────────────

// RoleAssigned is called after a role assignment is persisted.
type RoleAssigned interface {
	OnRoleAssigned(ctx context.Context, a *assignment.RoleAssignment) error
}

// RoleUnassigned is called after a role assignment is deactivated.
type RoleUnassigned interface {
	OnRoleUnassigned(ctx context.Context, a *assignment.RoleAssignment) error
}

// ──────────────────────────────────────────────────
// Permission grant hooks
// ──────────────────────────────────────────────────

// PermissionsGranted is called after a batch of direct grants is persisted.
// Outcomes include grants that already existed.
type PermissionsGranted interface {
	OnPermissionsGranted(ctx context.Context, outcomes []permission.GrantOutcome) error
}

// PermissionRevoked is called after a direct grant is deactivated.
type PermissionRevoked interface {
	OnPermissionRevoked(ctx context.Context, tenantID, personID, permissionName string) error
}

// ──────────────────────────────────────────────────
// Hierarchy hooks
// ──────────────────────────────────────────────────

// CustomRoleCreated is called after a custom role is created or replaced.
type CustomRoleCreated interface {
	OnCustomRoleCreated(ctx context.Context, r *role.CustomRole) error
}

// CustomRoleRemoved is called after a custom role is soft-deleted.
type CustomRoleRemoved interface {
	OnCustomRoleRemoved(ctx context.Context, tenantID, roleType string) error
}

// HierarchyUpdated is called after custom role levels move.
type HierarchyUpdated interface {
	OnHierarchyUpdated(ctx context.Context, tenantID string, updates []role.LevelUpdate) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
