package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
)

// Named entry types pair a hook with the plugin name for logging.

type decisionEntry struct {
	name string
	hook Decision
}
type roleAssignedEntry struct {
	name string
	hook RoleAssigned
}
type roleUnassignedEntry struct {
	name string
	hook RoleUnassigned
}
type permissionsGrantedEntry struct {
	name string
	hook PermissionsGranted
}
type permissionRevokedEntry struct {
	name string
	hook PermissionRevoked
}
type customRoleCreatedEntry struct {
	name string
	hook CustomRoleCreated
}
type customRoleRemovedEntry struct {
	name string
	hook CustomRoleRemoved
}
type hierarchyUpdatedEntry struct {
	name string
	hook HierarchyUpdated
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	decision           []decisionEntry
	roleAssigned       []roleAssignedEntry
	roleUnassigned     []roleUnassignedEntry
	permissionsGranted []permissionsGrantedEntry
	permissionRevoked  []permissionRevokedEntry
	customRoleCreated  []customRoleCreatedEntry
	customRoleRemoved  []customRoleRemovedEntry
	hierarchyUpdated   []hierarchyUpdatedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(Decision); ok {
		r.decision = append(r.decision, decisionEntry{name, h})
	}
	if h, ok := p.(RoleAssigned); ok {
		r.roleAssigned = append(r.roleAssigned, roleAssignedEntry{name, h})
	}
	if h, ok := p.(RoleUnassigned); ok {
		r.roleUnassigned = append(r.roleUnassigned, roleUnassignedEntry{name, h})
	}
	if h, ok := p.(PermissionsGranted); ok {
		r.permissionsGranted = append(r.permissionsGranted, permissionsGrantedEntry{name, h})
	}
	if h, ok := p.(PermissionRevoked); ok {
		r.permissionRevoked = append(r.permissionRevoked, permissionRevokedEntry{name, h})
	}
	if h, ok := p.(CustomRoleCreated); ok {
		r.customRoleCreated = append(r.customRoleCreated, customRoleCreatedEntry{name, h})
	}
	if h, ok := p.(CustomRoleRemoved); ok {
		r.customRoleRemoved = append(r.customRoleRemoved, customRoleRemovedEntry{name, h})
	}
	if h, ok := p.(HierarchyUpdated); ok {
		r.hierarchyUpdated = append(r.hierarchyUpdated, hierarchyUpdatedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// EmitDecision notifies all plugins that implement Decision.
func (r *Registry) EmitDecision(ctx context.Context, entry *audit.Entry) {
	for _, e := range r.decision {
		if err := e.hook.OnDecision(ctx, entry); err != nil {
			r.logHookError("OnDecision", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Assignment event emitters
// ──────────────────────────────────────────────────

// EmitRoleAssigned notifies all plugins that implement RoleAssigned.
func (r *Registry) EmitRoleAssigned(ctx context.Context, a *assignment.RoleAssignment) {
	for _, e := range r.roleAssigned {
		if err := e.hook.OnRoleAssigned(ctx, a); err != nil {
			r.logHookError("OnRoleAssigned", e.name, err)
		}
	}
}

// EmitRoleUnassigned notifies all plugins that implement RoleUnassigned.
func (r *Registry) EmitRoleUnassigned(ctx context.Context, a *assignment.RoleAssignment) {
	for _, e := range r.roleUnassigned {
		if err := e.hook.OnRoleUnassigned(ctx, a); err != nil {
			r.logHookError("OnRoleUnassigned", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Permission event emitters
// ──────────────────────────────────────────────────

// EmitPermissionsGranted notifies all plugins that implement PermissionsGranted.
func (r *Registry) EmitPermissionsGranted(ctx context.Context, outcomes []permission.GrantOutcome) {
	for _, e := range r.permissionsGranted {
		if err := e.hook.OnPermissionsGranted(ctx, outcomes); err != nil {
			r.logHookError("OnPermissionsGranted", e.name, err)
		}
	}
}

// EmitPermissionRevoked notifies all plugins that implement PermissionRevoked.
func (r *Registry) EmitPermissionRevoked(ctx context.Context, tenantID, personID, name string) {
	for _, e := range r.permissionRevoked {
		if err := e.hook.OnPermissionRevoked(ctx, tenantID, personID, name); err != nil {
			r.logHookError("OnPermissionRevoked", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Hierarchy event emitters
// ──────────────────────────────────────────────────

// EmitCustomRoleCreated notifies all plugins that implement CustomRoleCreated.
func (r *Registry) EmitCustomRoleCreated(ctx context.Context, cr *role.CustomRole) {
	for _, e := range r.customRoleCreated {
		if err := e.hook.OnCustomRoleCreated(ctx, cr); err != nil {
			r.logHookError("OnCustomRoleCreated", e.name, err)
		}
	}
}

// EmitCustomRoleRemoved notifies all plugins that implement CustomRoleRemoved.
func (r *Registry) EmitCustomRoleRemoved(ctx context.Context, tenantID, roleType string) {
	for _, e := range r.customRoleRemoved {
		if err := e.hook.OnCustomRoleRemoved(ctx, tenantID, roleType); err != nil {
			r.logHookError("OnCustomRoleRemoved", e.name, err)
		}
	}
}

// EmitHierarchyUpdated notifies all plugins that implement HierarchyUpdated.
func (r *Registry) EmitHierarchyUpdated(ctx context.Context, tenantID string, updates []role.LevelUpdate) {
	for _, e := range r.hierarchyUpdated {
		if err := e.hook.OnHierarchyUpdated(ctx, tenantID, updates); err != nil {
			r.logHookError("OnHierarchyUpdated", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
