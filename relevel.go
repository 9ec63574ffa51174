package echelon

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/graph"
	"github.com/xraph/echelon/role"
)

// UpdateRoleHierarchy moves a custom role to a new level, optionally under a
// new parent, and re-derives the level of every descendant as parent level
// plus one. All moves are written in one atomic store update while the
// tenant lock is held, so readers see either the old or the new hierarchy.
//
// Built-in roles cannot be moved. The requester must be the root authority
// or strictly outrank both the role's current and its new level.
func (e *Engine) UpdateRoleHierarchy(ctx context.Context, req *UpdateHierarchyRequest) (_ []role.LevelUpdate, err error) {
	const op = "update role hierarchy"
	if req.TenantID == "" {
		req.TenantID = ScopeFromContext(ctx).TenantID
	}
	ctx, done := e.begin(ctx, "UpdateRoleHierarchy",
		attribute.String("tenant_id", req.TenantID),
		attribute.String("role_type", req.RoleType),
		attribute.Int("new_level", req.NewLevel),
	)
	defer func() { done(err) }()

	entry := &audit.Entry{
		TenantID:    req.TenantID,
		Operation:   audit.OpUpdateHierarchy,
		RequesterID: req.RequesterID,
		RoleType:    req.RoleType,
	}
	defer func() { e.record(ctx, entry, err) }()

	if err := e.validateRequest(op, req); err != nil {
		return nil, err
	}
	if e.base.Exists(req.RoleType) {
		return nil, fmt.Errorf("echelon: %s: %w: %s", op, ErrSystemRoleImmutable, req.RoleType)
	}

	unlock := e.locks.Lock(tenantKey(req.TenantID))
	defer unlock()

	v, err := e.freshView(ctx, op, req.TenantID)
	if err != nil {
		return nil, err
	}
	def, ok := v.Definition(req.RoleType)
	if !ok {
		return nil, fmt.Errorf("echelon: %s: %w: %s", op, ErrRoleNotFound, req.RoleType)
	}

	parent, setParent := def.ParentRoleType, false
	if req.NewParentRoleType != nil {
		parent, setParent = *req.NewParentRoleType, true
		if err := checkNewParent(op, v, req.RoleType, parent); err != nil {
			return nil, err
		}
	}
	if parent != "" && v.Exists(parent) && req.NewLevel <= v.Level(parent) {
		return nil, fmt.Errorf("echelon: %s: %w: level %d is not below parent %s (level %d)",
			op, ErrInvalidRequest, req.NewLevel, parent, v.Level(parent))
	}

	_, highest, ok, err := e.principal(ctx, op, v, req.RequesterID, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, denied(op, "requester %s holds no role in tenant %s", req.RequesterID, req.TenantID)
	}
	if !graph.IsRoot(v, highest) {
		lvl := v.Level(highest)
		if lvl >= def.Level || lvl >= req.NewLevel {
			return nil, denied(op, "role %s (level %d) may not move %s from level %d to %d",
				highest, lvl, req.RoleType, def.Level, req.NewLevel)
		}
	}

	updates, err := relevel(v, req.RoleType, req.NewLevel, parent, setParent, e.config.MaxHierarchyDepth)
	if err != nil {
		return nil, fmt.Errorf("echelon: %s: %w", op, err)
	}
	if err := e.store.UpdateRoleLevels(ctx, req.TenantID, updates); err != nil {
		if errors.Is(err, role.ErrNotFound) {
			return nil, fmt.Errorf("echelon: %s: %w: %w", op, ErrRoleNotFound, err)
		}
		return nil, persistenceError(op, err)
	}
	e.resolver.Invalidate(ctx, req.TenantID)

	if e.plugins != nil {
		e.plugins.EmitHierarchyUpdated(ctx, req.TenantID, updates)
	}
	return updates, nil
}

func checkNewParent(op string, v catalog.View, roleType, parent string) error {
	if parent == "" {
		return nil
	}
	if parent == roleType {
		return fmt.Errorf("echelon: %s: %w: %s cannot be its own parent", op, ErrCycleDetected, roleType)
	}
	if !v.Exists(parent) {
		return fmt.Errorf("echelon: %s: %w: parent %s", op, ErrRoleNotFound, parent)
	}
	below, err := graph.IsAncestor(v, roleType, parent)
	if err != nil {
		return fmt.Errorf("echelon: %s: %w", op, err)
	}
	if below {
		return fmt.Errorf("echelon: %s: %w: %s is below %s", op, ErrCycleDetected, parent, roleType)
	}
	return nil
}

// relevel walks the subtree under roleType depth first and returns the level
// update of every role in it, roleType first. Revisiting a role means the
// parent chain is cyclic.
func relevel(v catalog.View, roleType string, level int, parent string, setParent bool, maxDepth int) ([]role.LevelUpdate, error) {
	type frame struct {
		roleType     string
		level, depth int
	}

	updates := []role.LevelUpdate{{
		RoleType:       roleType,
		Level:          level,
		ParentRoleType: parent,
		SetParent:      setParent,
	}}
	visited := map[string]struct{}{roleType: {}}
	stack := []frame{{roleType: roleType, level: level}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range v.Children(f.roleType) {
			if _, seen := visited[child]; seen {
				return nil, fmt.Errorf("%w: %s revisited below %s", ErrCycleDetected, child, roleType)
			}
			if maxDepth > 0 && f.depth+1 > maxDepth {
				return nil, fmt.Errorf("%w: subtree of %s deeper than %d", ErrInvalidRequest, roleType, maxDepth)
			}
			visited[child] = struct{}{}
			updates = append(updates, role.LevelUpdate{RoleType: child, Level: f.level + 1})
			stack = append(stack, frame{roleType: child, level: f.level + 1, depth: f.depth + 1})
		}
	}
	return updates, nil
}
