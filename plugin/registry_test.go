package plugin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/role"
)

// testPlugin implements Plugin + RoleAssigned + Decision + HierarchyUpdated.
type testPlugin struct {
	assigned  int
	decisions []audit.Decision
	moved     []role.LevelUpdate
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleAssigned(_ context.Context, _ *assignment.RoleAssignment) error {
	t.assigned++
	return nil
}

func (t *testPlugin) OnDecision(_ context.Context, e *audit.Entry) error {
	t.decisions = append(t.decisions, e.Decision)
	return nil
}

func (t *testPlugin) OnHierarchyUpdated(_ context.Context, _ string, updates []role.LevelUpdate) error {
	t.moved = append(t.moved, updates...)
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

// failingPlugin returns an error from its hook.
type failingPlugin struct{}

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnCustomRoleCreated(_ context.Context, _ *role.CustomRole) error {
	return errors.New("boom")
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	reg.EmitRoleAssigned(ctx, &assignment.RoleAssignment{PersonID: "p1", RoleType: "employee"})
	if tp.assigned != 1 {
		t.Fatal("OnRoleAssigned was not called")
	}

	reg.EmitDecision(ctx, &audit.Entry{Decision: audit.DecisionAllow})
	reg.EmitDecision(ctx, &audit.Entry{Decision: audit.DecisionDeny})
	if len(tp.decisions) != 2 || tp.decisions[1] != audit.DecisionDeny {
		t.Fatalf("unexpected decisions %v", tp.decisions)
	}

	reg.EmitHierarchyUpdated(ctx, "t1", []role.LevelUpdate{{RoleType: "MID", Level: 5}, {RoleType: "LEAF", Level: 6}})
	if len(tp.moved) != 2 {
		t.Fatalf("expected 2 level updates, got %d", len(tp.moved))
	}

	// Should not panic on hooks with no listeners.
	reg.EmitRoleUnassigned(ctx, nil)
	reg.EmitPermissionsGranted(ctx, nil)
	reg.EmitPermissionRevoked(ctx, "t1", "p1", "doc:read")
	reg.EmitCustomRoleRemoved(ctx, "t1", "x")
	reg.EmitShutdown(ctx)
}

func TestRegistryHookErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	reg.Register(&failingPlugin{})

	reg.EmitCustomRoleCreated(context.Background(), &role.CustomRole{RoleType: "lead"})

	out := buf.String()
	if !strings.Contains(out, "plugin=failing") || !strings.Contains(out, "hook=OnCustomRoleCreated") {
		t.Fatalf("expected hook error to be logged, got %q", out)
	}
}
