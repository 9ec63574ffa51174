package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/plugin"
	"github.com/xraph/echelon/role"
)

func TestCollectorCountsEvents(t *testing.T) {
	ctx := context.Background()
	c := New()
	reg := plugin.NewRegistry(nil)
	reg.Register(c)

	reg.EmitDecision(ctx, &audit.Entry{Operation: audit.OpAssignRole, Decision: audit.DecisionAllow})
	reg.EmitDecision(ctx, &audit.Entry{Operation: audit.OpAssignRole, Decision: audit.DecisionDeny})
	reg.EmitDecision(ctx, &audit.Entry{Operation: audit.OpAssignRole, Decision: audit.DecisionDeny})
	reg.EmitRoleAssigned(ctx, &assignment.RoleAssignment{RoleType: "employee"})
	reg.EmitPermissionsGranted(ctx, []permission.GrantOutcome{{Created: true}, {Created: false}})
	reg.EmitHierarchyUpdated(ctx, "t1", []role.LevelUpdate{{RoleType: "MID"}, {RoleType: "LEAF"}})

	assert.InDelta(t, 1, testutil.ToFloat64(c.Decisions.WithLabelValues(audit.OpAssignRole, "allow")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.Decisions.WithLabelValues(audit.OpAssignRole, "deny")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.RoleAssignments.WithLabelValues("assigned", "employee")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.PermissionGrants.WithLabelValues("granted", "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.HierarchyRelevels), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.HierarchyRoleMoves), 0)
}

func TestCollectorHandler(t *testing.T) {
	c := NewWithConfig(Config{Namespace: "test"})
	_ = c.OnCustomRoleCreated(context.Background(), &role.CustomRole{})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `test_custom_roles_total{action="created"} 1`))
}
