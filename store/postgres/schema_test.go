package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// startPostgres runs a throwaway PostgreSQL container and applies the schema.
func startPostgres(t *testing.T) *pgx.Conn {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("echelon"),
		tcpostgres.WithUsername("echelon"),
		tcpostgres.WithPassword("echelon"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := pgx.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	for _, stmt := range schema {
		_, err := conn.Exec(context.Background(), stmt)
		require.NoError(t, err)
	}
	return conn
}

func TestSchemaRejectsDuplicateActiveAssignment(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	insert := `INSERT INTO echelon_role_assignments (id, person_id, role_type, tenant_id, level, is_active)
	           VALUES ($1, 'p1', 'employee', 't1', 4, $2)`

	_, err := conn.Exec(ctx, insert, "asgn_1", true)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, insert, "asgn_2", true)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "expected unique violation, got %v", err)

	// Inactive history rows never collide.
	_, err = conn.Exec(ctx, insert, "asgn_3", false)
	require.NoError(t, err)
}

func TestSchemaAllowsRecreatingDeletedCustomRole(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	insert := `INSERT INTO echelon_custom_roles (id, tenant_id, role_type, level) VALUES ($1, 't1', 'project_lead', 3)`
	_, err := conn.Exec(ctx, insert, "crole_1")
	require.NoError(t, err)

	_, err = conn.Exec(ctx, insert, "crole_2")
	assert.True(t, isUniqueViolation(err), "expected unique violation, got %v", err)

	_, err = conn.Exec(ctx, `UPDATE echelon_custom_roles SET deleted_at = NOW() WHERE id = 'crole_1'`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, insert, "crole_2")
	require.NoError(t, err)
}

func TestSchemaGrantConflictTarget(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	_, err := conn.Exec(ctx, `INSERT INTO echelon_permissions (id, name, resource, action) VALUES ('perm_1', 'doc:read', 'doc', 'read')`)
	require.NoError(t, err)

	insert := `INSERT INTO echelon_permission_grants (id, person_id, tenant_id, permission_name)
	           VALUES ($1, 'p1', 't1', 'doc:read')
	           ON CONFLICT (person_id, tenant_id, permission_name) WHERE is_active DO NOTHING`
	tag, err := conn.Exec(ctx, insert, "pgrant_1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tag.RowsAffected())

	tag, err = conn.Exec(ctx, insert, "pgrant_2")
	require.NoError(t, err)
	assert.EqualValues(t, 0, tag.RowsAffected())
}
