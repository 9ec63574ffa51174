package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the echelon store (PostgreSQL).
var Migrations = migrate.NewGroup("echelon")

const customRolesDDL = `
CREATE TABLE IF NOT EXISTS echelon_custom_roles (
    id                TEXT PRIMARY KEY,
    tenant_id         TEXT NOT NULL,
    role_type         TEXT NOT NULL,
    display_name      TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    parent_role_type  TEXT NOT NULL DEFAULT '',
    level             INTEGER NOT NULL,
    permissions       JSONB NOT NULL DEFAULT '[]',
    created_by        TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at        TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_echelon_custom_roles_live
    ON echelon_custom_roles (tenant_id, role_type) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_echelon_custom_roles_parent
    ON echelon_custom_roles (tenant_id, parent_role_type);
`

// The partial unique index is what makes concurrent duplicate assignments fail.
const roleAssignmentsDDL = `
CREATE TABLE IF NOT EXISTS echelon_role_assignments (
    id              TEXT PRIMARY KEY,
    person_id       TEXT NOT NULL,
    role_type       TEXT NOT NULL,
    tenant_id       TEXT NOT NULL,
    company_id      TEXT NOT NULL DEFAULT '',
    assigned_by     TEXT NOT NULL DEFAULT '',
    assigned_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    is_primary      BOOLEAN NOT NULL DEFAULT FALSE,
    level           INTEGER NOT NULL,
    deactivated_at  TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_echelon_role_assignments_active
    ON echelon_role_assignments (person_id, role_type, tenant_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_echelon_role_assignments_person
    ON echelon_role_assignments (tenant_id, person_id);
CREATE INDEX IF NOT EXISTS idx_echelon_role_assignments_role
    ON echelon_role_assignments (tenant_id, role_type) WHERE is_active;
`

const permissionsDDL = `
CREATE TABLE IF NOT EXISTS echelon_permissions (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    resource     TEXT NOT NULL,
    action       TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS echelon_permission_grants (
    id               TEXT PRIMARY KEY,
    person_id        TEXT NOT NULL,
    tenant_id        TEXT NOT NULL,
    permission_name  TEXT NOT NULL REFERENCES echelon_permissions (name),
    granted_by       TEXT NOT NULL DEFAULT '',
    granted_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active        BOOLEAN NOT NULL DEFAULT TRUE,
    revoked_at       TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_echelon_permission_grants_active
    ON echelon_permission_grants (person_id, tenant_id, permission_name) WHERE is_active;
`

const auditEntriesDDL = `
CREATE TABLE IF NOT EXISTS echelon_audit_entries (
    id            TEXT PRIMARY KEY,
    tenant_id     TEXT NOT NULL,
    operation     TEXT NOT NULL,
    requester_id  TEXT NOT NULL DEFAULT '',
    subject_id    TEXT NOT NULL DEFAULT '',
    role_type     TEXT NOT NULL DEFAULT '',
    permissions   JSONB NOT NULL DEFAULT '[]',
    decision      TEXT NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_echelon_audit_entries_tenant
    ON echelon_audit_entries (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_echelon_audit_entries_decision
    ON echelon_audit_entries (tenant_id, decision);
`

// schema lists the Up statements in migration order.
var schema = []string{customRolesDDL, roleAssignmentsDDL, permissionsDDL, auditEntriesDDL}

func execSQL(stmt string) func(context.Context, migrate.Executor) error {
	return func(ctx context.Context, exec migrate.Executor) error {
		_, err := exec.Exec(ctx, stmt)
		return err
	}
}

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_custom_roles",
			Version: "20250301000001",
			Up:      execSQL(customRolesDDL),
			Down:    execSQL(`DROP TABLE IF EXISTS echelon_custom_roles`),
		},
		&migrate.Migration{
			Name:    "create_role_assignments",
			Version: "20250301000002",
			Up:      execSQL(roleAssignmentsDDL),
			Down:    execSQL(`DROP TABLE IF EXISTS echelon_role_assignments`),
		},
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20250301000003",
			Up:      execSQL(permissionsDDL),
			Down: execSQL(`
DROP TABLE IF EXISTS echelon_permission_grants;
DROP TABLE IF EXISTS echelon_permissions;
`),
		},
		&migrate.Migration{
			Name:    "create_audit_entries",
			Version: "20250301000004",
			Up:      execSQL(auditEntriesDDL),
			Down:    execSQL(`DROP TABLE IF EXISTS echelon_audit_entries`),
		},
	)
}
