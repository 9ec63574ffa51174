package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the echelon store (SQLite).
var Migrations = migrate.NewGroup("echelon")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_custom_roles",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS echelon_custom_roles (
    id                TEXT PRIMARY KEY,
    tenant_id         TEXT NOT NULL,
    role_type         TEXT NOT NULL,
    display_name      TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    parent_role_type  TEXT NOT NULL DEFAULT '',
    level             INTEGER NOT NULL,
    permissions       TEXT NOT NULL DEFAULT '[]',
    created_by        TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now')),
    deleted_at        TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_echelon_custom_roles_live
    ON echelon_custom_roles (tenant_id, role_type) WHERE deleted_at IS NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS echelon_custom_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_role_assignments",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS echelon_role_assignments (
    id              TEXT PRIMARY KEY,
    person_id       TEXT NOT NULL,
    role_type       TEXT NOT NULL,
    tenant_id       TEXT NOT NULL,
    company_id      TEXT NOT NULL DEFAULT '',
    assigned_by     TEXT NOT NULL DEFAULT '',
    assigned_at     TEXT NOT NULL DEFAULT (datetime('now')),
    is_active       INTEGER NOT NULL DEFAULT 1,
    is_primary      INTEGER NOT NULL DEFAULT 0,
    level           INTEGER NOT NULL,
    deactivated_at  TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_echelon_role_assignments_active
    ON echelon_role_assignments (person_id, role_type, tenant_id) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_echelon_role_assignments_person
    ON echelon_role_assignments (tenant_id, person_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS echelon_role_assignments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS echelon_permissions (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    resource     TEXT NOT NULL,
    action       TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS echelon_permission_grants (
    id               TEXT PRIMARY KEY,
    person_id        TEXT NOT NULL,
    tenant_id        TEXT NOT NULL,
    permission_name  TEXT NOT NULL REFERENCES echelon_permissions (name),
    granted_by       TEXT NOT NULL DEFAULT '',
    granted_at       TEXT NOT NULL DEFAULT (datetime('now')),
    is_active        INTEGER NOT NULL DEFAULT 1,
    revoked_at       TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_echelon_permission_grants_active
    ON echelon_permission_grants (person_id, tenant_id, permission_name) WHERE is_active = 1;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS echelon_permission_grants;
DROP TABLE IF EXISTS echelon_permissions;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit_entries",
			Version: "20250301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS echelon_audit_entries (
    id            TEXT PRIMARY KEY,
    tenant_id     TEXT NOT NULL,
    operation     TEXT NOT NULL,
    requester_id  TEXT NOT NULL DEFAULT '',
    subject_id    TEXT NOT NULL DEFAULT '',
    role_type     TEXT NOT NULL DEFAULT '',
    permissions   TEXT NOT NULL DEFAULT '[]',
    decision      TEXT NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_echelon_audit_entries_tenant
    ON echelon_audit_entries (tenant_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS echelon_audit_entries`)
				return err
			},
		},
	)
}
