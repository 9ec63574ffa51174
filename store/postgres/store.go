// Package postgres provides a PostgreSQL implementation of the echelon
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/id"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
	"github.com/xraph/echelon/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite echelon store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("echelon: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("echelon: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() time.Time { return time.Now().UTC() }

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ──────────────────────────────────────────────────
// Custom role operations
// ──────────────────────────────────────────────────

func (s *Store) ListCustomRoles(ctx context.Context, tenantID string) ([]*role.CustomRole, error) {
	var models []customRoleModel
	err := s.pgdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("deleted_at IS NULL").
		OrderExpr("role_type ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("echelon: list custom roles: %w", err)
	}
	result := make([]*role.CustomRole, len(models))
	for i := range models {
		result[i] = customRoleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetCustomRole(ctx context.Context, tenantID, roleType string) (*role.CustomRole, error) {
	m := new(customRoleModel)
	err := s.pgdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("role_type = ?", roleType).
		Where("deleted_at IS NULL").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("custom role %q: %w", roleType, role.ErrNotFound)
		}
		return nil, fmt.Errorf("echelon: get custom role: %w", err)
	}
	return customRoleFromModel(m), nil
}

func (s *Store) UpsertCustomRole(ctx context.Context, r *role.CustomRole) error {
	t := now()
	existing, err := s.GetCustomRole(ctx, r.TenantID, r.RoleType)
	switch {
	case err == nil:
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
		r.CreatedBy = existing.CreatedBy
		r.UpdatedAt = t
		r.DeletedAt = nil
		if _, err := s.pgdb.NewUpdate(customRoleToModel(r)).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("echelon: update custom role: %w", err)
		}
		return nil
	case !errors.Is(err, role.ErrNotFound):
		return err
	}

	if r.ID.IsNil() {
		r.ID = id.NewCustomRoleID()
	}
	r.CreatedAt = t
	r.UpdatedAt = t
	r.DeletedAt = nil
	if _, err := s.pgdb.NewInsert(customRoleToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("echelon: create custom role: %w", err)
	}
	return nil
}

func (s *Store) UpdateRoleLevels(ctx context.Context, tenantID string, updates []role.LevelUpdate) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("echelon: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	t := now()
	for _, u := range updates {
		q := tx.NewUpdate((*customRoleModel)(nil)).
			Set("level = ?", u.Level).
			Set("updated_at = ?", t)
		if u.SetParent {
			q = q.Set("parent_role_type = ?", u.ParentRoleType)
		}
		res, err := q.
			Where("tenant_id = ?", tenantID).
			Where("role_type = ?", u.RoleType).
			Where("deleted_at IS NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("echelon: update role level: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("echelon: update role level rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("custom role %q: %w", u.RoleType, role.ErrNotFound)
		}
	}
	return tx.Commit()
}

func (s *Store) SoftDeleteCustomRole(ctx context.Context, tenantID, roleType string) error {
	t := now()
	res, err := s.pgdb.NewUpdate((*customRoleModel)(nil)).
		Set("deleted_at = ?", t).
		Set("updated_at = ?", t).
		Where("tenant_id = ?", tenantID).
		Where("role_type = ?", roleType).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("echelon: delete custom role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("echelon: delete custom role rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("custom role %q: %w", roleType, role.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Role assignment operations
// ──────────────────────────────────────────────────

func (s *Store) ListActiveRoleAssignments(ctx context.Context, personID, tenantID string) ([]*assignment.RoleAssignment, error) {
	return s.ListRoleAssignments(ctx, &assignment.ListFilter{
		TenantID:   tenantID,
		PersonID:   personID,
		ActiveOnly: true,
	})
}

func (s *Store) CreateRoleAssignment(ctx context.Context, a *assignment.RoleAssignment) error {
	if a.ID.IsNil() {
		a.ID = id.NewAssignmentID()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = now()
	}
	a.IsActive = true
	_, err := s.pgdb.NewInsert(assignmentToModel(a)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("person %s role %s: %w", a.PersonID, a.RoleType, assignment.ErrDuplicateAssignment)
		}
		return fmt.Errorf("echelon: create role assignment: %w", err)
	}
	return nil
}

func (s *Store) GetRoleAssignment(ctx context.Context, assID id.AssignmentID) (*assignment.RoleAssignment, error) {
	m := new(assignmentModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", assID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("assignment %s: %w", assID, assignment.ErrNotFound)
		}
		return nil, fmt.Errorf("echelon: get role assignment: %w", err)
	}
	return assignmentFromModel(m), nil
}

func (s *Store) DeactivateRoleAssignment(ctx context.Context, assID id.AssignmentID) error {
	res, err := s.pgdb.NewUpdate((*assignmentModel)(nil)).
		Set("is_active = ?", false).
		Set("deactivated_at = ?", now()).
		Where("id = ?", assID.String()).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("echelon: deactivate role assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("echelon: deactivate role assignment rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("active assignment %s: %w", assID, assignment.ErrNotFound)
	}
	return nil
}

func (s *Store) ListRoleAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.RoleAssignment, error) {
	var models []assignmentModel
	q := s.pgdb.NewSelect(&models).OrderExpr("assigned_at ASC, id ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.PersonID != "" {
			q = q.Where("person_id = ?", filter.PersonID)
		}
		if filter.RoleType != "" {
			q = q.Where("role_type = ?", filter.RoleType)
		}
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("echelon: list role assignments: %w", err)
	}
	result := make([]*assignment.RoleAssignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountActiveRoleAssignments(ctx context.Context, tenantID, roleType string) (int64, error) {
	count, err := s.pgdb.NewSelect((*assignmentModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("role_type = ?", roleType).
		Where("is_active = ?", true).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("echelon: count role assignments: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Permission and grant operations
// ──────────────────────────────────────────────────

func (s *Store) ListActivePermissionGrants(ctx context.Context, personID, tenantID string) ([]*permission.Grant, error) {
	var models []grantModel
	err := s.pgdb.NewSelect(&models).
		Where("person_id = ?", personID).
		Where("tenant_id = ?", tenantID).
		Where("is_active = ?", true).
		OrderExpr("permission_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("echelon: list permission grants: %w", err)
	}
	result := make([]*permission.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CreatePermissionGrant(ctx context.Context, g *permission.Grant) (*permission.GrantOutcome, error) {
	out, err := s.GrantPermissions(ctx, []*permission.Grant{g})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) GrantPermissions(ctx context.Context, grants []*permission.Grant) ([]permission.GrantOutcome, error) {
	perms := make([]*permission.Permission, len(grants))
	for i, g := range grants {
		p, err := permission.New(g.PermissionName)
		if err != nil {
			return nil, err
		}
		perms[i] = p
	}

	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("echelon: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	t := now()
	out := make([]permission.GrantOutcome, 0, len(grants))
	for i, g := range grants {
		perms[i].CreatedAt = t
		_, err := tx.NewInsert(permissionToModel(perms[i])).
			OnConflict("(name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("echelon: ensure permission: %w", err)
		}

		if g.ID.IsNil() {
			g.ID = id.NewGrantID()
		}
		if g.GrantedAt.IsZero() {
			g.GrantedAt = t
		}
		g.IsActive = true
		res, err := tx.NewInsert(grantToModel(g)).
			OnConflict("(person_id, tenant_id, permission_name) WHERE is_active DO NOTHING").
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("echelon: create permission grant: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("echelon: create permission grant rows: %w", err)
		}
		if n > 0 {
			c := *g
			out = append(out, permission.GrantOutcome{Grant: &c, Created: true})
			continue
		}

		existing := new(grantModel)
		err = tx.NewSelect(existing).
			Where("person_id = ?", g.PersonID).
			Where("tenant_id = ?", g.TenantID).
			Where("permission_name = ?", g.PermissionName).
			Where("is_active = ?", true).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("echelon: load existing grant: %w", err)
		}
		out = append(out, permission.GrantOutcome{Grant: grantFromModel(existing)})
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("echelon: commit grants: %w", err)
	}
	return out, nil
}

func (s *Store) RevokePermissionGrant(ctx context.Context, personID, tenantID, permissionName string) error {
	res, err := s.pgdb.NewUpdate((*grantModel)(nil)).
		Set("is_active = ?", false).
		Set("revoked_at = ?", now()).
		Where("person_id = ?", personID).
		Where("tenant_id = ?", tenantID).
		Where("permission_name = ?", permissionName).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("echelon: revoke permission grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("echelon: revoke permission grant rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("grant %q for %s: %w", permissionName, personID, permission.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]*permission.Permission, error) {
	var models []permissionModel
	if err := s.pgdb.NewSelect(&models).OrderExpr("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("echelon: list permissions: %w", err)
	}
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(ctx context.Context, e *audit.Entry) error {
	if e.ID.IsNil() {
		e.ID = id.NewAuditID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	if _, err := s.pgdb.NewInsert(auditEntryToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("echelon: create audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	var models []auditEntryModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Operation != "" {
			q = q.Where("operation = ?", filter.Operation)
		}
		if filter.RequesterID != "" {
			q = q.Where("requester_id = ?", filter.RequesterID)
		}
		if filter.SubjectID != "" {
			q = q.Where("subject_id = ?", filter.SubjectID)
		}
		if filter.Decision != "" {
			q = q.Where("decision = ?", string(filter.Decision))
		}
		if filter.After != nil {
			q = q.Where("created_at > ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at < ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("echelon: list audit entries: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		result[i] = auditEntryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*auditEntryModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("echelon: purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("echelon: purge audit entries rows: %w", err)
	}
	return n, nil
}
