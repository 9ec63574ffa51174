// Package mongo provides a MongoDB implementation of the echelon composite
// store using grove ORM. Atomic multi-document writes require a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/id"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
	"github.com/xraph/echelon/store"
)

// Collection name constants.
const (
	colCustomRoles = "echelon_custom_roles"
	colAssignments = "echelon_role_assignments"
	colPermissions = "echelon_permissions"
	colGrants      = "echelon_permission_grants"
	colAuditLog    = "echelon_audit_entries"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite echelon store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all echelon collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("echelon/mongo: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all echelon collections.
// Partial unique indexes enforce "one live row" constraints.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colCustomRoles: {
			{
				Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "role_type", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"deleted": false}),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "parent_role_type", Value: 1}}},
		},
		colAssignments: {
			{
				Keys: bson.D{
					{Key: "person_id", Value: 1},
					{Key: "role_type", Value: 1},
					{Key: "tenant_id", Value: 1},
				},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "person_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "role_type", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		colPermissions: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colGrants: {
			{
				Keys: bson.D{
					{Key: "person_id", Value: 1},
					{Key: "tenant_id", Value: 1},
					{Key: "permission_name", Value: 1},
				},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
		},
		colAuditLog: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "decision", Value: 1}}},
		},
	}
}

// withTransaction runs fn inside a client session transaction. Callers must
// pass the callback's context to every collection operation.
func (s *Store) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.mdb.Collection(colCustomRoles).Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("echelon/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// ──────────────────────────────────────────────────
// Custom role operations
// ──────────────────────────────────────────────────

func (s *Store) ListCustomRoles(ctx context.Context, tenantID string) ([]*role.CustomRole, error) {
	var models []customRoleModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "deleted": false}).
		Sort(bson.D{{Key: "role_type", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("echelon/mongo: list custom roles: %w", err)
	}
	result := make([]*role.CustomRole, len(models))
	for i := range models {
		result[i] = customRoleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetCustomRole(ctx context.Context, tenantID, roleType string) (*role.CustomRole, error) {
	var m customRoleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"tenant_id": tenantID, "role_type": roleType, "deleted": false}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("custom role %q: %w", roleType, role.ErrNotFound)
		}
		return nil, fmt.Errorf("echelon/mongo: get custom role: %w", err)
	}
	return customRoleFromModel(&m), nil
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
		m := customRoleToModel(r)
		res, err := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.ID}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("echelon/mongo: update custom role: %w", err)
		}
		if res.MatchedCount() == 0 {
			return fmt.Errorf("custom role %q: %w", r.RoleType, role.ErrNotFound)
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
	if _, err := s.mdb.NewInsert(customRoleToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("echelon/mongo: create custom role: %w", err)
	}
	return nil
}

func (s *Store) UpdateRoleLevels(ctx context.Context, tenantID string, updates []role.LevelUpdate) error {
	col := s.mdb.Collection(colCustomRoles)
	t := now()
	return s.withTransaction(ctx, func(ctx context.Context) error {
		for _, u := range updates {
			set := bson.M{"level": u.Level, "updated_at": t}
			if u.SetParent {
				set["parent_role_type"] = u.ParentRoleType
			}
			res, err := col.UpdateOne(ctx,
				bson.M{"tenant_id": tenantID, "role_type": u.RoleType, "deleted": false},
				bson.M{"$set": set},
			)
			if err != nil {
				return fmt.Errorf("echelon/mongo: update role level: %w", err)
			}
			if res.MatchedCount == 0 {
				return fmt.Errorf("custom role %q: %w", u.RoleType, role.ErrNotFound)
			}
		}
		return nil
	})
}

func (s *Store) SoftDeleteCustomRole(ctx context.Context, tenantID, roleType string) error {
	t := now()
	res, err := s.mdb.Collection(colCustomRoles).UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "role_type": roleType, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": t, "updated_at": t}},
	)
	if err != nil {
		return fmt.Errorf("echelon/mongo: delete custom role: %w", err)
	}
	if res.MatchedCount == 0 {
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
	if _, err := s.mdb.NewInsert(assignmentToModel(a)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("person %s role %s: %w", a.PersonID, a.RoleType, assignment.ErrDuplicateAssignment)
		}
		return fmt.Errorf("echelon/mongo: create role assignment: %w", err)
	}
	return nil
}

func (s *Store) GetRoleAssignment(ctx context.Context, assID id.AssignmentID) (*assignment.RoleAssignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": assID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("assignment %s: %w", assID, assignment.ErrNotFound)
		}
		return nil, fmt.Errorf("echelon/mongo: get role assignment: %w", err)
	}
	return assignmentFromModel(&m), nil
}

func (s *Store) DeactivateRoleAssignment(ctx context.Context, assID id.AssignmentID) error {
	res, err := s.mdb.Collection(colAssignments).UpdateOne(ctx,
		bson.M{"_id": assID.String(), "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "deactivated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("echelon/mongo: deactivate role assignment: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("active assignment %s: %w", assID, assignment.ErrNotFound)
	}
	return nil
}

func assignmentFilter(filter *assignment.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.PersonID != "" {
		f["person_id"] = filter.PersonID
	}
	if filter.RoleType != "" {
		f["role_type"] = filter.RoleType
	}
	if filter.ActiveOnly {
		f["is_active"] = true
	}
	return f
}

func (s *Store) ListRoleAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.RoleAssignment, error) {
	var models []assignmentModel
	q := s.mdb.NewFind(&models).
		Filter(assignmentFilter(filter)).
		Sort(bson.D{{Key: "assigned_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("echelon/mongo: list role assignments: %w", err)
	}
	result := make([]*assignment.RoleAssignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountActiveRoleAssignments(ctx context.Context, tenantID, roleType string) (int64, error) {
	count, err := s.mdb.NewFind((*assignmentModel)(nil)).
		Filter(bson.M{"tenant_id": tenantID, "role_type": roleType, "is_active": true}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("echelon/mongo: count role assignments: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Permission and grant operations
// ──────────────────────────────────────────────────

func (s *Store) ListActivePermissionGrants(ctx context.Context, personID, tenantID string) ([]*permission.Grant, error) {
	var models []grantModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"person_id": personID, "tenant_id": tenantID, "is_active": true}).
		Sort(bson.D{{Key: "permission_name", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("echelon/mongo: list permission grants: %w", err)
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

	permCol := s.mdb.Collection(colPermissions)
	grantCol := s.mdb.Collection(colGrants)
	t := now()
	var out []permission.GrantOutcome
	err := s.withTransaction(ctx, func(ctx context.Context) error {
		out = make([]permission.GrantOutcome, 0, len(grants))
		for i, g := range grants {
			p := perms[i]
			_, err := permCol.UpdateOne(ctx,
				bson.M{"name": p.Name},
				bson.M{"$setOnInsert": bson.M{
					"_id":        p.ID.String(),
					"resource":   p.Resource,
					"action":     p.Action,
					"created_at": t,
				}},
				options.UpdateOne().SetUpsert(true),
			)
			if err != nil {
				return fmt.Errorf("echelon/mongo: ensure permission: %w", err)
			}

			var existing grantModel
			err = grantCol.FindOne(ctx, bson.M{
				"person_id":       g.PersonID,
				"tenant_id":       g.TenantID,
				"permission_name": g.PermissionName,
				"is_active":       true,
			}).Decode(&existing)
			switch {
			case err == nil:
				out = append(out, permission.GrantOutcome{Grant: grantFromModel(&existing)})
				continue
			case !isNoDocuments(err):
				return fmt.Errorf("echelon/mongo: load existing grant: %w", err)
			}

			if g.ID.IsNil() {
				g.ID = id.NewGrantID()
			}
			if g.GrantedAt.IsZero() {
				g.GrantedAt = t
			}
			g.IsActive = true
			if _, err := grantCol.InsertOne(ctx, grantToModel(g)); err != nil {
				return fmt.Errorf("echelon/mongo: create permission grant: %w", err)
			}
			c := *g
			out = append(out, permission.GrantOutcome{Grant: &c, Created: true})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) RevokePermissionGrant(ctx context.Context, personID, tenantID, permissionName string) error {
	res, err := s.mdb.Collection(colGrants).UpdateOne(ctx,
		bson.M{"person_id": personID, "tenant_id": tenantID, "permission_name": permissionName, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "revoked_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("echelon/mongo: revoke permission grant: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("grant %q for %s: %w", permissionName, personID, permission.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]*permission.Permission, error) {
	var models []permissionModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "name", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("echelon/mongo: list permissions: %w", err)
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
	if _, err := s.mdb.NewInsert(auditEntryToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("echelon/mongo: create audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	var models []auditEntryModel
	f := bson.M{}
	if filter != nil {
		if filter.TenantID != "" {
			f["tenant_id"] = filter.TenantID
		}
		if filter.Operation != "" {
			f["operation"] = filter.Operation
		}
		if filter.RequesterID != "" {
			f["requester_id"] = filter.RequesterID
		}
		if filter.SubjectID != "" {
			f["subject_id"] = filter.SubjectID
		}
		if filter.Decision != "" {
			f["decision"] = string(filter.Decision)
		}
		window := bson.M{}
		if filter.After != nil {
			window["$gt"] = *filter.After
		}
		if filter.Before != nil {
			window["$lt"] = *filter.Before
		}
		if len(window) > 0 {
			f["created_at"] = window
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("echelon/mongo: list audit entries: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		result[i] = auditEntryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*auditEntryModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("echelon/mongo: purge audit entries: %w", err)
	}
	return res.DeletedCount(), nil
}
