// Package memory provides an in-memory implementation of the echelon
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/id"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
	"github.com/xraph/echelon/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a thread-safe in-memory store for all echelon entities. Every
// check-then-write sequence runs under the write lock, which gives the same
// uniqueness guarantees a database constraint would.
type Store struct {
	mu sync.RWMutex

	customRoles map[string]*role.CustomRole
	assignments map[string]*assignment.RoleAssignment
	grants      map[string]*permission.Grant
	permissions map[string]*permission.Permission // name -> row
	auditLog    []*audit.Entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		customRoles: make(map[string]*role.CustomRole),
		assignments: make(map[string]*assignment.RoleAssignment),
		grants:      make(map[string]*permission.Grant),
		permissions: make(map[string]*permission.Permission),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func now() time.Time { return time.Now().UTC() }

// ──────────────────────────────────────────────────
// Custom roles
// ──────────────────────────────────────────────────

func (s *Store) ListCustomRoles(_ context.Context, tenantID string) ([]*role.CustomRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*role.CustomRole
	for _, r := range s.customRoles {
		if r.TenantID == tenantID && !r.IsDeleted() {
			out = append(out, copyCustomRole(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleType < out[j].RoleType })
	return out, nil
}

func (s *Store) GetCustomRole(_ context.Context, tenantID, roleType string) (*role.CustomRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.findCustomRole(tenantID, roleType)
	if r == nil {
		return nil, fmt.Errorf("custom role %q: %w", roleType, role.ErrNotFound)
	}
	return copyCustomRole(r), nil
}

func (s *Store) UpsertCustomRole(_ context.Context, r *role.CustomRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := now()
	if existing := s.findCustomRole(r.TenantID, r.RoleType); existing != nil {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
		r.CreatedBy = existing.CreatedBy
	} else {
		if r.ID.IsNil() {
			r.ID = id.NewCustomRoleID()
		}
		r.CreatedAt = t
	}
	r.UpdatedAt = t
	r.DeletedAt = nil
	s.customRoles[r.ID.String()] = copyCustomRole(r)
	return nil
}

func (s *Store) UpdateRoleLevels(_ context.Context, tenantID string, updates []role.LevelUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := make([]*role.CustomRole, len(updates))
	for i, u := range updates {
		r := s.findCustomRole(tenantID, u.RoleType)
		if r == nil {
			return fmt.Errorf("custom role %q: %w", u.RoleType, role.ErrNotFound)
		}
		targets[i] = r
	}
	t := now()
	for i, u := range updates {
		targets[i].Level = u.Level
		if u.SetParent {
			targets[i].ParentRoleType = u.ParentRoleType
		}
		targets[i].UpdatedAt = t
	}
	return nil
}

func (s *Store) SoftDeleteCustomRole(_ context.Context, tenantID, roleType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findCustomRole(tenantID, roleType)
	if r == nil {
		return fmt.Errorf("custom role %q: %w", roleType, role.ErrNotFound)
	}
	t := now()
	r.DeletedAt = &t
	r.UpdatedAt = t
	return nil
}

// findCustomRole must be called with the lock held.
func (s *Store) findCustomRole(tenantID, roleType string) *role.CustomRole {
	for _, r := range s.customRoles {
		if r.TenantID == tenantID && r.RoleType == roleType && !r.IsDeleted() {
			return r
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Role assignments
// ──────────────────────────────────────────────────

func (s *Store) ListActiveRoleAssignments(_ context.Context, personID, tenantID string) ([]*assignment.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*assignment.RoleAssignment
	for _, a := range s.assignments {
		if a.IsActive && a.PersonID == personID && a.TenantID == tenantID {
			out = append(out, copyAssignment(a))
		}
	}
	sortAssignments(out)
	return out, nil
}

func (s *Store) CreateRoleAssignment(_ context.Context, a *assignment.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.IsActive &&
			existing.PersonID == a.PersonID &&
			existing.RoleType == a.RoleType &&
			existing.TenantID == a.TenantID {
			return fmt.Errorf("person %s role %s: %w", a.PersonID, a.RoleType, assignment.ErrDuplicateAssignment)
		}
	}
	if a.ID.IsNil() {
		a.ID = id.NewAssignmentID()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = now()
	}
	a.IsActive = true
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) GetRoleAssignment(_ context.Context, assID id.AssignmentID) (*assignment.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assID.String()]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", assID, assignment.ErrNotFound)
	}
	return copyAssignment(a), nil
}

func (s *Store) DeactivateRoleAssignment(_ context.Context, assID id.AssignmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assID.String()]
	if !ok || !a.IsActive {
		return fmt.Errorf("active assignment %s: %w", assID, assignment.ErrNotFound)
	}
	t := now()
	a.IsActive = false
	a.DeactivatedAt = &t
	return nil
}

func (s *Store) ListRoleAssignments(_ context.Context, filter *assignment.ListFilter) ([]*assignment.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*assignment.RoleAssignment
	for _, a := range s.assignments {
		if filter != nil {
			if filter.TenantID != "" && a.TenantID != filter.TenantID {
				continue
			}
			if filter.PersonID != "" && a.PersonID != filter.PersonID {
				continue
			}
			if filter.RoleType != "" && a.RoleType != filter.RoleType {
				continue
			}
			if filter.ActiveOnly && !a.IsActive {
				continue
			}
		}
		out = append(out, copyAssignment(a))
	}
	sortAssignments(out)
	if filter != nil {
		out = applyPagination(out, filter.Limit, filter.Offset)
	}
	return out, nil
}

func (s *Store) CountActiveRoleAssignments(_ context.Context, tenantID, roleType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.assignments {
		if a.IsActive && a.TenantID == tenantID && a.RoleType == roleType {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Permissions and grants
// ──────────────────────────────────────────────────

func (s *Store) ListActivePermissionGrants(_ context.Context, personID, tenantID string) ([]*permission.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*permission.Grant
	for _, g := range s.grants {
		if g.IsActive && g.PersonID == personID && g.TenantID == tenantID {
			out = append(out, copyGrant(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PermissionName < out[j].PermissionName })
	return out, nil
}

func (s *Store) CreatePermissionGrant(_ context.Context, g *permission.Grant) (*permission.GrantOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.grantLocked(g)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GrantPermissions(_ context.Context, grants []*permission.Grant) ([]permission.GrantOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grants {
		if _, _, err := permission.Parse(g.PermissionName); err != nil {
			return nil, err
		}
	}
	out := make([]permission.GrantOutcome, 0, len(grants))
	for _, g := range grants {
		o, err := s.grantLocked(g)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// grantLocked must be called with the write lock held.
func (s *Store) grantLocked(g *permission.Grant) (permission.GrantOutcome, error) {
	if _, ok := s.permissions[g.PermissionName]; !ok {
		p, err := permission.New(g.PermissionName)
		if err != nil {
			return permission.GrantOutcome{}, err
		}
		p.CreatedAt = now()
		s.permissions[p.Name] = p
	}
	for _, existing := range s.grants {
		if existing.IsActive &&
			existing.PersonID == g.PersonID &&
			existing.TenantID == g.TenantID &&
			existing.PermissionName == g.PermissionName {
			return permission.GrantOutcome{Grant: copyGrant(existing)}, nil
		}
	}
	if g.ID.IsNil() {
		g.ID = id.NewGrantID()
	}
	if g.GrantedAt.IsZero() {
		g.GrantedAt = now()
	}
	g.IsActive = true
	s.grants[g.ID.String()] = copyGrant(g)
	return permission.GrantOutcome{Grant: copyGrant(g), Created: true}, nil
}

func (s *Store) RevokePermissionGrant(_ context.Context, personID, tenantID, permissionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.IsActive && g.PersonID == personID && g.TenantID == tenantID && g.PermissionName == permissionName {
			t := now()
			g.IsActive = false
			g.RevokedAt = &t
			return nil
		}
	}
	return fmt.Errorf("grant %q for %s: %w", permissionName, personID, permission.ErrNotFound)
}

func (s *Store) ListPermissions(_ context.Context) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ──────────────────────────────────────────────────
// Audit
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID.IsNil() {
		e.ID = id.NewAuditID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	s.auditLog = append(s.auditLog, copyAuditEntry(e))
	return nil
}

func (s *Store) ListAuditEntries(_ context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.Entry
	for i := len(s.auditLog) - 1; i >= 0; i-- {
		e := s.auditLog[i]
		if filter != nil {
			if filter.TenantID != "" && e.TenantID != filter.TenantID {
				continue
			}
			if filter.Operation != "" && e.Operation != filter.Operation {
				continue
			}
			if filter.RequesterID != "" && e.RequesterID != filter.RequesterID {
				continue
			}
			if filter.SubjectID != "" && e.SubjectID != filter.SubjectID {
				continue
			}
			if filter.Decision != "" && e.Decision != filter.Decision {
				continue
			}
			if filter.After != nil && !e.CreatedAt.After(*filter.After) {
				continue
			}
			if filter.Before != nil && !e.CreatedAt.Before(*filter.Before) {
				continue
			}
		}
		out = append(out, copyAuditEntry(e))
	}
	if filter != nil {
		out = applyPagination(out, filter.Limit, filter.Offset)
	}
	return out, nil
}

func (s *Store) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.auditLog[:0]
	var purged int64
	for _, e := range s.auditLog {
		if e.CreatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.auditLog = kept
	return purged, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyCustomRole(r *role.CustomRole) *role.CustomRole { return r.Clone() }

func copyAssignment(a *assignment.RoleAssignment) *assignment.RoleAssignment {
	c := *a
	return &c
}

func copyGrant(g *permission.Grant) *permission.Grant {
	c := *g
	return &c
}

func copyAuditEntry(e *audit.Entry) *audit.Entry {
	c := *e
	c.Permissions = slices.Clone(e.Permissions)
	return &c
}

func sortAssignments(as []*assignment.RoleAssignment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].AssignedAt.Equal(as[j].AssignedAt) {
			return as[i].AssignedAt.Before(as[j].AssignedAt)
		}
		return as[i].ID.String() < as[j].ID.String()
	})
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
