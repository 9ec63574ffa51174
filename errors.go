package echelon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/overlay"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
)

var (
	// ErrRoleNotFound is returned when a role type is not part of the
	// tenant's resolved hierarchy.
	ErrRoleNotFound = errors.New("echelon: role not found")

	// ErrPersonNotFound is returned when a configured Directory does not
	// know the target person.
	ErrPersonNotFound = errors.New("echelon: person not found")

	// ErrAuthorizationDenied is returned when the requester lacks the rank
	// or the specific permission an operation needs.
	ErrAuthorizationDenied = errors.New("echelon: authorization denied")

	// ErrInvalidPermissionName is returned when a requested permission is
	// unknown to the hierarchy.
	ErrInvalidPermissionName = errors.New("echelon: invalid permission name")

	// ErrPersistenceFailure marks errors caused by the store rather than by
	// the request.
	ErrPersistenceFailure = errors.New("echelon: persistence failure")

	// ErrSystemRoleImmutable is returned when an operation tries to create
	// or move a built-in role.
	ErrSystemRoleImmutable = errors.New("echelon: system role cannot be modified")

	// ErrRoleInUse is returned when a custom role still has active holders
	// or child roles.
	ErrRoleInUse = errors.New("echelon: role is in use")

	// ErrInvalidRequest is returned when a request fails input validation.
	ErrInvalidRequest = errors.New("echelon: invalid request")

	// ErrDuplicateAssignment is returned when the person already holds the
	// role in the tenant.
	ErrDuplicateAssignment = assignment.ErrDuplicateAssignment

	// ErrAssignmentNotFound is returned when an assignment does not exist.
	ErrAssignmentNotFound = assignment.ErrNotFound

	// ErrGrantNotFound is returned when no active grant matches.
	ErrGrantNotFound = permission.ErrNotFound

	// ErrCustomRoleNotFound is returned by stores for a missing custom role.
	ErrCustomRoleNotFound = role.ErrNotFound

	// ErrCycleDetected is returned when a hierarchy walk or update would
	// traverse or create a cycle.
	ErrCycleDetected = catalog.ErrCycleDetected

	// ErrRetrievalFailure is returned when a tenant's custom roles cannot
	// be loaded. It is always accompanied by ErrPersistenceFailure.
	ErrRetrievalFailure = overlay.ErrRetrievalFailure
)

// DeniedError reports a refused operation. Rejected holds every known
// permission the requester may not grant and Invalid every unknown name, so
// callers see all problems at once.
type DeniedError struct {
	Operation string
	Reason    string
	Rejected  []string
	Invalid   []string
}

func (e *DeniedError) Error() string {
	var b strings.Builder
	b.WriteString("echelon: ")
	b.WriteString(e.Operation)
	b.WriteString(": denied")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Rejected) > 0 {
		fmt.Fprintf(&b, "; rejected [%s]", strings.Join(e.Rejected, ", "))
	}
	if len(e.Invalid) > 0 {
		fmt.Fprintf(&b, "; invalid [%s]", strings.Join(e.Invalid, ", "))
	}
	return b.String()
}

// Unwrap matches ErrAuthorizationDenied unless the only problem is unknown
// names, and ErrInvalidPermissionName whenever unknown names are present.
func (e *DeniedError) Unwrap() []error {
	var errs []error
	if len(e.Rejected) > 0 || len(e.Invalid) == 0 {
		errs = append(errs, ErrAuthorizationDenied)
	}
	if len(e.Invalid) > 0 {
		errs = append(errs, ErrInvalidPermissionName)
	}
	return errs
}

func denied(op, format string, args ...any) error {
	return &DeniedError{Operation: op, Reason: fmt.Sprintf(format, args...)}
}

// persistenceError wraps a store error. Context errors pass through so
// callers can tell a timeout from an outage.
func persistenceError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("echelon: %s: %w", op, err)
	}
	return fmt.Errorf("echelon: %s: %w: %w", op, ErrPersistenceFailure, err)
}

// IsPersistenceFailure reports whether err was caused by the store.
func IsPersistenceFailure(err error) bool { return errors.Is(err, ErrPersistenceFailure) }
