package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/echelon"
)

// mapError maps domain errors to Forge HTTP errors. Persistence failures
// pass through unchanged and surface as server errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, echelon.ErrAuthorizationDenied) {
		return forge.Forbidden(err.Error())
	}
	if errors.Is(err, echelon.ErrInvalidRequest) ||
		errors.Is(err, echelon.ErrInvalidPermissionName) ||
		errors.Is(err, echelon.ErrSystemRoleImmutable) ||
		errors.Is(err, echelon.ErrDuplicateAssignment) ||
		errors.Is(err, echelon.ErrCycleDetected) ||
		errors.Is(err, echelon.ErrRoleInUse) {
		return forge.BadRequest(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, echelon.ErrRoleNotFound) ||
		errors.Is(err, echelon.ErrPersonNotFound) ||
		errors.Is(err, echelon.ErrAssignmentNotFound) ||
		errors.Is(err, echelon.ErrGrantNotFound) ||
		errors.Is(err, echelon.ErrCustomRoleNotFound)
}

// scope returns the request scope, falling back to an explicit tenant.
// A request without an authenticated principal is refused.
func scope(ctx forge.Context, tenantID string) (echelon.Scope, error) {
	sc := echelon.ScopeFromContext(ctx.Context())
	if tenantID != "" {
		sc.TenantID = tenantID
	}
	if sc.PrincipalID == "" {
		return sc, forge.Forbidden("no authenticated principal")
	}
	if sc.TenantID == "" {
		return sc, forge.BadRequest("tenant_id is required")
	}
	return sc, nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
