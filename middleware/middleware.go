// Package middleware provides HTTP authorization middleware for echelon.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/echelon"
)

// RequirePermission allows the request only when the principal holds perm
// in the scoped tenant, through a role or a direct grant.
func RequirePermission(eng *echelon.Engine, perm string) forge.Middleware {
	return RequireAllPermissions(eng, perm)
}

// RequireAnyPermission allows the request if the principal holds ANY of perms.
func RequireAnyPermission(eng *echelon.Engine, perms ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			sc, ok := resolveScope(ctx)
			if !ok {
				return denyResponse(ctx)
			}
			for _, p := range perms {
				held, err := eng.HasPermission(ctx.Context(), sc.PrincipalID, sc.TenantID, p)
				if err == nil && held {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAllPermissions allows the request only if the principal holds ALL
// of perms. Lookup errors deny.
func RequireAllPermissions(eng *echelon.Engine, perms ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			sc, ok := resolveScope(ctx)
			if !ok {
				return denyResponse(ctx)
			}
			for _, p := range perms {
				held, err := eng.HasPermission(ctx.Context(), sc.PrincipalID, sc.TenantID, p)
				if err != nil || !held {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// RequireRole allows the request when the principal's highest role is at
// roleType's level or above.
func RequireRole(eng *echelon.Engine, roleType string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			sc, ok := resolveScope(ctx)
			if !ok {
				return denyResponse(ctx)
			}
			v, err := eng.ResolveHierarchy(ctx.Context(), sc.TenantID)
			if err != nil || !v.Exists(roleType) {
				return denyResponse(ctx)
			}
			h, err := eng.GetUserRoleHierarchy(ctx.Context(), sc.PrincipalID, sc.TenantID)
			if err != nil || h.HighestRole == "" || h.HighestLevel > v.Level(roleType) {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// resolveScope extracts principal and tenant from the request context.
func resolveScope(ctx forge.Context) (echelon.Scope, bool) {
	sc := echelon.ScopeFromContext(ctx.Context())
	return sc, sc.PrincipalID != "" && sc.TenantID != ""
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(http.StatusForbidden)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
