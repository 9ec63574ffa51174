package echelon

import (
	"context"

	"github.com/xraph/forge"
)

// Scope identifies who acts and in which tenant.
type Scope struct {
	AppID       string
	TenantID    string
	PrincipalID string
}

// ScopeFromContext extracts the scope from forge.Scope or a standalone
// context. The principal falls back to the forge user ID.
func ScopeFromContext(ctx context.Context) Scope {
	sc := Scope{
		AppID:       appIDFromContext(ctx),
		TenantID:    tenantIDFromContext(ctx),
		PrincipalID: principalIDFromContext(ctx),
	}
	if s, ok := forge.ScopeFrom(ctx); ok {
		sc.AppID = s.AppID()
		sc.TenantID = s.OrgID()
	}
	if sc.PrincipalID == "" {
		sc.PrincipalID = forge.UserIDFromContext(ctx)
	}
	return sc
}
