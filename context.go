package echelon

import "context"

type contextKey int

const (
	ctxKeyAppID contextKey = iota
	ctxKeyTenantID
	ctxKeyPrincipalID
)

// WithTenant returns a context with the given app and tenant IDs.
// Use this for standalone mode (without Forge).
func WithTenant(ctx context.Context, appID, tenantID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyAppID, appID)
	ctx = context.WithValue(ctx, ctxKeyTenantID, tenantID)
	return ctx
}

// WithPrincipal returns a context carrying the acting person's ID.
func WithPrincipal(ctx context.Context, personID string) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipalID, personID)
}

func appIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyAppID).(string)
	if !ok {
		return ""
	}
	return v
}

func tenantIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyTenantID).(string)
	if !ok {
		return ""
	}
	return v
}

func principalIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyPrincipalID).(string)
	if !ok {
		return ""
	}
	return v
}
