// Package overlay resolves the role hierarchy seen by one tenant: the
// immutable base catalog merged with that tenant's custom roles.
//
// Loads are collapsed per tenant, so a burst of requests for a cold tenant
// costs one store round trip. Only the raw custom-role list is cached,
// never a derived decision.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/role"
)

// ErrRetrievalFailure is returned when custom roles cannot be loaded. The
// resolver never falls back to the base catalog in that case.
var ErrRetrievalFailure = errors.New("overlay: custom role retrieval failed")

// Source loads the active custom roles of a tenant. role.Store satisfies it.
type Source interface {
	ListCustomRoles(ctx context.Context, tenantID string) ([]*role.CustomRole, error)
}

// Cache stores raw custom-role lists per tenant. Every tenant carries a
// version that Invalidate advances; a list loaded under an older version is
// never stored. A cache shared between processes must keep the version in
// the shared backend.
type Cache interface {
	// Get returns the cached list for a tenant, if present.
	Get(ctx context.Context, tenantID string) ([]*role.CustomRole, bool)

	// Version returns the current version of a tenant. ok is false when it
	// cannot be read, in which case nothing loaded now may be cached.
	Version(ctx context.Context, tenantID string) (version uint64, ok bool)

	// Set stores the list for a tenant if its version still equals version.
	Set(ctx context.Context, tenantID string, version uint64, roles []*role.CustomRole)

	// Invalidate advances the tenant version and drops the cached list.
	Invalidate(ctx context.Context, tenantID string)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache sets the custom-role cache. Without one every Resolve hits the
// source.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the resolver logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithLoadTimeout bounds a shared load. Shared loads are detached from the
// caller's cancellation, so this is their only deadline.
func WithLoadTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.loadTimeout = d }
}

// Resolver produces per-tenant hierarchy views.
type Resolver struct {
	base        *catalog.Catalog
	src         Source
	cache       Cache
	logger      *slog.Logger
	loadTimeout time.Duration

	group singleflight.Group
}

// New creates a resolver over base and src.
func New(base *catalog.Catalog, src Source, opts ...Option) *Resolver {
	r := &Resolver{
		base:        base,
		src:         src,
		logger:      slog.Default(),
		loadTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Base returns the tenant-independent catalog.
func (r *Resolver) Base() *catalog.Catalog { return r.base }

// Resolve returns the hierarchy for tenantID. An empty tenant resolves to
// the base catalog.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*catalog.Catalog, error) {
	if tenantID == "" {
		return r.base, nil
	}
	roles, err := r.customRoles(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	view, skipped := catalog.Merge(r.base, tenantID, role.Definitions(roles))
	if len(skipped) > 0 {
		r.logger.Warn("overlay: custom roles ignored",
			"tenant_id", tenantID,
			"role_types", skipped,
		)
	}
	return view, nil
}

// Invalidate drops cached state for tenantID. Loads already in flight, in
// this process or any other sharing the cache, will not repopulate it.
func (r *Resolver) Invalidate(ctx context.Context, tenantID string) {
	r.group.Forget(tenantID)
	if r.cache != nil {
		r.cache.Invalidate(ctx, tenantID)
	}
}

func (r *Resolver) customRoles(ctx context.Context, tenantID string) ([]*role.CustomRole, error) {
	if r.cache != nil {
		if roles, ok := r.cache.Get(ctx, tenantID); ok {
			return roles, nil
		}
	}

	ch := r.group.DoChan(tenantID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		// The version is read before the source so that an invalidation
		// committed after this read rejects the Set below.
		var (
			version   uint64
			cacheable bool
		)
		if r.cache != nil {
			version, cacheable = r.cache.Version(loadCtx, tenantID)
		}
		roles, err := r.src.ListCustomRoles(loadCtx, tenantID)
		if err != nil {
			return nil, err
		}
		if cacheable {
			r.cache.Set(loadCtx, tenantID, version, roles)
		}
		return roles, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.logger.Error("overlay: load custom roles",
				"tenant_id", tenantID,
				"error", res.Err,
			)
			return nil, fmt.Errorf("%w: tenant %s: %w", ErrRetrievalFailure, tenantID, res.Err)
		}
		roles, _ := res.Val.([]*role.CustomRole)
		return roles, nil
	}
}
