// Package echelon is a role hierarchy and permission engine. It decides who
// may assign which roles and permissions to whom, based on a leveled role
// tree that tenants can extend with custom roles.
//
// The Engine is safe for concurrent use. Every mutating operation checks the
// current state and writes under a per-key lock, with the store's unique
// constraints as the cross-process backstop.
package echelon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/cache"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/graph"
	"github.com/xraph/echelon/overlay"
	"github.com/xraph/echelon/plugin"
	"github.com/xraph/echelon/role"
	"github.com/xraph/echelon/store"
)

const tracerName = "github.com/xraph/echelon"

// Directory reports whether a person exists. It is optional; without one
// target persons are not checked.
type Directory interface {
	PersonExists(ctx context.Context, tenantID, personID string) (bool, error)
}

// Engine is the assignment authorization service.
type Engine struct {
	store          store.Store
	base           *catalog.Catalog
	cache          overlay.Cache
	resolver       *overlay.Resolver
	directory      Directory
	plugins        *plugin.Registry
	pending        []plugin.Plugin
	logger         *slog.Logger
	config         Config
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	now            func() time.Time
	validate       *validator.Validate
	locks          keyedMutex
}

// NewEngine creates a new engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("echelon: store is required")
	}
	if e.base == nil {
		e.base = catalog.Builtin()
	}
	if len(e.pending) > 0 {
		e.plugins = plugin.NewRegistry(e.logger)
		for _, x := range e.pending {
			e.plugins.Register(x)
		}
		e.pending = nil
	}
	if e.tracerProvider == nil {
		e.tracerProvider = otel.GetTracerProvider()
	}
	e.tracer = e.tracerProvider.Tracer(tracerName)
	e.validate = validator.New(validator.WithRequiredStructEnabled())

	if e.cache == nil && e.config.OverlayCacheTTL > 0 {
		copts := []cache.MemoryOption{cache.WithTTL(e.config.OverlayCacheTTL)}
		if e.config.OverlayCacheSize > 0 {
			copts = append(copts, cache.WithMaxSize(e.config.OverlayCacheSize))
		}
		e.cache = cache.NewMemory(copts...)
	}
	ropts := []overlay.Option{overlay.WithLogger(e.logger)}
	if e.cache != nil {
		ropts = append(ropts, overlay.WithCache(e.cache))
	}
	if e.config.OverlayLoadTimeout > 0 {
		ropts = append(ropts, overlay.WithLoadTimeout(e.config.OverlayLoadTimeout))
	}
	e.resolver = overlay.New(e.base, e.store, ropts...)
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Catalog returns the tenant-independent hierarchy.
func (e *Engine) Catalog() *catalog.Catalog { return e.base }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// begin starts an operation span and applies OperationTimeout. The returned
// function ends both and records err on the span.
func (e *Engine) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := e.tracer.Start(ctx, "echelon."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	cancel := context.CancelFunc(func() {})
	if e.config.OperationTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.config.OperationTimeout)
	}
	return ctx, func(err error) {
		cancel()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// view resolves the tenant hierarchy through the overlay.
func (e *Engine) view(ctx context.Context, op, tenantID string) (*catalog.Catalog, error) {
	v, err := e.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return v, nil
}

// freshView bypasses the overlay cache. Hierarchy mutations use it while
// holding the tenant lock.
func (e *Engine) freshView(ctx context.Context, op, tenantID string) (*catalog.Catalog, error) {
	roles, err := e.store.ListCustomRoles(ctx, tenantID)
	if err != nil {
		return nil, persistenceError(op, fmt.Errorf("%w: tenant %s: %w", ErrRetrievalFailure, tenantID, err))
	}
	v, _ := catalog.Merge(e.base, tenantID, role.Definitions(roles))
	return v, nil
}

// principal loads a person's active assignments in a tenant and picks the
// highest authority among them. ok is false when the person holds no role
// known to v.
func (e *Engine) principal(ctx context.Context, op string, v catalog.View, personID, tenantID string) (as []*assignment.RoleAssignment, highest string, ok bool, err error) {
	as, err = e.store.ListActiveRoleAssignments(ctx, personID, tenantID)
	if err != nil {
		return nil, "", false, persistenceError(op, err)
	}
	highest, ok = graph.HighestAuthority(v, assignment.RoleTypes(as))
	if ok && !v.Exists(highest) {
		ok = false
	}
	return as, highest, ok, nil
}

func (e *Engine) checkPerson(ctx context.Context, op, tenantID, personID string) error {
	if e.directory == nil {
		return nil
	}
	exists, err := e.directory.PersonExists(ctx, tenantID, personID)
	if err != nil {
		return persistenceError(op, err)
	}
	if !exists {
		return fmt.Errorf("echelon: %s: %w: %s", op, ErrPersonNotFound, personID)
	}
	return nil
}

func (e *Engine) validateRequest(op string, req any) error {
	if err := e.validate.Struct(req); err != nil {
		return fmt.Errorf("echelon: %s: %w: %w", op, ErrInvalidRequest, err)
	}
	return nil
}

// record writes the decision of a mutating operation to the audit trail and
// notifies plugins. Failures are logged, never returned.
func (e *Engine) record(ctx context.Context, entry *audit.Entry, err error) {
	switch {
	case err == nil:
		entry.Decision = audit.DecisionAllow
	case IsPersistenceFailure(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		entry.Decision = audit.DecisionError
		entry.Reason = err.Error()
		e.logger.Error("echelon: operation failed",
			slog.String("operation", entry.Operation),
			slog.String("tenant_id", entry.TenantID),
			slog.String("error", err.Error()),
		)
	default:
		entry.Decision = audit.DecisionDeny
		entry.Reason = err.Error()
		e.logger.Info("echelon: operation denied",
			slog.String("operation", entry.Operation),
			slog.String("tenant_id", entry.TenantID),
			slog.String("requester_id", entry.RequesterID),
			slog.String("reason", entry.Reason),
		)
	}
	entry.CreatedAt = e.now()

	ctx = context.WithoutCancel(ctx)
	if !e.config.DisableAudit {
		if werr := e.store.CreateAuditEntry(ctx, entry); werr != nil {
			e.logger.Warn("echelon: audit write failed",
				slog.String("operation", entry.Operation),
				slog.String("error", werr.Error()),
			)
		}
	}
	if e.plugins != nil {
		e.plugins.EmitDecision(ctx, entry)
	}
}
