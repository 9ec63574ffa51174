// Package extension provides a Forge extension entry point for echelon.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/echelon"
	"github.com/xraph/echelon/api"
	"github.com/xraph/echelon/cache"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/plugin"
	"github.com/xraph/echelon/plugin/metrics"
	"github.com/xraph/echelon/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "echelon"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Role hierarchy and permission engine with tenant custom roles"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts echelon as a Forge extension.
type Extension struct {
	config     Config
	eng        *echelon.Engine
	apiHandler *api.API
	metrics    *metrics.Collector
	redis      *redis.Client
	logger     *slog.Logger
	engineOpts []echelon.Option
	plugins    []plugin.Plugin
}

// New creates an echelon Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying engine.
func (e *Extension) Engine() *echelon.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Metrics returns the metrics collector, or nil when metrics are disabled.
func (e *Extension) Metrics() *metrics.Collector { return e.metrics }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*echelon.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("echelon: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := e.engineOptions(logger)
	if err != nil {
		return err
	}

	// Try to resolve store from DI container, fall back to option-provided store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append([]echelon.Option{echelon.WithStore(s)}, opts...)
	}

	eng, err := echelon.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("echelon: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("echelon: register routes: %w", err)
		}
	}

	return nil
}

// engineOptions translates the extension config into engine options. User
// options come last so they can override anything derived here.
func (e *Extension) engineOptions(logger *slog.Logger) ([]echelon.Option, error) {
	cfg := echelon.DefaultConfig()
	if e.config.MaxHierarchyDepth > 0 {
		cfg.MaxHierarchyDepth = e.config.MaxHierarchyDepth
	}
	if e.config.OverlayCacheTTL > 0 {
		cfg.OverlayCacheTTL = e.config.OverlayCacheTTL
	}

	opts := []echelon.Option{echelon.WithLogger(logger), echelon.WithConfig(cfg)}

	if e.config.CatalogFile != "" {
		c, err := catalog.LoadFile(e.config.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("echelon: load catalog: %w", err)
		}
		opts = append(opts, echelon.WithCatalog(c))
	}

	if e.config.RedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: e.config.RedisAddr})
		opts = append(opts, echelon.WithCache(cache.NewRedis(e.redis,
			cache.WithRedisTTL(cfg.OverlayCacheTTL),
			cache.WithRedisLogger(logger),
		)))
	}

	if e.config.EnableMetrics {
		e.metrics = metrics.New()
		opts = append(opts, echelon.WithPlugin(e.metrics))
	}

	for _, x := range e.plugins {
		opts = append(opts, echelon.WithPlugin(x))
	}

	return append(opts, e.engineOpts...), nil
}

// Start runs migrations if enabled and starts the engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("echelon: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("echelon: migration failed: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	err := e.eng.Stop(ctx)
	if e.redis != nil {
		err = errors.Join(err, e.redis.Close())
	}
	return err
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("echelon: extension not initialized")
	}
	if err := e.eng.Store().Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	return nil
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all echelon API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
