package echelon

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/overlay"
	"github.com/xraph/echelon/plugin"
	"github.com/xraph/echelon/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCatalog replaces the built-in role hierarchy.
func WithCatalog(c *catalog.Catalog) Option { return func(e *Engine) { e.base = c } }

// WithCache sets the tenant custom-role cache.
func WithCache(c overlay.Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithDirectory enables person existence checks on assignment.
func WithDirectory(d Directory) Option { return func(e *Engine) { e.directory = d } }

// WithTracerProvider sets the provider engine spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPlugin registers a plugin with the engine. Plugins are registered
// after all options are applied, so hook errors use the final logger.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) { e.pending = append(e.pending, x) }
}
