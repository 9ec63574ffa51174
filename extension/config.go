package extension

import "time"

// Config holds the echelon extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.echelon" or "echelon" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// CatalogFile is a YAML role hierarchy replacing the built-in one.
	CatalogFile string `json:"catalog_file" mapstructure:"catalog_file" yaml:"catalog_file"`

	// MaxHierarchyDepth bounds re-levelling walks. Zero keeps the engine default.
	MaxHierarchyDepth int `json:"max_hierarchy_depth" mapstructure:"max_hierarchy_depth" yaml:"max_hierarchy_depth"`

	// OverlayCacheTTL is how long tenant custom roles stay cached.
	OverlayCacheTTL time.Duration `json:"overlay_cache_ttl" mapstructure:"overlay_cache_ttl" yaml:"overlay_cache_ttl"`

	// RedisAddr, when set, shares the custom-role cache through Redis
	// instead of process memory.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// EnableMetrics registers the Prometheus metrics plugin.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxHierarchyDepth: 64,
		OverlayCacheTTL:   30 * time.Second,
	}
}
