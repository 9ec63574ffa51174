package echelon

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds configuration for the echelon engine.
type Config struct {
	// OverlayCacheTTL is how long a tenant's custom roles stay cached when
	// no cache was supplied with WithCache. Zero disables the default cache.
	OverlayCacheTTL time.Duration `json:"overlay_cache_ttl,omitempty" envconfig:"OVERLAY_CACHE_TTL"`

	// OverlayCacheSize bounds the default cache. Defaults to 10000 tenants.
	OverlayCacheSize int `json:"overlay_cache_size,omitempty" envconfig:"OVERLAY_CACHE_SIZE"`

	// OverlayLoadTimeout bounds one shared custom-role load.
	OverlayLoadTimeout time.Duration `json:"overlay_load_timeout,omitempty" envconfig:"OVERLAY_LOAD_TIMEOUT"`

	// MaxHierarchyDepth bounds the re-level walk of UpdateRoleHierarchy.
	// Defaults to 64.
	MaxHierarchyDepth int `json:"max_hierarchy_depth,omitempty" envconfig:"MAX_HIERARCHY_DEPTH"`

	// OperationTimeout, when set, bounds every engine operation.
	OperationTimeout time.Duration `json:"operation_timeout,omitempty" envconfig:"OPERATION_TIMEOUT"`

	// DisableAudit stops decisions from being written to the store.
	// Plugins still receive them.
	DisableAudit bool `json:"disable_audit,omitempty" envconfig:"DISABLE_AUDIT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OverlayCacheTTL:    30 * time.Second,
		OverlayCacheSize:   10000,
		OverlayLoadTimeout: 10 * time.Second,
		MaxHierarchyDepth:  64,
	}
}

// LoadConfigFromEnv overlays environment variables on DefaultConfig.
// With prefix "ECHELON" the depth limit is read from
// ECHELON_MAX_HIERARCHY_DEPTH.
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("echelon: load config: %w", err)
	}
	return cfg, nil
}
