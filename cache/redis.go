package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/echelon/overlay"
	"github.com/xraph/echelon/role"
)

// Compile-time interface check.
var _ overlay.Cache = (*Redis)(nil)

// RedisClient is the subset of go-redis client methods used by Redis.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// setIfVersion writes KEYS[1] only while the version in KEYS[2] still
// equals ARGV[1]. A missing version counts as 0. ARGV[3] is the TTL in
// milliseconds, 0 for none.
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[2]) or '0'
if v ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// Redis shares custom-role lists between engine instances. Every failure
// is logged and treated as a miss, so Redis is never the source of truth.
// Tenant versions live in Redis too, so an invalidation by one instance
// rejects a stale write from any other.
type Redis struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets the key expiration.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithKeyPrefix sets the key prefix. Default "echelon:overlay:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisLogger sets the logger used for cache failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client RedisClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "echelon:overlay:",
		ttl:    5 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the cached custom roles of a tenant.
func (r *Redis) Get(ctx context.Context, tenantID string) ([]*role.CustomRole, bool) {
	raw, err := r.client.Get(ctx, r.key(tenantID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache: redis get", "tenant_id", tenantID, "error", err)
		}
		return nil, false
	}
	var roles []*role.CustomRole
	if err := json.Unmarshal(raw, &roles); err != nil {
		r.logger.Warn("cache: decode custom roles", "tenant_id", tenantID, "error", err)
		return nil, false
	}
	return roles, true
}

// Version returns the invalidation version of a tenant.
func (r *Redis) Version(ctx context.Context, tenantID string) (uint64, bool) {
	v, err := r.client.Get(ctx, r.versionKey(tenantID)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		r.logger.Warn("cache: redis version", "tenant_id", tenantID, "error", err)
		return 0, false
	}
	return v, true
}

// Set stores the custom roles of a tenant unless it was invalidated since
// version was read.
func (r *Redis) Set(ctx context.Context, tenantID string, version uint64, roles []*role.CustomRole) {
	if roles == nil {
		roles = []*role.CustomRole{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		r.logger.Warn("cache: encode custom roles", "tenant_id", tenantID, "error", err)
		return
	}
	keys := []string{r.key(tenantID), r.versionKey(tenantID)}
	stored, err := setIfVersion.Run(ctx, r.client, keys, strconv.FormatUint(version, 10), raw, r.ttl.Milliseconds()).Int()
	if err != nil {
		r.logger.Warn("cache: redis set", "tenant_id", tenantID, "error", err)
		return
	}
	if stored == 0 {
		r.logger.Debug("cache: stale custom roles not stored", "tenant_id", tenantID, "version", version)
	}
}

// Invalidate advances the tenant version and removes the cached roles. The
// version is bumped first so a concurrent Set cannot slip in between.
func (r *Redis) Invalidate(ctx context.Context, tenantID string) {
	if err := r.client.Incr(ctx, r.versionKey(tenantID)).Err(); err != nil {
		r.logger.Warn("cache: redis incr", "tenant_id", tenantID, "error", err)
	}
	if err := r.client.Del(ctx, r.key(tenantID)).Err(); err != nil {
		r.logger.Warn("cache: redis del", "tenant_id", tenantID, "error", err)
	}
}

func (r *Redis) key(tenantID string) string {
	return r.prefix + "roles:" + tenantID
}

func (r *Redis) versionKey(tenantID string) string {
	return r.prefix + "version:" + tenantID
}
