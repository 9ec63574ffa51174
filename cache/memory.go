// Package cache provides overlay.Cache implementations for tenant custom
// role lists.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/echelon/overlay"
	"github.com/xraph/echelon/role"
)

// Compile-time interface check.
var _ overlay.Cache = (*Memory)(nil)

// Memory is an in-process cache with TTL-based expiration and a size cap.
// Tenant versions are kept apart from entries and survive eviction.
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	versions map[string]uint64
	ttl      time.Duration
	maxSize  int
}

type entry struct {
	roles     []*role.CustomRole
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cached tenants.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:  make(map[string]*entry),
		versions: make(map[string]uint64),
		ttl:      5 * time.Minute,
		maxSize:  10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the cached custom roles of a tenant.
func (m *Memory) Get(_ context.Context, tenantID string) ([]*role.CustomRole, bool) {
	m.mu.RLock()
	e, ok := m.entries[tenantID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[tenantID]; ok && cur == e {
			delete(m.entries, tenantID)
		}
		m.mu.Unlock()
		return nil, false
	}
	return cloneRoles(e.roles), true
}

// Version returns the invalidation version of a tenant.
func (m *Memory) Version(_ context.Context, tenantID string) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[tenantID], true
}

// Set stores the custom roles of a tenant unless it was invalidated since
// version was read.
func (m *Memory) Set(_ context.Context, tenantID string, version uint64, roles []*role.CustomRole) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.versions[tenantID] != version {
		return
	}

	if _, exists := m.entries[tenantID]; !exists && len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOldest()
		}
	}

	m.entries[tenantID] = &entry{
		roles:     cloneRoles(roles),
		expiresAt: time.Now().Add(m.ttl),
	}
}

// Invalidate removes the cached roles of a tenant.
func (m *Memory) Invalidate(_ context.Context, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[tenantID]++
	delete(m.entries, tenantID)
}

// Len returns the number of cached tenants, expired entries included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOldest removes the entry closest to expiry. Must hold write lock.
func (m *Memory) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range m.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(m.entries, oldestKey)
}

func cloneRoles(in []*role.CustomRole) []*role.CustomRole {
	if in == nil {
		return nil
	}
	out := make([]*role.CustomRole, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
