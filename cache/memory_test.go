package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/echelon/role"
)

func sampleRoles() []*role.CustomRole {
	return []*role.CustomRole{{
		TenantID:       "t1",
		RoleType:       "project_lead",
		ParentRoleType: "company_admin",
		Level:          3,
		Permissions:    []string{"project:read"},
	}}
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	if _, ok := c.Get(ctx, "t1"); ok {
		t.Fatal("expected cache miss")
	}

	c.Set(ctx, "t1", 0, sampleRoles())
	got, ok := c.Get(ctx, "t1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].RoleType != "project_lead" {
		t.Fatalf("unexpected roles %+v", got)
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	roles := sampleRoles()
	c.Set(ctx, "t1", 0, roles)
	roles[0].Permissions[0] = "tampered:write"

	got, _ := c.Get(ctx, "t1")
	got[0].Level = 99
	again, _ := c.Get(ctx, "t1")
	if again[0].Permissions[0] != "project:read" || again[0].Level != 3 {
		t.Fatalf("cache entry was mutated: %+v", again[0])
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	c.Set(ctx, "t1", 0, sampleRoles())
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(ctx, "t1"); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheEmptyListIsAHit(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "t1", 0, []*role.CustomRole{})
	if _, ok := c.Get(ctx, "t1"); !ok {
		t.Fatal("a tenant without custom roles should still be cached")
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "t1", 0, sampleRoles())
	c.Set(ctx, "t2", 0, sampleRoles())
	c.Invalidate(ctx, "t1")

	if _, ok := c.Get(ctx, "t1"); ok {
		t.Fatal("expected t1 to be invalidated")
	}
	if _, ok := c.Get(ctx, "t2"); !ok {
		t.Fatal("expected t2 to remain cached")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	c.Set(ctx, "t1", 0, sampleRoles())
	c.Set(ctx, "t2", 0, sampleRoles())
	c.Set(ctx, "t3", 0, sampleRoles())

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(ctx, "t3"); !ok {
		t.Fatal("newest entry should survive eviction")
	}
}

func TestMemoryCacheRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	v, ok := c.Version(ctx, "t1")
	if !ok {
		t.Fatal("memory version should always be readable")
	}
	c.Invalidate(ctx, "t1")
	c.Set(ctx, "t1", v, sampleRoles())
	if _, ok := c.Get(ctx, "t1"); ok {
		t.Fatal("a list loaded before invalidation must not be stored")
	}

	v, _ = c.Version(ctx, "t1")
	c.Set(ctx, "t1", v, sampleRoles())
	if _, ok := c.Get(ctx, "t1"); !ok {
		t.Fatal("expected current version to be stored")
	}
}
