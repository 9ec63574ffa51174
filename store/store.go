// Package store defines the aggregate persistence interface. Each subsystem
// (role, assignment, permission, audit) defines its own store interface and
// the composite Store composes them all. Backends: Memory, Postgres, SQLite
// and MongoDB.
package store

import (
	"context"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/role"
)

// Store is the aggregate persistence interface. A single backend implements
// every subsystem store.
type Store interface {
	role.Store
	assignment.Store
	permission.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
