// Package store is the local sqlite backend: a single-file document store
// several board processes can share. Other processes' writes are picked up
// by polling a per-collection version counter.
package store

import (
	"context"

	"github.com/nhle/kanban/internal/gateway"
)

// Store is a gateway backed by persistent local storage.
type Store interface {
	gateway.Gateway

	// Put writes a document under a caller-chosen id, replacing any existing
	// body. It is used for imports and fixtures.
	Put(ctx context.Context, collection, id string, fields map[string]any) error

	// CollectionVersion returns a counter that grows on every write to
	// collection.
	CollectionVersion(ctx context.Context, collection string) (int64, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
