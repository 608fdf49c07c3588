package storage

import (
	"context"

	"github.com/poiesic/groundwork/core"
)

// Filter selects entries by explicit id list and/or scope.
// An empty IDs list means every id; an empty Scope means every entry.
type Filter struct {
	IDs   []string
	Scope core.Scope
}

// Backend is a concrete vector database.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Initialize creates the collection with the given vector dimension if it
	// does not exist. Calling it on an existing collection is a no-op, unless
	// the collection was created with a different dimension, which fails with
	// core.ErrConfiguration.
	Initialize(ctx context.Context, dimension int) error

	// Get returns the ids and metadata of the entries matching filter.
	Get(ctx context.Context, filter Filter) (*core.GetResult, error)

	// Write upserts entries by id. When Write returns the entries are
	// visible to Get and Search.
	Write(ctx context.Context, entries []*core.Entry) error

	// Search returns at most topK entries matching scope, ranked by cosine
	// similarity, highest first. The scope is applied before ranking.
	Search(ctx context.Context, vector []float32, topK int, scope core.Scope) ([]*core.Match, error)

	// DeleteWhere removes every entry matching scope and returns how many were removed.
	DeleteWhere(ctx context.Context, scope core.Scope) (int, error)

	// Count returns the number of entries in the collection.
	Count(ctx context.Context) (int, error)

	// Reset irreversibly removes every entry of the collection.
	Reset(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
