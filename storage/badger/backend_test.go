package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	backend, err := NewMemoryBackend(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	require.NoError(t, backend.Initialize(context.Background(), 3))
	return backend
}

func entry(id string, vector []float32, meta core.Metadata) *core.Entry {
	return &core.Entry{ID: id, Text: "text of " + id, Metadata: meta, Vector: vector}
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := OpenBackend(path, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreConnection)
}

func TestBackendClose(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	assert.False(t, backend.IsClosed())

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
	require.NoError(t, backend.Close())

	err = backend.Write(context.Background(), []*core.Entry{entry("a", []float32{1, 0, 0}, nil)})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestInitialize_Idempotent(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Initialize(ctx, 3))

	err := backend.Initialize(ctx, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestWriteGetCount(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	entries := []*core.Entry{
		entry("a", []float32{1, 0, 0}, core.Metadata{"user": "1", "file": "10"}),
		entry("b", []float32{0, 1, 0}, core.Metadata{"user": "1", "file": "11"}),
		entry("c", []float32{0, 0, 1}, core.Metadata{"user": "2", "file": "12"}),
	}
	require.NoError(t, backend.Write(ctx, entries))

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	t.Run("by scope", func(t *testing.T) {
		res, err := backend.Get(ctx, storage.Filter{Scope: core.Scope{"user": "1"}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, res.IDs)
		assert.Len(t, res.Metadatas, 2)
	})

	t.Run("by ids and scope", func(t *testing.T) {
		res, err := backend.Get(ctx, storage.Filter{IDs: []string{"a", "c", "missing"}, Scope: core.Scope{"user": "1"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, res.IDs)
		assert.Equal(t, "10", res.Metadatas[0]["file"])
	})

	t.Run("upsert", func(t *testing.T) {
		require.NoError(t, backend.Write(ctx, []*core.Entry{entry("a", []float32{1, 1, 0}, core.Metadata{"user": "1", "file": "10"})}))
		count, err := backend.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestSearch_PreFilterAndRank(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Write(ctx, []*core.Entry{
		entry("near", []float32{1, 0.1, 0}, core.Metadata{"user": "1"}),
		entry("far", []float32{0, 1, 0}, core.Metadata{"user": "1"}),
		entry("other-tenant", []float32{1, 0, 0}, core.Metadata{"user": "2"}),
	}))

	matches, err := backend.Search(ctx, []float32{1, 0, 0}, 5, core.Scope{"user": "1"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "far", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "text of near", matches[0].Text)

	matches, err = backend.Search(ctx, []float32{1, 0, 0}, 1, core.Scope{"user": "1"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].ID)

	matches, err = backend.Search(ctx, []float32{1, 0, 0}, 5, core.Scope{"user": "3"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDeleteWhere(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Write(ctx, []*core.Entry{
		entry("a", []float32{1, 0, 0}, core.Metadata{"user": "1", "file": "10"}),
		entry("b", []float32{0, 1, 0}, core.Metadata{"user": "1", "file": "10", "extra": "x"}),
		entry("c", []float32{0, 0, 1}, core.Metadata{"user": "1", "file": "11"}),
	}))

	n, err := backend.DeleteWhere(ctx, core.Scope{"file": "10"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := backend.Get(ctx, storage.Filter{Scope: core.Scope{"user": "1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, res.IDs)

	n, err = backend.DeleteWhere(ctx, core.Scope{"file": "10"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReset_KeepsOtherCollections(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	require.NoError(t, backend.Write(ctx, []*core.Entry{entry("a", []float32{1, 0, 0}, core.Metadata{"user": "1"})}))

	other := &Backend{db: backend.db, collection: "other", logger: backend.logger}
	require.NoError(t, other.Initialize(ctx, 3))
	require.NoError(t, other.Write(ctx, []*core.Entry{entry("z", []float32{1, 0, 0}, core.Metadata{"user": "1"})}))

	require.NoError(t, backend.Reset(ctx))

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, backend.Initialize(ctx, 3))
}
