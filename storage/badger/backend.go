package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "groundwork"

// Backend stores entries in a BadgerDB database and answers similarity
// queries with a brute-force cosine scan over the in-scope entries.
type Backend struct {
	db         *badger.DB
	collection string
	logger     *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Option configures a Backend.
type Option func(*Backend)

// WithCollection sets the collection name. Collections share one database
// and are separated by key prefix.
func WithCollection(name string) Option {
	return func(b *Backend) {
		if name != "" {
			b.collection = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool, opts ...Option) (*Backend, error) {
	b := &Backend{collection: DefaultCollection, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "badger-store", "collection", b.collection)

	var dbOpts badger.Options
	if inMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(filePath, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrStoreConnection, err)
		}
		info, err := os.Stat(filePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrStoreConnection, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", core.ErrStoreConnection, filePath)
		}
		dbOpts = badger.DefaultOptions(filePath)
	}

	dbOpts.Logger = &badgerLoggerAdapter{logger: b.logger}
	dbOpts.Compression = options.None

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreConnection, err)
	}
	b.db = db
	return b, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction that is committed
// when fn succeeds. The transaction is discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	if isWrite {
		return tx.Commit()
	}
	return nil
}

// Initialize records the collection's dimension, or checks it against the
// recorded one.
func (b *Backend) Initialize(_ context.Context, dimension int) error {
	key := makeDimensionKey(b.collection)
	return b.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.Info("creating collection", "dimension", dimension)
			return tx.Set(key, []byte(strconv.Itoa(dimension)))
		}
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreConnection, err)
		}
		return item.Value(func(val []byte) error {
			existing, err := strconv.Atoi(string(val))
			if err != nil {
				return fmt.Errorf("%w: corrupt dimension %q: %w", storage.ErrSerializationFailed, val, err)
			}
			if existing != dimension {
				return fmt.Errorf("%w: %w: collection %q has dimension %d, configured %d",
					core.ErrConfiguration, core.ErrDimensionMismatch, b.collection, existing, dimension)
			}
			return nil
		})
	}, true)
}

// Write upserts entries in one write batch.
func (b *Backend) Write(ctx context.Context, entries []*core.Entry) error {
	if b.db.IsClosed() {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, storage.ErrStorageClosed)
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
		}
		if err := wb.Set(makeEntryKey(b.collection, e.ID), storage.MarshalEntry(e)); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return nil
}

// scan calls fn for every entry matching scope.
func (b *Backend) scan(ctx context.Context, scope core.Scope, fn func(e *core.Entry)) error {
	return b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix(b.collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry *core.Entry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if scope.Matches(entry.Metadata) {
				fn(entry)
			}
		}
		return nil
	}, false)
}

// Get returns the entries matching filter.
func (b *Backend) Get(ctx context.Context, filter storage.Filter) (*core.GetResult, error) {
	result := &core.GetResult{IDs: []string{}, Metadatas: []core.Metadata{}}
	add := func(e *core.Entry) {
		result.IDs = append(result.IDs, e.ID)
		result.Metadatas = append(result.Metadatas, e.Metadata)
	}

	if len(filter.IDs) == 0 {
		if err := b.scan(ctx, filter.Scope, add); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
		}
		return result, nil
	}

	err := b.WithTx(func(tx *badger.Txn) error {
		for _, id := range filter.IDs {
			item, err := tx.Get(makeEntryKey(b.collection, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var entry *core.Entry
			err = item.Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if filter.Scope.Matches(entry.Metadata) {
				add(entry)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return result, nil
}

// Search ranks the in-scope entries by cosine similarity to vector.
func (b *Backend) Search(ctx context.Context, vector []float32, topK int, scope core.Scope) ([]*core.Match, error) {
	var matches []*core.Match
	err := b.scan(ctx, scope, func(e *core.Entry) {
		matches = append(matches, &core.Match{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: e.Metadata,
			Score:    storage.CosineSimilarity(vector, e.Vector),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return storage.RankMatches(matches, topK), nil
}

// DeleteWhere removes every entry matching scope.
func (b *Backend) DeleteWhere(ctx context.Context, scope core.Scope) (int, error) {
	var keys [][]byte
	err := b.scan(ctx, scope, func(e *core.Entry) {
		keys = append(keys, makeEntryKey(b.collection, e.ID))
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return len(keys), nil
}

// Count returns the number of entries in the collection.
func (b *Backend) Count(ctx context.Context) (int, error) {
	count := 0
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix(b.collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return count, nil
}

// Reset drops every entry of the collection. The recorded dimension is kept.
func (b *Backend) Reset(_ context.Context) error {
	if b.db.IsClosed() {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, storage.ErrStorageClosed)
	}
	if err := b.db.DropPrefix(entryPrefix(b.collection)); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return nil
}
