// Package pgvector implements storage.Backend on Postgres with the pgvector
// extension.
//
// Scope constraints are a jsonb containment test (metadata @> scope) in the
// WHERE clause of the ranking query, so Postgres filters before it orders by
// cosine distance.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "groundwork_entries"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config holds the connection settings.
type Config struct {
	DSN   string `yaml:"dsn" toml:"dsn"`
	Table string `yaml:"table" toml:"table"`
	// Lists is the ivfflat list count. Zero creates no ANN index.
	Lists int `yaml:"lists" toml:"lists"`
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Backend stores entries in one Postgres table.
type Backend struct {
	db     *sql.DB
	table  string
	lists  int
	logger *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend opens a connection pool for cfg.DSN. The database is not
// contacted until Initialize.
func NewBackend(cfg Config, opts ...Option) (*Backend, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector dsn required", core.ErrConfiguration)
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	b, err := NewBackendFromDB(db, cfg, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewBackendFromDB reuses an existing *sql.DB.
func NewBackendFromDB(db *sql.DB, cfg Config, opts ...Option) (*Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db is required", core.ErrConfiguration)
	}
	b := &Backend{db: db, table: cfg.Table, lists: cfg.Lists, logger: slog.Default()}
	if b.table == "" {
		b.table = DefaultTable
	}
	if !tableName.MatchString(b.table) {
		return nil, fmt.Errorf("%w: invalid table name %q", core.ErrConfiguration, b.table)
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "pgvector-store", "table", b.table)
	return b, nil
}

func (b *Backend) quoted() string {
	return pq.QuoteIdentifier(b.table)
}

func schemaDDL(table string, dim, lists int) string {
	quoted := pq.QuoteIdentifier(table)
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %s (
  id         text PRIMARY KEY,
  content    text NOT NULL,
  metadata   jsonb NOT NULL DEFAULT '{}',
  embedding  vector(%d) NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %s ON %s USING gin (metadata jsonb_path_ops);
`, quoted, dim, pq.QuoteIdentifier(table+"_meta_idx"), quoted)
	if lists > 0 {
		ddl += fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);\n",
			pq.QuoteIdentifier(table+"_embedding_idx"), quoted, lists)
	}
	return ddl
}

// Initialize creates the table if absent, or checks the dimension of the
// existing embedding column.
func (b *Backend) Initialize(ctx context.Context, dimension int) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreConnection, err)
	}

	existing, err := b.columnDimension(ctx)
	if err != nil {
		return err
	}
	if existing > 0 {
		if existing != dimension {
			return fmt.Errorf("%w: %w: table %q has dimension %d, configured %d",
				core.ErrConfiguration, core.ErrDimensionMismatch, b.table, existing, dimension)
		}
		return nil
	}

	if _, err := b.db.ExecContext(ctx, schemaDDL(b.table, dimension, b.lists)); err != nil {
		return fmt.Errorf("%w: creating table: %w", core.ErrStoreWrite, err)
	}
	b.logger.Info("created table", "dimension", dimension)
	return nil
}

// columnDimension returns the declared dimension of the embedding column,
// or 0 when the table does not exist.
func (b *Backend) columnDimension(ctx context.Context) (int, error) {
	var dim int
	err := b.db.QueryRowContext(ctx, `
SELECT a.atttypmod
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
WHERE c.relname = $1 AND a.attname = 'embedding' AND NOT a.attisdropped`, b.table).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return dim, nil
}

// Write upserts entries in one transaction.
func (b *Backend) Write(ctx context.Context, entries []*core.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, content, metadata, embedding, updated_at)
VALUES ($1, $2, $3::jsonb, $4::vector, now())
ON CONFLICT (id) DO UPDATE SET
  content = EXCLUDED.content,
  metadata = EXCLUDED.metadata,
  embedding = EXCLUDED.embedding,
  updated_at = now()`, b.quoted()))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		meta, err := metadataJSON(e.Metadata)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
		}
		vec, err := toVectorLiteral(e.Vector, 0)
		if err != nil {
			return fmt.Errorf("%w: entry %s: %w", core.ErrStoreWrite, e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Text, meta, vec); err != nil {
			return fmt.Errorf("%w: entry %s: %w", core.ErrStoreWrite, e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return nil
}

// Get returns the entries matching filter.
func (b *Backend) Get(ctx context.Context, filter storage.Filter) (*core.GetResult, error) {
	scope, err := metadataJSON(core.Metadata(filter.Scope))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	query := fmt.Sprintf(`SELECT id, metadata FROM %s WHERE metadata @> $1::jsonb`, b.quoted())
	args := []any{scope}
	if len(filter.IDs) > 0 {
		query += ` AND id = ANY($2)`
		args = append(args, pq.Array(filter.IDs))
	}
	query += ` ORDER BY id`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	defer rows.Close()

	result := &core.GetResult{IDs: []string{}, Metadatas: []core.Metadata{}}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
		}
		var meta core.Metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("%w: entry %s metadata: %w", storage.ErrSerializationFailed, id, err)
		}
		result.IDs = append(result.IDs, id)
		result.Metadatas = append(result.Metadatas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return result, nil
}

func searchSQL(table string) string {
	return fmt.Sprintf(`
SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS score
FROM %s
WHERE metadata @> $2::jsonb
ORDER BY embedding <=> $1::vector, id
LIMIT $3`, pq.QuoteIdentifier(table))
}

// Search returns the topK in-scope rows closest to vector by cosine distance.
func (b *Backend) Search(ctx context.Context, vector []float32, topK int, scope core.Scope) ([]*core.Match, error) {
	vec, err := toVectorLiteral(vector, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	filter, err := metadataJSON(core.Metadata(scope))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}

	rows, err := b.db.QueryContext(ctx, searchSQL(b.table), vec, filter, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	defer rows.Close()

	matches := []*core.Match{}
	for rows.Next() {
		m := &core.Match{}
		var raw []byte
		var score float64
		if err := rows.Scan(&m.ID, &m.Text, &raw, &score); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
		}
		if err := json.Unmarshal(raw, &m.Metadata); err != nil {
			return nil, fmt.Errorf("%w: entry %s metadata: %w", storage.ErrSerializationFailed, m.ID, err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return matches, nil
}

// DeleteWhere deletes every row matching scope.
func (b *Backend) DeleteWhere(ctx context.Context, scope core.Scope) (int, error) {
	filter, err := metadataJSON(core.Metadata(scope))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	res, err := b.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE metadata @> $1::jsonb`, b.quoted()), filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return int(n), nil
}

// Count returns the number of rows in the table.
func (b *Backend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, b.quoted())).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return n, nil
}

// Reset truncates the table.
func (b *Backend) Reset(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s`, b.quoted())); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	b.logger.Warn("truncated table")
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

func metadataJSON(meta core.Metadata) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}
