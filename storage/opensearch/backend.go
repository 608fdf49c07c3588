// Package opensearch implements storage.Backend on an OpenSearch k-NN index.
//
// Vectors live in a knn_vector field backed by a Lucene HNSW graph with the
// cosinesimil space. The scope is passed as the filter of the knn clause so
// the engine prunes out-of-scope documents during the graph search rather
// than after it.
package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/internal/dsl"
)

// DefaultIndex is the index used when none is configured.
const DefaultIndex = "groundwork"

// Config holds the connection settings.
type Config struct {
	Addresses []string `yaml:"addresses" toml:"addresses"`
	Username  string   `yaml:"username" toml:"username"`
	Password  string   `yaml:"password" toml:"password"`
	Index     string   `yaml:"index" toml:"index"`
	// EfConstruction and M tune the HNSW graph. Zero keeps the engine defaults.
	EfConstruction int `yaml:"ef_construction" toml:"ef_construction"`
	M              int `yaml:"m" toml:"m"`
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

// WithTransport sets the HTTP transport of the client.
func WithTransport(transport http.RoundTripper) Option {
	return func(b *Backend) {
		b.transport = transport
	}
}

// Backend stores entries in one OpenSearch k-NN index.
type Backend struct {
	client    *opensearch.Client
	cfg       Config
	index     string
	dimension int
	transport http.RoundTripper
	logger    *slog.Logger
	closed    atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend creates a Backend. No request is sent until Initialize.
func NewBackend(cfg Config, opts ...Option) (*Backend, error) {
	b := &Backend{cfg: cfg, index: cfg.Index, logger: slog.Default()}
	if b.index == "" {
		b.index = DefaultIndex
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "opensearch-store", "index", b.index)

	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("%w: opensearch addresses required", core.ErrConfiguration)
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: b.transport,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	b.client = client
	return b, nil
}

func check(res *opensearchapi.Response, err error, sentinel error, op string) error {
	if err != nil {
		return fmt.Errorf("%w: %w: %s: %w", sentinel, core.ErrStoreConnection, op, err)
	}
	if res.IsError() {
		defer res.Body.Close()
		return fmt.Errorf("%w: %s: %w", sentinel, op, dsl.ResponseError(res.StatusCode, res.Body))
	}
	return nil
}

func (b *Backend) ready() error {
	if b.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Mapping returns the k-NN index definition for vectors of dimension dim.
func Mapping(dim int, cfg Config) dsl.M {
	method := dsl.M{
		"name":       "hnsw",
		"space_type": "cosinesimil",
		"engine":     "lucene",
	}
	params := dsl.M{}
	if cfg.EfConstruction > 0 {
		params["ef_construction"] = cfg.EfConstruction
	}
	if cfg.M > 0 {
		params["m"] = cfg.M
	}
	if len(params) > 0 {
		method["parameters"] = params
	}
	return dsl.M{
		"settings": dsl.M{"index": dsl.M{"knn": true}},
		"mappings": dsl.M{
			"dynamic_templates": dsl.MetadataTemplate(),
			"properties": dsl.M{
				dsl.TextField:     dsl.M{"type": "text"},
				dsl.MetadataField: dsl.M{"type": "object"},
				dsl.VectorField: dsl.M{
					"type":      "knn_vector",
					"dimension": dim,
					"method":    method,
				},
			},
		},
	}
}

// Initialize creates the index if absent, or checks the dimension of the
// existing one.
func (b *Backend) Initialize(ctx context.Context, dimension int) error {
	if err := b.ready(); err != nil {
		return err
	}
	b.dimension = dimension

	res, err := b.client.Indices.Exists([]string{b.index}, b.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreConnection, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		existing, err := b.mappedDimension(ctx)
		if err != nil {
			return err
		}
		if existing != dimension {
			return fmt.Errorf("%w: %w: index %q has dimension %d, configured %d",
				core.ErrConfiguration, core.ErrDimensionMismatch, b.index, existing, dimension)
		}
		return nil
	case http.StatusNotFound:
		return b.create(ctx)
	default:
		return fmt.Errorf("%w: index exists check returned status %d", core.ErrStoreConnection, res.StatusCode)
	}
}

func (b *Backend) create(ctx context.Context) error {
	body, err := dsl.Encode(Mapping(b.dimension, b.cfg))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	res, err := b.client.Indices.Create(b.index,
		b.client.Indices.Create.WithBody(body),
		b.client.Indices.Create.WithContext(ctx))
	if err := check(res, err, core.ErrStoreWrite, "create index"); err != nil {
		return err
	}
	res.Body.Close()
	b.logger.Info("created index", "dimension", b.dimension)
	return nil
}

func (b *Backend) mappedDimension(ctx context.Context) (int, error) {
	res, err := b.client.Indices.GetMapping(
		b.client.Indices.GetMapping.WithIndex(b.index),
		b.client.Indices.GetMapping.WithContext(ctx))
	if err := check(res, err, core.ErrStoreQuery, "get mapping"); err != nil {
		return 0, err
	}
	defer res.Body.Close()

	var mappings map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Dimension int `json:"dimension"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mappings); err != nil {
		return 0, fmt.Errorf("%w: decoding mapping: %w", core.ErrStoreQuery, err)
	}
	for _, m := range mappings {
		return m.Mappings.Properties[dsl.VectorField].Dimension, nil
	}
	return 0, fmt.Errorf("%w: no mapping for index %q", core.ErrStoreQuery, b.index)
}

// Write indexes entries with one bulk request that waits for a refresh.
func (b *Backend) Write(ctx context.Context, entries []*core.Entry) error {
	if err := b.ready(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	body, err := dsl.BulkBody(entries)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	res, err := b.client.Bulk(body,
		b.client.Bulk.WithIndex(b.index),
		b.client.Bulk.WithRefresh("true"),
		b.client.Bulk.WithContext(ctx))
	if err := check(res, err, core.ErrStoreWrite, "bulk"); err != nil {
		return err
	}
	defer res.Body.Close()
	if err := dsl.CheckBulk(res.Body); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return nil
}

func (b *Backend) search(ctx context.Context, query dsl.M) ([]dsl.Hit, error) {
	body, err := dsl.Encode(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	res, err := b.client.Search(
		b.client.Search.WithIndex(b.index),
		b.client.Search.WithBody(body),
		b.client.Search.WithContext(ctx))
	if err := check(res, err, core.ErrStoreQuery, "search"); err != nil {
		return nil, err
	}
	defer res.Body.Close()
	hits, err := dsl.ParseHits(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return hits, nil
}

// Get returns the entries matching filter, at most dsl.MaxResultWindow.
func (b *Backend) Get(ctx context.Context, filter storage.Filter) (*core.GetResult, error) {
	if err := b.ready(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	size := dsl.MaxResultWindow
	if len(filter.IDs) > 0 {
		size = min(len(filter.IDs), size)
	}
	hits, err := b.search(ctx, dsl.M{
		"size":    size,
		"query":   dsl.FilterQuery(filter.IDs, filter.Scope),
		"_source": []string{dsl.MetadataField},
	})
	if err != nil {
		return nil, err
	}
	return dsl.GetResult(hits), nil
}

// SearchQuery returns the filtered k-NN query.
func SearchQuery(vector []float32, topK int, scope core.Scope) dsl.M {
	knn := dsl.M{"vector": vector, "k": topK}
	if len(scope) > 0 {
		knn["filter"] = dsl.FilterQuery(nil, scope)
	}
	return dsl.M{
		"size":    topK,
		"query":   dsl.M{"knn": dsl.M{dsl.VectorField: knn}},
		"_source": []string{dsl.TextField, dsl.MetadataField},
	}
}

// Search returns the topK in-scope documents closest to vector. The engine
// scores cosinesimil as (1 + cos) / 2; matches carry plain cosine similarity.
func (b *Backend) Search(ctx context.Context, vector []float32, topK int, scope core.Scope) ([]*core.Match, error) {
	if err := b.ready(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	hits, err := b.search(ctx, SearchQuery(vector, topK, scope))
	if err != nil {
		return nil, err
	}
	return dsl.Matches(hits, func(s float32) float32 { return 2*s - 1 }), nil
}

// DeleteWhere deletes every document matching scope.
func (b *Backend) DeleteWhere(ctx context.Context, scope core.Scope) (int, error) {
	if err := b.ready(); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	body, err := dsl.Encode(dsl.M{"query": dsl.FilterQuery(nil, scope)})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	res, err := b.client.DeleteByQuery([]string{b.index}, body,
		b.client.DeleteByQuery.WithRefresh(true),
		b.client.DeleteByQuery.WithConflicts("proceed"),
		b.client.DeleteByQuery.WithContext(ctx))
	if err := check(res, err, core.ErrStoreWrite, "delete by query"); err != nil {
		return 0, err
	}
	defer res.Body.Close()
	n, err := dsl.ParseDeleted(res.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return n, nil
}

// Count returns the number of documents in the index.
func (b *Backend) Count(ctx context.Context) (int, error) {
	if err := b.ready(); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	res, err := b.client.Count(
		b.client.Count.WithIndex(b.index),
		b.client.Count.WithContext(ctx))
	if err := check(res, err, core.ErrStoreQuery, "count"); err != nil {
		return 0, err
	}
	defer res.Body.Close()
	n, err := dsl.ParseCount(res.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreQuery, err)
	}
	return n, nil
}

// Reset deletes and recreates the index.
func (b *Backend) Reset(ctx context.Context) error {
	if err := b.ready(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	res, err := b.client.Indices.Delete([]string{b.index},
		b.client.Indices.Delete.WithIgnoreUnavailable(true),
		b.client.Indices.Delete.WithContext(ctx))
	if err := check(res, err, core.ErrStoreWrite, "delete index"); err != nil {
		return err
	}
	res.Body.Close()
	b.logger.Warn("deleted index")
	return b.create(ctx)
}

// Close marks the backend closed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
