// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package groundwork ingests knowledge sources into a vector store and
// retrieves scoped, cited content from it.
//
// An App is built once at startup, from a config.Config with New or from
// already constructed parts with NewWithComponents, and shared by every
// caller. Every read and delete takes a core.Scope; entries written under
// one scope are never visible through a disjoint one.
//
// Replacing a source is left to the caller: Delete the old source's scope,
// then Add the new content. The two calls are not atomic.
package groundwork

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/ai/ollama"
	"github.com/poiesic/groundwork/ai/openai"
	"github.com/poiesic/groundwork/chunker"
	"github.com/poiesic/groundwork/config"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/resolver"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/badger"
	"github.com/poiesic/groundwork/storage/elasticsearch"
	"github.com/poiesic/groundwork/storage/opensearch"
	"github.com/poiesic/groundwork/storage/pgvector"
)

// App is the retrieval facade.
type App struct {
	store    *storage.VectorStore
	resolver *resolver.Resolver
	pipeline *ingestion.Pipeline
	logger   *slog.Logger
}

// Option configures an App.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	embedder ai.Embedder
	backend  storage.Backend
	observer storage.BatchObserver
	poolSize int
}

// WithLogger sets the logger passed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEmbedder uses embedder instead of the one named by the configuration.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

// WithBackend uses backend instead of the one named by the configuration.
func WithBackend(backend storage.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithBatchObserver reports the progress of every batch write.
func WithBatchObserver(fn storage.BatchObserver) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithPoolSize sets the number of sources AddAll ingests at once.
func WithPoolSize(size int) Option {
	return func(o *options) {
		o.poolSize = size
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// New builds an App from cfg: it creates the embedder and store backend,
// checks the embedder dimension against the collection and creates the
// collection when absent.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", core.ErrConfiguration)
	}
	o := newOptions(opts)

	embedder := o.embedder
	if embedder == nil {
		var err error
		if embedder, err = NewEmbedder(cfg.Embedder.AI()); err != nil {
			return nil, err
		}
	}

	backend := o.backend
	if backend == nil {
		if err := cfg.Store.Validate(); err != nil {
			return nil, err
		}
		var err error
		if backend, err = NewBackend(cfg.Store, o.logger); err != nil {
			return nil, err
		}
	}

	storeOpts := append(cfg.Store.Options(), storage.WithLogger(o.logger))
	if o.observer != nil {
		storeOpts = append(storeOpts, storage.WithBatchObserver(o.observer))
	}
	store, err := storage.NewVectorStore(backend, embedder, storeOpts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chunk, err := chunker.New(chunker.WithConfig(cfg.Chunker), chunker.WithLogger(o.logger))
	if err != nil {
		store.Close()
		return nil, err
	}
	res := resolver.New(chunk,
		resolver.WithLoaderOptions(cfg.Loader.Loader().Options()...),
		resolver.WithLogger(o.logger),
	)

	app, err := newApp(ctx, store, res, o)
	if err != nil {
		store.Close()
		return nil, err
	}
	return app, nil
}

// NewWithComponents builds an App from an existing store and resolver and
// initializes the store's collection. The App takes ownership of store.
func NewWithComponents(ctx context.Context, store *storage.VectorStore, res *resolver.Resolver, opts ...Option) (*App, error) {
	if store == nil {
		return nil, ingestion.ErrStoreRequired
	}
	if res == nil {
		return nil, ingestion.ErrResolverRequired
	}
	return newApp(ctx, store, res, newOptions(opts))
}

func newApp(ctx context.Context, store *storage.VectorStore, res *resolver.Resolver, o *options) (*App, error) {
	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}

	pipeOpts := []ingestion.Option{ingestion.WithLogger(o.logger)}
	if o.poolSize > 0 {
		pipeOpts = append(pipeOpts, ingestion.WithPoolSize(o.poolSize))
	}
	pipeline, err := ingestion.NewPipeline(store, res, pipeOpts...)
	if err != nil {
		return nil, err
	}

	return &App{
		store:    store,
		resolver: res,
		pipeline: pipeline,
		logger:   o.logger.With("component", "groundwork"),
	}, nil
}

// NewEmbedder creates the embedding backend named by cfg.Provider.
func NewEmbedder(cfg *ai.Config) (ai.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOllama:
		return ollama.NewEmbedder(cfg)
	default:
		return openai.NewEmbedder(cfg)
	}
}

// NewBackend opens the store backend named by cfg.Provider.
func NewBackend(cfg config.StoreConfig, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Provider {
	case config.StoreBadger:
		return badger.OpenBackend(cfg.Badger.Path, cfg.Badger.InMemory,
			badger.WithCollection(cfg.Collection), badger.WithLogger(logger))
	case config.StoreElasticsearch:
		return elasticsearch.NewBackend(cfg.ElasticsearchConfig(), elasticsearch.WithLogger(logger))
	case config.StoreOpenSearch:
		return opensearch.NewBackend(cfg.OpenSearchConfig(), opensearch.WithLogger(logger))
	case config.StorePGVector:
		return pgvector.NewBackend(cfg.PGVectorConfig(), pgvector.WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: unknown store provider %q", core.ErrConfiguration, cfg.Provider)
	}
}

// Add ingests source under scope. Chunks already stored under scope are
// skipped without being embedded again.
func (a *App) Add(ctx context.Context, source core.Source, scope core.Scope, opts ...ingestion.IngestOption) (*ingestion.Result, error) {
	return a.pipeline.Ingest(ctx, source, scope, opts...)
}

// AddAll ingests several sources concurrently. See ingestion.Pipeline.IngestAll.
func (a *App) AddAll(ctx context.Context, requests []ingestion.Request, opts ...ingestion.IngestOption) ([]*ingestion.Result, error) {
	return a.pipeline.IngestAll(ctx, requests, opts...)
}

// Query returns the text of at most topK entries within scope, most similar
// first. No match is an empty result, not an error.
func (a *App) Query(ctx context.Context, text string, scope core.Scope, topK int) ([]string, error) {
	matches, err := a.store.Query(ctx, text, topK, scope)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out, nil
}

// QueryWithCitations is Query returning each text with its source url and id.
func (a *App) QueryWithCitations(ctx context.Context, text string, scope core.Scope, topK int) ([]core.Citation, error) {
	matches, err := a.store.Query(ctx, text, topK, scope)
	if err != nil {
		return nil, err
	}
	out := make([]core.Citation, len(matches))
	for i, m := range matches {
		out[i] = core.CitationFromMatch(m)
	}
	return out, nil
}

// Matches is Query returning the scored entries themselves.
func (a *App) Matches(ctx context.Context, text string, scope core.Scope, topK int) ([]*core.Match, error) {
	return a.store.Query(ctx, text, topK, scope)
}

// Exists returns the ids and metadata of every entry within scope.
func (a *App) Exists(ctx context.Context, scope core.Scope) (*core.GetResult, error) {
	return a.store.Exists(ctx, nil, scope)
}

// Delete removes every entry within scope and returns how many were removed.
func (a *App) Delete(ctx context.Context, scope core.Scope) (int, error) {
	n, err := a.store.Delete(ctx, scope)
	if err != nil {
		return 0, err
	}
	a.logger.Info("deleted entries", "scope", scope.String(), "count", n)
	return n, nil
}

// Sources lists the distinct sources with entries within scope, ordered by url.
func (a *App) Sources(ctx context.Context, scope core.Scope) ([]core.SourceInfo, error) {
	res, err := a.store.Exists(ctx, nil, scope)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	sources := []core.SourceInfo{}
	for _, meta := range res.Metadatas {
		id := meta[core.MetaDocID]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		sources = append(sources, core.SourceInfo{
			SourceID: id,
			URL:      meta[core.MetaURL],
			Kind:     core.Kind(meta[core.MetaDataType]),
		})
	}
	slices.SortFunc(sources, func(x, y core.SourceInfo) int {
		if c := strings.Compare(x.URL, y.URL); c != 0 {
			return c
		}
		return strings.Compare(x.SourceID, y.SourceID)
	})
	return sources, nil
}

// Count returns the number of entries in the collection, across all scopes.
func (a *App) Count(ctx context.Context) (int, error) {
	return a.store.Count(ctx)
}

// Reset irreversibly removes every entry of the collection.
func (a *App) Reset(ctx context.Context) error {
	return a.store.Reset(ctx)
}

// Close releases the worker pool and closes the store.
func (a *App) Close() error {
	a.pipeline.Release()
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}
