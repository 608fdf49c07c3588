package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/resolver"
)

// Store is the part of the vector store the pipeline writes through.
type Store interface {
	Exists(ctx context.Context, ids []string, scope core.Scope) (*core.GetResult, error)
	Add(ctx context.Context, entries []*core.Entry, skipEmbedding bool) error
}

// Resolver binds sources to loaders and chunkers.
type Resolver interface {
	Resolve(source core.Source, override *resolver.Override) (resolver.Binding, error)
}

// Pipeline runs sources through load, chunk, dedup and store.
type Pipeline struct {
	store    Store
	resolver Resolver
	pool     *ants.Pool
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by IngestAll.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store Store, res Resolver, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if res == nil {
		return nil, ErrResolverRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:    store,
		resolver: res,
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// IngestOption configures a single Ingest call.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	override *resolver.Override
	dryRun   bool
}

// WithOverride forces the kind, loader or chunker of the source.
func WithOverride(o *resolver.Override) IngestOption {
	return func(opts *ingestOptions) {
		opts.override = o
	}
}

// WithDryRun loads and chunks the source without storing anything.
func WithDryRun() IngestOption {
	return func(opts *ingestOptions) {
		opts.dryRun = true
	}
}

// Result reports what one Ingest call did.
type Result struct {
	SourceID string
	Kind     core.Kind
	Chunks   []core.Chunk
	// Added counts the chunks embedded and written.
	Added int
	// Skipped counts the chunks already stored under the scope.
	Skipped  int
	Failures []*core.BatchItemError
}

// Ingest loads, chunks and stores source under scope. Chunks already stored
// under scope are not embedded again. Per-item failures of batch sources are
// reported in the result; any other failure is returned and nothing is written.
func (p *Pipeline) Ingest(ctx context.Context, source core.Source, scope core.Scope, opts ...IngestOption) (*Result, error) {
	var o ingestOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}

	binding, err := p.resolver.Resolve(source, o.override)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("kind", binding.Kind)

	loaded, err := binding.Loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	for _, f := range loaded.Failures {
		logger.Warn("skipped batch item", "item", f.Item, "err", f.Err)
	}

	chunks, err := binding.Chunker.Split(loaded, binding.Kind, scope)
	if err != nil {
		return nil, err
	}
	result := &Result{
		SourceID: loaded.SourceID,
		Kind:     binding.Kind,
		Chunks:   chunks,
		Failures: loaded.Failures,
	}
	logger.Debug("chunked source", "source_id", loaded.SourceID, "records", len(loaded.Records), "chunks", len(chunks))
	if o.dryRun || len(chunks) == 0 {
		return result, nil
	}

	fresh, err := p.unseen(ctx, chunks, scope)
	if err != nil {
		return nil, err
	}
	result.Skipped = len(chunks) - len(fresh)
	if len(fresh) > 0 {
		if err := p.store.Add(ctx, fresh, false); err != nil {
			return nil, err
		}
	}
	result.Added = len(fresh)

	logger.Info("ingested source", "source_id", result.SourceID, "added", result.Added, "skipped", result.Skipped)
	return result, nil
}

// unseen returns the entries of chunks not yet stored under scope.
func (p *Pipeline) unseen(ctx context.Context, chunks []core.Chunk, scope core.Scope) ([]*core.Entry, error) {
	entries := make([]*core.Entry, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		id := core.EntryID(c.ID, scope)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		entries = append(entries, &core.Entry{ID: id, Text: c.Text, Metadata: c.Metadata})
	}

	existing, err := p.store.Exists(ctx, ids, scope)
	if err != nil {
		return nil, err
	}
	if existing.Len() == 0 {
		return entries, nil
	}
	stored := make(map[string]bool, existing.Len())
	for _, id := range existing.IDs {
		stored[id] = true
	}
	fresh := entries[:0]
	for _, e := range entries {
		if !stored[e.ID] {
			fresh = append(fresh, e)
		}
	}
	return fresh, nil
}

// Request is one source of a bulk ingest.
type Request struct {
	Source   core.Source
	Scope    core.Scope
	Override *resolver.Override
}

func (r Request) item() string {
	if r.Source.Kind == core.KindQnAPair {
		return r.Source.Question
	}
	return r.Source.Identifier
}

// IngestAll ingests requests concurrently on the pipeline's worker pool.
// Results are in request order; the entry of a failed request is nil and
// its error is part of the joined error returned.
func (p *Pipeline) IngestAll(ctx context.Context, requests []Request, opts ...IngestOption) ([]*Result, error) {
	results := make([]*Result, len(requests))
	errs := make([]error, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		callOpts := append(slices.Clip(opts), WithOverride(req.Override))
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			res, err := p.Ingest(ctx, req.Source, req.Scope, callOpts...)
			if err != nil {
				errs[i] = core.NewBatchItemError(req.item(), err)
				return
			}
			results[i] = res
		})
		if err != nil {
			wg.Done()
			errs[i] = core.NewBatchItemError(req.item(), fmt.Errorf("submitting: %w", err))
		}
	}
	wg.Wait()
	return results, errors.Join(errs...)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
