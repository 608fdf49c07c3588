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


package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
)

const (
	// MaxBatchSize caps the number of entries written per backend call.
	MaxBatchSize = 100
	// DefaultBatchDelay is the minimum pause between two batch writes.
	DefaultBatchDelay = 100 * time.Millisecond
	// DefaultTopK is the number of matches returned when none is requested.
	DefaultTopK = 1
)

// BatchObserver is notified after every batch write with the number of
// entries written so far and the total of the Add call.
type BatchObserver func(written, total int)

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithDimension sets the vector dimension of the collection.
// Zero uses the embedder's dimension.
func WithDimension(dim int) Option {
	return func(s *VectorStore) {
		s.dimension = dim
	}
}

// WithBatchSize sets the entries per batch write, capped at MaxBatchSize.
func WithBatchSize(size int) Option {
	return func(s *VectorStore) {
		if size > 0 {
			s.batchSize = min(size, MaxBatchSize)
		}
	}
}

// WithBatchDelay sets the minimum pause between batch writes.
func WithBatchDelay(delay time.Duration) Option {
	return func(s *VectorStore) {
		s.batchDelay = delay
	}
}

// WithBatchObserver registers a progress callback for batch writes.
func WithBatchObserver(fn BatchObserver) Option {
	return func(s *VectorStore) {
		s.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) {
		s.logger = logger
	}
}

// VectorStore embeds, batches and validates entries on top of a Backend.
// Every read and delete requires a scope.
type VectorStore struct {
	backend    Backend
	embedder   ai.Embedder
	dimension  int
	batchSize  int
	batchDelay time.Duration
	limiter    *rate.Limiter
	observer   BatchObserver
	logger     *slog.Logger

	initialized atomic.Bool
}

// NewVectorStore creates a VectorStore. Call Initialize before use.
func NewVectorStore(backend Backend, embedder ai.Embedder, opts ...Option) (*VectorStore, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	s := &VectorStore{
		backend:    backend,
		embedder:   embedder,
		batchSize:  MaxBatchSize,
		batchDelay: DefaultBatchDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dimension == 0 {
		s.dimension = embedder.Dimension()
	}
	limit := rate.Inf
	if s.batchDelay > 0 {
		limit = rate.Every(s.batchDelay)
	}
	s.limiter = rate.NewLimiter(limit, 1)
	s.logger = s.logger.With("component", "vector-store")
	return s, nil
}

// Dimension returns the vector dimension of the collection.
func (s *VectorStore) Dimension() int {
	return s.dimension
}

// Initialize checks that the embedder produces vectors of the collection's
// dimension and creates the collection if absent. It is idempotent.
func (s *VectorStore) Initialize(ctx context.Context) error {
	if s.dimension <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive, got %d", core.ErrConfiguration, s.dimension)
	}
	if got := s.embedder.Dimension(); got != s.dimension {
		return fmt.Errorf("%w: %w: embedder produces %d, collection expects %d",
			core.ErrConfiguration, core.ErrDimensionMismatch, got, s.dimension)
	}
	if err := s.backend.Initialize(ctx, s.dimension); err != nil {
		return err
	}
	s.initialized.Store(true)
	s.logger.Debug("initialized collection", "dimension", s.dimension)
	return nil
}

func (s *VectorStore) checkReady() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

// Exists returns the ids and metadata of entries matching scope, restricted
// to ids when given.
func (s *VectorStore) Exists(ctx context.Context, ids []string, scope core.Scope) (*core.GetResult, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.backend.Get(ctx, Filter{IDs: ids, Scope: scope})
}

// Add writes entries in sequential batches. Unless skipEmbedding is set,
// vectors are computed from the entry texts first; an embedding failure
// leaves nothing written. Batch N+1 is not sent until batch N is written
// and visible, and batches are spaced by at least the batch delay.
func (s *VectorStore) Add(ctx context.Context, entries []*core.Entry, skipEmbedding bool) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if !skipEmbedding {
		if err := s.embed(ctx, entries); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := core.ValidateEntry(e, s.dimension); err != nil {
			return err
		}
	}

	total := len(entries)
	for start := 0; start < total; start += s.batchSize {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
		}
		end := min(start+s.batchSize, total)
		if err := s.backend.Write(ctx, entries[start:end]); err != nil {
			return err
		}
		s.logger.Debug("wrote batch", "from", start, "to", end, "total", total)
		if s.observer != nil {
			s.observer(end, total)
		}
	}
	return nil
}

func (s *VectorStore) embed(ctx context.Context, entries []*core.Entry) error {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if err := ai.CheckDimensions(vectors, len(entries), s.dimension); err != nil {
		return err
	}
	for i, e := range entries {
		e.Vector = vectors[i]
	}
	return nil
}

// Query embeds text and returns at most topK matches within scope.
// No match is an empty result, not an error.
func (s *VectorStore) Query(ctx context.Context, text string, topK int, scope core.Scope) ([]*core.Match, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.QueryVector(ctx, vector, topK, scope)
}

// QueryVector is Query with a precomputed vector.
func (s *VectorStore) QueryVector(ctx context.Context, vector []float32, topK int, scope core.Scope) ([]*core.Match, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: %w: query vector has %d, want %d",
			ErrInvalidQuery, core.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	matches, err := s.backend.Search(ctx, vector, topK, scope)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []*core.Match{}
	}
	return matches, nil
}

// Delete removes every entry matching scope and returns the number removed.
func (s *VectorStore) Delete(ctx context.Context, scope core.Scope) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	n, err := s.backend.DeleteWhere(ctx, scope)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("deleted entries", "scope", scope.String(), "count", n)
	return n, nil
}

// Count returns the number of entries in the collection.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	return s.backend.Count(ctx)
}

// Reset irreversibly removes every entry of the collection.
func (s *VectorStore) Reset(ctx context.Context) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	s.logger.Warn("resetting collection")
	return s.backend.Reset(ctx)
}

// Close closes the backend.
func (s *VectorStore) Close() error {
	s.initialized.Store(false)
	return s.backend.Close()
}
