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


// Package chunker splits loaded records into bounded text segments.
//
// Splitting is recursive by decreasing granularity: paragraphs, then lines,
// then sentences, then words, then fixed-width runs of characters, until
// every segment fits the configured chunk size. Each chunk carries the
// metadata of its record merged with the caller's scope and a deterministic
// id derived from the source id, the chunk index and the text.
package chunker

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/groundwork/core"
)

// Separators are tried in order, coarsest first.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits the records of one source into chunks.
type Chunker interface {
	Split(result *core.LoadResult, kind core.Kind, scope core.Scope) ([]core.Chunk, error)
}

// Config bounds chunk lengths, measured in characters.
type Config struct {
	ChunkSize    int `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" toml:"chunk_overlap"`
}

// DefaultConfig returns the chunk bounds used for kind when nothing is configured.
func DefaultConfig(kind core.Kind) Config {
	switch kind {
	case core.KindText, core.KindQnAPair:
		return Config{ChunkSize: 300}
	case core.KindPDFFile, core.KindCSV, core.KindJSON:
		return Config{ChunkSize: 1000}
	default:
		return Config{ChunkSize: 2000}
	}
}

// Validate checks the chunk bounds.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", core.ErrConfiguration, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			core.ErrConfiguration, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Option configures a RecursiveChunker.
type Option func(*RecursiveChunker)

// WithConfig overrides the per-kind defaults. Zero fields keep the default.
func WithConfig(cfg Config) Option {
	return func(c *RecursiveChunker) {
		c.override = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *RecursiveChunker) {
		c.logger = logger
	}
}

// RecursiveChunker is the Chunker used for every source kind.
type RecursiveChunker struct {
	override Config
	logger   *slog.Logger
}

// New creates a RecursiveChunker.
// It fails with core.ErrConfiguration when the override is invalid for any kind.
func New(opts ...Option) (*RecursiveChunker, error) {
	c := &RecursiveChunker{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chunker")
	for _, kind := range core.Kinds {
		if err := c.ConfigFor(kind).Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ConfigFor returns the effective bounds for kind.
func (c *RecursiveChunker) ConfigFor(kind core.Kind) Config {
	cfg := DefaultConfig(kind)
	if c.override.ChunkSize > 0 {
		cfg.ChunkSize = c.override.ChunkSize
	}
	if c.override.ChunkOverlap > 0 {
		cfg.ChunkOverlap = c.override.ChunkOverlap
	}
	return cfg
}

// Split chunks every record of result. Chunk indexes run across all records
// so that chunk ids are unique within the source. Empty segments are dropped.
func (c *RecursiveChunker) Split(result *core.LoadResult, kind core.Kind, scope core.Scope) ([]core.Chunk, error) {
	cfg := c.ConfigFor(kind)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		textsplitter.WithSeparators(Separators),
	)

	var chunks []core.Chunk
	for _, record := range result.Records {
		texts, err := splitter.SplitText(record.Content)
		if err != nil {
			return nil, fmt.Errorf("split record: %w", err)
		}
		for _, text := range enforceBound(texts, cfg.ChunkSize+cfg.ChunkOverlap) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			index := len(chunks)
			meta := record.Metadata.Clone()
			meta[core.MetaDocID] = result.SourceID
			meta[core.MetaDataType] = kind.String()
			meta[core.MetaChunkIndex] = strconv.Itoa(index)
			meta = meta.Merge(scope)

			chunks = append(chunks, core.Chunk{
				ID:       core.ChunkID(result.SourceID, index, text),
				SourceID: result.SourceID,
				Index:    index,
				Text:     text,
				Metadata: meta,
			})
		}
	}

	c.logger.Debug("split source", "source_id", result.SourceID, "kind", kind,
		"records", len(result.Records), "chunks", len(chunks), "chunk_size", cfg.ChunkSize)
	return chunks, nil
}

// enforceBound cuts any segment longer than limit characters into fixed-width pieces.
func enforceBound(texts []string, limit int) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		for utf8.RuneCountInString(t) > limit {
			n := 0
			for i := range t {
				if n == limit {
					out = append(out, t[:i])
					t = t[i:]
					break
				}
				n++
			}
		}
		out = append(out, t)
	}
	return out
}
