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


// Package resolver binds a source to the loader and chunker that handle it.
//
// Resolution is a lookup in a static table from core.Kind to a loader
// constructor. Constructors run on first use and their loaders are reused
// afterwards, so kinds that are never ingested cost nothing. An explicit
// Override always wins over the table.
package resolver

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/poiesic/groundwork/chunker"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/loader"
)

type factory func(r *Resolver) loader.Loader

func fileFactory(format loader.FileFormat) factory {
	return func(r *Resolver) loader.Loader {
		return loader.NewFileLoader(format, r.loaderOpts...)
	}
}

var registry = map[core.Kind]factory{
	core.KindWebPage: func(r *Resolver) loader.Loader {
		return loader.NewWebPageLoader(r.loaderOpts...)
	},
	core.KindSitemap: func(r *Resolver) loader.Loader {
		return loader.NewSitemapLoader(r.loaderOpts...)
	},
	core.KindDirectory: func(r *Resolver) loader.Loader {
		return loader.NewDirectoryLoader(append(slices.Clip(r.loaderOpts), loader.WithResolver(r))...)
	},
	core.KindText: func(*Resolver) loader.Loader {
		return loader.NewTextLoader()
	},
	core.KindQnAPair: func(*Resolver) loader.Loader {
		return loader.NewQnALoader()
	},
	core.KindTextFile: fileFactory(loader.FormatText),
	core.KindMDX:      fileFactory(loader.FormatText),
	core.KindXML:      fileFactory(loader.FormatXML),
	core.KindJSON:     fileFactory(loader.FormatJSON),
	core.KindCSV:      fileFactory(loader.FormatCSV),
	core.KindPDFFile:  fileFactory(loader.FormatPDF),
	core.KindYoutubeVideo: func(r *Resolver) loader.Loader {
		return loader.NewTranscriptLoader(r.loaderOpts...)
	},
}

// Binding is a resolved (loader, chunker) pair for one source.
type Binding struct {
	Kind    core.Kind
	Loader  loader.Loader
	Chunker chunker.Chunker
}

// Override replaces parts of table-based resolution. Zero fields fall back to the table.
type Override struct {
	Kind    core.Kind
	Loader  loader.Loader
	Chunker chunker.Chunker
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLoaderOptions sets the options passed to every loader constructor.
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(r *Resolver) {
		r.loaderOpts = append(r.loaderOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// Resolver selects loaders and chunkers by source kind.
// It is safe for concurrent use.
type Resolver struct {
	chunker    chunker.Chunker
	loaderOpts []loader.Option
	logger     *slog.Logger

	mu      sync.Mutex
	loaders map[core.Kind]loader.Loader
}

// New creates a Resolver that pairs every kind with chunk.
func New(chunk chunker.Chunker, opts ...Option) *Resolver {
	r := &Resolver{
		chunker: chunk,
		logger:  slog.Default(),
		loaders: make(map[core.Kind]loader.Loader),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "resolver")
	return r
}

// Resolve binds source to a loader and chunker. The kind comes from the
// override, then the source, then detection from the identifier.
func (r *Resolver) Resolve(source core.Source, override *Override) (Binding, error) {
	if override == nil {
		override = &Override{}
	}
	kind := override.Kind
	if kind == "" {
		kind = source.Kind
	}
	if kind == "" {
		kind = DetectKind(source.Identifier)
	}

	b := Binding{Kind: kind, Loader: override.Loader, Chunker: override.Chunker}
	if b.Loader == nil {
		ld, err := r.LoaderFor(kind)
		if err != nil {
			return Binding{}, err
		}
		b.Loader = ld
	}
	if b.Chunker == nil {
		b.Chunker = r.chunker
	}
	return b, nil
}

// LoaderFor returns the memoized loader of kind, constructing it on first use.
func (r *Resolver) LoaderFor(kind core.Kind) (loader.Loader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ld, ok := r.loaders[kind]; ok {
		return ld, nil
	}
	build, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedSourceKind, kind)
	}
	ld := build(r)
	r.loaders[kind] = ld
	r.logger.Debug("constructed loader", "kind", kind)
	return ld, nil
}

// LoaderForPath resolves a file found while walking a directory.
func (r *Resolver) LoaderForPath(path string) (loader.Loader, core.Kind, error) {
	kind := KindForPath(path)
	ld, err := r.LoaderFor(kind)
	if err != nil {
		return nil, "", err
	}
	return ld, kind, nil
}

// Constructed reports how many loaders have been built so far.
func (r *Resolver) Constructed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaders)
}
