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


// Package storage provides the vector store abstraction for groundwork.
//
// A Backend is a concrete vector database (badger, Elasticsearch,
// OpenSearch, Postgres with pgvector). VectorStore wraps a Backend with the
// behavior every backend shares: embedding texts before writing, batching
// writes, pacing batches, checking vector dimensions and requiring a scope
// on every read and delete.
//
// # Constructor Return Type Pattern
//
// Backend packages return their concrete type from Open/New functions so
// callers can reach backend-specific helpers; the rest of groundwork only
// sees the storage.Backend interface.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := storage.NewVectorStore(backend, embedder, storage.WithDimension(768))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//	if err := store.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.NewMemoryBackend()
//
// # Scoping
//
// Writes carry their scope in entry metadata. Exists, Query and Delete fail
// with core.ErrMissingScope when called without one, and backends apply the
// scope as a pre-filter so the top-k budget is spent only on in-scope
// entries.
//
// # Consistency
//
// Backend.Write returns once its entries are searchable. Across backends
// deletes and writes made by other processes are eventually consistent.
//
// # Thread Safety
//
// VectorStore and all Backend implementations are safe for concurrent use.
package storage
