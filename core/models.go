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


package core

import (
	"encoding/hex"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// Reserved metadata keys written by the pipeline itself.
const (
	// MetaURL holds the source URL or path of the record a chunk came from.
	MetaURL = "url"
	// MetaDocID holds the content-addressed source id.
	MetaDocID = "doc_id"
	// MetaDataType holds the Kind of the source.
	MetaDataType = "data_type"
	// MetaChunkIndex holds the position of the chunk within its source.
	MetaChunkIndex = "chunk_index"
)

// LocalSourceURL is the url recorded for in-memory sources (text, Q&A pairs).
const LocalSourceURL = "local"

// hashHex returns the hex encoded BLAKE2b-256 digest of the given parts.
func hashHex(parts ...string) string {
	h, _ := blake2b.New(32, nil)
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SourceID generates the content-addressed id of a loaded source.
// Identical content from the same identifier always yields the same id.
func SourceID(identifier string, contents ...string) string {
	parts := make([]string, 0, len(contents)*2+1)
	for i, c := range contents {
		if i > 0 {
			parts = append(parts, "\n")
		}
		parts = append(parts, c)
	}
	parts = append(parts, identifier)
	return hashHex(parts...)
}

// ChunkID generates the deterministic id of a chunk from its parent source id,
// its index within the source and its text.
func ChunkID(sourceID string, index int, text string) string {
	return hashHex(sourceID, "\x00", strconv.Itoa(index), "\x00", text)
}

// EntryID generates the store id of a chunk ingested under scope.
// The same chunk added under two scopes yields two entries, so one tenant
// can never overwrite another's.
func EntryID(chunkID string, scope Scope) string {
	return hashHex(chunkID, "\x00", scope.String())
}

// Metadata is the flat string map attached to records, chunks and entries.
type Metadata map[string]string

// Clone returns a copy of the metadata. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m overlaid with every key of other.
func (m Metadata) Merge(other map[string]string) Metadata {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Source identifies a piece of knowledge to ingest.
// Identifier is a URL, a filesystem path or literal text. Q&A pairs carry
// Question and Answer instead. Kind may be empty until resolved.
type Source struct {
	Kind       Kind
	Identifier string
	Question   string
	Answer     string
}

// NewSource creates a source with an explicit kind. An empty kind is inferred later.
func NewSource(identifier string, kind Kind) Source {
	return Source{Kind: kind, Identifier: identifier}
}

// TextSource wraps literal text.
func TextSource(text string) Source {
	return Source{Kind: KindText, Identifier: text}
}

// QnASource wraps a question and answer pair.
func QnASource(question, answer string) Source {
	return Source{Kind: KindQnAPair, Question: question, Answer: answer}
}

// LoadedRecord is a single normalized piece of content produced by a loader.
type LoadedRecord struct {
	Content  string
	Metadata Metadata
}

// LoadResult is the output of a loader.
// Failures holds the per-item errors of a batch load (sitemap links,
// directory files); they are reported but do not fail the load.
type LoadResult struct {
	SourceID string
	Records  []LoadedRecord
	Failures []*BatchItemError
}

// Chunk is a bounded text segment derived from a loaded source.
type Chunk struct {
	ID       string
	SourceID string
	Index    int
	Text     string
	Metadata Metadata
}

// Entry is the unit persisted in a vector store.
type Entry struct {
	ID       string
	Text     string
	Metadata Metadata
	Vector   []float32
}

// Match is an entry returned by a similarity query, highest score first.
type Match struct {
	ID       string
	Text     string
	Metadata Metadata
	Score    float32
}

// Citation pairs retrieved content with its provenance.
type Citation struct {
	Content   string
	SourceURL string
	SourceID  string
}

// CitationFromMatch builds a citation from a query match.
func CitationFromMatch(m *Match) Citation {
	return Citation{
		Content:   m.Text,
		SourceURL: m.Metadata[MetaURL],
		SourceID:  m.Metadata[MetaDocID],
	}
}

// GetResult is the result of an existence lookup.
// IDs and Metadatas are parallel slices.
type GetResult struct {
	IDs       []string
	Metadatas []Metadata
}

// Len returns the number of entries found.
func (r *GetResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.IDs)
}

// SourceInfo describes a source currently embedded in a store.
type SourceInfo struct {
	SourceID string
	URL      string
	Kind     Kind
}
