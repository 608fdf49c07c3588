// Package ingestion turns sources into stored, embedded chunks.
//
// A Pipeline resolves a source to its loader and chunker, loads and chunks
// it in memory, drops the chunks already stored under the caller's scope and
// hands the rest to the vector store, which embeds them before writing
// anything. A failure before the store write leaves nothing behind.
//
// Deduplication is a read followed by a write and is not transactional: two
// concurrent Ingest calls for the same source and scope may both see a chunk
// as absent and both write it. Entry ids are deterministic, so the second
// write overwrites the first rather than duplicating it on backends that
// upsert by id.
package ingestion
