package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/groundwork/core"
)

// knownDimensions maps embedding models to the vector length they produce.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"embeddinggemma":         768,
	"bge-m3":                 1024,
	"snowflake-arctic-embed": 1024,
}

// KnownDimension returns the vector length of a known model, or 0.
// Ollama style tags ("nomic-embed-text:latest") are ignored.
func KnownDimension(model string) int {
	name, _, _ := strings.Cut(strings.ToLower(model), ":")
	return knownDimensions[name]
}

// CheckDimensions verifies that exactly want vectors of length dim were returned.
// Vectors are never padded or truncated.
func CheckDimensions(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d embeddings, received %d", core.ErrEmbedding, want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: %w: embedding %d has %d, want %d",
				core.ErrEmbedding, core.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

// EmbedBatched splits texts into batches of size and calls fn for each batch,
// concatenating the results in input order.
func EmbedBatched(ctx context.Context, texts []string, size int, fn func(ctx context.Context, batch []string) ([][]float32, error)) ([][]float32, error) {
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vectors, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}
