package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/poiesic/groundwork/core"
)

// LangchainEmbedder adapts a langchaingo embeddings.Embedder to Embedder.
// Requests are batched, retried with backoff and checked against the
// declared dimension.
type LangchainEmbedder struct {
	inner  embeddings.Embedder
	config Config
	logger *slog.Logger
}

// NewLangchainEmbedder wraps inner. The config must already be validated.
func NewLangchainEmbedder(inner embeddings.Embedder, config *Config, logger *slog.Logger) *LangchainEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangchainEmbedder{
		inner:  inner,
		config: *config,
		logger: logger,
	}
}

// Dimension returns the declared vector length.
func (e *LangchainEmbedder) Dimension() int {
	return e.config.Dimension
}

// EmbedText generates a vector embedding for a single text string.
func (e *LangchainEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings.
// The result has one vector per input, in input order.
func (e *LangchainEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings", "count", len(texts), "model", e.config.Model)

	vectors, err := EmbedBatched(ctx, texts, e.config.BatchSize, e.embedBatch)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if err := CheckDimensions(vectors, len(texts), e.config.Dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *LangchainEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = e.inner.EmbedDocuments(ctx, batch)
		return err
	}, e.config.MaxRetries, e.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	return vectors, nil
}
