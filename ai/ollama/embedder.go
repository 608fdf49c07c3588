// Package ollama implements ai.Embedder against a local Ollama daemon using
// its native embedding API.
package ollama

import (
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
)

// NewEmbedder creates an embedder for config.Model served at config.Host
// (for example http://localhost:11434).
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Provider != ai.ProviderOllama {
		return nil, fmt.Errorf("%w: ollama embedder: provider is %q", core.ErrConfiguration, config.Provider)
	}

	client, err := ollama.New(
		ollama.WithServerURL(config.Host),
		ollama.WithModel(config.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama client: %w", core.ErrDependencyUnavailable, err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embedder: %w", core.ErrConfiguration, err)
	}

	return ai.NewLangchainEmbedder(embedder, config, slog.Default().With("component", "ollama-embedder")), nil
}
