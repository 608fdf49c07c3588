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


package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/groundwork/core"
)

// Embedding backend identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds configuration for embedding backends.
type Config struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible API) or "ollama".
	Provider string `yaml:"provider" toml:"provider"`

	// Host is the base URL of the embedding service.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434"
	Host string `yaml:"host" toml:"host"`

	// Model is the embedding model identifier.
	// Example: "text-embedding-3-small", "nomic-embed-text"
	Model string `yaml:"model" toml:"model"`

	// APIKey authenticates against cloud providers. Local services accept "none".
	APIKey string `yaml:"api_key" toml:"api_key"`

	// Dimension is the vector length the model produces.
	// Zero means look it up in the known model table.
	Dimension int `yaml:"dimension" toml:"dimension"`

	// BatchSize is the number of texts sent per embedding request.
	// Default: 64
	BatchSize int `yaml:"batch_size" toml:"batch_size"`

	// MaxRetries is the number of attempts per embedding request.
	// Default: 3
	MaxRetries int `yaml:"max_retries" toml:"max_retries"`

	// RetryDelay is the base delay of the exponential backoff between attempts.
	// Default: 500ms
	RetryDelay time.Duration `yaml:"retry_delay" toml:"retry_delay"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the embedding backend.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithHost sets the embedding service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimension sets the declared vector dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithBatchSize sets the number of texts per embedding request.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithRetries sets the retry attempts and base backoff delay.
func WithRetries(attempts int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = attempts
		c.RetryDelay = delay
	}
}

// DefaultConfig returns a Config for a local OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderOpenAI,
		Host:       "http://localhost:11434/v1",
		Model:      "nomic-embed-text",
		APIKey:     "none",
		BatchSize:  64,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("https://api.openai.com/v1"),
//	    WithModel("text-embedding-3-small"),
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get the /v1 suffix most servers require (Ollama,
// LocalAI, vLLM); Ollama's native API takes the bare host.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Host != "" {
		c.Host = strings.TrimSuffix(c.Host, "/")
	}
	if c.Provider == ProviderOpenAI && c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = c.Host + "/v1"
	}
	if c.Dimension == 0 {
		c.Dimension = KnownDimension(c.Model)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
	case "":
		return fmt.Errorf("%w: ai config: Provider is required", core.ErrConfiguration)
	default:
		return fmt.Errorf("%w: ai config: unknown provider %q", core.ErrConfiguration, c.Provider)
	}
	if c.Host == "" {
		return fmt.Errorf("%w: ai config: Host is required", core.ErrConfiguration)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: ai config: Model is required", core.ErrConfiguration)
	}
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("%w: ai config: APIKey is required for provider %q", core.ErrConfiguration, c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: ai config: Dimension is required for unknown model %q", core.ErrConfiguration, c.Model)
	}
	return nil
}
