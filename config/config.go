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


// Package config reads the groundwork configuration file.
//
// The file is YAML (.yaml, .yml) or TOML (.toml). Values not present in the
// file keep their defaults, and a missing file yields the defaults. After the
// file is read, GROUNDWORK_* environment variables override individual
// settings; LoadDotEnv can populate the environment from a .env file first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/chunker"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/loader"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/elasticsearch"
	"github.com/poiesic/groundwork/storage/opensearch"
	"github.com/poiesic/groundwork/storage/pgvector"
)

// Store providers.
const (
	StoreBadger        = "badger"
	StoreElasticsearch = "elasticsearch"
	StoreOpenSearch    = "opensearch"
	StorePGVector      = "pgvector"
)

// DefaultCollection names the collection when none is configured.
const DefaultCollection = "groundwork"

// Config is the root configuration.
type Config struct {
	Embedder EmbedderConfig `yaml:"embedder" toml:"embedder"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
	Chunker  chunker.Config `yaml:"chunker" toml:"chunker"`
	Loader   LoaderConfig   `yaml:"loader" toml:"loader"`
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Provider   string   `yaml:"provider" toml:"provider"`
	Host       string   `yaml:"host" toml:"host"`
	Model      string   `yaml:"model" toml:"model"`
	APIKey     string   `yaml:"api_key" toml:"api_key"`
	Dimension  int      `yaml:"dimension" toml:"dimension"`
	BatchSize  int      `yaml:"batch_size" toml:"batch_size"`
	MaxRetries int      `yaml:"max_retries" toml:"max_retries"`
	RetryDelay Duration `yaml:"retry_delay" toml:"retry_delay"`
}

// AI converts the section into an embedder configuration.
func (c EmbedderConfig) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.Provider),
		ai.WithHost(c.Host),
		ai.WithModel(c.Model),
		ai.WithAPIKey(c.APIKey),
		ai.WithDimension(c.Dimension),
		ai.WithBatchSize(c.BatchSize),
		ai.WithRetries(c.MaxRetries, c.RetryDelay.Std()),
	)
}

// StoreConfig selects and configures the vector store.
type StoreConfig struct {
	Provider string `yaml:"provider" toml:"provider"`
	// Collection names the badger collection, the search index or the
	// Postgres table unless the provider section names one itself.
	Collection string `yaml:"collection" toml:"collection"`
	// Dimension is the vector length of the collection. Zero means the
	// embedder's dimension.
	Dimension  int      `yaml:"dimension" toml:"dimension"`
	BatchSize  int      `yaml:"batch_size" toml:"batch_size"`
	BatchDelay Duration `yaml:"batch_delay" toml:"batch_delay"`

	Badger        BadgerConfig         `yaml:"badger" toml:"badger"`
	Elasticsearch elasticsearch.Config `yaml:"elasticsearch" toml:"elasticsearch"`
	OpenSearch    opensearch.Config    `yaml:"opensearch" toml:"opensearch"`
	PGVector      pgvector.Config      `yaml:"pgvector" toml:"pgvector"`
}

// BadgerConfig locates the embedded store.
type BadgerConfig struct {
	Path     string `yaml:"path" toml:"path"`
	InMemory bool   `yaml:"in_memory" toml:"in_memory"`
}

// Options converts the batching settings into vector store options.
func (c StoreConfig) Options() []storage.Option {
	opts := []storage.Option{
		storage.WithBatchSize(c.BatchSize),
		storage.WithBatchDelay(c.BatchDelay.Std()),
	}
	if c.Dimension > 0 {
		opts = append(opts, storage.WithDimension(c.Dimension))
	}
	return opts
}

// ElasticsearchConfig returns the Elasticsearch section with the collection
// applied as the index name.
func (c StoreConfig) ElasticsearchConfig() elasticsearch.Config {
	cfg := c.Elasticsearch
	if cfg.Index == "" {
		cfg.Index = c.Collection
	}
	return cfg
}

// OpenSearchConfig returns the OpenSearch section with the collection applied
// as the index name.
func (c StoreConfig) OpenSearchConfig() opensearch.Config {
	cfg := c.OpenSearch
	if cfg.Index == "" {
		cfg.Index = c.Collection
	}
	return cfg
}

// PGVectorConfig returns the pgvector section with the collection applied as
// the table name.
func (c StoreConfig) PGVectorConfig() pgvector.Config {
	cfg := c.PGVector
	if cfg.Table == "" {
		cfg.Table = c.Collection
	}
	return cfg
}

// LoaderConfig holds the loader settings.
type LoaderConfig struct {
	HTTPTimeout       Duration `yaml:"http_timeout" toml:"http_timeout"`
	Workers           int      `yaml:"workers" toml:"workers"`
	UserAgent         string   `yaml:"user_agent" toml:"user_agent"`
	Recursive         bool     `yaml:"recursive" toml:"recursive"`
	Extensions        []string `yaml:"extensions" toml:"extensions"`
	TranscriptURL     string   `yaml:"transcript_url" toml:"transcript_url"`
	Language          string   `yaml:"language" toml:"language"`
	RequestsPerSecond float64  `yaml:"requests_per_second" toml:"requests_per_second"`
}

// Loader converts the section into a loader configuration.
func (c LoaderConfig) Loader() loader.Config {
	return loader.Config{
		HTTPTimeout:       c.HTTPTimeout.Std(),
		Workers:           c.Workers,
		UserAgent:         c.UserAgent,
		Recursive:         c.Recursive,
		Extensions:        c.Extensions,
		TranscriptURL:     c.TranscriptURL,
		Language:          c.Language,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// Default returns the configuration used when no file is present: a local
// OpenAI-compatible embedder and a badger store under the user's home.
func Default() *Config {
	emb := ai.DefaultConfig()
	ld := loader.DefaultConfig()
	return &Config{
		Embedder: EmbedderConfig{
			Provider:   emb.Provider,
			Host:       emb.Host,
			Model:      emb.Model,
			APIKey:     emb.APIKey,
			BatchSize:  emb.BatchSize,
			MaxRetries: emb.MaxRetries,
			RetryDelay: Duration(emb.RetryDelay),
		},
		Store: StoreConfig{
			Provider:   StoreBadger,
			Collection: DefaultCollection,
			BatchSize:  storage.MaxBatchSize,
			BatchDelay: Duration(storage.DefaultBatchDelay),
			Badger:     BadgerConfig{Path: defaultStorePath()},
		},
		Loader: LoaderConfig{
			HTTPTimeout:   Duration(ld.HTTPTimeout),
			Workers:       ld.Workers,
			UserAgent:     ld.UserAgent,
			Recursive:     ld.Recursive,
			TranscriptURL: ld.TranscriptURL,
			Language:      ld.Language,
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".groundwork", "store")
	}
	return filepath.Join(home, ".groundwork", "store")
}

// Load reads the configuration at path and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %w", core.ErrConfiguration, path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: unsupported config format %q", core.ErrConfiguration, ext)
	}
	if err != nil {
		return fmt.Errorf("%w: parsing %s: %w", core.ErrConfiguration, path, err)
	}
	return nil
}

// LoadDotEnv loads environment variables from the given .env files, or from
// ./.env when none are given. Missing files are ignored; variables already
// set in the environment are kept.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: loading .env: %w", core.ErrConfiguration, err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup. OPENAI_API_KEY is used when no embedder key is set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("GROUNDWORK_EMBEDDER_PROVIDER", &c.Embedder.Provider)
	str("GROUNDWORK_EMBEDDER_HOST", &c.Embedder.Host)
	str("GROUNDWORK_EMBEDDER_MODEL", &c.Embedder.Model)
	if key, ok := lookup("GROUNDWORK_EMBEDDER_API_KEY"); ok && key != "" {
		c.Embedder.APIKey = key
	} else if key, ok := lookup("OPENAI_API_KEY"); ok && key != "" && (c.Embedder.APIKey == "" || c.Embedder.APIKey == "none") {
		c.Embedder.APIKey = key
	}

	str("GROUNDWORK_STORE_PROVIDER", &c.Store.Provider)
	str("GROUNDWORK_STORE_COLLECTION", &c.Store.Collection)
	str("GROUNDWORK_BADGER_PATH", &c.Store.Badger.Path)
	list("GROUNDWORK_ELASTICSEARCH_ADDRESSES", &c.Store.Elasticsearch.Addresses)
	str("GROUNDWORK_ELASTICSEARCH_API_KEY", &c.Store.Elasticsearch.APIKey)
	str("GROUNDWORK_ELASTICSEARCH_CLOUD_ID", &c.Store.Elasticsearch.CloudID)
	list("GROUNDWORK_OPENSEARCH_ADDRESSES", &c.Store.OpenSearch.Addresses)
	str("GROUNDWORK_OPENSEARCH_USERNAME", &c.Store.OpenSearch.Username)
	str("GROUNDWORK_OPENSEARCH_PASSWORD", &c.Store.OpenSearch.Password)
	str("GROUNDWORK_PGVECTOR_DSN", &c.Store.PGVector.DSN)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration is complete for the selected providers.
func (c *Config) Validate() error {
	if err := c.Embedder.AI().Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Chunker.ChunkSize > 0 {
		if err := c.Chunker.Validate(); err != nil {
			return err
		}
	} else if c.Chunker.ChunkSize < 0 || c.Chunker.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunker: negative chunk bounds", core.ErrConfiguration)
	}
	if c.Loader.Workers < 0 {
		return fmt.Errorf("%w: loader: workers must not be negative", core.ErrConfiguration)
	}
	if c.Loader.HTTPTimeout.Std() < 0 {
		return fmt.Errorf("%w: loader: http_timeout must not be negative", core.ErrConfiguration)
	}
	return nil
}

// Validate checks the store section is complete for its provider.
func (c *StoreConfig) Validate() error {
	if c.Dimension < 0 {
		return fmt.Errorf("%w: store: dimension must not be negative", core.ErrConfiguration)
	}
	if c.BatchSize < 0 || c.BatchSize > storage.MaxBatchSize {
		return fmt.Errorf("%w: store: batch_size must be between 0 and %d, got %d",
			core.ErrConfiguration, storage.MaxBatchSize, c.BatchSize)
	}
	if c.BatchDelay.Std() < 0 || c.BatchDelay.Std() > time.Minute {
		return fmt.Errorf("%w: store: batch_delay %s out of range", core.ErrConfiguration, c.BatchDelay)
	}

	switch c.Provider {
	case StoreBadger:
		if c.Badger.Path == "" && !c.Badger.InMemory {
			return fmt.Errorf("%w: store: badger path is required", core.ErrConfiguration)
		}
	case StoreElasticsearch:
		if len(c.Elasticsearch.Addresses) == 0 && c.Elasticsearch.CloudID == "" {
			return fmt.Errorf("%w: store: elasticsearch addresses or cloud_id required", core.ErrConfiguration)
		}
	case StoreOpenSearch:
		if len(c.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("%w: store: opensearch addresses required", core.ErrConfiguration)
		}
	case StorePGVector:
		if c.PGVector.DSN == "" {
			return fmt.Errorf("%w: store: pgvector dsn required", core.ErrConfiguration)
		}
	case "":
		return fmt.Errorf("%w: store: provider is required", core.ErrConfiguration)
	default:
		return fmt.Errorf("%w: store: unknown provider %q", core.ErrConfiguration, c.Provider)
	}
	return nil
}
