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


package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/groundwork/core"
)

// Loader fetches or reads a source and normalizes it into records.
// Implementations must be safe for concurrent use.
type Loader interface {
	Load(ctx context.Context, source core.Source) (*core.LoadResult, error)
}

// Resolver selects the loader for a file discovered while walking a directory.
type Resolver interface {
	LoaderForPath(path string) (Loader, core.Kind, error)
}

const (
	// DefaultWorkers is the fan-out pool size of batch loaders.
	DefaultWorkers = 10
	// DefaultHTTPTimeout bounds every HTTP request of the shared client.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultUserAgent is sent with every HTTP request.
	DefaultUserAgent = "groundwork/1.0 (+https://github.com/poiesic/groundwork)"
	// DefaultTranscriptURL serves timed-text transcripts.
	DefaultTranscriptURL = "https://video.google.com/timedtext"

	maxResponseBytes = 32 << 20
)

// SharedHTTPClient is the connection-pooled client reused by every web loader
// in the process. It is safe for concurrent use.
var SharedHTTPClient = NewHTTPClient(DefaultHTTPTimeout)

// NewHTTPClient creates a pooled client with the given request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Config holds loader settings read from the configuration file.
type Config struct {
	HTTPTimeout   time.Duration `yaml:"http_timeout" toml:"http_timeout"`
	Workers       int           `yaml:"workers" toml:"workers"`
	UserAgent     string        `yaml:"user_agent" toml:"user_agent"`
	Recursive     bool          `yaml:"recursive" toml:"recursive"`
	Extensions    []string      `yaml:"extensions" toml:"extensions"`
	TranscriptURL string        `yaml:"transcript_url" toml:"transcript_url"`
	Language      string        `yaml:"language" toml:"language"`
	// RequestsPerSecond throttles batch fetches. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// DefaultConfig returns the loader defaults.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:   DefaultHTTPTimeout,
		Workers:       DefaultWorkers,
		UserAgent:     DefaultUserAgent,
		Recursive:     true,
		TranscriptURL: DefaultTranscriptURL,
		Language:      "en",
	}
}

// Options converts the config into loader options.
func (c Config) Options() []Option {
	opts := []Option{
		WithWorkers(c.Workers),
		WithUserAgent(c.UserAgent),
		WithRecursive(c.Recursive),
		WithExtensions(c.Extensions...),
		WithTranscriptURL(c.TranscriptURL),
		WithLanguage(c.Language),
		WithRateLimit(c.RequestsPerSecond),
	}
	if c.HTTPTimeout > 0 && c.HTTPTimeout != DefaultHTTPTimeout {
		opts = append(opts, WithHTTPClient(NewHTTPClient(c.HTTPTimeout)))
	}
	return opts
}

type options struct {
	client        *http.Client
	logger        *slog.Logger
	workers       int
	userAgent     string
	recursive     bool
	extensions    map[string]bool
	transcriptURL string
	language      string
	limiter       *rate.Limiter
	resolver      Resolver
}

// Option configures a loader.
type Option func(*options)

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkers sets the fan-out pool size of batch loaders.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithRecursive controls whether the directory loader descends into subdirectories.
func WithRecursive(recursive bool) Option {
	return func(o *options) {
		o.recursive = recursive
	}
}

// WithExtensions restricts the directory loader to files with these extensions.
// Extensions are matched case-insensitively, with or without the leading dot.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		if len(exts) == 0 {
			o.extensions = nil
			return
		}
		o.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			o.extensions[ext] = true
		}
	}
}

// WithTranscriptURL sets the timed-text endpoint used by the transcript loader.
func WithTranscriptURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.transcriptURL = u
		}
	}
}

// WithLanguage sets the transcript language.
func WithLanguage(lang string) Option {
	return func(o *options) {
		if lang != "" {
			o.language = lang
		}
	}
}

// WithRateLimit throttles batch fetches to rps requests per second.
// Zero or negative disables throttling.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		if rps > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			o.limiter = nil
		}
	}
}

// WithResolver sets the resolver the directory loader uses for each file.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

func newOptions(component string, opts []Option) options {
	o := options{
		client:        SharedHTTPClient,
		logger:        slog.Default(),
		workers:       DefaultWorkers,
		userAgent:     DefaultUserAgent,
		recursive:     true,
		transcriptURL: DefaultTranscriptURL,
		language:      "en",
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}

// fetch issues a GET request and returns the body. Non-2xx responses fail with core.ErrLoad.
func (o *options) fetch(ctx context.Context, url string) ([]byte, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrLoad, url, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrLoad, url, err)
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrLoad, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: unexpected status %s", core.ErrLoad, url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", core.ErrLoad, url, err)
	}
	return body, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// contents returns the content of every record, in order.
func contents(records []core.LoadedRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Content
	}
	return out
}
