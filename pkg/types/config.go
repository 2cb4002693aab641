package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bes-catalog/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// CatalogConfig holds settings for the SQLite paper catalog.
type CatalogConfig struct {
	// DBPath is the SQLite database file (default "data/catalog.db").
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// MaxResults is the default page size for list queries (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// FetchConfig holds settings for pulling papers from bibliographic APIs.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Sources lists the enabled sources in query order (crossref, pubmed, arxiv).
	Sources []string `json:"sources" yaml:"sources" mapstructure:"sources"`

	// MaxResults is the maximum number of records requested per source (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// RequestDelay is the fixed delay between consecutive requests to one
	// source, used to stay under third-party rate limits (default 1s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay" mapstructure:"request_delay"`

	// CrossRefMailto is sent to CrossRef for polite-pool access.
	CrossRefMailto string `json:"crossref_mailto,omitempty" yaml:"crossref_mailto,omitempty" mapstructure:"crossref_mailto"`

	// PubMedAPIKey raises the NCBI E-utilities rate limit.
	PubMedAPIKey string `json:"pubmed_api_key,omitempty" yaml:"pubmed_api_key,omitempty" mapstructure:"pubmed_api_key"`
}

// ExtractionBackend selects how parameters are pulled from abstracts.
type ExtractionBackend string

const (
	BackendRegex ExtractionBackend = "regex"
	BackendLLM   ExtractionBackend = "llm"
)

// LLMConfig holds settings for the local LLM extraction backend.
type LLMConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Endpoint is the base URL of the Ollama server (default "http://localhost:11434").
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Model is the model identifier (e.g. "llama3.1:8b").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// MaxRetries is the number of retry attempts for failed calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ExtractionConfig holds settings for the batch extraction run.
type ExtractionConfig struct {
	// Backend is regex (default) or llm.
	Backend ExtractionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Limit caps the number of papers processed per run (0 = no limit).
	Limit int `json:"limit" yaml:"limit" mapstructure:"limit"`

	// Workers is the number of concurrent extraction workers (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// Force re-extracts papers that already carry extracted parameters.
	Force bool `json:"force" yaml:"force" mapstructure:"force"`

	LLM LLMConfig `json:"llm" yaml:"llm" mapstructure:"llm"`
}

// ScoringConfig holds settings for the batch relevance scoring run.
type ScoringConfig struct {
	// Limit caps the number of papers scored per run (0 = no limit).
	Limit int `json:"limit" yaml:"limit" mapstructure:"limit"`
}

// ServerConfig holds REST API settings.
type ServerConfig struct {
	Address         string        `json:"address" yaml:"address" mapstructure:"address"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// MetricsPath is where Prometheus metrics are served (default "/metrics").
	MetricsPath string `json:"metrics_path" yaml:"metrics_path" mapstructure:"metrics_path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all component configurations.
type Config struct {
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Scoring    ScoringConfig    `json:"scoring" yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
}
