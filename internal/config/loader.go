package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAddr            = ":8080"
	DefaultCacheCapacity   = 5
	DefaultBatchChunkSize  = 32
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultHTTPLogLevel    = "off"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = "5s"
)

// CORS configures cross-origin access to the HTTP API.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers" mapstructure:"allowed_headers"`
}

// S3 configures the client used for s3:// model locators. Empty fields fall
// back to the AWS SDK's default chain.
type S3 struct {
	Region   string `json:"region" yaml:"region" toml:"region" mapstructure:"region"`
	Profile  string `json:"profile" yaml:"profile" toml:"profile" mapstructure:"profile"`
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint" mapstructure:"endpoint"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr" mapstructure:"addr"`
	GRPCAddr string `json:"grpc_addr" yaml:"grpc_addr" toml:"grpc_addr" mapstructure:"grpc_addr"`

	// CatalogPath is a catalog file or a directory of catalog files layered
	// over the built-in models.
	CatalogPath string `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path" mapstructure:"catalog_path"`
	// CatalogDB is a sqlite database holding additional catalog entries.
	CatalogDB string `json:"catalog_db" yaml:"catalog_db" toml:"catalog_db" mapstructure:"catalog_db"`

	CacheCapacity  int   `json:"cache_capacity" yaml:"cache_capacity" toml:"cache_capacity" mapstructure:"cache_capacity"`
	BatchChunkSize int   `json:"batch_chunk_size" yaml:"batch_chunk_size" toml:"batch_chunk_size" mapstructure:"batch_chunk_size"`
	Warmup         *bool `json:"warmup" yaml:"warmup" toml:"warmup" mapstructure:"warmup"`

	// ShardConcurrency bounds parallel weight shard downloads per load.
	// Zero keeps the loader default.
	ShardConcurrency int `json:"shard_concurrency" yaml:"shard_concurrency" toml:"shard_concurrency" mapstructure:"shard_concurrency"`

	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level" mapstructure:"log_level"`
	LogFormat    string `json:"log_format" yaml:"log_format" toml:"log_format" mapstructure:"log_format"`
	HTTPLogLevel string `json:"http_log_level" yaml:"http_log_level" toml:"http_log_level" mapstructure:"http_log_level"`

	MaxBodyBytes    int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" mapstructure:"max_body_bytes"`
	PredictTimeout  string `json:"predict_timeout" yaml:"predict_timeout" toml:"predict_timeout" mapstructure:"predict_timeout"`
	ShutdownTimeout string `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	CORS CORS `json:"cors" yaml:"cors" toml:"cors" mapstructure:"cors"`
	S3   S3   `json:"s3" yaml:"s3" toml:"s3" mapstructure:"s3"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.BatchChunkSize <= 0 {
		c.BatchChunkSize = DefaultBatchChunkSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.HTTPLogLevel == "" {
		c.HTTPLogLevel = DefaultHTTPLogLevel
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks enumerations and duration strings.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	if c.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.ShardConcurrency < 0 {
		return fmt.Errorf("shard_concurrency must not be negative, got %d", c.ShardConcurrency)
	}
	if _, err := parseDuration("predict_timeout", c.PredictTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("shutdown_timeout", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// PredictTimeoutDuration returns the parsed predict timeout; zero means none.
func (c Config) PredictTimeoutDuration() time.Duration {
	d, _ := parseDuration("predict_timeout", c.PredictTimeout)
	return d
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout, or 5s.
func (c Config) ShutdownTimeoutDuration() time.Duration {
	d, err := parseDuration("shutdown_timeout", c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func parseDuration(field, s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
