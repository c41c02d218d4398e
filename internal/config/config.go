// Package config provides configuration loading and validation for the CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the runtime configuration. Values come from defaults, an optional
// YAML or JSON file, and environment variables, in increasing precedence.
type Config struct {
	// Providers
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	DefaultModel  string `mapstructure:"default_model"` // empty keeps the registry default

	// Storage
	DatabaseURL string `mapstructure:"database_url"` // PostgreSQL extractor store
	RedisURL    string `mapstructure:"redis_url"`    // embedding cache, optional

	// Limits
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxChunks      int           `mapstructure:"max_chunks"` // 0 means unlimited
	MaxFileSizeMB  int           `mapstructure:"max_file_size_mb"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	TokenOverlap   int           `mapstructure:"token_overlap"`

	// Retrieval
	EmbeddingProvider string        `mapstructure:"embedding_provider"` // openai or gemini
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	RetrievalK        int           `mapstructure:"retrieval_k"`
	EmbeddingCacheTTL time.Duration `mapstructure:"embedding_cache_ttl"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or console
}

var defaults = map[string]any{
	"openai_api_key":      "",
	"openai_base_url":     "",
	"gemini_api_key":      "",
	"default_model":       "",
	"database_url":        "",
	"redis_url":           "",
	"max_concurrency":     1,
	"max_chunks":          0,
	"max_file_size_mb":    10,
	"max_attempts":        3,
	"retry_delay":         500 * time.Millisecond,
	"token_overlap":       20,
	"embedding_provider":  "openai",
	"embedding_model":     "",
	"retrieval_k":         4,
	"embedding_cache_ttl": 24 * time.Hour,
	"log_level":           "info",
	"log_format":          "console",
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment (e.g. OPENAI_API_KEY, MAX_CONCURRENCY) are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from the given .env files, or ./.env when none
// are named. Missing files are not an error.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Validate checks that the configuration has valid values.
// Provider keys are not required here; commands check the ones they need.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("'max_concurrency' must be at least 1"))
	}
	if c.MaxChunks < 0 {
		errs = append(errs, fmt.Errorf("'max_chunks' must be non-negative"))
	}
	if c.MaxFileSizeMB < 0 {
		errs = append(errs, fmt.Errorf("'max_file_size_mb' must be non-negative"))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("'max_attempts' must be at least 1"))
	}
	if c.TokenOverlap < 0 {
		errs = append(errs, fmt.Errorf("'token_overlap' must be non-negative"))
	}
	if c.RetrievalK < 1 {
		errs = append(errs, fmt.Errorf("'retrieval_k' must be at least 1"))
	}
	switch c.EmbeddingProvider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("'embedding_provider' must be openai or gemini, got %q", c.EmbeddingProvider))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("'log_format' must be json or console, got %q", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}
