package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultBaseURL        = "https://api.anthropic.com/v1/"
	DefaultModel          = "claude-3-5-haiku-latest"
	DefaultTavilyBaseURL  = "https://api.tavily.com"
	DefaultNewsAPIBaseURL = "https://newsapi.org"

	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all runtime configuration for the assistant.
type Config struct {
	MaxTurns           int    `toml:"max_turns" yaml:"max_turns" validate:"gte=1"`
	MaxHistoryMessages int    `toml:"max_history_messages" yaml:"max_history_messages" validate:"gte=0"`
	Verbose            bool   `toml:"verbose" yaml:"verbose"`
	LogLevel           string `toml:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	APIKey  string `toml:"api_key" yaml:"api_key" validate:"required"`
	BaseURL string `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model   string `toml:"model" yaml:"model" validate:"required"`

	Search SearchConfig `toml:"search" yaml:"search"`
	News   NewsConfig   `toml:"news" yaml:"news"`
	Memory MemoryConfig `toml:"memory" yaml:"memory"`
}

// SearchConfig configures the web_search tool.
type SearchConfig struct {
	APIKey     string `toml:"api_key" yaml:"api_key"`
	BaseURL    string `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	MaxResults int    `toml:"max_results" yaml:"max_results" validate:"gte=1,lte=20"`
}

// NewsConfig configures the news tool.
type NewsConfig struct {
	APIKey   string `toml:"api_key" yaml:"api_key"`
	BaseURL  string `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Language string `toml:"language" yaml:"language"`
	Country  string `toml:"country" yaml:"country"`
}

// MemoryConfig configures retrieval-augmented conversation memory.
type MemoryConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Backend string `toml:"backend" yaml:"backend" validate:"omitempty,oneof=bolt postgres memory"`
	Dir     string `toml:"dir" yaml:"dir"`
	TopK    int    `toml:"top_k" yaml:"top_k" validate:"gte=0"`
	Source  string `toml:"source" yaml:"source"`

	// EmbeddingModel switches from the local hashing embedder to an
	// OpenAI-compatible embeddings endpoint. That endpoint is configured
	// separately from the chat model.
	EmbeddingModel   string `toml:"embedding_model" yaml:"embedding_model"`
	EmbeddingBaseURL string `toml:"embedding_base_url" yaml:"embedding_base_url" validate:"omitempty,url"`
	EmbeddingAPIKey  string `toml:"embedding_api_key" yaml:"embedding_api_key"`
	// EmbeddingDims is the hashing embedder size, or the dimensions request
	// sent to the embeddings endpoint. 0 means the default.
	EmbeddingDims int `toml:"embedding_dims" yaml:"embedding_dims" validate:"gte=0"`

	PostgresDSN string `toml:"postgres_dsn" yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	RedisAddr   string `toml:"redis_addr" yaml:"redis_addr"`
	RedisKey    string `toml:"redis_key" yaml:"redis_key"`
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		MaxTurns:           10,
		MaxHistoryMessages: 40,
		LogLevel:           "info",
		BaseURL:            DefaultBaseURL,
		Model:              DefaultModel,
		Search: SearchConfig{
			BaseURL:    DefaultTavilyBaseURL,
			MaxResults: 2,
		},
		News: NewsConfig{
			BaseURL:  DefaultNewsAPIBaseURL,
			Language: "en",
			Country:  "us",
		},
		Memory: MemoryConfig{
			Enabled:  true,
			Backend:  BackendBolt,
			Dir:      defaultMemoryDir(),
			TopK:     5,
			Source:   "cli",
			RedisKey: "rag-assistant:message-counter",
		},
	}
}

func defaultMemoryDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "rag-assistant")
	}
	return ".rag-assistant"
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)

	cfg.Search.APIKey = strings.TrimSpace(cfg.Search.APIKey)
	cfg.Search.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Search.BaseURL), "/")
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = DefaultTavilyBaseURL
	}
	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = 2
	}

	cfg.News.APIKey = strings.TrimSpace(cfg.News.APIKey)
	cfg.News.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.News.BaseURL), "/")
	if cfg.News.BaseURL == "" {
		cfg.News.BaseURL = DefaultNewsAPIBaseURL
	}
	cfg.News.Language = strings.TrimSpace(cfg.News.Language)
	cfg.News.Country = strings.TrimSpace(cfg.News.Country)

	cfg.Memory.Backend = strings.ToLower(strings.TrimSpace(cfg.Memory.Backend))
	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = BackendBolt
	}
	cfg.Memory.Dir = strings.TrimSpace(cfg.Memory.Dir)
	if cfg.Memory.Dir == "" {
		cfg.Memory.Dir = defaultMemoryDir()
	}
	cfg.Memory.Source = strings.TrimSpace(cfg.Memory.Source)
	if cfg.Memory.Source == "" {
		cfg.Memory.Source = "cli"
	}
	cfg.Memory.EmbeddingModel = strings.TrimSpace(cfg.Memory.EmbeddingModel)
	cfg.Memory.EmbeddingBaseURL = strings.TrimSpace(cfg.Memory.EmbeddingBaseURL)
	cfg.Memory.EmbeddingAPIKey = strings.TrimSpace(cfg.Memory.EmbeddingAPIKey)
	cfg.Memory.PostgresDSN = strings.TrimSpace(cfg.Memory.PostgresDSN)
	cfg.Memory.RedisAddr = strings.TrimSpace(cfg.Memory.RedisAddr)

	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}
	if cfg.MaxHistoryMessages < 0 {
		cfg.MaxHistoryMessages = 0
	}
	return cfg
}

var validate = validator.New()

// Validate reports configuration errors in a single error value.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is not set"
	case "required_if":
		return field + " is required when " + fe.Param()
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}
