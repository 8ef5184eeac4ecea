package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// ApplyEnv overrides cfg with values from the process environment.
// CLAUDE_API_KEY is accepted as an alias of LLM_API_KEY.
func ApplyEnv(cfg *Config) {
	cfg.APIKey = getEnv("CLAUDE_API_KEY", cfg.APIKey)
	cfg.APIKey = getEnv("LLM_API_KEY", cfg.APIKey)
	cfg.BaseURL = getEnv("LLM_BASE_URL", cfg.BaseURL)
	cfg.Model = getEnv("LLM_MODEL", cfg.Model)
	cfg.MaxTurns = getEnvAsInt("ASSISTANT_MAX_TURNS", cfg.MaxTurns)
	cfg.MaxHistoryMessages = getEnvAsInt("ASSISTANT_MAX_HISTORY_MESSAGES", cfg.MaxHistoryMessages)
	cfg.LogLevel = getEnv("ASSISTANT_LOG_LEVEL", cfg.LogLevel)
	cfg.Verbose = getEnvAsBool("ASSISTANT_VERBOSE", cfg.Verbose)

	cfg.Search.APIKey = getEnv("TAVILY_API_KEY", cfg.Search.APIKey)
	cfg.Search.BaseURL = getEnv("TAVILY_BASE_URL", cfg.Search.BaseURL)
	cfg.Search.MaxResults = getEnvAsInt("TAVILY_MAX_RESULTS", cfg.Search.MaxResults)

	cfg.News.APIKey = getEnv("NEWSAPI_API_KEY", cfg.News.APIKey)
	cfg.News.BaseURL = getEnv("NEWSAPI_BASE_URL", cfg.News.BaseURL)

	cfg.Memory.Enabled = getEnvAsBool("MEMORY_ENABLED", cfg.Memory.Enabled)
	cfg.Memory.Backend = getEnv("MEMORY_BACKEND", cfg.Memory.Backend)
	cfg.Memory.Dir = getEnv("MEMORY_DIR", cfg.Memory.Dir)
	cfg.Memory.TopK = getEnvAsInt("MEMORY_TOP_K", cfg.Memory.TopK)
	cfg.Memory.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.Memory.EmbeddingModel)
	cfg.Memory.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Memory.EmbeddingBaseURL)
	cfg.Memory.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", cfg.Memory.EmbeddingAPIKey)
	cfg.Memory.EmbeddingDims = getEnvAsInt("EMBEDDING_DIMS", cfg.Memory.EmbeddingDims)
	cfg.Memory.PostgresDSN = getEnv("MEMORY_POSTGRES_DSN", cfg.Memory.PostgresDSN)
	cfg.Memory.RedisAddr = getEnv("REDIS_ADDR", cfg.Memory.RedisAddr)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	if misc.Truthy(raw) {
		return true
	}
	if misc.Falsy(raw) {
		return false
	}
	return fallback
}
