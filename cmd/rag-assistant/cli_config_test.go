package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	configpkg "github.com/minhyannv/rag-assistant-go/pkg/config"
)

// clearAssistantEnv isolates a test from the developer's environment.
func clearAssistantEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLAUDE_API_KEY", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL",
		"ASSISTANT_MAX_TURNS", "ASSISTANT_MAX_HISTORY_MESSAGES", "ASSISTANT_LOG_LEVEL", "ASSISTANT_VERBOSE",
		"TAVILY_API_KEY", "TAVILY_BASE_URL", "TAVILY_MAX_RESULTS", "NEWSAPI_API_KEY", "NEWSAPI_BASE_URL",
		"MEMORY_ENABLED", "MEMORY_BACKEND", "MEMORY_DIR", "MEMORY_TOP_K",
		"EMBEDDING_MODEL", "EMBEDDING_DIMS", "MEMORY_POSTGRES_DSN", "REDIS_ADDR",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestParseCLIConfigDefaults(t *testing.T) {
	clearAssistantEnv(t)
	cfg, _, err := parseCLIConfig([]string{"-env_file", ""}, io.Discard)
	if err != nil {
		t.Fatalf("parseCLIConfig() error = %v", err)
	}
	def := configpkg.Normalize(configpkg.DefaultConfig())
	if cfg.Model != def.Model || cfg.MaxTurns != def.MaxTurns || cfg.Memory.TopK != 5 || !cfg.Memory.Enabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseCLIConfigPrecedence(t *testing.T) {
	clearAssistantEnv(t)
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "assistant.toml")
	toml := "model = \"file-model\"\nmax_turns = 4\n\n[memory]\ntop_k = 7\nbackend = \"memory\"\n"
	if err := os.WriteFile(cfgPath, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("CLAUDE_API_KEY=from-dotenv\nTAVILY_API_KEY=tvly-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("ASSISTANT_MAX_TURNS", "6")

	cfg, _, err := parseCLIConfig([]string{
		"-config", cfgPath,
		"-env_file", envPath,
		"-max_turns", "9",
		"-memory=false",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseCLIConfig() error = %v", err)
	}

	if cfg.APIKey != "from-dotenv" || cfg.Search.APIKey != "tvly-dotenv" {
		t.Fatalf("dotenv values not applied: api=%q tavily=%q", cfg.APIKey, cfg.Search.APIKey)
	}
	if cfg.Model != "env-model" {
		t.Fatalf("Model = %q, want env over file", cfg.Model)
	}
	if cfg.MaxTurns != 9 {
		t.Fatalf("MaxTurns = %d, want flag over env", cfg.MaxTurns)
	}
	if cfg.Memory.TopK != 7 || cfg.Memory.Backend != configpkg.BackendMemory {
		t.Fatalf("file memory settings lost: %+v", cfg.Memory)
	}
	if cfg.Memory.Enabled {
		t.Fatal("-memory=false should disable memory")
	}
}

func TestParseCLIConfigErrors(t *testing.T) {
	clearAssistantEnv(t)

	if _, _, err := parseCLIConfig([]string{"-env_file", filepath.Join(t.TempDir(), "missing.env")}, io.Discard); err == nil {
		t.Fatal("expected error for explicit missing env file")
	}
	if _, _, err := parseCLIConfig([]string{"-env_file", "", "-config", "settings.ini"}, io.Discard); err == nil {
		t.Fatal("expected error for unsupported config extension")
	}
	if _, _, err := parseCLIConfig([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("error = %v, want flag.ErrHelp", err)
	}
}
