package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"

	configpkg "github.com/minhyannv/rag-assistant-go/pkg/config"
)

// cliFlags holds parsed command-line values. Only flags the user set
// explicitly override file and environment values.
type cliFlags struct {
	configPath string
	envFile    string
	noColor    bool

	maxTurns      int
	maxHistory    int
	verbose       bool
	logLevel      string
	model         string
	baseURL       string
	memory        bool
	memoryBackend string
	memoryDir     string
	topK          int

	set map[string]bool
}

func newFlagSet(defaults configpkg.Config, f *cliFlags, output io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet("rag-assistant", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&f.configPath, "config", "", "Config file (.toml, .yaml or .yml)")
	flags.StringVar(&f.envFile, "env_file", ".env", "Dotenv file loaded before reading the environment")
	flags.BoolVar(&f.noColor, "no_color", false, "Disable colored REPL labels")
	flags.IntVar(&f.maxTurns, "max_turns", defaults.MaxTurns, "Max model/tool turns per message")
	flags.IntVar(&f.maxHistory, "max_history", defaults.MaxHistoryMessages, "Max user/assistant messages kept in context (0 = unlimited)")
	flags.BoolVar(&f.verbose, "verbose", defaults.Verbose, "Verbose tool-call logging")
	flags.StringVar(&f.logLevel, "log_level", defaults.LogLevel, "Log level: debug, info, warn, error")
	flags.StringVar(&f.model, "model", defaults.Model, "Chat model name")
	flags.StringVar(&f.baseURL, "base_url", defaults.BaseURL, "OpenAI-compatible API base URL")
	flags.BoolVar(&f.memory, "memory", defaults.Memory.Enabled, "Store and recall conversation turns")
	flags.StringVar(&f.memoryBackend, "memory_backend", defaults.Memory.Backend, "Memory backend: bolt, postgres, memory")
	flags.StringVar(&f.memoryDir, "memory_dir", defaults.Memory.Dir, "Directory for the bolt store and message counter")
	flags.IntVar(&f.topK, "top_k", defaults.Memory.TopK, "Number of past turns recalled per message")
	return flags
}

// parseCLIConfig loads .env, the optional config file, environment overrides
// and flags, in that order of increasing precedence.
func parseCLIConfig(args []string, output io.Writer) (configpkg.Config, cliFlags, error) {
	defaults := configpkg.DefaultConfig()
	var f cliFlags
	flags := newFlagSet(defaults, &f, output)
	if err := flags.Parse(args); err != nil {
		return configpkg.Config{}, f, err
	}
	f.set = map[string]bool{}
	flags.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	if f.envFile != "" {
		err := godotenv.Load(f.envFile)
		// the default .env is optional
		if err != nil && (f.set["env_file"] || !errors.Is(err, fs.ErrNotExist)) {
			return configpkg.Config{}, f, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := defaults
	if f.configPath != "" {
		if err := configpkg.LoadFile(f.configPath, &cfg); err != nil {
			return configpkg.Config{}, f, err
		}
	}
	configpkg.ApplyEnv(&cfg)
	f.apply(&cfg)

	return configpkg.Normalize(cfg), f, nil
}

func (f cliFlags) apply(cfg *configpkg.Config) {
	if f.set["max_turns"] {
		cfg.MaxTurns = f.maxTurns
	}
	if f.set["max_history"] {
		cfg.MaxHistoryMessages = f.maxHistory
	}
	if f.set["verbose"] {
		cfg.Verbose = f.verbose
	}
	if f.set["log_level"] {
		cfg.LogLevel = f.logLevel
	}
	if f.set["model"] {
		cfg.Model = strings.TrimSpace(f.model)
	}
	if f.set["base_url"] {
		cfg.BaseURL = strings.TrimSpace(f.baseURL)
	}
	if f.set["memory"] {
		cfg.Memory.Enabled = f.memory
	}
	if f.set["memory_backend"] {
		cfg.Memory.Backend = f.memoryBackend
	}
	if f.set["memory_dir"] {
		cfg.Memory.Dir = f.memoryDir
	}
	if f.set["top_k"] {
		cfg.Memory.TopK = f.topK
	}
}
