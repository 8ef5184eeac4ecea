// Package main provides the interactive command-line assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/misc"

	"github.com/minhyannv/rag-assistant-go/pkg/agent"
	loggerpkg "github.com/minhyannv/rag-assistant-go/pkg/logger"
)

// main is the program entry point.
func main() {
	config, flags, err := parseCLIConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	level := loggerpkg.ParseLevel(config.LogLevel)
	if config.Verbose {
		level = loggerpkg.LevelDebug
	}
	appLogger := loggerpkg.NewWriterLogger(os.Stderr, loggerpkg.WithLevel(level))

	app, err := agent.New(context.Background(), config, agent.WithLogger(appLogger))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = runREPL(app, replOptions{
		Verbose: config.Verbose,
		Color:   !flags.noColor && !misc.Truthy(os.Getenv("NO_COLOR")),
		Logger:  appLogger,
	}, os.Stdin, os.Stdout)
	if closeErr := app.Close(); closeErr != nil {
		appLogger.Warn("close failed", map[string]any{"error": closeErr.Error()})
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
