package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/openai/openai-go"
	"github.com/schollz/closestmatch"

	"github.com/minhyannv/rag-assistant-go/pkg/agent"
	loggerpkg "github.com/minhyannv/rag-assistant-go/pkg/logger"
)

// assistant is the part of agent.AgentLoop the REPL drives.
type assistant interface {
	Run(input string) (openai.ChatCompletionMessage, error)
	Reset()
	ForgetMemories() (int, error)
	Features() []agent.Feature
}

// replOptions configures REPL behavior.
type replOptions struct {
	Verbose bool
	Color   bool
	Logger  loggerpkg.Logger
}

var slashCommands = []string{"/help", "/clear", "/features", "/hclear", "/quit", "/exit"}

var commandMatcher = closestmatch.New(slashCommands, []int{2, 3})

// runREPL starts an interactive REPL session for the given app.
func runREPL(app assistant, opts replOptions, in io.Reader, out io.Writer) error {
	if app == nil {
		return fmt.Errorf("assistant is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}

	loggerpkg.Debug(opts.Verbose, opts.Logger, "repl start", nil)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	printWelcome(out)

	for {
		_, _ = fmt.Fprintf(out, "\n%s: ", opts.label("You"))
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		handled, shouldQuit := handleCommand(input, app, out)
		if shouldQuit {
			break
		}
		if handled {
			continue
		}

		finalMessage, err := app.Run(input)
		if err != nil {
			_, _ = fmt.Fprintf(out, "\n%s: %v\n", opts.label("Error"), err)
			continue
		}

		_, _ = fmt.Fprintf(out, "\n%s: %s\n", opts.label("Assistant"), finalMessage.Content)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func (o replOptions) label(role string) string {
	if !o.Color {
		return role
	}
	color := ancli.BLUE
	switch role {
	case "You":
		color = ancli.CYAN
	case "Error":
		color = ancli.MAGENTA
	}
	return ancli.ColoredMessage(color, role)
}

func printWelcome(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Welcome! I'm your AI assistant. Type 'quit' to exit.")
	_, _ = fmt.Fprintln(out, "You can ask me to perform searches or chat with me.")
	_, _ = fmt.Fprintln(out, "Type 'features' to list capabilities, 'hclear' to wipe memory, /help for commands.")
}

// handleCommand runs REPL keywords and slash commands. It reports whether the
// input was consumed and whether the loop should stop.
func handleCommand(input string, app assistant, out io.Writer) (bool, bool) {
	cmd := strings.ToLower(strings.TrimSpace(input))
	switch cmd {
	case "quit", "exit", "/quit", "/exit", "/q":
		_, _ = fmt.Fprintln(out, "Goodbye!")
		return true, true
	case "features", "/features":
		printFeatures(out, app.Features())
		return true, false
	case "hclear", "/hclear":
		removed, err := app.ForgetMemories()
		switch {
		case errors.Is(err, agent.ErrMemoryDisabled):
			_, _ = fmt.Fprintln(out, "Memory is disabled; nothing to clear.")
		case err != nil:
			_, _ = fmt.Fprintf(out, "Error: clear memory: %v\n", err)
		default:
			_, _ = fmt.Fprintf(out, "Memory cleared: %d record(s) removed.\n", removed)
		}
		return true, false
	case "/help", "/h":
		printHelp(out)
		return true, false
	case "/clear", "/c":
		app.Reset()
		_, _ = fmt.Fprintln(out, "Conversation history cleared.")
		return true, false
	}

	if !strings.HasPrefix(cmd, "/") {
		return false, false
	}
	if suggestion := commandMatcher.Closest(cmd); suggestion != "" {
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Did you mean %s? Type /help for available commands.\n", input, suggestion)
	} else {
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Type /help for available commands.\n", input)
	}
	return true, false
}

func printFeatures(out io.Writer, features []agent.Feature) {
	_, _ = fmt.Fprintln(out, "Features:")
	for _, f := range features {
		_, _ = fmt.Fprintf(out, "  %-10s - %s\n", f.Name, f.Description)
	}
}

func printHelp(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  features - List the assistant's capabilities")
	_, _ = fmt.Fprintln(out, "  hclear   - Delete every stored conversation turn")
	_, _ = fmt.Fprintln(out, "  quit     - Exit the program")
	_, _ = fmt.Fprintln(out, "  /help    - Show this help message")
	_, _ = fmt.Fprintln(out, "  /clear   - Clear conversation history")
	_, _ = fmt.Fprintln(out, "  /quit    - Exit the program")
	_, _ = fmt.Fprintln(out, "  /exit    - Exit the program")
}
