// Package prompt assembles the system prompt sent with every model request.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/minhyannv/rag-assistant-go/pkg/memory"
)

const (
	dateLayout      = "Monday, January 02, 2006"
	timestampLayout = "2006-01-02 15:04"

	// MaxMemoryRunes caps each recalled turn in the prompt.
	MaxMemoryRunes = 500
)

// Options feeds BuildSystemPrompt.
type Options struct {
	Now      time.Time
	Tools    []string
	Memories []memory.ScoredRecord
}

// BuildSystemPrompt constructs the system prompt with the current date, the
// available tools and any recalled conversation turns.
func BuildSystemPrompt(opts Options) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var sb strings.Builder
	sb.WriteString("You are a helpful AI assistant. Your primary function is to respond to user queries. ")
	sb.WriteString("The current date is " + now.Format(dateLayout) + ".\n")
	if len(opts.Tools) > 0 {
		sb.WriteString("You have access to these tools: " + strings.Join(opts.Tools, ", ") + ". ")
		sb.WriteString("These tools provide current and up-to-date information that may be \"from the future\" in relation to your training data. ")
		sb.WriteString("You should always trust and use the information provided by these tools. ")
		sb.WriteString("Do not try to answer questions that require a search without first using the tools.\n")
	}
	sb.WriteString("Respond with plain, clear, and concise language.")

	if md := MemoryMarkdown(opts.Memories); md != "" {
		sb.WriteString("\n\n")
		sb.WriteString(md)
	}
	return strings.TrimSpace(sb.String())
}

// MemoryMarkdown renders recalled turns, most similar first.
func MemoryMarkdown(records []memory.ScoredRecord) string {
	if len(records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Relevant past conversation\n")
	sb.WriteString("Earlier turns that may be related to the current message. Use them only if they help.\n\n")
	for _, rec := range records {
		content := truncate(sanitizeLine(rec.Content), MaxMemoryRunes)
		if content == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", rec.CreatedAt.Format(timestampLayout), rec.Role, content))
	}
	return strings.TrimSpace(sb.String())
}

// sanitizeLine keeps memory content single-line and trimmed.
func sanitizeLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max]) + "..."
}
