package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/minhyannv/rag-assistant-go/pkg/memory"
)

func TestBuildSystemPromptBase(t *testing.T) {
	now := time.Date(2025, time.July, 4, 10, 0, 0, 0, time.UTC)
	got := BuildSystemPrompt(Options{Now: now, Tools: []string{"calculator", "web_search"}})

	for _, want := range []string{
		"You are a helpful AI assistant.",
		"The current date is Friday, July 04, 2025.",
		"You have access to these tools: calculator, web_search.",
		"Do not try to answer questions that require a search without first using the tools.",
		"Respond with plain, clear, and concise language.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Relevant past conversation") {
		t.Fatalf("prompt should not include a memory section:\n%s", got)
	}
}

func TestBuildSystemPromptNoTools(t *testing.T) {
	got := BuildSystemPrompt(Options{Now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	if strings.Contains(got, "You have access to these tools") {
		t.Fatalf("unexpected tools line:\n%s", got)
	}
}

func TestBuildSystemPromptMemories(t *testing.T) {
	at := time.Date(2025, 2, 3, 14, 5, 0, 0, time.UTC)
	got := BuildSystemPrompt(Options{
		Now: at,
		Memories: []memory.ScoredRecord{
			{Record: memory.Record{Role: "user", Content: "my dog is\ncalled  Rex", CreatedAt: at}, Score: 0.9},
			{Record: memory.Record{Role: "assistant", Content: "   ", CreatedAt: at}, Score: 0.5},
			{Record: memory.Record{Role: "assistant", Content: "Rex is a good name", CreatedAt: at}, Score: 0.4},
		},
	})

	idx := strings.Index(got, "## Relevant past conversation")
	if idx < 0 {
		t.Fatalf("missing memory section:\n%s", got)
	}
	section := got[idx:]
	first := "- [2025-02-03 14:05] user: my dog is called Rex"
	second := "- [2025-02-03 14:05] assistant: Rex is a good name"
	if !strings.Contains(section, first) || !strings.Contains(section, second) {
		t.Fatalf("unexpected memory section:\n%s", section)
	}
	if strings.Index(section, first) > strings.Index(section, second) {
		t.Fatalf("memories out of order:\n%s", section)
	}
	if strings.Count(section, "\n- [") != 2 {
		t.Fatalf("blank memory should be skipped:\n%s", section)
	}
}

func TestMemoryTruncation(t *testing.T) {
	long := strings.Repeat("é", MaxMemoryRunes+20)
	got := MemoryMarkdown([]memory.ScoredRecord{{Record: memory.Record{Role: "user", Content: long}}})
	if !strings.Contains(got, strings.Repeat("é", MaxMemoryRunes)+"...") {
		t.Fatalf("content not truncated")
	}
	if strings.Contains(got, strings.Repeat("é", MaxMemoryRunes+1)) {
		t.Fatalf("content exceeds limit")
	}
}
