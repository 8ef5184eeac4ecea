package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/minhyannv/rag-assistant-go/pkg/agent"
)

type fakeAssistant struct {
	inputs    []string
	resets    int
	forgotten int
	forgetErr error
	runErr    error
}

func (f *fakeAssistant) Run(input string) (openai.ChatCompletionMessage, error) {
	f.inputs = append(f.inputs, input)
	if f.runErr != nil {
		return openai.ChatCompletionMessage{}, f.runErr
	}
	return openai.ChatCompletionMessage{Content: "echo: " + input}, nil
}

func (f *fakeAssistant) Reset() { f.resets++ }

func (f *fakeAssistant) ForgetMemories() (int, error) {
	if f.forgetErr != nil {
		return 0, f.forgetErr
	}
	f.forgotten++
	return 6, nil
}

func (f *fakeAssistant) Features() []agent.Feature {
	return []agent.Feature{
		{Name: "calculator", Description: "add, subtract, multiply or divide two numbers"},
		{Name: "memory", Description: "disabled"},
	}
}

func runSession(t *testing.T, app assistant, input string) string {
	t.Helper()
	var out bytes.Buffer
	if err := runREPL(app, replOptions{}, strings.NewReader(input), &out); err != nil {
		t.Fatalf("runREPL() error = %v", err)
	}
	return out.String()
}

func TestREPLConversation(t *testing.T) {
	app := &fakeAssistant{}
	out := runSession(t, app, "hello\n\n  what is 2+2  \nquit\nignored after quit\n")

	if !strings.HasPrefix(out, "Welcome! I'm your AI assistant. Type 'quit' to exit.\nYou can ask me to perform searches or chat with me.\n") {
		t.Fatalf("missing welcome text:\n%s", out)
	}
	if len(app.inputs) != 2 || app.inputs[1] != "what is 2+2" {
		t.Fatalf("inputs = %q", app.inputs)
	}
	for _, want := range []string{"\nYou: ", "\nAssistant: echo: hello\n", "\nAssistant: echo: what is 2+2\n", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestREPLKeywordsAreCaseInsensitive(t *testing.T) {
	app := &fakeAssistant{}
	out := runSession(t, app, "FEATURES\nHClear\n/clear\nExit\n")

	if len(app.inputs) != 0 {
		t.Fatalf("keywords reached the model: %q", app.inputs)
	}
	if !strings.Contains(out, "Features:\n  calculator - add, subtract, multiply or divide two numbers\n  memory     - disabled\n") {
		t.Fatalf("features output:\n%s", out)
	}
	if app.forgotten != 1 || !strings.Contains(out, "Memory cleared: 6 record(s) removed.") {
		t.Fatalf("hclear not handled:\n%s", out)
	}
	if app.resets != 1 || !strings.Contains(out, "Conversation history cleared.") {
		t.Fatalf("/clear not handled:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye!") {
		t.Fatalf("exit not handled:\n%s", out)
	}
}

func TestREPLHClearWithoutMemory(t *testing.T) {
	app := &fakeAssistant{forgetErr: agent.ErrMemoryDisabled}
	out := runSession(t, app, "hclear\n")
	if !strings.Contains(out, "Memory is disabled; nothing to clear.") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestREPLRunError(t *testing.T) {
	app := &fakeAssistant{runErr: errors.New("model unavailable")}
	out := runSession(t, app, "hi\n")
	if !strings.Contains(out, "\nError: model unavailable\n") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestREPLEOFEndsCleanly(t *testing.T) {
	app := &fakeAssistant{}
	out := runSession(t, app, "hello")
	if len(app.inputs) != 1 {
		t.Fatalf("inputs = %q", app.inputs)
	}
	if strings.Contains(out, "Goodbye!") {
		t.Fatalf("EOF should not print goodbye:\n%s", out)
	}
}

func TestHandleCommandSuggestsClosest(t *testing.T) {
	var out bytes.Buffer
	handled, quit := handleCommand("/clera", &fakeAssistant{}, &out)
	if !handled || quit {
		t.Fatalf("handled=%v quit=%v", handled, quit)
	}
	if !strings.Contains(out.String(), "Unknown command: /clera. Did you mean /clear?") {
		t.Fatalf("output: %q", out.String())
	}

	out.Reset()
	handled, _ = handleCommand("tell me a joke", &fakeAssistant{}, &out)
	if handled || out.Len() != 0 {
		t.Fatalf("plain text should pass through, got handled=%v out=%q", handled, out.String())
	}
}

func TestRunREPLRequiresArgs(t *testing.T) {
	if err := runREPL(nil, replOptions{}, strings.NewReader(""), nil); err == nil {
		t.Fatal("expected error for nil assistant")
	}
	if err := runREPL(&fakeAssistant{}, replOptions{}, nil, nil); err == nil {
		t.Fatal("expected error for nil reader")
	}
}
