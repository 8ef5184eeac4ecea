package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	configpkg "github.com/minhyannv/rag-assistant-go/pkg/config"
	loggerpkg "github.com/minhyannv/rag-assistant-go/pkg/logger"
	"github.com/minhyannv/rag-assistant-go/pkg/memory"
	"github.com/minhyannv/rag-assistant-go/pkg/prompt"
	"github.com/minhyannv/rag-assistant-go/pkg/tools"
)

// ErrMemoryDisabled is returned by memory operations when no memory is wired.
var ErrMemoryDisabled = errors.New("memory is disabled")

// AgentLoop holds agent runtime state.
type AgentLoop struct {
	config       configpkg.Config
	client       openai.Client
	tools        *tools.Registry
	memory       Memory
	closer       io.Closer
	SystemPrompt string
	// history holds user and final assistant messages only; the system
	// prompt is rebuilt for every request.
	history []openai.ChatCompletionMessageParamUnion

	ctx     context.Context
	logger  loggerpkg.Logger
	verbose bool
	now     func() time.Time
}

// Feature describes one capability shown by the features command.
type Feature struct {
	Name        string
	Description string
}

// New initializes an AgentLoop with the provided context, config, and dependencies.
func New(ctx context.Context, cfg configpkg.Config, opts ...AgentOption) (*AgentLoop, error) {
	cfg = configpkg.Normalize(cfg)
	deps := agentDeps{logger: loggerpkg.NopLogger{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	if deps.logger == nil {
		deps.logger = loggerpkg.NopLogger{}
	}
	if deps.now == nil {
		deps.now = time.Now
	}

	loggerpkg.Debug(cfg.Verbose, deps.logger, "agent_loop init", map[string]any{
		"max_turns":      cfg.MaxTurns,
		"model":          cfg.Model,
		"base_url":       cfg.BaseURL,
		"memory_enabled": cfg.Memory.Enabled,
		"memory_backend": cfg.Memory.Backend,
	})
	if err := configpkg.Validate(cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := newOpenAIClient(cfg, deps)

	toolCtx := tools.Context{
		Verbose: cfg.Verbose,
		Ctx:     ctx,
		Logger:  loggerpkg.Named(deps.logger, "tools"),
		Search:  cfg.Search,
		News:    cfg.News,
	}
	if deps.httpClient != nil {
		toolCtx.HTTPClient = deps.httpClient
	}
	registeredTools := tools.New(toolCtx)
	loggerpkg.Debug(cfg.Verbose, deps.logger, "tools registered", map[string]any{
		"tools": registeredTools.Names(),
	})

	a := &AgentLoop{
		config: cfg,
		client: client,
		tools:  registeredTools,
		memory: deps.memory,

		ctx:     ctx,
		logger:  deps.logger,
		verbose: cfg.Verbose,
		now:     deps.now,
	}

	if a.memory == nil && cfg.Memory.Enabled {
		var embedOpts []option.RequestOption
		if deps.httpClient != nil {
			embedOpts = append(embedOpts, option.WithHTTPClient(deps.httpClient))
		}
		m, err := memory.Open(ctx, cfg.Memory, loggerpkg.Named(deps.logger, "memory"), embedOpts...)
		if err != nil {
			return nil, fmt.Errorf("open memory: %w", err)
		}
		a.memory = m
		a.closer = m
	}

	a.SystemPrompt = a.buildSystemPrompt(nil)
	loggerpkg.Debug(cfg.Verbose, deps.logger, "system prompt ready", map[string]any{
		"bytes": len(a.SystemPrompt),
	})
	return a, nil
}

func newOpenAIClient(cfg configpkg.Config, deps agentDeps) openai.Client {
	opts := []option.RequestOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if deps.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(deps.httpClient))
	}
	return openai.NewClient(opts...)
}

// runOnce performs one model completion request.
func (a *AgentLoop) runOnce(params openai.ChatCompletionNewParams) (openai.ChatCompletionMessage, error) {
	a.debugf("[verbose] iteration: sending request")
	completion, err := a.client.Chat.Completions.New(a.ctx, params)
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("empty completion choices")
	}
	return completion.Choices[0].Message, nil
}

// runIteration executes iterative model/tool turns for one user interaction.
func (a *AgentLoop) runIteration(
	messages []openai.ChatCompletionMessageParamUnion,
	maxTurns int,
) (openai.ChatCompletionMessage, error) {
	currentMessages := append([]openai.ChatCompletionMessageParamUnion{}, messages...)

	for turn := 0; turn < maxTurns; turn++ {
		a.debugf("[verbose] iteration: %d/%d", turn+1, maxTurns)
		message, err := a.runOnce(a.newChatParams(currentMessages))
		if err != nil {
			return openai.ChatCompletionMessage{}, err
		}

		if len(message.ToolCalls) == 0 {
			return message, nil
		}

		// Persist the assistant tool-call turn before appending tool responses.
		currentMessages = append(currentMessages, message.ToParam())
		a.debugf("[verbose] iteration: assistant requested %d tool call(s)", len(message.ToolCalls))
		currentMessages = a.appendToolResponses(currentMessages, message.ToolCalls)
	}

	return openai.ChatCompletionMessage{}, errors.New("max turns reached before assistant produced a final response")
}

// Run processes one user input and returns a single final assistant message.
// Related turns from memory are recalled before the request and both sides of
// the exchange are remembered afterwards. Conversation state is persisted
// inside AgentLoop and can be reset via Reset.
func (a *AgentLoop) Run(userInput string) (openai.ChatCompletionMessage, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return openai.ChatCompletionMessage{}, errors.New("user input is required")
	}

	a.SystemPrompt = a.buildSystemPrompt(a.recall(userInput))

	previousLen := len(a.history)
	a.history = append(a.history, openai.UserMessage(userInput))

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(a.history)+1)
	messages = append(messages, openai.SystemMessage(a.SystemPrompt))
	messages = append(messages, a.history...)

	finalMessage, err := a.runIteration(messages, a.config.MaxTurns)
	if err != nil {
		a.history = a.history[:previousLen]
		return openai.ChatCompletionMessage{}, err
	}

	a.history = append(a.history, finalMessage.ToParam())
	a.trimHistory()

	a.remember(memory.RoleUser, userInput)
	a.remember(memory.RoleAssistant, finalMessage.Content)
	return finalMessage, nil
}

// recall returns related memories for input, or nil when memory is off or
// the lookup fails.
func (a *AgentLoop) recall(input string) []memory.ScoredRecord {
	if a.memory == nil {
		return nil
	}
	records, err := a.memory.Recall(a.ctx, input, a.config.Memory.TopK)
	if err != nil {
		a.logger.Warn("memory recall failed", map[string]any{"error": err.Error()})
		return nil
	}
	loggerpkg.Debug(a.verbose, a.logger, "memory recalled", map[string]any{"count": len(records)})
	return records
}

func (a *AgentLoop) remember(role, content string) {
	if a.memory == nil || strings.TrimSpace(content) == "" {
		return
	}
	if _, err := a.memory.Remember(a.ctx, role, content); err != nil {
		a.logger.Warn("memory write failed", map[string]any{"role": role, "error": err.Error()})
	}
}

// trimHistory keeps at most MaxHistoryMessages entries, cutting only before a
// user message so no assistant reply is left without its question.
func (a *AgentLoop) trimHistory() {
	limit := a.config.MaxHistoryMessages
	if limit <= 0 || len(a.history) <= limit {
		return
	}
	start := len(a.history) - limit
	for start < len(a.history) && a.history[start].OfUser == nil {
		start++
	}
	trimmed := make([]openai.ChatCompletionMessageParamUnion, len(a.history)-start)
	copy(trimmed, a.history[start:])
	a.debugf("[verbose] history trimmed: dropped %d message(s)", start)
	a.history = trimmed
}

// Reset clears conversation history and rebuilds the system prompt without
// recalled memories.
func (a *AgentLoop) Reset() {
	a.history = nil
	a.SystemPrompt = a.buildSystemPrompt(nil)
}

// ForgetMemories deletes every stored turn and returns how many were removed.
func (a *AgentLoop) ForgetMemories() (int, error) {
	if a.memory == nil {
		return 0, ErrMemoryDisabled
	}
	return a.memory.Forget(a.ctx)
}

// MemoryEnabled reports whether turns are being stored.
func (a *AgentLoop) MemoryEnabled() bool {
	return a.memory != nil
}

// Features lists the assistant's active capabilities.
func (a *AgentLoop) Features() []Feature {
	var out []Feature
	for _, name := range a.tools.Names() {
		out = append(out, Feature{Name: name, Description: toolDescriptions[name]})
	}
	if a.memory == nil {
		out = append(out, Feature{Name: "memory", Description: "disabled"})
		return out
	}
	desc := fmt.Sprintf("recalls the %d most similar past turns (%s backend)", a.config.Memory.TopK, a.config.Memory.Backend)
	if n, err := a.memory.Count(a.ctx); err == nil {
		desc += fmt.Sprintf(", %d stored", n)
	}
	out = append(out, Feature{Name: "memory", Description: desc})
	return out
}

var toolDescriptions = map[string]string{
	tools.CalculatorToolName: "add, subtract, multiply or divide two numbers",
	tools.WebSearchToolName:  "search the web for current information (Tavily)",
	tools.NewsToolName:       "top news headlines for a topic (NewsAPI)",
}

// Close releases the memory opened by New.
func (a *AgentLoop) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *AgentLoop) buildSystemPrompt(memories []memory.ScoredRecord) string {
	return prompt.BuildSystemPrompt(prompt.Options{
		Now:      a.now(),
		Tools:    a.tools.Names(),
		Memories: memories,
	})
}

func (a *AgentLoop) debugf(format string, args ...any) {
	loggerpkg.Debugf(a.verbose, a.logger, format, args...)
}

func (a *AgentLoop) newChatParams(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.config.Model),
		Messages: messages,
		Tools:    a.tools.Definitions(),
	}
}

func (a *AgentLoop) appendToolResponses(
	messages []openai.ChatCompletionMessageParamUnion,
	toolCalls []openai.ChatCompletionMessageToolCall,
) []openai.ChatCompletionMessageParamUnion {
	updated := messages
	for _, call := range toolCalls {
		a.logger.Info("tool call", map[string]any{"tool": call.Function.Name})
		output, err := a.tools.Execute(call)
		if err != nil {
			output = fmt.Sprintf(`{"ok":false,"error":%q}`, err.Error())
		}
		updated = append(updated, openai.ToolMessage(output, call.ID))
	}
	return updated
}
