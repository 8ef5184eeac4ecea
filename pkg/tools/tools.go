package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"

	"github.com/minhyannv/rag-assistant-go/pkg/config"
	loggerpkg "github.com/minhyannv/rag-assistant-go/pkg/logger"
)

const (
	CalculatorToolName = "calculator"
	NewsToolName       = "news"
	WebSearchToolName  = "web_search"

	defaultHTTPTimeout = 20 * time.Second
	maxResponseBytes   = 4 << 20
)

type tool interface {
	definition() openai.ChatCompletionToolParam
	execute(argText string) (string, error)
	name() string
}

// HTTPDoer is the part of *http.Client the remote tools need.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Context struct {
	Verbose    bool
	Ctx        context.Context
	Logger     loggerpkg.Logger
	HTTPClient HTTPDoer
	Search     config.SearchConfig
	News       config.NewsConfig
}

func (c Context) debugf(format string, args ...any) {
	loggerpkg.Debugf(c.Verbose, c.Logger, format, args...)
}

func (c Context) requestContext() context.Context {
	if c.Ctx != nil {
		return c.Ctx
	}
	return context.Background()
}

// Registry holds registered tools and handles execution.
type Registry struct {
	registry map[string]tool
	order    []string
	ctx      Context
	params   []openai.ChatCompletionToolParam
}

type toolResponse struct {
	OK   bool   `json:"ok"`
	Tool string `json:"tool,omitempty"`
	Data any    `json:"data,omitempty"`
	Err  string `json:"error,omitempty"`
}

// New builds a registry. The calculator is always available; news and
// web_search are registered only when their API keys are configured.
func New(ctx Context) *Registry {
	if ctx.Logger == nil {
		ctx.Logger = loggerpkg.NopLogger{}
	}
	if ctx.HTTPClient == nil {
		ctx.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	t := &Registry{
		registry: make(map[string]tool),
		ctx:      ctx,
	}

	t.register(&calculatorTool{ctx: ctx})
	if ctx.Search.APIKey != "" {
		t.register(&webSearchTool{ctx: ctx})
	} else {
		ctx.Logger.Warn("web_search disabled: no Tavily API key", nil)
	}
	if ctx.News.APIKey != "" {
		t.register(&newsTool{ctx: ctx})
	} else {
		ctx.Logger.Warn("news disabled: no NewsAPI key", nil)
	}
	return t
}

func (t *Registry) register(toolImpl tool) {
	t.registry[toolImpl.name()] = toolImpl
	t.order = append(t.order, toolImpl.name())
	t.params = append(t.params, toolImpl.definition())
	t.ctx.debugf("[verbose] registered tool: %s", toolImpl.name())
}

func (t *Registry) Definitions() []openai.ChatCompletionToolParam {
	return t.params
}

// Names lists registered tools in registration order.
func (t *Registry) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Registry) Execute(call openai.ChatCompletionMessageToolCall) (string, error) {
	if t.ctx.Ctx != nil {
		select {
		case <-t.ctx.Ctx.Done():
			return marshalToolResponse(call.Function.Name, nil, t.ctx.Ctx.Err())
		default:
		}
	}

	toolImpl, ok := t.registry[call.Function.Name]
	if !ok {
		return marshalToolResponse(call.Function.Name, nil, fmt.Errorf("unknown tool: %s", call.Function.Name))
	}

	return toolImpl.execute(call.Function.Arguments)
}

func marshalToolResponse(toolName string, data any, err error) (string, error) {
	resp := toolResponse{
		OK:   err == nil,
		Tool: toolName,
		Data: data,
	}
	if err != nil {
		resp.Err = err.Error()
	}
	payload, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(payload), nil
}

// readBody reads at most maxResponseBytes from r and fails when the body is
// larger.
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}
	return body, nil
}

// decodeArgs parses the tool call arguments into dst. An empty argument string
// leaves dst untouched.
func decodeArgs(argText string, dst any) error {
	if argText == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(argText), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
