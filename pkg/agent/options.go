package agent

import (
	"context"
	"net/http"
	"time"

	loggerpkg "github.com/minhyannv/rag-assistant-go/pkg/logger"
	"github.com/minhyannv/rag-assistant-go/pkg/memory"
)

// Memory is the retrieval store the loop reads from and writes to.
// *memory.Manager satisfies it.
type Memory interface {
	Remember(ctx context.Context, role, content string) (memory.Record, error)
	Recall(ctx context.Context, query string, k int) ([]memory.ScoredRecord, error)
	Forget(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// AgentOption configures optional runtime dependencies for AgentLoop.
type AgentOption func(*agentDeps)

type agentDeps struct {
	logger     loggerpkg.Logger
	memory     Memory
	httpClient *http.Client
	now        func() time.Time
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) AgentOption {
	return func(d *agentDeps) {
		d.logger = l
	}
}

// WithMemory injects a memory instead of opening one from the config.
func WithMemory(m Memory) AgentOption {
	return func(d *agentDeps) {
		d.memory = m
	}
}

// WithHTTPClient sets the client used for model and tool requests.
func WithHTTPClient(c *http.Client) AgentOption {
	return func(d *agentDeps) {
		d.httpClient = c
	}
}

// WithClock overrides the date shown in the system prompt.
func WithClock(now func() time.Time) AgentOption {
	return func(d *agentDeps) {
		d.now = now
	}
}
