package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/option"

	"github.com/minhyannv/rag-assistant-go/pkg/config"
	"github.com/minhyannv/rag-assistant-go/pkg/logger"
)

const (
	boltFileName    = "memory.bolt"
	counterFileName = "message_counter.txt"
)

// Manager ties a Store, an Embedder and a Counter together.
type Manager struct {
	store     Store
	embedder  Embedder
	counter   Counter
	source    string
	sessionID string
	topK      int
	logger    logger.Logger
	now       func() time.Time
	closers   []io.Closer
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithSource tags remembered records with source.
func WithSource(source string) ManagerOption {
	return func(m *Manager) {
		if s := strings.TrimSpace(source); s != "" {
			m.source = s
		}
	}
}

// WithTopK sets the default number of recalled records.
func WithTopK(k int) ManagerOption {
	return func(m *Manager) {
		if k >= 0 {
			m.topK = k
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) ManagerOption {
	return func(m *Manager) {
		if id != "" {
			m.sessionID = id
		}
	}
}

// NewManager builds a Manager from its parts.
func NewManager(store Store, embedder Embedder, counter Counter, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		embedder:  embedder,
		counter:   counter,
		source:    "cli",
		sessionID: uuid.NewString(),
		topK:      5,
		logger:    logger.NopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Open builds the Manager described by cfg: the store backend, the counter and
// the embedder. opts are passed to the embeddings client when
// cfg.EmbeddingModel is set. Open fails when the store already holds vectors
// of a different size than the embedder produces.
func Open(ctx context.Context, cfg config.MemoryConfig, log logger.Logger, opts ...option.RequestOption) (*Manager, error) {
	if log == nil {
		log = logger.NopLogger{}
	}

	var store Store
	switch cfg.Backend {
	case config.BackendMemory:
		store = NewInMemoryStore()
	case config.BackendPostgres:
		s, err := OpenPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store = s
	case config.BackendBolt, "":
		s, err := OpenBoltStore(filepath.Join(cfg.Dir, boltFileName))
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}

	var embedder Embedder
	if cfg.EmbeddingModel != "" {
		client := NewOpenAIEmbeddingClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, opts...)
		embedder = NewOpenAIEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDims)
	} else {
		embedder = NewHashEmbedder(cfg.EmbeddingDims)
	}
	if err := checkEmbedderDims(ctx, store, embedder); err != nil {
		_ = store.Close()
		return nil, err
	}

	var counter Counter
	var closers []io.Closer
	if cfg.RedisAddr != "" {
		rc, err := NewRedisCounter(ctx, cfg.RedisAddr, cfg.RedisKey)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		counter = rc
		closers = append(closers, rc)
	} else {
		counter = NewFileCounter(filepath.Join(cfg.Dir, counterFileName))
	}

	m := NewManager(store, embedder, counter,
		WithSource(cfg.Source),
		WithTopK(cfg.TopK),
		WithLogger(log),
	)
	m.closers = closers
	log.Info("memory opened", map[string]any{
		"backend":  cfg.Backend,
		"embedder": fmt.Sprintf("%T", embedder),
		"counter":  fmt.Sprintf("%T", counter),
		"top_k":    m.topK,
		"session":  m.sessionID,
	})
	return m, nil
}

// checkEmbedderDims compares the stored vector size with the embedder output.
// Embedders that do not report a fixed size are asked to embed a sample.
func checkEmbedderDims(ctx context.Context, store Store, embedder Embedder) error {
	stored, err := store.Dims(ctx)
	if err != nil {
		return fmt.Errorf("read stored vector size: %w", err)
	}
	if stored == 0 {
		return nil
	}
	want := 0
	if d, ok := embedder.(interface{ Dimensions() int }); ok {
		want = d.Dimensions()
	}
	if want == 0 {
		vec, err := embedder.Embed(ctx, "embedding size check")
		if err != nil {
			return fmt.Errorf("check embedding size: %w", err)
		}
		want = len(vec)
	}
	if want != stored {
		return fmt.Errorf("%w: memory holds %d-dim vectors but the embedder produces %d; "+
			"restore the previous embedding settings or use an empty memory store", ErrDimensionMismatch, stored, want)
	}
	return nil
}

// TopK returns the default recall size.
func (m *Manager) TopK() int {
	return m.topK
}

// Remember embeds content and stores it under the next counter value.
func (m *Manager) Remember(ctx context.Context, role, content string) (Record, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Record{}, ErrEmptyContent
	}
	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return Record{}, fmt.Errorf("embed %s turn: %w", role, err)
	}
	// the sequence is consumed even if Add fails below, so ids may skip
	seq, err := m.counter.Next(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("advance message counter: %w", err)
	}
	rec := Record{
		ID:        fmt.Sprintf("msg_%d", seq),
		Seq:       seq,
		Role:      role,
		Content:   content,
		Source:    m.source,
		SessionID: m.sessionID,
		CreatedAt: m.now().UTC(),
		Embedding: vec,
	}
	if err := m.store.Add(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("store %s: %w", rec.ID, err)
	}
	logger.Debug(true, m.logger, "memory stored", map[string]any{"id": rec.ID, "role": role})
	return rec, nil
}

// Recall returns the k records most similar to query. k <= 0 uses the
// configured default.
func (m *Manager) Recall(ctx context.Context, query string, k int) ([]ScoredRecord, error) {
	if k <= 0 {
		k = m.topK
	}
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return []ScoredRecord{}, nil
	}
	vec, err := m.embedder.Embed(ctx, query)
	if errors.Is(err, ErrEmptyContent) {
		return []ScoredRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	got, err := m.store.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	return got, nil
}

// Forget deletes the whole collection and reports how many records it held.
// The message counter is left untouched so ids stay unique.
func (m *Manager) Forget(ctx context.Context) (int, error) {
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := m.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear memory: %w", err)
	}
	m.logger.Info("memory cleared", map[string]any{"removed": n})
	return n, nil
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// Close releases the store and any counter connection.
func (m *Manager) Close() error {
	errs := []error{m.store.Close()}
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
