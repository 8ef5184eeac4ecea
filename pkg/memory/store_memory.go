package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Add(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.records) > 0 && len(rec.Embedding) != len(s.records[0].Embedding) {
		return ErrDimensionMismatch
	}
	rec.Embedding = cloneVector(rec.Embedding)
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, embedding []float32, k int) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return rankTopK(s.records, embedding, k)
}

func (s *InMemoryStore) Dims(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.records) == 0 {
		return 0, nil
	}
	return len(s.records[0].Embedding), nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.records), nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.records = nil
	return nil
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.records = nil
	s.mu.Unlock()
	return nil
}
