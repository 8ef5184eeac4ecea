// Package memory stores conversation turns as embeddings and recalls the most
// similar ones for retrieval-augmented prompts.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrEmptyContent      = errors.New("memory content is empty")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrClosed            = errors.New("memory store is closed")
)

// Record is one persisted conversation turn.
type Record struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// ScoredRecord is a Record ranked against a query embedding.
type ScoredRecord struct {
	Record
	Score float32 `json:"score"`
}

// Store persists records and answers nearest-neighbour queries.
type Store interface {
	Add(ctx context.Context, rec Record) error
	// Query returns at most k records ordered by descending similarity. It
	// fails with ErrDimensionMismatch when embedding does not match the
	// stored vectors.
	Query(ctx context.Context, embedding []float32, k int) ([]ScoredRecord, error)
	// Dims reports the vector size of the stored records, 0 when empty.
	Dims(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	// Clear deletes every record in the collection.
	Clear(ctx context.Context) error
	Close() error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Counter hands out the monotonically increasing message sequence.
type Counter interface {
	Next(ctx context.Context) (int64, error)
	Current(ctx context.Context) (int64, error)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the vectors are empty, differ in length or have zero norm.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// rankTopK scores records against query and keeps the best k.
// Ties are broken by the newer sequence number.
func rankTopK(records []Record, query []float32, k int) ([]ScoredRecord, error) {
	if k <= 0 || len(records) == 0 {
		return []ScoredRecord{}, nil
	}
	scored := make([]ScoredRecord, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) != len(query) {
			return nil, fmt.Errorf("%w: query has %d dims, %s has %d",
				ErrDimensionMismatch, len(query), rec.ID, len(rec.Embedding))
		}
		scored = append(scored, ScoredRecord{Record: rec, Score: CosineSimilarity(query, rec.Embedding)})
	}
	sortScored(scored)
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func sortScored(scored []ScoredRecord) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].Seq > scored[j].Seq
		}
		return scored[i].Score > scored[j].Score
	})
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
