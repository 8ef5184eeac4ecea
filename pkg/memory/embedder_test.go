package memory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestHashEmbedderDeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), "What is the weather in Paris?")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := e.Embed(context.Background(), "what is the WEATHER in paris")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("norm^2 = %v, want 1", norm)
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()
	query, _ := e.Embed(ctx, "latest news about the stock market")
	near, _ := e.Embed(ctx, "stock market news today")
	far, _ := e.Embed(ctx, "recipe for banana bread")

	if CosineSimilarity(query, near) <= CosineSimilarity(query, far) {
		t.Fatalf("expected related text to score higher: near=%v far=%v",
			CosineSimilarity(query, near), CosineSimilarity(query, far))
	}
}

func TestHashEmbedderEmpty(t *testing.T) {
	e := NewHashEmbedder(16)
	for _, in := range []string{"", "   ", "?!."} {
		if _, err := e.Embed(context.Background(), in); !errors.Is(err, ErrEmptyContent) {
			t.Fatalf("Embed(%q) error = %v, want ErrEmptyContent", in, err)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 2}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Fatalf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

// embeddingServer is an OpenAI-compatible /embeddings endpoint. It answers
// with vectors from embed, or with an empty data list when embed is nil.
type embeddingServer struct {
	mu     sync.Mutex
	embed  func(text string) []float32
	bodies []map[string]any
	auth   []string
	paths  []string
}

func (s *embeddingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	s.bodies = append(s.bodies, body)
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.paths = append(s.paths, r.URL.Path)
	embed := s.embed
	s.mu.Unlock()

	data := []map[string]any{}
	if embed != nil {
		input, _ := body["input"].(string)
		data = append(data, map[string]any{"object": "embedding", "index": 0, "embedding": embed(input)})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  body["model"],
		"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func (s *embeddingServer) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func (s *embeddingServer) request(i int) (body map[string]any, auth, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[i], s.auth[i], s.paths[i]
}

func newEmbeddingServer(t *testing.T, embed func(string) []float32) (*embeddingServer, string) {
	t.Helper()
	es := &embeddingServer{embed: embed}
	srv := httptest.NewServer(es)
	t.Cleanup(srv.Close)
	return es, srv.URL + "/v1/"
}

func TestOpenAIEmbedder(t *testing.T) {
	es, baseURL := newEmbeddingServer(t, func(string) []float32 { return []float32{0.5, -0.25, 1} })
	ctx := context.Background()

	e := NewOpenAIEmbedder(NewOpenAIEmbeddingClient(baseURL, "emb-key"), "text-embedding-ada-002", 0)
	got, err := e.Embed(ctx, "  hello world ")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := []float32{0.5, -0.25, 1}
	if len(got) != len(want) {
		t.Fatalf("Embed() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Embed()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	body, auth, path := es.request(0)
	if path != "/v1/embeddings" || auth != "Bearer emb-key" {
		t.Fatalf("path=%s auth=%s", path, auth)
	}
	if body["model"] != "text-embedding-ada-002" || body["input"] != "hello world" {
		t.Fatalf("request body = %v", body)
	}
	if _, ok := body["dimensions"]; ok {
		t.Fatalf("dimensions sent without being configured: %v", body)
	}

	sized := NewOpenAIEmbedder(NewOpenAIEmbeddingClient(baseURL, "emb-key"), "text-embedding-3-small", 8)
	if _, err := sized.Embed(ctx, "hello"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if body, _, _ := es.request(1); body["dimensions"] != float64(8) {
		t.Fatalf("dimensions = %v, want 8", body["dimensions"])
	}

	if _, err := e.Embed(ctx, "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("Embed(blank) error = %v, want ErrEmptyContent", err)
	}
	if es.requests() != 2 {
		t.Fatalf("requests = %d, blank input should not reach the server", es.requests())
	}
}

func TestOpenAIEmbedderEmptyData(t *testing.T) {
	_, baseURL := newEmbeddingServer(t, nil)
	e := NewOpenAIEmbedder(NewOpenAIEmbeddingClient(baseURL, "k"), "m", 0)
	if _, err := e.Embed(context.Background(), "hello"); err == nil || !strings.Contains(err.Error(), "empty embedding") {
		t.Fatalf("Embed() error = %v, want empty embedding error", err)
	}
}
