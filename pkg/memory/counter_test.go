package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestFileCounter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "message_counter.txt")
	c := NewFileCounter(path)

	cur, err := c.Current(ctx)
	if err != nil || cur != 0 {
		t.Fatalf("Current() on missing file = %d, %v; want 0", cur, err)
	}
	for want := int64(1); want <= 3; want++ {
		got, err := c.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if strings.TrimSpace(string(data)) != "3" {
		t.Fatalf("file content = %q, want 3", data)
	}

	// a second instance continues from the persisted value
	other := NewFileCounter(path)
	got, err := other.Next(ctx)
	if err != nil || got != 4 {
		t.Fatalf("Next() on reopened counter = %d, %v; want 4", got, err)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %v", entries)
	}
}

func TestFileCounterCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message_counter.txt")
	if err := os.WriteFile(path, []byte("not-a-number"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewFileCounter(path)
	if _, err := c.Next(context.Background()); err == nil {
		t.Fatal("Next() on corrupt file should fail")
	}
	if _, err := c.Current(context.Background()); err == nil {
		t.Fatal("Current() on corrupt file should fail")
	}
}

func TestFileCounterEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message_counter.txt")
	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := NewFileCounter(path).Next(context.Background())
	if err != nil || got != 1 {
		t.Fatalf("Next() = %d, %v; want 1", got, err)
	}
}

func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "rag-assistant:test:" + uuid.NewString()
	c, err := NewRedisCounter(ctx, addr, key)
	if err != nil {
		t.Fatalf("NewRedisCounter() error = %v", err)
	}
	t.Cleanup(func() {
		_ = c.client.Del(context.Background(), key).Err()
		_ = c.Close()
	})

	cur, err := c.Current(ctx)
	if err != nil || cur != 0 {
		t.Fatalf("Current() on missing key = %d, %v; want 0", cur, err)
	}
	var last int64
	for i := 0; i < 3; i++ {
		got, err := c.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if got <= last {
			t.Fatalf("Next() = %d after %d, want increasing", got, last)
		}
		last = got
	}
	if cur, _ := c.Current(ctx); cur != last || last != 3 {
		t.Fatalf("Current() = %d, last = %d; want 3", cur, last)
	}
}

func TestRedisCounterUnreachable(t *testing.T) {
	if _, err := NewRedisCounter(context.Background(), "127.0.0.1:1", "k"); err == nil {
		t.Fatal("expected ping error for unreachable redis")
	}
}
