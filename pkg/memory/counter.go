package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FileCounter stores the message counter as a decimal integer in a text file.
type FileCounter struct {
	mu   sync.Mutex
	path string
}

// NewFileCounter returns a counter backed by path. The file is created on the
// first call to Next.
func NewFileCounter(path string) *FileCounter {
	return &FileCounter{path: path}
}

func (c *FileCounter) Current(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

func (c *FileCounter) Next(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.read()
	if err != nil {
		return 0, err
	}
	next := cur + 1
	if err := c.write(next); err != nil {
		return 0, err
	}
	return next, nil
}

func (c *FileCounter) read() (int64, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("counter file %s is corrupt: %q", c.path, text)
	}
	return n, nil
}

// write replaces the file through a temp file and rename.
func (c *FileCounter) write(n int64) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create counter dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".counter-*")
	if err != nil {
		return fmt.Errorf("create counter temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.WriteString(strconv.FormatInt(n, 10) + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write counter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close counter temp file: %w", err)
	}
	if err := os.Rename(name, c.path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace counter file: %w", err)
	}
	return nil
}

// RedisCounter keeps the counter in a Redis key so several processes can share
// one collection.
type RedisCounter struct {
	client *redis.Client
	key    string
}

// NewRedisCounter connects to addr and verifies the server answers.
func NewRedisCounter(ctx context.Context, addr, key string) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return &RedisCounter{client: client, key: key}, nil
}

func (c *RedisCounter) Next(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr counter failed: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) Current(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get counter failed: %w", err)
	}
	return n, nil
}

// Close releases the Redis connection pool.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
