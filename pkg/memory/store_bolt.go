package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

const boltTurnsBucket = "turns"

// BoltStore persists records in a single bbolt file. Keys are big-endian
// sequence numbers so iteration follows insertion order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltTurnsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func seqKey(seq int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(seq))
	return key
}

func (s *BoltStore) Add(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltTurnsBucket))
		if _, first := b.Cursor().First(); first != nil {
			var existing Record
			if err := json.Unmarshal(first, &existing); err == nil && len(existing.Embedding) != len(rec.Embedding) {
				return ErrDimensionMismatch
			}
		}
		return b.Put(seqKey(rec.Seq), payload)
	})
}

func (s *BoltStore) Query(ctx context.Context, embedding []float32, k int) ([]ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []ScoredRecord{}, nil
	}
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltTurnsBucket)).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				// skip malformed entries
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan bolt store: %w", err)
	}
	return rankTopK(records, embedding, k)
}

func (s *BoltStore) Dims(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dims := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		_, first := tx.Bucket([]byte(boltTurnsBucket)).Cursor().First()
		if first == nil {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(first, &rec); err != nil {
			return fmt.Errorf("decode first record: %w", err)
		}
		dims = len(rec.Embedding)
		return nil
	})
	return dims, err
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(boltTurnsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(boltTurnsBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(boltTurnsBucket))
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
