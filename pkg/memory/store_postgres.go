package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// turnRow is the memory_turns table layout.
type turnRow struct {
	Seq       int64           `gorm:"primaryKey;autoIncrement:false"`
	RecordID  string          `gorm:"size:64;not null;uniqueIndex"`
	Role      string          `gorm:"size:16;not null;index"`
	Content   string          `gorm:"type:text;not null"`
	Source    string          `gorm:"size:64"`
	SessionID string          `gorm:"size:64;index"`
	CreatedAt time.Time       `gorm:"index"`
	Embedding pgvector.Vector `gorm:"type:vector"`
}

func (turnRow) TableName() string { return "memory_turns" }

type scoredTurnRow struct {
	Seq       int64
	RecordID  string
	Role      string
	Content   string
	Source    string
	SessionID string
	CreatedAt time.Time
	Embedding pgvector.Vector
	Score     float64
}

// PostgresStore keeps records in PostgreSQL using the pgvector extension and
// ranks them with the cosine distance operator.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgresStore connects to dsn, enables pgvector and migrates the table.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get postgres sql db failed: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres failed: %w", err)
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("enable pgvector failed: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&turnRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto migrate memory table failed: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Add(ctx context.Context, rec Record) error {
	if err := s.checkDims(ctx, len(rec.Embedding)); err != nil {
		return err
	}
	row := turnRow{
		Seq:       rec.Seq,
		RecordID:  rec.ID,
		Role:      rec.Role,
		Content:   rec.Content,
		Source:    rec.Source,
		SessionID: rec.SessionID,
		CreatedAt: rec.CreatedAt,
		Embedding: pgvector.NewVector(rec.Embedding),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create memory turn failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, embedding []float32, k int) ([]ScoredRecord, error) {
	if k <= 0 {
		return []ScoredRecord{}, nil
	}
	if err := s.checkDims(ctx, len(embedding)); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)
	var rows []scoredTurnRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT seq, record_id, role, content, source, session_id, created_at, embedding,
		        1 - (embedding <=> ?) AS score
		   FROM memory_turns
		  ORDER BY embedding <=> ?, seq DESC
		  LIMIT ?`,
		vec, vec, k,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query memory turns failed: %w", err)
	}

	out := make([]ScoredRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ScoredRecord{
			Record: Record{
				ID:        r.RecordID,
				Seq:       r.Seq,
				Role:      r.Role,
				Content:   r.Content,
				Source:    r.Source,
				SessionID: r.SessionID,
				CreatedAt: r.CreatedAt,
				Embedding: r.Embedding.Slice(),
			},
			Score: float32(r.Score),
		})
	}
	return out, nil
}

func (s *PostgresStore) Dims(ctx context.Context) (int, error) {
	var dims []int
	err := s.db.WithContext(ctx).
		Raw("SELECT vector_dims(embedding) FROM memory_turns ORDER BY seq LIMIT 1").
		Scan(&dims).Error
	if err != nil {
		return 0, fmt.Errorf("read memory vector dims failed: %w", err)
	}
	if len(dims) == 0 {
		return 0, nil
	}
	return dims[0], nil
}

// checkDims rejects vectors whose size differs from the stored ones; an
// empty table accepts any size.
func (s *PostgresStore) checkDims(ctx context.Context, n int) error {
	dims, err := s.Dims(ctx)
	if err != nil {
		return err
	}
	if dims != 0 && dims != n {
		return fmt.Errorf("%w: got %d dims, table holds %d", ErrDimensionMismatch, n, dims)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&turnRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count memory turns failed: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("DELETE FROM memory_turns").Error; err != nil {
		return fmt.Errorf("clear memory turns failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
