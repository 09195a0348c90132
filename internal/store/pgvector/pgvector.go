// Package pgvector keeps embedding records in Postgres with the pgvector
// extension, for deployments that already run Postgres anyway.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docqa/internal/models"
	"docqa/internal/store"
)

type record struct {
	bun.BaseModel `bun:"table:embedding_records,alias:r"`
	ChunkID       string  `bun:"chunk_id,pk"`
	Content       string  `bun:"content,notnull"`
	Filename      string  `bun:"filename,notnull"`
	Page          int     `bun:"page,notnull"`
	Embedding     string  `bun:"embedding,notnull"`
	Similarity    float32 `bun:"similarity,scanonly"`
}

type Config struct {
	DSN       string
	Password  string
	Driver    string // "pgdriver" (default) or "pq", e.g. behind pgbouncer
	Dimension int
	Debug     bool
}

type Store struct {
	db *bun.DB
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	var sqldb *sql.DB
	switch cfg.Driver {
	case "pq":
		var err error
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	default:
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		sqldb = sql.OpenDB(pgdriver.NewConnector(opts...))
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	s := &Store{db: db}
	if err := s.init(ctx, cfg.Dimension); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embedding_records (
		chunk_id text PRIMARY KEY,
		content text NOT NULL,
		filename text NOT NULL,
		page integer NOT NULL,
		embedding vector(%d) NOT NULL
	)`, dimension)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create embedding_records: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Upsert(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]record, len(records))
	for i, r := range records {
		rows[i] = record{
			ChunkID:   r.ChunkID,
			Content:   r.Content,
			Filename:  r.Filename,
			Page:      r.Page,
			Embedding: vectorLiteral(store.Normalize(r.Vector)),
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (chunk_id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("filename = EXCLUDED.filename").
		Set("page = EXCLUDED.page").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return &models.IndexWriteError{Err: err}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error) {
	lit := vectorLiteral(store.Normalize(vector))
	var rows []record
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("chunk_id, content, filename, page").
		ColumnExpr("1 - (embedding <=> ?::vector) AS similarity", lit).
		OrderExpr("embedding <=> ?::vector", lit).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}

	results := make([]models.RetrievalResult, len(rows))
	for i, r := range rows {
		results[i] = models.RetrievalResult{
			ChunkID:    r.ChunkID,
			Text:       r.Content,
			Filename:   r.Filename,
			Page:       r.Page,
			Similarity: r.Similarity,
		}
	}
	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*record)(nil)).Count(ctx)
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.NewTruncateTable().Model((*record)(nil)).Exec(ctx); err != nil {
		return &models.IndexWriteError{Err: err}
	}
	return nil
}

// vectorLiteral renders the pgvector input format: [0.1,0.2,...]
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
