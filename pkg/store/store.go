package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StoreConfig struct {
	ConnString string
	VectorDim  int
	IndexLists int
}

// Store is the Postgres-backed persistence layer. Tag embeddings live in a
// pgvector column so nearest-neighbor lookups happen in the database instead
// of loading every tag into memory.
type Store struct {
	config StoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config StoreConfig) (*Store, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 384 // all-MiniLM output size
	}
	if config.IndexLists == 0 {
		config.IndexLists = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &Store{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createDocuments := `
		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			content_type TEXT NOT NULL,
			description TEXT,
			upload_time TIMESTAMPTZ NOT NULL DEFAULT now(),
			tag_status TEXT NOT NULL DEFAULT 'pending',
			tag_status_updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			embedding_status TEXT NOT NULL DEFAULT 'pending',
			embedding_status_updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	createTags := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS tags (
			id UUID PRIMARY KEY,
			text TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.config.VectorDim)

	createLinks := `
		CREATE TABLE IF NOT EXISTS document_tags (
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (document_id, tag_id)
		)`

	createEmbeddings := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS document_embeddings (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL UNIQUE REFERENCES documents(id) ON DELETE CASCADE,
			chunk_text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.config.VectorDim)

	for _, stmt := range []string{createDocuments, createTags, createLinks, createEmbeddings} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	// Indexes for the matcher's and the search endpoint's nearest-neighbor
	// queries
	createIndexes := []string{
		fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS tags_embedding_idx
		ON tags
		USING ivfflat (embedding vector_l2_ops)
		WITH (lists = %d)`, s.config.IndexLists),
		fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS document_embeddings_embedding_idx
		ON document_embeddings
		USING ivfflat (embedding vector_l2_ops)
		WITH (lists = %d)`, s.config.IndexLists),
	}

	for _, stmt := range createIndexes {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
