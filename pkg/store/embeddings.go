package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/scribe/internal/models"
)

// CreateDocumentEmbedding stores the single embedding record for a document.
// A record already present for the document (redelivery) is left untouched
// and treated as success.
func (s *Store) CreateDocumentEmbedding(ctx context.Context, documentID uuid.UUID, chunkText string, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_embeddings (id, document_id, chunk_text, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO NOTHING`,
		uuid.New(), documentID, chunkText, pgvector.NewVector(embedding))
	if err != nil {
		return &models.EmbeddingCreationError{DocumentID: documentID.String(), Err: err}
	}
	return nil
}

// SimilarChunks returns the stored document chunks closest to the query
// embedding by L2 distance, nearest first. Documents whose embedding axis
// has not completed simply have no row here and never match.
func (s *Store) SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]models.ChunkMatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT de.document_id, d.filename, de.chunk_text, de.embedding <-> $1 AS distance
		FROM document_embeddings de
		JOIN documents d ON d.id = de.document_id
		ORDER BY de.embedding <-> $1
		LIMIT $2`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, &models.SearchError{Err: err}
	}
	defer rows.Close()

	var matches []models.ChunkMatch
	for rows.Next() {
		var m models.ChunkMatch
		if err := rows.Scan(&m.DocumentID, &m.Filename, &m.ChunkText, &m.Distance); err != nil {
			return nil, &models.SearchError{Err: err}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.SearchError{Err: err}
	}

	return matches, nil
}

func (s *Store) GetDocumentEmbedding(ctx context.Context, documentID uuid.UUID) (models.DocumentEmbedding, bool, error) {
	var rec models.DocumentEmbedding
	row := s.pool.QueryRow(ctx, `
		SELECT id, document_id, chunk_text, created_at
		FROM document_embeddings
		WHERE document_id = $1`, documentID)

	err := row.Scan(&rec.ID, &rec.DocumentID, &rec.ChunkText, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DocumentEmbedding{}, false, nil
	}
	if err != nil {
		return models.DocumentEmbedding{}, false, err
	}

	return rec, true, nil
}
