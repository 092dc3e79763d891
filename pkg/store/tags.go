package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/scribe/internal/models"
)

func (s *Store) CreateTag(ctx context.Context, text string, embedding []float32) (models.Tag, error) {
	tag := models.Tag{
		ID:        uuid.New(),
		Text:      text,
		Embedding: embedding,
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO tags (id, text, embedding)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		tag.ID, tag.Text, pgvector.NewVector(embedding),
	)
	if err := row.Scan(&tag.CreatedAt, &tag.UpdatedAt); err != nil {
		return models.Tag{}, &models.TagCreationError{Text: text, Err: err}
	}

	return tag, nil
}

func (s *Store) GetTag(ctx context.Context, id uuid.UUID) (models.Tag, error) {
	var tag models.Tag
	row := s.pool.QueryRow(ctx, `
		SELECT id, text, created_at, updated_at
		FROM tags
		WHERE id = $1`, id)

	err := row.Scan(&tag.ID, &tag.Text, &tag.CreatedAt, &tag.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tag{}, models.ErrTagNotFound
	}
	if err != nil {
		return models.Tag{}, fmt.Errorf("failed to scan tag: %v", err)
	}

	return tag, nil
}

// NearestTag returns the closest existing tag by L2 distance over the
// pgvector index. found is false when no embedded tag exists yet.
func (s *Store) NearestTag(ctx context.Context, embedding []float32) (models.Tag, float64, bool, error) {
	var tag models.Tag
	var distance float64

	row := s.pool.QueryRow(ctx, `
		SELECT id, text, created_at, updated_at, embedding <-> $1 AS distance
		FROM tags
		WHERE embedding IS NOT NULL
		ORDER BY embedding <-> $1
		LIMIT 1`, pgvector.NewVector(embedding))

	err := row.Scan(&tag.ID, &tag.Text, &tag.CreatedAt, &tag.UpdatedAt, &distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tag{}, 0, false, nil
	}
	if err != nil {
		return models.Tag{}, 0, false, &models.SearchError{Err: err}
	}

	return tag, distance, true, nil
}

func (s *Store) AllTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, text, created_at, updated_at
		FROM tags
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %v", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

func (s *Store) TagsForDocument(ctx context.Context, documentID uuid.UUID) ([]models.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.text, t.created_at, t.updated_at
		FROM tags t
		JOIN document_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = $1
		ORDER BY dt.created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document tags: %v", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

// TagsMissingEmbeddings lists tags whose embedding column is null. Such rows
// predate this pipeline; the backfill command repairs them.
func (s *Store) TagsMissingEmbeddings(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, text, created_at, updated_at
		FROM tags
		WHERE embedding IS NULL
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %v", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

func (s *Store) SetTagEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE tags
		SET embedding = $2, updated_at = $3
		WHERE id = $1`, id, pgvector.NewVector(embedding), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set tag embedding: %v", err)
	}
	if ct.RowsAffected() == 0 {
		return models.ErrTagNotFound
	}
	return nil
}

func scanTags(rows pgx.Rows) ([]models.Tag, error) {
	var tags []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Text, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
