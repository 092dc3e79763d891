package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xhad/scribe/internal/models"
)

func (s *Store) CreateDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.TagStatus == "" {
		doc.TagStatus = models.StatusPending
	}
	if doc.EmbeddingStatus == "" {
		doc.EmbeddingStatus = models.StatusPending
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, filename, storage_path, content_type, description, tag_status, embedding_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING upload_time, tag_status_updated_at, embedding_status_updated_at`,
		doc.ID, doc.Filename, doc.StoragePath, doc.ContentType, doc.Description,
		doc.TagStatus, doc.EmbeddingStatus,
	)
	if err := row.Scan(&doc.UploadTime, &doc.TagStatusUpdatedAt, &doc.EmbeddingStatusUpdatedAt); err != nil {
		return models.Document{}, fmt.Errorf("failed to insert document: %v", err)
	}

	return doc, nil
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (models.Document, error) {
	var doc models.Document
	row := s.pool.QueryRow(ctx, `
		SELECT id, filename, storage_path, content_type, COALESCE(description, ''), upload_time,
		       tag_status, tag_status_updated_at, embedding_status, embedding_status_updated_at
		FROM documents
		WHERE id = $1`, id)

	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.StoragePath,
		&doc.ContentType,
		&doc.Description,
		&doc.UploadTime,
		&doc.TagStatus,
		&doc.TagStatusUpdatedAt,
		&doc.EmbeddingStatus,
		&doc.EmbeddingStatusUpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, models.ErrDocumentNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to scan document: %v", err)
	}

	return doc, nil
}

// UpdateTagStatus writes only the tagging axis columns. The embedding worker
// may be updating the same row at the same time; partial updates keep the two
// axes from clobbering each other.
func (s *Store) UpdateTagStatus(ctx context.Context, id uuid.UUID, status models.AnnotationStatus, at time.Time) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET tag_status = $2, tag_status_updated_at = $3
		WHERE id = $1`, id, status, at)
	if err != nil {
		return fmt.Errorf("failed to update tag status: %v", err)
	}
	if ct.RowsAffected() == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) UpdateEmbeddingStatus(ctx context.Context, id uuid.UUID, status models.AnnotationStatus, at time.Time) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET embedding_status = $2, embedding_status_updated_at = $3
		WHERE id = $1`, id, status, at)
	if err != nil {
		return fmt.Errorf("failed to update embedding status: %v", err)
	}
	if ct.RowsAffected() == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, storage_path, content_type, COALESCE(description, ''), upload_time,
		       tag_status, tag_status_updated_at, embedding_status, embedding_status_updated_at
		FROM documents
		ORDER BY upload_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(
			&doc.ID,
			&doc.Filename,
			&doc.StoragePath,
			&doc.ContentType,
			&doc.Description,
			&doc.UploadTime,
			&doc.TagStatus,
			&doc.TagStatusUpdatedAt,
			&doc.EmbeddingStatus,
			&doc.EmbeddingStatusUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}
