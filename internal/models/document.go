package models

import (
	"time"

	"github.com/google/uuid"
)

// AnnotationStatus tracks one processing axis of a document. The tagging and
// embedding workers each own exactly one axis and never write the other.
type AnnotationStatus string

const (
	StatusPending    AnnotationStatus = "pending"
	StatusProcessing AnnotationStatus = "processing"
	StatusCompleted  AnnotationStatus = "completed"
	StatusFailed     AnnotationStatus = "failed"
	StatusSkipped    AnnotationStatus = "skipped"
)

// Terminal reports whether a status ends a single processing attempt.
// A redelivered message may still re-enter processing afterwards.
func (s AnnotationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// ContentTypePDF is the only content type the pipeline annotates.
const ContentTypePDF = "application/pdf"

type Document struct {
	ID                       uuid.UUID
	Filename                 string
	StoragePath              string
	ContentType              string
	Description              string
	UploadTime               time.Time
	TagStatus                AnnotationStatus
	TagStatusUpdatedAt       time.Time
	EmbeddingStatus          AnnotationStatus
	EmbeddingStatusUpdatedAt time.Time
}

type Tag struct {
	ID        uuid.UUID
	Text      string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentTag links a document to a tag. The (DocumentID, TagID) pair is
// unique; linking is insert-if-absent so redeliveries never duplicate it.
type DocumentTag struct {
	DocumentID uuid.UUID
	TagID      uuid.UUID
	CreatedAt  time.Time
}

// DocumentEmbedding holds the single stored embedding for a document,
// together with the extracted text it was computed from.
type DocumentEmbedding struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ChunkText  string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkMatch is one similarity-search hit: a stored document chunk and its
// L2 distance from the query embedding.
type ChunkMatch struct {
	DocumentID uuid.UUID
	Filename   string
	ChunkText  string
	Distance   float64
}
