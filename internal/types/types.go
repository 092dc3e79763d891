package types

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/scribe/internal/models"
)

// Core interfaces. The pipeline packages accept these and return concrete
// structs; the adapters under pkg/ provide the production implementations.

// DocumentStore reads documents and writes per-axis status updates. Status
// updates touch only that axis's two columns so the two workers can update
// the same row concurrently without clobbering each other.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc models.Document) (models.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (models.Document, error)
	UpdateTagStatus(ctx context.Context, id uuid.UUID, status models.AnnotationStatus, at time.Time) error
	UpdateEmbeddingStatus(ctx context.Context, id uuid.UUID, status models.AnnotationStatus, at time.Time) error
}

// TagStore persists tags and answers nearest-neighbor lookups over their
// embeddings.
type TagStore interface {
	CreateTag(ctx context.Context, text string, embedding []float32) (models.Tag, error)
	// NearestTag returns the single closest tag by embedding distance.
	// found is false when no tag with an embedding exists yet.
	NearestTag(ctx context.Context, embedding []float32) (tag models.Tag, distance float64, found bool, err error)
	AllTags(ctx context.Context) ([]models.Tag, error)
	TagsForDocument(ctx context.Context, documentID uuid.UUID) ([]models.Tag, error)
}

// LinkStore associates documents with tags, insert-if-absent.
type LinkStore interface {
	LinkDocumentTag(ctx context.Context, documentID, tagID uuid.UUID) error
}

// EmbeddingStore persists the one-per-document embedding record. Creating a
// record that already exists is a no-op, not an error.
type EmbeddingStore interface {
	CreateDocumentEmbedding(ctx context.Context, documentID uuid.UUID, chunkText string, embedding []float32) error
}

// BlobStore resolves opaque locators to stored document bytes.
type BlobStore interface {
	Download(ctx context.Context, locator string) ([]byte, error)
}

// Embedder computes a fixed-dimension vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor turns raw document bytes into text and text into candidate tag
// strings. Both operations are pure.
type Extractor interface {
	Text(fileBytes []byte) (string, error)
	CandidateTags(text string, max int) []string
}

// Cache is the invalidation surface the pipeline needs plus the read-through
// helpers the query API uses.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Message is one delivered queue message. Ack removes it from the queue;
// an unacked message is redelivered after the visibility window.
type Message interface {
	Data() []byte
	Ack() error
}

// Queue is an at-least-once message transport.
type Queue interface {
	Publish(ctx context.Context, payload []byte) error
	Fetch(ctx context.Context, max int, wait time.Duration) ([]Message, error)
}
