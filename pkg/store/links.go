package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LinkDocumentTag creates the (document, tag) association if it does not
// already exist. Redelivered messages hit the conflict path and change
// nothing, which is what keeps linking idempotent under at-least-once
// delivery.
func (s *Store) LinkDocumentTag(ctx context.Context, documentID, tagID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_tags (document_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (document_id, tag_id) DO NOTHING`,
		documentID, tagID)
	if err != nil {
		return fmt.Errorf("failed to link document and tag: %v", err)
	}
	return nil
}
