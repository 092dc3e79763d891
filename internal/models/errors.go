package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups. Callers branch on these with errors.Is.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrTagNotFound      = errors.New("tag not found")
)

// DownloadError wraps a failure to fetch document bytes from blob storage.
type DownloadError struct {
	Locator string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Locator, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// TagCreationError marks a failed tag insert. The tagging worker treats it as
// recoverable per candidate: the candidate is skipped, the document is not.
type TagCreationError struct {
	Text string
	Err  error
}

func (e *TagCreationError) Error() string {
	return fmt.Sprintf("create tag %q: %v", e.Text, e.Err)
}

func (e *TagCreationError) Unwrap() error { return e.Err }

// EmbeddingCreationError marks a failed document-embedding insert. Unlike tag
// creation it is fatal for the embedding worker's run.
type EmbeddingCreationError struct {
	DocumentID string
	Err        error
}

func (e *EmbeddingCreationError) Error() string {
	return fmt.Sprintf("create embedding for document %s: %v", e.DocumentID, e.Err)
}

func (e *EmbeddingCreationError) Unwrap() error { return e.Err }

// SearchError wraps a failed nearest-neighbor query.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("similar tag search: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }
