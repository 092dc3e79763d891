package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate embedding config
	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.Embedding.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.Embedding.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	// Validate queue config
	if c.Queue.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Queue.WaitSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.wait_seconds",
			Message: "wait_seconds must be positive",
		})
	}

	if c.Queue.MessageTimeout < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.message_timeout_seconds",
			Message: "message_timeout_seconds must be positive",
		})
	}

	// Validate tagging config
	if c.Tagging.MaxCandidates < 1 {
		errors = append(errors, ValidationError{
			Field:   "tagging.max_candidates",
			Message: "max_candidates must be positive",
		})
	}

	if c.Tagging.DedupThreshold <= 0 || c.Tagging.DedupThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "tagging.dedup_threshold",
			Message: "dedup_threshold must be between 0 and 1",
		})
	}

	return errors
}
