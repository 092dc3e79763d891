package worker

import (
	"context"
	"log/slog"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/internal/types"
)

type MatcherConfig struct {
	// DedupThreshold is the similarity score at or above which a candidate
	// is considered the same concept as an existing tag.
	DedupThreshold float64
}

// Matcher resolves a candidate tag string to an existing semantically close
// tag, or creates a new one. The lookup goes per candidate through the
// store's nearest-neighbor index rather than an in-memory scan of all tags,
// so it stays correct while other workers create tags concurrently.
type Matcher struct {
	config   MatcherConfig
	embedder types.Embedder
	tags     types.TagStore
	logger   *slog.Logger
}

func NewMatcherWithConfig(config MatcherConfig, embedder types.Embedder, tags types.TagStore, logger *slog.Logger) *Matcher {
	if config.DedupThreshold == 0 {
		config.DedupThreshold = 0.5
	}

	return &Matcher{
		config:   config,
		embedder: embedder,
		tags:     tags,
		logger:   logger,
	}
}

// Resolve returns the tag a candidate maps to. created reports whether a new
// tag row was inserted. A *models.TagCreationError is recoverable per
// candidate; any other error is a dependency failure.
func (m *Matcher) Resolve(ctx context.Context, candidate string) (models.Tag, bool, error) {
	embedding, err := m.embedder.Embed(ctx, candidate)
	if err != nil {
		return models.Tag{}, false, err
	}

	// Top-1 only; ties are whatever ordering the store's index gives for a
	// fixed dataset.
	nearest, distance, found, err := m.tags.NearestTag(ctx, embedding)
	if err != nil {
		return models.Tag{}, false, err
	}

	if found {
		similarity := 1 / (1 + distance)
		if similarity >= m.config.DedupThreshold {
			m.logger.Debug("candidate matched existing tag",
				slog.String("candidate", candidate),
				slog.String("tag", nearest.Text),
				slog.Float64("similarity", similarity))
			return nearest, false, nil
		}
	}

	// No existing tag is close enough (or none exist): reuse the embedding
	// we already computed for the new row.
	tag, err := m.tags.CreateTag(ctx, candidate, embedding)
	if err != nil {
		return models.Tag{}, false, err
	}

	return tag, true, nil
}
