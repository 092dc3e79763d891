package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/internal/types"
	"github.com/xhad/scribe/pkg/cache"
)

type TaggingWorkerConfig struct {
	MaxCandidates int
}

// TaggingWorker annotates a document with deduplicated semantic tags. Every
// outcome of Process resolves into a terminal status on the tagging axis;
// nothing propagates to the consumer loop as an error.
type TaggingWorker struct {
	config    TaggingWorkerConfig
	documents types.DocumentStore
	links     types.LinkStore
	blobs     types.BlobStore
	extractor types.Extractor
	matcher   *Matcher
	cache     types.Cache
	logger    *slog.Logger
	status    statusRecorder
}

func NewTaggingWorker(
	config TaggingWorkerConfig,
	documents types.DocumentStore,
	links types.LinkStore,
	blobs types.BlobStore,
	extractor types.Extractor,
	matcher *Matcher,
	c types.Cache,
	logger *slog.Logger,
) *TaggingWorker {
	if config.MaxCandidates == 0 {
		config.MaxCandidates = 5
	}

	return &TaggingWorker{
		config:    config,
		documents: documents,
		links:     links,
		blobs:     blobs,
		extractor: extractor,
		matcher:   matcher,
		cache:     c,
		logger:    logger,
		status: statusRecorder{
			axis:   "tagging",
			update: documents.UpdateTagStatus,
			logger: logger,
		},
	}
}

// Process handles one document-ready message on the tagging axis. It returns
// the terminal status it recorded, or the empty status when the document no
// longer exists and nothing was written.
func (w *TaggingWorker) Process(ctx context.Context, msg DocumentReady) models.AnnotationStatus {
	if !w.status.begin(ctx, msg.DocumentID) {
		return ""
	}

	if msg.ContentType != models.ContentTypePDF {
		w.logger.Info("skipping unsupported content type",
			slog.String("documentID", msg.DocumentID.String()),
			slog.String("contentType", msg.ContentType))
		return w.status.finish(ctx, msg.DocumentID, models.StatusSkipped)
	}

	fileBytes, err := w.blobs.Download(ctx, msg.S3URL)
	if err != nil {
		w.logger.Error("blob download failed",
			slog.String("documentID", msg.DocumentID.String()),
			slog.Any("error", err))
		return w.status.finish(ctx, msg.DocumentID, models.StatusFailed)
	}

	text, err := w.extractor.Text(fileBytes)
	if err != nil {
		w.logger.Error("text extraction failed",
			slog.String("documentID", msg.DocumentID.String()),
			slog.Any("error", err))
		return w.status.finish(ctx, msg.DocumentID, models.StatusFailed)
	}

	// An empty candidate list is valid: the document simply ends up with
	// zero links.
	candidates := w.extractor.CandidateTags(text, w.config.MaxCandidates)

	linked := make(map[uuid.UUID]bool)
	newTagCreated := false

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}

		tag, created, err := w.matcher.Resolve(ctx, candidate)
		if err != nil {
			var creationErr *models.TagCreationError
			if errors.As(err, &creationErr) {
				// Recoverable per candidate: drop it, keep the rest.
				w.logger.Warn("could not create tag for candidate",
					slog.String("documentID", msg.DocumentID.String()),
					slog.String("candidate", candidate),
					slog.Any("error", err))
				continue
			}
			w.logger.Error("tag resolution failed",
				slog.String("documentID", msg.DocumentID.String()),
				slog.String("candidate", candidate),
				slog.Any("error", err))
			return w.status.finish(ctx, msg.DocumentID, models.StatusFailed)
		}
		if created {
			newTagCreated = true
		}

		if linked[tag.ID] {
			continue
		}
		if err := w.links.LinkDocumentTag(ctx, msg.DocumentID, tag.ID); err != nil {
			w.logger.Error("could not link document and tag",
				slog.String("documentID", msg.DocumentID.String()),
				slog.String("tagID", tag.ID.String()),
				slog.Any("error", err))
			return w.status.finish(ctx, msg.DocumentID, models.StatusFailed)
		}
		linked[tag.ID] = true
	}

	// One invalidation per message, not per tag.
	if newTagCreated {
		if err := w.cache.Delete(ctx, cache.KeyAllTags); err != nil {
			w.logger.Error("could not invalidate tags cache", slog.Any("error", err))
		}
	}

	w.logger.Info("document tagged",
		slog.String("documentID", msg.DocumentID.String()),
		slog.Int("tags", len(linked)))

	return w.status.finish(ctx, msg.DocumentID, models.StatusCompleted)
}
