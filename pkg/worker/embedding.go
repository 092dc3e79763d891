package worker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/internal/types"
)

// EmbeddingWorker computes and stores the single similarity-search embedding
// for a document. It mirrors the tagging worker's guard structure on the
// embedding axis.
type EmbeddingWorker struct {
	documents  types.DocumentStore
	embeddings types.EmbeddingStore
	blobs      types.BlobStore
	extractor  types.Extractor
	embedder   types.Embedder
	logger     *slog.Logger
	status     statusRecorder
}

func NewEmbeddingWorker(
	documents types.DocumentStore,
	embeddings types.EmbeddingStore,
	blobs types.BlobStore,
	extractor types.Extractor,
	embedder types.Embedder,
	logger *slog.Logger,
) *EmbeddingWorker {
	return &EmbeddingWorker{
		documents:  documents,
		embeddings: embeddings,
		blobs:      blobs,
		extractor:  extractor,
		embedder:   embedder,
		logger:     logger,
		status: statusRecorder{
			axis:   "embedding",
			update: documents.UpdateEmbeddingStatus,
			logger: logger,
		},
	}
}

// Process handles one document-ready message on the embedding axis.
func (w *EmbeddingWorker) Process(ctx context.Context, msg DocumentReady) models.AnnotationStatus {
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

	if strings.TrimSpace(text) == "" {
		w.logger.Info("empty document text, nothing to embed",
			slog.String("documentID", msg.DocumentID.String()))
		return w.status.finish(ctx, msg.DocumentID, models.StatusSkipped)
	}

	embedding, err := w.embedder.Embed(ctx, text)
	if err != nil {
		w.logger.Error("embedding failed",
			slog.String("documentID", msg.DocumentID.String()),
			slog.Any("error", err))
		return w.status.finish(ctx, msg.DocumentID, models.StatusFailed)
	}

	// Insert-or-noop: a record left behind by an earlier delivery of this
	// message counts as success.
	if err := w.embeddings.CreateDocumentEmbedding(ctx, msg.DocumentID, text, embedding); err != nil {
		w.logger.Error("could not store document embedding",
			slog.String("documentID", msg.DocumentID.String()),
			slog.Any("error", err))
		return w.status.finish(ctx, msg.DocumentID, models.StatusFailed)
	}

	w.logger.Info("document embedded",
		slog.String("documentID", msg.DocumentID.String()))

	return w.status.finish(ctx, msg.DocumentID, models.StatusCompleted)
}
