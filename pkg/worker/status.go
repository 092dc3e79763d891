package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/scribe/internal/models"
)

type statusFunc func(ctx context.Context, id uuid.UUID, status models.AnnotationStatus, at time.Time) error

// statusRecorder drives one document's status axis through
// processing -> {completed | skipped | failed}. Each worker type owns exactly
// one axis; the recorder never touches the other one.
type statusRecorder struct {
	axis   string
	update statusFunc
	logger *slog.Logger
}

// begin marks the axis as processing before any I/O happens. It returns
// false when the document no longer exists, in which case the message is a
// terminal no-op: no further status writes are attempted.
func (r statusRecorder) begin(ctx context.Context, id uuid.UUID) bool {
	err := r.update(ctx, id, models.StatusProcessing, time.Now().UTC())
	if errors.Is(err, models.ErrDocumentNotFound) {
		r.logger.Warn("document missing, dropping message",
			slog.String("axis", r.axis),
			slog.String("documentID", id.String()))
		return false
	}
	if err != nil {
		// A transient status-write failure does not abort the run.
		r.logger.Error("could not mark document as processing",
			slog.String("axis", r.axis),
			slog.String("documentID", id.String()),
			slog.Any("error", err))
	}
	return true
}

// finish records the terminal status for this attempt. A write failure (the
// document may have vanished mid-run) is logged and swallowed; the worker's
// outcome for the message is already decided.
func (r statusRecorder) finish(ctx context.Context, id uuid.UUID, status models.AnnotationStatus) models.AnnotationStatus {
	if err := r.update(ctx, id, status, time.Now().UTC()); err != nil {
		r.logger.Error("could not record terminal status",
			slog.String("axis", r.axis),
			slog.String("documentID", id.String()),
			slog.String("status", string(status)),
			slog.Any("error", err))
	}
	return status
}
