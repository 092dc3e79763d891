package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/pkg/worker"
)

type embeddingFixture struct {
	docs      *fakeDocuments
	records   *fakeEmbeddings
	blobs     *fakeBlobs
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	worker    *worker.EmbeddingWorker
}

func newEmbeddingFixture() *embeddingFixture {
	f := &embeddingFixture{
		docs:      &fakeDocuments{},
		records:   newFakeEmbeddings(),
		blobs:     &fakeBlobs{data: []byte("%PDF-1.4")},
		extractor: &fakeExtractor{text: "document body"},
		embedder:  &fakeEmbedder{},
	}
	f.worker = worker.NewEmbeddingWorker(f.docs, f.records, f.blobs, f.extractor, f.embedder, discardLogger())
	return f
}

func TestEmbeddingWorkerStoresEmbedding(t *testing.T) {
	f := newEmbeddingFixture()
	msg := readyMessage()

	status := f.worker.Process(context.Background(), msg)

	require.Equal(t, models.StatusCompleted, status)
	assert.Equal(t, 1, f.records.count())
	assert.Equal(t, "document body", f.records.records[msg.DocumentID])
	assert.Equal(t, models.StatusCompleted, f.docs.lastEmbeddingStatus())
}

func TestEmbeddingWorkerRedeliveryIsIdempotent(t *testing.T) {
	f := newEmbeddingFixture()
	msg := readyMessage()

	first := f.worker.Process(context.Background(), msg)
	second := f.worker.Process(context.Background(), msg)

	require.Equal(t, models.StatusCompleted, first)
	require.Equal(t, models.StatusCompleted, second)
	assert.Equal(t, 1, f.records.count())
}

func TestEmbeddingWorkerSkipsNonPDF(t *testing.T) {
	f := newEmbeddingFixture()
	msg := readyMessage()
	msg.ContentType = "text/plain"

	status := f.worker.Process(context.Background(), msg)

	require.Equal(t, models.StatusSkipped, status)
	assert.Zero(t, f.blobs.downloads)
	assert.Zero(t, f.records.count())
	assert.Equal(t, models.StatusSkipped, f.docs.lastEmbeddingStatus())
}

func TestEmbeddingWorkerSkipsEmptyText(t *testing.T) {
	f := newEmbeddingFixture()
	f.extractor.text = "   \n\t  "

	status := f.worker.Process(context.Background(), readyMessage())

	require.Equal(t, models.StatusSkipped, status)
	assert.Zero(t, f.records.count())
}

func TestEmbeddingWorkerDownloadFailure(t *testing.T) {
	f := newEmbeddingFixture()
	f.blobs.err = errors.New("connection refused")

	status := f.worker.Process(context.Background(), readyMessage())

	require.Equal(t, models.StatusFailed, status)
	assert.Equal(t, models.StatusFailed, f.docs.lastEmbeddingStatus())
}

func TestEmbeddingWorkerExtractionFailure(t *testing.T) {
	f := newEmbeddingFixture()
	f.extractor.textErr = errors.New("not a pdf")

	status := f.worker.Process(context.Background(), readyMessage())

	require.Equal(t, models.StatusFailed, status)
}

func TestEmbeddingWorkerEmbedFailure(t *testing.T) {
	f := newEmbeddingFixture()
	f.embedder.err = errors.New("model not loaded")

	status := f.worker.Process(context.Background(), readyMessage())

	require.Equal(t, models.StatusFailed, status)
	assert.Zero(t, f.records.count())
}

func TestEmbeddingWorkerStoreFailure(t *testing.T) {
	f := newEmbeddingFixture()
	f.records.fail = true

	status := f.worker.Process(context.Background(), readyMessage())

	require.Equal(t, models.StatusFailed, status)
}

func TestEmbeddingWorkerMissingDocumentWritesNothing(t *testing.T) {
	f := newEmbeddingFixture()
	f.docs.missing = true

	status := f.worker.Process(context.Background(), readyMessage())

	assert.Equal(t, models.AnnotationStatus(""), status)
	assert.Empty(t, f.docs.embeddingWrites)
	assert.Zero(t, f.records.count())
}
