package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/internal/types"
	"github.com/xhad/scribe/pkg/worker"
	"github.com/xhad/scribe/server"
)

type apiStore struct {
	documents  map[uuid.UUID]models.Document
	tags       []models.Tag
	docTags    map[uuid.UUID][]models.Tag
	matches    []models.ChunkMatch
	created    []models.Document
	tagCalls   int
	getErr     error
	lastLimit  int
	lastVector []float32
}

func newAPIStore() *apiStore {
	return &apiStore{
		documents: make(map[uuid.UUID]models.Document),
		docTags:   make(map[uuid.UUID][]models.Tag),
	}
}

func (s *apiStore) CreateDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	doc.ID = uuid.New()
	doc.UploadTime = time.Now()
	doc.TagStatus = models.StatusPending
	doc.EmbeddingStatus = models.StatusPending
	s.documents[doc.ID] = doc
	s.created = append(s.created, doc)
	return doc, nil
}

func (s *apiStore) GetDocument(ctx context.Context, id uuid.UUID) (models.Document, error) {
	if s.getErr != nil {
		return models.Document{}, s.getErr
	}
	doc, ok := s.documents[id]
	if !ok {
		return models.Document{}, models.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *apiStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	out := make([]models.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		out = append(out, doc)
	}
	return out, nil
}

func (s *apiStore) AllTags(ctx context.Context) ([]models.Tag, error) {
	s.tagCalls++
	return s.tags, nil
}

func (s *apiStore) GetTag(ctx context.Context, id uuid.UUID) (models.Tag, error) {
	for _, tag := range s.tags {
		if tag.ID == id {
			return tag, nil
		}
	}
	return models.Tag{}, models.ErrTagNotFound
}

func (s *apiStore) TagsForDocument(ctx context.Context, documentID uuid.UUID) ([]models.Tag, error) {
	return s.docTags[documentID], nil
}

func (s *apiStore) SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]models.ChunkMatch, error) {
	s.lastVector = embedding
	s.lastLimit = limit
	if len(s.matches) > limit {
		return s.matches[:limit], nil
	}
	return s.matches, nil
}

type apiBlobs struct {
	uploads map[string][]byte
	err     error
}

func (b *apiBlobs) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if b.uploads == nil {
		b.uploads = make(map[string][]byte)
	}
	b.uploads[key] = data
	return "s3://documents/" + key, nil
}

func (b *apiBlobs) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return "http://minio.local/documents/" + key + "?signed", nil
}

type apiQueue struct {
	published [][]byte
	err       error
}

func (q *apiQueue) Publish(ctx context.Context, payload []byte) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, payload)
	return nil
}

func (q *apiQueue) Fetch(ctx context.Context, max int, wait time.Duration) ([]types.Message, error) {
	return nil, nil
}

type apiCache struct {
	entries map[string][]byte
	sets    int
}

func (c *apiCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *apiCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	c.entries[key] = data
	c.sets++
	return nil
}

func (c *apiCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

type apiEmbedder struct {
	vector []float32
	err    error
}

func (e *apiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.vector != nil {
		return e.vector, nil
	}
	return []float32{1, 0}, nil
}

type apiFixture struct {
	store          *apiStore
	blobs          *apiBlobs
	taggingQueue   *apiQueue
	embeddingQueue *apiQueue
	cache          *apiCache
	embedder       *apiEmbedder
	handler        http.Handler
}

func newAPIFixture() *apiFixture {
	f := &apiFixture{
		store:          newAPIStore(),
		blobs:          &apiBlobs{},
		taggingQueue:   &apiQueue{},
		embeddingQueue: &apiQueue{},
		cache:          &apiCache{},
		embedder:       &apiEmbedder{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.NewWithConfig(server.Config{}, f.store, f.blobs,
		f.taggingQueue, f.embeddingQueue, f.cache, f.embedder, logger)
	f.handler = srv.Handler()
	return f
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="` + filename + `"`},
		"Content-Type":        {contentType},
	})
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadCreatesPendingDocumentAndPublishes(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, multipartUpload(t, "report.pdf", "application/pdf", []byte("%PDF-1.4")))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID              string `json:"id"`
		Filename        string `json:"filename"`
		TagStatus       string `json:"tag_status"`
		EmbeddingStatus string `json:"embedding_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "report.pdf", resp.Filename)
	assert.Equal(t, string(models.StatusPending), resp.TagStatus)
	assert.Equal(t, string(models.StatusPending), resp.EmbeddingStatus)

	// One ready message per queue, both decodable and pointing at the blob.
	require.Len(t, f.taggingQueue.published, 1)
	require.Len(t, f.embeddingQueue.published, 1)

	msg, err := worker.ParseDocumentReady(f.taggingQueue.published[0])
	require.NoError(t, err)
	assert.Equal(t, resp.ID, msg.DocumentID.String())
	assert.Equal(t, "application/pdf", msg.ContentType)
	assert.Contains(t, msg.S3URL, "s3://documents/")
}

func TestUploadRequiresFileField(t *testing.T) {
	f := newAPIFixture()

	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.taggingQueue.published)
}

func TestUploadBlobFailure(t *testing.T) {
	f := newAPIFixture()
	f.blobs.err = errors.New("bucket unavailable")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, multipartUpload(t, "report.pdf", "application/pdf", []byte("%PDF-1.4")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, f.store.created)
}

func TestGetDocument(t *testing.T) {
	f := newAPIFixture()
	doc, err := f.store.CreateDocument(context.Background(), models.Document{
		Filename:    "report.pdf",
		StoragePath: "s3://documents/report.pdf",
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, doc.ID.String(), resp["id"])
	assert.Equal(t, "report.pdf", resp["filename"])
}

func TestGetDocumentNotFound(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDocumentInvalidID(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentTags(t *testing.T) {
	f := newAPIFixture()
	doc, err := f.store.CreateDocument(context.Background(), models.Document{Filename: "report.pdf"})
	require.NoError(t, err)
	f.store.docTags[doc.ID] = []models.Tag{{ID: uuid.New(), Text: "machine learning"}}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String()+"/tags", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "machine learning", resp[0]["text"])
}

func TestDocumentTagsNotFound(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString()+"/tags", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadURL(t *testing.T) {
	f := newAPIFixture()
	doc, err := f.store.CreateDocument(context.Background(), models.Document{
		Filename:    "report.pdf",
		StoragePath: "s3://documents/report_20240101_abcd1234.pdf",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String()+"/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "http://minio.local/documents/report_20240101_abcd1234.pdf?signed", resp["url"])
}

func TestListTagsPopulatesCache(t *testing.T) {
	f := newAPIFixture()
	f.store.tags = []models.Tag{{ID: uuid.New(), Text: "astronomy"}}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tags", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.store.tagCalls)
	assert.Equal(t, 1, f.cache.sets)

	// Second request is served from the cache.
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tags", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.store.tagCalls)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "astronomy", resp[0]["text"])
}

func TestGetDocumentNotFoundWrapped(t *testing.T) {
	f := newAPIFixture()
	f.store.getErr = fmt.Errorf("lookup: %w", models.ErrDocumentNotFound)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTag(t *testing.T) {
	f := newAPIFixture()
	tag := models.Tag{ID: uuid.New(), Text: "machine learning"}
	f.store.tags = []models.Tag{tag}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tags/"+tag.ID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, tag.ID.String(), resp["id"])
	assert.Equal(t, "machine learning", resp["text"])
}

func TestGetTagNotFound(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tags/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchReturnsSimilarChunks(t *testing.T) {
	f := newAPIFixture()
	docID := uuid.New()
	f.store.matches = []models.ChunkMatch{
		{DocumentID: docID, Filename: "report.pdf", ChunkText: "neural networks", Distance: 1.0},
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=neural+networks", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, docID.String(), resp[0]["document_id"])
	assert.Equal(t, "report.pdf", resp[0]["filename"])
	assert.Equal(t, "neural networks", resp[0]["chunk_text"])
	assert.InDelta(t, 0.5, resp[0]["similarity"].(float64), 0.001)

	// The query was embedded and the default limit applied.
	assert.Equal(t, []float32{1, 0}, f.store.lastVector)
	assert.Equal(t, 5, f.store.lastLimit)
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=++", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchLimitValidationAndCap(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=x&limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=x&limit=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=x&limit=500", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, f.store.lastLimit)
}

func TestSearchEmbedFailure(t *testing.T) {
	f := newAPIFixture()
	f.embedder.err = errors.New("ollama unreachable")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
