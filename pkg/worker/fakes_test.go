package worker_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/internal/types"
)

// In-memory collaborators mirroring the contracts of pkg/store, pkg/blob,
// pkg/llm, pkg/extract and pkg/cache.

type statusWrite struct {
	status models.AnnotationStatus
	at     time.Time
}

type fakeDocuments struct {
	mu               sync.Mutex
	missing          bool
	tagWrites        []statusWrite
	embeddingWrites  []statusWrite
	failStatusWrites bool
}

func (f *fakeDocuments) CreateDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	return doc, nil
}

func (f *fakeDocuments) GetDocument(ctx context.Context, id uuid.UUID) (models.Document, error) {
	if f.missing {
		return models.Document{}, models.ErrDocumentNotFound
	}
	return models.Document{ID: id}, nil
}

func (f *fakeDocuments) UpdateTagStatus(ctx context.Context, id uuid.UUID, status models.AnnotationStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return models.ErrDocumentNotFound
	}
	if f.failStatusWrites {
		return errors.New("status write failed")
	}
	f.tagWrites = append(f.tagWrites, statusWrite{status: status, at: at})
	return nil
}

func (f *fakeDocuments) UpdateEmbeddingStatus(ctx context.Context, id uuid.UUID, status models.AnnotationStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return models.ErrDocumentNotFound
	}
	if f.failStatusWrites {
		return errors.New("status write failed")
	}
	f.embeddingWrites = append(f.embeddingWrites, statusWrite{status: status, at: at})
	return nil
}

func (f *fakeDocuments) lastTagStatus() models.AnnotationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tagWrites) == 0 {
		return ""
	}
	return f.tagWrites[len(f.tagWrites)-1].status
}

func (f *fakeDocuments) lastEmbeddingStatus() models.AnnotationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.embeddingWrites) == 0 {
		return ""
	}
	return f.embeddingWrites[len(f.embeddingWrites)-1].status
}

type fakeTags struct {
	mu       sync.Mutex
	tags     []models.Tag
	failText map[string]bool
}

func (f *fakeTags) CreateTag(ctx context.Context, text string, embedding []float32) (models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText[text] {
		return models.Tag{}, &models.TagCreationError{Text: text, Err: errors.New("insert failed")}
	}
	tag := models.Tag{
		ID:        uuid.New(),
		Text:      text,
		Embedding: embedding,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.tags = append(f.tags, tag)
	return tag, nil
}

func (f *fakeTags) NearestTag(ctx context.Context, embedding []float32) (models.Tag, float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	best := -1
	bestDist := 0.0
	for i, tag := range f.tags {
		d := l2(tag.Embedding, embedding)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best == -1 {
		return models.Tag{}, 0, false, nil
	}
	return f.tags[best], bestDist, true, nil
}

func (f *fakeTags) AllTags(ctx context.Context) ([]models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Tag(nil), f.tags...), nil
}

func (f *fakeTags) TagsForDocument(ctx context.Context, documentID uuid.UUID) ([]models.Tag, error) {
	return nil, nil
}

func (f *fakeTags) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tags)
}

func l2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

type linkKey struct {
	doc uuid.UUID
	tag uuid.UUID
}

type fakeLinks struct {
	mu      sync.Mutex
	links   map[linkKey]bool
	inserts int
	fail    bool
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: make(map[linkKey]bool)}
}

func (f *fakeLinks) LinkDocumentTag(ctx context.Context, documentID, tagID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("link failed")
	}
	key := linkKey{doc: documentID, tag: tagID}
	if !f.links[key] {
		f.links[key] = true
		f.inserts++
	}
	return nil
}

func (f *fakeLinks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

type fakeEmbeddings struct {
	mu      sync.Mutex
	records map[uuid.UUID]string
	fail    bool
}

func newFakeEmbeddings() *fakeEmbeddings {
	return &fakeEmbeddings{records: make(map[uuid.UUID]string)}
}

func (f *fakeEmbeddings) CreateDocumentEmbedding(ctx context.Context, documentID uuid.UUID, chunkText string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return &models.EmbeddingCreationError{DocumentID: documentID.String(), Err: errors.New("insert failed")}
	}
	if _, exists := f.records[documentID]; exists {
		// insert-or-noop, like the ON CONFLICT DO NOTHING path
		return nil
	}
	f.records[documentID] = chunkText
	return nil
}

func (f *fakeEmbeddings) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeBlobs struct {
	data      []byte
	err       error
	downloads int
}

func (f *fakeBlobs) Download(ctx context.Context, locator string) ([]byte, error) {
	f.downloads++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	// Default: a constant vector so unrelated texts collide at distance 0.
	return []float32{1, 0}, nil
}

type fakeExtractor struct {
	text       string
	textErr    error
	candidates []string
}

func (f *fakeExtractor) Text(fileBytes []byte) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.text, nil
}

func (f *fakeExtractor) CandidateTags(text string, max int) []string {
	if len(f.candidates) > max {
		return f.candidates[:max]
	}
	return f.candidates
}

type fakeCache struct {
	mu      sync.Mutex
	deletes []string
}

func (f *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return false, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeCache) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

type fakeMessage struct {
	data  []byte
	acked bool
}

func (m *fakeMessage) Data() []byte { return m.data }
func (m *fakeMessage) Ack() error {
	m.acked = true
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	batches [][]types.Message
	cancel  context.CancelFunc
}

func (q *fakeQueue) Publish(ctx context.Context, payload []byte) error {
	return nil
}

// Fetch serves one prepared batch per call and cancels the consumer's
// context once it runs out.
func (q *fakeQueue) Fetch(ctx context.Context, max int, wait time.Duration) ([]types.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		if q.cancel != nil {
			q.cancel()
		}
		return nil, nil
	}
	batch := q.batches[0]
	q.batches = q.batches[1:]
	return batch, nil
}
