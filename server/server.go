package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/internal/types"
	"github.com/xhad/scribe/pkg/cache"
	"github.com/xhad/scribe/pkg/worker"
)

// Store is the slice of the persistence layer the API needs.
type Store interface {
	CreateDocument(ctx context.Context, doc models.Document) (models.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	AllTags(ctx context.Context) ([]models.Tag, error)
	GetTag(ctx context.Context, id uuid.UUID) (models.Tag, error)
	TagsForDocument(ctx context.Context, documentID uuid.UUID) ([]models.Tag, error)
	SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]models.ChunkMatch, error)
}

// Blobs is the slice of blob storage the API needs.
type Blobs interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Config struct {
	Port           string
	CacheTTL       time.Duration
	MaxUploadSize  int64
	SearchLimit    int
	MaxSearchLimit int
}

// Server exposes upload and read-only query endpoints. All annotation work
// happens asynchronously in the workers; upload only stores the blob,
// creates the pending document row and publishes a ready message per queue.
type Server struct {
	config         Config
	store          Store
	blobs          Blobs
	taggingQueue   types.Queue
	embeddingQueue types.Queue
	cache          types.Cache
	embedder       types.Embedder
	logger         *slog.Logger
}

func NewWithConfig(
	config Config,
	store Store,
	blobs Blobs,
	taggingQueue types.Queue,
	embeddingQueue types.Queue,
	c types.Cache,
	embedder types.Embedder,
	logger *slog.Logger,
) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}
	if config.MaxUploadSize == 0 {
		config.MaxUploadSize = 50 << 20 // 50 MiB
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}
	if config.MaxSearchLimit == 0 {
		config.MaxSearchLimit = 20
	}

	return &Server{
		config:         config,
		store:          store,
		blobs:          blobs,
		taggingQueue:   taggingQueue,
		embeddingQueue: embeddingQueue,
		cache:          c,
		embedder:       embedder,
		logger:         logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /documents", s.handleUpload)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("GET /documents/{id}/tags", s.handleDocumentTags)
	mux.HandleFunc("GET /documents/{id}/download", s.handleDownloadURL)
	mux.HandleFunc("GET /tags", s.handleListTags)
	mux.HandleFunc("GET /tags/{id}", s.handleGetTag)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("starting HTTP server", slog.String("port", s.config.Port))
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

type documentResponse struct {
	ID                       string    `json:"id"`
	Filename                 string    `json:"filename"`
	ContentType              string    `json:"content_type"`
	Description              string    `json:"description,omitempty"`
	UploadTime               time.Time `json:"upload_time"`
	TagStatus                string    `json:"tag_status"`
	TagStatusUpdatedAt       time.Time `json:"tag_status_updated_at"`
	EmbeddingStatus          string    `json:"embedding_status"`
	EmbeddingStatusUpdatedAt time.Time `json:"embedding_status_updated_at"`
}

type tagResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDocumentResponse(doc models.Document) documentResponse {
	return documentResponse{
		ID:                       doc.ID.String(),
		Filename:                 doc.Filename,
		ContentType:              doc.ContentType,
		Description:              doc.Description,
		UploadTime:               doc.UploadTime,
		TagStatus:                string(doc.TagStatus),
		TagStatusUpdatedAt:       doc.TagStatusUpdatedAt,
		EmbeddingStatus:          string(doc.EmbeddingStatus),
		EmbeddingStatusUpdatedAt: doc.EmbeddingStatusUpdatedAt,
	}
}

func toTagResponses(tags []models.Tag) []tagResponse {
	out := make([]tagResponse, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tagResponse{
			ID:        tag.ID.String(),
			Text:      tag.Text,
			CreatedAt: tag.CreatedAt,
			UpdatedAt: tag.UpdatedAt,
		})
	}
	return out
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := uniqueStorageKey(header.Filename)
	locator, err := s.blobs.Upload(r.Context(), key, data, contentType)
	if err != nil {
		s.logger.Error("upload to blob store failed", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not store file")
		return
	}

	doc, err := s.store.CreateDocument(r.Context(), models.Document{
		Filename:    header.Filename,
		StoragePath: locator,
		ContentType: contentType,
		Description: r.FormValue("description"),
	})
	if err != nil {
		s.logger.Error("could not create document", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not create document")
		return
	}

	payload, err := json.Marshal(worker.DocumentReady{
		DocumentID:  doc.ID,
		S3URL:       doc.StoragePath,
		ContentType: doc.ContentType,
	})
	if err != nil {
		s.logger.Error("could not encode ready message", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not enqueue document")
		return
	}

	// One ready message per annotation axis; the workers pick them up
	// independently.
	for _, q := range []types.Queue{s.taggingQueue, s.embeddingQueue} {
		if err := q.Publish(r.Context(), payload); err != nil {
			s.logger.Error("could not publish ready message",
				slog.String("documentID", doc.ID.String()),
				slog.Any("error", err))
			s.writeError(w, http.StatusInternalServerError, "could not enqueue document")
			return
		}
	}

	s.writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("could not list documents", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDocumentTags(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}

	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	tags, err := s.store.TagsForDocument(r.Context(), id)
	if err != nil {
		s.logger.Error("could not list document tags", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not list tags")
		return
	}

	s.writeJSON(w, http.StatusOK, toTagResponses(tags))
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	key, err := storageKey(doc.StoragePath)
	if err != nil {
		s.logger.Error("bad storage path", slog.String("documentID", id.String()), slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not resolve document")
		return
	}

	url, err := s.blobs.PresignedURL(r.Context(), key, 5*time.Minute)
	if err != nil {
		s.logger.Error("could not presign download", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not generate download URL")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleListTags serves the tag listing through the cache; the tagging
// worker invalidates the entry whenever it creates a new tag.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	var cached []tagResponse
	hit, err := s.cache.Get(r.Context(), cache.KeyAllTags, &cached)
	if err != nil {
		s.logger.Error("tags cache read failed", slog.Any("error", err))
	}
	if hit {
		s.writeJSON(w, http.StatusOK, cached)
		return
	}

	tags, err := s.store.AllTags(r.Context())
	if err != nil {
		s.logger.Error("could not list tags", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not list tags")
		return
	}

	out := toTagResponses(tags)
	if err := s.cache.Set(r.Context(), cache.KeyAllTags, out, s.config.CacheTTL); err != nil {
		s.logger.Error("tags cache write failed", slog.Any("error", err))
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	tag, err := s.store.GetTag(r.Context(), id)
	if errors.Is(err, models.ErrTagNotFound) {
		s.writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		s.logger.Error("tag lookup failed", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not load tag")
		return
	}

	s.writeJSON(w, http.StatusOK, tagResponse{
		ID:        tag.ID.String(),
		Text:      tag.Text,
		CreatedAt: tag.CreatedAt,
		UpdatedAt: tag.UpdatedAt,
	})
}

type searchResult struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkText  string  `json:"chunk_text"`
	Similarity float64 `json:"similarity"`
}

// handleSearch embeds the query text and returns the stored document chunks
// nearest to it. Only documents whose embedding axis completed have a chunk
// to match.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	limit := s.config.SearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if limit > s.config.MaxSearchLimit {
		limit = s.config.MaxSearchLimit
	}

	embedding, err := s.embedder.Embed(r.Context(), query)
	if err != nil {
		s.logger.Error("could not embed search query", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not process query")
		return
	}

	matches, err := s.store.SimilarChunks(r.Context(), embedding, limit)
	if err != nil {
		s.logger.Error("similarity search failed", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "could not search documents")
		return
	}

	results := make([]searchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, searchResult{
			DocumentID: m.DocumentID.String(),
			Filename:   m.Filename,
			ChunkText:  m.ChunkText,
			Similarity: 1 / (1 + m.Distance),
		})
	}

	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) documentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid document id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrDocumentNotFound) {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	s.logger.Error("document lookup failed", slog.Any("error", err))
	s.writeError(w, http.StatusInternalServerError, "could not load document")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("could not encode response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
