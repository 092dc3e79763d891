package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig represents the configuration for the embedding model.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	VectorDim int
}

// Embedder computes sentence embeddings through a shared Ollama model. One
// instance is created at process start and handed to every worker; it holds
// no per-request state.
type Embedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	// Validate and set default values for config fields if necessary
	if config.Model == "" {
		config.Model = "all-minilm:latest" // 384-dim sentence embeddings
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{
		config: config,
		llm:    emb,
	}, nil
}

// Embed returns the embedding vector for a single piece of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	embeddings, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}

	vector := embeddings[0]
	if len(vector) != e.config.VectorDim {
		return nil, fmt.Errorf("model returned %d dimensions, want %d", len(vector), e.config.VectorDim)
	}

	return vector, nil
}
