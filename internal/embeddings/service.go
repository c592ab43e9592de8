// Package embeddings provides embedding generation via langchaingo.
//
// The service wraps langchaingo's embedding support over any
// OpenAI-compatible API. Query embeddings are memoized in a bounded LRU
// cache to avoid redundant paid API calls for repeated questions.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/avenhq/supportd/internal/cache"
	"github.com/avenhq/supportd/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Service generates embeddings with query-level memoization.
type Service struct {
	embedder lcembeddings.Embedder
	queries  *cache.Cache[[]float32]
}

// New creates an embedding service from config.
//
// The cache holds query embeddings only; document embeddings (ingestion
// path) are not memoized since document sets do not repeat.
func New(cfg config.EmbeddingsConfig, queryCache *cache.Cache[[]float32]) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for keyless OpenAI-compatible
		// backends
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Service{embedder: embedder, queries: queryCache}, nil
}

// EmbedQuery generates an embedding for a single query, memoized by the
// exact query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if s.queries == nil {
		return s.embedder.EmbedQuery(ctx, text)
	}
	return s.queries.Do(text, func() ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	})
}

// EmbedDocuments generates embeddings for a batch of texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d documents: %w", len(texts), err)
	}
	return vectors, nil
}
