// Package knowledge implements knowledge-base retrieval over the vector
// index.
//
// The search contract is a describable string, never an error: callers
// treat results as text to assess for sufficiency, not as a success/failure
// signal, so every failure mode maps to a sentinel string.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/embeddings"
	"github.com/avenhq/supportd/internal/vectorstore"
)

// Sentinel results returned instead of errors.
const (
	ResultUnavailable  = "Knowledge base not available - missing API keys or index not found"
	ResultEmbeddingErr = "Error generating query embedding"
	ResultNoMatches    = "No relevant information found in the knowledge base."
	ResultNoContent    = "No readable content found in search results."
)

// docSeparator joins retrieved documents with a visual delimiter.
const docSeparator = "\n\n---\n\n"

// metadataTextKeys are tried in order when extracting document text from a
// match payload. "page_content" is the langchain ingester's default key.
var metadataTextKeys = []string{"text", "content", "page_content"}

// Searcher retrieves and formats knowledge-base content for a query.
type Searcher struct {
	embedder embeddings.Embedder
	index    vectorstore.Index
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

// NewSearcher creates a Searcher.
//
// Either dependency may be nil when the corresponding backend is not
// configured; Search then degrades to the unavailable sentinel instead of
// failing at startup.
func NewSearcher(embedder embeddings.Embedder, index vectorstore.Index, cfg config.RetrievalConfig, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{embedder: embedder, index: index, cfg: cfg, logger: logger}
}

// Search embeds the query, retrieves the top-K nearest neighbors and
// returns their text joined with a delimiter. All failures are converted
// to sentinel strings.
func (s *Searcher) Search(ctx context.Context, query string) string {
	if s.index == nil || s.embedder == nil {
		return ResultUnavailable
	}

	start := time.Now()
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil || len(vector) == 0 {
		s.logger.Error("generating query embedding failed", zap.Error(err))
		return ResultEmbeddingErr
	}
	s.logger.Debug("query embedded",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("dimensions", len(vector)))

	queryStart := time.Now()
	matches, err := s.index.Query(ctx, vector, s.cfg.TopK)
	if err != nil {
		s.logger.Error("vector index query failed", zap.Error(err))
		return fmt.Sprintf("Error retrieving from knowledge base: %v", err)
	}
	s.logger.Debug("vector index queried",
		zap.Duration("elapsed", time.Since(queryStart)),
		zap.Int("matches", len(matches)))

	if len(matches) == 0 {
		s.logger.Warn("no matches found for query")
		return ResultNoMatches
	}

	docs := make([]string, 0, len(matches))
	for _, match := range matches {
		text := extractText(match.Metadata)
		text = truncate(text, s.cfg.MaxDocLength)
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, text)
	}

	if len(docs) == 0 {
		s.logger.Warn("matches carried no readable content")
		return ResultNoContent
	}

	return strings.Join(docs, docSeparator)
}

// toolTopK bounds retrieval for the tool-calling path, which favors a
// few well formatted contexts over breadth.
const toolTopK = 3

// structuredMarkers get their own line when reflowing FAQ-style text.
var structuredMarkers = []string{"Section:", "Question:", "Answer:"}

// Contexts retrieves individual context passages for the tool-calling
// path. Unlike Search it reports failures as errors so the dispatcher
// can shape them into tool result payloads.
func (s *Searcher) Contexts(ctx context.Context, query string) ([]string, error) {
	if s.index == nil || s.embedder == nil {
		return nil, errors.New("knowledge index not found")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("a valid query is required to search the knowledge base")
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}

	matches, err := s.index.Query(ctx, vector, toolTopK)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge index: %w", err)
	}

	contexts := make([]string, 0, len(matches))
	for _, match := range matches {
		text := extractText(match.Metadata)
		if strings.TrimSpace(text) == "" {
			continue
		}
		contexts = append(contexts, reflow(text))
	}
	return contexts, nil
}

// reflow collapses runs of whitespace and puts FAQ markers on their own
// lines so structured entries stay readable after normalization.
func reflow(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for _, marker := range structuredMarkers {
		text = strings.ReplaceAll(text, marker, "\n"+marker)
	}
	return text
}

// extractText pulls document text from match metadata, falling back through
// the known payload keys and finally a formatted dump of the metadata.
func extractText(metadata map[string]interface{}) string {
	if metadata == nil {
		return ""
	}
	for _, key := range metadataTextKeys {
		if v, ok := metadata[key]; ok {
			if text, ok := v.(string); ok && text != "" {
				return text
			}
		}
	}
	return fmt.Sprintf("%v", metadata)
}

// truncate caps text to max characters with an ellipsis marker.
func truncate(text string, max int) string {
	if max > 0 && len(text) > max {
		return text[:max] + "..."
	}
	return text
}
