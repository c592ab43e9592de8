// Package agent implements the retrieval pipeline behind every answer:
// route the query, retrieve context, judge whether it is good enough,
// fall back to web search when it is not, and generate the reply.
//
// The pipeline never returns an error to callers. Every failure mode
// degrades to a helpful sentence pointing at the support contact.
package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/llm"
)

// Source type labels surfaced in logs and generation prompts.
const (
	sourceKnowledgeBase = "knowledge base"
	sourceWebSearch     = "web search"
	sourceWebFallback   = "web search (fallback)"
)

// invalidQueryResponse is returned for queries too short to act on.
const invalidQueryResponse = "Please provide a more detailed question so I can help you better."

// KnowledgeSearcher retrieves knowledge base context for a query.
// Failures are reported in-band as sentinel text, never as errors.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) string
}

// WebSearcher retrieves live web context for a query, with the same
// in-band failure contract as KnowledgeSearcher.
type WebSearcher interface {
	Search(ctx context.Context, query string) string
}

// Agent runs the answer pipeline.
type Agent struct {
	knowledge KnowledgeSearcher
	web       WebSearcher
	model     llm.ChatModel
	cfg       config.RetrievalConfig
	logger    *zap.Logger
}

// New creates an Agent. Any collaborator may be nil; the corresponding
// stage degrades to its unavailable response instead of panicking.
func New(knowledge KnowledgeSearcher, web WebSearcher, model llm.ChatModel, cfg config.RetrievalConfig, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		knowledge: knowledge,
		web:       web,
		model:     model,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer runs the full pipeline for a single question and returns the
// reply text. It never returns an error.
func (a *Agent) Answer(ctx context.Context, query string) string {
	if a.model == nil {
		return "Agent system not available - missing LLM API keys. Please check your .env file."
	}

	query = strings.TrimSpace(query)
	if len(query) < a.cfg.MinQueryLength {
		a.logger.Warn("query too short", zap.Int("length", len(query)))
		return invalidQueryResponse
	}

	start := time.Now()

	route := routeQuery(query)
	a.logger.Info("query routed", zap.String("route", string(route)))

	var contextText string
	var sourceType string

	if route == RouteWebSearch {
		webStart := time.Now()
		contextText = a.searchWeb(ctx, query)
		sourceType = sourceWebSearch
		a.logger.Debug("web search finished", zap.Duration("took", time.Since(webStart)))
	} else {
		kbStart := time.Now()
		contextText = a.searchKnowledge(ctx, query)
		sourceType = sourceKnowledgeBase
		a.logger.Debug("knowledge base search finished", zap.Duration("took", time.Since(kbStart)))

		if a.isInsufficientContent(ctx, contextText, query) {
			a.logger.Info("knowledge base content insufficient, trying web search fallback")
			fallbackStart := time.Now()
			webContext := a.searchWeb(ctx, query)
			a.logger.Debug("fallback web search finished", zap.Duration("took", time.Since(fallbackStart)))

			if a.acceptFallback(ctx, webContext, query) {
				contextText = webContext
				sourceType = sourceWebFallback
				a.logger.Info("using web search fallback results")
			} else {
				a.logger.Info("web search fallback also insufficient, keeping knowledge base content")
			}
		}
	}

	a.logger.Info("context retrieved",
		zap.String("source", sourceType),
		zap.Int("context_length", len(contextText)))

	response := a.generateResponse(ctx, query, contextText, sourceType)

	a.logger.Info("answer generated",
		zap.String("source", sourceType),
		zap.Duration("total", time.Since(start)))
	return response
}

// acceptFallback decides whether web fallback content should replace the
// knowledge base content it is standing in for.
func (a *Agent) acceptFallback(ctx context.Context, webContext, query string) bool {
	if webContext == "" {
		return false
	}
	if len(strings.TrimSpace(webContext)) <= a.cfg.MinFallbackLen {
		return false
	}
	return !a.isInsufficientContent(ctx, webContext, query)
}

func (a *Agent) searchKnowledge(ctx context.Context, query string) string {
	if a.knowledge == nil {
		return "Knowledge base not available - missing API keys or index not found"
	}
	return a.knowledge.Search(ctx, query)
}

func (a *Agent) searchWeb(ctx context.Context, query string) string {
	if a.web == nil {
		return "Web search not available - missing SERPER_API_KEY"
	}
	return a.web.Search(ctx, query)
}
