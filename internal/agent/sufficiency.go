package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/llm"
)

// insufficientIndicators are sentinel phrases emitted by the retrieval
// layer when it could not produce usable content.
var insufficientIndicators = []string{
	"no relevant information found",
	"no readable content found",
	"error retrieving from knowledge base",
	"knowledge base not available",
}

const evaluationPromptTemplate = `You are an AI evaluator. Your job is to determine if content adequately addresses a user's question.

USER'S ORIGINAL QUESTION: %s

CONTENT TO EVALUATE: %s

EVALUATION CRITERIA:
1. Does the content directly relate to the user's question?
2. Does the content provide specific, useful information?
3. Would this content help answer the user's question?

IMPORTANT:
- Content that says "no information found" or similar is INSUFFICIENT
- Content with actual details, facts, or relevant information is SUFFICIENT
- Even partial information that relates to the question is SUFFICIENT

Respond with exactly one word: "SUFFICIENT" or "INSUFFICIENT"
`

// isInsufficientContent reports whether retrieved content is too weak to
// answer the query. Cheap structural checks run first; the LLM is only
// consulted for content the heuristics cannot classify.
func (a *Agent) isInsufficientContent(ctx context.Context, content, query string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < a.cfg.MinContentLength {
		return true
	}

	lower := strings.ToLower(content)
	for _, indicator := range insufficientIndicators {
		if strings.Contains(lower, indicator) {
			a.logger.Info("content marked insufficient due to error indicators")
			return true
		}
	}

	// Substantial prose is assumed sufficient. This skips the LLM call
	// for the large majority of knowledge base hits.
	if len(content) > a.cfg.SufficientLength && strings.Contains(content, ".") {
		return false
	}

	a.logger.Info("evaluating content relevance with LLM")
	return a.isInsufficientByLLM(ctx, content, query)
}

// isInsufficientByLLM asks the model for a SUFFICIENT/INSUFFICIENT
// verdict. Any failure counts as insufficient so the caller falls back
// rather than answering from weak context.
func (a *Agent) isInsufficientByLLM(ctx context.Context, content, query string) bool {
	if a.model == nil || len(strings.TrimSpace(content)) < 10 {
		return true
	}

	prompt := fmt.Sprintf(evaluationPromptTemplate, query, content)
	completion, err := a.model.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Options{})
	if err != nil {
		a.logger.Error("LLM content evaluation failed", zap.Error(err))
		return true
	}

	verdict := strings.ToUpper(strings.TrimSpace(completion.Content))
	a.logger.Info("LLM evaluation of content", zap.String("verdict", verdict))
	return strings.Contains(verdict, "INSUFFICIENT")
}
