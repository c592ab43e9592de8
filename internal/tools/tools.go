// Package tools defines the function tools exposed to the LLM and the
// voice platform, and dispatches their invocations.
//
// Dispatch never fails: every error is shaped into an {"error": ...}
// payload so the model can read it and recover in conversation.
package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/calendar"
	"github.com/avenhq/supportd/internal/websearch"
)

// Tool names.
const (
	NameKnowledgeSearch   = "search_aven_knowledge"
	NameWebSearch         = "search_web"
	NameScheduleMeeting   = "schedule_meeting"
	NameCheckAvailability = "check_availability"
)

// KnowledgeSearcher retrieves knowledge base passages for a query.
type KnowledgeSearcher interface {
	Contexts(ctx context.Context, query string) ([]string, error)
}

// WebSearcher retrieves structured web results for a query.
type WebSearcher interface {
	Results(ctx context.Context, query string) (*websearch.Results, error)
}

// Scheduler books support meetings and checks slot availability.
type Scheduler interface {
	Schedule(ctx context.Context, email, date, startTime string) (calendar.ScheduleResult, error)
	CheckAvailability(ctx context.Context, date, startTime string) (calendar.AvailabilityResult, error)
}

// Registry holds the tool implementations and their schemas.
type Registry struct {
	knowledge KnowledgeSearcher
	web       WebSearcher
	scheduler Scheduler
	logger    *zap.Logger
}

// NewRegistry creates a Registry. Any implementation may be nil; calls
// to its tools then return an error payload.
func NewRegistry(knowledge KnowledgeSearcher, web WebSearcher, scheduler Scheduler, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{knowledge: knowledge, web: web, scheduler: scheduler, logger: logger}
}

// Schemas returns the function declarations offered to the model.
func (r *Registry) Schemas() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        NameKnowledgeSearch,
				Description: "Search Aven's knowledge base for product information, policies, rates, etc.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The user's question or topic to search for.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        NameWebSearch,
				Description: "Search the web for recent or time-sensitive information.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The search query.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        NameScheduleMeeting,
				Description: "Schedule a meeting with an Aven specialist.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"email": map[string]any{
							"type":        "string",
							"description": "User's email.",
						},
						"preferred_date": map[string]any{
							"type":        "string",
							"description": "Preferred date (YYYY-MM-DD).",
						},
						"preferred_time": map[string]any{
							"type":        "string",
							"description": "Preferred time (HH:MM 24-hour).",
						},
					},
					"required": []string{"email", "preferred_date", "preferred_time"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        NameCheckAvailability,
				Description: "Check availability for a meeting.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"date": map[string]any{
							"type":        "string",
							"description": "Date (YYYY-MM-DD).",
						},
						"time": map[string]any{
							"type":        "string",
							"description": "Time (HH:MM 24-hour).",
						},
					},
					"required": []string{"date", "time"},
				},
			},
		},
	}
}

// Dispatch runs the named tool and returns a JSON-serializable payload.
// Unknown tools and handler failures become error payloads.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]interface{}) interface{} {
	r.logger.Info("dispatching tool call", zap.String("tool", name))

	switch name {
	case NameKnowledgeSearch:
		return r.searchKnowledge(ctx, stringParam(params, "query"))
	case NameWebSearch:
		return r.searchWeb(ctx, stringParam(params, "query"))
	case NameScheduleMeeting:
		return r.schedule(ctx,
			stringParam(params, "email"),
			stringParam(params, "preferred_date"),
			stringParam(params, "preferred_time"))
	case NameCheckAvailability:
		return r.checkAvailability(ctx,
			stringParam(params, "date"),
			stringParam(params, "time"))
	default:
		r.logger.Warn("unknown tool requested", zap.String("tool", name))
		return errorPayload("Unknown tool")
	}
}

func (r *Registry) searchKnowledge(ctx context.Context, query string) interface{} {
	if query == "" {
		return errorPayload("A valid query is required to search the knowledge base.")
	}
	if r.knowledge == nil {
		return errorPayload("Knowledge base not available.")
	}
	contexts, err := r.knowledge.Contexts(ctx, query)
	if err != nil {
		r.logger.Error("knowledge tool failed", zap.Error(err))
		return errorPayload(err.Error())
	}
	return map[string]interface{}{"contexts": contexts}
}

func (r *Registry) searchWeb(ctx context.Context, query string) interface{} {
	if query == "" {
		return errorPayload("A valid query is required to search the web.")
	}
	if r.web == nil {
		return errorPayload("Web search not available.")
	}
	results, err := r.web.Results(ctx, query)
	if err != nil {
		r.logger.Error("web tool failed", zap.Error(err))
		return errorPayload(err.Error())
	}
	return results
}

func (r *Registry) schedule(ctx context.Context, email, date, startTime string) interface{} {
	if r.scheduler == nil {
		return errorPayload("Calendar service not available.")
	}
	result, err := r.scheduler.Schedule(ctx, email, date, startTime)
	if errors.Is(err, calendar.ErrUnavailable) {
		return errorPayload("Calendar service not available.")
	}
	if err != nil {
		r.logger.Error("schedule tool failed", zap.Error(err))
		return errorPayload(err.Error())
	}
	return result
}

func (r *Registry) checkAvailability(ctx context.Context, date, startTime string) interface{} {
	if r.scheduler == nil {
		return errorPayload("Calendar service not available.")
	}
	result, err := r.scheduler.CheckAvailability(ctx, date, startTime)
	if errors.Is(err, calendar.ErrUnavailable) {
		return errorPayload("Calendar service not available.")
	}
	if err != nil {
		r.logger.Error("availability tool failed", zap.Error(err))
		return errorPayload(err.Error())
	}
	return result
}

func errorPayload(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

func stringParam(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	v, _ := params[key].(string)
	return v
}

// ParseArguments normalizes tool call arguments that may arrive either
// as a JSON string or as an already decoded object. Malformed input
// yields an empty map so dispatch proceeds with missing-parameter
// handling instead of failing the call.
func ParseArguments(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return v
	case string:
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(v), &parsed); err != nil || parsed == nil {
			return map[string]interface{}{}
		}
		return parsed
	default:
		return map[string]interface{}{}
	}
}
