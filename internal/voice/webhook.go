package voice

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/tools"
)

// Voice responses are trimmed hard so they stay speakable.
const (
	voiceMaxLength      = 600
	voiceTruncationNote = "... For complete details, please visit aven.com/support or email support@aven.com."
)

const (
	emptyQueryResponse = "I need a specific question to search for."
	noResultResponse   = "I couldn't find specific information on that. Please contact support@aven.com for the latest details."
)

// Answerer produces a spoken-form answer for a single question.
type Answerer interface {
	Answer(ctx context.Context, query string) string
}

// Dispatcher runs tool invocations.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, params map[string]interface{}) interface{}
}

// Webhook is the platform's webhook envelope.
type Webhook struct {
	Message WebhookMessage `json:"message"`
}

// WebhookMessage carries one platform event. Only the fields for the
// event types we act on are modeled.
type WebhookMessage struct {
	Type         string                `json:"type"`
	ToolCalls    []WebhookToolCall     `json:"toolCalls"`
	FunctionCall *WebhookFunctionCall  `json:"functionCall"`
	Conversation []ConversationMessage `json:"conversation"`
}

// WebhookToolCall is a single tool invocation request.
type WebhookToolCall struct {
	ID       string          `json:"id"`
	Function WebhookFunction `json:"function"`
}

// WebhookFunction names a function and its arguments. Arguments arrive
// either JSON-encoded or as a decoded object depending on the event.
type WebhookFunction struct {
	Name      string      `json:"name"`
	Arguments interface{} `json:"arguments"`
}

// WebhookFunctionCall is the legacy single-function event payload.
type WebhookFunctionCall struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ConversationMessage is one entry of a conversation-update transcript.
type ConversationMessage struct {
	Role      string            `json:"role"`
	ToolCalls []WebhookToolCall `json:"tool_calls"`
}

// ToolCallResult pairs a tool call id with its result payload.
type ToolCallResult struct {
	ToolCallID string      `json:"toolCallId"`
	Result     interface{} `json:"result"`
}

// WebhookHandler executes tool calls requested during voice calls.
type WebhookHandler struct {
	registry Dispatcher
	answerer Answerer
	logger   *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(registry Dispatcher, answerer Answerer, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{registry: registry, answerer: answerer, logger: logger}
}

// Handle processes one webhook event and returns the response body.
// Unrecognized event types are acknowledged without action.
func (h *WebhookHandler) Handle(ctx context.Context, hook Webhook) interface{} {
	msg := hook.Message
	switch msg.Type {
	case "tool-calls":
		results := make([]ToolCallResult, 0, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			params := tools.ParseArguments(call.Function.Arguments)
			h.logger.Info("voice tool call",
				zap.String("tool", call.Function.Name),
				zap.String("tool_call_id", call.ID))
			results = append(results, ToolCallResult{
				ToolCallID: call.ID,
				Result:     h.registry.Dispatch(ctx, call.Function.Name, params),
			})
		}
		return map[string]interface{}{"results": results}

	case "function-call":
		if msg.FunctionCall == nil {
			h.logger.Warn("function-call event with no payload")
			return map[string]interface{}{"status": "ok"}
		}
		h.logger.Info("voice function call", zap.String("function", msg.FunctionCall.Name))
		return map[string]interface{}{
			"result": h.handleFunction(ctx, msg.FunctionCall.Name, msg.FunctionCall.Parameters),
		}

	case "conversation-update":
		return h.handleConversationUpdate(ctx, msg.Conversation)

	default:
		h.logger.Info("voice webhook ignored", zap.String("type", msg.Type))
		return map[string]interface{}{"status": "ok"}
	}
}

// handleFunction answers a single function invocation. Knowledge
// questions run through the full answer pipeline and are shaped for
// speech; everything else dispatches to the tool registry.
func (h *WebhookHandler) handleFunction(ctx context.Context, name string, params map[string]interface{}) interface{} {
	if name == tools.NameKnowledgeSearch && h.answerer != nil {
		query, _ := params["query"].(string)
		return h.answerForVoice(ctx, query)
	}
	return h.registry.Dispatch(ctx, name, params)
}

// answerForVoice runs the answer pipeline and trims the reply for
// speech.
func (h *WebhookHandler) answerForVoice(ctx context.Context, query string) string {
	if strings.TrimSpace(query) == "" {
		return emptyQueryResponse
	}

	response := h.answerer.Answer(ctx, query)
	if len(response) > voiceMaxLength {
		response = response[:voiceMaxLength] + voiceTruncationNote
	}
	if response == "" || strings.Contains(strings.ToLower(response), "no result") {
		return noResultResponse
	}
	return response
}

// handleConversationUpdate scans the transcript backwards for the most
// recent assistant tool call that has no tool result yet and executes
// it.
func (h *WebhookHandler) handleConversationUpdate(ctx context.Context, conversation []ConversationMessage) interface{} {
	for i := len(conversation) - 1; i >= 0; i-- {
		msg := conversation[i]
		if msg.Role != "assistant" || len(msg.ToolCalls) == 0 {
			continue
		}
		if i+1 < len(conversation) && conversation[i+1].Role == "tool" {
			// Already answered.
			continue
		}

		call := msg.ToolCalls[0]
		params := tools.ParseArguments(call.Function.Arguments)
		h.logger.Info("answering tool call from transcript",
			zap.String("tool", call.Function.Name),
			zap.String("tool_call_id", call.ID))

		result := h.handleFunction(ctx, call.Function.Name, params)
		return map[string]interface{}{
			"tool_call_result": ToolCallResult{ToolCallID: call.ID, Result: result},
		}
	}
	return map[string]interface{}{"received": true}
}
