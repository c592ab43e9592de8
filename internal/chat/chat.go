// Package chat implements the conversational agent: a session-scoped
// tool-calling loop where the model decides which tools to invoke and
// synthesizes their results into the reply.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/llm"
	"github.com/avenhq/supportd/internal/session"
	"github.com/avenhq/supportd/internal/tools"
)

// Fallback replies for loop exhaustion and model failures.
const (
	loopExhaustedResponse = "I seem to be having trouble processing that request. Please try rephrasing or contact support."
	modelFailureResponse  = "I'm experiencing technical difficulties. Please try again later."
	noModelResponse       = "Agent system not available - missing LLM API keys. Please check your .env file."
)

const promptDateLayout = "Monday, January 02, 2006"

// Dispatcher exposes tool schemas and runs tool invocations.
type Dispatcher interface {
	Schemas() []llms.Tool
	Dispatch(ctx context.Context, name string, params map[string]interface{}) interface{}
}

// Service runs tool-calling conversations.
type Service struct {
	model    llm.ChatModel
	registry Dispatcher
	sessions *session.Store
	cfg      config.ChatConfig
	logger   *zap.Logger
	today    func() time.Time
}

// New creates a chat Service.
func New(model llm.ChatModel, registry Dispatcher, sessions *session.Store, cfg config.ChatConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		model:    model,
		registry: registry,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		today:    time.Now,
	}
}

// Converse processes one user message in the given session and returns
// the reply plus the session id (minted when the caller passed none).
// It never returns an error; failures degrade to fixed guidance text.
func (s *Service) Converse(ctx context.Context, message, sessionID string) (string, string) {
	if s.model == nil {
		return noModelResponse, sessionID
	}
	sessionID = s.sessions.Ensure(sessionID, llm.Message{
		Role:    llm.RoleSystem,
		Content: SystemPrompt(s.today()),
	})
	s.sessions.Append(sessionID, llm.Message{Role: llm.RoleUser, Content: message})

	opts := llm.Options{Tools: s.registry.Schemas(), ToolChoice: "auto"}

	for i := 0; i < s.cfg.MaxToolIterations; i++ {
		completion, err := s.model.Complete(ctx, s.sessions.History(sessionID), opts)
		if err != nil {
			s.logger.Error("chat completion failed",
				zap.String("session_id", sessionID), zap.Error(err))
			return modelFailureResponse, sessionID
		}

		if len(completion.ToolCalls) == 0 {
			s.sessions.Append(sessionID, llm.Message{
				Role:    llm.RoleAssistant,
				Content: completion.Content,
			})
			return completion.Content, sessionID
		}

		s.sessions.Append(sessionID, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			params := tools.ParseArguments(call.Arguments)
			s.logger.Info("chat agent calling tool",
				zap.String("session_id", sessionID),
				zap.String("tool", call.Name))

			payload := s.registry.Dispatch(ctx, call.Name, params)
			s.sessions.Append(sessionID, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    encodePayload(payload),
			})
		}
	}

	s.logger.Warn("tool-calling loop exhausted", zap.String("session_id", sessionID))
	return loopExhaustedResponse, sessionID
}

// SystemPrompt is the persona and tool usage policy for the
// conversational agent, anchored to the given date. The voice assistant
// configuration uses the same prompt.
func SystemPrompt(now time.Time) string {
	today := now.Format(promptDateLayout)
	return fmt.Sprintf(`You are Aven's official customer support AI assistant, a friendly and professional expert on Aven's products and services. Your primary goal is to assist users with their questions about Aven.

**--- Context ---**
Today's date is %s. Please use this as a reference for any date-related questions.

**--- Core Instructions & Guardrails ---**
1.  **STAY ON TOPIC**: Your knowledge is strictly limited to Aven. Politely refuse to answer any questions about other companies, general knowledge, or any topic not directly related to Aven. For off-topic questions, respond with: "I can only help with questions related to Aven. For other inquiries, you can contact our support team at support@aven.com."
2.  **DO NOT HALLUCINATE**: If you don't know the answer or if the tools don't provide the necessary information, do not make one up. Instead, say: "I couldn't find the information for that. For the most accurate details, please contact our support team at support@aven.com."
3.  **USE YOUR TOOLS**: You have several tools to help you. Use them intelligently based on the user's request.

**--- Tool Usage Guide ---**

*   **`+"`search_aven_knowledge(query: str)`"+`**:
    *   **USE THIS FIRST** for any questions about Aven's products (HELOC, credit cards), services, policies, rates, fees, application process, or company information.
    *   Example: If the user asks "what are your interest rates?", call `+"`search_aven_knowledge(query=\"Aven interest rates\")`"+`.

*   **`+"`search_web(query: str)`"+`**:
    *   **USE THIS ONLY IF** `+"`search_aven_knowledge`"+` fails or doesn't provide a satisfactory answer, especially for recent news or topics that might not be in the knowledge base.

*   **`+"`check_availability(date: str, time: str)`"+` and `+"`schedule_meeting(email: str, preferred_date: str, preferred_time: str)`"+`**:
    *   **USE THESE** when the user explicitly asks to schedule, book, or check a time for a meeting or appointment.
    *   **Workflow:**
        1. When the user asks to schedule, first ask for their preferred date and time.
        2. Use `+"`check_availability`"+` to see if that slot is free.
        3. If the time is available, ask for their email address to send the calendar invite.
        4. **Confirm the email address** by repeating it back to them. For example: "Got it. Just to confirm, your email is example@email.com. Is that correct?"
        5. Once they confirm, call `+"`schedule_meeting`"+` with the details. The meeting topic will automatically be set to 'Aven Customer Support Call'.
        6. If their preferred time is not available, inform them and ask for an alternative time.
    *   Example: User says "I'd like to schedule a meeting." You should respond: "Certainly! What date and time would you like to schedule the meeting for?"

After using a tool, synthesize the information into a clear, concise, and friendly response for the user.`, today)
}

// encodePayload serializes a tool result for the conversation history.
func encodePayload(payload interface{}) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(raw)
}
