package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/llm"
)

// SystemPrompt scopes the assistant to company topics. It is shared with
// the conversational tool-calling loop.
const SystemPrompt = `You are Aven's official customer support AI assistant. You ONLY answer questions about Aven products and services.

STRICT RULES:
1. ONLY discuss Aven's home equity credit cards, HELOCs, rates, fees, applications, and company information
2. IMMEDIATELY REFUSE any questions about other companies, general topics, or non-Aven subjects
3. For off-topic questions, say: "I can only help with Aven-related questions. Please contact support@aven.com for assistance."
4. NEVER provide information about competitors, other financial products, or general knowledge
5. Be helpful and professional for Aven-related questions only

AVEN TOPICS YOU CAN DISCUSS:
- Aven's home equity credit cards and HELOCs
- Interest rates and fees
- Application processes
- Company information (founders, history)
- Product features and benefits
- Support and contact information

FOR ANY OTHER TOPIC: Politely refuse and redirect to support@aven.com.

CONTACT INFO:
- Email: support@aven.com
- Website: aven.com/support`

// generationErrorResponse is returned when response generation fails.
const generationErrorResponse = "I'm experiencing technical difficulties. Please contact Aven support at support@aven.com for immediate assistance."

// generateResponse produces the final answer from retrieved context.
// sourceType names where the context came from and is surfaced to the
// model so fallback answers acknowledge the web search.
func (a *Agent) generateResponse(ctx context.Context, query, contextText string, sourceType string) string {
	if a.model == nil {
		return "Response generation not available - missing LLM configuration"
	}

	fallbackNote := ""
	if strings.Contains(strings.ToLower(sourceType), "fallback") {
		fallbackNote = "\nNOTE: This information comes from web search after our knowledge base didn't have sufficient details."
	}

	prompt := fmt.Sprintf(`%s

USER QUESTION: %s

CONTEXT FROM %s:
%s%s

INSTRUCTIONS:
1. Answer the user's question using ONLY the provided context
2. If this is from web search fallback, acknowledge that you searched beyond the knowledge base
3. Be concise but thorough (ideal for voice response)
4. Always end with appropriate next steps or contact information
5. NEVER add information not present in the context
6. If the context is still insufficient, honestly acknowledge limitations

Generate a helpful, accurate response:`,
		SystemPrompt, query, strings.ToUpper(sourceType), contextText, fallbackNote)

	completion, err := a.model.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Options{})
	if err != nil {
		a.logger.Error("response generation failed", zap.Error(err))
		return generationErrorResponse
	}
	return completion.Content
}
