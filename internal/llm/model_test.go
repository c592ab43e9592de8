package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/avenhq/supportd/internal/config"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LLMConfig
	}{
		{name: "missing api key", cfg: config.LLMConfig{Model: "gpt-4o-mini"}},
		{name: "missing model", cfg: config.LLMConfig{APIKey: "sk-test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestToMessageContentRoles(t *testing.T) {
	sys := toMessageContent(Message{Role: RoleSystem, Content: "be helpful"})
	assert.Equal(t, llms.ChatMessageTypeSystem, sys.Role)

	user := toMessageContent(Message{Role: RoleUser, Content: "hi"})
	assert.Equal(t, llms.ChatMessageTypeHuman, user.Role)

	asst := toMessageContent(Message{
		Role:    RoleAssistant,
		Content: "checking",
		ToolCalls: []ToolCall{
			{ID: "call_1", Name: "search_web", Arguments: `{"query":"rates"}`},
		},
	})
	assert.Equal(t, llms.ChatMessageTypeAI, asst.Role)
	require.Len(t, asst.Parts, 2)
	call, ok := asst.Parts[1].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	require.NotNil(t, call.FunctionCall)
	assert.Equal(t, "search_web", call.FunctionCall.Name)

	tool := toMessageContent(Message{
		Role:       RoleTool,
		ToolCallID: "call_1",
		Name:       "search_web",
		Content:    "result text",
	})
	assert.Equal(t, llms.ChatMessageTypeTool, tool.Role)
	require.Len(t, tool.Parts, 1)
	resp, ok := tool.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.Equal(t, "result text", resp.Content)
}

func TestToMessageContentAssistantNoText(t *testing.T) {
	asst := toMessageContent(Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "c", Name: "search_aven_knowledge", Arguments: "{}"}},
	})
	require.Len(t, asst.Parts, 1)
	_, ok := asst.Parts[0].(llms.ToolCall)
	assert.True(t, ok)
}
