// Package llm abstracts chat completion over langchaingo models.
//
// Components depend on the ChatModel interface rather than a concrete
// client so tests can substitute scripted fakes.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/avenhq/supportd/internal/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrEmptyResponse indicates the model returned no choices.
var ErrEmptyResponse = errors.New("empty response from model")

// Message is a single role-tagged conversation entry.
type Message struct {
	// Role is one of system, user, assistant, tool.
	Role string

	// Content is the message text. For tool messages it carries the
	// JSON-encoded tool result.
	Content string

	// ToolCalls holds the assistant's requested tool invocations.
	ToolCalls []ToolCall

	// ToolCallID links a tool message to the originating call.
	ToolCallID string

	// Name is the tool name on tool messages.
	Name string
}

// ToolCall is a request from the model to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Completion is the model's reply to a Complete call.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Options tune a single Complete call.
type Options struct {
	// Tools offered to the model; empty disables tool calling.
	Tools []llms.Tool

	// ToolChoice is forwarded when tools are present ("auto" by default).
	ToolChoice string
}

// ChatModel produces completions for a message history.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message, opts Options) (Completion, error)
}

// LangChainModel is a ChatModel backed by a langchaingo llms.Model.
type LangChainModel struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// New creates a LangChainModel from config.
func New(cfg config.LLMConfig) (*LangChainModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key required")
	}
	if cfg.Model == "" {
		return nil, errors.New("LLM model required")
	}

	model, err := openai.New(
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &LangChainModel{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete invokes the model once with the given history.
func (m *LangChainModel) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, toMessageContent(msg))
	}

	callOpts := []llms.CallOption{}
	if m.temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(m.temperature))
	}
	if m.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(m.maxTokens))
	}
	if len(opts.Tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(opts.Tools))
		choice := opts.ToolChoice
		if choice == "" {
			choice = "auto"
		}
		callOpts = append(callOpts, llms.WithToolChoice(choice))
	}

	resp, err := m.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return Completion{}, fmt.Errorf("generating content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Completion{}, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	completion := Completion{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	return completion, nil
}

// toMessageContent converts a Message to langchaingo's representation,
// including assistant tool calls and tool responses.
func toMessageContent(msg Message) llms.MessageContent {
	switch msg.Role {
	case RoleSystem:
		return llms.TextParts(llms.ChatMessageTypeSystem, msg.Content)
	case RoleAssistant:
		mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if msg.Content != "" {
			mc.Parts = append(mc.Parts, llms.TextContent{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			mc.Parts = append(mc.Parts, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return mc
	case RoleTool:
		return llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Content,
				},
			},
		}
	default:
		return llms.TextParts(llms.ChatMessageTypeHuman, msg.Content)
	}
}
