package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
)

func respondJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.VapiConfig{
		APIKey:     "vapi-test-key",
		BaseURL:    srv.URL,
		WebhookURL: "http://support.example.com",
	}, nil, zap.NewNop())
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient(config.VapiConfig{}, nil, zap.NewNop())
	assert.False(t, c.Available())

	_, err := c.GetOrCreateAssistant(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.CreateWebCall(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.CreateCall(context.Background(), "+15551234567")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGetOrCreateAssistantCreates(t *testing.T) {
	var createBody map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistant", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, `[]`)
	})
	mux.HandleFunc("POST /assistant", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
		respondJSON(w, `{"id":"asst_new","name":"Aven Support AI (MVP)"}`)
	})
	c := newTestClient(t, mux)

	id, err := c.GetOrCreateAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "asst_new", id)

	assert.Equal(t, AssistantName, createBody["name"])
	server, ok := createBody["server"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://support.example.com/vapi/webhook", server["url"])

	model, ok := createBody["model"].(map[string]interface{})
	require.True(t, ok)
	messages, ok := model["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
	system := messages[0].(map[string]interface{})
	assert.Contains(t, system["content"], "Aven's official customer support AI assistant")
}

func TestGetOrCreateAssistantUpdatesAndCaches(t *testing.T) {
	var updateBody map[string]interface{}
	listCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistant", func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		respondJSON(w, `[{"id":"asst_1","name":"Other"},{"id":"asst_2","name":"Aven Support AI (MVP)"}]`)
	})
	mux.HandleFunc("PATCH /assistant/asst_2", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&updateBody))
		respondJSON(w, `{"id":"asst_2"}`)
	})
	c := newTestClient(t, mux)

	id, err := c.GetOrCreateAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "asst_2", id)
	assert.NotContains(t, updateBody, "name", "update payload must omit the name")

	again, err := c.GetOrCreateAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "asst_2", again)
	assert.Equal(t, 1, listCalls, "second lookup must come from cache")
}

func TestCreateWebCall(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistant", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, `[{"id":"asst_9","name":"Aven Support AI (MVP)"}]`)
	})
	mux.HandleFunc("PATCH /assistant/asst_9", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, `{"id":"asst_9"}`)
	})
	c := newTestClient(t, mux)

	call, err := c.CreateWebCall(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "web_call_asst_9", call.ID)
	assert.Equal(t, "asst_9", call.AssistantID)
	assert.Equal(t, "web", call.Type)
	assert.Equal(t, "ready", call.Status)
	assert.Contains(t, call.WebCallURL, "asst_9")
}

func TestCreateCallPhone(t *testing.T) {
	var callBody map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistant", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, `[{"id":"asst_9","name":"Aven Support AI (MVP)"}]`)
	})
	mux.HandleFunc("PATCH /assistant/asst_9", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, `{"id":"asst_9"}`)
	})
	mux.HandleFunc("POST /call", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&callBody))
		respondJSON(w, `{"id":"call_1","assistantId":"asst_9","type":"outboundPhoneCall","status":"queued"}`)
	})
	c := newTestClient(t, mux)

	call, err := c.CreateCall(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "call_1", call.ID)

	assert.Equal(t, "asst_9", callBody["assistantId"])
	customer := callBody["customer"].(map[string]interface{})
	assert.Equal(t, "+15551234567", customer["number"])
}

type fakeAnswerer struct {
	response string
	queries  []string
}

func (f *fakeAnswerer) Answer(_ context.Context, query string) string {
	f.queries = append(f.queries, query)
	return f.response
}

type fakeDispatcher struct {
	payloads map[string]interface{}
	calls    []string
}

func (d *fakeDispatcher) Dispatch(_ context.Context, name string, _ map[string]interface{}) interface{} {
	d.calls = append(d.calls, name)
	if p, ok := d.payloads[name]; ok {
		return p
	}
	return map[string]interface{}{"error": "Unknown tool"}
}

func TestHandleToolCalls(t *testing.T) {
	dispatcher := &fakeDispatcher{payloads: map[string]interface{}{
		"search_web": map[string]interface{}{"organic": []interface{}{}},
	}}
	h := NewWebhookHandler(dispatcher, &fakeAnswerer{}, zap.NewNop())

	hook := Webhook{Message: WebhookMessage{
		Type: "tool-calls",
		ToolCalls: []WebhookToolCall{
			{ID: "c1", Function: WebhookFunction{Name: "search_web", Arguments: `{"query":"rates"}`}},
			{ID: "c2", Function: WebhookFunction{Name: "bogus", Arguments: nil}},
		},
	}}

	got := h.Handle(context.Background(), hook)
	body, ok := got.(map[string]interface{})
	require.True(t, ok)
	results, ok := body["results"].([]ToolCallResult)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Equal(t, map[string]interface{}{"error": "Unknown tool"}, results[1].Result)
	assert.Equal(t, []string{"search_web", "bogus"}, dispatcher.calls)
}

func TestHandleFunctionCallKnowledgeGoesThroughAnswerer(t *testing.T) {
	answerer := &fakeAnswerer{response: "Aven's rates start at 7.99%."}
	h := NewWebhookHandler(&fakeDispatcher{}, answerer, zap.NewNop())

	hook := Webhook{Message: WebhookMessage{
		Type: "function-call",
		FunctionCall: &WebhookFunctionCall{
			Name:       "search_aven_knowledge",
			Parameters: map[string]interface{}{"query": "what are your rates"},
		},
	}}

	got := h.Handle(context.Background(), hook).(map[string]interface{})
	assert.Equal(t, "Aven's rates start at 7.99%.", got["result"])
	assert.Equal(t, []string{"what are your rates"}, answerer.queries)
}

func TestAnswerForVoiceTruncation(t *testing.T) {
	answerer := &fakeAnswerer{response: strings.Repeat("a", 700)}
	h := NewWebhookHandler(&fakeDispatcher{}, answerer, zap.NewNop())

	got := h.answerForVoice(context.Background(), "long question")
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", voiceMaxLength)))
	assert.True(t, strings.HasSuffix(got, voiceTruncationNote))
	assert.Len(t, got, voiceMaxLength+len(voiceTruncationNote))
}

func TestAnswerForVoiceGuards(t *testing.T) {
	h := NewWebhookHandler(&fakeDispatcher{}, &fakeAnswerer{response: "No result available."}, zap.NewNop())

	assert.Equal(t, emptyQueryResponse, h.answerForVoice(context.Background(), "   "))
	assert.Equal(t, noResultResponse, h.answerForVoice(context.Background(), "anything"))
}

func TestHandleConversationUpdate(t *testing.T) {
	dispatcher := &fakeDispatcher{payloads: map[string]interface{}{
		"check_availability": map[string]interface{}{"available": true},
	}}
	h := NewWebhookHandler(dispatcher, &fakeAnswerer{}, zap.NewNop())

	hook := Webhook{Message: WebhookMessage{
		Type: "conversation-update",
		Conversation: []ConversationMessage{
			{Role: "user"},
			{Role: "assistant", ToolCalls: []WebhookToolCall{
				{ID: "old", Function: WebhookFunction{Name: "search_web", Arguments: `{}`}},
			}},
			{Role: "tool"},
			{Role: "assistant", ToolCalls: []WebhookToolCall{
				{ID: "pending", Function: WebhookFunction{Name: "check_availability", Arguments: `{"date":"2026-09-15","time":"10:00"}`}},
			}},
		},
	}}

	got := h.Handle(context.Background(), hook).(map[string]interface{})
	result, ok := got["tool_call_result"].(ToolCallResult)
	require.True(t, ok)
	assert.Equal(t, "pending", result.ToolCallID)
	assert.Equal(t, []string{"check_availability"}, dispatcher.calls, "answered call must be skipped")
}

func TestHandleConversationUpdateNothingPending(t *testing.T) {
	h := NewWebhookHandler(&fakeDispatcher{}, &fakeAnswerer{}, zap.NewNop())

	hook := Webhook{Message: WebhookMessage{
		Type: "conversation-update",
		Conversation: []ConversationMessage{
			{Role: "user"},
			{Role: "assistant"},
		},
	}}
	got := h.Handle(context.Background(), hook).(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"received": true}, got)
}

func TestHandleUnknownEventType(t *testing.T) {
	h := NewWebhookHandler(&fakeDispatcher{}, &fakeAnswerer{}, zap.NewNop())
	got := h.Handle(context.Background(), Webhook{Message: WebhookMessage{Type: "status-update"}})
	assert.Equal(t, map[string]interface{}{"status": "ok"}, got)
}
