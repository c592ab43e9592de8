// Package voice integrates with the Vapi voice platform: assistant
// provisioning, call management, and webhook handling for tool calls
// made during live calls.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/chat"
	"github.com/avenhq/supportd/internal/config"
)

// AssistantName identifies the managed assistant on the platform.
const AssistantName = "Aven Support AI (MVP)"

const (
	firstMessage   = "Hello! Welcome to Aven support. I'm your AI assistant. How can I help you with our HELOC or credit card products today?"
	endCallMessage = "Thank you for contacting Aven support. Have a great day!"
)

// ErrNotConfigured is returned when no platform API key is set.
var ErrNotConfigured = errors.New("voice client not initialized")

// Assistant is the subset of the platform's assistant resource we read.
type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Call is the subset of the platform's call resource we read.
type Call struct {
	ID          string `json:"id"`
	AssistantID string `json:"assistantId"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	WebCallURL  string `json:"webCallUrl,omitempty"`
}

// Client talks to the Vapi REST API.
type Client struct {
	http    *resty.Client
	cfg     config.VapiConfig
	schemas []llms.Tool
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	assistantID string
}

// NewClient creates a Client. With no API key configured every call
// returns ErrNotConfigured, matching the degraded modes elsewhere.
func NewClient(cfg config.VapiConfig, schemas []llms.Tool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{cfg: cfg, schemas: schemas, logger: logger, now: time.Now}
	if cfg.APIKey == "" {
		logger.Warn("voice API key not set, voice calls will not be available")
		return c
	}
	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	logger.Info("voice client initialized")
	return c
}

// Available reports whether the platform client is configured.
func (c *Client) Available() bool {
	return c.http != nil
}

// assistantConfig builds the desired assistant definition, including
// the shared system prompt and the tool schemas.
func (c *Client) assistantConfig() map[string]interface{} {
	// The platform requires an HTTPS webhook endpoint.
	webhookURL := strings.Replace(c.cfg.WebhookURL, "http://", "https://", 1)

	return map[string]interface{}{
		"name": AssistantName,
		"transcriber": map[string]interface{}{
			"provider": "deepgram",
			"model":    "nova-2",
			"language": "en-US",
		},
		"model": map[string]interface{}{
			"provider":    "openai",
			"model":       "gpt-4o-mini",
			"temperature": 0.1,
			"messages": []map[string]interface{}{
				{"role": "system", "content": chat.SystemPrompt(c.now())},
			},
			"tools": c.schemas,
		},
		"voice": map[string]interface{}{
			"provider": "11labs",
			"voiceId":  "pNInz6obpgDQGcFmaJgB",
		},
		"firstMessage":   firstMessage,
		"endCallMessage": endCallMessage,
		"server": map[string]interface{}{
			"url": webhookURL + "/vapi/webhook",
		},
	}
}

// GetOrCreateAssistant returns the managed assistant's id, updating an
// existing assistant of the same name or creating a fresh one. The id
// is cached for the lifetime of the client.
func (c *Client) GetOrCreateAssistant(ctx context.Context) (string, error) {
	if c.http == nil {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assistantID != "" {
		return c.assistantID, nil
	}

	existing, err := c.listAssistants(ctx)
	if err != nil {
		return "", err
	}

	desired := c.assistantConfig()
	for _, a := range existing {
		if a.Name != AssistantName {
			continue
		}
		c.logger.Info("updating existing voice assistant", zap.String("assistant_id", a.ID))
		// Name changes are rejected on update.
		delete(desired, "name")
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(desired).
			Patch("/assistant/" + a.ID)
		if err != nil {
			return "", fmt.Errorf("updating assistant: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("updating assistant: platform returned %s", resp.Status())
		}
		c.assistantID = a.ID
		return c.assistantID, nil
	}

	c.logger.Info("creating voice assistant")
	var created Assistant
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(desired).
		SetResult(&created).
		Post("/assistant")
	if err != nil {
		return "", fmt.Errorf("creating assistant: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("creating assistant: platform returned %s", resp.Status())
	}
	c.assistantID = created.ID
	return c.assistantID, nil
}

// listAssistants fetches all assistants visible to the API key.
func (c *Client) listAssistants(ctx context.Context) ([]Assistant, error) {
	var assistants []Assistant
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&assistants).
		Get("/assistant")
	if err != nil {
		return nil, fmt.Errorf("listing assistants: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing assistants: platform returned %s", resp.Status())
	}
	return assistants, nil
}

// CreateCall starts an outbound phone call with the managed assistant.
func (c *Client) CreateCall(ctx context.Context, phoneNumber string) (*Call, error) {
	if c.http == nil {
		return nil, ErrNotConfigured
	}
	assistantID, err := c.GetOrCreateAssistant(ctx)
	if err != nil {
		return nil, err
	}

	var call Call
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"assistantId": assistantID,
			"customer":    map[string]string{"number": phoneNumber},
		}).
		SetResult(&call).
		Post("/call")
	if err != nil {
		return nil, fmt.Errorf("creating call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("creating call: platform returned %s", resp.Status())
	}
	return &call, nil
}

// CreateWebCall prepares a browser voice session. Web calls are driven
// client side, so this returns a synthetic descriptor pointing the
// frontend at the assistant rather than a platform call resource.
func (c *Client) CreateWebCall(ctx context.Context) (*Call, error) {
	if c.http == nil {
		return nil, ErrNotConfigured
	}
	assistantID, err := c.GetOrCreateAssistant(ctx)
	if err != nil {
		return nil, err
	}
	return &Call{
		ID:          "web_call_" + assistantID,
		AssistantID: assistantID,
		Type:        "web",
		Status:      "ready",
		Message:     "Assistant ready for voice interaction.",
		WebCallURL:  "https://vapi.ai/call?assistant=" + assistantID,
	}, nil
}

// GetCall fetches a call's current state.
func (c *Client) GetCall(ctx context.Context, callID string) (map[string]interface{}, error) {
	if c.http == nil {
		return nil, ErrNotConfigured
	}
	var call map[string]interface{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&call).
		Get("/call/" + callID)
	if err != nil {
		return nil, fmt.Errorf("getting call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("getting call: platform returned %s", resp.Status())
	}
	return call, nil
}

// EndCall terminates a call.
func (c *Client) EndCall(ctx context.Context, callID string) (map[string]interface{}, error) {
	if c.http == nil {
		return nil, ErrNotConfigured
	}
	var result map[string]interface{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Delete("/call/" + callID)
	if err != nil {
		return nil, fmt.Errorf("ending call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ending call: platform returned %s", resp.Status())
	}
	return result, nil
}

// ListCalls fetches recent calls.
func (c *Client) ListCalls(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	if c.http == nil {
		return nil, ErrNotConfigured
	}
	var calls []map[string]interface{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&calls).
		Get("/call")
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing calls: platform returned %s", resp.Status())
	}
	return calls, nil
}
