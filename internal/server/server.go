// Package server provides the HTTP API for supportd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/session"
	"github.com/avenhq/supportd/internal/voice"
)

// Answerer runs the single-question answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, query string) string
}

// Chatter runs the session-scoped tool-calling conversation.
type Chatter interface {
	Converse(ctx context.Context, message, sessionID string) (string, string)
}

// VoiceClient manages voice platform assistants and calls.
type VoiceClient interface {
	Available() bool
	GetOrCreateAssistant(ctx context.Context) (string, error)
	CreateCall(ctx context.Context, phoneNumber string) (*voice.Call, error)
	CreateWebCall(ctx context.Context) (*voice.Call, error)
	GetCall(ctx context.Context, callID string) (map[string]interface{}, error)
	EndCall(ctx context.Context, callID string) (map[string]interface{}, error)
	ListCalls(ctx context.Context, limit int) ([]map[string]interface{}, error)
}

// WebhookHandler processes voice platform webhook events.
type WebhookHandler interface {
	Handle(ctx context.Context, hook voice.Webhook) interface{}
}

// callRecord tracks a call started through this server.
type callRecord struct {
	CreatedAt   float64 `json:"created_at"`
	Type        string  `json:"type"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	Status      string  `json:"status"`
	EndedAt     float64 `json:"ended_at,omitempty"`
}

// Server wires the HTTP surface to the application services.
type Server struct {
	echo     *echo.Echo
	agent    Answerer
	chatter  Chatter
	sessions *session.Store
	voice    VoiceClient
	webhooks WebhookHandler
	cfg      config.ServerConfig
	logger   *zap.Logger

	mu          sync.Mutex
	activeCalls map[string]*callRecord
}

// New creates the server and registers all routes.
func New(agent Answerer, chatter Chatter, sessions *session.Store, voiceClient VoiceClient, webhooks WebhookHandler, cfg config.ServerConfig, logger *zap.Logger) (*Server, error) {
	if agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if chatter == nil {
		return nil, fmt.Errorf("chat service is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:        e,
		agent:       agent,
		chatter:     chatter,
		sessions:    sessions,
		voice:       voiceClient,
		webhooks:    webhooks,
		cfg:         cfg,
		logger:      logger,
		activeCalls: make(map[string]*callRecord),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/ask", s.handleAsk)
	s.echo.POST("/chat", s.handleChat)
	s.echo.GET("/sessions/:id", s.handleSession)

	v := s.echo.Group("/vapi")
	v.POST("/assistant", s.handleCreateAssistant)
	v.POST("/call", s.handleCreateCall)
	v.GET("/call/:id", s.handleGetCall)
	v.POST("/call/:id/end", s.handleEndCall)
	v.GET("/calls", s.handleListCalls)
	v.POST("/webhook", s.handleWebhook)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "Aven Support AI is running"})
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status          string  `json:"status"`
	AgentAvailable  bool    `json:"agent_available"`
	VapiAvailable   bool    `json:"vapi_available"`
	ActiveSessions  int     `json:"active_sessions"`
	ActiveVapiCalls int     `json:"active_vapi_calls"`
	Timestamp       float64 `json:"timestamp"`
}

func (s *Server) handleHealth(c echo.Context) error {
	sessions := 0
	if s.sessions != nil {
		sessions = s.sessions.Len()
	}
	s.mu.Lock()
	calls := len(s.activeCalls)
	s.mu.Unlock()

	return c.JSON(http.StatusOK, HealthResponse{
		Status:          "healthy",
		AgentAvailable:  true,
		VapiAvailable:   s.voice != nil && s.voice.Available(),
		ActiveSessions:  sessions,
		ActiveVapiCalls: calls,
		Timestamp:       float64(time.Now().UnixNano()) / float64(time.Second),
	})
}

// AskRequest is the request body for POST /ask.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse is the response body for POST /ask.
type AskResponse struct {
	Response     string  `json:"response"`
	ResponseTime float64 `json:"response_time"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	start := time.Now()
	answer := s.agent.Answer(c.Request().Context(), req.Query)
	return c.JSON(http.StatusOK, AskResponse{
		Response:     answer,
		ResponseTime: time.Since(start).Seconds(),
	})
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the response body for POST /chat.
type ChatResponse struct {
	Response     string  `json:"response"`
	AssistantID  string  `json:"assistantId,omitempty"`
	SessionID    string  `json:"session_id"`
	ResponseTime float64 `json:"response_time"`
}

// handleChat answers a text message and, when the voice platform is
// configured, returns the assistant id so the frontend can start a
// voice session.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	start := time.Now()
	ctx := c.Request().Context()

	response := ""
	sessionID := req.SessionID
	if req.Message != "" {
		response, sessionID = s.chatter.Converse(ctx, req.Message, req.SessionID)
	}

	assistantID := ""
	if s.voice != nil && s.voice.Available() {
		id, err := s.voice.GetOrCreateAssistant(ctx)
		if err != nil {
			s.logger.Error("could not get voice assistant", zap.Error(err))
		} else {
			assistantID = id
		}
	}

	if response == "" && assistantID == "" {
		response = "I'm having trouble connecting to the voice service. Please try again later or contact support@aven.com."
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Response:     response,
		AssistantID:  assistantID,
		SessionID:    sessionID,
		ResponseTime: time.Since(start).Seconds(),
	})
}

// SessionMessage is one history entry in a SessionResponse.
type SessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionResponse is the response body for GET /sessions/:id.
type SessionResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []SessionMessage `json:"messages"`
}

func (s *Server) handleSession(c echo.Context) error {
	id := c.Param("id")
	if s.sessions == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	history := s.sessions.History(id)
	if history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	messages := make([]SessionMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, SessionMessage{Role: msg.Role, Content: msg.Content})
	}
	return c.JSON(http.StatusOK, SessionResponse{SessionID: id, Messages: messages})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
