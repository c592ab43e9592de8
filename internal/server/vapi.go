package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/voice"
)

// AssistantResponse is the response body for POST /vapi/assistant.
type AssistantResponse struct {
	AssistantID string `json:"assistant_id"`
	Status      string `json:"status"`
}

func (s *Server) handleCreateAssistant(c echo.Context) error {
	if s.voice == nil || !s.voice.Available() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "voice service not available")
	}
	id, err := s.voice.GetOrCreateAssistant(c.Request().Context())
	if err != nil {
		s.logger.Error("could not create voice assistant", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "could not create assistant")
	}
	return c.JSON(http.StatusOK, AssistantResponse{AssistantID: id, Status: "created"})
}

// CallRequest is the request body for POST /vapi/call.
type CallRequest struct {
	PhoneNumber string `json:"phone_number"`
	CallType    string `json:"call_type"`
}

// CallResponse is the response body for call creation and lookup.
type CallResponse struct {
	CallID      string `json:"call_id"`
	AssistantID string `json:"assistant_id,omitempty"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	WebCallURL  string `json:"web_call_url,omitempty"`
}

func (s *Server) handleCreateCall(c echo.Context) error {
	if s.voice == nil || !s.voice.Available() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "voice service not available")
	}

	var req CallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	var (
		call *voice.Call
		err  error
	)
	if req.CallType == "phone" || req.PhoneNumber != "" {
		if req.PhoneNumber == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "phone_number is required for phone calls")
		}
		call, err = s.voice.CreateCall(ctx, req.PhoneNumber)
	} else {
		call, err = s.voice.CreateWebCall(ctx)
	}
	if err != nil {
		s.logger.Error("could not create voice call", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "could not create call")
	}

	s.mu.Lock()
	s.activeCalls[call.ID] = &callRecord{
		CreatedAt:   float64(time.Now().UnixNano()) / float64(time.Second),
		Type:        call.Type,
		PhoneNumber: req.PhoneNumber,
		Status:      call.Status,
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, CallResponse{
		CallID:      call.ID,
		AssistantID: call.AssistantID,
		Type:        call.Type,
		Status:      call.Status,
		Message:     call.Message,
		WebCallURL:  call.WebCallURL,
	})
}

func (s *Server) handleGetCall(c echo.Context) error {
	if s.voice == nil || !s.voice.Available() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "voice service not available")
	}
	details, err := s.voice.GetCall(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "call not found")
	}
	return c.JSON(http.StatusOK, details)
}

func (s *Server) handleEndCall(c echo.Context) error {
	if s.voice == nil || !s.voice.Available() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "voice service not available")
	}
	id := c.Param("id")
	_, err := s.voice.EndCall(c.Request().Context(), id)
	if err != nil {
		s.logger.Error("could not end voice call", zap.String("call_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "could not end call")
	}

	s.mu.Lock()
	if rec, ok := s.activeCalls[id]; ok {
		rec.Status = "ended"
		rec.EndedAt = float64(time.Now().UnixNano()) / float64(time.Second)
		delete(s.activeCalls, id)
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]string{"call_id": id, "status": "ended"})
}

// CallListResponse is the response body for GET /vapi/calls.
type CallListResponse struct {
	ActiveCalls map[string]*callRecord   `json:"active_calls"`
	Calls       []map[string]interface{} `json:"calls"`
}

func (s *Server) handleListCalls(c echo.Context) error {
	if s.voice == nil || !s.voice.Available() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "voice service not available")
	}
	calls, err := s.voice.ListCalls(c.Request().Context(), 20)
	if err != nil {
		s.logger.Error("could not list voice calls", zap.Error(err))
		calls = nil
	}

	s.mu.Lock()
	active := make(map[string]*callRecord, len(s.activeCalls))
	for id, rec := range s.activeCalls {
		copied := *rec
		active[id] = &copied
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, CallListResponse{ActiveCalls: active, Calls: calls})
}

// handleWebhook processes voice platform events. Errors are reported
// with status 200 so the platform does not retry the delivery.
func (s *Server) handleWebhook(c echo.Context) error {
	if s.webhooks == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "error", "message": "webhook handler not configured"})
	}

	var hook voice.Webhook
	if err := c.Bind(&hook); err != nil {
		s.logger.Warn("invalid webhook payload", zap.Error(err))
		return c.JSON(http.StatusOK, map[string]string{"status": "error", "message": "invalid webhook payload"})
	}

	result := s.webhooks.Handle(c.Request().Context(), hook)
	return c.JSON(http.StatusOK, result)
}
