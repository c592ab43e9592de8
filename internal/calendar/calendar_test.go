package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	oldWait := retryWait
	retryWait = time.Millisecond
	t.Cleanup(func() { retryWait = oldWait })
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Service{
		client:     newCalendarClient(srv.Client(), srv.URL),
		calendarID: "primary",
		logger:     zap.NewNop(),
	}
}

func TestNewMissingToken(t *testing.T) {
	svc := New(context.Background(), config.CalendarConfig{
		TokenPath:  "does-not-exist.json",
		CalendarID: "primary",
	}, zap.NewNop())

	assert.False(t, svc.Available())

	_, err := svc.Schedule(context.Background(), "a@b.com", "2026-09-01", "10:00")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.CheckAvailability(context.Background(), "2026-09-01", "10:00")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSchedule(t *testing.T) {
	var got event
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt_1"}`))
	})

	result, err := svc.Schedule(context.Background(), "user@example.com", "2026-09-15", "14:30")
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "Meeting scheduled for user@example.com on 2026-09-15 at 14:30.", result.Message)
	assert.Equal(t, "Aven Customer Support Call", got.Summary)
	assert.Equal(t, "2026-09-15T14:30:00Z", got.Start.DateTime)
	assert.Equal(t, "2026-09-15T15:30:00Z", got.End.DateTime)
	require.Len(t, got.Attendees, 1)
	assert.Equal(t, "user@example.com", got.Attendees[0].Email)
}

func TestScheduleInvalidSlot(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for invalid input")
	})

	_, err := svc.Schedule(context.Background(), "user@example.com", "not-a-date", "14:30")
	assert.Error(t, err)
}

func TestCheckAvailability(t *testing.T) {
	tests := []struct {
		name      string
		items     string
		available bool
		message   string
	}{
		{name: "free slot", items: `{"items":[]}`, available: true, message: "The time slot is available."},
		{name: "busy slot", items: `{"items":[{"id":"evt_1"}]}`, available: false, message: "The time slot is not available."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "2026-09-15T14:30:00Z", r.URL.Query().Get("timeMin"))
				assert.Equal(t, "2026-09-15T15:30:00Z", r.URL.Query().Get("timeMax"))
				assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.items))
			})

			result, err := svc.CheckAvailability(context.Background(), "2026-09-15", "14:30")
			require.NoError(t, err)
			assert.Equal(t, tt.available, result.Available)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestScheduleRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt_1"}`))
	})

	result, err := svc.Schedule(context.Background(), "user@example.com", "2026-09-15", "14:30")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, int64(3), calls.Load())
}

func TestScheduleGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int64
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := svc.Schedule(context.Background(), "user@example.com", "2026-09-15", "14:30")
	require.Error(t, err)
	assert.Equal(t, int64(3), calls.Load())
}
