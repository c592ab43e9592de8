// Package calendar schedules support meetings through the Google
// Calendar REST API using a previously authorized OAuth token.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
)

const baseURL = "https://www.googleapis.com/calendar/v3"

// ErrUnavailable is returned when no authorized token is loaded.
var ErrUnavailable = errors.New("calendar service not available")

// meetingDuration is the fixed length of a scheduled support call.
const meetingDuration = time.Hour

// ScheduleResult reports a successful booking.
type ScheduleResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AvailabilityResult reports whether a slot is free.
type AvailabilityResult struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type attendee struct {
	Email string `json:"email"`
}

type event struct {
	Summary   string     `json:"summary"`
	Start     eventTime  `json:"start"`
	End       eventTime  `json:"end"`
	Attendees []attendee `json:"attendees,omitempty"`
}

type eventList struct {
	Items []json.RawMessage `json:"items"`
}

// Service books meetings on a single calendar.
type Service struct {
	client     *resty.Client
	calendarID string
	logger     *zap.Logger
}

// New loads the saved OAuth token and builds an authorized client.
// A missing or unreadable token yields a Service whose operations
// return ErrUnavailable rather than a constructor error, so the rest
// of the system keeps running without scheduling.
func New(ctx context.Context, cfg config.CalendarConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{calendarID: cfg.CalendarID, logger: logger}
	if svc.calendarID == "" {
		svc.calendarID = "primary"
	}

	raw, err := os.ReadFile(cfg.TokenPath)
	if err != nil {
		logger.Warn("calendar token not loaded, scheduling disabled",
			zap.String("path", cfg.TokenPath), zap.Error(err))
		return svc
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		logger.Warn("calendar token unreadable, scheduling disabled", zap.Error(err))
		return svc
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
	}
	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, &token))
	svc.client = newCalendarClient(httpClient, baseURL)
	logger.Info("calendar client initialized", zap.String("calendar", svc.calendarID))
	return svc
}

// retryWait is the fixed delay between calendar request attempts.
var retryWait = 2 * time.Second

// newCalendarClient configures a resty client with the retry policy
// used for calendar requests: up to 3 attempts, fixed wait, only on
// transport errors and 5xx responses.
func newCalendarClient(httpClient *http.Client, url string) *resty.Client {
	return resty.NewWithClient(httpClient).
		SetBaseURL(url).
		SetRetryCount(2).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
}

// Available reports whether an authorized client was loaded.
func (s *Service) Available() bool {
	return s.client != nil
}

// Schedule books a one hour support call and invites the attendee.
// date is YYYY-MM-DD and startTime is HH:MM in 24 hour time.
func (s *Service) Schedule(ctx context.Context, email, date, startTime string) (ScheduleResult, error) {
	if s.client == nil {
		return ScheduleResult{}, ErrUnavailable
	}

	start, err := parseSlot(date, startTime)
	if err != nil {
		return ScheduleResult{}, err
	}
	end := start.Add(meetingDuration)

	body := event{
		Summary: "Aven Customer Support Call",
		Start:   eventTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:     eventTime{DateTime: end.Format(time.RFC3339), TimeZone: "UTC"},
		Attendees: []attendee{
			{Email: email},
		},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("sendUpdates", "all").
		SetBody(body).
		Post(fmt.Sprintf("/calendars/%s/events", s.calendarID))
	if err != nil {
		return ScheduleResult{}, fmt.Errorf("creating event: %w", err)
	}
	if resp.IsError() {
		return ScheduleResult{}, fmt.Errorf("creating event: calendar API returned %s", resp.Status())
	}

	s.logger.Info("meeting scheduled",
		zap.String("date", date), zap.String("time", startTime))
	return ScheduleResult{
		Status:  "success",
		Message: fmt.Sprintf("Meeting scheduled for %s on %s at %s.", email, date, startTime),
	}, nil
}

// CheckAvailability reports whether the one hour slot starting at the
// given date and time has no existing events.
func (s *Service) CheckAvailability(ctx context.Context, date, startTime string) (AvailabilityResult, error) {
	if s.client == nil {
		return AvailabilityResult{}, ErrUnavailable
	}

	start, err := parseSlot(date, startTime)
	if err != nil {
		return AvailabilityResult{}, err
	}
	end := start.Add(meetingDuration)

	var list eventList
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"timeMin":      start.Format(time.RFC3339),
			"timeMax":      end.Format(time.RFC3339),
			"singleEvents": "true",
			"orderBy":      "startTime",
		}).
		SetResult(&list).
		Get(fmt.Sprintf("/calendars/%s/events", s.calendarID))
	if err != nil {
		return AvailabilityResult{}, fmt.Errorf("listing events: %w", err)
	}
	if resp.IsError() {
		return AvailabilityResult{}, fmt.Errorf("listing events: calendar API returned %s", resp.Status())
	}

	if len(list.Items) == 0 {
		return AvailabilityResult{Available: true, Message: "The time slot is available."}, nil
	}
	return AvailabilityResult{Available: false, Message: "The time slot is not available."}, nil
}

// parseSlot combines a YYYY-MM-DD date and HH:MM time into a UTC instant.
func parseSlot(date, startTime string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04", fmt.Sprintf("%sT%s", date, startTime))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date or time: %w", err)
	}
	return t.UTC(), nil
}
