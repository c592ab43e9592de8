package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/calendar"
	"github.com/avenhq/supportd/internal/websearch"
)

type fakeKnowledge struct {
	contexts []string
	err      error
}

func (f *fakeKnowledge) Contexts(_ context.Context, _ string) ([]string, error) {
	return f.contexts, f.err
}

type fakeWeb struct {
	results *websearch.Results
	err     error
}

func (f *fakeWeb) Results(_ context.Context, _ string) (*websearch.Results, error) {
	return f.results, f.err
}

type fakeScheduler struct {
	schedule     calendar.ScheduleResult
	availability calendar.AvailabilityResult
	err          error

	gotEmail, gotDate, gotTime string
}

func (f *fakeScheduler) Schedule(_ context.Context, email, date, startTime string) (calendar.ScheduleResult, error) {
	f.gotEmail, f.gotDate, f.gotTime = email, date, startTime
	return f.schedule, f.err
}

func (f *fakeScheduler) CheckAvailability(_ context.Context, date, startTime string) (calendar.AvailabilityResult, error) {
	f.gotDate, f.gotTime = date, startTime
	return f.availability, f.err
}

func TestSchemas(t *testing.T) {
	r := NewRegistry(nil, nil, nil, zap.NewNop())
	schemas := r.Schemas()
	require.Len(t, schemas, 4)

	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		assert.Equal(t, "function", s.Type)
		require.NotNil(t, s.Function)
		names = append(names, s.Function.Name)
	}
	assert.Equal(t, []string{
		NameKnowledgeSearch, NameWebSearch, NameScheduleMeeting, NameCheckAvailability,
	}, names)
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry(nil, nil, nil, zap.NewNop())
	got := r.Dispatch(context.Background(), "transfer_funds", map[string]interface{}{})
	assert.Equal(t, map[string]interface{}{"error": "Unknown tool"}, got)
}

func TestDispatchKnowledge(t *testing.T) {
	kb := &fakeKnowledge{contexts: []string{"ctx one", "ctx two"}}
	r := NewRegistry(kb, nil, nil, zap.NewNop())

	got := r.Dispatch(context.Background(), NameKnowledgeSearch, map[string]interface{}{"query": "rates"})
	assert.Equal(t, map[string]interface{}{"contexts": []string{"ctx one", "ctx two"}}, got)
}

func TestDispatchKnowledgeMissingQuery(t *testing.T) {
	r := NewRegistry(&fakeKnowledge{}, nil, nil, zap.NewNop())
	got := r.Dispatch(context.Background(), NameKnowledgeSearch, map[string]interface{}{})
	payload, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payload["error"], "valid query")
}

func TestDispatchKnowledgeError(t *testing.T) {
	kb := &fakeKnowledge{err: errors.New("index offline")}
	r := NewRegistry(kb, nil, nil, zap.NewNop())

	got := r.Dispatch(context.Background(), NameKnowledgeSearch, map[string]interface{}{"query": "rates"})
	assert.Equal(t, map[string]interface{}{"error": "index offline"}, got)
}

func TestDispatchWeb(t *testing.T) {
	web := &fakeWeb{results: &websearch.Results{
		Organic:   []websearch.Result{{Title: "Aven", Link: "https://aven.com", Snippet: "snippet"}},
		AnswerBox: map[string]interface{}{},
	}}
	r := NewRegistry(nil, web, nil, zap.NewNop())

	got := r.Dispatch(context.Background(), NameWebSearch, map[string]interface{}{"query": "aven news"})
	assert.Equal(t, web.results, got)
}

func TestDispatchSchedule(t *testing.T) {
	sched := &fakeScheduler{schedule: calendar.ScheduleResult{Status: "success", Message: "booked"}}
	r := NewRegistry(nil, nil, sched, zap.NewNop())

	got := r.Dispatch(context.Background(), NameScheduleMeeting, map[string]interface{}{
		"email":          "user@example.com",
		"preferred_date": "2026-09-15",
		"preferred_time": "14:30",
	})
	assert.Equal(t, sched.schedule, got)
	assert.Equal(t, "user@example.com", sched.gotEmail)
	assert.Equal(t, "2026-09-15", sched.gotDate)
	assert.Equal(t, "14:30", sched.gotTime)
}

func TestDispatchScheduleUnavailable(t *testing.T) {
	r := NewRegistry(nil, nil, nil, zap.NewNop())
	got := r.Dispatch(context.Background(), NameScheduleMeeting, map[string]interface{}{})
	assert.Equal(t, map[string]interface{}{"error": "Calendar service not available."}, got)
}

func TestDispatchCheckAvailability(t *testing.T) {
	sched := &fakeScheduler{availability: calendar.AvailabilityResult{Available: true, Message: "The time slot is available."}}
	r := NewRegistry(nil, nil, sched, zap.NewNop())

	got := r.Dispatch(context.Background(), NameCheckAvailability, map[string]interface{}{
		"date": "2026-09-15",
		"time": "09:00",
	})
	assert.Equal(t, sched.availability, got)
}

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want map[string]interface{}
	}{
		{name: "nil", raw: nil, want: map[string]interface{}{}},
		{
			name: "decoded map",
			raw:  map[string]interface{}{"query": "rates"},
			want: map[string]interface{}{"query": "rates"},
		},
		{
			name: "json string",
			raw:  `{"query":"rates"}`,
			want: map[string]interface{}{"query": "rates"},
		},
		{name: "malformed json", raw: `{"query":`, want: map[string]interface{}{}},
		{name: "json null", raw: `null`, want: map[string]interface{}{}},
		{name: "wrong type", raw: 42, want: map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseArguments(tt.raw))
		})
	}
}
