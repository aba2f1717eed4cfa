package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/controllers"
	"github.com/yigit/eventsignup/internal/app/models/dto"
	"github.com/yigit/eventsignup/internal/app/repositories/sqlite"
	"github.com/yigit/eventsignup/internal/app/routes"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/app/window"
	"github.com/yigit/eventsignup/internal/middleware"
	"github.com/yigit/eventsignup/internal/pkg/email"
)

var testNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Data       json.RawMessage     `json:"data"`
	Pagination *dto.PaginationInfo `json:"pagination"`
	Error      *dto.ErrorDetail    `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := window.FixedClock{At: testNow}
	notifier := email.NewNotifier(email.SMTPConfig{}, zerolog.Nop())
	eventService := services.NewEventService(store, notifier, []string{"publisher@example.org"}, clock, services.DefaultMaxAttempts, zerolog.Nop())
	rsvpService := services.NewRsvpService(store, clock, services.DefaultMaxAttempts, zerolog.Nop())
	reminderService := services.NewReminderService(store, notifier, window.ReminderLead, zerolog.Nop())

	router := gin.New()
	router.Use(middleware.RequestLogger(zerolog.Nop()))
	routes.SetupRouter(router,
		controllers.NewEventController(eventService),
		controllers.NewRsvpController(rsvpService),
		controllers.NewReminderController(reminderService, clock),
	)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return out
}

func submitBody(limit int) gin.H {
	return gin.H{
		"title":            "Robotics night",
		"timeZone":         "UTC",
		"creatorEmail":     "creator@example.org",
		"studentRsvpLimit": limit,
		"trusted":          true,
		"sessions": []gin.H{
			{"name": "Main", "startsAt": "2026-03-04T10:00", "endsAt": "2026-03-04T12:00"},
		},
	}
}

func TestSignupFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec, env := do(t, router, http.MethodPost, "/api/v1/events", submitBody(1))
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	event := decode[dto.EventResponse](t, env)
	if event.CurrentState != "pending_approval" || len(event.Sessions) != 1 {
		t.Fatalf("submitted event = %+v", event)
	}

	rec, env = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/approve", event.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[dto.EventResponse](t, env).CurrentState; got != "published" {
		t.Fatalf("approved state = %s, want published", got)
	}

	rsvpsPath := fmt.Sprintf("/api/v1/events/%d/rsvps", event.ID)
	rec, env = do(t, router, http.MethodPost, rsvpsPath, gin.H{"attendeeId": "a", "attendeeEmail": "a@example.org", "role": "student"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup a status = %d, body %s", rec.Code, rec.Body.String())
	}
	first := decode[dto.RsvpResponse](t, env)
	if first.Status != dto.RsvpStatusConfirmed {
		t.Fatalf("first rsvp status = %s, want confirmed", first.Status)
	}

	rec, env = do(t, router, http.MethodPost, rsvpsPath, gin.H{"attendeeId": "b", "attendeeEmail": "b@example.org", "role": "student"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup b status = %d, body %s", rec.Code, rec.Body.String())
	}
	second := decode[dto.RsvpResponse](t, env)
	if second.Status != dto.RsvpStatusWaitlisted || second.WaitlistPosition == nil || *second.WaitlistPosition != 1 {
		t.Fatalf("second rsvp = %+v, want waitlisted at 1", second)
	}

	rec, env = do(t, router, http.MethodPost, rsvpsPath, gin.H{"attendeeId": "a", "role": "student"})
	if rec.Code != http.StatusConflict || env.Error == nil || env.Error.Code != dto.ErrorCodeAlreadyRegistered {
		t.Fatalf("duplicate signup = %d %+v, want 409 %s", rec.Code, env.Error, dto.ErrorCodeAlreadyRegistered)
	}

	rec, _ = do(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/rsvps/%d", first.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec, env = do(t, router, http.MethodGet, rsvpsPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[[]dto.RsvpResponse](t, env)
	if len(list) != 1 || list[0].AttendeeID != "b" || list[0].Status != dto.RsvpStatusConfirmed {
		t.Fatalf("rsvps after cancel = %+v, want b confirmed", list)
	}

	rec, env = do(t, router, http.MethodPost, "/api/v1/reminders/tick", gin.H{"now": testNow})
	if rec.Code != http.StatusOK {
		t.Fatalf("tick status = %d, body %s", rec.Code, rec.Body.String())
	}
	if result := decode[services.TickResult](t, env); result.EventRemindersSent != 1 {
		t.Fatalf("tick result = %+v, want one event reminder", result)
	}

	rec, env = do(t, router, http.MethodPost, "/api/v1/reminders/tick", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second tick status = %d", rec.Code)
	}
	if result := decode[services.TickResult](t, env); result.EventRemindersSent != 0 {
		t.Fatalf("second tick result = %+v, want nothing", result)
	}
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   dto.ErrorCode
	}{
		{"missing event", http.MethodGet, "/api/v1/events/999", nil, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{"bad id", http.MethodGet, "/api/v1/events/abc", nil, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"missing trust flag", http.MethodPost, "/api/v1/events", gin.H{"title": "x", "sessions": []gin.H{{"startsAt": "2026-03-04T10:00", "endsAt": "2026-03-04T11:00"}}}, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"bad session time", http.MethodPost, "/api/v1/events", gin.H{"title": "x", "trusted": true, "sessions": []gin.H{{"startsAt": "tomorrow", "endsAt": "later"}}}, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"bad role", http.MethodPost, "/api/v1/events/1/rsvps", gin.H{"attendeeId": "a", "role": "chaperone"}, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"unknown list type", http.MethodGet, "/api/v1/events?type=someday", nil, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"missing rsvp", http.MethodDelete, "/api/v1/rsvps/42", nil, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{"unknown route", http.MethodGet, "/api/v1/nowhere", nil, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, router, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Fatalf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestApproveTwiceConflicts(t *testing.T) {
	router := newTestRouter(t)
	_, env := do(t, router, http.MethodPost, "/api/v1/events", submitBody(5))
	event := decode[dto.EventResponse](t, env)
	approve := fmt.Sprintf("/api/v1/events/%d/approve", event.ID)

	if rec, _ := do(t, router, http.MethodPost, approve, nil); rec.Code != http.StatusOK {
		t.Fatalf("first approve status = %d", rec.Code)
	}
	rec, env := do(t, router, http.MethodPost, approve, nil)
	if rec.Code != http.StatusConflict || env.Error.Code != dto.ErrorCodeInvalidTransition {
		t.Fatalf("second approve = %d %+v, want 409 %s", rec.Code, env.Error, dto.ErrorCodeInvalidTransition)
	}
}

func TestListEventsPaginates(t *testing.T) {
	router := newTestRouter(t)
	for i := 0; i < 3; i++ {
		_, env := do(t, router, http.MethodPost, "/api/v1/events", submitBody(5))
		event := decode[dto.EventResponse](t, env)
		do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/approve", event.ID), nil)
	}

	rec, env := do(t, router, http.MethodGet, "/api/v1/events?page=2&size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if events := decode[[]dto.EventResponse](t, env); len(events) != 1 {
		t.Fatalf("page 2 has %d events, want 1", len(events))
	}
	if env.Pagination == nil || env.Pagination.TotalItems != 3 || env.Pagination.TotalPages != 2 {
		t.Fatalf("pagination = %+v, want 3 items over 2 pages", env.Pagination)
	}
}

func TestPingEchoesRequestID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "2f1e2b9a-8a4c-4c9e-9a57-0d6f4f1e8c11")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ping status = %d", rec.Code)
	}
	if got := rec.Header().Get(middleware.RequestIDHeader); got != "2f1e2b9a-8a4c-4c9e-9a57-0d6f4f1e8c11" {
		t.Fatalf("request id = %q, want the one sent", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatal("no request id assigned")
	}
}
