package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	sessionsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/session"
)

func TestSessionHandlerStartAndEnd(t *testing.T) {
	f := newPhotosFixture()
	sessions, err := sessionsvc.NewManager(sessionsvc.Dependencies{Photos: f.service(false, nil)}, sessionsvc.Config{})
	if err != nil {
		t.Fatalf("create session manager: %v", err)
	}
	defer sessions.Close()
	h := NewSessionHandler(sessions)
	userID := uuid.New()

	start := performPhotoRequest(t, h.Start, http.MethodPost, "/v1/session", userID, nil)
	if start.Code != http.StatusOK {
		t.Fatalf("unexpected status on start: got %d want %d", start.Code, http.StatusOK)
	}
	if sessions.Len() != 1 {
		t.Fatalf("unexpected session count: got %d want %d", sessions.Len(), 1)
	}

	end := performPhotoRequest(t, h.End, http.MethodDelete, "/v1/session", userID, nil)
	if end.Code != http.StatusOK {
		t.Fatalf("unexpected status on end: got %d want %d", end.Code, http.StatusOK)
	}
	if _, err := sessions.Resolver(userID); !errors.Is(err, sessionsvc.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after end, got %v", err)
	}
}

func TestSessionHandlerRejectsAfterShutdown(t *testing.T) {
	f := newPhotosFixture()
	sessions, err := sessionsvc.NewManager(sessionsvc.Dependencies{Photos: f.service(false, nil)}, sessionsvc.Config{})
	if err != nil {
		t.Fatalf("create session manager: %v", err)
	}
	sessions.Close()
	h := NewSessionHandler(sessions)

	rec := performPhotoRequest(t, h.Start, http.MethodPost, "/v1/session", uuid.New(), nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthHandlerReportsDegradedDependency(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusServiceUnavailable)
	}

	healthy := NewHealthHandler(map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	rec = httptest.NewRecorder()
	healthy.Get(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
}
