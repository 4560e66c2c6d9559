package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/config"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	authsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/auth"
	matchingsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/matching"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

type likePair struct {
	from uuid.UUID
	to   uuid.UUID
}

type likesMemory struct {
	mu      sync.Mutex
	likes   map[likePair]bool
	matches map[uuid.UUID]model.Match
	blocked bool
}

func newLikesMemory() *likesMemory {
	return &likesMemory{
		likes:   make(map[likePair]bool),
		matches: make(map[uuid.UUID]model.Match),
	}
}

func (m *likesMemory) Insert(_ context.Context, likerID, likedID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := likePair{from: likerID, to: likedID}
	if m.likes[key] {
		return false, nil
	}
	m.likes[key] = true
	return true, nil
}

func (m *likesMemory) Exists(_ context.Context, likerID, likedID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[likePair{from: likerID, to: likedID}], nil
}

func (m *likesMemory) IsBlockedEitherWay(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return m.blocked, nil
}

type matchesMemory struct{ *likesMemory }

func (m matchesMemory) Upsert(_ context.Context, userID, targetID uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, b := model.CanonicalPair(userID, targetID)
	for id, existing := range m.matches {
		if existing.UserA == a && existing.UserB == b {
			return id, false, nil
		}
	}
	match := model.Match{ID: uuid.New(), UserA: a, UserB: b, CreatedAt: time.Now().UTC(), IsActive: true}
	m.matches[match.ID] = match
	return match.ID, true, nil
}

func (m matchesMemory) GetByID(_ context.Context, matchID uuid.UUID) (model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matches[matchID], nil
}

type passesMemory struct{ *likesMemory }

func (passesMemory) Insert(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

func newLikesHandler(store *likesMemory, limits *ratesvc.Registry) *LikesHandler {
	svc := matchingsvc.NewService(matchingsvc.Dependencies{
		Likes:   store,
		Passes:  passesMemory{store},
		Matches: matchesMemory{store},
		Blocks:  store,
		Limits:  limits,
	}, matchingsvc.Config{RequestTimeout: time.Second})
	return NewLikesHandler(svc)
}

func newTargetRequest(t *testing.T, ctx context.Context, userID uuid.UUID, target string) *http.Request {
	t.Helper()

	body, err := json.Marshal(map[string]any{"target_id": target})
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/likes", bytes.NewReader(body))
	if userID != uuid.Nil {
		ctx = authsvc.WithIdentity(ctx, authsvc.Identity{UserID: userID, Role: "authenticated"})
	}
	return req.WithContext(ctx)
}

func performTargetRequest(t *testing.T, handler http.HandlerFunc, ctx context.Context, userID uuid.UUID, target string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(handler, newTargetRequest(t, ctx, userID, target))
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return payload.Code
}

func TestLikeHandlerReturnsMatchOnReciprocalLike(t *testing.T) {
	store := newLikesMemory()
	h := newLikesHandler(store, nil)
	a, b := uuid.New(), uuid.New()

	first := performTargetRequest(t, h.Like, context.Background(), a, b.String())
	if first.Code != http.StatusOK {
		t.Fatalf("unexpected status on first like: got %d want %d", first.Code, http.StatusOK)
	}
	var oneSided struct {
		Matched bool `json:"matched"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &oneSided); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if oneSided.Matched {
		t.Fatalf("one-sided like must not match")
	}

	second := performTargetRequest(t, h.Like, context.Background(), b, a.String())
	if second.Code != http.StatusOK {
		t.Fatalf("unexpected status on reciprocal like: got %d want %d", second.Code, http.StatusOK)
	}
	var payload struct {
		Matched bool `json:"matched"`
		Match   struct {
			ID    string `json:"id"`
			UserA string `json:"user_a"`
			UserB string `json:"user_b"`
		} `json:"match"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode reciprocal response: %v", err)
	}
	if !payload.Matched || payload.Match.ID == "" {
		t.Fatalf("expected match in response, got %s", second.Body.String())
	}
	wantA, wantB := model.CanonicalPair(a, b)
	if payload.Match.UserA != wantA.String() || payload.Match.UserB != wantB.String() {
		t.Fatalf("unexpected pair: got %s/%s want %s/%s", payload.Match.UserA, payload.Match.UserB, wantA, wantB)
	}
}

func TestLikeHandlerRejectsInvalidTarget(t *testing.T) {
	h := newLikesHandler(newLikesMemory(), nil)
	rec := performTargetRequest(t, h.Like, context.Background(), uuid.New(), "not-a-uuid")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	if code := decodeAPIError(t, rec); code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code: got %q want %q", code, "VALIDATION_ERROR")
	}
}

func TestLikeHandlerRejectsSelfLike(t *testing.T) {
	h := newLikesHandler(newLikesMemory(), nil)
	userID := uuid.New()
	rec := performTargetRequest(t, h.Like, context.Background(), userID, userID.String())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLikeHandlerRequiresIdentity(t *testing.T) {
	h := newLikesHandler(newLikesMemory(), nil)
	rec := performTargetRequest(t, h.Like, context.Background(), uuid.Nil, uuid.NewString())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLikeHandlerReturnsForbiddenForBlockedPair(t *testing.T) {
	store := newLikesMemory()
	store.blocked = true
	h := newLikesHandler(store, nil)

	rec := performTargetRequest(t, h.Like, context.Background(), uuid.New(), uuid.NewString())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusForbidden)
	}
	if code := decodeAPIError(t, rec); code != "BLOCKED" {
		t.Fatalf("unexpected error code: got %q want %q", code, "BLOCKED")
	}
}

func TestLikeHandlerReturnsTooFastWhenQueuedPastDeadline(t *testing.T) {
	limits := ratesvc.NewRegistry(config.LimitsConfig{
		Like: config.RatePolicy{Interval: time.Hour, MaxCalls: 1},
	})
	defer limits.Close()
	h := newLikesHandler(newLikesMemory(), limits)
	userID := uuid.New()

	if rec := performTargetRequest(t, h.Like, context.Background(), userID, uuid.NewString()); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status on first like: got %d want %d", rec.Code, http.StatusOK)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rec := performTargetRequest(t, h.Like, ctx, userID, uuid.NewString())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status on queued like: got %d want %d", rec.Code, http.StatusTooManyRequests)
	}
	if code := decodeAPIError(t, rec); code != "TOO_FAST" {
		t.Fatalf("unexpected error code: got %q want %q", code, "TOO_FAST")
	}
}

func TestLikeHandlerReportsEndedSession(t *testing.T) {
	limits := ratesvc.NewRegistry(config.LimitsConfig{
		Like: config.RatePolicy{Interval: time.Hour, MaxCalls: 1},
	})
	h := newLikesHandler(newLikesMemory(), limits)
	userID := uuid.New()

	if rec := performTargetRequest(t, h.Like, context.Background(), userID, uuid.NewString()); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status on first like: got %d want %d", rec.Code, http.StatusOK)
	}

	queued := newTargetRequest(t, context.Background(), userID, uuid.NewString())
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- serve(h.Like, queued)
	}()

	l, err := limits.Limiter(ratesvc.ActionLike, userID)
	if err != nil {
		t.Fatalf("lookup limiter: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for l.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("second like never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}
	limits.Forget(userID)

	select {
	case rec := <-done:
		if rec.Code != http.StatusConflict {
			t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusConflict)
		}
		if code := decodeAPIError(t, rec); code != "SESSION_ENDED" {
			t.Fatalf("unexpected error code: got %q want %q", code, "SESSION_ENDED")
		}
	case <-time.After(time.Second):
		t.Fatalf("queued like was not released")
	}
}

func TestPassHandlerAcknowledges(t *testing.T) {
	h := newLikesHandler(newLikesMemory(), nil)
	rec := performTargetRequest(t, h.Pass, context.Background(), uuid.New(), uuid.NewString())
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
}
