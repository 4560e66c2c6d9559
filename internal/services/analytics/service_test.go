package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	pgrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/postgres"
)

type analyticsStoreStub struct {
	userID *uuid.UUID
	events []pgrepo.EventWriteRecord
	calls  int
	err    error
	ctxErr error
}

func (s *analyticsStoreStub) InsertBatch(ctx context.Context, userID *uuid.UUID, events []pgrepo.EventWriteRecord) error {
	s.calls++
	s.ctxErr = ctx.Err()
	s.userID = userID
	s.events = append([]pgrepo.EventWriteRecord(nil), events...)
	return s.err
}

func TestIngestBatchLimitValidation(t *testing.T) {
	store := &analyticsStoreStub{}
	svc := NewService(store, Config{MaxBatchSize: 100}, nil)

	events := make([]BatchEvent, 0, 101)
	for i := 0; i < 101; i++ {
		events = append(events, BatchEvent{Name: "evt", TS: 1})
	}

	err := svc.IngestBatch(context.Background(), nil, events)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("store must not be called on invalid batch")
	}
}

func TestIngestBatchRejectsBlankName(t *testing.T) {
	svc := NewService(&analyticsStoreStub{}, Config{}, nil)

	err := svc.IngestBatch(context.Background(), nil, []BatchEvent{{Name: "  "}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestIngestBatchSavesRows(t *testing.T) {
	store := &analyticsStoreStub{}
	svc := NewService(store, Config{MaxBatchSize: 100}, nil)
	fixedNow := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixedNow }

	uid := uuid.New()
	err := svc.IngestBatch(context.Background(), &uid, []BatchEvent{
		{Name: "app_open", TS: 1_700_000_000, Props: map[string]any{"tab": "feed"}},
		{Name: "view_profile", TS: 1_700_000_000_500, Props: map[string]any{"target_id": "x"}},
		{Name: "message_send", TS: 0, Props: nil},
	})
	if err != nil {
		t.Fatalf("ingest batch: %v", err)
	}

	if store.userID == nil || *store.userID != uid {
		t.Fatalf("unexpected user id in store: %+v", store.userID)
	}
	if len(store.events) != 3 {
		t.Fatalf("unexpected event rows count: got %d want 3", len(store.events))
	}
	if store.events[0].OccurredAt.Unix() != 1_700_000_000 {
		t.Fatalf("unexpected seconds ts conversion: %v", store.events[0].OccurredAt)
	}
	if store.events[1].OccurredAt.UnixMilli() != 1_700_000_000_500 {
		t.Fatalf("unexpected milliseconds ts conversion: %v", store.events[1].OccurredAt)
	}
	if !store.events[2].OccurredAt.Equal(fixedNow) {
		t.Fatalf("unexpected fallback ts: got %v want %v", store.events[2].OccurredAt, fixedNow)
	}
	if store.events[2].Props == nil {
		t.Fatalf("expected empty props map for nil props")
	}
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	store := &analyticsStoreStub{err: errors.New("db down")}
	svc := NewService(store, Config{}, nil)

	svc.Record(context.Background(), uuid.New(), "like", map[string]any{"target_id": "b"})

	if store.calls != 1 {
		t.Fatalf("unexpected store calls: got %d want 1", store.calls)
	}
	if len(store.events) != 1 || store.events[0].Name != "like" {
		t.Fatalf("unexpected recorded events: %+v", store.events)
	}
}

func TestRecordSurvivesCancelledRequestContext(t *testing.T) {
	store := &analyticsStoreStub{}
	svc := NewService(store, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Record(ctx, uuid.New(), "match", nil)

	if store.calls != 1 {
		t.Fatalf("unexpected store calls: got %d want 1", store.calls)
	}
	if store.ctxErr != nil {
		t.Fatalf("store context must not inherit cancellation, got %v", store.ctxErr)
	}
}

func TestRecordAnonymousUser(t *testing.T) {
	store := &analyticsStoreStub{}
	svc := NewService(store, Config{}, nil)

	svc.Record(context.Background(), uuid.Nil, "app_open", nil)

	if store.userID != nil {
		t.Fatalf("expected nil user id for anonymous event, got %v", store.userID)
	}
}

func TestRecordOnNilServiceIsNoop(t *testing.T) {
	var svc *Service
	svc.Record(context.Background(), uuid.New(), "like", nil)
}
