package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pgrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/postgres"
)

const (
	defaultMaxBatchSize  = 100
	defaultRecordTimeout = 5 * time.Second
	maxEventNameLength   = 64
)

var ErrValidation = errors.New("validation error")

type Store interface {
	InsertBatch(ctx context.Context, userID *uuid.UUID, events []pgrepo.EventWriteRecord) error
}

type Config struct {
	MaxBatchSize  int
	RecordTimeout time.Duration
}

type Service struct {
	store  Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

type BatchEvent struct {
	Name  string
	TS    int64
	Props map[string]any
}

func NewService(store Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = defaultRecordTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Record stores a single engine event. It never fails the caller: errors are
// logged and dropped. The write is detached from ctx cancellation so a
// finished request still gets its event recorded.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, name string, props map[string]any) {
	if s == nil || s.store == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RecordTimeout)
	defer cancel()

	var uid *uuid.UUID
	if userID != uuid.Nil {
		uid = &userID
	}

	err := s.store.InsertBatch(writeCtx, uid, []pgrepo.EventWriteRecord{{
		Name:       name,
		OccurredAt: s.now().UTC(),
		Props:      cloneProps(props),
	}})
	if err != nil {
		s.logger.Warn("record analytics event failed",
			zap.String("event", name),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) IngestBatch(ctx context.Context, userID *uuid.UUID, events []BatchEvent) error {
	if s.store == nil {
		return fmt.Errorf("analytics store is nil")
	}
	if len(events) == 0 || len(events) > s.cfg.MaxBatchSize {
		return ErrValidation
	}

	now := s.now().UTC()
	rows := make([]pgrepo.EventWriteRecord, 0, len(events))
	for _, event := range events {
		name := strings.TrimSpace(event.Name)
		if name == "" || len(name) > maxEventNameLength {
			return ErrValidation
		}

		rows = append(rows, pgrepo.EventWriteRecord{
			Name:       name,
			OccurredAt: parseTS(event.TS, now),
			Props:      cloneProps(event.Props),
		})
	}

	if err := s.store.InsertBatch(ctx, userID, rows); err != nil {
		return fmt.Errorf("insert events batch: %w", err)
	}

	return nil
}

func parseTS(ts int64, fallback time.Time) time.Time {
	if ts <= 0 {
		return fallback
	}
	if ts >= 1_000_000_000_000 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

func cloneProps(props map[string]any) map[string]any {
	if len(props) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for key, value := range props {
		out[key] = value
	}
	return out
}
