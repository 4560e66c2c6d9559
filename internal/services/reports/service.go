package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/pkg/validate"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

const maxDetailsLen = 1000

var ErrValidation = errors.New("validation error")

type ReportStore interface {
	Create(ctx context.Context, reporterID, reportedID uuid.UUID, reason enums.ReportReason, details string) (int64, error)
}

type BlockStore interface {
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error)
	Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error)
}

type EventRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, name string, props map[string]any)
}

type Dependencies struct {
	Reports ReportStore
	Blocks  BlockStore
	Events  EventRecorder
	Limits  *ratesvc.Registry
	Logger  *zap.Logger
}

type Service struct {
	reports ReportStore
	blocks  BlockStore
	events  EventRecorder
	limits  *ratesvc.Registry
	logger  *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reports: deps.Reports,
		blocks:  deps.Blocks,
		events:  deps.Events,
		limits:  deps.Limits,
		logger:  logger,
	}
}

// Report files a complaint against reportedID under the report limiter.
func (s *Service) Report(ctx context.Context, reporterID, reportedID uuid.UUID, reason enums.ReportReason, details string) (int64, error) {
	details = strings.TrimSpace(details)
	if err := validatePair(reporterID, reportedID); err != nil {
		return 0, err
	}
	if !reason.Valid() {
		return 0, fmt.Errorf("unknown reason %q: %w", reason, ErrValidation)
	}
	if !validate.MaxRunes(details, maxDetailsLen) {
		return 0, fmt.Errorf("details too long: %w", ErrValidation)
	}
	if s.reports == nil {
		return 0, fmt.Errorf("report store is not configured")
	}

	create := func(ctx context.Context) (int64, error) {
		id, err := s.reports.Create(ctx, reporterID, reportedID, reason, details)
		if err != nil {
			return 0, err
		}
		s.logger.Info("report filed",
			zap.Int64("report_id", id),
			zap.String("reason", string(reason)),
		)
		s.record(ctx, reporterID, enums.EventReport, map[string]any{"reason": string(reason)})
		return id, nil
	}
	if s.limits == nil {
		return create(ctx)
	}
	return ratesvc.Throttle(ctx, s.limits, ratesvc.ActionReport, reporterID, create)
}

// Block hides the pair from each other and deactivates their match. Blocking
// twice is not an error.
func (s *Service) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	if s.blocks == nil {
		return fmt.Errorf("block store is not configured")
	}
	created, err := s.blocks.Block(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if created {
		s.record(ctx, blockerID, enums.EventBlock, nil)
	}
	return nil
}

// Unblock lifts a block. A deactivated match stays inactive.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	if err := validatePair(blockerID, blockedID); err != nil {
		return false, err
	}
	if s.blocks == nil {
		return false, fmt.Errorf("block store is not configured")
	}
	return s.blocks.Unblock(ctx, blockerID, blockedID)
}

func (s *Service) record(ctx context.Context, userID uuid.UUID, name enums.EventName, props map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Record(ctx, userID, string(name), props)
}

func validatePair(userID, otherID uuid.UUID) error {
	if userID == uuid.Nil || otherID == uuid.Nil {
		return fmt.Errorf("user ids are required: %w", ErrValidation)
	}
	if userID == otherID {
		return fmt.Errorf("cannot target yourself: %w", ErrValidation)
	}
	return nil
}
