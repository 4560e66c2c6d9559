package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/rules"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

const defaultRequestTimeout = 15 * time.Second

var (
	ErrValidation      = errors.New("validation error")
	ErrBlocked         = errors.New("users are blocked")
	ErrDependenciesNil = errors.New("matching dependencies are not configured")
)

type LikeStore interface {
	Insert(ctx context.Context, likerID, likedID uuid.UUID) (bool, error)
	Exists(ctx context.Context, likerID, likedID uuid.UUID) (bool, error)
}

type PassStore interface {
	Insert(ctx context.Context, passerID, passeeID uuid.UUID) (bool, error)
}

type MatchStore interface {
	Upsert(ctx context.Context, userID, targetID uuid.UUID) (uuid.UUID, bool, error)
	GetByID(ctx context.Context, matchID uuid.UUID) (model.Match, error)
}

type ProfileStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.Profile, error)
}

type BlockChecker interface {
	IsBlockedEitherWay(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
}

type EventRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, name string, props map[string]any)
}

type Config struct {
	RequestTimeout time.Duration
}

// LikeResult is empty for a one-sided or repeated like. Match is set once the
// pair is matched; CompatibilityScore is best-effort and may be nil.
type LikeResult struct {
	Match              *model.Match
	CompatibilityScore *float64
}

func (r LikeResult) Matched() bool {
	return r.Match != nil
}

type Dependencies struct {
	Likes    LikeStore
	Passes   PassStore
	Matches  MatchStore
	Profiles ProfileStore
	Blocks   BlockChecker
	Events   EventRecorder
	Limits   *ratesvc.Registry
	Logger   *zap.Logger
}

type Service struct {
	likes    LikeStore
	passes   PassStore
	matches  MatchStore
	profiles ProfileStore
	blocks   BlockChecker
	events   EventRecorder
	limits   *ratesvc.Registry
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		likes:    deps.Likes,
		passes:   deps.Passes,
		matches:  deps.Matches,
		profiles: deps.Profiles,
		blocks:   deps.Blocks,
		events:   deps.Events,
		limits:   deps.Limits,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SendLike records likerID's like of likedID and commits the match when the
// like is reciprocated. The call is throttled per liker.
func (s *Service) SendLike(ctx context.Context, likerID, likedID uuid.UUID) (LikeResult, error) {
	if likerID == uuid.Nil || likedID == uuid.Nil || likerID == likedID {
		return LikeResult{}, ErrValidation
	}
	if s.likes == nil || s.matches == nil {
		return LikeResult{}, ErrDependenciesNil
	}

	if s.limits == nil {
		return s.sendLike(ctx, likerID, likedID)
	}
	return ratesvc.Throttle(ctx, s.limits, ratesvc.ActionLike, likerID, func(ctx context.Context) (LikeResult, error) {
		return s.sendLike(ctx, likerID, likedID)
	})
}

func (s *Service) sendLike(ctx context.Context, likerID, likedID uuid.UUID) (LikeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.ensureNotBlocked(ctx, likerID, likedID); err != nil {
		return LikeResult{}, err
	}

	inserted, err := s.likes.Insert(ctx, likerID, likedID)
	if err != nil {
		return LikeResult{}, fmt.Errorf("insert like: %w", err)
	}

	reciprocal, err := s.likes.Exists(ctx, likedID, likerID)
	if err != nil {
		return LikeResult{}, fmt.Errorf("lookup reciprocal like: %w", err)
	}
	if !reciprocal {
		if inserted {
			s.record(ctx, likerID, enums.EventLike, map[string]any{"target_id": likedID.String()})
		}
		return LikeResult{}, nil
	}

	// A repeated like still upserts so a match whose earlier commit failed
	// after both likes were stored gets created now.
	matchID, created, err := s.matches.Upsert(ctx, likerID, likedID)
	if err != nil {
		return LikeResult{}, fmt.Errorf("commit match: %w", err)
	}
	if !inserted && !created {
		return LikeResult{}, nil
	}

	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return LikeResult{}, fmt.Errorf("load match: %w", err)
	}

	result := LikeResult{Match: &match}
	if score, ok := s.compatibility(ctx, likerID, likedID); ok {
		result.CompatibilityScore = &score
	}

	if created {
		props := map[string]any{
			"match_id":  match.ID.String(),
			"target_id": likedID.String(),
		}
		if result.CompatibilityScore != nil {
			props["compatibility_score"] = *result.CompatibilityScore
		}
		s.record(ctx, likerID, enums.EventMatch, props)
	}

	return result, nil
}

// Pass records that userID skipped targetID. Passing never touches matches.
func (s *Service) Pass(ctx context.Context, userID, targetID uuid.UUID) error {
	if userID == uuid.Nil || targetID == uuid.Nil || userID == targetID {
		return ErrValidation
	}
	if s.passes == nil {
		return ErrDependenciesNil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if _, err := s.passes.Insert(ctx, userID, targetID); err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}
	return nil
}

func (s *Service) ensureNotBlocked(ctx context.Context, userID, targetID uuid.UUID) error {
	if s.blocks == nil {
		return nil
	}
	blocked, err := s.blocks.IsBlockedEitherWay(ctx, userID, targetID)
	if err != nil {
		return fmt.Errorf("check blocks: %w", err)
	}
	if blocked {
		return ErrBlocked
	}
	return nil
}

func (s *Service) compatibility(ctx context.Context, userID, targetID uuid.UUID) (float64, bool) {
	if s.profiles == nil {
		return 0, false
	}

	var a, b model.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.profiles.GetByUserID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = s.profiles.GetByUserID(gctx, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("compatibility score skipped",
			zap.String("user_id", userID.String()),
			zap.String("target_id", targetID.String()),
			zap.Error(err),
		)
		return 0, false
	}

	return rules.CompatibilityScore(a, b, s.now()), true
}

func (s *Service) record(ctx context.Context, userID uuid.UUID, name enums.EventName, props map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Record(ctx, userID, string(name), props)
}
