package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/config"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/rules"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

var ErrValidation = errors.New("validation error")

type Store interface {
	Save(ctx context.Context, userID uuid.UUID, filters model.DiscoveryFilters) error
	Load(ctx context.Context, userID uuid.UUID) (model.DiscoveryFilters, bool, error)
}

// Patch is a partial filter edit; nil fields keep their current value.
type Patch struct {
	Genders       []enums.Gender
	Intentions    []enums.Intention
	AgeMin        *int
	AgeMax        *int
	Region        *enums.Region
	MinDistanceKM *float64
	MaxDistanceKM *float64
}

// Service holds the discovery filters of active users. The session copy is
// authoritative while the user is signed in; the store keeps the last value
// across sessions.
type Service struct {
	store    Store
	limits   *ratesvc.Registry
	defaults model.DiscoveryFilters
	logger   *zap.Logger

	mu      sync.RWMutex
	session map[uuid.UUID]model.DiscoveryFilters
}

func NewService(store Store, limits *ratesvc.Registry, defaults model.DiscoveryFilters, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		limits:   limits,
		defaults: defaults.Clone(),
		logger:   logger,
		session:  make(map[uuid.UUID]model.DiscoveryFilters),
	}
}

// DefaultsFromConfig builds the filters a user starts with.
func DefaultsFromConfig(cfg config.DiscoveryConfig) model.DiscoveryFilters {
	genders, _ := rules.ParseGenders(cfg.Genders)
	intentions, _ := rules.ParseIntentions(cfg.Intentions)
	return model.DiscoveryFilters{
		Genders:       genders,
		Intentions:    intentions,
		AgeRange:      model.AgeRange{Min: cfg.AgeMin, Max: cfg.AgeMax},
		MaxDistanceKM: cfg.MaxDistanceKM,
	}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (model.DiscoveryFilters, error) {
	if userID == uuid.Nil {
		return model.DiscoveryFilters{}, ErrValidation
	}

	s.mu.RLock()
	filters, ok := s.session[userID]
	s.mu.RUnlock()
	if ok {
		return filters.Clone(), nil
	}

	filters = s.defaults.Clone()
	if s.store != nil {
		stored, found, err := s.store.Load(ctx, userID)
		switch {
		case err != nil:
			s.logger.Warn("load stored discovery filters failed", zap.String("user_id", userID.String()), zap.Error(err))
		case found && rules.ValidateFilters(stored) == nil:
			filters = stored
		case found:
			s.logger.Warn("stored discovery filters are invalid, using defaults", zap.String("user_id", userID.String()))
		}
	}

	s.mu.Lock()
	if current, ok := s.session[userID]; ok {
		filters = current
	} else {
		s.session[userID] = filters
	}
	s.mu.Unlock()

	return filters.Clone(), nil
}

// Update applies patch to the user's filters. The edit is throttled as a
// profile update.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, patch Patch) (model.DiscoveryFilters, error) {
	if userID == uuid.Nil {
		return model.DiscoveryFilters{}, ErrValidation
	}
	if s.limits == nil {
		return s.update(ctx, userID, patch)
	}
	return ratesvc.Throttle(ctx, s.limits, ratesvc.ActionProfileUpdate, userID, func(ctx context.Context) (model.DiscoveryFilters, error) {
		return s.update(ctx, userID, patch)
	})
}

func (s *Service) update(ctx context.Context, userID uuid.UUID, patch Patch) (model.DiscoveryFilters, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return model.DiscoveryFilters{}, err
	}

	next := applyPatch(current, patch)
	if err := rules.ValidateFilters(next); err != nil {
		return model.DiscoveryFilters{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.mu.Lock()
	s.session[userID] = next
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, userID, next); err != nil {
			s.logger.Warn("persist discovery filters failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	return next.Clone(), nil
}

// Forget drops the session copy on sign-out. The stored value is kept.
func (s *Service) Forget(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.session, userID)
	s.mu.Unlock()
}

func applyPatch(f model.DiscoveryFilters, p Patch) model.DiscoveryFilters {
	out := f.Clone()
	if p.Genders != nil {
		out.Genders = append([]enums.Gender(nil), p.Genders...)
	}
	if p.Intentions != nil {
		out.Intentions = append([]enums.Intention(nil), p.Intentions...)
	}
	if p.AgeMin != nil {
		out.AgeRange.Min = *p.AgeMin
	}
	if p.AgeMax != nil {
		out.AgeRange.Max = *p.AgeMax
	}
	if p.Region != nil {
		out.Region = *p.Region
	}
	if p.MinDistanceKM != nil {
		out.MinDistanceKM = *p.MinDistanceKM
	}
	if p.MaxDistanceKM != nil {
		out.MaxDistanceKM = *p.MaxDistanceKM
	}
	return out
}
