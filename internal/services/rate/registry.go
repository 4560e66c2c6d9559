package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/config"
)

type Action string

const (
	ActionLike          Action = "like"
	ActionFeed          Action = "feed"
	ActionReport        Action = "report"
	ActionProfileUpdate Action = "profile_update"
	ActionAuth          Action = "auth"
	ActionPhotoView     Action = "photo_view"
)

var ErrUnknownAction = errors.New("unknown rate limited action")

type limiterKey struct {
	action Action
	userID uuid.UUID
}

// Registry owns one Limiter per user and action.
type Registry struct {
	policies map[Action]config.RatePolicy

	mu       sync.Mutex
	limiters map[limiterKey]*Limiter
}

func NewRegistry(cfg config.LimitsConfig) *Registry {
	return &Registry{
		policies: map[Action]config.RatePolicy{
			ActionLike:          cfg.Like,
			ActionFeed:          cfg.Feed,
			ActionReport:        cfg.Report,
			ActionProfileUpdate: cfg.ProfileUpdate,
			ActionAuth:          cfg.Auth,
			ActionPhotoView:     cfg.PhotoView,
		},
		limiters: make(map[limiterKey]*Limiter),
	}
}

func (r *Registry) Limiter(action Action, userID uuid.UUID) (*Limiter, error) {
	policy, ok := r.policies[action]
	if !ok {
		return nil, fmt.Errorf("%s: %w", action, ErrUnknownAction)
	}

	key := limiterKey{action: action, userID: userID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[key]; ok {
		return l, nil
	}
	l, err := NewLimiter(policy.Interval, policy.MaxCalls)
	if err != nil {
		return nil, fmt.Errorf("create %s limiter: %w", action, err)
	}
	r.limiters[key] = l
	return l, nil
}

// Forget closes and drops every limiter of userID.
func (r *Registry) Forget(userID uuid.UUID) {
	r.mu.Lock()
	var closing []*Limiter
	for key, l := range r.limiters {
		if key.userID == userID {
			closing = append(closing, l)
			delete(r.limiters, key)
		}
	}
	r.mu.Unlock()

	for _, l := range closing {
		l.Close()
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	all := r.limiters
	r.limiters = make(map[limiterKey]*Limiter)
	r.mu.Unlock()

	for _, l := range all {
		l.Close()
	}
}

// Throttle runs action under the limiter of userID for the given action.
func Throttle[T any](ctx context.Context, r *Registry, action Action, userID uuid.UUID, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	l, err := r.Limiter(action, userID)
	if err != nil {
		return zero, err
	}
	return Run(ctx, l, fn)
}
