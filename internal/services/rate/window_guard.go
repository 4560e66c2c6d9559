package rate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRateLimited = errors.New("rate limited")

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// WindowGuard is a shared fixed window counter kept in redis. Unlike Limiter
// it rejects instead of queueing and holds across processes.
type WindowGuard struct {
	store  WindowStore
	limit  int
	window time.Duration
}

func NewWindowGuard(store WindowStore, limit int, window time.Duration) *WindowGuard {
	if limit < 0 {
		limit = 0
	}
	return &WindowGuard{
		store:  store,
		limit:  limit,
		window: window,
	}
}

// Allow counts one hit on key and reports the seconds until the window resets
// when the limit is exceeded.
func (g *WindowGuard) Allow(ctx context.Context, key string) (int64, bool, error) {
	if key == "" {
		return 0, false, fmt.Errorf("rate key is required")
	}
	if g.limit == 0 || g.window <= 0 {
		return 0, true, nil
	}
	if g.store == nil {
		return 0, false, fmt.Errorf("rate window store is nil")
	}

	count, ttl, err := g.store.IncrementWindow(ctx, key, g.window)
	if err != nil {
		return 0, false, err
	}
	if count > int64(g.limit) {
		return max(1, ceilSeconds(ttl)), false, nil
	}
	return 0, true, nil
}

// RetryAfter reports the seconds until key accepts hits again, zero if it does now.
func (g *WindowGuard) RetryAfter(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("rate key is required")
	}
	if g.store == nil || g.limit == 0 {
		return 0, nil
	}

	count, ttl, err := g.store.WindowState(ctx, key)
	if err != nil {
		return 0, err
	}
	if count >= int64(g.limit) {
		return ceilSeconds(ttl), nil
	}
	return 0, nil
}

// RateLimitedError carries the retry hint for a rejected hit.
type RateLimitedError struct {
	RetryAfterSec int64
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSec)
}

func (e RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
