package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/redis"
)

func TestWindowGuardBlocksAfterLimit(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	guard := NewWindowGuard(redrepo.NewRateRepo(client), 2, time.Minute)
	ctx := context.Background()
	key := "photo:view:viewer:42"

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := guard.Allow(ctx, key)
		if err != nil {
			t.Fatalf("allow #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := guard.Allow(ctx, key)
	if err != nil {
		t.Fatalf("allow #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected guard to block the third hit")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Fatalf("unexpected retry_after: %d", retryAfter)
	}

	state, err := guard.RetryAfter(ctx, key)
	if err != nil {
		t.Fatalf("retry after: %v", err)
	}
	if state <= 0 {
		t.Fatalf("expected positive retry_after state, got %d", state)
	}

	mr.FastForward(61 * time.Second)

	if _, allowed, err := guard.Allow(ctx, key); err != nil || !allowed {
		t.Fatalf("expected window reset, allowed=%v err=%v", allowed, err)
	}
}

func TestWindowGuardSurfacesStoreError(t *testing.T) {
	guard := NewWindowGuard(failingStore{err: errors.New("redis down")}, 1, time.Minute)
	if _, _, err := guard.Allow(context.Background(), "k"); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestRateLimitedErrorUnwraps(t *testing.T) {
	err := error(RateLimitedError{RetryAfterSec: 3})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited")
	}
}

type failingStore struct {
	err error
}

func (s failingStore) IncrementWindow(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, s.err
}

func (s failingStore) WindowState(context.Context, string) (int64, time.Duration, error) {
	return 0, 0, s.err
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}
