package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

const (
	filtersPrefix = "discovery:filters:"
	filtersTTL    = 90 * 24 * time.Hour
)

// FiltersRepo keeps the last discovery filters saved by each user.
type FiltersRepo struct {
	client *goredis.Client
}

func NewFiltersRepo(client *goredis.Client) *FiltersRepo {
	return &FiltersRepo{client: client}
}

func (r *FiltersRepo) Save(ctx context.Context, userID uuid.UUID, filters model.DiscoveryFilters) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	payload, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("marshal discovery filters: %w", err)
	}
	if err := r.client.Set(ctx, filtersKey(userID), payload, filtersTTL).Err(); err != nil {
		return fmt.Errorf("save discovery filters: %w", err)
	}
	return nil
}

// Load returns the stored filters; the bool is false when none were saved.
func (r *FiltersRepo) Load(ctx context.Context, userID uuid.UUID) (model.DiscoveryFilters, bool, error) {
	if r.client == nil {
		return model.DiscoveryFilters{}, false, fmt.Errorf("redis client is nil")
	}
	raw, err := r.client.Get(ctx, filtersKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.DiscoveryFilters{}, false, nil
	}
	if err != nil {
		return model.DiscoveryFilters{}, false, fmt.Errorf("load discovery filters: %w", err)
	}

	var filters model.DiscoveryFilters
	if err := json.Unmarshal(raw, &filters); err != nil {
		return model.DiscoveryFilters{}, false, fmt.Errorf("unmarshal discovery filters: %w", err)
	}
	return filters, true, nil
}

func (r *FiltersRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, filtersKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete discovery filters: %w", err)
	}
	return nil
}

func filtersKey(userID uuid.UUID) string {
	return filtersPrefix + userID.String()
}
