package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"quarterdeck-booking/internal/models"
)

const facilityKeyPrefix = "facility:"

// FacilityCache keeps facility rows in Redis for a short TTL, keyed by the
// reference (slug or id) they were looked up with.
type FacilityCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewFacilityCache(client *redis.Client, ttl time.Duration) *FacilityCache {
	return &FacilityCache{Client: client, TTL: ttl}
}

// Get returns nil, nil on a miss.
func (c *FacilityCache) Get(ctx context.Context, ref string) (*models.Facility, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := c.Client.Get(ctx, facilityKeyPrefix+ref).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get facility from Redis: %w", err)
	}

	var f models.Facility
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached facility: %w", err)
	}
	return &f, nil
}

func (c *FacilityCache) Set(ctx context.Context, ref string, f *models.Facility) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal facility: %w", err)
	}
	if err := c.Client.Set(ctx, facilityKeyPrefix+ref, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store facility in Redis: %w", err)
	}
	return nil
}
