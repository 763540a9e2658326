// Package redisstore keeps short-lived shared state in redis: the zone catalogue cache, per-session
// stop locks and the signed-out token list.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sparkpark/backend/services/parking-service/internal/models"
)

const zoneCatalogueKey = "zones:catalogue"

// ZoneCache caches the full zone catalogue. Zones are reference data that change only on seeding.
type ZoneCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewZoneCache returns redis-backed cache.
func NewZoneCache(client *redis.Client, ttl time.Duration) *ZoneCache {
	return &ZoneCache{client: client, ttl: ttl}
}

// Get returns the cached catalogue. ok is false on a miss.
func (c *ZoneCache) Get(ctx context.Context) ([]models.Zone, bool, error) {
	result, err := c.client.Get(ctx, zoneCatalogueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var zones []models.Zone
	if err := json.Unmarshal(result, &zones); err != nil {
		return nil, false, err
	}
	return zones, true, nil
}

// Save caches zones.
func (c *ZoneCache) Save(ctx context.Context, zones []models.Zone) error {
	data, err := json.Marshal(zones)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, zoneCatalogueKey, data, c.ttl).Err()
}

// Invalidate drops the cached catalogue.
func (c *ZoneCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, zoneCatalogueKey).Err()
}
