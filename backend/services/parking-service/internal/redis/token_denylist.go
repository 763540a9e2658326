package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist stores ids of signed-out tokens until they expire.
type TokenDenylist struct {
	client *redis.Client
}

// NewTokenDenylist returns denylist.
func NewTokenDenylist(client *redis.Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

func denylistKey(tokenID string) string {
	return fmt.Sprintf("auth:revoked:%s", tokenID)
}

// Revoke records tokenID for ttl.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return d.client.Set(ctx, denylistKey(tokenID), 1, ttl).Err()
}

// IsRevoked reports whether tokenID was signed out.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
