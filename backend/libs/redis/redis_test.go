package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisClientValidatesOptions(t *testing.T) {
	_, err := NewRedisClient(context.Background(), Options{Addr: " "})
	assert.EqualError(t, err, "redis: addr is empty")

	_, err = NewRedisClient(context.Background(), Options{Addr: "localhost:6379", DB: -1})
	assert.EqualError(t, err, "redis: db index must not be negative")
}
