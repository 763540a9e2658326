package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StopLock is a per-session mutex across service replicas.
type StopLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStopLock returns lock. ttl bounds how long a crashed holder blocks other stops.
func NewStopLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StopLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &StopLock{client: client, ttl: ttl, logger: logger}
}

func stopLockKey(sessionID string) string {
	return fmt.Sprintf("sessions:stop:%s", sessionID)
}

// Acquire takes the lock for sessionID. A held lock is a ConflictError.
func (l *StopLock) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := stopLockKey(sessionID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, apperrors.Transport(err)
	}
	if !ok {
		return nil, apperrors.Conflict("stop already in progress")
	}

	return func() {
		// The request context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("release stop lock", zap.String("session_id", sessionID), zap.Error(err))
		}
	}, nil
}
