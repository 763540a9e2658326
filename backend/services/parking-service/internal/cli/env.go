package cli

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sparkpark/backend/libs/logging"
	libredis "sparkpark/backend/libs/redis"
	"sparkpark/backend/services/parking-service/internal/app"
	"sparkpark/backend/services/parking-service/internal/config"
	redisstore "sparkpark/backend/services/parking-service/internal/redis"
	"sparkpark/backend/services/parking-service/internal/repository"
	"sparkpark/backend/services/parking-service/internal/service"
)

// Env is what a command runs against.
type Env struct {
	Store    *app.Store
	Parking  *service.ParkingService
	Receipts *repository.ReceiptRepository
	Logger   *zap.Logger

	closers []func()
}

// Opener builds an Env for one command invocation.
type Opener func(ctx context.Context) (*Env, error)

// NewEnv wires repositories and the parking service over store. cache may be nil.
func NewEnv(store *app.Store, cache service.ZoneCache, logger *zap.Logger) *Env {
	zones := repository.NewZoneRepository(store.Gateway)
	sessions := repository.NewSessionRepository(store.Gateway, zones, logger)
	receipts := repository.NewReceiptRepository(store.Gateway)
	return &Env{
		Store:    store,
		Parking:  service.NewParkingService(zones, sessions, receipts, cache, logger),
		Receipts: receipts,
		Logger:   logger,
	}
}

// Close releases everything the Env opened.
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// OpenFromConfig loads the service configuration and connects to its database, and to redis when
// configured so that seeding drops the cached catalogue. Migrations only run via the migrate command.
func OpenFromConfig(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Database.Migrate = false

	logger, err := logging.NewLogger("parkadmin")
	if err != nil {
		return nil, err
	}

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		cache  service.ZoneCache
		client *redis.Client
	)
	if cfg.RedisEnabled() {
		client, err = libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		cache = redisstore.NewZoneCache(client, cfg.Redis.ZoneCacheTTL)
	}

	env := NewEnv(store, cache, logger)
	env.closers = append(env.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close db", zap.Error(err))
		}
	})
	if client != nil {
		env.closers = append(env.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis", zap.Error(err))
			}
		})
	}
	env.closers = append(env.closers, func() { _ = logger.Sync() })
	return env, nil
}
