package app

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	libredis "sparkpark/backend/libs/redis"
	"sparkpark/backend/services/parking-service/internal/auth"
	"sparkpark/backend/services/parking-service/internal/catalogue"
	"sparkpark/backend/services/parking-service/internal/config"
	httpserver "sparkpark/backend/services/parking-service/internal/http"
	"sparkpark/backend/services/parking-service/internal/http/handlers"
	"sparkpark/backend/services/parking-service/internal/http/middleware"
	"sparkpark/backend/services/parking-service/internal/metrics"
	redisstore "sparkpark/backend/services/parking-service/internal/redis"
	"sparkpark/backend/services/parking-service/internal/repository"
	"sparkpark/backend/services/parking-service/internal/service"
	"sparkpark/backend/services/parking-service/internal/ws"
)

// App wires parking-service dependencies.
type App struct {
	server      *httpserver.Server
	handler     http.Handler
	store       *Store
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{store: store, logger: logger}

	var (
		zoneCache service.ZoneCache
		revoker   auth.Revoker
		stopGuard repository.StopGuard
	)
	if cfg.RedisEnabled() {
		a.redisClient, err = libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		zoneCache = redisstore.NewZoneCache(a.redisClient, cfg.Redis.ZoneCacheTTL)
		revoker = redisstore.NewTokenDenylist(a.redisClient)
		stopGuard = redisstore.NewStopLock(a.redisClient, cfg.Redis.StopLockTTL, logger)
	} else {
		logger.Info("redis disabled; zone cache, stop lock and token denylist are off")
	}

	recorder := metrics.NewRecorder()

	zones := repository.NewZoneRepository(store.Gateway)
	sessionOpts := []repository.Option{
		repository.WithRate(cfg.Rate(), cfg.Billing.Currency),
		repository.WithObserver(recorder),
	}
	if stopGuard != nil {
		sessionOpts = append(sessionOpts, repository.WithStopGuard(stopGuard))
	}
	sessions := repository.NewSessionRepository(store.Gateway, zones, logger, sessionOpts...)
	receipts := repository.NewReceiptRepository(store.Gateway)
	principals := repository.NewPrincipalRepository(store.Gateway)

	parking := service.NewParkingService(zones, sessions, receipts, zoneCache, logger)
	authService := auth.NewService(
		principals,
		auth.NewBcryptHasher(bcrypt.DefaultCost),
		auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL),
		revoker,
		logger,
	)

	if cfg.Zones.SeedFile != "" {
		seed, err := catalogue.LoadFile(cfg.Zones.SeedFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		if _, err := parking.SeedZones(ctx, seed); err != nil {
			a.Close()
			return nil, err
		}
	}

	checks := map[string]handlers.Pinger{"database": store.Ping}
	if a.redisClient != nil {
		client := a.redisClient
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	var authOpts []handlers.AuthOption
	if cfg.JWT.ExposeResetTokens {
		logger.Warn("password reset tokens are returned over http; do not enable in production")
		authOpts = append(authOpts, handlers.WithExposedResetTokens())
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandlers:     handlers.NewAuthHandlers(authService, logger, authOpts...),
		ZonesHandlers:    handlers.NewZonesHandlers(parking, logger),
		SessionsHandlers: handlers.NewSessionsHandlers(parking, authService, logger),
		LiveFeed:         ws.NewLiveFeed(parking, cfg.LiveFeed.Interval, 0, logger),
		HealthHandler:    handlers.Health(checks, logger),
		MetricsHandler:   recorder.Handler(),
	}, middleware.Authenticate(authService, logger))

	middlewares := []func(http.Handler) http.Handler{
		middleware.Recovery(logger),
		middleware.Logging(logger, recorder),
	}
	a.handler = middleware.Chain(router, middlewares...)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger, middlewares...)
	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
