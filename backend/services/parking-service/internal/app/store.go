package app

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/config"
	"sparkpark/backend/services/parking-service/internal/db"
	"sparkpark/backend/services/parking-service/internal/gateway"
)

// Store is the gateway selected by configuration together with the pool behind it, if any.
type Store struct {
	Gateway gateway.Gateway
	DB      *sqlx.DB
}

// OpenStore connects the configured gateway. In postgres mode pending migrations are applied
// when cfg.Database.Migrate is set.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if cfg.Gateway.Mode == config.GatewayMemory {
		logger.Warn("using in-memory gateway; data is lost on exit")
		return &Store{Gateway: gateway.NewMemory(gateway.DefaultSchema())}, nil
	}

	sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, sqlDB, logger); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return &Store{Gateway: gateway.NewPostgres(sqlDB, gateway.DefaultSchema()), DB: sqlDB}, nil
}

// Ping checks the database. The memory gateway is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
