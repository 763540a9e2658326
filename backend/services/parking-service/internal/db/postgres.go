package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	libdb "sparkpark/backend/libs/db"
)

// NewPostgres returns the shared pool configured for the parking service.
func NewPostgres(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	return libdb.NewPostgresDB(ctx, dsn, libdb.PoolOptions{MaxOpenConns: maxOpenConns})
}
