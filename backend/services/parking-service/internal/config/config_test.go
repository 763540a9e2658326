package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkpark/backend/services/parking-service/internal/billing"
)

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
gateway:
  mode: postgres
database:
  dsn: postgres://parking@localhost/parking
redis:
  addr: localhost:6379
  zoneCacheTTL: 1m
jwt:
  secret: from-file
billing:
  ratePerMinute: 12.5
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PARKING_JWT_SECRET", "from-env")
	t.Setenv("PARKING_CURRENCY", "EUR")
	t.Setenv("PARKING_JWT_EXPOSE_RESET_TOKENS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.TTL)
	assert.True(t, cfg.JWT.ExposeResetTokens)
	assert.Equal(t, time.Minute, cfg.Redis.ZoneCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Redis.StopLockTTL)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, billing.Amount(1250), cfg.Rate())
	assert.Equal(t, "EUR", cfg.Billing.Currency)
	assert.True(t, cfg.Database.Migrate)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Database.DSN = "postgres://localhost/parking"
		cfg.JWT.Secret = "s"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "memory needs no dsn", mutate: func(c *Config) { c.Gateway.Mode = " Memory "; c.Database.DSN = "" }},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: "config: database dsn required"},
		{name: "unknown mode", mutate: func(c *Config) { c.Gateway.Mode = "sqlite" }, wantErr: `config: unknown gateway mode "sqlite"`},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: "config: jwt secret required"},
		{name: "zero rate", mutate: func(c *Config) { c.Billing.RatePerMinute = 0 }, wantErr: "config: billing rate must be at least 0.01"},
		{name: "negative rate", mutate: func(c *Config) { c.Billing.RatePerMinute = -5 }, wantErr: "config: billing rate must be at least 0.01"},
		{name: "rate rounds to zero", mutate: func(c *Config) { c.Billing.RatePerMinute = 0.004 }, wantErr: "config: billing rate must be at least 0.01"},
		{name: "smallest rate", mutate: func(c *Config) { c.Billing.RatePerMinute = 0.01 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, billing.DefaultRatePerMinute, cfg.Rate())
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, time.Second, cfg.LiveFeed.Interval)
}
