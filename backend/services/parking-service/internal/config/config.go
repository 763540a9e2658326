package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "sparkpark/backend/libs/config"
	"sparkpark/backend/services/parking-service/internal/billing"
)

// Gateway modes.
const (
	GatewayPostgres = "postgres"
	GatewayMemory   = "memory"
)

// Config defines parking service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Billing  BillingConfig  `yaml:"billing"`
	LiveFeed LiveFeedConfig `yaml:"liveFeed"`
	Zones    ZonesConfig    `yaml:"zones"`
}

type HTTPConfig struct {
	Port string `yaml:"port" env:"PARKING_HTTP_PORT"`
}

type GatewayConfig struct {
	// Mode is "postgres" or "memory"; memory keeps everything in process for local runs.
	Mode string `yaml:"mode" env:"PARKING_GATEWAY_MODE"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"PARKING_POSTGRES_DSN"`
	MaxOpenConns int    `yaml:"maxOpenConns" env:"PARKING_POSTGRES_MAX_OPEN_CONNS"`
	Migrate      bool   `yaml:"migrate" env:"PARKING_POSTGRES_MIGRATE"`
}

// RedisConfig is optional; an empty Addr disables the zone cache, stop lock and token denylist.
type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"PARKING_REDIS_ADDR"`
	Password     string        `yaml:"password" env:"PARKING_REDIS_PASSWORD"`
	DB           int           `yaml:"db" env:"PARKING_REDIS_DB"`
	ZoneCacheTTL time.Duration `yaml:"zoneCacheTTL" env:"PARKING_REDIS_ZONE_CACHE_TTL"`
	StopLockTTL  time.Duration `yaml:"stopLockTTL" env:"PARKING_REDIS_STOP_LOCK_TTL"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret" env:"PARKING_JWT_SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"PARKING_JWT_TTL"`
	// ExposeResetTokens returns password reset tokens over HTTP instead of relying on a mailer.
	// Development only.
	ExposeResetTokens bool `yaml:"exposeResetTokens" env:"PARKING_JWT_EXPOSE_RESET_TOKENS"`
}

type BillingConfig struct {
	// RatePerMinute is in major units, e.g. 10 for 10.00 kr per minute.
	RatePerMinute float64 `yaml:"ratePerMinute" env:"PARKING_RATE_PER_MINUTE"`
	Currency      string  `yaml:"currency" env:"PARKING_CURRENCY"`
}

type LiveFeedConfig struct {
	Interval time.Duration `yaml:"interval" env:"PARKING_LIVE_FEED_INTERVAL"`
}

type ZonesConfig struct {
	// SeedFile, when set, is upserted into the catalogue at startup.
	SeedFile string `yaml:"seedFile" env:"PARKING_ZONE_SEED_FILE"`
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	return &Config{
		HTTP:     HTTPConfig{Port: "8080"},
		Gateway:  GatewayConfig{Mode: GatewayPostgres},
		Database: DatabaseConfig{MaxOpenConns: 10, Migrate: true},
		Redis: RedisConfig{
			ZoneCacheTTL: 10 * time.Minute,
			StopLockTTL:  10 * time.Second,
		},
		JWT: JWTConfig{TTL: 30 * 24 * time.Hour},
		Billing: BillingConfig{
			RatePerMinute: billing.DefaultRatePerMinute.Major(),
			Currency:      billing.DefaultCurrency,
		},
		LiveFeed: LiveFeedConfig{Interval: time.Second},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	c.Gateway.Mode = strings.ToLower(strings.TrimSpace(c.Gateway.Mode))
	switch c.Gateway.Mode {
	case GatewayPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case GatewayMemory:
	default:
		return fmt.Errorf("config: unknown gateway mode %q", c.Gateway.Mode)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Rate() <= 0 {
		return errors.New("config: billing rate must be at least 0.01")
	}
	if strings.TrimSpace(c.Billing.Currency) == "" {
		return errors.New("config: billing currency required")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// Rate returns the billing rate in minor units.
func (c *Config) Rate() billing.Amount {
	return billing.AmountFromMajor(c.Billing.RatePerMinute)
}

// RedisEnabled reports whether a redis address is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}
