package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const DevSecret = "dev-secret-change"

// Config holds the server configuration, populated from environment
// variables (a .env file is honored when present).
type Config struct {
	HTTPAddr string `env:"DIDNODB_HTTP_ADDR" envDefault:":8080"`

	// StorageDriver selects the backend: "sqlite" or "file".
	StorageDriver string `env:"DIDNODB_STORAGE" envDefault:"sqlite"`
	DatabaseDSN   string `env:"DIDNODB_DB_DSN" envDefault:"file:didnodb.db?cache=shared&mode=rwc"`
	DataDir       string `env:"DIDNODB_DATA_DIR" envDefault:"db/data"`

	JWTSecret string        `env:"DIDNODB_JWT_SECRET" envDefault:"dev-secret-change"`
	TokenTTL  time.Duration `env:"DIDNODB_TOKEN_TTL" envDefault:"24h"`

	// Admin account seeded at startup; skipped when the password is empty.
	AdminUsername string `env:"DIDNODB_ADMIN_USER" envDefault:"admin"`
	AdminPassword string `env:"DIDNODB_ADMIN_PASSWORD"`

	MaxRequestBytes int64 `env:"DIDNODB_MAX_REQUEST_BYTES" envDefault:"1048576"`
	LogLevel        int   `env:"DIDNODB_LOG_LEVEL" envDefault:"0"`
}

func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StorageDriver != "sqlite" && cfg.StorageDriver != "file" {
		return Config{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	return cfg, nil
}
