// Package config resolves runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/julianstephens/seatwise/internal/constants"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
)

// Backend names the ledger storage implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config holds every setting the CLI and the HTTP server read at startup.
type Config struct {
	DB           string        `env:"SEATWISE_DB"`
	Debug        bool          `env:"SEATWISE_DEBUG"`
	LogDir       string        `env:"SEATWISE_LOG_DIR"`
	LogJSON      bool          `env:"SEATWISE_LOG_JSON"`
	LockTimeout  time.Duration `env:"SEATWISE_LOCK_TIMEOUT" envDefault:"2s"`
	IntentTTL    time.Duration `env:"SEATWISE_INTENT_TTL" envDefault:"10m"`
	RedisAddr    string        `env:"SEATWISE_REDIS_ADDR"`
	HTTPAddr     string        `env:"SEATWISE_HTTP_ADDR" envDefault:":8080"`
	RateLimit    float64       `env:"SEATWISE_RATE_LIMIT" envDefault:"5"`
	RateBurst    int           `env:"SEATWISE_RATE_BURST" envDefault:"2"`
	OTelEndpoint string        `env:"SEATWISE_OTEL_ENDPOINT"`
}

// Load reads envFile into the process environment when it exists and then
// parses Config from the environment. An empty envFile skips the file step.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.LockTimeout <= 0 {
		return apperrors.Configuration(apperrors.CodeInvalidSetting, fmt.Sprintf("SEATWISE_LOCK_TIMEOUT must be positive, got %s", c.LockTimeout), nil)
	}
	if c.IntentTTL < 0 {
		return apperrors.Configuration(apperrors.CodeInvalidSetting, fmt.Sprintf("SEATWISE_INTENT_TTL cannot be negative, got %s", c.IntentTTL), nil)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return apperrors.Configuration(apperrors.CodeInvalidSetting, "SEATWISE_RATE_LIMIT and SEATWISE_RATE_BURST cannot be negative", nil)
	}
	return nil
}

// Backend reports which storage implementation DB addresses. Postgres URLs and
// key=value DSNs select postgres; anything else is a sqlite file path.
func (c Config) Backend() Backend {
	return BackendFor(c.DB)
}

// BackendFor classifies a database location string.
func BackendFor(db string) Backend {
	if strings.HasPrefix(db, "postgres://") || strings.HasPrefix(db, "postgresql://") || strings.Contains(db, "host=") {
		return BackendPostgres
	}
	return BackendSQLite
}

// DatabasePath returns DB with a leading ~ expanded, falling back to the
// default sqlite location when DB is unset.
func (c Config) DatabasePath() (string, error) {
	db := c.DB
	if db == "" {
		db = constants.DefaultConfigPath
	}
	if c.Backend() == BackendPostgres {
		return db, nil
	}
	return ExpandHome(db)
}

// LogDirectory returns LogDir, or a seatwise directory under the user cache
// directory when unset.
func (c Config) LogDirectory() string {
	if c.LogDir != "" {
		if dir, err := ExpandHome(c.LogDir); err == nil {
			return dir
		}
		return c.LogDir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, constants.AppName, "logs")
}

// ExpandHome replaces a leading ~ with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
