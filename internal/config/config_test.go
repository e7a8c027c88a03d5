package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SEATWISE_DB", "SEATWISE_DEBUG", "SEATWISE_LOG_DIR", "SEATWISE_LOCK_TIMEOUT",
		"SEATWISE_INTENT_TTL", "SEATWISE_REDIS_ADDR", "SEATWISE_HTTP_ADDR",
		"SEATWISE_RATE_LIMIT", "SEATWISE_RATE_BURST", "SEATWISE_OTEL_ENDPOINT",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LockTimeout != 2*time.Second {
		t.Errorf("LockTimeout = %v, want 2s", cfg.LockTimeout)
	}
	if cfg.IntentTTL != 10*time.Minute {
		t.Errorf("IntentTTL = %v, want 10m", cfg.IntentTTL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.RateLimit != 5 || cfg.RateBurst != 2 {
		t.Errorf("rate = %v/%d, want 5/2", cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.Backend() != BackendSQLite {
		t.Errorf("Backend() = %q, want sqlite", cfg.Backend())
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEATWISE_DB", "postgres://seatwise@localhost/seatwise")
	t.Setenv("SEATWISE_DEBUG", "true")
	t.Setenv("SEATWISE_LOCK_TIMEOUT", "750ms")
	t.Setenv("SEATWISE_REDIS_ADDR", "localhost:6379")
	t.Setenv("SEATWISE_RATE_LIMIT", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.LockTimeout != 750*time.Millisecond {
		t.Errorf("LockTimeout = %v, want 750ms", cfg.LockTimeout)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.RateLimit != 0.5 {
		t.Errorf("RateLimit = %v, want 0.5", cfg.RateLimit)
	}
	if cfg.Backend() != BackendPostgres {
		t.Errorf("Backend() = %q, want postgres", cfg.Backend())
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "SEATWISE_INTENT_TTL=30s\nSEATWISE_HTTP_ADDR=127.0.0.1:9090\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	// godotenv does not override variables that are already set, so register
	// cleanup for the ones the file introduces.
	t.Cleanup(func() {
		os.Unsetenv("SEATWISE_INTENT_TTL")
		os.Unsetenv("SEATWISE_HTTP_ADDR")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IntentTTL != 30*time.Second {
		t.Errorf("IntentTTL = %v, want 30s", cfg.IntentTTL)
	}
	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Load() error = %v, want nil for a missing file", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable duration", "SEATWISE_LOCK_TIMEOUT", "soon"},
		{"zero lock timeout", "SEATWISE_LOCK_TIMEOUT", "0s"},
		{"negative intent ttl", "SEATWISE_INTENT_TTL", "-1m"},
		{"negative rate", "SEATWISE_RATE_LIMIT", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("Load() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestValidateIsConfigurationError(t *testing.T) {
	cfg := Config{LockTimeout: 0, IntentTTL: time.Minute}
	err := cfg.Validate()
	if !apperrors.IsConfiguration(err) {
		t.Fatalf("Validate() = %v, want configuration error", err)
	}
}

func TestBackendFor(t *testing.T) {
	tests := []struct {
		db   string
		want Backend
	}{
		{"", BackendSQLite},
		{"~/.config/seatwise/seatwise.db", BackendSQLite},
		{"/var/lib/seatwise.db", BackendSQLite},
		{"postgres://localhost/seatwise", BackendPostgres},
		{"postgresql://localhost/seatwise", BackendPostgres},
		{"host=localhost dbname=seatwise", BackendPostgres},
	}
	for _, tt := range tests {
		if got := BackendFor(tt.db); got != tt.want {
			t.Errorf("BackendFor(%q) = %q, want %q", tt.db, got, tt.want)
		}
	}
}

func TestDatabasePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := Config{}.DatabasePath()
	if err != nil {
		t.Fatalf("DatabasePath() error = %v", err)
	}
	if !strings.HasPrefix(got, home) || !strings.HasSuffix(got, "seatwise.db") {
		t.Errorf("DatabasePath() = %q, want default under %q", got, home)
	}

	pg := "postgres://localhost/seatwise"
	got, err = Config{DB: pg}.DatabasePath()
	if err != nil || got != pg {
		t.Errorf("DatabasePath() = %q, %v; want %q unchanged", got, err, pg)
	}
}

func TestExpandHome(t *testing.T) {
	if got, _ := ExpandHome("/abs/path.db"); got != "/abs/path.db" {
		t.Errorf("ExpandHome(abs) = %q", got)
	}
	if got, _ := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("ExpandHome(~user) = %q, want unchanged", got)
	}
}

func TestLogDirectory(t *testing.T) {
	if got := (Config{LogDir: "/var/log/seatwise"}).LogDirectory(); got != "/var/log/seatwise" {
		t.Errorf("LogDirectory() = %q", got)
	}
	if got := (Config{}).LogDirectory(); !strings.HasSuffix(got, filepath.Join("seatwise", "logs")) {
		t.Errorf("default LogDirectory() = %q", got)
	}
}
