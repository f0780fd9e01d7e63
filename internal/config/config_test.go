package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "PORT", "GRPC_PORT", "LOG_LEVEL", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "JWT_SECRET", "REDIS_ADDR", "REDIS_HOST", "REDIS_PORT", "RUN_LOCAL",
		"KAFKA_BROKERS", "KAFKA_TOPIC_PREFIX", "MATURATION_DELAY_HOURS", "SWEEP_INTERVAL_SECONDS",
		"SWEEP_IN_PROCESS", "IDEMPOTENCY_TTL_HOURS", "ADMIN_RATE_LIMIT", "ALERT_EMAIL", "MAIL_PROVIDER",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/greenvault")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("MATURATION_DELAY_HOURS", "48")
	t.Setenv("SWEEP_IN_PROCESS", "true")
	t.Setenv("RUN_LOCAL", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.HTTPPort)
	require.Equal(t, 48*time.Hour, cfg.MaturationDelay)
	require.Equal(t, time.Minute, cfg.SweepInterval)
	require.True(t, cfg.SweepInProcess)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  http_port: 9000
dependencies:
  postgres_url: postgres://file/db
  redis_addr: cache:6379
  kafka_brokers: [broker:9092]
ledger:
  maturation_delay_hours: 12
  sweep_interval_seconds: 30
alerts:
  email: finance@example.org
`), 0o600))
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "7000")
	t.Setenv("REDIS_HOST", "redis-primary")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.HTTPPort)
	require.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	require.Equal(t, "redis-primary:6379", cfg.RedisAddr)
	require.Equal(t, []string{"broker:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 12*time.Hour, cfg.MaturationDelay)
	require.Equal(t, 30*time.Second, cfg.SweepInterval)
	require.Equal(t, "finance@example.org", cfg.AlertEmail)
}

func TestLoadBuildsDSNFromParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "vault")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "ledger")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres://vault:pw@db:5432/ledger", cfg.DatabaseURL)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestLoadRequiresSecrets(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://x")
	_, err = Load("")
	require.ErrorContains(t, err, "JWT_SECRET")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service: [unterminated"), 0o600))
	t.Setenv("JWT_SECRET", "secret")
	_, err = Load(path)
	require.ErrorContains(t, err, "parse config file")
}
