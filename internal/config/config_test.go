package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: t.Parallel() is intentionally omitted in this package.
// These tests share process-global environment variables; t.Setenv in
// TestLoad_EnvOverride would race with any concurrent reader.

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "contactsd", cfg.Telemetry.ServiceName)
	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, time.Second, cfg.Postgres.ReadyBackoff)
	assert.Equal(t, 2*time.Minute, cfg.Postgres.ReadyTimeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.Auth.UserCacheTTL)
	assert.Equal(t, "contactsd-avatars", cfg.Storage.Bucket)
	assert.Equal(t, 50, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONTACTSD_SERVER_PORT", "9090")
	t.Setenv("CONTACTSD_POSTGRES_HOST", "my-db")
	t.Setenv("CONTACTSD_NATS_URL", "nats://custom:4222")
	t.Setenv("CONTACTSD_AUTH_JWT_SECRET", "sekret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "my-db", cfg.Postgres.Host)
	assert.Equal(t, "nats://custom:4222", cfg.NATS.URL)
	assert.Equal(t, "sekret", cfg.Auth.JWTSecret)
}

// Secrets have no meaningful default, but their keys must still reach the
// env overlay: viper's AutomaticEnv only feeds Unmarshal for registered keys,
// so an env-only container deployment depends on every one of these.
func TestLoad_SecretsFromEnvOnly(t *testing.T) {
	t.Setenv("CONTACTSD_AUTH_JWT_SECRET", "sekret")
	t.Setenv("CONTACTSD_POSTGRES_PASSWORD", "dbpw")
	t.Setenv("CONTACTSD_REDIS_PASSWORD", "redispw")
	t.Setenv("CONTACTSD_MAIL_HOST", "smtp.example.com")
	t.Setenv("CONTACTSD_MAIL_USERNAME", "noreply@example.com")
	t.Setenv("CONTACTSD_MAIL_PASSWORD", "mailpw")
	t.Setenv("CONTACTSD_MAIL_FROM", "noreply@example.com")
	t.Setenv("CONTACTSD_STORAGE_ACCESS_KEY", "ak")
	t.Setenv("CONTACTSD_STORAGE_SECRET_KEY", "sk")
	t.Setenv("CONTACTSD_STORAGE_PUBLIC_BASE", "http://cdn.example.com/avatars")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sekret", cfg.Auth.JWTSecret)
	assert.Equal(t, "dbpw", cfg.Postgres.Password)
	assert.Equal(t, "redispw", cfg.Redis.Password)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, "noreply@example.com", cfg.Mail.Username)
	assert.Equal(t, "mailpw", cfg.Mail.Password)
	assert.Equal(t, "noreply@example.com", cfg.Mail.From)
	assert.Equal(t, "ak", cfg.Storage.AccessKey)
	assert.Equal(t, "sk", cfg.Storage.SecretKey)
	assert.Equal(t, "http://cdn.example.com/avatars", cfg.Storage.PublicBase)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "postgres", Password: "pw",
		DB: "contacts", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://postgres:pw@db:5432/contacts?sslmode=disable", cfg.DSN())
}

func TestLoad_EnvIsolation(t *testing.T) {
	// Ensure a previous test's env vars don't leak — each sub-test uses t.Setenv
	// which auto-cleans via t.Cleanup.
	require.Empty(t, os.Getenv("CONTACTSD_SERVER_PORT"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}
