package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.toml"))
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "context.insight.persist", cfg.RabbitMQ.PersistQueue)
	assert.Equal(t, 5*time.Minute, cfg.InsightTTL())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[app]
env = "production"
port = 9000

[database]
driver = "sqlite"
dsn = "file:insights.db"

[redis]
enabled = true
insight_ttl_seconds = 30
`), 0o600))
	t.Setenv("CONFIG_FILE", tomlPath)
	t.Setenv("APP_PORT", "9100")
	t.Setenv("RABBITMQ_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:insights.db", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.InsightTTL())
	assert.True(t, cfg.RabbitMQ.Enabled)
}

func TestLoadEnvFile(t *testing.T) {
	dir := isolate(t)

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CI_TEST_JWT_SECRET=from-dotenv\nJWT_EXPIRE_MINUTE=15\n"), 0o600))
	t.Setenv("ENV_FILE", envPath)
	t.Cleanup(func() {
		_ = os.Unsetenv("CI_TEST_JWT_SECRET")
		_ = os.Unsetenv("JWT_EXPIRE_MINUTE")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", os.Getenv("CI_TEST_JWT_SECRET"))
	assert.Equal(t, 15, cfg.Auth.JWTExpireMinute)
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := isolate(t)

	tomlPath := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[app\nport = "), 0o600))
	t.Setenv("CONFIG_FILE", tomlPath)

	_, err := Load()
	assert.ErrorContains(t, err, "decode config file failed")
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("CI_TEST_BOOL", "yes-please")
	assert.True(t, getEnvAsBool("CI_TEST_BOOL", true))

	t.Setenv("CI_TEST_BOOL", "false")
	assert.False(t, getEnvAsBool("CI_TEST_BOOL", true))
}
