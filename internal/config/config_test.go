package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "./data/settleup.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.TokenDuration)
	assert.Equal(t, EventsNone, cfg.EventsBackend)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestReadSkipsValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PATH", "/tmp/other.db")

	_, err := Load(New())
	require.Error(t, err)

	cfg := Read(New())
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Error(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_DURATION", "2h")
	t.Setenv("EVENTS_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenDuration)
	assert.Equal(t, EventsRedis, cfg.EventsBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := &Config{
		Port:             70000,
		DBConnectRetries: 0,
		JWTSecret:        "short",
		TokenDuration:    time.Hour,
		LogLevel:         "chatty",
		EventsBackend:    EventsAMQP,
		AMQPURL:          "http://broker",
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"invalid port 70000",
		"database path cannot be empty",
		"db connect retries",
		"JWT secret",
		"invalid log level",
		"invalid AMQP URL scheme",
		"AMQP exchange and queue",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("EVENTS_BACKEND", "kafka")

	_, err := Load(New())
	assert.ErrorContains(t, err, "invalid events backend 'kafka'")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SETTLEUP_TEST_DOTENV=from-file\nSETTLEUP_TEST_KEEP=from-file\n"), 0o600))

	t.Setenv("SETTLEUP_TEST_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("SETTLEUP_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("SETTLEUP_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("SETTLEUP_TEST_KEEP"), "existing variables win")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
