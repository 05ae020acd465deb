package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	t.Setenv("TASKS_AUTH_JWT_SECRET", "from-env")
	path := writeConfig(t, `
server:
  port: "9000"
worker:
  interval: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, ":9000", cfg.GetServerAddr())
	assert.Equal(t, time.Minute, cfg.Worker.Interval)
	assert.Equal(t, 100, cfg.Worker.BatchSize)
	assert.False(t, cfg.Worker.Enabled, "activation is opt-in")
	assert.Equal(t, "inmemory", cfg.Repository.Type)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 16, cfg.Realtime.SendBuffer)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("TASKS_AUTH_JWT_SECRET", "s")
	t.Setenv("TASKS_SERVER_PORT", "7000")
	t.Setenv("TASKS_REPOSITORY_TYPE", "postgres")
	t.Setenv("TASKS_DATABASE_URL", "postgres://u:p@db:5432/tasks")
	path := writeConfig(t, "server:\n  port: \"9000\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Repository.Type)
	assert.Equal(t, "postgres://u:p@db:5432/tasks", cfg.Database.URL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TASKS_AUTH_JWT_SECRET", "")
	_, err := Load(writeConfig(t, "server:\n  port: \"9000\"\n"))
	assert.Error(t, err, "jwt secret is required")

	t.Setenv("TASKS_AUTH_JWT_SECRET", "s")
	_, err = Load(writeConfig(t, "repository:\n  type: redis\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [broken"))
	assert.Error(t, err)
}
