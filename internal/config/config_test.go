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
	path := filepath.Join(t.TempDir(), "cloudrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ModeAll, cfg.RunMode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "google-drive", cfg.Storage.DefaultProvider)
	assert.Equal(t, "coming_soon", cfg.Storage.Providers["dropbox"].Availability)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_FileWithSubstitution(t *testing.T) {
	t.Setenv("CLOUDRELAY_TEST_BUCKET", "uploads-prod")
	path := writeConfig(t, `
run_mode: worker
server:
  port: 9090
storage:
  default_provider: amazon-s3
  providers:
    amazon-s3:
      availability: fully_available
      settings:
        bucket: ${CLOUDRELAY_TEST_BUCKET}
        region: ${CLOUDRELAY_TEST_REGION:eu-west-1}
worker:
  concurrency: 4
  dequeue_timeout: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeWorker, cfg.RunMode)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "amazon-s3", cfg.Storage.DefaultProvider)
	s3 := cfg.Storage.Providers["amazon-s3"]
	assert.Equal(t, "uploads-prod", s3.Settings["bucket"])
	assert.Equal(t, "eu-west-1", s3.Settings["region"])
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Worker.DequeueTimeout)

	// Keys absent from the file keep their defaults
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://prod/db")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("JWT_SECRET", "a-much-longer-production-secret")
	t.Setenv("APP_KEY", "base64:c2VjcmV0")
	t.Setenv("PORT", "7000")
	t.Setenv("RUN_MODE", "api")
	t.Setenv("LOG_LEVEL", "DEBUG")

	path := writeConfig(t, "server:\n  port: 9090\ndatabase:\n  url: postgres://file/db\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod/db", cfg.Database.URL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "a-much-longer-production-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "base64:c2VjcmV0", cfg.Auth.AppKey)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, ModeAPI, cfg.RunMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "invalid PORT")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown run mode", func(c *Config) { c.RunMode = "batch" }, "RunMode"},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "Database.URL"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWTSecret"},
		{"missing app key", func(c *Config) { c.Auth.AppKey = "" }, "AppKey"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "Concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CLOUDRELAY_SET", "value")
	t.Setenv("CLOUDRELAY_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${CLOUDRELAY_SET}", "value"},
		{"${CLOUDRELAY_SET:fallback}", "value"},
		{"${CLOUDRELAY_EMPTY:fallback}", "fallback"},
		{"${CLOUDRELAY_UNSET_VAR}", ""},
		{"url: http://${CLOUDRELAY_UNSET_VAR:localhost}:${CLOUDRELAY_PORT_UNSET:8080}/x", "url: http://localhost:8080/x"},
		{"no variables $HOME", "no variables $HOME"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnv(tt.in), tt.in)
	}
}
