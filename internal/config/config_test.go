package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Load config without a file - should use defaults
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "http://localhost:3000", cfg.Hosting.BaseURL)
	assert.Equal(t, "quarry", cfg.Hosting.User)
	assert.Equal(t, 30*time.Second, cfg.Hosting.Timeout)

	assert.Equal(t, 4, cfg.Resilience.HTTPMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Resilience.HTTPBaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Resilience.GitBaseDelay)
	assert.Equal(t, 5, cfg.Resilience.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Resilience.RecoveryTimeout)

	assert.Equal(t, 4, cfg.Downloads.MaxWorkers)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)

	assert.True(t, cfg.RateLimiter.Enabled)
	assert.Equal(t, 100.0, cfg.RateLimiter.RequestsPerSecond)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_FromEnvironment(t *testing.T) {
	os.Setenv("QUARRY_SERVER_PORT", "9000")
	os.Setenv("QUARRY_HOSTING_TOKEN", "secret-token")
	defer func() {
		os.Unsetenv("QUARRY_SERVER_PORT")
		os.Unsetenv("QUARRY_HOSTING_TOKEN")
	}()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "secret-token", cfg.Hosting.Token)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8181
hosting:
  base_url: http://gitea.internal:3000
  user: datasets
resilience:
  git_max_attempts: 6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "http://gitea.internal:3000", cfg.Hosting.BaseURL)
	assert.Equal(t, "datasets", cfg.Hosting.User)
	assert.Equal(t, 6, cfg.Resilience.GitMaxAttempts)

	// Untouched sections keep defaults
	assert.Equal(t, 4, cfg.Resilience.HTTPMaxAttempts)
}

func TestValidate_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"missing hosting base URL", func(c *Config) { c.Hosting.BaseURL = "" }},
		{"non-positive hosting timeout", func(c *Config) { c.Hosting.Timeout = 0 }},
		{"zero retry attempts", func(c *Config) { c.Resilience.HTTPMaxAttempts = 0 }},
		{"zero breaker threshold", func(c *Config) { c.Resilience.FailureThreshold = 0 }},
		{"zero download workers", func(c *Config) { c.Downloads.MaxWorkers = 0 }},
		{"rate limiter enabled with zero rps", func(c *Config) { c.RateLimiter.RequestsPerSecond = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
