package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithWebhook(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/log/nginx/access.log", cfg.Watcher.AccessLog)
	assert.Equal(t, "blue", cfg.Watcher.InitialPool)
	assert.Equal(t, 2.0, cfg.Watcher.ErrorRateThreshold)
	assert.Equal(t, 200, cfg.Watcher.WindowSize)
	assert.Equal(t, 20, cfg.Watcher.MinSamples)
	assert.Equal(t, 300, cfg.Watcher.CooldownSec)
	assert.False(t, cfg.Watcher.MaintenanceMode)
	assert.Equal(t, "info", cfg.Monitoring.Level)
}

func TestLoad_MissingWebhookFails(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLACK_WEBHOOK_URL")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("ACTIVE_POOL", "green")
	t.Setenv("ERROR_RATE_THRESHOLD", "5.5")
	t.Setenv("WINDOW_SIZE", "500")
	t.Setenv("ALERT_COOLDOWN_SEC", "60")
	t.Setenv("MAINTENANCE_MODE", "true")
	t.Setenv("BLUE_IPS", "172.18.0.3, 172.18.0.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "green", cfg.Watcher.InitialPool)
	assert.Equal(t, 5.5, cfg.Watcher.ErrorRateThreshold)
	assert.Equal(t, 500, cfg.Watcher.WindowSize)
	assert.Equal(t, 60, cfg.Watcher.CooldownSec)
	assert.True(t, cfg.Watcher.MaintenanceMode)
	assert.Equal(t, []string{"172.18.0.3", "172.18.0.5"}, cfg.Watcher.BlueIPs)
}

func TestLoad_InvalidEnvValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"window size not a number", "WINDOW_SIZE", "lots"},
		{"threshold not a number", "ERROR_RATE_THRESHOLD", "two"},
		{"cooldown not a number", "ALERT_COOLDOWN_SEC", "5m"},
		{"maintenance not a bool", "MAINTENANCE_MODE", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold zero", func(c *Config) { c.Watcher.ErrorRateThreshold = 0 }},
		{"threshold above 100", func(c *Config) { c.Watcher.ErrorRateThreshold = 101 }},
		{"window size zero", func(c *Config) { c.Watcher.WindowSize = 0 }},
		{"negative cooldown", func(c *Config) { c.Watcher.CooldownSec = -1 }},
		{"min samples above window", func(c *Config) { c.Watcher.MinSamples = 1000 }},
		{"empty pool", func(c *Config) { c.Watcher.InitialPool = "" }},
		{"empty access log", func(c *Config) { c.Watcher.AccessLog = "" }},
		{"bad health addr", func(c *Config) { c.Health.Addr = "no-port" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Notify.WebhookURL = "https://hooks.slack.com/services/T/B/X"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_YAMLFileWithEnvExpansion(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "")
	t.Setenv("POOLWATCH_TEST_POOL", "green")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
watcher:
  initial_pool: ${POOLWATCH_TEST_POOL:-blue}
  window_size: 50
  min_samples: 10
notify:
  webhook_url: https://hooks.slack.com/services/T/B/Y
  timeout_sec: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "green", cfg.Watcher.InitialPool)
	assert.Equal(t, 50, cfg.Watcher.WindowSize)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/Y", cfg.Notify.WebhookURL)
	assert.Equal(t, 5, cfg.Notify.TimeoutSec)
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/ENV")
	t.Setenv("WINDOW_SIZE", "75")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
watcher:
  window_size: 50
  min_samples: 10
notify:
  webhook_url: https://hooks.slack.com/services/T/B/FILE
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Watcher.WindowSize)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/ENV", cfg.Notify.WebhookURL)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
