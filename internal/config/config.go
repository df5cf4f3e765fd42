// Package config loads and validates the watcher configuration.
//
// DESIGN: Environment variables are the primary contract (the watcher runs
// as a sidecar container); an optional YAML file supplies the same settings
// with ${VAR:-default} expansion. Precedence: env > YAML > defaults.
// Validation failures are fatal at startup - the process must not enter the
// ingest loop with a bad configuration. There is no hot reload; re-reading
// requires a restart.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poolwatch/poolwatch/internal/monitoring"
)

// Defaults applied before YAML and environment overrides.
const (
	DefaultInitialPool        = "blue"
	DefaultErrorRateThreshold = 2.0
	DefaultWindowSize         = 200
	DefaultMinSamples         = 20
	DefaultCooldownSec        = 300
	DefaultAccessLog          = "/var/log/nginx/access.log"
)

// Config is the root configuration for the alert watcher.
type Config struct {
	Watcher    WatcherConfig           `yaml:"watcher"`    // Signal derivation settings
	Notify     NotifyConfig            `yaml:"notify"`     // Outbound webhook settings
	History    HistoryConfig           `yaml:"history"`    // Alert audit store
	Health     HealthConfig            `yaml:"health"`     // Liveness endpoint
	Monitoring monitoring.LoggerConfig `yaml:"monitoring"` // Diagnostic logging
}

// WatcherConfig contains signal derivation settings.
type WatcherConfig struct {
	AccessLog          string   `yaml:"access_log"`           // Path of the proxy's JSON access log
	InitialPool        string   `yaml:"initial_pool"`         // Seed for the pool tracker
	ErrorRateThreshold float64  `yaml:"error_rate_threshold"` // Percent, (0,100]
	WindowSize         int      `yaml:"window_size"`          // Outcomes kept in the sliding window
	MinSamples         int      `yaml:"min_samples"`          // Window length required before rate checks
	CooldownSec        int      `yaml:"cooldown_sec"`         // Per-kind dispatch cooldown
	MaintenanceMode    bool     `yaml:"maintenance_mode"`     // Suppress non-critical alerts
	BlueIPs            []string `yaml:"blue_ips"`             // Known blue upstream addresses
	GreenIPs           []string `yaml:"green_ips"`            // Known green upstream addresses
}

// NotifyConfig contains outbound webhook settings.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"` // Slack incoming-webhook URL (required)
	TimeoutSec int    `yaml:"timeout_sec"` // Per-delivery timeout, default 10
}

// HistoryConfig contains alert audit store settings.
type HistoryConfig struct {
	Path string `yaml:"path"` // SQLite file path; empty disables the store
}

// HealthConfig contains liveness endpoint settings.
type HealthConfig struct {
	Addr string `yaml:"addr"` // host:port to listen on; empty disables it
}

// Cooldown returns the per-kind cooldown as a duration.
func (w WatcherConfig) Cooldown() time.Duration {
	return time.Duration(w.CooldownSec) * time.Second
}

// Timeout returns the delivery timeout as a duration.
func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSec) * time.Second
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variable overrides, then validates it. An empty path skips
// the file layer entirely (pure env configuration).
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		expanded := expandEnvWithDefaults(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Watcher: WatcherConfig{
			AccessLog:          DefaultAccessLog,
			InitialPool:        DefaultInitialPool,
			ErrorRateThreshold: DefaultErrorRateThreshold,
			WindowSize:         DefaultWindowSize,
			MinSamples:         DefaultMinSamples,
			CooldownSec:        DefaultCooldownSec,
		},
		Notify: NotifyConfig{
			TimeoutSec: 10,
		},
		Monitoring: monitoring.LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies the watcher's environment variable contract on
// top of whatever the YAML layer produced.
func (c *Config) applyEnvOverrides() error {
	setString(&c.Notify.WebhookURL, "SLACK_WEBHOOK_URL")
	setString(&c.Watcher.InitialPool, "ACTIVE_POOL")
	setString(&c.Watcher.AccessLog, "ACCESS_LOG")
	setString(&c.History.Path, "HISTORY_DB")
	setString(&c.Health.Addr, "HEALTH_ADDR")
	setString(&c.Monitoring.Level, "LOG_LEVEL")
	setString(&c.Monitoring.Format, "LOG_FORMAT")
	setCSV(&c.Watcher.BlueIPs, "BLUE_IPS")
	setCSV(&c.Watcher.GreenIPs, "GREEN_IPS")

	if err := setFloat(&c.Watcher.ErrorRateThreshold, "ERROR_RATE_THRESHOLD"); err != nil {
		return err
	}
	if err := setInt(&c.Watcher.WindowSize, "WINDOW_SIZE"); err != nil {
		return err
	}
	if err := setInt(&c.Watcher.MinSamples, "MIN_SAMPLES"); err != nil {
		return err
	}
	if err := setInt(&c.Watcher.CooldownSec, "ALERT_COOLDOWN_SEC"); err != nil {
		return err
	}
	if err := setBool(&c.Watcher.MaintenanceMode, "MAINTENANCE_MODE"); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Notify.WebhookURL == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL is required")
	}
	if c.Notify.TimeoutSec <= 0 {
		return fmt.Errorf("invalid notify.timeout_sec: %d (must be positive)", c.Notify.TimeoutSec)
	}

	w := c.Watcher
	if w.AccessLog == "" {
		return fmt.Errorf("watcher.access_log is required")
	}
	if w.InitialPool == "" {
		return fmt.Errorf("watcher.initial_pool is required")
	}
	if w.ErrorRateThreshold <= 0 || w.ErrorRateThreshold > 100 {
		return fmt.Errorf("invalid watcher.error_rate_threshold: %g (must be in (0,100])", w.ErrorRateThreshold)
	}
	if w.WindowSize < 1 {
		return fmt.Errorf("invalid watcher.window_size: %d (must be positive)", w.WindowSize)
	}
	if w.MinSamples < 1 || w.MinSamples > w.WindowSize {
		return fmt.Errorf("invalid watcher.min_samples: %d (must be in [1,window_size])", w.MinSamples)
	}
	if w.CooldownSec < 0 {
		return fmt.Errorf("invalid watcher.cooldown_sec: %d (must be non-negative)", w.CooldownSec)
	}

	if c.Health.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Health.Addr); err != nil {
			return fmt.Errorf("invalid health.addr '%s': %w", c.Health.Addr, err)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setCSV(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", key, v, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", key, v, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", key, v, err)
	}
	*dst = b
	return nil
}
