// Package main is the entry point for the pool watcher.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/config"
	"github.com/poolwatch/poolwatch/internal/health"
	"github.com/poolwatch/poolwatch/internal/history"
	"github.com/poolwatch/poolwatch/internal/monitoring"
	"github.com/poolwatch/poolwatch/internal/notify"
	"github.com/poolwatch/poolwatch/internal/tailer"
	"github.com/poolwatch/poolwatch/internal/watcher"
)

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	configEnv := filepath.Join(homeDir, ".config", "poolwatch", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Local .env can override
	_ = godotenv.Load()
}

func main() {
	loadEnvFiles()

	configPath := flag.String("config", "", "path to optional YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Monitoring.Level = "debug"
	}
	monitoring.Global(cfg.Monitoring)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("watcher terminated")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log.Info().
		Str("access_log", cfg.Watcher.AccessLog).
		Str("initial_pool", cfg.Watcher.InitialPool).
		Float64("error_rate_threshold", cfg.Watcher.ErrorRateThreshold).
		Int("window_size", cfg.Watcher.WindowSize).
		Int("cooldown_sec", cfg.Watcher.CooldownSec).
		Bool("maintenance_mode", cfg.Watcher.MaintenanceMode).
		Msg("alert watcher starting")

	metrics := monitoring.NewMetricsCollector()

	var recorder watcher.Recorder
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open alert history: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	engine := watcher.NewEngine(watcher.EngineConfig{
		ErrorRateThreshold: cfg.Watcher.ErrorRateThreshold,
		MinSamples:         cfg.Watcher.MinSamples,
		Cooldown:           cfg.Watcher.Cooldown(),
		MaintenanceMode:    cfg.Watcher.MaintenanceMode,
	})

	runtime := watcher.NewRuntime(watcher.RuntimeOptions{
		Source:   tailer.New(cfg.Watcher.AccessLog),
		Parser:   watcher.NewParser(cfg.Watcher.BlueIPs, cfg.Watcher.GreenIPs),
		Window:   watcher.NewWindow(cfg.Watcher.WindowSize),
		Pools:    watcher.NewPoolTracker(cfg.Watcher.InitialPool),
		Engine:   engine,
		Notifier: notify.NewSlack(cfg.Notify.WebhookURL, notify.WithTimeout(cfg.Notify.Timeout())),
		Recorder: recorder,
		Metrics:  metrics,
	})

	if cfg.Health.Addr != "" {
		healthSrv := health.New(cfg.Health.Addr, runtime.Status)
		healthSrv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = healthSrv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := runtime.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().Msg("watcher shut down")
	return nil
}
