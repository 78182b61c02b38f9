package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ksaarinen/duskd/internal/bridge"
	"github.com/ksaarinen/duskd/internal/curve"
	"github.com/ksaarinen/duskd/internal/display"
	"github.com/ksaarinen/duskd/internal/engine"
	"github.com/ksaarinen/duskd/internal/fullscreen"
	"github.com/ksaarinen/duskd/internal/geo"
	"github.com/ksaarinen/duskd/internal/solar"
	"github.com/ksaarinen/duskd/internal/statecache"
	"github.com/ksaarinen/duskd/pkg/config"
	"github.com/ksaarinen/duskd/pkg/health"
	"github.com/ksaarinen/duskd/pkg/mqtt"
	"github.com/ksaarinen/duskd/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting duskd",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"topic_prefix", cfg.TopicPrefix,
		"log_level", cfg.LogLevel,
		"dry_run", cfg.DryRun)

	// Load runtime settings
	store := config.NewStore(cfg.SettingsPath, logger)
	if err := store.Load(); err != nil {
		logger.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Connect MQTT
	mqttClient := mqtt.NewClient(cfg, logger)
	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	err := mqttClient.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Error("Failed to connect to MQTT", "error", err)
		os.Exit(1)
	}

	// Optional Redis state mirror and solar sync cache
	var redisClient redis.Client
	var cache *statecache.Cache
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(cfg, logger)
		if err := redisClient.Ping(ctx); err != nil {
			logger.Error("Failed to ping Redis", "error", err)
			os.Exit(1)
		}
		cache = statecache.New(redisClient, cfg.TopicPrefix, logger)
		cache.Start()
		cache.SeedSolar(ctx, store)
	}

	// Gamma applier
	var applier display.Applier
	if cfg.DryRun {
		applier = display.NewLogApplier(logger)
	} else {
		applier = display.NewMQTTApplier(mqttClient, mqtt.GammaTopic(cfg.TopicPrefix), logger)
	}

	monitor := fullscreen.NewMonitor(mqttClient, mqtt.FullscreenTopic(cfg.TopicPrefix), logger)

	deps := engine.Deps{
		Store:   store,
		Curve:   curve.NewProvider(store),
		Applier: applier,
		Monitor: monitor,
		Locator: geo.NewHTTPLocator(cfg.GeoEndpoint, logger),
		Solar:   solar.NewSunCalcResolver(),
		Logger:  logger,
	}
	if cache != nil {
		deps.SyncObserver = func(loc geo.Location, times solar.Times) {
			cache.CacheSolar(loc, times, store.Snapshot().SyncInterval())
		}
	}

	eng := engine.New(deps)

	var unsubscribeMirror func()
	if cache != nil {
		unsubscribeMirror = eng.SubscribeState(cache.Enqueue)
	}

	mqttBridge := bridge.New(mqttClient, cfg.TopicPrefix, eng, logger)

	// Start health check server
	healthChecker := health.NewChecker(mqttClient, redisClient, logger)
	httpServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	eng.Start()
	if err := mqttBridge.Start(); err != nil {
		logger.Error("Failed to start MQTT bridge", "error", err)
		eng.Shutdown()
		os.Exit(1)
	}

	logger.Info("duskd started and ready")

	<-sigChan
	logger.Info("Shutdown signal received (SIGTERM/SIGINT)")

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	cancel()

	mqttBridge.Stop()
	if unsubscribeMirror != nil {
		unsubscribeMirror()
	}
	eng.Shutdown()

	if cache != nil {
		cache.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	mqttClient.Disconnect()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", "error", err)
		}
	}

	logger.Info("duskd shutdown complete")
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
