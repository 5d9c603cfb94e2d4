package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"loggamera-bridge/internal/api"
	"loggamera-bridge/internal/database"
	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/metrics"
	"loggamera-bridge/internal/models"
	"loggamera-bridge/internal/mqtt"
	"loggamera-bridge/internal/poller"
	"loggamera-bridge/internal/portal"
	"loggamera-bridge/internal/retry"
	"loggamera-bridge/internal/services"
	"loggamera-bridge/pkg/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bridge stopped", "error", err)
		os.Exit(1)
	}
}

// run wires the bridge and blocks until shutdown. Startup failures are
// returned so the deferred closes still run.
func run() error {
	// Load configuration
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.DebugMode)

	logger.Info("starting loggamera bridge", "version", models.BridgeVersion)

	locations, err := cfg.Locations()
	if err != nil {
		return fmt.Errorf("invalid LOCATIONS: %w", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// === Settings store ===
	var (
		store    services.SettingsStore = services.NewMemoryStore()
		recorder services.CycleRecorder
		outcomes api.OutcomeSource
		db       *database.ClickHouseDB
	)
	if cfg.ClickHouseEnabled {
		db, err = database.NewClickHouseDB(ctx, database.Options{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePass,
			Retry:    retry.Policy{MaxAttempts: 5, Delay: 3 * time.Second},
			Logger:   logger,
		})
		if err != nil {
			// Settings fall back to memory; the bridge keeps working without the database
			logger.Error("ClickHouse unavailable, settings will not persist", "error", err)
		} else {
			defer db.Close()
			store, recorder, outcomes = db, db, db
		}
	}

	// === Portal and poller ===
	m := metrics.New()

	client, err := portal.NewClient(portal.Config{
		BaseURL:   cfg.PortalBaseURL,
		Timeout:   cfg.FetchTimeout,
		Retry:     retry.Policy{MaxAttempts: cfg.FetchAttempts, Delay: cfg.FetchRetryDelay},
		UserAgent: cfg.UserAgent,
		Observer:  m,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("invalid portal configuration: %w", err)
	}

	sensors := make([]*poller.Sensor, 0, len(locations))
	for _, loc := range locations {
		sensors = append(sensors, poller.NewSensor(loc, client, cfg.CacheMaxAge, logger))
	}

	poll := poller.New(sensors, poller.Config{
		Interval: cfg.ScanInterval,
		Budget:   client.Budget(),
		Observer: m,
		Logger:   logger,
	})

	// === MQTT ===
	topics := mqtt.Topics{Base: cfg.MQTTBaseTopic, DiscoveryPrefix: cfg.HADiscoveryPrefix}

	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:            cfg.MQTTBroker,
		ClientID:          cfg.MQTTClientID + "-" + uuid.NewString()[:8],
		Username:          cfg.MQTTUsername,
		Password:          cfg.MQTTPassword,
		AvailabilityTopic: topics.Availability(),
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MQTT client: %w", err)
	}
	defer mqttClient.Close()

	publisher := mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{
		Topics:    topics,
		Locations: locations,
		Endpoint:  client.Endpoint(),
		Logger:    logger,
	})

	settingsChan := make(chan models.SettingsCommand, 10)
	hostOnline := make(chan struct{}, 1)
	subscriber := mqtt.NewSubscriber(mqttClient.GetNativeClient(), topics, settingsChan, hostOnline, logger)

	// === Services ===
	reportService := services.NewReportService(poll.Reports, services.ReportServiceConfig{
		Publisher: publisher,
		Recorder:  recorder,
		Interval:  poll.Interval,
		Logger:    logger,
	})

	settingsService := services.NewSettingsService(settingsChan, hostOnline, services.SettingsServiceConfig{
		Store:     store,
		Publisher: publisher,
		Scheduler: poll,
		Reports:   reportService,
		Logger:    logger,
	})
	settings := settingsService.Init(ctx, cfg.Settings())

	if err := subscriber.SubscribeAll(); err != nil {
		return fmt.Errorf("failed to subscribe to MQTT topics: %w", err)
	}
	settingsService.Republish()

	// Retained state and subscriptions are restored after a reconnect
	mqttClient.SetOnConnect(func() {
		if err := subscriber.SubscribeAll(); err != nil {
			logger.Error("resubscribe failed", "error", err)
		}
		settingsService.Republish()
	})

	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	spawn(poll.Start)
	spawn(reportService.Start)
	spawn(settingsService.Start)

	// === HTTP API ===
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.SetupRoutes(api.Deps{
			Reports:   reportService,
			Settings:  settingsService,
			Trigger:   poll,
			Outcomes:  outcomes,
			Metrics:   m,
			Locations: locations,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	logger.Info("bridge running",
		"locations", len(locations),
		"scan_interval", settings.ScanInterval,
		"debug_mode", settings.DebugMode,
		"portal", client.Endpoint(),
		"mqtt_base_topic", topics.Base,
		"http_addr", cfg.HTTPAddr,
		"clickhouse", db != nil)

	// === Wait for interrupt signal ===
	<-ctx.Done()

	// === Graceful shutdown ===
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}
