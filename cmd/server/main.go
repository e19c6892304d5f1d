package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ph-monitor/internal/api"
	"ph-monitor/internal/cache"
	"ph-monitor/internal/database"
	"ph-monitor/internal/logger"
	"ph-monitor/internal/metrics"
	"ph-monitor/internal/mqtt"
	"ph-monitor/internal/services"
	"ph-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.Init("ph-monitor", cfg.LogLevel, cfg.LogFormat)
	log.Info("starting pH oscillation monitor", "monitors", len(cfg.Monitors), "history", cfg.HistoryBackend)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, log *slog.Logger) error {
	// Initialize history store
	store, err := database.Open(cfg.HistoryBackend, database.ClickHouseOptions{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDB,
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePass,
	}, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	defer store.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()
	hub := api.NewHub()

	// === Report sinks ===
	sinks := []services.ReportSink{services.ReportLog{Store: store}, hub}

	var reportCache *cache.ReportCache
	if cfg.RedisAddr != "" {
		reportCache, err = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer reportCache.Close()
		sinks = append(sinks, reportCache)
	}

	// === Initialize MQTT Client ===
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MQTT client: %w", err)
	}
	defer mqttClient.Close()

	publisher := mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{
		ReportTopic: cfg.MQTTTopicReport,
	})
	sinks = append(sinks, publisher)

	dispatcher := services.NewReportDispatcher(256, m, sinks...)

	// === Sessions ===
	registry := services.NewRegistry()
	for _, mon := range cfg.Monitors {
		session := services.NewSession(services.SessionConfig{
			Source:           mon.SourceEntity,
			Name:             mon.Name,
			Mode:             mon.Mode,
			Params:           mon.Params,
			AnalysisInterval: mon.AnalysisInterval,
			QueueSize:        cfg.QueueSize,
		}, dispatcher.ReportChan, m, log)
		if err := registry.Add(session); err != nil {
			return err
		}
		log.Info("monitor configured",
			"source", mon.SourceEntity,
			"mode", mon.Mode,
			"setpoint", mon.Params.Setpoint,
			"noise_filter", mon.Params.NoiseFilter,
			"min_amplitude", mon.Params.MinAmplitude,
			"min_duration", mon.Params.MinDuration,
			"time_window", mon.Params.TimeWindow,
			"count_mode", mon.Params.CountMode,
		)
	}

	sensorService := services.NewSensorService(store, registry, services.DefaultSensorServiceConfig())
	analysisService := services.NewAnalysisService(registry, store)

	// === Start workers ===
	var wg sync.WaitGroup
	start := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	start(dispatcher.Start)
	for _, session := range registry.Sessions() {
		start(session.Run)
	}
	start(sensorService.Start)
	start(analysisService.Start)

	// Subscribe last so no message arrives before its session runs
	subscriber := mqtt.NewSubscriber(mqttClient.GetNativeClient(), mqtt.SubscriberConfig{
		PHTopic: cfg.MQTTTopicPH,
	}, sensorService.ChangeChan)
	if err := subscriber.SubscribeAll(); err != nil {
		return fmt.Errorf("failed to subscribe to MQTT topics: %w", err)
	}

	// === HTTP API ===
	server := api.NewServer(cfg.HTTPAddr, registry, hub, m)
	server.AddCheck("history", store.Ping)
	server.AddCheck("mqtt", func(context.Context) error {
		if !mqttClient.IsConnected() {
			return fmt.Errorf("not connected")
		}
		return nil
	})
	if reportCache != nil {
		server.AddCheck("redis", func(ctx context.Context) error {
			return reportCache.Client().Ping(ctx).Err()
		})
	}
	server.Start()

	log.Info("pH monitor is running",
		"ph_topic", cfg.MQTTTopicPH,
		"report_topic", cfg.MQTTTopicReport,
		"http", cfg.HTTPAddr,
	)

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	log.Info("shutdown signal received, stopping services")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn("http server shutdown", "error", err)
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("workers did not stop in time")
	}
	return nil
}
