package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/moodbridge/internal/adapter/httpserver"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/adapter/mqtt"
	"github.com/pscheid92/moodbridge/internal/adapter/redis"
	"github.com/pscheid92/moodbridge/internal/bridge"
	"github.com/pscheid92/moodbridge/internal/broadcast"
	"github.com/pscheid92/moodbridge/internal/debounce"
	"github.com/pscheid92/moodbridge/internal/domain"
	"github.com/pscheid92/moodbridge/internal/message"
	"github.com/pscheid92/moodbridge/internal/platform/config"
	"github.com/pscheid92/moodbridge/internal/platform/logging"
	"github.com/pscheid92/moodbridge/internal/platform/version"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupSource(cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) domain.EventSource {
	sourceMetrics := metrics.NewSourceMetrics(reg, cfg.EventSource)

	if cfg.EventSource == config.SourceRedis {
		client, err := redis.NewClient(cfg.RedisURL, metrics.NewRedisMetrics(reg))
		if err != nil {
			slog.Error("Failed to create Redis client", "error", err)
			os.Exit(1)
		}
		return redis.NewSource(client, cfg.Topic, cfg.SourceConnectAttempts, sourceMetrics)
	}

	return mqtt.NewSource(mqtt.Config{
		BrokerURL:       cfg.MQTTBrokerURL(),
		ClientID:        cfg.MQTTClientID,
		Topic:           cfg.Topic,
		QoS:             byte(cfg.MQTTQoS),
		ConnectAttempts: cfg.SourceConnectAttempts,
		Clock:           clock,
	}, sourceMetrics)
}

// runGracefulShutdown stops accepting receivers, closes the event source and
// only then stops the broadcaster.
func runGracefulShutdown(cancel context.CancelFunc, srv *httpserver.Server, source domain.EventSource, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if err := source.Close(); err != nil {
			slog.Error("Event source close error", "error", err)
		}
		cancel()
		broadcaster.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	mqtt.RouteLogs()
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "source", cfg.EventSource, "topic", cfg.Topic)

	reg := metrics.NewRegistry()
	receiverMetrics := metrics.NewReceiverMetrics(reg)

	broadcaster := broadcast.NewBroadcaster(clock, receiverMetrics, broadcast.Config{
		MaxReceivers: cfg.MaxReceivers,
		QueueSize:    cfg.ReceiverQueueSize,
	})
	filter := debounce.NewFilter(clock, debounce.Config{
		Streak:   cfg.DebounceStreak,
		Cooldown: cfg.DebounceCooldown,
	})
	moodBridge := bridge.New(message.NewDecoder(cfg.Playlists()), filter, broadcaster, clock, metrics.NewBridgeMetrics(reg), bridge.DefaultInboxSize)

	source := setupSource(cfg, reg, clock)

	srv := httpserver.NewServer(cfg, broadcaster, moodBridge, reg, receiverMetrics, []httpserver.HealthCheck{
		{Name: "event_source", Check: source.Check},
	}, clock)
	if err := srv.Listen(); err != nil {
		slog.Error("Failed to bind receiver endpoint", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		if err := moodBridge.Run(ctx); err != nil {
			slog.Error("Bridge worker stopped", "error", err)
		}
	}()

	if err := source.Start(ctx, moodBridge.Handler()); err != nil {
		slog.Error("Failed to start event source", "source", cfg.EventSource, "error", err)
		os.Exit(1)
	}
	slog.Info("Event source started", "source", cfg.EventSource, "topic", cfg.Topic)

	done := runGracefulShutdown(cancel, srv, source, broadcaster)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	<-bridgeDone
	slog.Info("Shutdown complete")
}
