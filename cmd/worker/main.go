// Package main is the notification relay worker.
//
// API instances running with events.redis_fanout publish workflow events to a
// Redis channel instead of handling them in-process. The worker subscribes to
// that channel, builds notifications and writes them to Kafka, where the mail
// service picks them up.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/admissions-hub/admissions-hub/config"
	"github.com/admissions-hub/admissions-hub/internal/application/eventhandler"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/messaging"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/metrics"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/persistence/redis"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    cfg.Observability.LogFormat,
		AddCaller: true,
	}).With(logger.String("service", cfg.App.Name+"-worker"))

	log.Info("starting notification relay", logger.String("env", string(cfg.App.Environment)))

	if cfg.Redis.Disabled {
		return errors.New("the relay needs redis: REDIS_DISABLED must be false")
	}
	if !cfg.KafkaEnabled() {
		return errors.New("the relay needs kafka: set KAFKA_BROKERS")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS SUBSCRIPTION
	// ─────────────────────────────────────────────────────────────────────────
	client, err := redis.NewClient(redis.Config{
		URL:          cfg.Redis.URL,
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer client.Close()

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	if cfg.Observability.MetricsEnabled {
		busCfg.Observer = metrics.New()
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         client,
		ChannelName:    cfg.Redis.EventsChannel,
		LocalBusConfig: busCfg,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.Redis.EventsChannel, err)
	}
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. KAFKA NOTIFICATIONS
	// ─────────────────────────────────────────────────────────────────────────
	publisher, err := messaging.NewKafkaPublisher(messaging.KafkaPublisherConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		Username:     cfg.Kafka.Username,
		Password:     cfg.Kafka.Password,
		UseTLS:       cfg.Kafka.UseTLS,
		WriteTimeout: cfg.Kafka.WriteTimeout,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	defer publisher.Close()

	handler := eventhandler.NewOnWorkflowEventHandler(publisher, cfg.Features, log, eventhandler.DefaultWorkflowEventConfig())
	if err := handler.Register(bus); err != nil {
		return fmt.Errorf("failed to register notification handler: %w", err)
	}

	log.Info("notification relay is running",
		logger.String("channel", cfg.Redis.EventsChannel),
		logger.String("topic", cfg.Kafka.Topic),
	)

	<-ctx.Done()
	log.Info("received shutdown signal")
	return nil
}
