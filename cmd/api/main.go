// Package main is the entry point of the application review API.
//
// The API serves students, agents and admins over REST. Workflow events are
// either handled in-process (notifications go straight to Kafka) or fanned out
// through Redis to cmd/worker when events.redis_fanout is enabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/admissions-hub/admissions-hub/config"
	"github.com/admissions-hub/admissions-hub/internal/application/command"
	"github.com/admissions-hub/admissions-hub/internal/application/eventhandler"
	"github.com/admissions-hub/admissions-hub/internal/application/query"
	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/messaging"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/metrics"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/persistence/memory"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/persistence/postgres"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/persistence/redis"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/storage"
	httpapi "github.com/admissions-hub/admissions-hub/internal/interface/http"
	"github.com/admissions-hub/admissions-hub/internal/interface/http/handlers"
	"github.com/admissions-hub/admissions-hub/pkg/circuitbreaker"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

type eventBus interface {
	shared.EventBus
	Close() error
}

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

	log := setupLogger(cfg)
	log.Info("starting admissions review API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New()
	}
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. APPLICATION REPOSITORY
	// ─────────────────────────────────────────────────────────────────────────
	repo, closeRepo, err := openRepository(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeRepo()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (optional: event fan-out and shared rate limits)
	// ─────────────────────────────────────────────────────────────────────────
	redisClient := connectRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
		health.AddOptionalCheck("redis", handlers.NewPingCheck(redisClient))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS & NOTIFICATIONS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	if m != nil {
		busCfg.Observer = m
	}

	fanout := redisClient != nil && cfg.Features.IsEnabled(config.FeatureEventsRedisFanout, nil)

	var bus eventBus
	if fanout {
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisClient,
			ChannelName:    cfg.Redis.EventsChannel,
			LocalBusConfig: busCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		log.Info("workflow events are fanned out through redis", logger.String("channel", cfg.Redis.EventsChannel))
	} else {
		bus = messaging.NewInMemoryEventBus(busCfg)
	}
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	if !fanout {
		publisher, err := newKafkaPublisher(cfg, log)
		if err != nil {
			return err
		}
		defer publisher.Close()

		notifications := eventhandler.NewOnWorkflowEventHandler(publisher, cfg.Features, log, eventhandler.DefaultWorkflowEventConfig())
		if err := notifications.Register(bus); err != nil {
			return fmt.Errorf("failed to register notification handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. DOCUMENT STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	store, filesDir, err := openFileStore(cfg, log, health)
	if err != nil {
		return err
	}
	policy := storage.UploadPolicy{
		AllowedContentTypes: cfg.Workflow.AllowedContentTypes,
		MaxFileBytes:        cfg.Workflow.MaxFileBytes,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. WORKFLOW & HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	workflow, err := workflowConfig(cfg.Workflow)
	if err != nil {
		return err
	}

	deps := command.Deps{
		Repo:    repo,
		Machine: application.NewStateMachine(workflow),
		Events:  bus,
		Logger:  log,
	}

	var limiter handlers.DistributedLimiter
	if redisClient != nil && cfg.HTTP.RateLimitPerMinute > 0 {
		limiter = redis.NewRateLimiter(redisClient, cfg.HTTP.RateLimitPerMinute, time.Minute)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.MaxRequestBytes = cfg.HTTP.MaxRequestBytes
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.FilesPrefix = cfg.Storage.LocalBaseURL
	serverCfg.FilesDir = filesDir
	serverCfg.Version = cfg.App.Version

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		SubmitApplication:  command.NewSubmitApplicationHandler(deps),
		InitialReview:      command.NewInitialReviewHandler(deps),
		UploadDocuments:    command.NewUploadDocumentsHandler(deps, store, policy, cfg.Features),
		ReviewDocument:     command.NewReviewDocumentHandler(deps),
		FinalDecision:      command.NewFinalDecisionHandler(deps),
		AddInternalNote:    command.NewAddInternalNoteHandler(deps),
		ReassignAgent:      command.NewReassignAgentHandler(deps),
		GetApplication:     query.NewGetApplicationHandler(repo),
		ListApplications:   query.NewListApplicationsHandler(repo),
		Auth:               handlers.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer, log),
		DistributedLimiter: limiter,
		Metrics:            m,
		HealthChecker:      health,
		Logger:             log,
	})

	errCh := server.StartAsync()
	log.Info("admissions review API is running", logger.String("address", serverCfg.Address()))

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}
	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	format := cfg.Observability.LogFormat
	if cfg.IsDevelopment() && format == "" {
		format = "console"
	}

	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    format,
		AddCaller: true,
	}).With(logger.String("service", cfg.App.Name))
}

// openRepository uses PostgreSQL when a database is configured and the
// in-memory repository otherwise.
func openRepository(ctx context.Context, cfg *config.Config, log *logger.Logger, health *handlers.CompositeHealthChecker) (application.Repository, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL is not set, applications are kept in memory")
		return memory.NewApplicationRepository(), func() {}, nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	pgCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.QueryTimeout = cfg.Database.QueryTimeout

	log.Info("connecting to database")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	health.AddCheck("postgres", handlers.NewPingCheck(conn))
	return postgres.NewApplicationRepository(conn), conn.Close, nil
}

// connectRedis returns nil when Redis is disabled or unreachable.
func connectRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	if cfg.Redis.Disabled {
		return nil
	}

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
		log.Warn("redis unavailable, running without fan-out and shared rate limits", logger.Err(err))
		return nil
	}
	log.Info("redis connection established")
	return client
}

// newKafkaPublisher returns a nil publisher, which drops messages, when Kafka is not configured.
func newKafkaPublisher(cfg *config.Config, log *logger.Logger) (*messaging.KafkaPublisher, error) {
	if !cfg.KafkaEnabled() {
		log.Warn("kafka is not configured, notifications are dropped")
		return nil, nil
	}

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
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return publisher, nil
}

// openFileStore returns the store and, for the local driver, the directory to serve.
func openFileStore(cfg *config.Config, log *logger.Logger, health *handlers.CompositeHealthChecker) (application.FileStore, string, error) {
	switch cfg.Storage.Driver {
	case config.StorageCloudinary:
		store, err := storage.NewCloudinaryStore(cfg.Storage.CloudinaryURL, cfg.Storage.CloudinaryFolder)
		if err != nil {
			return nil, "", err
		}
		breaker := circuitbreaker.StorageBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
		return storage.WithBreaker(storage.WithTimeout(store, cfg.Storage.Timeout), breaker), "", nil
	default:
		store, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
		if err != nil {
			return nil, "", err
		}
		health.AddCheck("storage", handlers.NewDirCheck(store.Dir()))
		return storage.WithTimeout(store, cfg.Storage.Timeout), store.Dir(), nil
	}
}

func workflowConfig(cfg config.WorkflowConfig) (application.WorkflowConfig, error) {
	wf := application.WorkflowConfig{RequiredDocuments: make([]application.DocumentKey, 0, len(cfg.RequiredDocuments))}
	for _, raw := range cfg.RequiredDocuments {
		key, err := application.ParseDocumentKey(raw)
		if err != nil {
			return wf, fmt.Errorf("workflow required documents: %w", err)
		}
		wf.RequiredDocuments = append(wf.RequiredDocuments, key)
	}
	if err := wf.Validate(); err != nil {
		return wf, fmt.Errorf("workflow config: %w", err)
	}
	return wf, nil
}
