package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/archive"
	"github.com/quarry-io/quarry/internal/config"
	"github.com/quarry-io/quarry/internal/dvc"
	"github.com/quarry-io/quarry/internal/gitrepo"
	"github.com/quarry-io/quarry/internal/health"
	"github.com/quarry-io/quarry/internal/hosting"
	"github.com/quarry-io/quarry/internal/metrics"
	"github.com/quarry-io/quarry/internal/resilience"
	"github.com/quarry-io/quarry/internal/server"
	"github.com/quarry-io/quarry/internal/service"
	"github.com/quarry-io/quarry/internal/store"
	"github.com/quarry-io/quarry/internal/workerpool"
)

func main() {
	// Load configuration; an empty path searches the default locations
	configPath := os.Getenv("CONFIG_PATH")

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting quarry dataset service",
		zap.Int("port", cfg.Server.Port),
		zap.String("hosting_base_url", cfg.Hosting.BaseURL))

	// Metrics double as the resilience observer
	m := metrics.NewMetrics()

	// Dataset registry: PostgreSQL when configured, in-memory otherwise
	var registry store.DatasetStore
	if cfg.Database.Host != "" {
		registry, err = store.NewPostgresDatasetStore(
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Database,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.MaxConns,
			cfg.Database.MinConns,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to initialize dataset registry", zap.Error(err))
		}
		logger.Info("dataset registry initialized", zap.String("backend", "postgres"))
	} else {
		registry = store.NewInMemoryDatasetStore()
		logger.Warn("no database configured, dataset registry is in-memory")
	}
	defer registry.Close()

	// Idempotency store: Redis when configured, in-memory otherwise
	var idempotency store.IdempotencyStore
	if cfg.Redis.Host != "" {
		idempotency, err = store.NewRedisIdempotencyStore(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to initialize idempotency store", zap.Error(err))
		}
		logger.Info("idempotency store initialized", zap.String("backend", "redis"))
	} else {
		idempotency = store.NewInMemoryIdempotencyStore()
		logger.Warn("no redis configured, idempotency store is in-memory")
	}
	defer idempotency.Close()

	cache := store.NewInMemoryCache(cfg.Cache.MaxSize, logger)

	// Retryers for the two external surfaces
	httpPolicy := resilience.HTTPPolicy()
	httpPolicy.MaxAttempts = cfg.Resilience.HTTPMaxAttempts
	httpPolicy.BaseDelay = cfg.Resilience.HTTPBaseDelay
	httpPolicy.MaxDelay = cfg.Resilience.MaxDelay
	httpRetryer := resilience.NewRetryer(httpPolicy, logger, m)
	downloadRetryer := resilience.NewRetryer(httpPolicy, logger, m)

	gitPolicy := resilience.GitPolicy()
	gitPolicy.MaxAttempts = cfg.Resilience.GitMaxAttempts
	gitPolicy.BaseDelay = cfg.Resilience.GitBaseDelay
	gitPolicy.MaxDelay = cfg.Resilience.MaxDelay
	gitRetryer := resilience.NewRetryer(gitPolicy, logger, m)

	// Hosting client behind a circuit breaker
	hostingClient := hosting.NewClient(hosting.Config{
		BaseURL:      cfg.Hosting.BaseURL,
		User:         cfg.Hosting.User,
		Token:        cfg.Hosting.Token,
		OrgEmail:     cfg.Hosting.OrgEmail,
		OrgLocation:  cfg.Hosting.OrgLocation,
		Timeout:      cfg.Hosting.Timeout,
		MaxIdleConns: cfg.Hosting.MaxIdleConns,
	}, httpRetryer, logger)
	defer hostingClient.Close()

	breaker := resilience.NewCircuitBreaker("hosting", resilience.BreakerConfig{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		RecoveryTimeout:  cfg.Resilience.RecoveryTimeout,
	}, logger, m)
	guardedHosting := hosting.NewGuardedClient(hostingClient, breaker)

	gitRunner := gitrepo.NewRunner(cfg.Git.AuthorName, cfg.Git.AuthorEmail, logger)
	gitRunner.SetRetryer(gitRetryer)
	dvcRunner := dvc.NewRunner(dvc.S3Config{
		EndpointURL:     cfg.Storage.EndpointURL,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	}, logger)
	dvcRunner.SetRetryer(gitRetryer)

	pool := workerpool.New(workerpool.Config{
		Name:       "downloads",
		MaxWorkers: cfg.Downloads.MaxWorkers,
		QueueSize:  cfg.Downloads.QueueSize,
		Logger:     logger,
	})
	defer pool.Stop()

	downloader := service.NewHTTPDownloader(cfg.Downloads.Timeout, downloadRetryer, m, logger)
	ingester := archive.NewIngester(logger)

	datasets := service.NewDatasetService(
		service.Config{
			RemoteURLBase:  cfg.Storage.RemoteURL,
			IdempotencyTTL: cfg.Redis.KeyTTL,
			CacheTTL:       cfg.Cache.TTL,
		},
		service.Deps{
			Registry:    registry,
			Idempotency: idempotency,
			Cache:       cache,
			Hosting:     guardedHosting,
			Git:         service.NewGitRunner(gitRunner),
			Data:        service.NewDataRunner(dvcRunner),
			Ingester:    ingester,
			Downloader:  downloader,
			Pool:        pool,
			Metrics:     m,
			Logger:      logger,
		},
	)

	checks := map[string]health.Check{
		"registry":    registry.Ping,
		"idempotency": idempotency.Ping,
	}

	srv := server.NewServer(cfg, datasets, checks, logger)
	srv.SetupRoutes()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("quarry dataset service stopped")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = level
	}
	if cfg.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Output}
	}
	return zapCfg.Build()
}
