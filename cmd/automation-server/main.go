// cmd/automation-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"filing-automation/internal/api"
	"filing-automation/internal/automation"
	"filing-automation/internal/automation/strategies"
	"filing-automation/internal/common/config"
	"filing-automation/internal/common/database"
	"filing-automation/internal/common/logger"
	"filing-automation/internal/common/observability"
	"filing-automation/internal/notify"
	"filing-automation/internal/render"
	"filing-automation/internal/search"
	"filing-automation/internal/store"
	"filing-automation/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting automation server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs, err := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		Registerer:     prometheus.DefaultRegisterer,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()
	checks := map[string]api.Check{}

	// --- Stores ---
	var pg *database.PostgresClient
	if cfg.Storage.RecordStore == config.BackendPostgres || cfg.Storage.JobStore == config.BackendPostgres {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("postgres migration failed", zap.Error(err))
		}
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	var rdb *database.RedisClient
	if cfg.Storage.JobStore == config.BackendRedis {
		rdb = database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully")
	}

	var records store.RecordStore = store.NewMemoryRecordStore()
	if cfg.Storage.RecordStore == config.BackendPostgres {
		records = store.NewPostgresRecordStore(pg.DB)
	}

	var jobs store.JobStore
	switch cfg.Storage.JobStore {
	case config.BackendPostgres:
		jobs = store.NewPostgresJobStore(pg.DB)
	case config.BackendRedis:
		jobs = store.NewRedisJobStore(rdb.Client, config.GetDuration(cfg.Storage.JobTTL))
	default:
		jobs = store.NewMemoryJobStore()
	}

	// --- Strategies ---
	renderer, err := render.New(cfg.Rendering)
	if err != nil {
		zapLog.Fatal("renderer init failed", zap.Error(err))
	}
	strategyRegistry, err := strategies.NewDefaultRegistry(renderer)
	if err != nil {
		zapLog.Fatal("strategy registry init failed", zap.Error(err))
	}
	if catalog, err := registry.LoadCatalog(cfg.Automation.CatalogPath); err != nil {
		zapLog.Warn("service catalog not loaded; types resolve on demand",
			zap.String("path", cfg.Automation.CatalogPath), zap.Error(err))
	} else {
		var unresolved []string
		strategyRegistry, unresolved = strategyRegistry.Precompiled(catalog.TypeKeys())
		if len(unresolved) > 0 {
			zapLog.Warn("catalog types without a strategy", zap.Strings("types", unresolved))
		}
		zapLog.Info("Service catalog loaded", zap.Int("services", len(catalog.Services)))
	}

	// --- Side effects ---
	notifier, err := notify.New(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}

	deps := automation.Dependencies{
		Records:       records,
		Jobs:          jobs,
		Registry:      strategyRegistry,
		Notifier:      notifier,
		Observability: obs,
	}

	var indexer *search.Indexer
	if cfg.Search.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Search.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewIndexer(es.Client, cfg.Search.Index, log)
		if err := indexer.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("elasticsearch index setup failed", zap.Error(err))
		}
		deps.Indexer = indexer
		checks["elasticsearch"] = es.Ping
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Search.Index))
	}

	orchestrator, err := automation.NewOrchestrator(automation.Config{
		BaseDir:              cfg.Automation.BaseDir,
		PackageExt:           cfg.Automation.PackageExt,
		Workers:              cfg.Automation.Workers,
		QueueSize:            cfg.Automation.QueueSize,
		RunTimeout:           config.GetDuration(cfg.Automation.RunTimeout),
		StageRetries:         cfg.Automation.StageRetries,
		RetryBaseDelay:       config.GetDuration(cfg.Automation.RetryBaseDelay),
		SerializeSubmissions: cfg.Automation.SerializeSubmissions,
		TerminalWriteTimeout: config.GetDuration(cfg.Automation.TerminalWriteTimeout),
	}, deps, log)
	if err != nil {
		zapLog.Fatal("orchestrator init failed", zap.Error(err))
	}

	// --- HTTP ---
	var failures api.FailureReporter
	if indexer != nil {
		failures = indexer
	}
	router := api.NewRouter(api.RouterConfig{
		Mode:    cfg.HTTP.Mode,
		Handler: api.NewHandler(orchestrator, automation.NewQuery(jobs, records), failures),
		Checks:  checks,
		Logger:  log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining jobs...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error draining automation runs", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Automation server stopped gracefully")
}
