package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"slideConverter/api/cache"
	"slideConverter/api/config"
	"slideConverter/api/composer"
	"slideConverter/api/database"
	"slideConverter/api/handlers"
	"slideConverter/api/kafka"
	"slideConverter/api/middleware"
	"slideConverter/api/pipeline"
	"slideConverter/api/pool"
	"slideConverter/api/probe"
	"slideConverter/api/rasterize"
	"slideConverter/api/repository"
	"slideConverter/api/service"
	"slideConverter/api/storage"
)

const (
	connectTimeout = 10 * time.Second
	// abortWait is how long aborted pipelines get to record their failure.
	abortWait = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and conversion pipeline",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := storage.ValidateConfig(cfg.Storage); err != nil {
		// Uploads will fail per task with the same message; the API still serves.
		logger.Warn("Object storage is misconfigured", zap.Error(err))
	}

	tracker := service.NewTracker(repository.NewMemoryStore(), logger)

	if cfg.RedisAddr != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		redisCache, err := database.ConnectCache(cctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, status mirror disabled", zap.Error(err))
		} else {
			defer redisCache.Close()
			tracker.WithMirror(cache.NewStatusCache(redisCache, cfg.StatusTTL))
			logger.Info("Status mirror enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	if cfg.DatabaseURL != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		db, err := database.ConnectDB(cctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Warn("Postgres unavailable, task archive disabled", zap.Error(err))
		} else {
			defer db.Close()
			tracker.WithArchive(repository.NewPostgresRepo(db))
			logger.Info("Task archive enabled")
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Warn("Kafka unavailable, task events disabled", zap.Error(err))
		} else {
			defer producer.Close()
			tracker.WithProducer(producer, cfg.KafkaTopic)
			logger.Info("Task events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		}
	}

	dispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}

	orchestrator := pipeline.NewOrchestrator(
		tracker,
		dispatcher,
		storage.NewUploader(cfg.Storage, logger),
		composer.NewClient(cfg.Composer, logger),
		cfg.CleanupDelay,
		logger,
	)

	counter := probe.NewChain(logger).
		Add("pdfcpu", probe.NewPDFCPUCounter()).
		Add("worker", dispatcher)

	if n := service.SweepStale(cfg.WorkDir, cfg.CleanupDelay, logger); n > 0 {
		logger.Info("Removed stale task directories", zap.Int("count", n))
	}

	// Started pipelines outlive the shutdown signal and are only aborted
	// once the grace period runs out.
	runCtx, abortRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer abortRuns()

	workers := pool.NewWorkerPool(cfg.PipelineConcurrency)
	taskService := service.NewTaskService(ctx, tracker, orchestrator, workers, counter, service.Options{
		WorkDir:      cfg.WorkDir,
		ProbeTimeout: cfg.ProbeTimeout,
		CleanupDelay: cfg.CleanupDelay,
		RunContext:   runCtx,
	}, logger)
	taskHandler := handlers.NewTaskHandler(taskService, cfg.MaxUploadSize, logger)

	r := chi.NewRouter()
	r.Use(middleware.TraceID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	taskHandler.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API service starting",
			zap.String("address", srv.Addr),
			zap.String("env", cfg.Env),
			zap.Int("pipeline_concurrency", cfg.PipelineConcurrency),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", zap.Duration("grace", cfg.ShutdownGrace))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown incomplete", zap.Error(err))
		}

		done := make(chan struct{})
		go func() {
			workers.Wait()
			close(done)
		}()
		select {
		case <-done:
			logger.Info("All pipelines finished")
		case <-shutdownCtx.Done():
			logger.Warn("Pipelines still running at shutdown deadline, aborting")
			abortRuns()
			select {
			case <-done:
			case <-time.After(abortWait):
				logger.Warn("Pipelines did not record their failure in time")
			}
		}
		return nil
	})

	return g.Wait()
}

func newDispatcher(cfg *config.Config, logger *zap.Logger) (*rasterize.Dispatcher, error) {
	path, err := rasterize.ResolveWorkerPath(cfg.WorkerPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Rasterization worker located", zap.String("path", path))
	return rasterize.NewDispatcher(rasterize.Options{
		WorkerPath: path,
		Timeout:    cfg.RasterTimeout,
	}, logger), nil
}
