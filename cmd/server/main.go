// Package main is the entrypoint for the face indexing API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/divinepic/faceindex/internal/api"
	"github.com/divinepic/faceindex/internal/api/handler"
	mw "github.com/divinepic/faceindex/internal/api/middleware"
	"github.com/divinepic/faceindex/internal/config"
	"github.com/divinepic/faceindex/internal/dispatch"
	"github.com/divinepic/faceindex/internal/facedet"
	"github.com/divinepic/faceindex/internal/imagestore"
	"github.com/divinepic/faceindex/internal/jobs"
	"github.com/divinepic/faceindex/internal/paramstore"
	"github.com/divinepic/faceindex/internal/registry"
	"github.com/divinepic/faceindex/internal/search"
	"github.com/divinepic/faceindex/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"detect_provider", cfg.Detect.Provider,
		"worker_mode", cfg.Worker.Mode,
		"search_hosts", len(cfg.Search.Hosts),
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect parameter store (Redis)
	params, err := paramstore.NewRedisStore(cfg.Redis.URL, cfg.Redis.StatusTTL)
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	defer params.Close()

	if err := params.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 3. Connect object store
	images, err := imagestore.NewMinioStore(cfg.S3)
	if err != nil {
		return fmt.Errorf("create image store: %w", err)
	}
	if err := images.Ping(ctx); err != nil {
		return fmt.Errorf("ping image store: %w", err)
	}
	slog.Info("object store connected", "bucket", cfg.S3.Bucket)

	// 4. Optional durable face-id registry
	var allocator registry.Allocator = registry.RandomAllocator{}
	var registryPinger handler.Pinger
	if cfg.Database.URL != "" {
		pool, err := registry.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := registry.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		pgReg := registry.NewPostgresRegistry(pool)
		allocator = pgReg
		registryPinger = pgReg
		slog.Info("face-id registry enabled")
	}

	// 5. Search index replicas
	clients := make([]search.Client, 0, len(cfg.Search.Hosts))
	for _, host := range cfg.Search.Hosts {
		clients = append(clients, search.NewHTTPClient(host, cfg.Search.Username, cfg.Search.Password, cfg.Search.Timeout))
	}
	writer := search.NewWriter(clients)
	writer.EnsureIndexes(ctx)

	// 6. Face detector
	detector, err := facedet.NewDetector(cfg.Detect)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	slog.Info("detector initialized", "detector", detector.Name())

	// 7. Job services
	processor := worker.NewProcessor(images, params, detector, writer, allocator, cfg.Detect.Concurrency)

	var launcher dispatch.Launcher
	switch cfg.Worker.Mode {
	case "inline":
		launcher = dispatch.NewInlineLauncher(processor.Run)
	default:
		launcher = dispatch.NewExecLauncher(cfg.Worker.Bin)
	}

	admitter := jobs.NewAdmitter(images, params, launcher)
	tracker := jobs.NewTracker(images, params)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.Auth.APIKeyHash),
		RateLimit: mw.NewRateLimit(params, cfg.Auth.RequestsPerMin),

		HealthHandler: handler.NewHealthHandler(handler.HealthChecks{
			ParamStore: params,
			ImageStore: images,
			Search:     writer,
			Registry:   registryPinger,
		}),
		SubmitHandler:  handler.NewSubmitHandler(admitter),
		StatusHandler:  handler.NewStatusHandler(tracker),
		ListHandler:    handler.NewListJobsHandler(tracker),
		ProcessHandler: handler.NewProcessHandler(processor),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
