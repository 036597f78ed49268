// Package main is the entrypoint for the face indexing worker. It processes
// exactly one job, named by the JOB_ID environment variable, and exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/divinepic/faceindex/internal/config"
	"github.com/divinepic/faceindex/internal/facedet"
	"github.com/divinepic/faceindex/internal/imagestore"
	"github.com/divinepic/faceindex/internal/paramstore"
	"github.com/divinepic/faceindex/internal/registry"
	"github.com/divinepic/faceindex/internal/search"
	"github.com/divinepic/faceindex/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	jobID := os.Getenv("JOB_ID")
	if jobID == "" {
		return fmt.Errorf("JOB_ID is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("worker starting", "job_id", jobID, "detect_provider", cfg.Detect.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, err := paramstore.NewRedisStore(cfg.Redis.URL, cfg.Redis.StatusTTL)
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	defer params.Close()

	images, err := imagestore.NewMinioStore(cfg.S3)
	if err != nil {
		return fmt.Errorf("create image store: %w", err)
	}

	var allocator registry.Allocator = registry.RandomAllocator{}
	if cfg.Database.URL != "" {
		pool, err := registry.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		allocator = registry.NewPostgresRegistry(pool)
	}

	clients := make([]search.Client, 0, len(cfg.Search.Hosts))
	for _, host := range cfg.Search.Hosts {
		clients = append(clients, search.NewHTTPClient(host, cfg.Search.Username, cfg.Search.Password, cfg.Search.Timeout))
	}
	writer := search.NewWriter(clients)

	detector, err := facedet.NewDetector(cfg.Detect)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}

	processor := worker.NewProcessor(images, params, detector, writer, allocator, cfg.Detect.Concurrency)

	if err := processor.Run(ctx, jobID); err != nil {
		return fmt.Errorf("process job %s: %w", jobID, err)
	}

	slog.Info("worker finished", "job_id", jobID)
	return nil
}
