package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"turntable/internal/platform/config"
	"turntable/internal/platform/httpserver"
	"turntable/internal/platform/logging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	runtime *pipelineRuntime
	// embedded is set when the API also works the in-process queue.
	embedded *workerPool
	logger   *slog.Logger
}

type WorkerApp struct {
	runtime *pipelineRuntime
	pool    workerPool
	logger  *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName, "process", "api")
	runtime, err := buildPipeline(cfg, "api", logger)
	if err != nil {
		return nil, err
	}

	assetDir := ""
	if cfg.Assets.RehostEditedImages {
		assetDir = cfg.Assets.Dir
	}
	app := &APIApp{
		server:  httpserver.New(runtime.module, logger, normalizeAddr(cfg.HTTPPort), assetDir),
		runtime: runtime,
		logger:  logger,
	}
	if cfg.QueueDriver == config.DriverMemory {
		app.embedded = &workerPool{
			dispatcher:   runtime.module.Dispatcher,
			expirer:      runtime.module.StateExpirer,
			concurrency:  cfg.Worker.Concurrency,
			pollInterval: cfg.Worker.PollInterval,
			logger:       logger,
		}
	}
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.QueueDriver == config.DriverMemory {
		return nil, errors.New("QUEUE_DRIVER=memory runs workers inside the api process; a standalone worker needs the postgres queue")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName, "process", "worker")
	runtime, err := buildPipeline(cfg, cfg.ServiceName+"-worker", logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		runtime: runtime,
		pool: workerPool{
			dispatcher:   runtime.module.Dispatcher,
			expirer:      runtime.module.StateExpirer,
			concurrency:  cfg.Worker.Concurrency,
			pollInterval: cfg.Worker.PollInterval,
			logger:       logger,
		},
		logger: logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"embedded_workers", a.embedded != nil,
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.embedded != nil {
		group.Go(func() error {
			return a.embedded.Run(ctx)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.runtime != nil {
		return a.runtime.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return w.pool.Run(ctx)
}

func (w *WorkerApp) Close() error {
	if w.runtime != nil {
		return w.runtime.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
