package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imfiit/arena/internal/app"
	"github.com/imfiit/arena/internal/config"
	"github.com/imfiit/arena/internal/logging"
	"github.com/imfiit/arena/internal/pubsub"
	"github.com/imfiit/arena/internal/server"
	"github.com/imfiit/arena/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracing, err := pubsub.SetupOTel(ctx, pubsub.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		ZipkinURL:   cfg.Tracing.ZipkinURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	files, err := storage.NewDirStore(cfg.History.DataDir)
	if err != nil {
		return err
	}
	core, err := app.NewCore(ctx, cfg, logger, files, pubsub.WithTracer(tracer))
	if err != nil {
		return err
	}

	s, err := server.New(server.Dependencies{
		Config:   cfg,
		Registry: core.Registry,
		Bridge:   core.Bridge,
		Renderer: core.Renderer,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	s.RegisterRoutes()
	if err := s.InitModules(ctx, app.NewModules(app.Dependencies{Logger: logger})); err != nil {
		return err
	}

	serveErr := s.Start(ctx, cfg.Addr)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := core.Close(closeCtx); err != nil {
		logger.Error("Failed to close core services", "error", err)
	}
	if err := shutdownTracing(closeCtx); err != nil {
		logger.Error("Failed to flush traces", "error", err)
	}
	return serveErr
}
