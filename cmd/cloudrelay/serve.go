package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cloudrelay/internal/adapters/driving/http"
	"github.com/custodia-labs/cloudrelay/internal/config"
	"github.com/custodia-labs/cloudrelay/internal/worker"
)

func newServeCmd(g *globals) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, the worker, or both",
		Long: `Run the service. Modes:
  api     HTTP API only
  worker  task processing and the scheduler
  all     both in one process (default)

The mode defaults to RUN_MODE, then run_mode in the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := g.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if mode == "" {
				mode = a.cfg.RunMode
			}
			a.logger.Info("cloudrelay starting", "version", version, "mode", mode)

			switch mode {
			case config.ModeAPI:
				return runAPI(ctx, a)
			case config.ModeWorker:
				return runWorker(ctx, a)
			case config.ModeAll:
				errCh := make(chan error, 1)
				go func() { errCh <- runWorker(ctx, a) }()
				apiErr := runAPI(ctx, a)
				stop()
				return errors.Join(apiErr, <-errCh)
			default:
				return fmt.Errorf("unknown mode %q (use: api, worker, or all)", mode)
			}
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "run mode: api, worker or all")
	return cmd
}

// runAPI serves HTTP until ctx is cancelled.
func runAPI(ctx context.Context, a *app) error {
	server := http.NewServer(http.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		Version:        version,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		MaxUploadSize:  a.cfg.Server.MaxUploadSize,
		TestRateLimit:  a.cfg.Server.TestRateLimit,
	}, http.Services{
		Auth:          a.auth,
		Users:         a.users,
		Storage:       a.storage,
		Configuration: a.configuration,
		Connections:   a.connections,
		Health:        a.health,
		Relay:         a.relay,
	}, a.logger)

	a.logger.Info("api server starting", "port", a.cfg.Server.Port)
	return server.Start(ctx)
}

// runWorker processes tasks and runs the scheduler until ctx is cancelled.
func runWorker(ctx context.Context, a *app) error {
	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.queue,
		Relay:          a.relay,
		Health:         a.health,
		Scheduler:      a.newScheduler(),
		Logger:         a.logger,
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeout,
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	a.logger.Info("worker started", "concurrency", a.cfg.Worker.Concurrency)

	<-ctx.Done()

	a.logger.Info("stopping worker")
	w.Stop()
	a.logger.Info("worker stopped")
	return nil
}
