package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tipid/internal/backend"
	"tipid/internal/cli"
	"tipid/internal/log"
	"tipid/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)

	app, err := cli.NewApp(res, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize services", log.FieldError, err)
		os.Exit(1)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger).CreateExporter(context.Background(), bcfg)
	if err != nil {
		// Export is optional; budgets are still settled without it.
		logger.Error("Spreadsheet export unavailable", log.FieldError, err)
	}

	sweeper := worker.NewSweeper(app.Budgets, app.Sessions, worker.SweeperConfig{
		SweepInterval: cfg.SweepInterval,
		PruneInterval: time.Hour,
	}, logger)
	events := worker.NewEventWorker(res.Store, app.Budgets, exporter, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Starting tipid-worker",
		"backend", cfg.DataBackend,
		"events", res.AMQP != nil,
		"export", exporter != nil,
		"sweep_interval", cfg.SweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	if res.AMQP != nil {
		g.Go(func() error {
			return res.AMQP.Consume(gctx, events)
		})
	} else {
		logger.Info("No AMQP broker configured, relying on periodic sweeps")
	}

	runErr := g.Wait()
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, runErr)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
