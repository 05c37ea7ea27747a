package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker).With(log.FieldOperation, log.OpReconcile)
	logger.InfoContext(context.Background(), "Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.ErrorContext(context.Background(), "AMQP_URL is required for ledger-worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.WarnContext(context.Background(), "ledger-worker running against the memory backend sees only its own process state")
	}

	result := cli.InitBackend(context.Background(), logger, cfg)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.ErrorContext(context.Background(), "Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	// The worker only reads balances, so it publishes nothing.
	ledger := services.NewLedgerService(result.Store, nil)
	reconciler := worker.NewReconcileWorker(ledger, worker.DefaultWatchSize, worker.DefaultWatchTTL)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := errors.Join(consumer.Close(), result.Cleanup()); err != nil {
			logger.ErrorContext(context.Background(), "Cleanup error", "error", err)
		}
	})

	logger.InfoContext(ctx, "Ledger worker configured",
		"queue", cfg.AMQPQueue,
		"sweep_interval", cfg.ReconcileInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeLedgerEvents(gctx, reconciler.HandleLedgerEvent)
	})
	g.Go(func() error {
		return reconciler.RunSweeps(gctx, cfg.ReconcileInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(context.Background(), "Ledger worker failed", "error", err)
		_ = errors.Join(consumer.Close(), result.Cleanup())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.InfoContext(context.Background(), "Ledger-worker stopped")
}
