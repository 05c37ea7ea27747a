package main

import (
	"context"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker).With(log.FieldOperation, log.OpRecur)
	logger.InfoContext(context.Background(), "Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	result := cli.InitBackend(context.Background(), logger, cfg)

	ledger := services.NewLedgerService(result.Store, result.Events)
	processor := services.NewRecurringProcessor(ledger, cfg.RecurringBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := result.Cleanup(); err != nil {
			logger.ErrorContext(context.Background(), "Backend cleanup error", "error", err)
		}
	})

	interval := cfg.RecurringInterval
	logger.InfoContext(ctx, "Recurring transaction processor configured",
		"interval", interval,
		"batch_size", cfg.RecurringBatchSize,
		"backend", cfg.DataBackend)

	run := func(now time.Time) {
		count, err := processor.ProcessDue(ctx, now)
		if err != nil {
			logger.ErrorContext(ctx, "Recurring processing failed", "error", err, "transactions_created", count)
			return
		}
		logger.InfoContext(ctx, "Recurring processing complete",
			"transactions_created", count,
			"next_check", now.Add(interval).Format("15:04:05"))
	}

	// Run once on startup so a restart does not wait a full interval.
	run(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.InfoContext(context.Background(), "Recurring-worker stopped")
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
