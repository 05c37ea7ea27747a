package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/receipt"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)
	result := cli.InitBackend(context.Background(), logger, cfg)

	ledger := services.NewLedgerService(result.Store, result.Events)

	opts := apphttp.Options{
		Ledger:          ledger,
		Store:           result.Store,
		MaxReceiptBytes: cfg.ReceiptMaxBytes,
	}
	if cfg.GeminiAPIKey != "" {
		gen, err := receipt.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.ErrorContext(context.Background(), "Failed to initialize receipt scanner", "error", err)
			os.Exit(1)
		}
		opts.Receipts = receipt.NewExtractor(gen, cfg.ReceiptMaxBytes)
		logger.InfoContext(context.Background(), "Receipt scanning enabled", "model", cfg.GeminiModel)
	} else {
		logger.InfoContext(context.Background(), "Receipt scanning disabled - no GEMINI_API_KEY provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, logger, opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.ErrorContext(shutdownCtx, "Backend cleanup error", "error", err)
		}
	})

	logger.InfoContext(ctx, "Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", result.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.InfoContext(context.Background(), "Server stopped gracefully")
}
