package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/amqp"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/config"
	applog "github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/log"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/services"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/storage"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/worker"
)

// The worker listens for ledger change events and recomputes the derived
// views, logging a summary of each. It keeps the derivations warm and gives
// an audit trail of how the books moved.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting caixa-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	receivables := services.NewReceivablesService(repo)
	projection := services.NewProjectionService(repo)
	deriver := worker.NewDerivationWorker(receivables, projection, cfg.ProjectionMonths)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(msg *amqp.LedgerChangedMessage) error {
		return deriver.HandleLedgerChanged(ctx, msg)
	}

	go func() {
		if err := amqpClient.ConsumeLedgerChanged(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	case <-ctx.Done():
	}

	logger.Info("Worker stopped gracefully")
}
