package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/amqp"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/config"
	apphttp "github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/http"
	applog "github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/log"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/services"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

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

	// The broker is optional: without it writes still succeed, external
	// caches just fall back to TTL expiry.
	var publisher services.InvalidationPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without invalidation events", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	receivables := services.NewReceivablesService(repo)
	projection := services.NewProjectionService(repo)
	ledger := services.NewLedgerService(repo, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Receivables: receivables,
		Projection:  projection,
		Ledger:      ledger,
		Entries:     repo,
		Ready:       repo,
	}, apphttp.Options{
		CacheSize:        cfg.CacheSize,
		CacheTTL:         cfg.CacheTTL,
		ProjectionMonths: cfg.ProjectionMonths,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting caixa server", "port", cfg.Port, "db_path", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
