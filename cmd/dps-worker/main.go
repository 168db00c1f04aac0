package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saldo/internal/amqp"
	"saldo/internal/config"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentDPS,
	})
	applog.SetDefault(logger)

	logger.Info("Starting dps-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// Initialize AMQP client so executed transfers reach the audit worker
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized - executed transfers will be announced")
		}
	} else {
		logger.Info("AMQP disabled - executed transfers will not be announced")
	}

	dps := services.NewDPSService(sqliteRepo, events)
	processor := services.NewDPSProcessor(sqliteRepo, dps)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("DPS processor configured",
		"interval", cfg.DPSProcessInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.DPSProcessInterval)
	defer ticker.Stop()

	// Run initial processing on startup
	logger.Info("Running initial DPS processing...")
	if count, err := processor.ProcessDueTransfers(ctx, time.Now()); err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete", "transfers_executed", count)
	}

	// Start periodic processing
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Processing due DPS transfers...")
				count, err := processor.ProcessDueTransfers(ctx, now)
				if err != nil {
					logger.Error("Periodic processing failed", "error", err)
					continue
				}
				logger.Info("Periodic processing complete", "transfers_executed", count)
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	cancel()
	logger.Info("dps-worker stopped gracefully")
}
