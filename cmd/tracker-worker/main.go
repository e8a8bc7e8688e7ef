package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"tracker/internal/amqp"
	"tracker/internal/cli"
	"tracker/internal/ledger/google"
	"tracker/internal/log"
	"tracker/internal/services"
	"tracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting tracker-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	sheet, err := google.New(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.WithComponent(log.ComponentSheets).Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if err := sheet.EnsureHeader(ctx); err != nil {
		// Not fatal: appends still work, the sheet just lacks a header row.
		logger.WithComponent(log.ComponentSheets).Warn("Failed to ensure sheet header", log.FieldError, err, "sheet", sheet.SheetName())
	}
	logger.WithComponent(log.ComponentSheets).Info("Google Sheets exporter ready", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", sheet.SheetName())

	syncWorker := worker.NewSyncWorker(repo, cfg.SyncBatchSize, sheet)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
	})

	g, gctx := errgroup.WithContext(ctx)

	// The poller also covers startup: it syncs once before its first tick.
	g.Go(func() error {
		return processor.Run(gctx)
	})

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeBatchCreated(gctx, syncWorker.HandleBatchCreated)
		})
	} else {
		logger.WithComponent(log.ComponentAMQP).Info("AMQP disabled, relying on periodic sync", "interval", cfg.SyncInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
