package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"orcamento/internal/cli"
	"orcamento/internal/config"
	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/sheets"
	gsheet "orcamento/internal/sheets/google"
	"orcamento/internal/sheets/memory"
	"orcamento/internal/storage"
	"orcamento/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	if err == nil {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting orcamento-worker")
	if err := run(ctx, cfg, logger); err != nil {
		logger.Failure(context.Background(), "Worker stopped with error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	// The worker reads the document the web process writes.
	docs, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store %s: %w", cfg.SQLiteDBPath, err)
	}
	defer docs.Close()

	writer, err := newWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	exporter := worker.NewExportWorker(docs, writer, logger)

	// Catch up on changes made while the worker was down.
	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := exporter.ExportMonth(startupCtx, core.MonthKeyOf(time.Now())); err != nil {
		logger.Failure(ctx, "Startup export failed", err, log.FieldOperation, log.OpExport)
	}
	startupCancel()

	err = client.Consume(ctx, exporter.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newWriter returns the Google Sheets writer, or an in-memory writer that
// only logs when no spreadsheet is configured.
func newWriter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.MonthWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, running as dry run")
		return memory.New(cfg.GoogleSheetPrefix, logger), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		Prefix:          cfg.GoogleSheetPrefix,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	return client, nil
}
