package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"cashbook/internal/amqp"
	"cashbook/internal/cli"
	applog "cashbook/internal/log"
	"cashbook/internal/sheets"
	gsheet "cashbook/internal/sheets/google"
	mem "cashbook/internal/sheets/memory"
	"cashbook/internal/store"
	"cashbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentWorker)

	logger.Info("Starting cashbook-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid ledger timezone", "error", err, "timezone", cfg.LedgerTimezone)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := cli.OpenBackend(ctx, logger.Logger, cfg)
	defer func() {
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	}()
	records := store.NewRecords(res.Backend)

	// Initialize the summary target (Google Sheets when configured)
	var publisher sheets.SummaryPublisher
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetPrefix:   cfg.GoogleSheetName,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		publisher = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reports := worker.NewReportWorker(records, publisher, loc)

	// Catch up on partitions changed while no worker was running
	logger.Info("Performing startup sync...")
	if err := reports.StartupSync(ctx, res.Backend); err != nil {
		logger.Error("Startup sync failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeLedgerChanges(gctx, reports.HandleLedgerChanged)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker...")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
