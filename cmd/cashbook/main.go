package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/cache"
	"cashbook/internal/cli"
	"cashbook/internal/config"
	apphttp "cashbook/internal/http"
	"cashbook/internal/identity"
	applog "cashbook/internal/log"
	"cashbook/internal/services"
	"cashbook/internal/sheets"
	gsheet "cashbook/internal/sheets/google"
	mem "cashbook/internal/sheets/memory"
	"cashbook/internal/store"
	"cashbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx := context.Background()
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid ledger timezone", "error", err, "timezone", cfg.LedgerTimezone)
		os.Exit(1)
	}

	res := cli.OpenBackend(ctx, logger.Logger, cfg)
	records := store.NewRecords(res.Backend)

	registry := identity.NewRegistry(res.Backend, records)
	if cfg.SeedDemoUser {
		created, err := registry.EnsureDemoUser(ctx)
		if err != nil {
			logger.Error("Failed to seed demo user", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("Demo user created", applog.FieldIdentity, identity.DemoEmail)
		}
	}

	sessions := identity.NewSessions(cfg.SessionCapacity, cfg.SessionTTL)
	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(sessions.Cache())
	caches.StartCleanup(ctx, time.Minute)

	// With a broker configured, summaries are the worker's job; otherwise
	// they are refreshed in-process.
	var (
		publisher  services.ChangePublisher
		amqpClient *amqp.Client
		processor  *services.SummaryProcessor
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.Info("Publishing ledger changes to AMQP", "exchange", cfg.AMQPExchange)
	} else {
		summaries := newSummaryPublisher(ctx, cfg, logger)
		reports := worker.NewReportWorker(records, summaries, loc)
		processor = services.NewSummaryProcessor(reports.HandleLedgerChanged, services.SummaryProcessorConfig{
			PollInterval: cfg.SummaryInterval,
			BatchSize:    cfg.SummaryBatchSize,
			MaxRetries:   3,
		})
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start summary processor", "error", err)
			os.Exit(1)
		}
		publisher = processor
	}

	ledgerService := services.NewLedgerService(records,
		services.WithPublisher(publisher),
		services.WithLocation(loc))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   ledgerService,
		Registry: registry,
		Sessions: sessions,
		Ready:    res.Backend.Ping,
		Logger:   logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if processor != nil {
			if err := processor.Stop(ctx); err != nil {
				logger.Error("Summary processor shutdown error", "error", err)
			}
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		caches.Stop()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting cashbook server", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// newSummaryPublisher returns the Google Sheets client when a spreadsheet
// is configured and an in-memory publisher otherwise.
func newSummaryPublisher(ctx context.Context, cfg *config.Config, logger *applog.Logger) sheets.SummaryPublisher {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - summaries kept in memory")
		return mem.New()
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetPrefix:   cfg.GoogleSheetName,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}
