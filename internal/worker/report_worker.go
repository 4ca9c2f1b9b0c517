package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/sheets"
	"cashbook/internal/store"
)

// ReportWorker republishes the daily savings summary of a partition each
// time it changes.
type ReportWorker struct {
	records   store.RecordStore
	publisher sheets.SummaryPublisher
	loc       *time.Location
}

func NewReportWorker(records store.RecordStore, publisher sheets.SummaryPublisher, loc *time.Location) *ReportWorker {
	if loc == nil {
		loc = time.Local
	}
	return &ReportWorker{records: records, publisher: publisher, loc: loc}
}

// HandleLedgerChanged processes a single ledger change message from AMQP.
func (w *ReportWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"partition", msg.Partition,
		"operation", msg.Operation,
		"transaction_id", msg.TransactionID)

	key, err := store.ParsePartitionKey(msg.Partition)
	if err != nil {
		return fmt.Errorf("parse partition: %w", err)
	}
	if key.Namespace != store.NamespaceTransactions {
		slog.WarnContext(ctx, "Ignoring change outside the transaction namespace", "partition", msg.Partition)
		return nil
	}
	owner := core.Identity{Key: key.Identity}
	if msg.Identity != "" {
		owner.Key = msg.Identity
	}
	return w.publish(ctx, key, owner)
}

// StartupSync republishes every transaction partition. It recovers from
// messages lost while the worker was down.
func (w *ReportWorker) StartupSync(ctx context.Context, lister store.PartitionLister) error {
	keys, err := lister.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("list partitions for startup sync: %w", err)
	}

	successCount := 0
	errorCount := 0
	for _, key := range keys {
		if key.Namespace != store.NamespaceTransactions {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.publish(ctx, key, core.Identity{Key: key.Identity}); err != nil {
			slog.ErrorContext(ctx, "Failed to publish summary during startup",
				"partition", key.String(), "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"synced", successCount,
		"errors", errorCount)
	return nil
}

func (w *ReportWorker) publish(ctx context.Context, key store.PartitionKey, owner core.Identity) error {
	records, err := w.records.ReadAll(ctx, key)
	if err != nil {
		return fmt.Errorf("read partition: %w", err)
	}
	report, err := ledger.Project(ledger.KindSavings, records, w.loc)
	if err != nil {
		return err
	}
	if err := w.publisher.PublishSummary(ctx, owner, report); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	slog.InfoContext(ctx, "Summary published",
		"partition", key.String(),
		"days", len(report.Rows))
	return nil
}
