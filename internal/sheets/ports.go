package sheets

import (
	"context"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
)

// Ports for outbound adapters.
type (
	// SummaryPublisher replaces the published report of one owner.
	SummaryPublisher interface {
		PublishSummary(ctx context.Context, owner core.Identity, report ledger.Report) error
	}

	// SummaryReader returns the published cells of one owner, header row
	// first. An owner never published to yields no rows.
	SummaryReader interface {
		ReadSummary(ctx context.Context, owner core.Identity) ([][]string, error)
	}
)

// Rows renders a report as the cell matrix every publisher writes.
func Rows(report ledger.Report) [][]string {
	out := make([][]string, 0, len(report.Rows)+1)
	out = append(out, report.Columns())
	for _, row := range report.Rows {
		out = append(out, report.Cells(row))
	}
	return out
}
