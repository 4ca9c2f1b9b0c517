//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
)

// Integration tests require a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_PublishAndReadSummary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" && os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	owner := core.Identity{Key: "integration@cashbook.test", DisplayName: "Integration"}
	tx, err := core.NewTransaction(core.Draft{Category: core.Inflow, Amount: core.MustMoney("125.50"), Note: "Integration"},
		owner, core.NewStamp(time.Now(), time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	report, err := ledger.Project(ledger.KindSavings, []core.Transaction{tx}, time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	if err := client.PublishSummary(ctx, owner, report); err != nil {
		t.Fatalf("PublishSummary: %v", err)
	}
	rows, err := client.ReadSummary(ctx, owner)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	lines, err := ParseSummary(rows)
	if err != nil {
		t.Fatalf("ParseSummary: %v", err)
	}
	if len(lines) != 1 || !lines[0].Amount.Equal(tx.Amount.Decimal) {
		t.Fatalf("lines = %+v", lines)
	}
}
