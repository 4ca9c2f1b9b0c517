package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	ports "cashbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetPrefix names the per-owner summary tabs.
const DefaultSheetPrefix = "Savings"

// maxTitleRunes is the longest tab title Sheets accepts.
const maxTitleRunes = 100

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetPrefix   string
}

var (
	_ ports.SummaryPublisher = (*Client)(nil)
	_ ports.SummaryReader    = (*Client)(nil)
)

type Options struct {
	SpreadsheetID string
	// SheetPrefix is prepended to the owner key to form the tab title.
	SheetPrefix string
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID and service account credentials.
// Optional: GOOGLE_SHEET_NAME (default "Savings").
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetPrefix:   os.Getenv("GOOGLE_SHEET_NAME"),
	})
}

func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	prefix := strings.TrimSpace(opts.SheetPrefix)
	if prefix == "" {
		prefix = DefaultSheetPrefix
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: id, sheetPrefix: prefix}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// PublishSummary replaces the owner's tab with the report. A tab that
// already holds the same cells is left untouched.
func (c *Client) PublishSummary(ctx context.Context, owner core.Identity, report ledger.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := sheetTitle(c.sheetPrefix, owner)
	if err := c.ensureSheet(ctx, title); err != nil {
		return err
	}

	want := ports.Rows(report)
	have, err := c.readRows(ctx, title)
	if err != nil {
		return err
	}
	if sameRows(have, want) {
		slog.DebugContext(ctx, "Summary unchanged", "sheet", title, "rows", len(want)-1)
		return nil
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoted(title)+"!A:Z", &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", title, err)
	}
	vr := &gsheet.ValueRange{Values: toValues(want)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoted(title)+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Summary published", "sheet", title, "kind", report.Kind, "rows", len(report.Rows))
	return nil
}

func (c *Client) ReadSummary(ctx context.Context, owner core.Identity) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	title := sheetTitle(c.sheetPrefix, owner)
	exists, err := c.hasSheet(ctx, title)
	if err != nil || !exists {
		return nil, err
	}
	return c.readRows(ctx, title)
}

func (c *Client) readRows(ctx context.Context, title string) ([][]string, error) {
	rng := quoted(title) + "!A:E"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		out = append(out, toStrings(row))
	}
	return out, nil
}

func (c *Client) hasSheet(ctx context.Context, title string) (bool, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	exists, err := c.hasSheet(ctx, title)
	if err != nil || exists {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created summary sheet", "sheet", title)
	return nil
}

// sheetTitle returns "<prefix> <owner key>" with characters Sheets rejects
// in tab titles replaced.
func sheetTitle(prefix string, owner core.Identity) string {
	r := strings.NewReplacer("[", "(", "]", ")", "*", "_", "?", "_", "/", "_", "\\", "_", ":", "_", "'", "_")
	title := r.Replace(strings.TrimSpace(prefix + " " + strings.ToLower(strings.TrimSpace(owner.Key))))
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	return title
}

func quoted(title string) string {
	return "'" + title + "'"
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}

// sameRows compares cell text, treating missing trailing cells as empty.
func sameRows(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		n := max(len(a[i]), len(b[i]))
		for j := 0; j < n; j++ {
			if safeGet(a[i], j) != safeGet(b[i], j) {
				return false
			}
		}
	}
	return true
}

func safeGet(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
