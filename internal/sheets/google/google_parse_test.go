package google

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"₱1,234.56", "1234.56", true},
		{"-₱50.00", "-50", true},
		{"12.5", "12.5", true},
		{"", "0", false},
		{"abc", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseCurrency(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("parseCurrency(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSummary(t *testing.T) {
	rows := [][]string{
		{"Date", "Category", "Amount", "Timestamp", "Edited By"},
		{"01/02/24", "Daily Savings", "-₱50.00", "01/02/24 09:00:00", "Bob"},
		{"", "", "", "", ""},
		{"01/01/24", "Daily Savings", "₱1,400.00", "01/01/24 18:00:00", "-"},
	}
	lines, err := ParseSummary(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0].Date.Month != time.January || lines[0].Date.Day != 2 || lines[0].Date.Year != 2024 {
		t.Errorf("date = %v", lines[0].Date)
	}
	if !lines[0].Amount.Equal(decimal.NewFromInt(-50)) || lines[0].EditedBy != "Bob" {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if !lines[1].Amount.Equal(decimal.NewFromInt(1400)) {
		t.Errorf("line 1 amount = %s", lines[1].Amount)
	}
}

func TestParseSummaryErrors(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{"bad header", [][]string{{"When", "What"}}},
		{"bad date", [][]string{{"Date", "Category", "Amount"}, {"2024-01-01", "x", "₱1.00"}}},
		{"bad amount", [][]string{{"Date", "Category", "Amount"}, {"01/01/24", "x", "lots"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSummary(tt.rows); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseSummaryEmpty(t *testing.T) {
	lines, err := ParseSummary(nil)
	if err != nil || lines != nil {
		t.Fatalf("got %v, %v", lines, err)
	}
}
