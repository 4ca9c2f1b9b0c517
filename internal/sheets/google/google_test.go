package google

import (
	"context"
	"testing"

	"cashbook/internal/core"
)

func TestSheetTitle(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		owner  core.Identity
		want   string
	}{
		{"plain", "Savings", core.Identity{Key: "Ann@Example.com"}, "Savings ann@example.com"},
		{"forbidden chars", "Savings", core.Identity{Key: "a/b:c'd"}, "Savings a_b_c_d"},
		{"brackets", "[Cash]", core.Identity{Key: "x"}, "(Cash) x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sheetTitle(tt.prefix, tt.owner); got != tt.want {
				t.Errorf("sheetTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSheetTitleTruncates(t *testing.T) {
	key := ""
	for i := 0; i < 120; i++ {
		key += "a"
	}
	got := sheetTitle("Savings", core.Identity{Key: key})
	if n := len([]rune(got)); n != maxTitleRunes {
		t.Fatalf("title length = %d", n)
	}
}

func TestSameRows(t *testing.T) {
	a := [][]string{{"Date", "Amount"}, {"01/01/24", "₱1.00", ""}}
	b := [][]string{{"Date", "Amount"}, {"01/01/24", "₱1.00"}}
	if !sameRows(a, b) {
		t.Error("trailing empty cell should compare equal")
	}
	c := [][]string{{"Date", "Amount"}, {"01/01/24", "₱2.00"}}
	if sameRows(a, c) {
		t.Error("different amount compared equal")
	}
	if sameRows(a, a[:1]) {
		t.Error("different row count compared equal")
	}
}

func TestToValuesAndBack(t *testing.T) {
	rows := [][]string{{"Date", "Amount"}, {"01/01/24", "₱1.00"}}
	values := toValues(rows)
	for i := range values {
		if got := toStrings(values[i]); !sameRows([][]string{got}, [][]string{rows[i]}) {
			t.Errorf("row %d = %v", i, got)
		}
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}
