package google

import (
	"fmt"
	"strings"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

// SummaryLine is one data row read back from a published summary.
type SummaryLine struct {
	Date     core.CalendarDate
	Label    string
	Amount   decimal.Decimal
	EditedBy string
}

// ParseSummary converts a published cell matrix back into lines. The
// header row must name Date, Category and Amount; other columns are optional.
func ParseSummary(rows [][]string) ([]SummaryLine, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	headers := rows[0]
	colDate := indexOf(headers, "Date")
	colLabel := indexOf(headers, "Category")
	colAmount := indexOf(headers, "Amount")
	colEditor := indexOf(headers, "Edited By")
	if colDate == -1 || colLabel == -1 || colAmount == -1 {
		return nil, fmt.Errorf("unexpected summary header: %v", headers)
	}

	lines := make([]SummaryLine, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		date, err := core.ParseCalendarDate(safeGet(row, colDate))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		amount, ok := parseCurrency(safeGet(row, colAmount))
		if !ok {
			return nil, fmt.Errorf("row %d: unparseable amount %q", i+2, safeGet(row, colAmount))
		}
		lines = append(lines, SummaryLine{
			Date:     date,
			Label:    safeGet(row, colLabel),
			Amount:   amount,
			EditedBy: safeGet(row, colEditor),
		})
	}
	return lines, nil
}

// parseCurrency accepts "₱1,234.56", "-₱50.00" and bare numbers.
func parseCurrency(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, core.CurrencySymbol)
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
