package ledger

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashbook/internal/core"
)

// ReportKind selects a projection.
type ReportKind string

const (
	KindInflows  ReportKind = "daily-cash-inflows"
	KindOutflows ReportKind = "daily-cash-outflows"
	KindSavings  ReportKind = "daily-savings"

	// NoEditor fills the edited-by column when nobody edited the row.
	NoEditor = "-"

	savingsLabel = "Daily Savings"
)

// ErrUnknownReport is returned for a kind outside the three projections.
var ErrUnknownReport = errors.New("unknown report kind")

var reportTitles = map[ReportKind]string{
	KindInflows:  "Daily Cash Inflows Report",
	KindOutflows: "Daily Cash Outflows Report",
	KindSavings:  "Daily Savings Summary",
}

// ReportKinds lists the projections in display order.
func ReportKinds() []ReportKind {
	return []ReportKind{KindInflows, KindOutflows, KindSavings}
}

func ParseReportKind(s string) (ReportKind, error) {
	k := ReportKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := reportTitles[k]; !ok {
		return "", &core.ValidationError{Field: "kind", Err: ErrUnknownReport}
	}
	return k, nil
}

func (k ReportKind) Title() string { return reportTitles[k] }

// Row is one line of a report. Ledger reports fill Note and Amount; the
// savings summary fills Inflow, Outflow, Savings and Editors.
type Row struct {
	Date      core.CalendarDate `json:"date"`
	Note      string            `json:"note,omitempty"`
	Amount    Amount            `json:"amount"`
	Inflow    *Amount           `json:"inflow,omitempty"`
	Outflow   *Amount           `json:"outflow,omitempty"`
	Timestamp string            `json:"timestamp"`
	EditedBy  string            `json:"editedBy"`
	Editors   []string          `json:"editors,omitempty"`
}

type Report struct {
	Kind  ReportKind `json:"kind"`
	Title string     `json:"title"`
	Rows  []Row      `json:"rows"`
}

// Columns are the printable headers shared by every report kind.
func (r Report) Columns() []string {
	return []string{"Date", "Category", "Amount", "Timestamp", "Edited By"}
}

// Cells renders a row in Columns order.
func (r Report) Cells(row Row) []string {
	label := row.Note
	if r.Kind == KindSavings {
		label = savingsLabel
	}
	return []string{row.Date.String(), label, row.Amount.Display, row.Timestamp, row.EditedBy}
}

// Project builds the report of the given kind. records should already be
// restricted to the report period; category filters are ignored here.
func Project(kind ReportKind, records []core.Transaction, loc *time.Location) (Report, error) {
	var rows []Row
	switch kind {
	case KindInflows:
		rows = InflowLedger(records)
	case KindOutflows:
		rows = OutflowLedger(records)
	case KindSavings:
		rows = DailySavings(records, loc)
	default:
		return Report{}, &core.ValidationError{Field: "kind", Err: ErrUnknownReport}
	}
	return Report{Kind: kind, Title: kind.Title(), Rows: rows}, nil
}

// InflowLedger lists every inflow, dates newest first and entries within a
// date by ascending time of day.
func InflowLedger(records []core.Transaction) []Row {
	return categoryLedger(records, core.Inflow)
}

// OutflowLedger is InflowLedger for outflows.
func OutflowLedger(records []core.Transaction) []Row {
	return categoryLedger(records, core.Outflow)
}

func categoryLedger(records []core.Transaction, cat core.Category) []Row {
	byDate := make(map[core.CalendarDate][]core.Transaction)
	for _, tx := range records {
		if tx.Category == cat {
			byDate[tx.Date] = append(byDate[tx.Date], tx)
		}
	}

	rows := make([]Row, 0, len(records))
	for _, d := range SortedDates(byDate, true) {
		items := byDate[d]
		sortByTimeOfDay(items)
		for _, tx := range items {
			edited := tx.EditorLabel()
			if edited == "" {
				edited = NoEditor
			}
			rows = append(rows, Row{
				Date:      d,
				Note:      tx.Note,
				Amount:    amountOf(tx.Amount.Decimal),
				Timestamp: tx.CreatedAt.String(),
				EditedBy:  edited,
			})
		}
	}
	return rows
}

type savingsDay struct {
	totals DayTotals
	latest time.Time
	items  []core.Transaction
}

// DailySavings emits one row per date: the day's net savings (not
// cumulative), the latest creation instant rendered in loc, and the distinct
// editor labels of that day joined by "; " or NoEditor.
func DailySavings(records []core.Transaction, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[core.CalendarDate]*savingsDay)
	for _, tx := range records {
		day, ok := days[tx.Date]
		if !ok {
			day = &savingsDay{}
			days[tx.Date] = day
		}
		switch tx.Category {
		case core.Inflow:
			day.totals.Inflow = day.totals.Inflow.Add(tx.Amount.Decimal)
		case core.Outflow:
			day.totals.Outflow = day.totals.Outflow.Add(tx.Amount.Decimal)
		}
		if tx.CreatedAt.Instant.After(day.latest) {
			day.latest = tx.CreatedAt.Instant
		}
		day.items = append(day.items, tx)
	}

	rows := make([]Row, 0, len(days))
	for _, d := range SortedDates(days, true) {
		day := days[d]
		sortByTimeOfDay(day.items)

		var editors []string
		seen := make(map[string]bool)
		for _, tx := range day.items {
			if label := tx.EditorLabel(); label != "" && !seen[label] {
				seen[label] = true
				editors = append(editors, label)
			}
		}
		edited := NoEditor
		if len(editors) > 0 {
			edited = strings.Join(editors, "; ")
		}

		timestamp := NoEditor
		if !day.latest.IsZero() {
			timestamp = core.NewStamp(day.latest, loc).String()
		}

		inflow, outflow := amountOf(day.totals.Inflow), amountOf(day.totals.Outflow)
		rows = append(rows, Row{
			Date:      d,
			Amount:    amountOf(day.totals.Net()),
			Inflow:    &inflow,
			Outflow:   &outflow,
			Timestamp: timestamp,
			EditedBy:  edited,
			Editors:   editors,
		})
	}
	return rows
}

// sortByTimeOfDay orders by display time, then instant, then id so equal
// times still come out the same way every run.
func sortByTimeOfDay(items []core.Transaction) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if !a.CreatedAt.Instant.Equal(b.CreatedAt.Instant) {
			return a.CreatedAt.Instant.Before(b.CreatedAt.Instant)
		}
		return a.ID < b.ID
	})
}

// MonthSavings is the net savings of one calendar month.
type MonthSavings struct {
	Month   time.Month `json:"month"`
	Label   string     `json:"label"`
	Savings Amount     `json:"savings"`
}

// MonthlySavings buckets net savings into the twelve months of year.
func MonthlySavings(records []core.Transaction, year int) []MonthSavings {
	var nets [12]decimal.Decimal
	for _, tx := range records {
		if tx.Date.Year != year {
			continue
		}
		i := int(tx.Date.Month) - 1
		switch tx.Category {
		case core.Inflow:
			nets[i] = nets[i].Add(tx.Amount.Decimal)
		case core.Outflow:
			nets[i] = nets[i].Sub(tx.Amount.Decimal)
		}
	}
	out := make([]MonthSavings, 12)
	for i := range out {
		m := time.Month(i + 1)
		out[i] = MonthSavings{Month: m, Label: m.String()[:3], Savings: amountOf(nets[i])}
	}
	return out
}
