package ledger

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"cashbook/internal/core"
)

// DayRow is one line of a per-date table.
type DayRow struct {
	Date    core.CalendarDate `json:"date"`
	Inflow  Amount            `json:"inflow"`
	Outflow Amount            `json:"outflow"`
	Savings Amount            `json:"savings"`
	Balance Amount            `json:"balance"`
}

// DayGroup is a date card: period totals plus the entries that survived
// every filter, newest first.
type DayGroup struct {
	DayRow
	Entries []core.Transaction `json:"entries"`
}

// Views is everything the presentation layer shows after a change.
type Views struct {
	Statistics Statistics     `json:"statistics"`
	Days       []DayGroup     `json:"days"`
	Summary    []DayRow       `json:"summary"`
	History    []DayRow       `json:"history"`
	Monthly    []MonthSavings `json:"monthly"`
}

// Recompute derives all views from the full record set. Statistics, day
// totals and balances use the date range only; the entry lists also apply
// category and search. History covers every record regardless of c.
func Recompute(records []core.Transaction, c Criteria) Views {
	period := Filter(records, c.Period())
	shown := Filter(period, c)

	totals := GroupTotals(period)
	balance := RunningBalance(totals)

	entries := make(map[core.CalendarDate][]core.Transaction)
	for _, tx := range shown {
		entries[tx.Date] = append(entries[tx.Date], tx)
	}
	days := make([]DayGroup, 0, len(entries))
	for _, d := range SortedDates(entries, true) {
		items := entries[d]
		sortByTimeOfDay(items)
		slices.Reverse(items)
		days = append(days, DayGroup{
			DayRow:  dayRow(d, totals[d], balance[d]),
			Entries: items,
		})
	}

	year := c.Year
	if year == 0 {
		year = time.Now().In(c.location()).Year()
	}

	return Views{
		Statistics: Summarize(period),
		Days:       days,
		Summary:    DailyRows(period),
		History:    DailyRows(records),
		Monthly:    MonthlySavings(records, year),
	}
}

// DailyRows lists per-date totals newest first with the cumulative balance
// computed oldest first.
func DailyRows(records []core.Transaction) []DayRow {
	totals := GroupTotals(records)
	balance := RunningBalance(totals)
	rows := make([]DayRow, 0, len(totals))
	for _, d := range SortedDates(totals, true) {
		rows = append(rows, dayRow(d, totals[d], balance[d]))
	}
	return rows
}

func dayRow(d core.CalendarDate, t DayTotals, balance decimal.Decimal) DayRow {
	return DayRow{
		Date:    d,
		Inflow:  amountOf(t.Inflow),
		Outflow: amountOf(t.Outflow),
		Savings: amountOf(t.Net()),
		Balance: amountOf(balance),
	}
}
