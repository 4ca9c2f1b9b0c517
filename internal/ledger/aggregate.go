package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"cashbook/internal/core"
)

// DayTotals holds the per-category sums of one calendar date.
type DayTotals struct {
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
}

// Net is the day's savings: inflow minus outflow.
func (d DayTotals) Net() decimal.Decimal {
	return d.Inflow.Sub(d.Outflow)
}

// Statistics summarizes a period.
type Statistics struct {
	Inflow  Amount `json:"inflow"`
	Outflow Amount `json:"outflow"`
	Net     Amount `json:"net"`
	Count   int    `json:"count"`
}

// GroupTotals sums amounts per category per calendar date. Dates without
// records are absent from the result.
func GroupTotals(records []core.Transaction) map[core.CalendarDate]DayTotals {
	totals := make(map[core.CalendarDate]DayTotals)
	for _, tx := range records {
		day := totals[tx.Date]
		switch tx.Category {
		case core.Inflow:
			day.Inflow = day.Inflow.Add(tx.Amount.Decimal)
		case core.Outflow:
			day.Outflow = day.Outflow.Add(tx.Amount.Decimal)
		default:
			continue
		}
		totals[tx.Date] = day
	}
	return totals
}

// SortedDates returns the keys of m in chronological order, or reversed
// when desc is set.
func SortedDates[V any](m map[core.CalendarDate]V, desc bool) []core.CalendarDate {
	dates := make([]core.CalendarDate, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		if desc {
			return dates[j].Before(dates[i])
		}
		return dates[i].Before(dates[j])
	})
	return dates
}

// RunningBalance accumulates daily net savings from the earliest date
// forward. The value for a date is the sum of that date's net and every
// earlier date's net. Display order must be applied afterwards, never here.
func RunningBalance(totals map[core.CalendarDate]DayTotals) map[core.CalendarDate]decimal.Decimal {
	balance := make(map[core.CalendarDate]decimal.Decimal, len(totals))
	running := decimal.Zero
	for _, d := range SortedDates(totals, false) {
		running = running.Add(totals[d].Net())
		balance[d] = running
	}
	return balance
}

// Summarize totals a record set. Pass the period set, not a searched or
// category-filtered one.
func Summarize(records []core.Transaction) Statistics {
	inflow, outflow := decimal.Zero, decimal.Zero
	count := 0
	for _, tx := range records {
		switch tx.Category {
		case core.Inflow:
			inflow = inflow.Add(tx.Amount.Decimal)
		case core.Outflow:
			outflow = outflow.Add(tx.Amount.Decimal)
		}
		count++
	}
	return Statistics{
		Inflow:  amountOf(inflow),
		Outflow: amountOf(outflow),
		Net:     amountOf(inflow.Sub(outflow)),
		Count:   count,
	}
}
