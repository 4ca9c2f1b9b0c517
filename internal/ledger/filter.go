// Package ledger turns an unordered list of transactions into filtered
// views, per-date totals, running balances and report projections.
//
// Everything here is a pure function over an in-memory slice. Callers fetch
// the full record set for one identity, then call Recompute (or the
// individual functions) after every mutation.
package ledger

import (
	"strings"
	"time"

	"cashbook/internal/core"
)

// Criteria narrows a record collection. Zero values disable a dimension.
type Criteria struct {
	Start    *core.CalendarDate
	End      *core.CalendarDate
	Category core.Category
	Search   string

	// Location defines where a day starts and ends. Nil means time.Local.
	Location *time.Location

	// Year selects the monthly savings buckets. Zero means the current year.
	Year int
}

func (c Criteria) Validate() error {
	if c.Start != nil && c.End != nil && c.End.Before(*c.Start) {
		return &core.ValidationError{Field: "end", Err: core.ErrInvalidDateRange}
	}
	switch c.Category {
	case "", core.CategoryAll, core.Inflow, core.Outflow:
	default:
		return &core.ValidationError{Field: "category", Err: core.ErrInvalidCategory}
	}
	return nil
}

// Period keeps the date range and drops category and search. Statistics and
// running balances are always computed over the period set.
func (c Criteria) Period() Criteria {
	c.Category = core.CategoryAll
	c.Search = ""
	return c
}

func (c Criteria) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Match reports whether tx passes every active dimension.
func (c Criteria) Match(tx core.Transaction) bool {
	loc := c.location()
	instant := tx.CreatedAt.Instant
	if c.Start != nil && instant.Before(c.Start.StartOfDay(loc)) {
		return false
	}
	if c.End != nil && !instant.Before(c.End.AddDays(1).StartOfDay(loc)) {
		return false
	}
	if c.Category != "" && c.Category != core.CategoryAll && tx.Category != c.Category {
		return false
	}
	if c.Search != "" {
		q := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(tx.Note), q) && !strings.Contains(tx.Amount.String(), q) {
			return false
		}
	}
	return true
}

// Filter returns the records matching c in their original order. The input
// slice is never modified.
func Filter(records []core.Transaction, c Criteria) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, tx := range records {
		if c.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}
