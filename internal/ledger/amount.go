package ledger

import (
	"github.com/shopspring/decimal"

	"cashbook/internal/core"
)

// Amount pairs a raw value with its one formatted rendering. Every output of
// this package builds amounts through amountOf so formatting happens once.
type Amount struct {
	Value   decimal.Decimal `json:"value"`
	Display string          `json:"display"`
}

func amountOf(d decimal.Decimal) Amount {
	return Amount{Value: d, Display: core.FormatCurrency(d)}
}
