package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"cashbook/internal/ledger"
)

const transactionsSheet = "Transactions"

var transactionHeaders = []string{"ID", "Date", "Time", "Type", "Amount", "Note", "Created By", "Edited By"}

// WriteWorkbook renders the transactions and the given reports as an xlsx
// workbook, one sheet each.
func WriteWorkbook(w io.Writer, doc Document, reports ...ledger.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create amount style: %w", err)
	}

	if err := writeRow(f, transactionsSheet, 1, toCells(transactionHeaders)); err != nil {
		return err
	}
	for i, tx := range doc.Transactions {
		row := i + 2
		edited := tx.EditorLabel()
		cells := []any{tx.ID, tx.Date.String(), tx.Time, string(tx.Category), tx.Amount.InexactFloat64(), tx.Note, tx.CreatedBy, edited}
		if err := writeRow(f, transactionsSheet, row, cells); err != nil {
			return err
		}
		amountCell, _ := excelize.CoordinatesToCellName(5, row)
		if err := f.SetCellStyle(transactionsSheet, amountCell, amountCell, amountStyle); err != nil {
			return fmt.Errorf("style amount: %w", err)
		}
	}

	for _, r := range reports {
		sheet := r.Title
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		if err := writeRow(f, sheet, 1, toCells(r.Columns())); err != nil {
			return err
		}
		for i, row := range r.Rows {
			if err := writeRow(f, sheet, i+2, toCells(r.Cells(row))); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
