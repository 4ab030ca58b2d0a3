// Package export renders transactions as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"fintrack/internal/core"

	"github.com/xuri/excelize/v2"
)

// Columns is the header row of every export.
var Columns = []string{"Date", "Description", "Category", "Amount", "PaymentMethod"}

const sheetName = "Transactions"

// Writer renders transactions in one export format.
type Writer func(w io.Writer, txs []core.Transaction) error

func record(tx core.Transaction) []string {
	return []string{
		tx.Date.String(),
		tx.Description,
		tx.Category,
		tx.Amount.String(),
		tx.PaymentMethod,
	}
}

// WriteCSV writes a header and one line per transaction, in the given order.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		if err := cw.Write(record(tx)); err != nil {
			return fmt.Errorf("write csv row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook. Amounts are numeric cells so
// the sheet can total them.
func WriteXLSX(w io.Writer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DFE6E9"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}

	for i, tx := range txs {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{
			tx.Date.String(),
			tx.Description,
			tx.Category,
			tx.Amount.Decimal().InexactFloat64(),
			tx.PaymentMethod,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		amountCell := fmt.Sprintf("D%d", row)
		if err := f.SetCellStyle(sheetName, amountCell, amountCell, amountStyle); err != nil {
			return fmt.Errorf("style row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", "B", 40)
	_ = f.SetColWidth(sheetName, "C", "E", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename names a download covering from..to. Zero dates read as "all".
func Filename(from, to core.Date, ext string) string {
	label := func(d core.Date) string {
		if d.IsZero() {
			return "all"
		}
		return d.String()
	}
	return fmt.Sprintf("transactions_%s_%s.%s", label(from), label(to), ext)
}
