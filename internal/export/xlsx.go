package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"convertflow/internal/domain"
)

const (
	statementSheet = "Statement"
	ledgerSheet    = "Transactions"
)

// ContentTypeXLSX is the MIME type of a workbook statement.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteWorkbook writes a two-sheet statement: a balance summary and the
// ledger entries newest first, in the same columns as the CSV export.
func WriteWorkbook(out io.Writer, balance *domain.CreditBalance, txns []domain.CreditTransaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	summary := [][]interface{}{
		{"User ID", balance.UserID},
		{"Credits", balance.Credits},
		{"Total Earned", balance.TotalEarned},
		{"Total Used", balance.TotalUsed},
		{"Transactions", len(txns)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(statementSheet, cell, &row); err != nil {
			return fmt.Errorf("export: write summary: %w", err)
		}
	}

	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return fmt.Errorf("export: create ledger sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(ledgerSheet)
	if err != nil {
		return fmt.Errorf("export: stream writer: %w", err)
	}
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i := range txns {
		t := &txns[i]
		row := transactionToRow(t)
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		// Numeric columns keep their numeric type so the sheet can sum them.
		cells[3] = t.Amount
		cells[5] = t.BalanceBefore
		cells[6] = t.BalanceAfter
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
