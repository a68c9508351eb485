package schedule

import (
	"bytes"
	"fmt"

	"debtster_installments/internal/services/ledger"

	"github.com/xuri/excelize/v2"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ledgerSheet     = "Ledger"
)

var ledgerHeader = []any{"Debt", "Title", "Due date", "Status", "Amount", "Paid", "Remaining", "Payments"}

// ExportLedger renders a contract ledger as a single-sheet workbook. Debts whose
// payments could not be loaded get an "unavailable" marker instead of sums.
func ExportLedger(cl ledger.ContractLedger) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ledgerSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &ledgerHeader); err != nil {
		return nil, err
	}

	row := 2
	for _, l := range cl.Debts {
		title, due := "", ""
		if l.Debt.Title != nil {
			title = *l.Debt.Title
		}
		if l.Debt.DueDate != nil {
			due = l.Debt.DueDate.String()
		}
		var paid, remaining any = "unavailable", "unavailable"
		if l.PaidSum != nil {
			paid = l.PaidSum.InexactFloat64()
			remaining = l.Remaining.InexactFloat64()
		}
		vals := []any{l.Debt.ID.String(), title, due, string(l.Debt.Status), l.Nominal, paid, remaining, len(l.Payments)}
		if err := f.SetSheetRow(ledgerSheet, fmt.Sprintf("A%d", row), &vals); err != nil {
			return nil, err
		}
		row++
	}

	var rem any = "unavailable"
	if cl.Remaining != nil {
		rem = cl.Remaining.InexactFloat64()
	}
	total := []any{"Total", "", "", "", cl.Nominal, cl.PaidSum.InexactFloat64(), rem, ""}
	if err := f.SetSheetRow(ledgerSheet, fmt.Sprintf("A%d", row), &total); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
