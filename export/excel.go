// Package export produces the tabular report projection over request
// aggregates: one workbook row per request with the financial columns.
// Read-only; nothing here mutates a request.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/benefit-engine/benefit"
)

const sheet = "Requests"

var header = []string{
	"ID", "Type", "Status", "Requester", "Department",
	"Submitted", "VAT", "Withholding", "Gross", "Net",
	"Excess", "Company Share", "Employee Share",
	"Cycle", "Created", "Updated",
}

// WriteReport renders the requests into an xlsx workbook on w.
func WriteReport(w io.Writer, requests []*benefit.Request) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
	}

	for i, req := range requests {
		values := []any{
			req.ID, string(req.Type), string(req.Status),
			req.RequesterName, req.RequesterDepartment,
			req.SubmittedAmount.StringFixed(2),
			req.Financials.VAT.StringFixed(2),
			req.Financials.Withholding.StringFixed(2),
			req.Financials.Gross.StringFixed(2),
			req.Financials.Net.StringFixed(2),
			req.Financials.Excess.StringFixed(2),
			req.Financials.CompanyPay.StringFixed(2),
			req.Financials.EmployeePay.StringFixed(2),
			req.Cycle,
			req.CreatedAt.Format("2006-01-02 15:04:05"),
			req.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
