// Package document renders the printable summary for a finalized request:
// requester, category, financial breakdown, and the approval trail. The
// engine stores only the returned reference; it never inspects document
// contents.
package document

import (
	"fmt"
	"os"
	"path/filepath"

	"codeberg.org/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/warp/benefit-engine/benefit"
)

// Generator writes request summary PDFs into OutputDir.
type Generator struct {
	OutputDir string
	Logger    *zap.Logger
}

func NewGenerator(outputDir string, logger *zap.Logger) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create document output dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{OutputDir: outputDir, Logger: logger}, nil
}

// Render writes the summary PDF for req and returns its path, the opaque
// reference stored on the aggregate.
func (g *Generator) Render(req *benefit.Request) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Request %s", req.ID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Benefit / Advance Request")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	g.row(pdf, "Request ID", req.ID)
	g.row(pdf, "Type", string(req.Type))
	g.row(pdf, "Status", string(req.Status))
	g.row(pdf, "Requester", fmt.Sprintf("%s (%s)", req.RequesterName, req.RequesterDepartment))
	g.row(pdf, "Submitted", req.CreatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Financial breakdown")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	g.row(pdf, "Submitted amount", req.SubmittedAmount.StringFixed(2))
	g.row(pdf, "VAT", req.Financials.VAT.StringFixed(2))
	g.row(pdf, "Withholding tax", req.Financials.Withholding.StringFixed(2))
	g.row(pdf, "Gross amount", req.Financials.Gross.StringFixed(2))
	g.row(pdf, "Net amount", req.Financials.Net.StringFixed(2))
	if req.Financials.Excess.IsPositive() {
		g.row(pdf, "Excess over budget", req.Financials.Excess.StringFixed(2))
		g.row(pdf, "Company share", req.Financials.CompanyPay.StringFixed(2))
		g.row(pdf, "Employee share", req.Financials.EmployeePay.StringFixed(2))
	}

	if len(req.Details.LineItems) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Line items")
		pdf.Ln(9)
		pdf.SetFont("Helvetica", "", 11)
		for _, item := range req.Details.LineItems {
			g.row(pdf, item.Description,
				fmt.Sprintf("%s (tax %s)", item.Amount.StringFixed(2), item.Tax.StringFixed(2)))
		}
	}

	if len(req.Approvals) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Approval trail")
		pdf.Ln(9)
		pdf.SetFont("Helvetica", "", 11)
		for _, a := range req.Approvals {
			g.row(pdf, fmt.Sprintf("%s %s", a.Role, a.Decision),
				fmt.Sprintf("%s, %s", a.ApproverName, a.Timestamp.Format("2006-01-02 15:04")))
		}
	}

	path := filepath.Join(g.OutputDir, fmt.Sprintf("%s.pdf", req.ID))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	g.Logger.Info("document rendered",
		zap.String("request_id", req.ID), zap.String("path", path))
	return path, nil
}

func (g *Generator) row(pdf *fpdf.Fpdf, label, value string) {
	pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
}
