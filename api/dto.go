/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Money travels as fixed-point decimal strings in both directions. Binary
  floats would break round-trip equality of stored totals.

VALIDATION:
  Validation is done in handlers and the approval service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/approval"
	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/finance"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// SubmitRequest is the body for POST /api/requests.
type SubmitRequest struct {
	RequesterID string        `json:"requester_id"`
	Type        string        `json:"type"`
	Amount      string        `json:"amount,omitempty"`
	VATIncluded bool          `json:"vat_included,omitempty"`
	Details     DetailsDTO    `json:"details,omitempty"`
	Attachments []string      `json:"attachments,omitempty"`
	LineItems   []LineItemDTO `json:"line_items,omitempty"`
}

// DetailsDTO mirrors the type-specific payload.
type DetailsDTO struct {
	FuneralSubType string            `json:"funeral_sub_type,omitempty"`
	Department     string            `json:"department,omitempty"`
	EventDate      string            `json:"event_date,omitempty"`
	BankAccount    string            `json:"bank_account,omitempty"`
	Note           string            `json:"note,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// LineItemDTO is one itemized cost on an advance/clearing submission.
type LineItemDTO struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	TaxRate     string `json:"tax_rate_percent,omitempty"`
	Tax         string `json:"tax_amount,omitempty"`
}

// DecisionRequest is the body for POST /api/requests/{id}/decision.
type DecisionRequest struct {
	Role      string `json:"role"`
	Decision  string `json:"decision"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Reason    string `json:"reason,omitempty"`
}

// BulkDecisionRequest is the body for POST /api/requests/decisions.
type BulkDecisionRequest struct {
	RequestIDs []string `json:"request_ids"`
	Role       string   `json:"role"`
	Decision   string   `json:"decision"`
	ActorID    string   `json:"actor_id"`
	ActorName  string   `json:"actor_name"`
	Reason     string   `json:"reason,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// RequestDTO represents a request aggregate in API responses.
type RequestDTO struct {
	ID                  string        `json:"id"`
	Type                string        `json:"type"`
	Status              string        `json:"status"`
	RequesterID         string        `json:"requester_id"`
	RequesterName       string        `json:"requester_name"`
	RequesterDepartment string        `json:"requester_department"`
	SubmittedAmount     string        `json:"submitted_amount"`
	Financials          FinancialsDTO `json:"financials"`
	Details             DetailsDTO    `json:"details"`
	LineItems           []LineItemDTO `json:"line_items,omitempty"`
	Attachments         []string      `json:"attachments,omitempty"`
	DocumentURL         string        `json:"document_url,omitempty"`
	Approvals           []ApprovalDTO `json:"approvals"`
	Cycle               int           `json:"cycle"`
	Version             int           `json:"version"`
	CreatedAt           string        `json:"created_at"`
	UpdatedAt           string        `json:"updated_at"`
}

type FinancialsDTO struct {
	VATIncluded     bool   `json:"vat_included"`
	Gross           string `json:"gross_amount"`
	VAT             string `json:"vat"`
	Withholding     string `json:"withholding_tax"`
	Net             string `json:"net_amount"`
	Excess          string `json:"excess_amount"`
	CompanyPay      string `json:"company_payment"`
	EmployeePay     string `json:"employee_payment"`
	BudgetRemaining string `json:"budget_remaining"`
}

type ApprovalDTO struct {
	Role         string `json:"role"`
	Decision     string `json:"decision"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name"`
	Cycle        int    `json:"cycle"`
	Notes        string `json:"notes,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// OutcomeDTO is the per-request result of a bulk decision.
type OutcomeDTO struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// BudgetDTO is the remaining-entitlement view for one employee and type.
type BudgetDTO struct {
	EmployeeID string `json:"employee_id"`
	Type       string `json:"type"`
	Remaining  string `json:"remaining"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toRequestDTO(req *benefit.Request) RequestDTO {
	dto := RequestDTO{
		ID:                  req.ID,
		Type:                string(req.Type),
		Status:              string(req.Status),
		RequesterID:         req.RequesterID,
		RequesterName:       req.RequesterName,
		RequesterDepartment: req.RequesterDepartment,
		SubmittedAmount:     req.SubmittedAmount.StringFixed(2),
		Financials: FinancialsDTO{
			VATIncluded:     req.Financials.VATIncluded,
			Gross:           req.Financials.Gross.StringFixed(2),
			VAT:             req.Financials.VAT.StringFixed(2),
			Withholding:     req.Financials.Withholding.StringFixed(2),
			Net:             req.Financials.Net.StringFixed(2),
			Excess:          req.Financials.Excess.StringFixed(2),
			CompanyPay:      req.Financials.CompanyPay.StringFixed(2),
			EmployeePay:     req.Financials.EmployeePay.StringFixed(2),
			BudgetRemaining: req.Financials.BudgetRemaining.StringFixed(2),
		},
		Details: DetailsDTO{
			FuneralSubType: string(req.Details.FuneralSubType),
			Department:     req.Details.Department,
			EventDate:      req.Details.EventDate,
			BankAccount:    req.Details.BankAccount,
			Note:           req.Details.Note,
			Extra:          req.Details.Extra,
		},
		Attachments: req.Attachments,
		DocumentURL: req.DocumentURL,
		Cycle:       req.Cycle,
		Version:     req.Version,
		CreatedAt:   req.CreatedAt.Format(timeFormat),
		UpdatedAt:   req.UpdatedAt.Format(timeFormat),
	}

	for _, item := range req.Details.LineItems {
		dto.LineItems = append(dto.LineItems, LineItemDTO{
			Description: item.Description,
			Amount:      item.Amount.StringFixed(2),
			TaxRate:     item.TaxRate.String(),
			Tax:         item.Tax.StringFixed(2),
		})
	}

	dto.Approvals = make([]ApprovalDTO, 0, len(req.Approvals))
	for _, a := range req.Approvals {
		dto.Approvals = append(dto.Approvals, ApprovalDTO{
			Role:         string(a.Role),
			Decision:     string(a.Decision),
			ApproverID:   a.ApproverID,
			ApproverName: a.ApproverName,
			Cycle:        a.Cycle,
			Notes:        a.Notes,
			Timestamp:    a.Timestamp.Format(timeFormat),
		})
	}

	return dto
}

func toOutcomeDTOs(outcomes []approval.Outcome) []OutcomeDTO {
	out := make([]OutcomeDTO, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, OutcomeDTO{
			RequestID: o.RequestID,
			OK:        o.OK,
			Status:    string(o.Status),
			Reason:    o.Reason,
		})
	}
	return out
}

// parseAmount parses a decimal money string. Negative input sanitizes to
// zero; the submission preconditions then reject it as non-positive.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, nil
	}
	return d, nil
}

func toLineItems(items []LineItemDTO) ([]finance.LineItem, error) {
	out := make([]finance.LineItem, 0, len(items))
	for _, item := range items {
		amount, err := parseAmount(item.Amount)
		if err != nil {
			return nil, err
		}
		rate, err := parseAmount(item.TaxRate)
		if err != nil {
			return nil, err
		}
		out = append(out, finance.LineItem{
			Description: item.Description,
			Amount:      amount,
			TaxRate:     rate,
		})
	}
	return out, nil
}
