/*
request.go - The request aggregate

PURPOSE:
  One submission by one employee: identity, the financial breakdown frozen
  at submission time, the type-specific payload, and the append-only
  approval trail.

IMMUTABILITY RULES:
  - Financials are set exactly once, at submission. No approver step
    recomputes or alters settled tax math; the net amount set here is the
    authoritative figure all the way to disbursement.
  - The training budget snapshot is read once at submission and frozen into
    the breakdown. Later budget changes do not touch existing requests.
  - Approvals are append-only. A revision/resubmission cycle appends new
    entries with an incremented cycle marker; nothing is rewritten.
  - Requests are never deleted. Rejection and completion are terminal
    states retained for reporting.

CONCURRENCY:
  Version supports compare-and-set on update: the store refuses a write
  whose version does not match the persisted row, surfacing ErrStaleState
  instead of silently overwriting a concurrent approver's transition.

SEE ALSO:
  - machine.go: The status graph
  - finance/finance.go: Where the breakdown comes from
*/
package benefit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/finance"
)

// =============================================================================
// REQUEST AGGREGATE
// =============================================================================

// Request is one benefit or advance submission.
type Request struct {
	ID     string
	Type   Type
	Status Status

	// Immutable after submission.
	RequesterID         string
	RequesterName       string
	RequesterDepartment string

	// The amount asked for, pre-tax, as entered.
	SubmittedAmount decimal.Decimal

	Financials Financials
	Details    Details

	// Opaque references the engine neither creates nor resolves.
	Attachments []string
	DocumentURL string

	// Append-only approval trail across all cycles.
	Approvals []Approval

	// Cycle counts approval rounds: 1 on first submission, incremented on
	// each resubmission after a revision request.
	Cycle int

	// Version is the optimistic-concurrency token checked on every update.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Financials is the derived breakdown, set once at submission.
type Financials struct {
	VATIncluded bool
	Gross       decimal.Decimal
	VAT         decimal.Decimal
	Withholding decimal.Decimal
	Net         decimal.Decimal
	Excess      decimal.Decimal
	CompanyPay  decimal.Decimal
	EmployeePay decimal.Decimal

	// BudgetRemaining is the snapshot read at submission time, retained for
	// audit. Zero for categories without a budget read.
	BudgetRemaining decimal.Decimal
}

// FromBreakdown copies a computed breakdown into the persisted shape.
func FromBreakdown(b finance.Breakdown, vatIncluded bool, remaining decimal.Decimal) Financials {
	return Financials{
		VATIncluded:     vatIncluded,
		Gross:           b.Gross,
		VAT:             b.VAT,
		Withholding:     b.Withholding,
		Net:             b.Net,
		Excess:          b.Excess,
		CompanyPay:      b.CompanyPay,
		EmployeePay:     b.EmployeePay,
		BudgetRemaining: remaining,
	}
}

// Details is the type-specific payload. The engine validates presence where
// a transition requires it and otherwise treats it as opaque.
type Details struct {
	FuneralSubType FuneralSubType     `json:"funeral_sub_type,omitempty"`
	Department     string             `json:"department,omitempty"`
	EventDate      string             `json:"event_date,omitempty"`
	BankAccount    string             `json:"bank_account,omitempty"`
	Note           string             `json:"note,omitempty"`
	LineItems      []finance.LineItem `json:"line_items,omitempty"`
	Extra          map[string]string  `json:"extra,omitempty"`
}

// Approval is one completed transition in the trail.
type Approval struct {
	Role         Role
	Decision     Decision
	ApproverID   string
	ApproverName string
	Cycle        int
	Notes        string
	Timestamp    time.Time
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state through a shared pointer.
func (r *Request) Clone() *Request {
	out := *r
	out.Attachments = append([]string(nil), r.Attachments...)
	out.Approvals = append([]Approval(nil), r.Approvals...)
	out.Details.LineItems = append([]finance.LineItem(nil), r.Details.LineItems...)
	if r.Details.Extra != nil {
		out.Details.Extra = make(map[string]string, len(r.Details.Extra))
		for k, v := range r.Details.Extra {
			out.Details.Extra[k] = v
		}
	}
	return &out
}
