/*
Package finance implements the financial computation engine for benefit
and advance requests.

PURPOSE:
  One source of truth for every money calculation in the system: VAT,
  withholding tax, net disbursement amount, and the over-budget cost
  split for training requests. Every call site routes through this
  package; no handler or service reimplements the arithmetic.

KEY RULES:
  VAT:          7% of the requested total (unless the total already
                includes VAT, in which case no VAT is added).
  Withholding:  3% of the requested total (same VAT-included exemption).
  Excess split: When a training request's gross amount exceeds the
                remaining training budget, the excess is split evenly
                between company and employee. The employee side also
                carries the withholding tax.

PRECISION:
  All values are decimal.Decimal, rounded half-up to 2 fractional
  digits after every multiply/divide. Binary floating point is never
  used for stored totals, so recomputation on unchanged input is
  bit-for-bit idempotent.

CONTRACT:
  Pure functions, no I/O, never return errors. Callers sanitize input
  first: amounts passed in must be non-negative. Zero-or-negative
  submitted amounts are rejected at the submission boundary before
  this engine runs.

SEE ALSO:
  - benefit/request.go: The aggregate these breakdowns are frozen into
  - approval/service.go: The only caller at submission time
*/
package finance

import "github.com/shopspring/decimal"

// =============================================================================
// RATES
// =============================================================================

var (
	vatRate         = decimal.NewFromFloat(0.07)
	withholdingRate = decimal.NewFromFloat(0.03)
	two             = decimal.NewFromInt(2)
	hundred         = decimal.NewFromInt(100)
)

// round2 rounds half-up at the cent boundary. Applied after every
// multiply/divide so intermediate precision never leaks into stored totals.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// =============================================================================
// BENEFIT BREAKDOWN
// =============================================================================

// Breakdown is the full financial decomposition of a benefit request.
// NetAmount is the single figure carried unchanged through the approval
// chain; the remaining fields exist for the generated document and audit.
type Breakdown struct {
	Gross       decimal.Decimal
	VAT         decimal.Decimal
	Withholding decimal.Decimal
	Net         decimal.Decimal

	// Training-only fields. Zero for every other category.
	Excess      decimal.Decimal
	CompanyPay  decimal.Decimal
	EmployeePay decimal.Decimal
}

// ComputeBenefit computes the breakdown for a non-training benefit request.
//
// If the total does not include VAT: vat = 7%, withholding = 3%,
// gross = total + vat, net = total + vat - withholding.
// If the total already includes VAT, no tax is added or withheld and
// gross = net = total.
func ComputeBenefit(total decimal.Decimal, vatIncluded bool) Breakdown {
	if vatIncluded {
		return Breakdown{
			Gross:       round2(total),
			VAT:         decimal.Zero,
			Withholding: decimal.Zero,
			Net:         round2(total),
			Excess:      decimal.Zero,
			CompanyPay:  decimal.Zero,
			EmployeePay: decimal.Zero,
		}
	}

	vat := round2(total.Mul(vatRate))
	withholding := round2(total.Mul(withholdingRate))
	gross := round2(total.Add(vat))

	return Breakdown{
		Gross:       gross,
		VAT:         vat,
		Withholding: withholding,
		Net:         round2(total.Add(vat).Sub(withholding)),
		Excess:      decimal.Zero,
		CompanyPay:  decimal.Zero,
		EmployeePay: decimal.Zero,
	}
}

// ComputeTraining computes the breakdown for a training request against the
// remaining training budget read at submission time.
//
// Strictly exceeding the budget routes to the excess branch: a remaining
// budget of exactly 0 with any positive gross amount is an excess; a gross
// amount exactly equal to the remaining budget is NOT.
//
// EXCESS SPLIT:
//   excess  = gross - remaining
//   company = excess / 2
//   employee = excess - company + withholding
//
// The employee side is derived by subtraction rather than a second division
// so that company + (employee - withholding) == excess holds exactly even
// when the excess is an odd number of cents.
func ComputeTraining(total decimal.Decimal, vatIncluded bool, remaining decimal.Decimal) Breakdown {
	b := ComputeBenefit(total, vatIncluded)

	if b.Gross.GreaterThan(remaining) {
		excess := round2(b.Gross.Sub(remaining))
		company := round2(excess.Div(two))

		b.Excess = excess
		b.CompanyPay = company
		b.EmployeePay = round2(excess.Sub(company).Add(b.Withholding))
		b.Net = b.Gross
		return b
	}

	// Within budget: net carries the withholding on top of gross.
	b.Net = round2(b.Gross.Add(b.Withholding))
	return b
}

// =============================================================================
// ADVANCE / CLEARING TOTALS
// =============================================================================

// LineItem is one itemized expected cost on an advance or clearing request.
// Tax is informational only: it does not reduce the disbursed amount.
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	TaxRate     decimal.Decimal `json:"tax_rate_percent"`
	Tax         decimal.Decimal `json:"tax_amount"`
}

// ClearingTotal is the aggregate of all line items on one advance request.
// SubmittedAmount and Net are always equal in this category.
type ClearingTotal struct {
	Items []LineItem
	Total decimal.Decimal
	Tax   decimal.Decimal
}

// ComputeClearingTotal computes per-item tax and the request totals for an
// advance/clearing request. Re-running on an unchanged item list reproduces
// the same totals bit-for-bit.
func ComputeClearingTotal(items []LineItem) ClearingTotal {
	out := ClearingTotal{
		Items: make([]LineItem, len(items)),
		Total: decimal.Zero,
		Tax:   decimal.Zero,
	}

	for i, item := range items {
		item.Tax = round2(item.Amount.Mul(item.TaxRate).Div(hundred))
		out.Items[i] = item
		out.Total = out.Total.Add(round2(item.Amount))
		out.Tax = out.Tax.Add(item.Tax)
	}

	out.Total = round2(out.Total)
	out.Tax = round2(out.Tax)
	return out
}
