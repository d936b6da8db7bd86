/*
Package budget implements the budget ledger query: per-type entitlement
limits and the remaining-budget figure read once per submission.

PURPOSE:
  Two lookups feed the submission path:
  1. LimitFor: the static policy cap per benefit type. The cap is the same
     for every employee for a given type; training is the exception and has
     no static cap here (its running budget is employee-specific).
  2. Ledger.Remaining: the current-period remaining entitlement, computed
     as limit minus the sum of completed requests of the same type in the
     period. Glasses/dental/training instead read a stored per-employee
     balance row, which this package treats as opaque.

READ-ONCE CONTRACT:
  Remaining is invoked exactly once, when a new request aggregate is built.
  The result is frozen into the aggregate's financials and never re-queried
  on later approval steps, even if the underlying ledger moves in the
  interim. Submissions are judged against the budget as it stood at
  submission time; that keeps each request's math immutable and auditable.

  The figure is shared read-only by concurrent submissions with no locking.
  Two concurrent training submissions may both read the same remaining
  budget and both be approved; accounting reconciles that later.
*/
package budget

import (
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
)

// =============================================================================
// STATIC LIMIT POLICY
// =============================================================================

// Limit is the static entitlement cap for one benefit type.
type Limit struct {
	Amount    decimal.Decimal
	Condition string
	Monthly   bool // cap applies per calendar month instead of per year
}

var limits = map[benefit.Type]Limit{
	benefit.TypeWedding:    {Amount: decimal.NewFromInt(5000), Condition: "once per employee"},
	benefit.TypeChildbirth: {Amount: decimal.NewFromInt(3000), Condition: "per child"},
	benefit.TypeFuneral:    {Amount: decimal.NewFromInt(10000), Condition: "per deceased, sub-type required"},
	benefit.TypeFitness:    {Amount: decimal.NewFromInt(500), Condition: "per month", Monthly: true},
	benefit.TypeMedical:    {Amount: decimal.NewFromInt(5000), Condition: "annual outpatient"},
}

// LimitFor returns the static cap for a benefit type. Training,
// glasses/dental, and the advance/clearing categories have no static cap
// and return ok=false: their entitlement lives in the per-employee stored
// balance instead.
func LimitFor(t benefit.Type) (Limit, bool) {
	l, ok := limits[t]
	return l, ok
}
