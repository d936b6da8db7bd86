package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
)

// =============================================================================
// STORE CONTRACTS
// =============================================================================

// CompletedReader sums the net amounts of completed requests for one
// employee and type inside a period window.
type CompletedReader interface {
	CompletedTotal(ctx context.Context, employeeID string, t benefit.Type, from, to time.Time) (decimal.Decimal, error)
}

// BalanceReader reads a stored per-employee balance row. Used for the
// running training budget and the glasses/dental balance, where remaining
// entitlement is maintained directly rather than recomputed from requests.
type BalanceReader interface {
	// BudgetBalance returns (remaining, found). Not-found is not an error:
	// it means no balance has been granted.
	BudgetBalance(ctx context.Context, employeeID string, t benefit.Type) (decimal.Decimal, bool, error)
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger answers the one remaining-budget question the submission path asks.
type Ledger struct {
	Completed CompletedReader
	Balances  BalanceReader

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewLedger(completed CompletedReader, balances BalanceReader) *Ledger {
	return &Ledger{Completed: completed, Balances: balances, Now: time.Now}
}

// balanceBacked types read a stored balance row instead of summing requests.
func balanceBacked(t benefit.Type) bool {
	switch t {
	case benefit.TypeTraining, benefit.TypeGlasses, benefit.TypeDental:
		return true
	}
	return false
}

// Remaining returns the current-period remaining entitlement for one
// employee and benefit type.
func (l *Ledger) Remaining(ctx context.Context, employeeID string, t benefit.Type) (decimal.Decimal, error) {
	if balanceBacked(t) {
		remaining, found, err := l.Balances.BudgetBalance(ctx, employeeID, t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("budget balance for %s/%s: %w", employeeID, t, err)
		}
		if !found {
			return decimal.Zero, nil
		}
		return remaining, nil
	}

	limit, ok := LimitFor(t)
	if !ok {
		// Advance/clearing categories carry no entitlement budget.
		return decimal.Zero, nil
	}

	from, to := l.period(limit.Monthly)
	used, err := l.Completed.CompletedTotal(ctx, employeeID, t, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("completed total for %s/%s: %w", employeeID, t, err)
	}

	remaining := limit.Amount.Sub(used)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining, nil
}

// period returns the current entitlement window: the calendar month for
// monthly caps, the calendar year otherwise.
func (l *Ledger) period(monthly bool) (time.Time, time.Time) {
	now := l.now()
	if monthly {
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return from, from.AddDate(0, 1, 0)
	}
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return from, from.AddDate(1, 0, 0)
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
