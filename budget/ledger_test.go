package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/budget"
	"github.com/warp/benefit-engine/store/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
}

func newLedger(store *memory.Store) *budget.Ledger {
	l := budget.NewLedger(store, store)
	l.Now = fixedNow
	return l
}

// completedRequest persists one completed request for period sums.
func completedRequest(t *testing.T, store *memory.Store, employeeID string, typ benefit.Type, net string, at time.Time) {
	t.Helper()
	req := &benefit.Request{
		Type:        typ,
		Status:      benefit.StatusCompleted,
		RequesterID: employeeID,
		Financials:  benefit.Financials{Net: dec(net)},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	_, err := store.Save(context.Background(), req)
	require.NoError(t, err)
}

// =============================================================================
// STATIC LIMITS
// =============================================================================

func TestLimitFor(t *testing.T) {
	l, ok := budget.LimitFor(benefit.TypeFitness)
	require.True(t, ok)
	assert.True(t, l.Monthly)
	assert.True(t, l.Amount.Equal(dec("500")))

	l, ok = budget.LimitFor(benefit.TypeMedical)
	require.True(t, ok)
	assert.False(t, l.Monthly)

	// Training has no static cap; its budget is employee-specific.
	_, ok = budget.LimitFor(benefit.TypeTraining)
	assert.False(t, ok)

	// Advance categories carry no entitlement budget at all.
	_, ok = budget.LimitFor(benefit.TypeSalesAdvance)
	assert.False(t, ok)
}

// =============================================================================
// REMAINING
// =============================================================================

func TestRemaining_AnnualCapMinusCompleted(t *testing.T) {
	// GIVEN: Medical cap 5000, two completed medical requests this year
	// WHEN: Reading the remaining budget
	// THEN: remaining = 5000 - 1200 - 800 = 3000

	store := memory.New()
	completedRequest(t, store, "emp-1", benefit.TypeMedical, "1200",
		time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC))
	completedRequest(t, store, "emp-1", benefit.TypeMedical, "800",
		time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC))

	remaining, err := newLedger(store).Remaining(context.Background(), "emp-1", benefit.TypeMedical)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(dec("3000")), "got %s", remaining)
}

func TestRemaining_IgnoresOtherYearsTypesAndEmployees(t *testing.T) {
	store := memory.New()
	// Last year: outside the period.
	completedRequest(t, store, "emp-1", benefit.TypeMedical, "4000",
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	// Different type and different employee: not counted.
	completedRequest(t, store, "emp-1", benefit.TypeWedding, "5000", fixedNow())
	completedRequest(t, store, "emp-2", benefit.TypeMedical, "900", fixedNow())

	remaining, err := newLedger(store).Remaining(context.Background(), "emp-1", benefit.TypeMedical)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(dec("5000")), "got %s", remaining)
}

func TestRemaining_MonthlyCapUsesCalendarMonth(t *testing.T) {
	// GIVEN: Fitness cap 500/month; 300 completed this month, 450 last month
	// THEN: Only this month's 300 counts

	store := memory.New()
	completedRequest(t, store, "emp-1", benefit.TypeFitness, "300",
		time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	completedRequest(t, store, "emp-1", benefit.TypeFitness, "450",
		time.Date(2026, time.February, 25, 0, 0, 0, 0, time.UTC))

	remaining, err := newLedger(store).Remaining(context.Background(), "emp-1", benefit.TypeFitness)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(dec("200")), "got %s", remaining)
}

func TestRemaining_NeverNegative(t *testing.T) {
	store := memory.New()
	completedRequest(t, store, "emp-1", benefit.TypeMedical, "9000", fixedNow())

	remaining, err := newLedger(store).Remaining(context.Background(), "emp-1", benefit.TypeMedical)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero(), "got %s", remaining)
}

func TestRemaining_BalanceBackedTypes(t *testing.T) {
	// Training and glasses/dental read the stored per-employee balance,
	// not a recomputed sum.
	store := memory.New()
	require.NoError(t, store.SetBudgetBalance(context.Background(), "emp-1", benefit.TypeTraining, dec("8000")))
	require.NoError(t, store.SetBudgetBalance(context.Background(), "emp-1", benefit.TypeGlasses, dec("1500.50")))

	// A completed training request must not affect the stored balance read.
	completedRequest(t, store, "emp-1", benefit.TypeTraining, "2000", fixedNow())

	ledger := newLedger(store)

	remaining, err := ledger.Remaining(context.Background(), "emp-1", benefit.TypeTraining)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(dec("8000")), "got %s", remaining)

	remaining, err = ledger.Remaining(context.Background(), "emp-1", benefit.TypeGlasses)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(dec("1500.50")), "got %s", remaining)
}

func TestRemaining_NoBalanceRowMeansZero(t *testing.T) {
	store := memory.New()

	remaining, err := newLedger(store).Remaining(context.Background(), "emp-1", benefit.TypeTraining)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
}
