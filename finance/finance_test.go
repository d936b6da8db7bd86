package finance_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/finance"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// assertMoney compares decimals by value, not representation.
func assertMoney(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", label, want, got)
}

// =============================================================================
// BENEFIT BREAKDOWN
// =============================================================================

func TestComputeBenefit_VATExcluded(t *testing.T) {
	// GIVEN: A 5000 medical claim, VAT not yet included
	// WHEN: Computing the breakdown
	// THEN: 7% VAT added, 3% withheld, net = total + vat - withholding

	b := finance.ComputeBenefit(dec("5000"), false)

	assertMoney(t, "350", b.VAT, "vat")
	assertMoney(t, "150", b.Withholding, "withholding")
	assertMoney(t, "5350", b.Gross, "gross")
	assertMoney(t, "5200", b.Net, "net")
}

func TestComputeBenefit_VATIncluded_ShortCircuits(t *testing.T) {
	// GIVEN: A VAT-included total
	// WHEN: Computing the breakdown
	// THEN: No VAT, no withholding, net == gross == total, for any total

	for _, total := range []string{"5000", "0.01", "123456.78"} {
		b := finance.ComputeBenefit(dec(total), true)

		assert.True(t, b.VAT.IsZero(), "vat must be zero for %s", total)
		assert.True(t, b.Withholding.IsZero(), "withholding must be zero for %s", total)
		assertMoney(t, total, b.Gross, "gross")
		assertMoney(t, total, b.Net, "net")
	}
}

func TestComputeBenefit_RoundsHalfUpAtCents(t *testing.T) {
	// 33.33 * 0.07 = 2.3331 -> 2.33; 33.33 * 0.03 = 0.9999 -> 1.00
	b := finance.ComputeBenefit(dec("33.33"), false)

	assertMoney(t, "2.33", b.VAT, "vat")
	assertMoney(t, "1.00", b.Withholding, "withholding")
	assertMoney(t, "35.66", b.Gross, "gross")
	assertMoney(t, "34.66", b.Net, "net")
}

func TestComputeBenefit_Idempotent(t *testing.T) {
	a := finance.ComputeBenefit(dec("1234.56"), false)
	b := finance.ComputeBenefit(dec("1234.56"), false)

	require.Equal(t, a, b)
}

// =============================================================================
// TRAINING EXCESS SPLIT
// =============================================================================

func TestComputeTraining_OverBudget(t *testing.T) {
	// GIVEN: total=10000 excl. VAT, remaining training budget 8000
	// WHEN: Computing the training breakdown
	// THEN: gross 10700 exceeds 8000; excess 2700 split evenly,
	//       employee side carries the withholding

	b := finance.ComputeTraining(dec("10000"), false, dec("8000"))

	assertMoney(t, "700", b.VAT, "vat")
	assertMoney(t, "300", b.Withholding, "withholding")
	assertMoney(t, "10700", b.Gross, "gross")
	assertMoney(t, "2700", b.Excess, "excess")
	assertMoney(t, "10700", b.Net, "net")
	assertMoney(t, "1350", b.CompanyPay, "company payment")
	assertMoney(t, "1650", b.EmployeePay, "employee payment")
}

func TestComputeTraining_WithinBudget(t *testing.T) {
	// Gross 1070 <= remaining 5000: no excess, net = gross + withholding.
	b := finance.ComputeTraining(dec("1000"), false, dec("5000"))

	assertMoney(t, "1070", b.Gross, "gross")
	assert.True(t, b.Excess.IsZero(), "excess")
	assert.True(t, b.CompanyPay.IsZero(), "company payment")
	assert.True(t, b.EmployeePay.IsZero(), "employee payment")
	assertMoney(t, "1100", b.Net, "net")
}

func TestComputeTraining_ExactBudgetIsNotExcess(t *testing.T) {
	// Strict > comparison: gross exactly equal to remaining stays in budget.
	b := finance.ComputeTraining(dec("10000"), false, dec("10700"))

	assert.True(t, b.Excess.IsZero(), "equal gross and budget must not be excess")
	assertMoney(t, "11000", b.Net, "net")
}

func TestComputeTraining_ZeroBudgetRoutesToExcess(t *testing.T) {
	// remaining == 0 with positive gross is fully excess.
	b := finance.ComputeTraining(dec("100"), true, decimal.Zero)

	assertMoney(t, "100", b.Excess, "excess")
	assertMoney(t, "50", b.CompanyPay, "company payment")
	assertMoney(t, "50", b.EmployeePay, "employee payment")
}

func TestComputeTraining_OddCentExcessSplitBalances(t *testing.T) {
	// GIVEN: An excess that is an odd number of cents
	// THEN: company + (employee - withholding) == excess, exactly

	b := finance.ComputeTraining(dec("100.01"), true, dec("50"))

	assertMoney(t, "50.01", b.Excess, "excess")
	recombined := b.CompanyPay.Add(b.EmployeePay.Sub(b.Withholding))
	assert.True(t, recombined.Equal(b.Excess),
		"split must recombine to the excess: company=%s employee=%s withholding=%s",
		b.CompanyPay, b.EmployeePay, b.Withholding)
}

// =============================================================================
// ADVANCE / CLEARING TOTALS
// =============================================================================

func TestComputeClearingTotal_TaxIsInformational(t *testing.T) {
	// GIVEN: Two line items, 1000 at 5% tax and 2000 at 0%
	// THEN: per-item tax {50, 0}; total disbursed 3000, tax not subtracted

	got := finance.ComputeClearingTotal([]finance.LineItem{
		{Description: "venue", Amount: dec("1000"), TaxRate: dec("5")},
		{Description: "travel", Amount: dec("2000"), TaxRate: dec("0")},
	})

	require.Len(t, got.Items, 2)
	assertMoney(t, "50", got.Items[0].Tax, "item 0 tax")
	assertMoney(t, "0", got.Items[1].Tax, "item 1 tax")
	assertMoney(t, "3000", got.Total, "total")
	assertMoney(t, "50", got.Tax, "tax total")
}

func TestComputeClearingTotal_EmptyList(t *testing.T) {
	got := finance.ComputeClearingTotal(nil)

	assert.True(t, got.Total.IsZero())
	assert.True(t, got.Tax.IsZero())
	assert.Empty(t, got.Items)
}

func TestComputeClearingTotal_Idempotent(t *testing.T) {
	items := []finance.LineItem{
		{Description: "samples", Amount: dec("333.33"), TaxRate: dec("7")},
	}

	a := finance.ComputeClearingTotal(items)
	b := finance.ComputeClearingTotal(items)

	require.Equal(t, a, b)
	assertMoney(t, "23.33", a.Items[0].Tax, "tax rounded half-up")
}
