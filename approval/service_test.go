package approval_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/approval"
	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/budget"
	"github.com/warp/benefit-engine/finance"
	"github.com/warp/benefit-engine/identity"
	"github.com/warp/benefit-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	manager    = approval.Actor{ID: "mgr-1", Name: "Mara Chen"}
	hr         = approval.Actor{ID: "hr-1", Name: "Devin Okafor"}
	accounting = approval.Actor{ID: "acc-1", Name: "Priya Nair"}
)

func newService(t *testing.T) (*approval.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.PutEmployee(context.Background(), identity.Employee{
		ID: "emp-1", Name: "Jon Ruiz", Position: "Engineer", Department: "Platform",
	}))

	ledger := budget.NewLedger(store, store)
	ledger.Now = func() time.Time {
		return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	}

	return approval.NewService(store, store, ledger, nil), store
}

func submitMedical(t *testing.T, svc *approval.Service, amount string) *benefit.Request {
	t.Helper()
	req, err := svc.Submit(context.Background(), approval.NewRequestInput{
		RequesterID: "emp-1",
		Type:        benefit.TypeMedical,
		Amount:      dec(amount),
	})
	require.NoError(t, err)
	return req
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_Benefit(t *testing.T) {
	// GIVEN: A 5000 medical claim, full annual budget available
	// WHEN: Submitting
	// THEN: The request is persisted in pending_manager with the breakdown
	//       and budget snapshot frozen in

	svc, _ := newService(t)
	req := submitMedical(t, svc, "5000")

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, benefit.StatusPendingManager, req.Status)
	assert.Equal(t, "Jon Ruiz", req.RequesterName)
	assert.Equal(t, "Platform", req.RequesterDepartment)
	assert.Equal(t, 1, req.Cycle)
	assert.True(t, req.Financials.VAT.Equal(dec("350")))
	assert.True(t, req.Financials.Withholding.Equal(dec("150")))
	assert.True(t, req.Financials.Net.Equal(dec("5200")))
	assert.True(t, req.Financials.BudgetRemaining.Equal(dec("5000")))
}

func TestSubmit_BudgetGate(t *testing.T) {
	// GIVEN: remaining glasses balance 2000
	// WHEN: Submitting a 2500 glasses request
	// THEN: BudgetExceededError, and no aggregate is persisted

	svc, store := newService(t)
	require.NoError(t, store.SetBudgetBalance(context.Background(), "emp-1", benefit.TypeGlasses, dec("2000")))

	_, err := svc.Submit(context.Background(), approval.NewRequestInput{
		RequesterID: "emp-1",
		Type:        benefit.TypeGlasses,
		Amount:      dec("1999"),
	})
	require.NoError(t, err, "within budget must pass")

	_, err = svc.Submit(context.Background(), approval.NewRequestInput{
		RequesterID: "emp-1",
		Type:        benefit.TypeGlasses,
		Amount:      dec("2500"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, benefit.ErrBudgetExceeded)

	var be *benefit.BudgetExceededError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.Remaining.Equal(dec("2000")))

	pending, err := store.LoadByStatus(context.Background(),
		[]benefit.Status{benefit.StatusPendingManager})
	require.NoError(t, err)
	assert.Len(t, pending, 1, "the rejected submission must not be persisted")
}

func TestSubmit_TrainingExemptFromBudgetGate(t *testing.T) {
	// Training over budget is not refused: the excess is split instead.
	svc, store := newService(t)
	require.NoError(t, store.SetBudgetBalance(context.Background(), "emp-1", benefit.TypeTraining, dec("8000")))

	req, err := svc.Submit(context.Background(), approval.NewRequestInput{
		RequesterID: "emp-1",
		Type:        benefit.TypeTraining,
		Amount:      dec("10000"),
	})
	require.NoError(t, err)

	assert.True(t, req.Financials.Excess.Equal(dec("2700")))
	assert.True(t, req.Financials.CompanyPay.Equal(dec("1350")))
	assert.True(t, req.Financials.EmployeePay.Equal(dec("1650")))
	assert.True(t, req.Financials.Net.Equal(dec("10700")))
	assert.True(t, req.Financials.BudgetRemaining.Equal(dec("8000")))
}

func TestSubmit_IdentityLookupFailureRefusesSubmission(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Submit(context.Background(), approval.NewRequestInput{
		RequesterID: "ghost",
		Type:        benefit.TypeMedical,
		Amount:      dec("100"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, benefit.ErrIdentityLookup)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   approval.NewRequestInput
	}{
		{"unknown type", approval.NewRequestInput{
			RequesterID: "emp-1", Type: "loan", Amount: dec("100")}},
		{"non-positive amount", approval.NewRequestInput{
			RequesterID: "emp-1", Type: benefit.TypeMedical, Amount: dec("0")}},
		{"negative amount", approval.NewRequestInput{
			RequesterID: "emp-1", Type: benefit.TypeMedical, Amount: dec("-50")}},
		{"over static cap", approval.NewRequestInput{
			RequesterID: "emp-1", Type: benefit.TypeWedding, Amount: dec("5001")}},
		{"funeral without sub-type", approval.NewRequestInput{
			RequesterID: "emp-1", Type: benefit.TypeFuneral, Amount: dec("1000")}},
		{"advance without department", approval.NewRequestInput{
			RequesterID: "emp-1", Type: benefit.TypeSalesAdvance,
			Details: benefit.Details{LineItems: []finance.LineItem{
				{Description: "samples", Amount: dec("100")}}}}},
		{"advance without line items", approval.NewRequestInput{
			RequesterID: "emp-1", Type: benefit.TypeSalesAdvance,
			Details: benefit.Details{Department: "Sales"}}},
		{"line item without amount", approval.NewRequestInput{
			RequesterID: "emp-1", Type: benefit.TypeSalesAdvance,
			Details: benefit.Details{Department: "Sales",
				LineItems: []finance.LineItem{{Description: "samples"}}}}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, c.in)
			require.Error(t, err)
			var ve *benefit.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestSubmit_AdvanceTotalsFromLineItems(t *testing.T) {
	// Two line items 1000 @ 5% and 2000 @ 0%: total 3000, tax informational.
	svc, _ := newService(t)

	req, err := svc.Submit(context.Background(), approval.NewRequestInput{
		RequesterID: "emp-1",
		Type:        benefit.TypeSalesAdvance,
		Details: benefit.Details{
			Department: "Sales",
			LineItems: []finance.LineItem{
				{Description: "venue", Amount: dec("1000"), TaxRate: dec("5")},
				{Description: "travel", Amount: dec("2000")},
			},
		},
	})
	require.NoError(t, err)

	assert.True(t, req.SubmittedAmount.Equal(dec("3000")))
	assert.True(t, req.Financials.Net.Equal(dec("3000")))
	require.Len(t, req.Details.LineItems, 2)
	assert.True(t, req.Details.LineItems[0].Tax.Equal(dec("50")))
	assert.True(t, req.Details.LineItems[1].Tax.IsZero())
}

// =============================================================================
// DECISIONS
// =============================================================================

func TestApply_FullChainToCompleted(t *testing.T) {
	svc, _ := newService(t)
	req := submitMedical(t, svc, "5000")
	ctx := context.Background()

	req2, err := svc.Apply(ctx, req.ID, benefit.RoleManager, benefit.DecisionApprove, manager, "")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusPendingHR, req2.Status)

	req3, err := svc.Apply(ctx, req.ID, benefit.RoleHR, benefit.DecisionApprove, hr, "")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusPendingAccounting, req3.Status)

	req4, err := svc.Apply(ctx, req.ID, benefit.RoleAccounting, benefit.DecisionApprove, accounting, "")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusCompleted, req4.Status)

	// Approval trail: three entries, same cycle, in chain order.
	require.Len(t, req4.Approvals, 3)
	assert.Equal(t, benefit.RoleManager, req4.Approvals[0].Role)
	assert.Equal(t, benefit.RoleHR, req4.Approvals[1].Role)
	assert.Equal(t, benefit.RoleAccounting, req4.Approvals[2].Role)
	for _, a := range req4.Approvals {
		assert.Equal(t, 1, a.Cycle)
	}

	// Financials set at submission survived the whole chain untouched.
	assert.True(t, req4.Financials.Net.Equal(req.Financials.Net))
	assert.True(t, req4.SubmittedAmount.Equal(req.SubmittedAmount))
}

func TestApply_RejectRequiresReason(t *testing.T) {
	svc, _ := newService(t)
	req := submitMedical(t, svc, "5000")
	ctx := context.Background()

	_, err := svc.Apply(ctx, req.ID, benefit.RoleManager, benefit.DecisionReject, manager, "")
	require.Error(t, err)
	var ve *benefit.ValidationError
	assert.ErrorAs(t, err, &ve)

	rejected, err := svc.Apply(ctx, req.ID, benefit.RoleManager, benefit.DecisionReject, manager, "missing receipts")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusRejectedManager, rejected.Status)
	assert.Equal(t, "missing receipts", rejected.Approvals[0].Notes)
}

func TestApply_StaleStateOnRace(t *testing.T) {
	// GIVEN: A request at pending_hr
	// WHEN: HR approves, then a second HR decision arrives for the same state
	// THEN: Exactly one succeeds; the loser observes a stale-state error

	svc, _ := newService(t)
	req := submitMedical(t, svc, "5000")
	ctx := context.Background()

	_, err := svc.Apply(ctx, req.ID, benefit.RoleManager, benefit.DecisionApprove, manager, "")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, req.ID, benefit.RoleHR, benefit.DecisionApprove, hr, "")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, req.ID, benefit.RoleHR, benefit.DecisionRevise, hr, "need itemized bill")
	require.Error(t, err)
	assert.True(t, benefit.IsStale(err))

	var stale *benefit.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, benefit.StatusPendingHR, stale.Expected)
	assert.Equal(t, benefit.StatusPendingAccounting, stale.Actual)
}

func TestApply_CompletedIsImmutable(t *testing.T) {
	svc, _ := newService(t)
	req := submitMedical(t, svc, "5000")
	ctx := context.Background()

	for _, step := range []struct {
		role  benefit.Role
		actor approval.Actor
	}{
		{benefit.RoleManager, manager},
		{benefit.RoleHR, hr},
		{benefit.RoleAccounting, accounting},
	} {
		_, err := svc.Apply(ctx, req.ID, step.role, benefit.DecisionApprove, step.actor, "")
		require.NoError(t, err)
	}

	// Any further decision by any role is refused.
	for _, role := range []benefit.Role{benefit.RoleManager, benefit.RoleHR, benefit.RoleAccounting} {
		_, err := svc.Apply(ctx, req.ID, role, benefit.DecisionApprove, accounting, "")
		require.Error(t, err)
		assert.True(t, benefit.IsStale(err))
	}

	final, err := svc.Store.LoadByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusCompleted, final.Status)
	assert.True(t, final.Financials.Net.Equal(req.Financials.Net))
	assert.Len(t, final.Approvals, 3)
}

func TestApply_RevisionCycle(t *testing.T) {
	// HR returns for revision; only the requester may resubmit; the new
	// cycle's entries accumulate after the old ones.
	svc, _ := newService(t)
	req := submitMedical(t, svc, "5000")
	ctx := context.Background()

	_, err := svc.Apply(ctx, req.ID, benefit.RoleManager, benefit.DecisionApprove, manager, "")
	require.NoError(t, err)
	revised, err := svc.Apply(ctx, req.ID, benefit.RoleHR, benefit.DecisionRevise, hr, "attach invoice")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusPendingRevision, revised.Status)

	_, err = svc.Apply(ctx, req.ID, benefit.RoleRequester, benefit.DecisionResubmit,
		approval.Actor{ID: "someone-else"}, "")
	require.Error(t, err, "only the requester may resubmit")

	resubmitted, err := svc.Apply(ctx, req.ID, benefit.RoleRequester, benefit.DecisionResubmit,
		approval.Actor{ID: "emp-1", Name: "Jon Ruiz"}, "")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusPendingManager, resubmitted.Status)
	assert.Equal(t, 2, resubmitted.Cycle)

	require.Len(t, resubmitted.Approvals, 3)
	assert.Equal(t, 1, resubmitted.Approvals[0].Cycle)
	assert.Equal(t, 1, resubmitted.Approvals[1].Cycle)
	assert.Equal(t, 2, resubmitted.Approvals[2].Cycle)

	// Financials were frozen at the original submission.
	assert.True(t, resubmitted.Financials.Net.Equal(req.Financials.Net))
}

func TestApply_UnknownRequest(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Apply(context.Background(), "req-missing",
		benefit.RoleManager, benefit.DecisionApprove, manager, "")
	assert.True(t, benefit.IsNotFound(err))
}

// =============================================================================
// BULK DECISIONS
// =============================================================================

func TestApplyBulk_IsolatesFailures(t *testing.T) {
	// GIVEN: Three requests at pending_accounting and one already completed
	// WHEN: Accounting bulk-approves all four
	// THEN: The completed one fails, the other three complete

	svc, _ := newService(t)
	ctx := context.Background()

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		req := submitMedical(t, svc, "100")
		_, err := svc.Apply(ctx, req.ID, benefit.RoleManager, benefit.DecisionApprove, manager, "")
		require.NoError(t, err)
		_, err = svc.Apply(ctx, req.ID, benefit.RoleHR, benefit.DecisionApprove, hr, "")
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}

	// One finishes ahead of the batch.
	_, err := svc.Apply(ctx, ids[1], benefit.RoleAccounting, benefit.DecisionApprove, accounting, "")
	require.NoError(t, err)

	outcomes := svc.ApplyBulk(ctx, ids, benefit.RoleAccounting, benefit.DecisionApprove, accounting, "")
	require.Len(t, outcomes, 4)

	byID := make(map[string]approval.Outcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.RequestID] = o
	}

	assert.False(t, byID[ids[1]].OK)
	assert.NotEmpty(t, byID[ids[1]].Reason)
	for _, id := range []string{ids[0], ids[2], ids[3]} {
		assert.True(t, byID[id].OK, "request %s must not be blocked by the stale one", id)
		assert.Equal(t, benefit.StatusCompleted, byID[id].Status)
	}
}

func TestApplyBulk_MissingIDReportedPerItem(t *testing.T) {
	svc, _ := newService(t)
	req := submitMedical(t, svc, "100")
	ctx := context.Background()

	outcomes := svc.ApplyBulk(ctx, []string{"req-missing", req.ID},
		benefit.RoleManager, benefit.DecisionApprove, manager, "")

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].OK)
	assert.True(t, outcomes[1].OK)
	assert.Equal(t, benefit.StatusPendingHR, outcomes[1].Status)
}

// =============================================================================
// DOCUMENT ATTACHMENT
// =============================================================================

type stubRenderer struct {
	ref string
	err error
}

func (r *stubRenderer) Render(req *benefit.Request) (string, error) { return r.ref, r.err }

func TestSubmit_AttachesDocumentReference(t *testing.T) {
	svc, _ := newService(t)
	svc.Documents = &stubRenderer{ref: "docs/req-000001.pdf"}

	req := submitMedical(t, svc, "5000")
	assert.Equal(t, "docs/req-000001.pdf", req.DocumentURL)
}

func TestSubmit_DocumentFailureDoesNotFailSubmission(t *testing.T) {
	svc, _ := newService(t)
	svc.Documents = &stubRenderer{err: errors.New("renderer down")}

	req := submitMedical(t, svc, "5000")
	assert.Empty(t, req.DocumentURL)
	assert.Equal(t, benefit.StatusPendingManager, req.Status)
}
