/*
Package approval orchestrates the request lifecycle: submission into the
approval chain and every decision an approver role applies afterwards.

PURPOSE:
  Submission assembles the aggregate (identity lookup, one budget read,
  financial computation), validates the preconditions, and persists it in
  pending_manager. Each later decision re-reads current state, validates
  it against the actor's role, applies the one legal transition, and
  persists the result. Financials set at submission are never recomputed
  by an approver step.

CONCURRENCY GUARD:
  Apply's fresh re-read plus expected-state check is the primary guard
  against two approvers racing on the same request: the loser of the race
  observes a StaleStateError and must re-fetch, never retry blindly. The
  store's compare-and-set on Version closes the remaining window between
  the re-read and the write.

FAILURE SEMANTICS:
  A submission or decision that fails validation or I/O persists nothing.
  Each action performs at most one state-changing write per request, so
  partial writes cannot occur. After a failed write the caller's copy is
  not authoritative; truth lives in the store.

SEE ALSO:
  - benefit/machine.go: The transition table Apply consults
  - finance/finance.go: The one place submission math happens
*/
package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/budget"
	"github.com/warp/benefit-engine/finance"
	"github.com/warp/benefit-engine/identity"
)

// =============================================================================
// SERVICE
// =============================================================================

// DocumentRenderer produces the request summary document after submission
// and returns an opaque reference. Optional; rendering failures never fail
// the submission itself.
type DocumentRenderer interface {
	Render(req *benefit.Request) (string, error)
}

// Actor identifies who is applying a decision.
type Actor struct {
	ID   string
	Name string
}

// Service wires the request lifecycle together.
type Service struct {
	Store     benefit.Store
	Directory identity.Directory
	Budget    *budget.Ledger
	Documents DocumentRenderer
	Logger    *zap.Logger

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewService(store benefit.Store, dir identity.Directory, ledger *budget.Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:     store,
		Directory: dir,
		Budget:    ledger,
		Logger:    logger,
		Now:       time.Now,
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// NewRequestInput is a submission before validation and computation.
type NewRequestInput struct {
	RequesterID string
	Type        benefit.Type

	// Amount is the pre-tax total for benefit categories. Ignored for
	// advance/clearing categories, whose total comes from the line items.
	Amount      decimal.Decimal
	VATIncluded bool

	Details     benefit.Details
	Attachments []string
}

// Submit validates the preconditions, performs the one budget read, computes
// the financial breakdown, and persists the request in pending_manager.
func (s *Service) Submit(ctx context.Context, in NewRequestInput) (*benefit.Request, error) {
	if !in.Type.Valid() {
		return nil, &benefit.ValidationError{Field: "type", Message: fmt.Sprintf("unknown request type %q", in.Type)}
	}

	// Identity must resolve before anything else: approval records and the
	// generated document both need requester name and department.
	emp, err := s.Directory.Lookup(ctx, in.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: requester %s: %v", benefit.ErrIdentityLookup, in.RequesterID, err)
	}

	if err := validateDetails(in); err != nil {
		return nil, err
	}

	now := s.Now()
	req := &benefit.Request{
		Type:                in.Type,
		Status:              benefit.StatusPendingManager,
		RequesterID:         emp.ID,
		RequesterName:       emp.Name,
		RequesterDepartment: emp.Department,
		Details:             in.Details,
		Attachments:         in.Attachments,
		Cycle:               1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if in.Type.IsAdvance() {
		if err := s.assembleAdvance(req, in); err != nil {
			return nil, err
		}
	} else {
		if err := s.assembleBenefit(ctx, req, in); err != nil {
			return nil, err
		}
	}

	saved, err := s.Store.Save(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}

	s.Logger.Info("request submitted",
		zap.String("request_id", saved.ID),
		zap.String("type", string(saved.Type)),
		zap.String("requester_id", saved.RequesterID),
		zap.String("net_amount", saved.Financials.Net.String()))

	return s.renderDocument(ctx, saved), nil
}

// assembleBenefit runs the budget gate and freezes the benefit breakdown.
func (s *Service) assembleBenefit(ctx context.Context, req *benefit.Request, in NewRequestInput) error {
	if !in.Amount.IsPositive() {
		return &benefit.ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}

	if limit, ok := budget.LimitFor(in.Type); ok && in.Amount.GreaterThan(limit.Amount) {
		return &benefit.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("amount %s exceeds the %s limit of %s", in.Amount, in.Type, limit.Amount),
		}
	}

	// The single budget read for this submission. The result is frozen into
	// the aggregate and never re-queried by an approval step.
	remaining, err := s.Budget.Remaining(ctx, req.RequesterID, in.Type)
	if err != nil {
		return fmt.Errorf("remaining budget: %w", err)
	}

	if in.Type == benefit.TypeTraining {
		// Training is exempt from the hard budget gate: exceeding the
		// running budget splits the excess instead of refusing.
		req.SubmittedAmount = in.Amount
		req.Financials = benefit.FromBreakdown(
			finance.ComputeTraining(in.Amount, in.VATIncluded, remaining),
			in.VATIncluded, remaining)
		return nil
	}

	if in.Amount.GreaterThan(remaining) {
		return &benefit.BudgetExceededError{Type: in.Type, Requested: in.Amount, Remaining: remaining}
	}

	req.SubmittedAmount = in.Amount
	req.Financials = benefit.FromBreakdown(
		finance.ComputeBenefit(in.Amount, in.VATIncluded),
		in.VATIncluded, remaining)
	return nil
}

// assembleAdvance totals the line items; tax is informational only.
func (s *Service) assembleAdvance(req *benefit.Request, in NewRequestInput) error {
	total := finance.ComputeClearingTotal(in.Details.LineItems)
	req.Details.LineItems = total.Items
	req.SubmittedAmount = total.Total
	req.Financials = benefit.Financials{
		Gross: total.Total,
		Net:   total.Total,
	}
	return nil
}

func validateDetails(in NewRequestInput) error {
	if in.Type == benefit.TypeFuneral && !in.Details.FuneralSubType.Valid() {
		return &benefit.ValidationError{Field: "funeral_sub_type", Message: "a funeral sub-type must be chosen"}
	}

	if in.Type.IsAdvance() {
		if in.Details.Department == "" {
			return &benefit.ValidationError{Field: "department", Message: "advance requests must name a department"}
		}
		if len(in.Details.LineItems) == 0 {
			return &benefit.ValidationError{Field: "line_items", Message: "at least one line item is required"}
		}
		for i, item := range in.Details.LineItems {
			if item.Description == "" {
				return &benefit.ValidationError{
					Field:   fmt.Sprintf("line_items[%d].description", i),
					Message: "line item description is required",
				}
			}
			if !item.Amount.IsPositive() {
				return &benefit.ValidationError{
					Field:   fmt.Sprintf("line_items[%d].amount", i),
					Message: "line item amount must be greater than zero",
				}
			}
		}
	}
	return nil
}

// renderDocument attaches the generated summary document if a renderer is
// configured. Document failures are logged, never surfaced: the request is
// already persisted and valid.
func (s *Service) renderDocument(ctx context.Context, req *benefit.Request) *benefit.Request {
	if s.Documents == nil {
		return req
	}

	ref, err := s.Documents.Render(req)
	if err != nil {
		s.Logger.Warn("document generation failed",
			zap.String("request_id", req.ID), zap.Error(err))
		return req
	}

	req.DocumentURL = ref
	updated, err := s.Store.Update(ctx, req)
	if err != nil {
		s.Logger.Warn("attaching document reference failed",
			zap.String("request_id", req.ID), zap.Error(err))
		return req
	}
	return updated
}

// =============================================================================
// DECISIONS
// =============================================================================

// Apply executes one decision by one role on one request.
//
// The persisted status is re-read fresh, never taken from a cached copy: a
// decision against a request that moved on observes a StaleStateError and
// the caller must re-fetch and re-display, not retry.
func (s *Service) Apply(ctx context.Context, requestID string, role benefit.Role, decision benefit.Decision, actor Actor, reason string) (*benefit.Request, error) {
	expected, ok := benefit.ExpectedStatus(role)
	if !ok {
		return nil, &benefit.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}

	if decision.RequiresReason() && reason == "" {
		return nil, &benefit.ValidationError{Field: "reason", Message: fmt.Sprintf("a reason is required to %s", decision)}
	}

	fresh, err := s.Store.LoadByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// A completed request is immutable regardless of who asks; any other
	// mismatch means the request moved since the actor last looked.
	if fresh.Status != expected {
		return nil, &benefit.StaleStateError{RequestID: requestID, Expected: expected, Actual: fresh.Status}
	}

	next, err := benefit.Next(fresh.Status, role, decision)
	if err != nil {
		return nil, err
	}

	if role == benefit.RoleRequester && actor.ID != fresh.RequesterID {
		return nil, &benefit.ValidationError{Field: "actor", Message: "only the requester may resubmit"}
	}

	now := s.Now()
	cycle := fresh.Cycle
	if decision == benefit.DecisionResubmit {
		// A resubmission opens a new approval cycle; prior entries remain.
		cycle++
		fresh.Cycle = cycle
	}

	fresh.Approvals = append(fresh.Approvals, benefit.Approval{
		Role:         role,
		Decision:     decision,
		ApproverID:   actor.ID,
		ApproverName: actor.Name,
		Cycle:        cycle,
		Notes:        reason,
		Timestamp:    now,
	})
	fresh.Status = next
	fresh.UpdatedAt = now

	updated, err := s.Store.Update(ctx, fresh)
	if err != nil {
		if errors.Is(err, benefit.ErrStaleState) {
			return nil, err
		}
		return nil, fmt.Errorf("persist decision: %w", err)
	}

	s.Logger.Info("decision applied",
		zap.String("request_id", requestID),
		zap.String("role", string(role)),
		zap.String("decision", string(decision)),
		zap.String("status", string(updated.Status)))

	return updated, nil
}

// =============================================================================
// BULK DECISIONS
// =============================================================================

// Outcome is the per-request result of a bulk decision.
type Outcome struct {
	RequestID string
	OK        bool
	Status    benefit.Status
	Reason    string // failure reason when !OK
}

// ApplyBulk applies the same decision to every id independently. The
// requests are unrelated business entities: one failing its precondition
// (already completed, moved on, missing) neither blocks nor rolls back the
// others.
func (s *Service) ApplyBulk(ctx context.Context, requestIDs []string, role benefit.Role, decision benefit.Decision, actor Actor, reason string) []Outcome {
	outcomes := make([]Outcome, 0, len(requestIDs))

	for _, id := range requestIDs {
		updated, err := s.Apply(ctx, id, role, decision, actor, reason)
		if err != nil {
			outcomes = append(outcomes, Outcome{RequestID: id, OK: false, Reason: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{RequestID: id, OK: true, Status: updated.Status})
	}

	return outcomes
}
