/*
machine.go - Request status state machine

PURPOSE:
  Validates every status transition a request may undergo. The graph is
  encoded as an explicit transition table keyed by (status, role, decision);
  any triple not present in the table is illegal. Status is a closed type,
  so a mistyped status is a construction-time error, not a silent filter
  mismatch.

THE GRAPH:
  pending_manager    --manager  approve--> pending_hr
  pending_manager    --manager  reject --> rejected_manager    (terminal)
  pending_hr         --hr       approve--> pending_accounting
  pending_hr         --hr       reject --> rejected_hr         (terminal)
  pending_hr         --hr       revise --> pending_revision
  pending_revision   --requester resubmit--> pending_manager   (new cycle)
  pending_accounting --accounting approve--> completed         (terminal)
  pending_accounting --accounting reject --> rejected_accounting (terminal)

  No skipping roles. No transition out of a terminal state. Ever.

SEE ALSO:
  - approval/service.go: Wraps Next with fresh-read preconditions
*/
package benefit

// =============================================================================
// STATUS
// =============================================================================

// Status is the approval state of a request. Exactly one value at any time.
type Status string

const (
	StatusPendingManager     Status = "pending_manager"
	StatusPendingHR          Status = "pending_hr"
	StatusPendingAccounting  Status = "pending_accounting"
	StatusPendingRevision    Status = "pending_revision"
	StatusCompleted          Status = "completed"
	StatusRejectedManager    Status = "rejected_manager"
	StatusRejectedHR         Status = "rejected_hr"
	StatusRejectedAccounting Status = "rejected_accounting"
)

var allStatuses = map[Status]bool{
	StatusPendingManager: true, StatusPendingHR: true,
	StatusPendingAccounting: true, StatusPendingRevision: true,
	StatusCompleted: true, StatusRejectedManager: true,
	StatusRejectedHR: true, StatusRejectedAccounting: true,
}

// Valid reports whether s is a member of the closed set.
func (s Status) Valid() bool { return allStatuses[s] }

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejectedManager, StatusRejectedHR, StatusRejectedAccounting:
		return true
	}
	return false
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type transitionKey struct {
	From     Status
	Role     Role
	Decision Decision
}

// transitions is the single definition of the legal graph. Nothing else in
// the system decides what follows what.
var transitions = map[transitionKey]Status{
	{StatusPendingManager, RoleManager, DecisionApprove}: StatusPendingHR,
	{StatusPendingManager, RoleManager, DecisionReject}:  StatusRejectedManager,

	{StatusPendingHR, RoleHR, DecisionApprove}: StatusPendingAccounting,
	{StatusPendingHR, RoleHR, DecisionReject}:  StatusRejectedHR,
	{StatusPendingHR, RoleHR, DecisionRevise}:  StatusPendingRevision,

	{StatusPendingRevision, RoleRequester, DecisionResubmit}: StatusPendingManager,

	{StatusPendingAccounting, RoleAccounting, DecisionApprove}: StatusCompleted,
	{StatusPendingAccounting, RoleAccounting, DecisionReject}:  StatusRejectedAccounting,
}

// expectedStatus maps each role to the one pending state it may act on.
var expectedStatus = map[Role]Status{
	RoleManager:    StatusPendingManager,
	RoleHR:         StatusPendingHR,
	RoleAccounting: StatusPendingAccounting,
	RoleRequester:  StatusPendingRevision,
}

// ExpectedStatus returns the pending state a role is allowed to act on.
func ExpectedStatus(role Role) (Status, bool) {
	s, ok := expectedStatus[role]
	return s, ok
}

// Next resolves the transition for (from, role, decision). Any triple not in
// the table is rejected with an IllegalTransitionError; the error message
// distinguishes terminal states from mere wrong turns.
func Next(from Status, role Role, decision Decision) (Status, error) {
	if from.Terminal() {
		return "", &IllegalTransitionError{From: from, Role: role, Decision: decision, terminal: true}
	}
	next, ok := transitions[transitionKey{from, role, decision}]
	if !ok {
		return "", &IllegalTransitionError{From: from, Role: role, Decision: decision}
	}
	return next, nil
}
