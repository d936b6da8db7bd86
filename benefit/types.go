// Package benefit defines the request aggregate, the closed set of request
// categories, and the approval status state machine shared by every category.
package benefit

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Type identifies one request category. The set is closed: eight benefit
// categories plus four advance/clearing categories.
type Type string

const (
	TypeWedding    Type = "wedding"
	TypeTraining   Type = "training"
	TypeChildbirth Type = "childbirth"
	TypeFuneral    Type = "funeral"
	TypeGlasses    Type = "glasses"
	TypeDental     Type = "dental"
	TypeFitness    Type = "fitness"
	TypeMedical    Type = "medical"

	TypeSalesAdvance    Type = "sales_advance"
	TypeGeneralAdvance  Type = "general_advance"
	TypeSalesClearing   Type = "sales_clearing"
	TypeGeneralClearing Type = "general_clearing"
)

var allTypes = map[Type]bool{
	TypeWedding: true, TypeTraining: true, TypeChildbirth: true,
	TypeFuneral: true, TypeGlasses: true, TypeDental: true,
	TypeFitness: true, TypeMedical: true,
	TypeSalesAdvance: true, TypeGeneralAdvance: true,
	TypeSalesClearing: true, TypeGeneralClearing: true,
}

// Valid reports whether t is a member of the closed set.
func (t Type) Valid() bool { return allTypes[t] }

// IsAdvance reports whether t is an itemized advance/clearing category.
func (t Type) IsAdvance() bool {
	switch t {
	case TypeSalesAdvance, TypeGeneralAdvance, TypeSalesClearing, TypeGeneralClearing:
		return true
	}
	return false
}

// IsBenefit reports whether t is a welfare benefit category.
func (t Type) IsBenefit() bool { return t.Valid() && !t.IsAdvance() }

// FuneralSubType must be chosen before a funeral request can be submitted.
type FuneralSubType string

const (
	FuneralEmployeeFamily FuneralSubType = "employee_family"
	FuneralFatherMother   FuneralSubType = "father_mother"
	FuneralSpouseChild    FuneralSubType = "spouse_child"
)

func (f FuneralSubType) Valid() bool {
	switch f {
	case FuneralEmployeeFamily, FuneralFatherMother, FuneralSpouseChild:
		return true
	}
	return false
}

// =============================================================================
// ROLES AND DECISIONS
// =============================================================================

// Role is the actor category for a transition. The approval chain is the
// fixed sequence manager -> hr -> accounting; the requester only acts to
// resubmit a request returned for revision.
type Role string

const (
	RoleManager    Role = "manager"
	RoleHR         Role = "hr"
	RoleAccounting Role = "accounting"
	RoleRequester  Role = "requester"
)

// Decision is what an actor does to a request in their queue.
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionRevise   Decision = "revise"
	DecisionResubmit Decision = "resubmit"
)

// RequiresReason reports whether the decision must carry a non-empty reason.
// Rejections and revision requests do; approvals do not.
func (d Decision) RequiresReason() bool {
	return d == DecisionReject || d == DecisionRevise
}
