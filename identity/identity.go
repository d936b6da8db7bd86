// Package identity defines the requester lookup consumed at submission
// time. Resolution must succeed before a request may enter the approval
// chain: requester name and department feed every downstream approval
// record and the generated document, so a failed lookup refuses the
// submission rather than defaulting.
package identity

import "context"

// Employee is the resolved requester record.
type Employee struct {
	ID         string
	Name       string
	Position   string
	Department string
}

// Directory resolves an employee id to its identity record.
type Directory interface {
	// Lookup returns the employee record or an error. A nil error implies
	// every field the approval chain needs is populated.
	Lookup(ctx context.Context, employeeID string) (*Employee, error)
}
