/*
store.go - Persistence interface for request aggregates

PURPOSE:
  Defines the contract between the approval lifecycle and the database.
  Implementations: store/sqlite (production), store/memory (tests/dev).

CONTRACT:
  - Save inserts a new aggregate, assigns its id, and returns the stored
    copy at version 1.
  - Update writes an existing aggregate with compare-and-set on Version:
    a version mismatch returns an error wrapping ErrStaleState, never a
    silent overwrite. Approval entries are append-only; an update persists
    only entries beyond those already stored.
  - Money fields round-trip as fixed-point text, never binary float.
  - There is no Delete. Terminal requests are retained for reporting.
*/
package benefit

import "context"

// Store persists request aggregates.
type Store interface {
	// Save inserts a new request and returns the stored copy with id and
	// version assigned.
	Save(ctx context.Context, req *Request) (*Request, error)

	// Update persists changes to an existing request. Fails with
	// ErrStaleState if the persisted version differs from req.Version,
	// ErrNotFound if the id is unknown.
	Update(ctx context.Context, req *Request) (*Request, error)

	// LoadByID returns the current persisted aggregate, or ErrNotFound.
	LoadByID(ctx context.Context, id string) (*Request, error)

	// LoadByStatus returns all requests in any of the given statuses,
	// ordered by creation time. Used by approval queues and reports.
	LoadByStatus(ctx context.Context, statuses []Status) ([]*Request, error)
}
