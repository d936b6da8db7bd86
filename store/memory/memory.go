// Package memory provides in-memory implementations of the storage
// interfaces (for testing/dev). One Store satisfies benefit.Store,
// identity.Directory, budget.CompletedReader, and budget.BalanceReader.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/identity"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	requests  map[string]*benefit.Request
	employees map[string]identity.Employee
	balances  map[balanceKey]decimal.Decimal
	seq       int
}

type balanceKey struct {
	EmployeeID string
	Type       benefit.Type
}

func New() *Store {
	return &Store{
		requests:  make(map[string]*benefit.Request),
		employees: make(map[string]identity.Employee),
		balances:  make(map[balanceKey]decimal.Decimal),
	}
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) Save(_ context.Context, req *benefit.Request) (*benefit.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := req.Clone()
	if stored.ID == "" {
		s.seq++
		stored.ID = fmt.Sprintf("req-%06d", s.seq)
	}
	if _, exists := s.requests[stored.ID]; exists {
		return nil, fmt.Errorf("request %s already exists", stored.ID)
	}
	stored.Version = 1

	s.requests[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) Update(_ context.Context, req *benefit.Request) (*benefit.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[req.ID]
	if !ok {
		return nil, benefit.ErrNotFound
	}
	if current.Version != req.Version {
		return nil, fmt.Errorf("update request %s: version %d, have %d: %w",
			req.ID, req.Version, current.Version, benefit.ErrStaleState)
	}

	stored := req.Clone()
	stored.Version = current.Version + 1
	s.requests[req.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) LoadByID(_ context.Context, id string) (*benefit.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, benefit.ErrNotFound
	}
	return req.Clone(), nil
}

func (s *Store) LoadByStatus(_ context.Context, statuses []benefit.Status) ([]*benefit.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[benefit.Status]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var out []*benefit.Request
	for _, req := range s.requests {
		if wanted[req.Status] {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// IDENTITY DIRECTORY
// =============================================================================

func (s *Store) PutEmployee(_ context.Context, emp identity.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[emp.ID] = emp
	return nil
}

func (s *Store) Lookup(_ context.Context, employeeID string) (*identity.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[employeeID]
	if !ok {
		return nil, fmt.Errorf("employee %s not found", employeeID)
	}
	return &emp, nil
}

// =============================================================================
// BUDGET READERS
// =============================================================================

func (s *Store) SetBudgetBalance(_ context.Context, employeeID string, t benefit.Type, remaining decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{employeeID, t}] = remaining
	return nil
}

func (s *Store) BudgetBalance(_ context.Context, employeeID string, t benefit.Type) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	remaining, ok := s.balances[balanceKey{employeeID, t}]
	if !ok {
		return decimal.Zero, false, nil
	}
	return remaining, true, nil
}

func (s *Store) CompletedTotal(_ context.Context, employeeID string, t benefit.Type, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, req := range s.requests {
		if req.Status != benefit.StatusCompleted || req.RequesterID != employeeID || req.Type != t {
			continue
		}
		if req.CreatedAt.Before(from) || !req.CreatedAt.Before(to) {
			continue
		}
		total = total.Add(req.Financials.Net)
	}
	return total, nil
}
