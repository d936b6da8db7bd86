/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  benefit.Store:          Request aggregate persistence
  identity.Directory:     Employee lookups
  budget.CompletedReader: Period sums of completed requests
  budget.BalanceReader:   Stored per-employee budget balances

MONEY STORAGE:
  Every money column is TEXT holding a fixed-point decimal string. Values
  round-trip bit-for-bit; binary floating point never touches storage.

APPROVALS:
  The approvals table is append-only. An Update persists only the trail
  entries beyond those already stored; nothing is rewritten or deleted.

OPTIMISTIC CONCURRENCY:
  Updates are compare-and-set on the version column:

    UPDATE requests SET ... , version = version + 1
    WHERE id = ? AND version = ?

  Zero rows affected means another writer got there first; the caller
  receives an error wrapping benefit.ErrStaleState.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  one writer at a time.

SEE ALSO:
  - benefit/store.go: Interface contract
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/identity"
)

const timeFormat = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		request_type TEXT NOT NULL,
		status TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		requester_name TEXT NOT NULL,
		requester_department TEXT NOT NULL,
		submitted_amount TEXT NOT NULL,
		vat_included INTEGER NOT NULL DEFAULT 0,
		gross_amount TEXT NOT NULL,
		vat TEXT NOT NULL,
		withholding_tax TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		excess_amount TEXT NOT NULL,
		company_payment TEXT NOT NULL,
		employee_payment TEXT NOT NULL,
		budget_remaining TEXT NOT NULL,
		details_json TEXT NOT NULL,
		attachments_json TEXT NOT NULL,
		document_url TEXT NOT NULL DEFAULT '',
		cycle INTEGER NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_requests_requester_type
		ON requests(requester_id, request_type, status);

	-- Append-only approval trail
	CREATE TABLE IF NOT EXISTS approvals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		role TEXT NOT NULL,
		decision TEXT NOT NULL,
		approver_id TEXT NOT NULL,
		approver_name TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (request_id) REFERENCES requests(id)
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_request
		ON approvals(request_id, id);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL
	);

	-- Stored running balances (training, glasses/dental)
	CREATE TABLE IF NOT EXISTS budget_balances (
		employee_id TEXT NOT NULL,
		benefit_type TEXT NOT NULL,
		remaining TEXT NOT NULL,
		PRIMARY KEY (employee_id, benefit_type)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) Save(ctx context.Context, req *benefit.Request) (*benefit.Request, error) {
	stored := req.Clone()
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	stored.Version = 1

	detailsJSON, attachmentsJSON, err := marshalPayload(stored)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requests (
			id, request_type, status,
			requester_id, requester_name, requester_department,
			submitted_amount, vat_included,
			gross_amount, vat, withholding_tax, net_amount,
			excess_amount, company_payment, employee_payment, budget_remaining,
			details_json, attachments_json, document_url,
			cycle, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, string(stored.Type), string(stored.Status),
		stored.RequesterID, stored.RequesterName, stored.RequesterDepartment,
		stored.SubmittedAmount.String(), boolToInt(stored.Financials.VATIncluded),
		stored.Financials.Gross.String(), stored.Financials.VAT.String(),
		stored.Financials.Withholding.String(), stored.Financials.Net.String(),
		stored.Financials.Excess.String(), stored.Financials.CompanyPay.String(),
		stored.Financials.EmployeePay.String(), stored.Financials.BudgetRemaining.String(),
		detailsJSON, attachmentsJSON, stored.DocumentURL,
		stored.Cycle, stored.Version,
		stored.CreatedAt.UTC().Format(timeFormat), stored.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	if err := s.appendApprovals(ctx, tx, stored, 0); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, req *benefit.Request) (*benefit.Request, error) {
	stored := req.Clone()

	detailsJSON, attachmentsJSON, err := marshalPayload(stored)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE requests SET
			status = ?, details_json = ?, attachments_json = ?, document_url = ?,
			cycle = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(stored.Status), detailsJSON, attachmentsJSON, stored.DocumentURL,
		stored.Cycle, stored.UpdatedAt.UTC().Format(timeFormat),
		stored.ID, stored.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish a lost race from a missing row.
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM requests WHERE id = ?`, stored.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return nil, benefit.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("update request %s: version %d, have %d: %w",
			stored.ID, stored.Version, current, benefit.ErrStaleState)
	}

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approvals WHERE request_id = ?`, stored.ID).Scan(&existing); err != nil {
		return nil, err
	}
	if err := s.appendApprovals(ctx, tx, stored, existing); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	stored.Version++
	return stored, nil
}

// appendApprovals inserts only the trail entries beyond those already stored.
func (s *Store) appendApprovals(ctx context.Context, tx *sql.Tx, req *benefit.Request, from int) error {
	for i := from; i < len(req.Approvals); i++ {
		a := req.Approvals[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO approvals (request_id, role, decision, approver_id, approver_name, cycle, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, string(a.Role), string(a.Decision),
			a.ApproverID, a.ApproverName, a.Cycle, a.Notes,
			a.Timestamp.UTC().Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
	}
	return nil
}

const requestColumns = `
	id, request_type, status,
	requester_id, requester_name, requester_department,
	submitted_amount, vat_included,
	gross_amount, vat, withholding_tax, net_amount,
	excess_amount, company_payment, employee_payment, budget_remaining,
	details_json, attachments_json, document_url,
	cycle, version, created_at, updated_at`

func (s *Store) LoadByID(ctx context.Context, id string) (*benefit.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+requestColumns+` FROM requests WHERE id = ?`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, benefit.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadApprovals(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) LoadByStatus(ctx context.Context, statuses []benefit.Status) ([]*benefit.Request, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]any, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT`+requestColumns+` FROM requests WHERE status IN (`+placeholders+`) ORDER BY created_at, id`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*benefit.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, req := range out {
		if err := s.loadApprovals(ctx, req); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadApprovals(ctx context.Context, req *benefit.Request) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, decision, approver_id, approver_name, cycle, notes, created_at
		FROM approvals WHERE request_id = ? ORDER BY id`, req.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a benefit.Approval
		var role, decision, createdAt string
		if err := rows.Scan(&role, &decision, &a.ApproverID, &a.ApproverName, &a.Cycle, &a.Notes, &createdAt); err != nil {
			return err
		}
		a.Role = benefit.Role(role)
		a.Decision = benefit.Decision(decision)
		a.Timestamp, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return fmt.Errorf("parse approval timestamp: %w", err)
		}
		req.Approvals = append(req.Approvals, a)
	}
	return rows.Err()
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type scannable interface {
	Scan(dest ...any) error
}

func scanRequest(row scannable) (*benefit.Request, error) {
	var req benefit.Request
	var (
		reqType, status                                    string
		submitted, gross, vat, withholding, net            string
		excess, companyPay, employeePay, budgetRemaining   string
		vatIncluded                                        int
		detailsJSON, attachmentsJSON, createdAt, updatedAt string
	)

	err := row.Scan(
		&req.ID, &reqType, &status,
		&req.RequesterID, &req.RequesterName, &req.RequesterDepartment,
		&submitted, &vatIncluded,
		&gross, &vat, &withholding, &net,
		&excess, &companyPay, &employeePay, &budgetRemaining,
		&detailsJSON, &attachmentsJSON, &req.DocumentURL,
		&req.Cycle, &req.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Type = benefit.Type(reqType)
	req.Status = benefit.Status(status)
	req.Financials.VATIncluded = vatIncluded != 0

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&req.SubmittedAmount, submitted},
		{&req.Financials.Gross, gross},
		{&req.Financials.VAT, vat},
		{&req.Financials.Withholding, withholding},
		{&req.Financials.Net, net},
		{&req.Financials.Excess, excess},
		{&req.Financials.CompanyPay, companyPay},
		{&req.Financials.EmployeePay, employeePay},
		{&req.Financials.BudgetRemaining, budgetRemaining},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("parse money value %q: %w", f.src, err)
		}
		*f.dst = d
	}

	if err := json.Unmarshal([]byte(detailsJSON), &req.Details); err != nil {
		return nil, fmt.Errorf("parse details: %w", err)
	}
	if err := json.Unmarshal([]byte(attachmentsJSON), &req.Attachments); err != nil {
		return nil, fmt.Errorf("parse attachments: %w", err)
	}

	if req.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if req.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &req, nil
}

func marshalPayload(req *benefit.Request) (details string, attachments string, err error) {
	d, err := json.Marshal(req.Details)
	if err != nil {
		return "", "", fmt.Errorf("marshal details: %w", err)
	}
	if req.Attachments == nil {
		req.Attachments = []string{}
	}
	a, err := json.Marshal(req.Attachments)
	if err != nil {
		return "", "", fmt.Errorf("marshal attachments: %w", err)
	}
	return string(d), string(a), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// IDENTITY DIRECTORY
// =============================================================================

func (s *Store) Lookup(ctx context.Context, employeeID string) (*identity.Employee, error) {
	var emp identity.Employee
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, position, department FROM employees WHERE id = ?`, employeeID).
		Scan(&emp.ID, &emp.Name, &emp.Position, &emp.Department)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("employee %s not found", employeeID)
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// PutEmployee inserts or replaces an employee record.
func (s *Store) PutEmployee(ctx context.Context, emp identity.Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, position, department) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			position = excluded.position, department = excluded.department`,
		emp.ID, emp.Name, emp.Position, emp.Department)
	return err
}

// =============================================================================
// BUDGET READERS
// =============================================================================

func (s *Store) BudgetBalance(ctx context.Context, employeeID string, t benefit.Type) (decimal.Decimal, bool, error) {
	var remaining string
	err := s.db.QueryRowContext(ctx,
		`SELECT remaining FROM budget_balances WHERE employee_id = ? AND benefit_type = ?`,
		employeeID, string(t)).Scan(&remaining)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	d, err := decimal.NewFromString(remaining)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse balance %q: %w", remaining, err)
	}
	return d, true, nil
}

// SetBudgetBalance inserts or replaces a stored balance row.
func (s *Store) SetBudgetBalance(ctx context.Context, employeeID string, t benefit.Type, remaining decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_balances (employee_id, benefit_type, remaining) VALUES (?, ?, ?)
		ON CONFLICT(employee_id, benefit_type) DO UPDATE SET remaining = excluded.remaining`,
		employeeID, string(t), remaining.String())
	return err
}

// CompletedTotal sums net amounts of completed requests in [from, to).
// Summation happens in Go on the decimal values: money columns are
// fixed-point text, never coerced to float by SQL aggregation.
func (s *Store) CompletedTotal(ctx context.Context, employeeID string, t benefit.Type, from, to time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT net_amount FROM requests
		WHERE requester_id = ? AND request_type = ? AND status = ?
		  AND created_at >= ? AND created_at < ?`,
		employeeID, string(t), string(benefit.StatusCompleted),
		from.UTC().Format(timeFormat), to.UTC().Format(timeFormat))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var net string
		if err := rows.Scan(&net); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(net)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse net amount %q: %w", net, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}
