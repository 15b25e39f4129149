/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces of the leave engine
  (EntitlementStore, RequestStore, CalendarStore, EmployeeStore,
  CatalogStore) plus batch-run records. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

GUARDED LEDGER UPDATES:
  Apply() is the only write path to the entitlements table. It runs a
  single transaction that:
  1. Inserts the mutation's idempotency key (UNIQUE; replays abort here)
  2. Applies the delta with a conditional UPDATE whose WHERE clause
     re-checks the balance invariant (available >= 0, pending >= 0)
  3. Appends the Adjustment audit row
  A zero-row UPDATE under step 2 means a concurrent writer consumed
  the balance first; the caller gets InsufficientBalanceError.

KEY TABLES:
  entitlements:     One balance row per (employee, leave_type, year)
  ledger_mutations: Unique idempotency keys, one per applied mutation
  adjustments:      Append-only audit of every ledger change
  requests:         Leave requests with approval steps as JSON
  leave_types, leave_policies, calendars, public_holidays,
  blocked_periods, employees, batch_runs: reference and job data

DAY COLUMNS:
  Day quantities are REAL so the guard arithmetic runs inside the
  UPDATE. Bookable quantities are multiples of 0.5 and exact in
  binary; the un-rounded accrued_actual is display-only and never
  guarded.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := leave.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/entitlement.go: EntitlementStore contract and guards
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/luminahr/leave-engine/leave"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees (profile projection; the engine never writes these
	-- outside of seeding)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		gender TEXT,
		employment_type TEXT,
		hire_date TEXT NOT NULL,
		manager_id TEXT,
		active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Leave types (reference data, deactivated not deleted)
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		category TEXT,
		paid BOOLEAN DEFAULT TRUE,
		deductible BOOLEAN DEFAULT TRUE,
		requires_attachment BOOLEAN DEFAULT FALSE,
		attachment_kind TEXT,
		max_duration_days INTEGER DEFAULT 0,
		min_notice_days INTEGER DEFAULT 0,
		eligibility_gender TEXT,
		min_tenure_months INTEGER DEFAULT 0,
		max_occurrences INTEGER DEFAULT 0,
		active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Policies (rule blocks as JSON, one active policy per type)
	CREATE TABLE IF NOT EXISTS leave_policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		config_json TEXT NOT NULL,
		active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_leave_type
		ON leave_policies(leave_type_id, active);

	-- Calendars and holidays
	CREATE TABLE IF NOT EXISTS calendars (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT,
		year INTEGER NOT NULL,
		weekend_days_json TEXT NOT NULL,
		is_default BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calendars_year
		ON calendars(year, is_default);

	CREATE TABLE IF NOT EXISTS public_holidays (
		id TEXT PRIMARY KEY,
		calendar_id TEXT NOT NULL,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE(calendar_id, date, name)
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_calendar_date
		ON public_holidays(calendar_id, date);

	CREATE TABLE IF NOT EXISTS blocked_periods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT,
		block_type TEXT NOT NULL,
		leave_type_ids_json TEXT,
		active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blocked_periods_range
		ON blocked_periods(start_date, end_date);

	-- Entitlement ledger rows
	CREATE TABLE IF NOT EXISTS entitlements (
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		accrued_actual REAL NOT NULL DEFAULT 0,
		accrued_rounded REAL NOT NULL DEFAULT 0,
		carry_forward REAL NOT NULL DEFAULT 0,
		carry_forward_expiry TEXT,
		manual REAL NOT NULL DEFAULT 0,
		taken REAL NOT NULL DEFAULT 0,
		pending REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, leave_type_id, year)
	);

	-- CRITICAL: one row per applied mutation key. Replayed keys hit the
	-- primary key and abort the ledger transaction before any update.
	CREATE TABLE IF NOT EXISTS ledger_mutations (
		key TEXT PRIMARY KEY,
		op TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		request_id TEXT,
		actor_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Append-only audit of every ledger change
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		op TEXT NOT NULL,
		mutation_key TEXT NOT NULL,
		request_id TEXT,
		actor_id TEXT,
		reason TEXT,
		delta_json TEXT NOT NULL,
		available_after REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_row
		ON adjustments(employee_id, leave_type_id, year, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_adjustments_request
		ON adjustments(request_id) WHERE request_id IS NOT NULL;

	-- Leave requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		policy_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		half_day BOOLEAN DEFAULT FALSE,
		half_day_slot TEXT,
		working_days REAL NOT NULL DEFAULT 0,
		paid_days REAL NOT NULL DEFAULT 0,
		unpaid_days REAL NOT NULL DEFAULT 0,
		reason TEXT,
		attachment_ref TEXT,
		status TEXT NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 0,
		steps_json TEXT,
		year INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_overlap
		ON requests(employee_id, status, start_date, end_date);

	-- Batch job runs (skip-if-done and operator visibility)
	CREATE TABLE IF NOT EXISTS batch_runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		applied INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failures_json TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		UNIQUE(job, year, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTITLEMENT STORE (leave.EntitlementStore interface)
// =============================================================================

// Get returns a ledger row, or leave.ErrNotFound.
func (s *Store) Get(ctx context.Context, key leave.EntitlementKey) (*leave.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getRow(ctx, s.db, key)
}

func (s *Store) getRow(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, key leave.EntitlementKey) (*leave.Entitlement, error) {
	query := `
		SELECT accrued_actual, accrued_rounded, carry_forward, carry_forward_expiry,
		       manual, taken, pending, updated_at
		FROM entitlements
		WHERE employee_id = ? AND leave_type_id = ? AND year = ?
	`

	var (
		actual, rounded, carry, manual, taken, pending float64
		expiry                                         sql.NullString
		updatedAt                                      string
	)
	err := q.QueryRowContext(ctx, query, string(key.EmployeeID), string(key.LeaveTypeID), key.Year).Scan(
		&actual, &rounded, &carry, &expiry, &manual, &taken, &pending, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: entitlement %s/%s/%d", leave.ErrNotFound,
			key.EmployeeID, key.LeaveTypeID, key.Year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement: %w", err)
	}

	ent := &leave.Entitlement{
		EmployeeID:     key.EmployeeID,
		LeaveTypeID:    key.LeaveTypeID,
		Year:           key.Year,
		AccruedActual:  leave.DaysOf(actual),
		AccruedRounded: leave.DaysOf(rounded),
		CarryForward:   leave.DaysOf(carry),
		Manual:         leave.DaysOf(manual),
		Taken:          leave.DaysOf(taken),
		Pending:        leave.DaysOf(pending),
	}
	if expiry.Valid && expiry.String != "" {
		ent.CarryForwardExpiry, _ = time.Parse(dateLayout, expiry.String)
	}
	ent.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return ent, nil
}

// EnsureRow creates a zero row if none exists. INSERT OR IGNORE makes
// concurrent creation collapse to one row.
func (s *Store) EnsureRow(ctx context.Context, key leave.EntitlementKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO entitlements (employee_id, leave_type_id, year, updated_at)
		VALUES (?, ?, ?, ?)
	`, string(key.EmployeeID), string(key.LeaveTypeID), key.Year,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to ensure entitlement row: %w", err)
	}
	return nil
}

// Apply applies a delta under the balance guard, with the idempotency
// key and the audit row in the same transaction.
func (s *Store) Apply(ctx context.Context, key leave.EntitlementKey, delta leave.EntitlementDelta, mut leave.Mutation) (*leave.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// 1. Claim the mutation key. A replay fails the primary key here
	// and nothing else runs.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_mutations (key, op, employee_id, leave_type_id, year, request_id, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, mut.Key, string(mut.Op), string(key.EmployeeID), string(key.LeaveTypeID), key.Year,
		nullString(string(mut.RequestID)), nullString(string(mut.ActorID)),
		now.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: key %q", leave.ErrDuplicateMutation, mut.Key)
		}
		return nil, fmt.Errorf("failed to record mutation key: %w", err)
	}

	// 2. Guarded conditional update. The WHERE clause re-checks the
	// invariant against current values; a concurrent writer that got
	// there first makes this a zero-row update.
	var expiryArg any
	if !delta.CarryForwardExpiry.IsZero() {
		expiryArg = delta.CarryForwardExpiry.Format(dateLayout)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE entitlements SET
			accrued_actual = accrued_actual + ?,
			accrued_rounded = accrued_rounded + ?,
			carry_forward = carry_forward + ?,
			manual = manual + ?,
			taken = taken + ?,
			pending = pending + ?,
			carry_forward_expiry = COALESCE(?, carry_forward_expiry),
			updated_at = ?
		WHERE employee_id = ? AND leave_type_id = ? AND year = ?
		  AND pending + ? >= 0
		  AND taken + ? >= 0
		  AND (accrued_rounded + ?) + (carry_forward + ?) + (manual + ?)
		      - (taken + ?) - (pending + ?) >= 0
	`,
		delta.AccruedActual.Float64(),
		delta.AccruedRounded.Float64(),
		delta.CarryForward.Float64(),
		delta.Manual.Float64(),
		delta.Taken.Float64(),
		delta.Pending.Float64(),
		expiryArg,
		now.Format(time.RFC3339),
		string(key.EmployeeID), string(key.LeaveTypeID), key.Year,
		delta.Pending.Float64(),
		delta.Taken.Float64(),
		delta.AccruedRounded.Float64(),
		delta.CarryForward.Float64(),
		delta.Manual.Float64(),
		delta.Taken.Float64(),
		delta.Pending.Float64(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply entitlement delta: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Missing row or guard failure; look at the row to tell which.
		row, gerr := s.getRow(ctx, tx, key)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &leave.InsufficientBalanceError{
			EmployeeID:  key.EmployeeID,
			LeaveTypeID: key.LeaveTypeID,
			Year:        key.Year,
			Available:   row.Available(),
			Requested:   delta.Pending.Add(delta.Taken),
		}
	}

	// 3. Audit row with the post-mutation available balance.
	row, err := s.getRow(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	deltaJSON, _ := json.Marshal(deltaDoc{
		AccruedActual:  delta.AccruedActual.Float64(),
		AccruedRounded: delta.AccruedRounded.Float64(),
		CarryForward:   delta.CarryForward.Float64(),
		Manual:         delta.Manual.Float64(),
		Taken:          delta.Taken.Float64(),
		Pending:        delta.Pending.Float64(),
	})
	_, err = tx.ExecContext(ctx, `
		INSERT INTO adjustments (id, employee_id, leave_type_id, year, op, mutation_key,
			request_id, actor_id, reason, delta_json, available_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), string(key.EmployeeID), string(key.LeaveTypeID), key.Year,
		string(mut.Op), mut.Key,
		nullString(string(mut.RequestID)), nullString(string(mut.ActorID)),
		nullString(mut.Reason), string(deltaJSON),
		row.Available().Float64(), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to append adjustment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ledger mutation: %w", err)
	}
	return row, nil
}

// deltaDoc is the JSON shape of an adjustment delta.
type deltaDoc struct {
	AccruedActual  float64 `json:"accruedActual,omitempty"`
	AccruedRounded float64 `json:"accruedRounded,omitempty"`
	CarryForward   float64 `json:"carryForward,omitempty"`
	Manual         float64 `json:"manual,omitempty"`
	Taken          float64 `json:"taken,omitempty"`
	Pending        float64 `json:"pending,omitempty"`
}

// ListByEmployee returns all ledger rows of an employee for a year.
func (s *Store) ListByEmployee(ctx context.Context, employeeID leave.EmployeeID, year int) ([]leave.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntitlements(ctx, `
		SELECT employee_id, leave_type_id, year, accrued_actual, accrued_rounded,
		       carry_forward, carry_forward_expiry, manual, taken, pending, updated_at
		FROM entitlements
		WHERE employee_id = ? AND year = ?
		ORDER BY leave_type_id
	`, string(employeeID), year)
}

// ListForYear returns every ledger row of a year.
func (s *Store) ListForYear(ctx context.Context, year int) ([]leave.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntitlements(ctx, `
		SELECT employee_id, leave_type_id, year, accrued_actual, accrued_rounded,
		       carry_forward, carry_forward_expiry, manual, taken, pending, updated_at
		FROM entitlements
		WHERE year = ?
		ORDER BY employee_id, leave_type_id
	`, year)
}

func (s *Store) queryEntitlements(ctx context.Context, query string, args ...any) ([]leave.Entitlement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	var ents []leave.Entitlement
	for rows.Next() {
		var (
			ent                                            leave.Entitlement
			empID, ltID                                    string
			actual, rounded, carry, manual, taken, pending float64
			expiry                                         sql.NullString
			updatedAt                                      string
		)
		if err := rows.Scan(&empID, &ltID, &ent.Year, &actual, &rounded,
			&carry, &expiry, &manual, &taken, &pending, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		ent.EmployeeID = leave.EmployeeID(empID)
		ent.LeaveTypeID = leave.LeaveTypeID(ltID)
		ent.AccruedActual = leave.DaysOf(actual)
		ent.AccruedRounded = leave.DaysOf(rounded)
		ent.CarryForward = leave.DaysOf(carry)
		ent.Manual = leave.DaysOf(manual)
		ent.Taken = leave.DaysOf(taken)
		ent.Pending = leave.DaysOf(pending)
		if expiry.Valid && expiry.String != "" {
			ent.CarryForwardExpiry, _ = time.Parse(dateLayout, expiry.String)
		}
		ent.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		ents = append(ents, ent)
	}
	return ents, rows.Err()
}

// Adjustments returns the audit trail for a row, newest first.
func (s *Store) Adjustments(ctx context.Context, key leave.EntitlementKey) ([]leave.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, op, mutation_key, request_id, actor_id, reason, delta_json,
		       available_after, created_at
		FROM adjustments
		WHERE employee_id = ? AND leave_type_id = ? AND year = ?
		ORDER BY created_at DESC, id DESC
	`, string(key.EmployeeID), string(key.LeaveTypeID), key.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var adjs []leave.Adjustment
	for rows.Next() {
		var (
			a                          leave.Adjustment
			requestID, actorID, reason sql.NullString
			deltaJSON                  string
			availableAfter             float64
			createdAt                  string
		)
		if err := rows.Scan(&a.ID, (*string)(&a.Op), &a.MutationKey,
			&requestID, &actorID, &reason, &deltaJSON, &availableAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		a.EmployeeID = key.EmployeeID
		a.LeaveTypeID = key.LeaveTypeID
		a.Year = key.Year
		a.RequestID = leave.RequestID(requestID.String)
		a.ActorID = leave.EmployeeID(actorID.String)
		a.Reason = reason.String

		var d deltaDoc
		json.Unmarshal([]byte(deltaJSON), &d)
		a.Delta = leave.EntitlementDelta{
			AccruedActual:  leave.DaysOf(d.AccruedActual),
			AccruedRounded: leave.DaysOf(d.AccruedRounded),
			CarryForward:   leave.DaysOf(d.CarryForward),
			Manual:         leave.DaysOf(d.Manual),
			Taken:          leave.DaysOf(d.Taken),
			Pending:        leave.DaysOf(d.Pending),
		}
		a.AvailableAfter = leave.DaysOf(availableAfter)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		adjs = append(adjs, a)
	}
	return adjs, rows.Err()
}

// =============================================================================
// REQUEST STORE (leave.RequestStore interface)
// =============================================================================

// Create inserts a new request.
func (s *Store) Create(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepsJSON, _ := json.Marshal(req.Steps)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, employee_id, leave_type_id, policy_id, start_date, end_date,
			half_day, half_day_slot, working_days, paid_days, unpaid_days, reason,
			attachment_ref, status, attempt, steps_json, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(req.ID), string(req.EmployeeID), string(req.LeaveTypeID),
		nullString(string(req.PolicyID)),
		req.StartDate.Format(dateLayout), req.EndDate.Format(dateLayout),
		req.HalfDay, nullString(string(req.HalfDaySlot)),
		req.WorkingDays.Float64(), req.PaidDays.Float64(), req.UnpaidDays.Float64(),
		nullString(req.Reason), nullString(req.AttachmentRef),
		string(req.Status), req.Attempt, string(stepsJSON), req.Year,
		req.CreatedAt.Format(time.RFC3339), req.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// Update rewrites a request's mutable fields.
func (s *Store) Update(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepsJSON, _ := json.Marshal(req.Steps)
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET
			policy_id = ?, start_date = ?, end_date = ?, half_day = ?, half_day_slot = ?,
			working_days = ?, paid_days = ?, unpaid_days = ?, reason = ?,
			attachment_ref = ?, status = ?, attempt = ?, steps_json = ?, year = ?,
			updated_at = ?
		WHERE id = ?
	`,
		nullString(string(req.PolicyID)),
		req.StartDate.Format(dateLayout), req.EndDate.Format(dateLayout),
		req.HalfDay, nullString(string(req.HalfDaySlot)),
		req.WorkingDays.Float64(), req.PaidDays.Float64(), req.UnpaidDays.Float64(),
		nullString(req.Reason), nullString(req.AttachmentRef),
		string(req.Status), req.Attempt, string(stepsJSON), req.Year,
		req.UpdatedAt.Format(time.RFC3339),
		string(req.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: request %s", leave.ErrNotFound, req.ID)
	}
	return nil
}

// getRequest backs RequestStore.Get via the Requests() view; the name
// avoids colliding with the entitlement Get on the same receiver.
func (s *Store) getRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs, err := s.queryRequests(ctx, requestColumns+` FROM requests WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	r := reqs[0]
	return &r, nil
}

// ListByEmployee returns an employee's requests, newest first.
func (s *Store) ListRequestsByEmployee(ctx context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRequests(ctx, requestColumns+`
		FROM requests WHERE employee_id = ? ORDER BY created_at DESC`, string(employeeID))
}

// ListRequestsByStatus returns all requests in a status, oldest first
// (approval queues drain in submission order).
func (s *Store) ListRequestsByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRequests(ctx, requestColumns+`
		FROM requests WHERE status = ? ORDER BY created_at ASC`, string(status))
}

// Overlapping returns the employee's requests in the given statuses
// intersecting [from, to].
func (s *Store) Overlapping(ctx context.Context, employeeID leave.EmployeeID, from, to time.Time, statuses []leave.RequestStatus) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := []any{string(employeeID)}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	args = append(args, to.Format(dateLayout), from.Format(dateLayout))

	return s.queryRequests(ctx, requestColumns+`
		FROM requests
		WHERE employee_id = ? AND status IN (`+placeholders+`)
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC`, args...)
}

// CountByStatus counts an employee's requests of a type in a status.
func (s *Store) CountByStatus(ctx context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, status leave.RequestStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM requests
		WHERE employee_id = ? AND leave_type_id = ? AND status = ?
	`, string(employeeID), string(leaveTypeID), string(status)).Scan(&count)
	return count, err
}

const requestColumns = `
	SELECT id, employee_id, leave_type_id, policy_id, start_date, end_date,
	       half_day, half_day_slot, working_days, paid_days, unpaid_days,
	       reason, attachment_ref, status, attempt, steps_json, year,
	       created_at, updated_at`

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var reqs []leave.LeaveRequest
	for rows.Next() {
		var (
			r                                       leave.LeaveRequest
			policyID, slot, reason, attach, stepsJS sql.NullString
			startDate, endDate, createdAt, updated  string
			working, paid, unpaid                   float64
		)
		if err := rows.Scan(
			(*string)(&r.ID), (*string)(&r.EmployeeID), (*string)(&r.LeaveTypeID),
			&policyID, &startDate, &endDate, &r.HalfDay, &slot,
			&working, &paid, &unpaid, &reason, &attach,
			(*string)(&r.Status), &r.Attempt, &stepsJS, &r.Year,
			&createdAt, &updated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.PolicyID = leave.PolicyID(policyID.String)
		r.StartDate, _ = time.Parse(dateLayout, startDate)
		r.EndDate, _ = time.Parse(dateLayout, endDate)
		r.HalfDaySlot = leave.HalfDaySlot(slot.String)
		r.WorkingDays = leave.DaysOf(working)
		r.PaidDays = leave.DaysOf(paid)
		r.UnpaidDays = leave.DaysOf(unpaid)
		r.Reason = reason.String
		r.AttachmentRef = attach.String
		if stepsJS.Valid && stepsJS.String != "" {
			json.Unmarshal([]byte(stepsJS.String), &r.Steps)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// Requests exposes the store's RequestStore view. Get/ListByEmployee/
// ListByStatus clash with the entitlement methods on Store itself, so
// the request interface is satisfied by this thin wrapper.
func (s *Store) Requests() leave.RequestStore {
	return requestView{s}
}

type requestView struct{ s *Store }

func (v requestView) Create(ctx context.Context, req *leave.LeaveRequest) error {
	return v.s.Create(ctx, req)
}
func (v requestView) Get(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return v.s.getRequest(ctx, id)
}
func (v requestView) Update(ctx context.Context, req *leave.LeaveRequest) error {
	return v.s.Update(ctx, req)
}
func (v requestView) ListByEmployee(ctx context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	return v.s.ListRequestsByEmployee(ctx, employeeID)
}
func (v requestView) ListByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	return v.s.ListRequestsByStatus(ctx, status)
}
func (v requestView) Overlapping(ctx context.Context, employeeID leave.EmployeeID, from, to time.Time, statuses []leave.RequestStatus) ([]leave.LeaveRequest, error) {
	return v.s.Overlapping(ctx, employeeID, from, to, statuses)
}
func (v requestView) CountByStatus(ctx context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, status leave.RequestStatus) (int, error) {
	return v.s.CountByStatus(ctx, employeeID, leaveTypeID, status)
}

// =============================================================================
// CALENDAR STORE (leave.CalendarStore interface)
// =============================================================================

// SaveCalendar inserts or replaces a calendar.
func (s *Store) SaveCalendar(ctx context.Context, cal leave.Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	weekendJSON, _ := json.Marshal(cal.WeekendDays)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendars (id, name, country, year, weekend_days_json, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			year = excluded.year,
			weekend_days_json = excluded.weekend_days_json,
			is_default = excluded.is_default
	`, string(cal.ID), cal.Name, cal.Country, cal.Year, string(weekendJSON),
		cal.IsDefault, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save calendar: %w", err)
	}
	return nil
}

// CalendarForYear returns the default calendar covering a year.
func (s *Store) CalendarForYear(ctx context.Context, year int) (*leave.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		cal         leave.Calendar
		weekendJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, country, year, weekend_days_json, is_default
		FROM calendars
		WHERE year = ?
		ORDER BY is_default DESC
		LIMIT 1
	`, year).Scan((*string)(&cal.ID), &cal.Name, &cal.Country, &cal.Year, &weekendJSON, &cal.IsDefault)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: calendar for year %d", leave.ErrNotFound, year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}
	json.Unmarshal([]byte(weekendJSON), &cal.WeekendDays)
	return &cal, nil
}

// SaveHoliday inserts a public holiday; duplicates are ignored.
func (s *Store) SaveHoliday(ctx context.Context, h leave.PublicHoliday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO public_holidays (id, calendar_id, date, name)
		VALUES (?, ?, ?, ?)
	`, uuid.NewString(), string(h.CalendarID), h.Date.Format(dateLayout), h.Name)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// HolidaysInRange returns a calendar's holidays within [from, to].
func (s *Store) HolidaysInRange(ctx context.Context, calendarID leave.CalendarID, from, to time.Time) ([]leave.PublicHoliday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, name FROM public_holidays
		WHERE calendar_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, string(calendarID), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []leave.PublicHoliday
	for rows.Next() {
		var (
			h    leave.PublicHoliday
			date string
		)
		if err := rows.Scan(&date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		h.CalendarID = calendarID
		h.Date, _ = time.Parse(dateLayout, date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// SaveBlockedPeriod inserts or replaces a blocked period.
func (s *Store) SaveBlockedPeriod(ctx context.Context, bp leave.BlockedPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp.ID == "" {
		bp.ID = uuid.NewString()
	}
	typesJSON, _ := json.Marshal(bp.LeaveTypeIDs)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_periods (id, name, start_date, end_date, reason, block_type,
			leave_type_ids_json, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			reason = excluded.reason,
			block_type = excluded.block_type,
			leave_type_ids_json = excluded.leave_type_ids_json,
			active = excluded.active
	`, bp.ID, bp.Name, bp.StartDate.Format(dateLayout), bp.EndDate.Format(dateLayout),
		nullString(bp.Reason), string(bp.BlockType), string(typesJSON), bp.Active,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save blocked period: %w", err)
	}
	return nil
}

// ActiveBlockedPeriods returns active periods intersecting [from, to].
func (s *Store) ActiveBlockedPeriods(ctx context.Context, from, to time.Time) ([]leave.BlockedPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, reason, block_type, leave_type_ids_json, active
		FROM blocked_periods
		WHERE active AND start_date <= ? AND end_date >= ?
		ORDER BY start_date
	`, to.Format(dateLayout), from.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked periods: %w", err)
	}
	defer rows.Close()

	var periods []leave.BlockedPeriod
	for rows.Next() {
		var (
			bp                 leave.BlockedPeriod
			start, end         string
			reason, typesJSON  sql.NullString
		)
		if err := rows.Scan(&bp.ID, &bp.Name, &start, &end, &reason,
			(*string)(&bp.BlockType), &typesJSON, &bp.Active); err != nil {
			return nil, fmt.Errorf("failed to scan blocked period: %w", err)
		}
		bp.StartDate, _ = time.Parse(dateLayout, start)
		bp.EndDate, _ = time.Parse(dateLayout, end)
		bp.Reason = reason.String
		if typesJSON.Valid && typesJSON.String != "" {
			json.Unmarshal([]byte(typesJSON.String), &bp.LeaveTypeIDs)
		}
		periods = append(periods, bp)
	}
	return periods, rows.Err()
}

// =============================================================================
// EMPLOYEE STORE (leave.EmployeeStore interface)
// =============================================================================

// SaveEmployee inserts or replaces an employee profile (seeding and
// admin use only).
func (s *Store) SaveEmployee(ctx context.Context, p leave.EmployeeProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, gender, employment_type, hire_date, manager_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, TRUE, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			gender = excluded.gender,
			employment_type = excluded.employment_type,
			hire_date = excluded.hire_date,
			manager_id = excluded.manager_id
	`, string(p.ID), p.Name, nullString(p.Email), nullString(string(p.Gender)),
		nullString(string(p.EmploymentType)), p.HireDate.Format(dateLayout),
		nullString(string(p.ManagerID)), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// Employee returns a profile, or leave.ErrNotFound.
func (s *Store) Employee(ctx context.Context, id leave.EmployeeID) (*leave.EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                             leave.EmployeeProfile
		email, gender, empType, mgrID sql.NullString
		hireDate                      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, gender, employment_type, hire_date, manager_id
		FROM employees WHERE id = ?
	`, string(id)).Scan((*string)(&p.ID), &p.Name, &email, &gender, &empType, &hireDate, &mgrID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: employee %s", leave.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	p.Email = email.String
	p.Gender = leave.Gender(gender.String)
	p.EmploymentType = leave.EmploymentType(empType.String)
	p.HireDate, _ = time.Parse(dateLayout, hireDate)
	p.ManagerID = leave.EmployeeID(mgrID.String)
	return &p, nil
}

// ActiveEmployees returns every active employee.
func (s *Store) ActiveEmployees(ctx context.Context) ([]leave.EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, gender, employment_type, hire_date, manager_id
		FROM employees WHERE active ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var emps []leave.EmployeeProfile
	for rows.Next() {
		var (
			p                             leave.EmployeeProfile
			email, gender, empType, mgrID sql.NullString
			hireDate                      string
		)
		if err := rows.Scan((*string)(&p.ID), &p.Name, &email, &gender, &empType, &hireDate, &mgrID); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		p.Email = email.String
		p.Gender = leave.Gender(gender.String)
		p.EmploymentType = leave.EmploymentType(empType.String)
		p.HireDate, _ = time.Parse(dateLayout, hireDate)
		p.ManagerID = leave.EmployeeID(mgrID.String)
		emps = append(emps, p)
	}
	return emps, rows.Err()
}

// =============================================================================
// CATALOG STORE (leave.CatalogStore interface)
// =============================================================================

// SaveLeaveType inserts or replaces a leave type.
func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (id, name, code, category, paid, deductible,
			requires_attachment, attachment_kind, max_duration_days, min_notice_days,
			eligibility_gender, min_tenure_months, max_occurrences, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			paid = excluded.paid,
			deductible = excluded.deductible,
			requires_attachment = excluded.requires_attachment,
			attachment_kind = excluded.attachment_kind,
			max_duration_days = excluded.max_duration_days,
			min_notice_days = excluded.min_notice_days,
			eligibility_gender = excluded.eligibility_gender,
			min_tenure_months = excluded.min_tenure_months,
			max_occurrences = excluded.max_occurrences,
			active = excluded.active
	`, string(lt.ID), lt.Name, lt.Code, lt.Category, lt.Paid, lt.Deductible,
		lt.RequiresAttachment, nullString(string(lt.AttachmentKind)),
		lt.MaxDurationDays, lt.MinNoticeDays,
		nullString(string(lt.EligibilityGender)), lt.MinTenureMonths, lt.MaxOccurrences,
		lt.Active, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

// LeaveType returns a type, or leave.ErrNotFound.
func (s *Store) LeaveType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types, err := s.queryLeaveTypes(ctx, leaveTypeColumns+` FROM leave_types WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: leave type %s", leave.ErrNotFound, id)
	}
	lt := types[0]
	return &lt, nil
}

// ActiveLeaveTypes returns all active types.
func (s *Store) ActiveLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeaveTypes(ctx, leaveTypeColumns+` FROM leave_types WHERE active ORDER BY code`)
}

const leaveTypeColumns = `
	SELECT id, name, code, category, paid, deductible, requires_attachment,
	       attachment_kind, max_duration_days, min_notice_days,
	       eligibility_gender, min_tenure_months, max_occurrences, active`

func (s *Store) queryLeaveTypes(ctx context.Context, query string, args ...any) ([]leave.LeaveType, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave types: %w", err)
	}
	defer rows.Close()

	var types []leave.LeaveType
	for rows.Next() {
		var (
			lt           leave.LeaveType
			kind, gender sql.NullString
		)
		if err := rows.Scan((*string)(&lt.ID), &lt.Name, &lt.Code, &lt.Category,
			&lt.Paid, &lt.Deductible, &lt.RequiresAttachment, &kind,
			&lt.MaxDurationDays, &lt.MinNoticeDays, &gender,
			&lt.MinTenureMonths, &lt.MaxOccurrences, &lt.Active); err != nil {
			return nil, fmt.Errorf("failed to scan leave type: %w", err)
		}
		lt.AttachmentKind = leave.AttachmentKind(kind.String)
		lt.EligibilityGender = leave.Gender(gender.String)
		types = append(types, lt)
	}
	return types, rows.Err()
}

// policyConfig is the JSON shape of a policy's rule blocks.
type policyConfig struct {
	AnnualDays          float64  `json:"annualDays"`
	AccruedMonthly      bool     `json:"accruedMonthly"`
	AllowCarryover      bool     `json:"allowCarryover"`
	MaxCarryoverDays    float64  `json:"maxCarryoverDays"`
	CarryoverExpiryMo   int      `json:"carryoverExpiryMonths"`
	CanEncash           bool     `json:"canEncash"`
	RoundingMethod      string   `json:"roundingMethod"`
	RoundingMinUnit     float64  `json:"roundingMinUnit"`
	MinTenureMonths     int      `json:"minTenureMonths"`
	EmployeeTypes       []string `json:"employeeTypes,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	DocAboveDays        float64  `json:"requiresDocumentAboveDays"`
	RequiresManager     bool     `json:"requiresManagerApproval"`
	RequiresHR          bool     `json:"requiresHRApproval"`
	MultiLevel          bool     `json:"multiLevelApproval"`
	AllowOverlap        bool     `json:"allowOverlap"`
	AllowUnpaidOverflow bool     `json:"allowUnpaidOverflow"`
}

func encodePolicy(p leave.LeavePolicy) string {
	types := make([]string, 0, len(p.Eligible.EmployeeTypes))
	for _, t := range p.Eligible.EmployeeTypes {
		types = append(types, string(t))
	}
	b, _ := json.Marshal(policyConfig{
		AnnualDays:          p.AnnualDays.Float64(),
		AccruedMonthly:      p.AccruedMonthly,
		AllowCarryover:      p.Carryover.AllowCarryover,
		MaxCarryoverDays:    p.Carryover.MaxCarryoverDays.Float64(),
		CarryoverExpiryMo:   p.Carryover.ExpiryMonths,
		CanEncash:           p.Carryover.CanEncash,
		RoundingMethod:      string(p.Rounding.Method),
		RoundingMinUnit:     p.Rounding.MinUnit.Float64(),
		MinTenureMonths:     p.Eligible.MinTenureMonths,
		EmployeeTypes:       types,
		Gender:              string(p.Eligible.Gender),
		DocAboveDays:        p.Documents.RequiresDocumentAboveDays.Float64(),
		RequiresManager:     p.Approval.RequiresManagerApproval,
		RequiresHR:          p.Approval.RequiresHRApproval,
		MultiLevel:          p.Approval.MultiLevel,
		AllowOverlap:        p.Approval.AllowOverlap,
		AllowUnpaidOverflow: p.AllowUnpaidOverflow,
	})
	return string(b)
}

func decodePolicy(id, name, leaveTypeID, configJSON string, active bool) (*leave.LeavePolicy, error) {
	var c policyConfig
	if err := json.Unmarshal([]byte(configJSON), &c); err != nil {
		return nil, fmt.Errorf("failed to decode policy config: %w", err)
	}
	types := make([]leave.EmploymentType, 0, len(c.EmployeeTypes))
	for _, t := range c.EmployeeTypes {
		types = append(types, leave.EmploymentType(t))
	}
	return &leave.LeavePolicy{
		ID:             leave.PolicyID(id),
		Name:           name,
		LeaveTypeID:    leave.LeaveTypeID(leaveTypeID),
		AnnualDays:     leave.DaysOf(c.AnnualDays),
		AccruedMonthly: c.AccruedMonthly,
		Carryover: leave.CarryoverRule{
			AllowCarryover:   c.AllowCarryover,
			MaxCarryoverDays: leave.DaysOf(c.MaxCarryoverDays),
			ExpiryMonths:     c.CarryoverExpiryMo,
			CanEncash:        c.CanEncash,
		},
		Rounding: leave.RoundingRule{
			Method:  leave.RoundingMethod(c.RoundingMethod),
			MinUnit: leave.DaysOf(c.RoundingMinUnit),
		},
		Eligible: leave.EligibilityRule{
			MinTenureMonths: c.MinTenureMonths,
			EmployeeTypes:   types,
			Gender:          leave.Gender(c.Gender),
		},
		Documents: leave.DocumentRules{
			RequiresDocumentAboveDays: leave.DaysOf(c.DocAboveDays),
		},
		Approval: leave.ApprovalWorkflow{
			RequiresManagerApproval: c.RequiresManager,
			RequiresHRApproval:      c.RequiresHR,
			MultiLevel:              c.MultiLevel,
			AllowOverlap:            c.AllowOverlap,
		},
		AllowUnpaidOverflow: c.AllowUnpaidOverflow,
		Active:              active,
	}, nil
}

// SavePolicy inserts or replaces a policy. Activating a policy
// deactivates any other active policy of the same leave type.
func (s *Store) SavePolicy(ctx context.Context, p leave.LeavePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if p.Active {
		if _, err := tx.ExecContext(ctx, `
			UPDATE leave_policies SET active = FALSE, updated_at = ?
			WHERE leave_type_id = ? AND id <> ?
		`, now, string(p.LeaveTypeID), string(p.ID)); err != nil {
			return fmt.Errorf("failed to supersede policies: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leave_policies (id, name, leave_type_id, config_json, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, string(p.ID), p.Name, string(p.LeaveTypeID), encodePolicy(p), p.Active, now, now)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}

	return tx.Commit()
}

// ActivePolicy returns the active policy of a leave type.
func (s *Store) ActivePolicy(ctx context.Context, leaveTypeID leave.LeaveTypeID) (*leave.LeavePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		id, name, ltID, configJSON string
		active                     bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, leave_type_id, config_json, active
		FROM leave_policies
		WHERE leave_type_id = ? AND active
		LIMIT 1
	`, string(leaveTypeID)).Scan(&id, &name, &ltID, &configJSON, &active)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: policy for leave type %s", leave.ErrNotFound, leaveTypeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return decodePolicy(id, name, ltID, configJSON, active)
}

// =============================================================================
// BATCH RUN RECORDS
// =============================================================================

// SaveBatchRun records a batch execution; re-running the same period
// overwrites the record.
func (s *Store) SaveBatchRun(ctx context.Context, run leave.BatchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	failuresJSON, _ := json.Marshal(run.Failures)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_runs (id, job, year, month, processed, applied, skipped,
			failures_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job, year, month) DO UPDATE SET
			processed = excluded.processed,
			applied = excluded.applied,
			skipped = excluded.skipped,
			failures_json = excluded.failures_json,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, uuid.NewString(), run.Job, run.Year, run.Month,
		run.Processed, run.Applied, run.Skipped, string(failuresJSON),
		run.StartedAt.Format(time.RFC3339), run.FinishedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save batch run: %w", err)
	}
	return nil
}

// BatchRunExists reports whether a job already ran for a period.
func (s *Store) BatchRunExists(ctx context.Context, job string, year, month int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM batch_runs WHERE job = ? AND year = ? AND month = ?
	`, job, year, month).Scan(&count)
	return count > 0, err
}

// ListBatchRuns returns recorded runs, newest first.
func (s *Store) ListBatchRuns(ctx context.Context) ([]leave.BatchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT job, year, month, processed, applied, skipped, failures_json,
		       started_at, finished_at
		FROM batch_runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []leave.BatchRun
	for rows.Next() {
		var (
			run                  leave.BatchRun
			failuresJSON         sql.NullString
			startedAt, finished  string
		)
		if err := rows.Scan(&run.Job, &run.Year, &run.Month, &run.Processed,
			&run.Applied, &run.Skipped, &failuresJSON, &startedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan batch run: %w", err)
		}
		if failuresJSON.Valid && failuresJSON.String != "" {
			json.Unmarshal([]byte(failuresJSON.String), &run.Failures)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
