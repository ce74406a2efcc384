/*
Package sqlite provides a SQLite-backed implementation of the leave repository.

PURPOSE:
  Implements timeoff.Repository and timeoff.Tx on one SQLite database:
  the employee directory, work schedules, leave requests, approval
  records, the usage ledger and the optional leave-type catalog.

INTERFACES IMPLEMENTED:
  timeoff.Repository:  Reads plus WithTx
  timeoff.Tx:          Conditional request updates, record inserts, ledger
  generic.Store:       Usage ledger persistence

KEY TABLES:
  employees:        Directory entries with the reports-to link
  work_schedules:   One row per employee and date
  leave_requests:   Request state (status, level, current approver)
  approval_records: Audit trail, UNIQUE(request_id, level)
  transactions:     Append-only usage ledger
  leave_types:      Catalog overrides seeded by "migrate --seed"

CONCURRENCY:
  The pool is capped at one connection, so every statement and every
  transaction is serialized by database/sql itself. Request updates are
  guarded by the status and level the caller read:

    UPDATE leave_requests SET ... WHERE id = ? AND status = ? AND level = ?

  Zero affected rows means another action got there first and the
  update fails with generic.ErrInvalidStateTransition.

  Inside WithTx every read goes through the *sql.Tx. Calling back into
  the Store from inside fn would wait for the only connection forever.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - timeoff/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

const dateLayout = "2006-01-02"

// Store implements timeoff.Repository using SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ timeoff.Repository = (*Store)(nil)
	_ timeoff.Tx         = (*txStore)(nil)
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

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

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		hire_date TEXT NOT NULL,
		supervisor_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_supervisor
		ON employees(supervisor_id);

	CREATE TABLE IF NOT EXISTS work_schedules (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		work_date TEXT NOT NULL,
		clock_in TEXT NOT NULL,
		clock_out TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL REFERENCES employees(id),
		leave_type TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		hours TEXT NOT NULL,
		reason TEXT,
		relationship TEXT,
		child_birth_date TEXT,
		attachment_ref TEXT,
		status TEXT NOT NULL,
		level INTEGER NOT NULL,
		current_approver_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_requester
		ON leave_requests(requester_id, start_at);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_approver
		ON leave_requests(current_approver_id, status);

	-- One decision per level. A second approver racing on the same level
	-- hits this constraint even if the conditional update was bypassed.
	CREATE TABLE IF NOT EXISTS approval_records (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		approver_id TEXT NOT NULL,
		approver_name TEXT,
		level INTEGER NOT NULL,
		decision TEXT NOT NULL,
		comment TEXT,
		decided_at TEXT NOT NULL,
		UNIQUE (request_id, level)
	);

	-- Usage ledger (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_policy
		ON transactions(entity_id, policy_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_entity_date
		ON transactions(entity_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS leave_types (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		requires_attachment INTEGER NOT NULL DEFAULT 0,
		resets_annually INTEGER NOT NULL DEFAULT 0,
		max_days_per_year TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee creates or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp timeoff.Employee) error {
	if emp.ID == "" {
		return &generic.MissingFieldError{Field: "id"}
	}
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO employees (id, name, email, hire_date, supervisor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			hire_date = excluded.hire_date,
			supervisor_id = excluded.supervisor_id
	`
	_, err := s.db.ExecContext(ctx, query,
		emp.ID,
		emp.Name,
		nullString(emp.Email),
		emp.HireDate.Format(dateLayout),
		nullStringPtr(emp.SupervisorID),
		emp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee returns the employee or generic.ErrEntityNotFound.
func (s *Store) GetEmployee(ctx context.Context, id string) (timeoff.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, hire_date, supervisor_id, created_at
		FROM employees WHERE id = ?
	`, id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timeoff.Employee{}, fmt.Errorf("%w: %s", generic.ErrEntityNotFound, id)
	}
	return emp, err
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]timeoff.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, hire_date, supervisor_id, created_at
		FROM employees ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []timeoff.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// SupervisorOf implements timeoff.Directory. A supervisor id that has no
// employee row still yields an approver, named by its id.
func (s *Store) SupervisorOf(ctx context.Context, employeeID string) (*timeoff.Approver, error) {
	var (
		supervisorID   sql.NullString
		supervisorName sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT e.supervisor_id, sup.name
		FROM employees e
		LEFT JOIN employees sup ON sup.id = e.supervisor_id
		WHERE e.id = ?
	`, employeeID).Scan(&supervisorID, &supervisorName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrEntityNotFound, employeeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query supervisor: %w", err)
	}
	if !supervisorID.Valid || supervisorID.String == "" {
		return nil, nil
	}

	approver := &timeoff.Approver{ID: supervisorID.String, Name: supervisorName.String}
	if approver.Name == "" {
		approver.Name = approver.ID
	}
	return approver, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (timeoff.Employee, error) {
	var (
		emp          timeoff.Employee
		email        sql.NullString
		hireDate     string
		supervisorID sql.NullString
		createdAt    string
	)
	if err := row.Scan(&emp.ID, &emp.Name, &email, &hireDate, &supervisorID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emp, err
		}
		return emp, fmt.Errorf("failed to scan employee: %w", err)
	}
	emp.Email = email.String
	emp.HireDate, _ = time.Parse(dateLayout, hireDate)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if supervisorID.Valid && supervisorID.String != "" {
		sup := supervisorID.String
		emp.SupervisorID = &sup
	}
	return emp, nil
}

// =============================================================================
// WORK SCHEDULES
// =============================================================================

// SaveSchedules upserts schedules keyed by employee and date.
func (s *Store) SaveSchedules(ctx context.Context, schedules []timeoff.WorkSchedule) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, ws := range schedules {
		if ws.Date == nil {
			return fmt.Errorf("schedule for %s: %w", ws.EmployeeID, generic.ErrScheduleNotDated)
		}
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO work_schedules (employee_id, work_date, clock_in, clock_out)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(employee_id, work_date) DO UPDATE SET
				clock_in = excluded.clock_in,
				clock_out = excluded.clock_out
		`, ws.EmployeeID, ws.Date.Format(dateLayout), ws.ClockIn, ws.ClockOut)
		if err != nil {
			return fmt.Errorf("failed to save schedule: %w", err)
		}
	}
	return sqlTx.Commit()
}

// SchedulesBetween returns the employee's schedules dated within [from, to].
// Dates come back in UTC.
func (s *Store) SchedulesBetween(ctx context.Context, employeeID string, from, to time.Time) ([]timeoff.WorkSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, work_date, clock_in, clock_out
		FROM work_schedules
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date
	`, employeeID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []timeoff.WorkSchedule
	for rows.Next() {
		var (
			ws   timeoff.WorkSchedule
			date string
		)
		if err := rows.Scan(&ws.EmployeeID, &date, &ws.ClockIn, &ws.ClockOut); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		d, err := time.ParseInLocation(dateLayout, date, from.Location())
		if err != nil {
			return nil, fmt.Errorf("schedule date %q: %w", date, err)
		}
		ws.Date = &d
		schedules = append(schedules, ws)
	}
	return schedules, rows.Err()
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// SaveLeaveTypes upserts catalog entries.
func (s *Store) SaveLeaveTypes(ctx context.Context, types []timeoff.LeaveType) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, lt := range types {
		var maxDays sql.NullString
		if lt.MaxDaysPerYear != nil {
			maxDays = sql.NullString{String: lt.MaxDaysPerYear.String(), Valid: true}
		}
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO leave_types (code, name, paid, requires_attachment, resets_annually, max_days_per_year)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				name = excluded.name,
				paid = excluded.paid,
				requires_attachment = excluded.requires_attachment,
				resets_annually = excluded.resets_annually,
				max_days_per_year = excluded.max_days_per_year
		`, string(lt.Code), lt.Name, lt.Paid, lt.RequiresAttachment, lt.ResetsAnnually, maxDays)
		if err != nil {
			return fmt.Errorf("failed to save leave type %s: %w", lt.Code, err)
		}
	}
	return sqlTx.Commit()
}

// LeaveTypes returns the stored catalog entries ordered by code.
func (s *Store) LeaveTypes(ctx context.Context) ([]timeoff.LeaveType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, paid, requires_attachment, resets_annually, max_days_per_year
		FROM leave_types ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave types: %w", err)
	}
	defer rows.Close()

	var types []timeoff.LeaveType
	for rows.Next() {
		var (
			lt      timeoff.LeaveType
			code    string
			maxDays sql.NullString
		)
		if err := rows.Scan(&code, &lt.Name, &lt.Paid, &lt.RequiresAttachment, &lt.ResetsAnnually, &maxDays); err != nil {
			return nil, fmt.Errorf("failed to scan leave type: %w", err)
		}
		lt.Code = timeoff.Code(code)
		if maxDays.Valid {
			d, err := decimal.NewFromString(maxDays.String)
			if err != nil {
				return nil, fmt.Errorf("leave type %s max days %q: %w", code, maxDays.String, err)
			}
			lt.MaxDaysPerYear = &d
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

// =============================================================================
// LEAVE REQUESTS (read side)
// =============================================================================

const requestColumns = `
	id, requester_id, leave_type, start_at, end_at, hours, reason,
	relationship, child_birth_date, attachment_ref,
	status, level, current_approver_id, created_at, updated_at
`

// GetRequest returns the request or generic.ErrRequestNotFound.
func (s *Store) GetRequest(ctx context.Context, id string) (timeoff.LeaveRequest, error) {
	return getRequest(ctx, s.db, id)
}

// ListRequests returns requests matching filter, oldest start first.
func (s *Store) ListRequests(ctx context.Context, filter timeoff.RequestFilter) ([]timeoff.LeaveRequest, error) {
	var (
		where []string
		args  []any
	)
	if filter.RequesterID != "" {
		where = append(where, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.ApproverID != "" {
		where = append(where, "current_approver_id = ?")
		args = append(args, filter.ApproverID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := "SELECT " + requestColumns + " FROM leave_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_at ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []timeoff.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// ApprovalRecords returns the request's audit trail by level.
func (s *Store) ApprovalRecords(ctx context.Context, requestID string) ([]timeoff.ApprovalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, approver_id, approver_name, level, decision, comment, decided_at
		FROM approval_records
		WHERE request_id = ?
		ORDER BY level ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval records: %w", err)
	}
	defer rows.Close()

	var records []timeoff.ApprovalRecord
	for rows.Next() {
		var (
			rec       timeoff.ApprovalRecord
			name      sql.NullString
			decision  string
			comment   sql.NullString
			decidedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.ApproverID, &name, &rec.Level, &decision, &comment, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		rec.ApproverName = name.String
		rec.Decision = timeoff.Decision(decision)
		rec.Comment = comment.String
		rec.DecidedAt, _ = time.Parse(time.RFC3339Nano, decidedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func getRequest(ctx context.Context, q queryer, id string) (timeoff.LeaveRequest, error) {
	row := q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timeoff.LeaveRequest{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return r, err
}

func scanRequest(row rowScanner) (timeoff.LeaveRequest, error) {
	var (
		r              timeoff.LeaveRequest
		leaveType      string
		startAt        string
		endAt          string
		hours          string
		reason         sql.NullString
		relationship   sql.NullString
		childBirthDate sql.NullString
		attachmentRef  sql.NullString
		status         string
		approverID     sql.NullString
		createdAt      string
		updatedAt      string
	)
	err := row.Scan(
		&r.ID, &r.RequesterID, &leaveType, &startAt, &endAt, &hours, &reason,
		&relationship, &childBirthDate, &attachmentRef,
		&status, &r.Level, &approverID, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan request: %w", err)
	}

	r.LeaveType = timeoff.Code(leaveType)
	r.Start, _ = time.Parse(time.RFC3339, startAt)
	r.End, _ = time.Parse(time.RFC3339, endAt)
	r.Hours = generic.MustParseDecimal(hours)
	r.Reason = reason.String
	r.Extras.Relationship = timeoff.Relationship(relationship.String)
	r.Extras.AttachmentRef = attachmentRef.String
	if childBirthDate.Valid && childBirthDate.String != "" {
		if d, err := time.Parse(dateLayout, childBirthDate.String); err == nil {
			r.Extras.ChildBirthDate = &d
		}
	}
	r.Status = timeoff.Status(status)
	if approverID.Valid && approverID.String != "" {
		a := approverID.String
		r.CurrentApprover = &a
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, nil
}

// =============================================================================
// LEAVE REQUESTS (write side, only through Tx)
// =============================================================================

func insertRequest(ctx context.Context, q queryer, r timeoff.LeaveRequest) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.RequesterID,
		string(r.LeaveType),
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		r.Hours.String(),
		nullString(r.Reason),
		nullString(string(r.Extras.Relationship)),
		nullDate(r.Extras.ChildBirthDate),
		nullString(r.Extras.AttachmentRef),
		string(r.Status),
		r.Level,
		nullStringPtr(r.CurrentApprover),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("request %s already exists: %w", r.ID, err)
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func updateRequest(ctx context.Context, q queryer, r timeoff.LeaveRequest, fromStatus timeoff.Status, fromLevel int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, level = ?, current_approver_id = ?, updated_at = ?
		WHERE id = ? AND status = ? AND level = ?
	`,
		string(r.Status),
		r.Level,
		nullStringPtr(r.CurrentApprover),
		r.UpdatedAt.UTC().Format(time.RFC3339Nano),
		r.ID,
		string(fromStatus),
		fromLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n == 1 {
		return nil
	}

	cur, err := getRequest(ctx, q, r.ID)
	if err != nil {
		return err
	}
	return &generic.InvalidStateError{
		RequestID:     r.ID,
		Status:        string(cur.Status),
		Level:         cur.Level,
		ExpectedLevel: fromLevel,
	}
}

func insertApprovalRecord(ctx context.Context, q queryer, rec timeoff.ApprovalRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO approval_records
		(id, request_id, approver_id, approver_name, level, decision, comment, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.RequestID,
		rec.ApproverID,
		nullString(rec.ApproverName),
		rec.Level,
		string(rec.Decision),
		nullString(rec.Comment),
		rec.DecidedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: request %s level %d", generic.ErrDuplicateRecord, rec.RequestID, rec.Level)
		}
		return fmt.Errorf("failed to insert approval record: %w", err)
	}
	return nil
}

// =============================================================================
// USAGE LEDGER (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, s.db, tx)
}

// LoadByEntity returns every transaction for an entity in [from, to].
func (s *Store) LoadByEntity(ctx context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return loadByEntity(ctx, s.db, entityID, from, to)
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return exists(ctx, s.db, idempotencyKey)
}

const transactionColumns = `
	id, entity_id, policy_id, resource_type, effective_at, delta_value, delta_unit,
	tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at
`

func appendTx(ctx context.Context, q queryer, tx generic.Transaction) error {
	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	resourceID := string(tx.PolicyID)
	if tx.ResourceType != nil {
		resourceID = tx.ResourceType.ResourceID()
	}
	createdAt := tx.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID),
		string(tx.EntityID),
		string(tx.PolicyID),
		resourceID,
		formatPoint(tx.EffectiveAt),
		tx.Delta.Value.String(),
		string(tx.Delta.Unit),
		string(tx.Type),
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		nullString(tx.CreatedBy),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func loadByEntity(ctx context.Context, q queryer, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return queryTransactions(ctx, q, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE entity_id = ? AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, created_at ASC
	`, string(entityID), formatPoint(from), formatPoint(to))
}

func exists(ctx context.Context, q queryer, idempotencyKey string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func queryTransactions(ctx context.Context, q queryer, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		id             string
		entityID       string
		policyID       string
		resourceTypeID string
		effectiveAt    string
		deltaValue     string
		deltaUnit      string
		txType         string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&id, &entityID, &policyID, &resourceTypeID,
		&effectiveAt, &deltaValue, &deltaUnit, &txType,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID = generic.TransactionID(id)
	tx.EntityID = generic.EntityID(entityID)
	tx.PolicyID = generic.PolicyID(policyID)
	tx.ResourceType = generic.ResourceFromID(resourceTypeID)
	t, _ := time.Parse(time.RFC3339, effectiveAt)
	tx.EffectiveAt = generic.TimePoint{Time: t, Granularity: generic.GranularityDay}
	tx.Delta = parseAmount(deltaValue, deltaUnit)
	tx.Type = generic.TransactionType(txType)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	c, _ := time.Parse(time.RFC3339, createdAt)
	tx.CreatedAt = generic.TimePoint{Time: c, Granularity: generic.GranularityMinute}

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata); err != nil {
			return tx, fmt.Errorf("failed to decode metadata of %s: %w", id, err)
		}
	}
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (timeoff.Tx)
// =============================================================================

// WithTx executes fn within one database transaction. fn must use only
// the Tx it is given.
func (s *Store) WithTx(ctx context.Context, fn func(tx timeoff.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertRequest(ctx context.Context, req timeoff.LeaveRequest) error {
	return insertRequest(ctx, ts.tx, req)
}

func (ts *txStore) UpdateRequest(ctx context.Context, req timeoff.LeaveRequest, fromStatus timeoff.Status, fromLevel int) error {
	return updateRequest(ctx, ts.tx, req, fromStatus, fromLevel)
}

func (ts *txStore) InsertApprovalRecord(ctx context.Context, rec timeoff.ApprovalRecord) error {
	return insertApprovalRecord(ctx, ts.tx, rec)
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) LoadByEntity(ctx context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return loadByEntity(ctx, ts.tx, entityID, from, to)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return exists(ctx, ts.tx, idempotencyKey)
}

// Helper functions

// formatPoint renders day-granular points as UTC midnight of their date
// so that range comparisons on the text column stay lexical.
func formatPoint(tp generic.TimePoint) string {
	if tp.Granularity == generic.GranularityDay {
		y, m, d := tp.Time.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	}
	return tp.Time.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseAmount(value, unit string) generic.Amount {
	return generic.Amount{
		Value: generic.MustParseDecimal(value),
		Unit:  generic.Unit(unit),
	}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
