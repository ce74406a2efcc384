/*
memory.go - In-memory leave repository

PURPOSE:
  Implements timeoff.Repository without a database. Used by the service
  tests and by anything that wants the full workflow without SQLite.

TRANSACTIONS:
  WithTx holds the write lock for the whole callback, snapshots every
  table first and restores the snapshot if the callback fails. Reads made
  through the Tx see the callback's own writes.

SEE ALSO:
  - store/sqlite/sqlite.go: The persistent implementation
  - timeoff/store.go: The interfaces implemented here
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

type ledgerKey struct {
	EntityID generic.EntityID
	PolicyID generic.PolicyID
}

type recordKey struct {
	RequestID string
	Level     int
}

type tables struct {
	employees    map[string]timeoff.Employee
	schedules    map[string]map[string]timeoff.WorkSchedule // employee -> date -> schedule
	requests     map[string]timeoff.LeaveRequest
	requestOrder []string
	records      map[recordKey]timeoff.ApprovalRecord
	transactions map[ledgerKey][]generic.Transaction
	idempotency  map[string]bool
}

func newTables() tables {
	return tables{
		employees:    make(map[string]timeoff.Employee),
		schedules:    make(map[string]map[string]timeoff.WorkSchedule),
		requests:     make(map[string]timeoff.LeaveRequest),
		records:      make(map[recordKey]timeoff.ApprovalRecord),
		transactions: make(map[ledgerKey][]generic.Transaction),
		idempotency:  make(map[string]bool),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.employees {
		c.employees[k] = v
	}
	for emp, byDate := range t.schedules {
		m := make(map[string]timeoff.WorkSchedule, len(byDate))
		for d, s := range byDate {
			m[d] = s
		}
		c.schedules[emp] = m
	}
	for k, v := range t.requests {
		c.requests[k] = v
	}
	c.requestOrder = append([]string(nil), t.requestOrder...)
	for k, v := range t.records {
		c.records[k] = v
	}
	for k, v := range t.transactions {
		c.transactions[k] = append([]generic.Transaction(nil), v...)
	}
	for k, v := range t.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// Store is a concurrency-safe in-memory repository.
type Store struct {
	mu sync.RWMutex
	t  tables
}

// New returns an empty store.
func New() *Store {
	return &Store{t: newTables()}
}

var (
	_ timeoff.Repository = (*Store)(nil)
	_ timeoff.Tx         = (*txView)(nil)
)

// =============================================================================
// DIRECTORY AND SCHEDULES
// =============================================================================

// SaveEmployee creates or replaces an employee.
func (s *Store) SaveEmployee(_ context.Context, emp timeoff.Employee) error {
	if emp.ID == "" {
		return &generic.MissingFieldError{Field: "id"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.employees[emp.ID] = emp
	return nil
}

// ListEmployees returns all employees ordered by id.
func (s *Store) ListEmployees(_ context.Context) ([]timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timeoff.Employee, 0, len(s.t.employees))
	for _, e := range s.t.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveSchedules upserts schedules keyed by employee and date.
func (s *Store) SaveSchedules(_ context.Context, schedules []timeoff.WorkSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range schedules {
		if ws.Date == nil {
			return fmt.Errorf("schedule for %s: %w", ws.EmployeeID, generic.ErrScheduleNotDated)
		}
		byDate := s.t.schedules[ws.EmployeeID]
		if byDate == nil {
			byDate = make(map[string]timeoff.WorkSchedule)
			s.t.schedules[ws.EmployeeID] = byDate
		}
		byDate[ws.Date.Format("2006-01-02")] = ws
	}
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emp, ok := s.t.employees[id]
	if !ok {
		return timeoff.Employee{}, fmt.Errorf("%w: %s", generic.ErrEntityNotFound, id)
	}
	return emp, nil
}

func (s *Store) SupervisorOf(_ context.Context, employeeID string) (*timeoff.Approver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emp, ok := s.t.employees[employeeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrEntityNotFound, employeeID)
	}
	if emp.SupervisorID == nil || *emp.SupervisorID == "" {
		return nil, nil
	}
	sup := &timeoff.Approver{ID: *emp.SupervisorID, Name: *emp.SupervisorID}
	if e, ok := s.t.employees[sup.ID]; ok && e.Name != "" {
		sup.Name = e.Name
	}
	return sup, nil
}

func (s *Store) SchedulesBetween(_ context.Context, employeeID string, from, to time.Time) ([]timeoff.WorkSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo, hi := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []timeoff.WorkSchedule
	for d, ws := range s.t.schedules[employeeID] {
		if d >= lo && d <= hi {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(*out[j].Date) })
	return out, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) GetRequest(_ context.Context, id string) (timeoff.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.getRequest(id)
}

func (s *Store) ListRequests(_ context.Context, filter timeoff.RequestFilter) ([]timeoff.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timeoff.LeaveRequest
	for _, id := range s.t.requestOrder {
		if r := s.t.requests[id]; filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ApprovalRecords(_ context.Context, requestID string) ([]timeoff.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timeoff.ApprovalRecord
	for k, rec := range s.t.records {
		if k.RequestID == requestID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (t tables) getRequest(id string) (timeoff.LeaveRequest, error) {
	r, ok := t.requests[id]
	if !ok {
		return timeoff.LeaveRequest{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return r, nil
}

// =============================================================================
// LEDGER (generic.Store)
// =============================================================================

func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.append(tx)
}

func (s *Store) LoadByEntity(_ context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.loadByEntity(entityID, from, to), nil
}

func (s *Store) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.idempotency[idempotencyKey], nil
}

func (t tables) append(tx generic.Transaction) error {
	if tx.IdempotencyKey != "" {
		if t.idempotency[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		t.idempotency[tx.IdempotencyKey] = true
	}
	k := ledgerKey{EntityID: tx.EntityID, PolicyID: tx.PolicyID}
	t.transactions[k] = append(t.transactions[k], tx)
	sort.SliceStable(t.transactions[k], func(i, j int) bool {
		return t.transactions[k][i].EffectiveAt.Before(t.transactions[k][j].EffectiveAt)
	})
	return nil
}

func (t tables) loadByEntity(entityID generic.EntityID, from, to generic.TimePoint) []generic.Transaction {
	var out []generic.Transaction
	for k, txs := range t.transactions {
		if k.EntityID != entityID {
			continue
		}
		for _, tx := range txs {
			if inRange(tx.EffectiveAt, from, to) {
				out = append(out, tx)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveAt.Before(out[j].EffectiveAt) })
	return out
}

func inRange(at, from, to generic.TimePoint) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && at.After(to) {
		return false
	}
	return true
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn with exclusive access and rolls every table back if fn
// fails.
func (s *Store) WithTx(ctx context.Context, fn func(timeoff.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.t.clone()
	if err := fn(&txView{t: &s.t}); err != nil {
		s.t = snapshot
		return err
	}
	return nil
}

// txView operates on the locked tables directly.
type txView struct {
	t *tables
}

func (v *txView) InsertRequest(_ context.Context, req timeoff.LeaveRequest) error {
	if _, exists := v.t.requests[req.ID]; exists {
		return fmt.Errorf("insert request %s: already exists", req.ID)
	}
	v.t.requests[req.ID] = req
	v.t.requestOrder = append(v.t.requestOrder, req.ID)
	return nil
}

func (v *txView) UpdateRequest(_ context.Context, req timeoff.LeaveRequest, fromStatus timeoff.Status, fromLevel int) error {
	cur, err := v.t.getRequest(req.ID)
	if err != nil {
		return err
	}
	if cur.Status != fromStatus || cur.Level != fromLevel {
		return &generic.InvalidStateError{
			RequestID:     req.ID,
			Status:        string(cur.Status),
			Level:         cur.Level,
			ExpectedLevel: fromLevel,
		}
	}
	v.t.requests[req.ID] = req
	return nil
}

func (v *txView) InsertApprovalRecord(_ context.Context, rec timeoff.ApprovalRecord) error {
	k := recordKey{RequestID: rec.RequestID, Level: rec.Level}
	if _, exists := v.t.records[k]; exists {
		return fmt.Errorf("%w: request %s level %d", generic.ErrDuplicateRecord, rec.RequestID, rec.Level)
	}
	v.t.records[k] = rec
	return nil
}

func (v *txView) Append(_ context.Context, tx generic.Transaction) error {
	return v.t.append(tx)
}

func (v *txView) LoadByEntity(_ context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return v.t.loadByEntity(entityID, from, to), nil
}

func (v *txView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return v.t.idempotency[idempotencyKey], nil
}
