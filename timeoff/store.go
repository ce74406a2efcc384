package timeoff

import (
	"context"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
)

// =============================================================================
// REPOSITORY - What RequestService needs from persistence
// =============================================================================

// RequestFilter selects requests. Empty fields match everything.
type RequestFilter struct {
	RequesterID string
	ApproverID  string // current approver
	Statuses    []Status
}

// Matches reports whether r passes the filter.
func (f RequestFilter) Matches(r LeaveRequest) bool {
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	if f.ApproverID != "" && (r.CurrentApprover == nil || *r.CurrentApprover != f.ApproverID) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

// Repository is the read side plus the transactional entry point.
// Implementations: store/sqlite, store/memory.
type Repository interface {
	Directory
	generic.Store

	GetEmployee(ctx context.Context, id string) (Employee, error)
	SchedulesBetween(ctx context.Context, employeeID string, from, to time.Time) ([]WorkSchedule, error)

	GetRequest(ctx context.Context, id string) (LeaveRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
	ApprovalRecords(ctx context.Context, requestID string) ([]ApprovalRecord, error)

	// WithTx runs fn in one transaction: everything fn writes commits
	// together or not at all.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side, valid only inside Repository.WithTx.
type Tx interface {
	generic.Store

	InsertRequest(ctx context.Context, req LeaveRequest) error

	// UpdateRequest stores req only if the persisted row is still in
	// fromStatus at fromLevel. Otherwise it returns an error matching
	// generic.ErrInvalidStateTransition and writes nothing.
	UpdateRequest(ctx context.Context, req LeaveRequest, fromStatus Status, fromLevel int) error

	// InsertApprovalRecord fails with generic.ErrDuplicateRecord when the
	// (request, level) pair already has a record.
	InsertApprovalRecord(ctx context.Context, rec ApprovalRecord) error
}
