package timeoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/flpliao/lovable-clock-flow-sub004/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST SERVICE - Submission and approver actions with transactional writes
// =============================================================================

// RequestService composes the calculators, the validation engine and the
// workflow over a Repository.
type RequestService struct {
	Repo     Repository
	Engine   *Engine
	Workflow *Workflow

	// MaxEscalationDepth bounds the supervisor chain. Zero means
	// DefaultMaxEscalationDepth.
	MaxEscalationDepth int

	// SimpleFallback estimates hours with ComputeHoursSimple when the
	// requester has no schedule in range.
	SimpleFallback bool

	Clock  func() time.Time
	NewID  func() string
	Logger zerolog.Logger
}

// NewRequestService wires a service with UUID ids and the wall clock.
func NewRequestService(repo Repository, engine *Engine) *RequestService {
	return &RequestService{
		Repo:               repo,
		Engine:             engine,
		Workflow:           NewWorkflow(),
		MaxEscalationDepth: DefaultMaxEscalationDepth,
		SimpleFallback:     true,
		Clock:              func() time.Time { return time.Now().UTC() },
		NewID:              uuid.NewString,
		Logger:             logging.Component("requests"),
	}
}

func (rs *RequestService) now() time.Time {
	if rs.Clock == nil {
		return time.Now().UTC()
	}
	return rs.Clock()
}

func (rs *RequestService) log(ctx context.Context) *zerolog.Logger {
	l := logging.FromContext(ctx, rs.Logger)
	return &l
}

// SubmitInput is a new request as the requester fills it in.
type SubmitInput struct {
	RequesterID string
	LeaveType   Code
	Start       time.Time
	End         time.Time
	Reason      string
	Extras      Extras
}

// HoursEstimate is a computed hour count and how it was computed.
type HoursEstimate struct {
	Hours       decimal.Decimal
	Days        decimal.Decimal
	Approximate bool
}

// SubmitResult is the created request with its initial records. Verdict
// is filled even when submission fails validation.
type SubmitResult struct {
	Request LeaveRequest
	Records []ApprovalRecord
	Verdict Verdict
	Hours   HoursEstimate
}

// =============================================================================
// HOURS AND VALIDATION (read-only)
// =============================================================================

// EstimateHours computes the hours a range costs the employee.
func (rs *RequestService) EstimateHours(ctx context.Context, employeeID string, start, end time.Time) (HoursEstimate, error) {
	if err := ValidateRange(start, end, nil); err != nil {
		return HoursEstimate{}, err
	}
	schedules, err := rs.Repo.SchedulesBetween(ctx, employeeID, generic.DayOf(start).Time, generic.DayOf(end).Time)
	if err != nil {
		return HoursEstimate{}, fmt.Errorf("load schedules for %s: %w", employeeID, err)
	}

	var est HoursEstimate
	if len(schedules) == 0 && rs.SimpleFallback {
		est.Hours, err = ComputeHoursSimple(start, end, rs.Engine.HoursPerDay)
		est.Approximate = true
	} else {
		est.Hours, err = ComputeHoursBySchedule(start, end, schedules)
	}
	if err != nil {
		return HoursEstimate{}, err
	}
	est.Days = est.Hours.Div(rs.Engine.HoursPerDay).Round(2)
	return est, nil
}

// Usage returns the employee's usage snapshot for asOf's year.
func (rs *RequestService) Usage(ctx context.Context, employeeID string, asOf time.Time) (LeaveUsage, error) {
	return NewUsageLedger(rs.Repo).Snapshot(ctx, employeeID, asOf)
}

// Check builds the full validation input for in and returns the verdict
// without writing anything.
func (rs *RequestService) Check(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	if err := ValidateRange(in.Start, in.End, nil); err != nil {
		return SubmitResult{}, err
	}
	if _, ok := rs.Engine.Catalog.Lookup(in.LeaveType); !ok {
		if in.LeaveType == "" {
			return SubmitResult{}, &generic.MissingFieldError{Field: "leave_type"}
		}
		return SubmitResult{}, fmt.Errorf("%w: %q", generic.ErrUnknownLeaveType, in.LeaveType)
	}

	emp, err := rs.Repo.GetEmployee(ctx, in.RequesterID)
	if err != nil {
		return SubmitResult{}, err
	}
	est, err := rs.EstimateHours(ctx, emp.ID, in.Start, in.End)
	if err != nil {
		return SubmitResult{}, err
	}
	usage, err := rs.Usage(ctx, emp.ID, in.Start)
	if err != nil {
		return SubmitResult{}, err
	}
	existing, err := rs.Repo.ListRequests(ctx, RequestFilter{RequesterID: emp.ID})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load existing requests: %w", err)
	}
	usage = FoldPending(usage, existing, rs.Engine.RequestedDays)

	req := LeaveRequest{
		RequesterID: emp.ID,
		LeaveType:   in.LeaveType,
		Start:       in.Start,
		End:         in.End,
		Hours:       est.Hours,
		Reason:      in.Reason,
		Extras:      in.Extras,
	}
	verdict, err := rs.Engine.Validate(ValidationInput{
		Request:  req,
		Profile:  RequesterProfile{EmployeeID: emp.ID, HireDate: emp.HireDate},
		Usage:    usage,
		Existing: existing,
		AsOf:     in.Start,
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Request: req, Verdict: verdict, Hours: est}, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and creates a request. With no supervisor the request
// is approved immediately and its usage recorded in the same transaction.
// A request with blocking errors is not stored; the result still carries
// the verdict and the returned error is a *generic.ValidationFailedError.
func (rs *RequestService) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	res, err := rs.Check(ctx, in)
	if err != nil {
		return res, err
	}
	logger := rs.log(ctx).With().Str("requester_id", in.RequesterID).Str("leave_type", string(in.LeaveType)).Logger()

	if err := res.Verdict.Err(); err != nil {
		logger.Warn().Strs("errors", res.Verdict.ErrorMessages()).Msg("leave request rejected by validation")
		return res, err
	}

	chain, err := SupervisorChain(ctx, rs.Repo, in.RequesterID, rs.MaxEscalationDepth)
	if err != nil {
		return res, err
	}

	now := rs.now()
	draft := res.Request
	draft.ID = rs.NewID()
	req, records := rs.Workflow.Submit(draft, chain, now)

	err = rs.Repo.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertRequest(ctx, req); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		for _, rec := range records {
			if err := tx.InsertApprovalRecord(ctx, rec); err != nil {
				return fmt.Errorf("insert approval record: %w", err)
			}
		}
		if req.Status == StatusApproved {
			return NewUsageLedger(tx).RecordApproval(ctx, req, rs.Engine.RequestedDays(req), SystemApproverID, now)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	res.Request = req
	res.Records = records
	logger.Info().
		Str("request_id", req.ID).
		Str("status", string(req.Status)).
		Int("chain_length", len(chain)).
		Str("hours", req.Hours.String()).
		Msg("leave request submitted")
	return res, nil
}

// =============================================================================
// APPROVER ACTIONS
// =============================================================================

// Act applies an approver decision. The status change, the approval
// record and, on final approval, the usage entry are written in one
// transaction guarded by the expected status and level; a concurrent
// action that got there first makes this one fail with
// generic.ErrInvalidStateTransition.
func (rs *RequestService) Act(ctx context.Context, act Action) (Transition, error) {
	req, err := rs.Repo.GetRequest(ctx, act.RequestID)
	if err != nil {
		return Transition{}, err
	}
	chain, err := SupervisorChain(ctx, rs.Repo, req.RequesterID, rs.MaxEscalationDepth)
	if err != nil {
		return Transition{}, err
	}

	now := rs.now()
	tr, err := rs.Workflow.Decide(req, chain, act, now)
	if err != nil {
		return Transition{}, err
	}

	err = rs.Repo.WithTx(ctx, func(tx Tx) error {
		if err := tx.UpdateRequest(ctx, tr.Request, tr.FromStatus, tr.FromLevel); err != nil {
			return err
		}
		if err := tx.InsertApprovalRecord(ctx, tr.Record); err != nil {
			if errors.Is(err, generic.ErrDuplicateRecord) {
				return fmt.Errorf("%w: level %d already decided", generic.ErrInvalidStateTransition, tr.FromLevel)
			}
			return fmt.Errorf("insert approval record: %w", err)
		}
		if tr.Request.Status == StatusApproved {
			return NewUsageLedger(tx).RecordApproval(ctx, tr.Request, rs.Engine.RequestedDays(tr.Request), act.ApproverID, now)
		}
		return nil
	})
	if err != nil {
		return Transition{}, err
	}

	rs.log(ctx).Info().
		Str("request_id", req.ID).
		Str("approver_id", act.ApproverID).
		Int("level", tr.FromLevel).
		Str("decision", string(act.Decision)).
		Str("status", string(tr.Request.Status)).
		Msg("approval action applied")
	return tr, nil
}

// Cancel withdraws a pending request on behalf of its requester.
func (rs *RequestService) Cancel(ctx context.Context, requestID, actorID string) (LeaveRequest, error) {
	req, err := rs.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	next, err := rs.Workflow.Cancel(req, actorID, rs.now())
	if err != nil {
		return LeaveRequest{}, err
	}
	err = rs.Repo.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateRequest(ctx, next, req.Status, req.Level)
	})
	if err != nil {
		return LeaveRequest{}, err
	}
	rs.log(ctx).Info().Str("request_id", req.ID).Msg("leave request cancelled")
	return next, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a request with its approval records.
func (rs *RequestService) Get(ctx context.Context, requestID string) (LeaveRequest, []ApprovalRecord, error) {
	req, err := rs.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, nil, err
	}
	records, err := rs.Repo.ApprovalRecords(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, nil, err
	}
	return req, records, nil
}

// PendingFor lists requests waiting on approverID.
func (rs *RequestService) PendingFor(ctx context.Context, approverID string) ([]LeaveRequest, error) {
	return rs.Repo.ListRequests(ctx, RequestFilter{ApproverID: approverID, Statuses: []Status{StatusPending}})
}

// ListFor lists an employee's requests.
func (rs *RequestService) ListFor(ctx context.Context, employeeID string, statuses ...Status) ([]LeaveRequest, error) {
	return rs.Repo.ListRequests(ctx, RequestFilter{RequesterID: employeeID, Statuses: statuses})
}
