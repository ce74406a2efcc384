/*
workflow.go - Approval state machine

PURPOSE:
  Decides the initial status of a validated request and advances it as
  approvers act. The functions here are pure: they take the current
  request, the supervisor chain and the action, and return the next state
  plus the audit record. Persisting the result atomically is the
  repository's job (RequestService.Act).

STATES:
  pending@L (L = 1..len(chain))  non-terminal
  approved                       terminal (level 0 = auto-approved)
  rejected                       terminal
  cancelled                      terminal, requester only, from pending

TRANSITIONS:
  submit, empty chain   -> approved@0 + system record at level 0
  submit, chain [a,b]   -> pending@1, current approver a
  approve at L < len    -> pending@L+1, current approver chain[L]
  approve at L == len   -> approved, no current approver
  reject at any L       -> rejected (comment required)
  cancel                -> cancelled (requester, while pending)

FAILURES:
  Rejection without comment fails before anything else is checked.
  Any action on a request that is not pending at the expected level fails
  with ErrInvalidStateTransition; there is no silent no-op.

SEE ALSO:
  - hierarchy.go: Builds the supervisor chain
  - request.go: Applies transitions through the repository
*/
package timeoff

import (
	"fmt"
	"strings"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/google/uuid"
)

// Synthetic approver used for auto-approval records.
const (
	SystemApproverID    = "system"
	SystemApproverName  = "System"
	AutoApprovalComment = "Automatically approved: no supervisor in the approval chain"
)

// Approver is one entry of the supervisor chain.
type Approver struct {
	ID   string
	Name string
}

// Action is an approver's decision on a pending request.
type Action struct {
	RequestID     string
	ApproverID    string
	ExpectedLevel int
	Decision      Decision
	Comment       string
}

// Transition is the result of an approver action. FromStatus/FromLevel are
// the state the repository must still observe when applying it.
type Transition struct {
	FromStatus Status
	FromLevel  int
	Request    LeaveRequest
	Record     ApprovalRecord
}

// Final reports whether the request reached a terminal status.
func (t Transition) Final() bool { return t.Request.Status.IsTerminal() }

// Workflow drives the approval state machine.
type Workflow struct {
	// NewID generates record ids. Defaults to uuid.NewString.
	NewID func() string
}

// NewWorkflow returns a workflow that issues UUID record ids.
func NewWorkflow() *Workflow {
	return &Workflow{NewID: uuid.NewString}
}

func (w *Workflow) id() string {
	if w == nil || w.NewID == nil {
		return uuid.NewString()
	}
	return w.NewID()
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit sets the initial state of a validated request. An empty chain
// auto-approves and yields exactly one level-0 record; otherwise the
// request waits on chain[0] and no record is written.
func (w *Workflow) Submit(req LeaveRequest, chain []Approver, now time.Time) (LeaveRequest, []ApprovalRecord) {
	req.CreatedAt = now
	req.UpdatedAt = now

	if len(chain) == 0 {
		req.Status = StatusApproved
		req.Level = 0
		req.CurrentApprover = nil
		return req, []ApprovalRecord{{
			ID:           w.id(),
			RequestID:    req.ID,
			ApproverID:   SystemApproverID,
			ApproverName: SystemApproverName,
			Level:        0,
			Decision:     DecisionApproved,
			Comment:      AutoApprovalComment,
			DecidedAt:    now,
		}}
	}

	first := chain[0].ID
	req.Status = StatusPending
	req.Level = 1
	req.CurrentApprover = &first
	return req, nil
}

// =============================================================================
// APPROVER ACTIONS
// =============================================================================

// Decide applies an approve or reject action at the request's current level.
func (w *Workflow) Decide(req LeaveRequest, chain []Approver, act Action, now time.Time) (Transition, error) {
	if act.Decision == DecisionRejected && strings.TrimSpace(act.Comment) == "" {
		return Transition{}, &generic.MissingFieldError{Field: "comment"}
	}
	if act.Decision != DecisionApproved && act.Decision != DecisionRejected {
		return Transition{}, fmt.Errorf("%w: decision must be approved or rejected, got %q",
			generic.ErrMissingRequiredField, act.Decision)
	}
	if req.Status != StatusPending || req.Level != act.ExpectedLevel {
		return Transition{}, &generic.InvalidStateError{
			RequestID:     req.ID,
			Status:        string(req.Status),
			Level:         req.Level,
			ExpectedLevel: act.ExpectedLevel,
		}
	}
	if req.CurrentApprover == nil || *req.CurrentApprover != act.ApproverID {
		return Transition{}, fmt.Errorf("%w: request %s is waiting on another approver",
			generic.ErrNotCurrentApprover, req.ID)
	}

	level := req.Level
	tr := Transition{
		FromStatus: req.Status,
		FromLevel:  level,
		Record: ApprovalRecord{
			ID:           w.id(),
			RequestID:    req.ID,
			ApproverID:   act.ApproverID,
			ApproverName: approverName(chain, level, act.ApproverID),
			Level:        level,
			Decision:     act.Decision,
			Comment:      strings.TrimSpace(act.Comment),
			DecidedAt:    now,
		},
	}

	next := req
	next.UpdatedAt = now
	switch {
	case act.Decision == DecisionRejected:
		next.Status = StatusRejected
		next.CurrentApprover = nil
	case level >= len(chain):
		next.Status = StatusApproved
		next.CurrentApprover = nil
	default:
		following := chain[level].ID
		next.Level = level + 1
		next.CurrentApprover = &following
	}
	tr.Request = next
	return tr, nil
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (w *Workflow) Cancel(req LeaveRequest, actorID string, now time.Time) (LeaveRequest, error) {
	if req.RequesterID != actorID {
		return LeaveRequest{}, fmt.Errorf("%w: request %s", generic.ErrNotRequester, req.ID)
	}
	if req.Status != StatusPending {
		return LeaveRequest{}, &generic.InvalidStateError{
			RequestID:     req.ID,
			Status:        string(req.Status),
			Level:         req.Level,
			ExpectedLevel: req.Level,
		}
	}
	req.Status = StatusCancelled
	req.CurrentApprover = nil
	req.UpdatedAt = now
	return req, nil
}

func approverName(chain []Approver, level int, approverID string) string {
	if level >= 1 && level <= len(chain) && chain[level-1].ID == approverID {
		return chain[level-1].Name
	}
	for _, a := range chain {
		if a.ID == approverID {
			return a.Name
		}
	}
	return approverID
}
