package timeoff

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
)

var (
	wfNow   = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	twoUp   = []Approver{{ID: "mgr", Name: "Lin"}, {ID: "ceo", Name: "Chen"}}
	counter int
)

func testWorkflow() *Workflow {
	return &Workflow{NewID: func() string {
		counter++
		return fmt.Sprintf("rec-%d", counter)
	}}
}

func draft() LeaveRequest {
	return LeaveRequest{ID: "req-1", RequesterID: "emp", LeaveType: CodePersonal}
}

func TestWorkflowSubmit_EmptyChainAutoApproves(t *testing.T) {
	req, records := testWorkflow().Submit(draft(), nil, wfNow)

	assert.Equal(t, StatusApproved, req.Status)
	assert.Equal(t, 0, req.Level)
	assert.Nil(t, req.CurrentApprover)
	assert.Equal(t, wfNow, req.CreatedAt)
	require.Len(t, records, 1)
	assert.Equal(t, SystemApproverID, records[0].ApproverID)
	assert.Equal(t, SystemApproverName, records[0].ApproverName)
	assert.Equal(t, 0, records[0].Level)
	assert.Equal(t, DecisionApproved, records[0].Decision)
	assert.Equal(t, "req-1", records[0].RequestID)
}

func TestWorkflowSubmit_WaitsOnFirstSupervisor(t *testing.T) {
	req, records := testWorkflow().Submit(draft(), twoUp, wfNow)

	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 1, req.Level)
	require.NotNil(t, req.CurrentApprover)
	assert.Equal(t, "mgr", *req.CurrentApprover)
	assert.Empty(t, records)
}

func TestWorkflowDecide_WalksTheChain(t *testing.T) {
	// GIVEN: A pending request with a two-level chain
	wf := testWorkflow()
	req, _ := wf.Submit(draft(), twoUp, wfNow)

	// WHEN: The first supervisor approves
	tr, err := wf.Decide(req, twoUp, Action{RequestID: req.ID, ApproverID: "mgr", ExpectedLevel: 1, Decision: DecisionApproved}, wfNow.Add(time.Hour))

	// THEN: It moves to level 2 and the record names level 1
	require.NoError(t, err)
	assert.False(t, tr.Final())
	assert.Equal(t, StatusPending, tr.FromStatus)
	assert.Equal(t, 1, tr.FromLevel)
	assert.Equal(t, 2, tr.Request.Level)
	assert.Equal(t, "ceo", *tr.Request.CurrentApprover)
	assert.Equal(t, 1, tr.Record.Level)
	assert.Equal(t, "Lin", tr.Record.ApproverName)

	// WHEN: The last supervisor approves
	tr, err = wf.Decide(tr.Request, twoUp, Action{RequestID: req.ID, ApproverID: "ceo", ExpectedLevel: 2, Decision: DecisionApproved}, wfNow.Add(2*time.Hour))

	// THEN: The request is approved
	require.NoError(t, err)
	assert.True(t, tr.Final())
	assert.Equal(t, StatusApproved, tr.Request.Status)
	assert.Nil(t, tr.Request.CurrentApprover)
	assert.Equal(t, 2, tr.Record.Level)
}

func TestWorkflowDecide_RejectEndsImmediately(t *testing.T) {
	wf := testWorkflow()
	req, _ := wf.Submit(draft(), twoUp, wfNow)

	tr, err := wf.Decide(req, twoUp, Action{ApproverID: "mgr", ExpectedLevel: 1, Decision: DecisionRejected, Comment: "  team offsite  "}, wfNow)

	require.NoError(t, err)
	assert.Equal(t, StatusRejected, tr.Request.Status)
	assert.Nil(t, tr.Request.CurrentApprover)
	assert.Equal(t, "team offsite", tr.Record.Comment)
}

func TestWorkflowDecide_Refusals(t *testing.T) {
	wf := testWorkflow()
	pending, _ := wf.Submit(draft(), twoUp, wfNow)
	approved, _ := wf.Submit(draft(), nil, wfNow)

	tests := []struct {
		name string
		req  LeaveRequest
		act  Action
		want error
	}{
		{"reject without comment", pending, Action{ApproverID: "mgr", ExpectedLevel: 1, Decision: DecisionRejected}, generic.ErrMissingRequiredField},
		{"unknown decision", pending, Action{ApproverID: "mgr", ExpectedLevel: 1, Decision: "maybe"}, generic.ErrMissingRequiredField},
		{"stale level", pending, Action{ApproverID: "mgr", ExpectedLevel: 2, Decision: DecisionApproved}, generic.ErrInvalidStateTransition},
		{"terminal request", approved, Action{ApproverID: "mgr", ExpectedLevel: 0, Decision: DecisionApproved}, generic.ErrInvalidStateTransition},
		{"not the current approver", pending, Action{ApproverID: "ceo", ExpectedLevel: 1, Decision: DecisionApproved}, generic.ErrNotCurrentApprover},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wf.Decide(tt.req, twoUp, tt.act, wfNow)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWorkflowCancel(t *testing.T) {
	wf := testWorkflow()
	pending, _ := wf.Submit(draft(), twoUp, wfNow)

	_, err := wf.Cancel(pending, "mgr", wfNow)
	assert.ErrorIs(t, err, generic.ErrNotRequester)

	cancelled, err := wf.Cancel(pending, "emp", wfNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.CurrentApprover)

	_, err = wf.Cancel(cancelled, "emp", wfNow)
	assert.ErrorIs(t, err, generic.ErrInvalidStateTransition)
}
