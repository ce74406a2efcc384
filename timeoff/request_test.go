package timeoff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/flpliao/lovable-clock-flow-sub004/store/memory"
	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

var serviceNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// newService builds ceo <- mgr <- emp on an in-memory store.
func newService(t *testing.T, repo timeoff.Repository, store *memory.Store) *timeoff.RequestService {
	t.Helper()
	ctx := context.Background()
	hired := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	ceo, mgr := "ceo", "mgr"

	for _, emp := range []timeoff.Employee{
		{ID: "ceo", Name: "Chen", HireDate: hired},
		{ID: "mgr", Name: "Lin", HireDate: hired, SupervisorID: &ceo},
		{ID: "emp", Name: "Wang", HireDate: hired, SupervisorID: &mgr},
	} {
		require.NoError(t, store.SaveEmployee(ctx, emp))
	}

	svc := timeoff.NewRequestService(repo, timeoff.NewEngine(nil, decimal.NewFromInt(8)))
	svc.Clock = func() time.Time { return serviceNow }
	return svc
}

func personal(requester, day string) timeoff.SubmitInput {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return timeoff.SubmitInput{
		RequesterID: requester,
		LeaveType:   timeoff.CodePersonal,
		Start:       d.Add(9 * time.Hour),
		End:         d.Add(18 * time.Hour),
		Reason:      "moving house",
	}
}

func approve(id, approver string, level int) timeoff.Action {
	return timeoff.Action{RequestID: id, ApproverID: approver, ExpectedLevel: level, Decision: timeoff.DecisionApproved}
}

func TestService_ApprovalChainRecordsUsageOnce(t *testing.T) {
	// GIVEN: A request from an employee with two supervisors
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)

	res, err := svc.Submit(ctx, personal("emp", "2025-06-10"))
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusPending, res.Request.Status)
	assert.True(t, res.Hours.Approximate)
	id := res.Request.ID

	// WHEN: Both supervisors approve in order
	_, err = svc.Act(ctx, approve(id, "mgr", 1))
	require.NoError(t, err)

	usage, err := svc.Usage(ctx, "emp", serviceNow)
	require.NoError(t, err)
	assert.True(t, usage.Used(timeoff.CodePersonal).IsZero(), "nothing is consumed before the final approval")

	tr, err := svc.Act(ctx, approve(id, "ceo", 2))
	require.NoError(t, err)

	// THEN: The request is approved with one record per level and one usage entry
	assert.Equal(t, timeoff.StatusApproved, tr.Request.Status)
	_, records, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Level)
	assert.Equal(t, 2, records[1].Level)

	usage, err = svc.Usage(ctx, "emp", serviceNow)
	require.NoError(t, err)
	assert.Equal(t, "1", usage.Used(timeoff.CodePersonal).String())

	// AND: Replaying the final approval changes nothing
	_, err = svc.Act(ctx, approve(id, "ceo", 2))
	assert.ErrorIs(t, err, generic.ErrInvalidStateTransition)
	usage, err = svc.Usage(ctx, "emp", serviceNow)
	require.NoError(t, err)
	assert.Equal(t, "1", usage.Used(timeoff.CodePersonal).String())
}

func TestService_TopOfHierarchyAutoApproves(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)

	res, err := svc.Submit(ctx, personal("ceo", "2025-06-10"))

	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusApproved, res.Request.Status)
	require.Len(t, res.Records, 1)
	assert.Equal(t, timeoff.SystemApproverID, res.Records[0].ApproverID)

	usage, err := svc.Usage(ctx, "ceo", serviceNow)
	require.NoError(t, err)
	assert.Equal(t, "1", usage.Used(timeoff.CodePersonal).String())
}

func TestService_ConcurrentApprovalsAtSameLevel(t *testing.T) {
	// GIVEN: A request pending at level 1
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)
	res, err := svc.Submit(ctx, personal("emp", "2025-06-10"))
	require.NoError(t, err)

	// WHEN: The same approval arrives twice at once
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Act(ctx, approve(res.Request.ID, "mgr", 1))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// THEN: Exactly one wins and the other sees a stale state
	var ok, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, generic.ErrInvalidStateTransition):
			stale++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, stale)

	req, records, err := svc.Get(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, req.Level)
	assert.Len(t, records, 1)
}

// failingRecords makes every approval-record insert fail inside the
// transaction.
type failingRecords struct {
	*memory.Store
}

type failingTx struct {
	timeoff.Tx
}

func (failingTx) InsertApprovalRecord(context.Context, timeoff.ApprovalRecord) error {
	return errors.New("disk full")
}

func (r failingRecords) WithTx(ctx context.Context, fn func(timeoff.Tx) error) error {
	return r.Store.WithTx(ctx, func(tx timeoff.Tx) error { return fn(failingTx{tx}) })
}

func TestService_FailedActionRollsBack(t *testing.T) {
	// GIVEN: A pending request and a store that fails mid-transaction
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)
	res, err := svc.Submit(ctx, personal("emp", "2025-06-10"))
	require.NoError(t, err)

	svc.Repo = failingRecords{store}

	// WHEN: The approver acts
	_, err = svc.Act(ctx, approve(res.Request.ID, "mgr", 1))

	// THEN: The status change is rolled back with the failed record
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	req, records, err := svc.Get(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusPending, req.Status)
	assert.Equal(t, 1, req.Level)
	assert.Empty(t, records)
}

func TestService_ValidationFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)
	_, err := svc.Submit(ctx, personal("emp", "2025-06-10"))
	require.NoError(t, err)

	res, err := svc.Submit(ctx, personal("emp", "2025-06-10"))

	var failed *generic.ValidationFailedError
	require.ErrorAs(t, err, &failed)
	assert.NotEmpty(t, res.Verdict.Errors)
	requests, err := svc.ListFor(ctx, "emp")
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestService_CancelFreesTheRange(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)
	res, err := svc.Submit(ctx, personal("emp", "2025-06-10"))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, res.Request.ID, "mgr")
	assert.ErrorIs(t, err, generic.ErrNotRequester)

	cancelled, err := svc.Cancel(ctx, res.Request.ID, "emp")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusCancelled, cancelled.Status)

	pending, err := svc.PendingFor(ctx, "mgr")
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = svc.Submit(ctx, personal("emp", "2025-06-10"))
	assert.NoError(t, err)
}

func TestService_EstimateHoursUsesSchedules(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSchedules(ctx, []timeoff.WorkSchedule{
		{EmployeeID: "emp", Date: &day, ClockIn: "09:00", ClockOut: "18:00"},
	}))

	est, err := svc.EstimateHours(ctx, "emp", day.Add(10*time.Hour), day.Add(16*time.Hour))

	require.NoError(t, err)
	assert.False(t, est.Approximate)
	assert.Equal(t, "5", est.Hours.String())
	assert.Equal(t, "0.63", est.Days.String())
}

// weekdays returns n working days from 2025-06-02 on.
func weekdays(n int) []string {
	var out []string
	for d := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC); len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d.Format("2006-01-02"))
	}
	return out
}

func issueCodes(issues []timeoff.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}

func TestService_PendingRequestsCountTowardsQuota(t *testing.T) {
	// GIVEN: Fourteen single-day personal requests, all still pending
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)
	days := weekdays(15)

	var ids []string
	for _, day := range days[:14] {
		res, err := svc.Submit(ctx, personal("emp", day))
		require.NoError(t, err, day)
		ids = append(ids, res.Request.ID)
	}

	// WHEN: A fifteenth day is requested
	res, err := svc.Submit(ctx, personal("emp", days[14]))

	// THEN: The yearly cap counts the pending days
	var failed *generic.ValidationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, issueCodes(res.Verdict.Errors), timeoff.IssueQuotaExceeded)

	// AND: Approving one of them does not free a day or count it twice
	_, err = svc.Act(ctx, approve(ids[0], "mgr", 1))
	require.NoError(t, err)
	_, err = svc.Act(ctx, approve(ids[0], "ceo", 2))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, personal("emp", days[14]))
	require.ErrorAs(t, err, &failed)

	// AND: Cancelling one does
	_, err = svc.Cancel(ctx, ids[1], "emp")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, personal("emp", days[14]))
	assert.NoError(t, err)
}

func TestService_PendingMarriageBlocksASecondOne(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store, store)
	marriage := func(day string) timeoff.SubmitInput {
		in := personal("emp", day)
		in.LeaveType = timeoff.CodeMarriage
		in.End = in.End.AddDate(0, 0, 2)
		in.Reason = "wedding"
		return in
	}

	first, err := svc.Submit(ctx, marriage("2025-06-10"))
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusPending, first.Request.Status)

	res, err := svc.Submit(ctx, marriage("2025-09-09"))
	var failed *generic.ValidationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{timeoff.IssueAlreadyUsed}, issueCodes(res.Verdict.Errors))

	_, err = svc.Cancel(ctx, first.Request.ID, "emp")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, marriage("2025-09-09"))
	assert.NoError(t, err)
}
