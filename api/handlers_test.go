/*
handlers_test.go - HTTP tests for the leave request API

Tests for:
- Submission (auto-approval, pending, validation failures)
- Multi-level approval, rejection, cancellation
- Stale level, wrong approver, not found
- Hours preview, leave types, usage
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flpliao/lovable-clock-flow-sub004/store/sqlite"
	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

type testEnv struct {
	store  *sqlite.Store
	router *chi.Mux
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// newTestEnv builds ceo <- mgr <- emp on an in-memory database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	hire := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveEmployee(ctx, timeoff.Employee{ID: "ceo", Name: "Chen", HireDate: hire}))
	require.NoError(t, store.SaveEmployee(ctx, timeoff.Employee{ID: "mgr", Name: "Lin", HireDate: hire, SupervisorID: strPtr("ceo")}))
	require.NoError(t, store.SaveEmployee(ctx, timeoff.Employee{ID: "emp", Name: "Wu", HireDate: hire, SupervisorID: strPtr("mgr")}))

	svc := timeoff.NewRequestService(store, timeoff.NewEngine(nil, decimal.NewFromInt(8)))
	svc.Clock = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }

	h := NewHandler(store, svc)
	return &testEnv{store: store, router: NewRouter(h, RouterOptions{})}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func personalDay(day string) SubmitRequestDTO {
	return SubmitRequestDTO{
		LeaveType: "personal",
		Start:     day + "T09:00",
		End:       day + "T18:00",
		Reason:    "family matters",
	}
}

func (e *testEnv) submit(t *testing.T, employeeID string, body SubmitRequestDTO) LeaveRequestDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/employees/"+employeeID+"/requests", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SubmitResponseDTO](t, rec).Request
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_NoSupervisorAutoApproves(t *testing.T) {
	// GIVEN: The top of the hierarchy
	env := newTestEnv(t)

	// WHEN: They submit a request
	rec := env.do(t, http.MethodPost, "/api/employees/ceo/requests", personalDay("2025-06-10"))

	// THEN: It is approved at once with one system record at level 0
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[SubmitResponseDTO](t, rec)
	assert.Equal(t, "approved", resp.Request.Status)
	assert.Equal(t, 0, resp.Request.Level)
	assert.Nil(t, resp.Request.CurrentApproverID)
	require.Len(t, resp.Request.Approvals, 1)
	assert.Equal(t, timeoff.SystemApproverID, resp.Request.Approvals[0].ApproverID)
	assert.Equal(t, 0, resp.Request.Approvals[0].Level)
	assert.True(t, resp.Hours.Approximate, "no schedules, so hours are estimated")
	assert.Equal(t, 8.0, resp.Hours.Hours)

	// AND: Usage reflects the approved day
	usage := decode[UsageDTO](t, env.do(t, http.MethodGet, "/api/employees/ceo/usage?as_of=2025-06-30", nil))
	assert.Equal(t, 1.0, usage.UsedDays["personal"])
}

func TestSubmit_WithSupervisorIsPending(t *testing.T) {
	env := newTestEnv(t)

	got := env.submit(t, "emp", personalDay("2025-06-10"))

	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, 1, got.Level)
	require.NotNil(t, got.CurrentApproverID)
	assert.Equal(t, "mgr", *got.CurrentApproverID)
	assert.Empty(t, got.Approvals)

	pending := decode[[]LeaveRequestDTO](t, env.do(t, http.MethodGet, "/api/approvers/mgr/pending", nil))
	require.Len(t, pending, 1)
	assert.Equal(t, got.ID, pending[0].ID)
}

func TestSubmit_ValidationFailureReturnsAllErrors(t *testing.T) {
	// GIVEN: A request with no reason that overlaps an existing one
	env := newTestEnv(t)
	env.submit(t, "emp", personalDay("2025-06-10"))

	body := personalDay("2025-06-10")
	body.Reason = "  "

	// WHEN: Submitting
	rec := env.do(t, http.MethodPost, "/api/employees/emp/requests", body)

	// THEN: 422 lists both problems and nothing is stored
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, CodeValidationFailed, resp.Code)
	assert.Len(t, resp.Errors, 2)

	list := decode[[]LeaveRequestDTO](t, env.do(t, http.MethodGet, "/api/employees/emp/requests", nil))
	assert.Len(t, list, 1)
}

func TestSubmit_BadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		path   string
		body   SubmitRequestDTO
		status int
	}{
		{"unparseable start", "/api/employees/emp/requests", SubmitRequestDTO{LeaveType: "personal", Start: "soon", End: "2025-06-10", Reason: "x"}, http.StatusBadRequest},
		{"end before start", "/api/employees/emp/requests", SubmitRequestDTO{LeaveType: "personal", Start: "2025-06-10T18:00", End: "2025-06-10T09:00", Reason: "x"}, http.StatusBadRequest},
		{"unknown leave type", "/api/employees/emp/requests", SubmitRequestDTO{LeaveType: "sabbatical", Start: "2025-06-10", End: "2025-06-10", Reason: "x"}, http.StatusBadRequest},
		{"unknown employee", "/api/employees/ghost/requests", personalDay("2025-06-10"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestValidate_DryRunReportsVerdict(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/requests/validate", ValidateRequestDTO{
		EmployeeID: "emp",
		SubmitRequestDTO: SubmitRequestDTO{
			LeaveType: "bereavement",
			Start:     "2025-06-10",
			End:       "2025-06-10",
			Reason:    "funeral",
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verdict := decode[VerdictDTO](t, rec)
	assert.False(t, verdict.Valid)
	require.Len(t, verdict.Errors, 1)
	assert.Equal(t, timeoff.IssueRelationshipRequired, verdict.Errors[0].Code)

	list := decode[[]LeaveRequestDTO](t, env.do(t, http.MethodGet, "/api/employees/emp/requests", nil))
	assert.Empty(t, list, "dry run must not create a request")
}

// =============================================================================
// APPROVAL
// =============================================================================

func TestApprove_TwoLevelChain(t *testing.T) {
	// GIVEN: A pending request from emp (chain: mgr, ceo)
	env := newTestEnv(t)
	created := env.submit(t, "emp", personalDay("2025-06-10"))

	// WHEN: mgr approves level 1
	rec := env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve",
		ActionRequest{ApproverID: "mgr", ExpectedLevel: intPtr(1)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	afterFirst := decode[LeaveRequestDTO](t, rec)

	// THEN: It escalates to ceo
	assert.Equal(t, "pending", afterFirst.Status)
	assert.Equal(t, 2, afterFirst.Level)
	require.NotNil(t, afterFirst.CurrentApproverID)
	assert.Equal(t, "ceo", *afterFirst.CurrentApproverID)

	// WHEN: ceo approves without naming a level
	rec = env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve",
		ActionRequest{ApproverID: "ceo", Comment: "enjoy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: It is approved with one record per level
	final := decode[LeaveRequestDTO](t, env.do(t, http.MethodGet, "/api/requests/"+created.ID, nil))
	assert.Equal(t, "approved", final.Status)
	assert.Nil(t, final.CurrentApproverID)
	require.Len(t, final.Approvals, 2)
	assert.Equal(t, "Lin", final.Approvals[0].ApproverName)
	assert.Equal(t, 1, final.Approvals[0].Level)
	assert.Equal(t, "Chen", final.Approvals[1].ApproverName)
	assert.Equal(t, "enjoy", final.Approvals[1].Comment)

	usage := decode[UsageDTO](t, env.do(t, http.MethodGet, "/api/employees/emp/usage?as_of=2025-06-30", nil))
	assert.Equal(t, 1.0, usage.UsedDays["personal"])
	assert.Equal(t, 15.0, usage.AnnualEntitlement)
}

func TestReject_RequiresComment(t *testing.T) {
	env := newTestEnv(t)
	created := env.submit(t, "emp", personalDay("2025-06-10"))

	rec := env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/reject",
		ActionRequest{ApproverID: "mgr", ExpectedLevel: intPtr(1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/reject",
		ActionRequest{ApproverID: "mgr", ExpectedLevel: intPtr(1), Comment: "busy week"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[LeaveRequestDTO](t, rec)
	assert.Equal(t, "rejected", got.Status)
	require.Len(t, got.Approvals, 1)
	assert.Equal(t, "rejected", got.Approvals[0].Decision)

	usage := decode[UsageDTO](t, env.do(t, http.MethodGet, "/api/employees/emp/usage?as_of=2025-06-30", nil))
	assert.Zero(t, usage.UsedDays["personal"], "rejected requests consume nothing")
}

func TestApprove_StaleLevelConflicts(t *testing.T) {
	env := newTestEnv(t)
	created := env.submit(t, "emp", personalDay("2025-06-10"))

	rec := env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve",
		ActionRequest{ApproverID: "mgr", ExpectedLevel: intPtr(2)})

	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, CodeInvalidState, decode[ErrorResponse](t, rec).Code)
}

func TestApprove_WrongApproverForbidden(t *testing.T) {
	env := newTestEnv(t)
	created := env.submit(t, "emp", personalDay("2025-06-10"))

	rec := env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve",
		ActionRequest{ApproverID: "ceo", ExpectedLevel: intPtr(1)})

	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestApprove_TerminalRequestConflicts(t *testing.T) {
	env := newTestEnv(t)
	created := env.submit(t, "ceo", personalDay("2025-06-10"))

	rec := env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/approve",
		ActionRequest{ApproverID: "ceo", ExpectedLevel: intPtr(0)})

	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	created := env.submit(t, "emp", personalDay("2025-06-10"))

	rec := env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/cancel", CancelRequest{RequesterID: "mgr"})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/requests/"+created.ID+"/cancel", CancelRequest{RequesterID: "emp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[LeaveRequestDTO](t, rec).Status)

	// A cancelled request no longer blocks its days.
	env.submit(t, "emp", personalDay("2025-06-10"))
}

func TestGetRequest_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/requests/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// DIRECTORY, HOURS, CATALOG
// =============================================================================

func TestPreviewHours_UsesSchedule(t *testing.T) {
	// GIVEN: A 09:00-18:00 schedule on the day
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/employees/emp/schedules", SaveSchedulesRequest{
		Schedules: []ScheduleDTO{{Date: "2025-06-10", ClockIn: "09:00", ClockOut: "18:00"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Previewing 10:00-16:00
	rec = env.do(t, http.MethodPost, "/api/hours/preview", HoursPreviewRequest{
		EmployeeID: "emp", Start: "2025-06-10T10:00", End: "2025-06-10T16:00",
	})

	// THEN: 6h minus the meal break
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[HoursDTO](t, rec)
	assert.Equal(t, 5.0, got.Hours)
	assert.False(t, got.Approximate)
}

func TestSaveSchedules_RejectsBadClock(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/employees/emp/schedules", SaveSchedulesRequest{
		Schedules: []ScheduleDTO{{Date: "2025-06-10", ClockIn: "nine", ClockOut: "18:00"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/employees/emp/schedules", SaveSchedulesRequest{
		Schedules: []ScheduleDTO{{ClockIn: "09:00", ClockOut: "18:00"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "undated schedules are rejected")
}

func TestEmployees_CreateAndSupervisor(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID: "new", Name: "Ho", HireDate: "2024-01-15", SupervisorID: strPtr("mgr"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/employees/new/supervisor", SetSupervisorRequest{SupervisorID: strPtr("new")})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "self-supervision")

	rec = env.do(t, http.MethodPut, "/api/employees/new/supervisor", SetSupervisorRequest{SupervisorID: strPtr("ghost")})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/employees/new/supervisor", SetSupervisorRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[EmployeeDTO](t, rec).SupervisorID)

	// Without a supervisor the new employee auto-approves.
	assert.Equal(t, "approved", env.submit(t, "new", personalDay("2025-06-10")).Status)
}

func TestListLeaveTypes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/leave-types", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	types := decode[[]LeaveTypeDTO](t, rec)
	assert.Len(t, types, 10)
	for _, lt := range types {
		if lt.Code == "occupational" {
			assert.True(t, lt.RequiresAttachment)
		}
	}
}

func TestListLeaveTypes_StoredOverridesApply(t *testing.T) {
	// GIVEN: A stored personal-leave cap of 2 days
	env := newTestEnv(t)
	limit := decimal.NewFromInt(2)
	require.NoError(t, env.store.SaveLeaveTypes(context.Background(), []timeoff.LeaveType{
		{Code: timeoff.CodePersonal, Name: "Personal", ResetsAnnually: true, MaxDaysPerYear: &limit},
	}))

	// WHEN: Requesting three days
	rec := env.do(t, http.MethodPost, "/api/employees/emp/requests", SubmitRequestDTO{
		LeaveType: "personal", Start: "2025-06-10", End: "2025-06-12", Reason: "move",
	})

	// THEN: The stored cap is enforced
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}
