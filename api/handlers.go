/*
handlers.go - HTTP API handlers for the leave request engine

PURPOSE:
  Exposes the validation engine and the approval workflow via REST API.
  Handles HTTP request/response and JSON serialization, and delegates to
  timeoff.RequestService.

ENDPOINTS:
  Employees:
    GET    /api/employees                   List employees
    POST   /api/employees                   Create or replace an employee
    GET    /api/employees/{id}              Get employee
    PUT    /api/employees/{id}/supervisor   Set or clear the reports-to link
    GET    /api/employees/{id}/schedules    Schedules in ?from=&to=
    PUT    /api/employees/{id}/schedules    Upsert schedules
    GET    /api/employees/{id}/usage        Usage snapshot (?as_of=)

  Requests:
    POST   /api/employees/{id}/requests     Submit (201, or 422 with all errors)
    GET    /api/employees/{id}/requests     Requester's requests (?status=)
    POST   /api/requests/validate           Dry run, always 200 with the verdict
    GET    /api/requests/{id}               Request with approval records
    POST   /api/requests/{id}/approve       Approve at expected_level
    POST   /api/requests/{id}/reject        Reject (comment required)
    POST   /api/requests/{id}/cancel        Requester withdraws a pending request
    GET    /api/approvers/{id}/pending      Requests waiting on an approver

  Other:
    POST   /api/hours/preview               Hours a range would cost
    GET    /api/leave-types                 Effective catalog

ARCHITECTURE:
  Handler holds the store and a RequestService. The effective catalog
  (built-in < catalog file < leave_types table) is cached for CatalogTTL
  and swapped into a per-request copy of the service.

ERROR HANDLING:
  See errors.go for the status mapping.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/flpliao/lovable-clock-flow-sub004/factory"
	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the handlers need beyond timeoff.Repository.
type Store interface {
	timeoff.Repository
	SaveEmployee(ctx context.Context, emp timeoff.Employee) error
	ListEmployees(ctx context.Context) ([]timeoff.Employee, error)
	SaveSchedules(ctx context.Context, schedules []timeoff.WorkSchedule) error
}

// catalogStore is implemented by stores that persist leave types.
type catalogStore interface {
	LeaveTypes(ctx context.Context) ([]timeoff.LeaveType, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Service *timeoff.RequestService

	// CatalogFile overrides the built-in leave types when set.
	CatalogFile string
	CatalogTTL  time.Duration

	// Location interprets timestamps without an offset. Defaults to UTC.
	Location *time.Location

	mu      sync.Mutex
	catalog generic.Expiring[*timeoff.Catalog]
}

// NewHandler creates a handler over store with the given service.
func NewHandler(store Store, svc *timeoff.RequestService) *Handler {
	return &Handler{
		Store:      store,
		Service:    svc,
		CatalogTTL: 5 * time.Minute,
		Location:   time.UTC,
	}
}

// Catalog returns the effective catalog, reloading it once CatalogTTL
// has passed.
func (h *Handler) Catalog(ctx context.Context) (*timeoff.Catalog, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	if h.catalog.Valid(now) {
		return h.catalog.Value, nil
	}

	catalog, err := factory.LoadCatalog(h.CatalogFile)
	if err != nil {
		return nil, err
	}
	if cs, ok := h.Store.(catalogStore); ok {
		stored, err := cs.LeaveTypes(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored leave types: %w", err)
		}
		catalog = catalog.Merge(timeoff.NewCatalog(stored...))
	}

	h.catalog = generic.NewExpiring(catalog, now, h.CatalogTTL)
	return catalog, nil
}

// service returns a copy of the service bound to the effective catalog.
func (h *Handler) service(ctx context.Context) (*timeoff.RequestService, error) {
	catalog, err := h.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	svc := *h.Service
	svc.Engine = h.Service.Engine.WithCatalog(catalog)
	return &svc, nil
}

func (h *Handler) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	hireDate, err := time.Parse(dateLayout, req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	emp := timeoff.Employee{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		HireDate: hireDate,
	}
	if err := h.checkSupervisor(r.Context(), emp.ID, req.SupervisorID); err != nil {
		writeDomainError(w, r, "Invalid supervisor", err)
		return
	}
	emp.SupervisorID = normalizeID(req.SupervisorID)

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeDomainError(w, r, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// SetSupervisor sets or clears an employee's reports-to link.
func (h *Handler) SetSupervisor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to get employee", err)
		return
	}

	var req SetSupervisorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.checkSupervisor(ctx, emp.ID, req.SupervisorID); err != nil {
		writeDomainError(w, r, "Invalid supervisor", err)
		return
	}

	emp.SupervisorID = normalizeID(req.SupervisorID)
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		writeDomainError(w, r, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// checkSupervisor rejects self-supervision and unknown supervisors.
func (h *Handler) checkSupervisor(ctx context.Context, employeeID string, supervisorID *string) error {
	sup := normalizeID(supervisorID)
	if sup == nil {
		return nil
	}
	if *sup == employeeID {
		return fmt.Errorf("%w: an employee cannot supervise themselves", generic.ErrInvalidRange)
	}
	_, err := h.Store.GetEmployee(ctx, *sup)
	return err
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns schedules in [from, to]. Without a range it
// returns the next 31 days.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		writeDomainError(w, r, "Failed to get employee", err)
		return
	}

	loc := h.location()
	from := generic.DayOf(time.Now().In(loc)).Time
	to := from.AddDate(0, 0, 30)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM-DD)", err)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to (use YYYY-MM-DD)", err)
			return
		}
		to = t
	}

	schedules, err := h.Store.SchedulesBetween(ctx, id, from, to)
	if err != nil {
		writeDomainError(w, r, "Failed to list schedules", err)
		return
	}
	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = ScheduleDTO{Date: s.Date.Format(dateLayout), ClockIn: s.ClockIn, ClockOut: s.ClockOut}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveSchedules upserts an employee's schedules.
func (h *Handler) SaveSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		writeDomainError(w, r, "Failed to get employee", err)
		return
	}

	var req SaveSchedulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	schedules := make([]timeoff.WorkSchedule, 0, len(req.Schedules))
	for i, s := range req.Schedules {
		if s.Date == "" {
			writeDomainError(w, r, "Invalid schedule", fmt.Errorf("schedules[%d]: %w", i, generic.ErrScheduleNotDated))
			return
		}
		d, err := time.ParseInLocation(dateLayout, s.Date, h.location())
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("schedules[%d]: invalid date (use YYYY-MM-DD)", i), err)
			return
		}
		ws := timeoff.WorkSchedule{EmployeeID: id, Date: &d, ClockIn: s.ClockIn, ClockOut: s.ClockOut}
		// One-day probe catches malformed clock values before they are stored.
		if _, err := timeoff.ComputeHoursBySchedule(d, d.AddDate(0, 0, 1), []timeoff.WorkSchedule{ws}); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("schedules[%d]: invalid clock value", i), err)
			return
		}
		schedules = append(schedules, ws)
	}

	if err := h.Store.SaveSchedules(ctx, schedules); err != nil {
		writeDomainError(w, r, "Failed to save schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(schedules)})
}

// =============================================================================
// HOURS AND VALIDATION
// =============================================================================

// PreviewHours computes what a range would cost the employee.
func (h *Handler) PreviewHours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req HoursPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, err := timeoff.ParseRange(req.Start, req.End, h.location())
	if err != nil {
		writeDomainError(w, r, "Invalid range", err)
		return
	}
	if _, err := h.Store.GetEmployee(ctx, req.EmployeeID); err != nil {
		writeDomainError(w, r, "Failed to get employee", err)
		return
	}

	svc, err := h.service(ctx)
	if err != nil {
		writeDomainError(w, r, "Failed to load catalog", err)
		return
	}
	est, err := svc.EstimateHours(ctx, req.EmployeeID, start, end)
	if err != nil {
		writeDomainError(w, r, "Failed to compute hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toHoursDTO(est))
}

// ValidateRequest runs validation without creating anything. Blocking
// errors are part of the 200 response; only malformed input fails.
func (h *Handler) ValidateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ValidateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := h.parseSubmit(req.EmployeeID, req.SubmitRequestDTO)
	if err != nil {
		writeDomainError(w, r, "Invalid request", err)
		return
	}

	svc, err := h.service(ctx)
	if err != nil {
		writeDomainError(w, r, "Failed to load catalog", err)
		return
	}
	res, err := svc.Check(ctx, in)
	if err != nil {
		writeDomainError(w, r, "Validation could not run", err)
		return
	}
	writeJSON(w, http.StatusOK, VerdictDTO{
		Valid:    res.Verdict.Valid(),
		Errors:   toIssueDTOs(res.Verdict.Errors),
		Warnings: toIssueDTOs(res.Verdict.Warnings),
		Hours:    toHoursDTO(res.Hours),
	})
}

func (h *Handler) parseSubmit(requesterID string, req SubmitRequestDTO) (timeoff.SubmitInput, error) {
	if strings.TrimSpace(requesterID) == "" {
		return timeoff.SubmitInput{}, &generic.MissingFieldError{Field: "employee_id"}
	}
	start, end, err := timeoff.ParseRange(req.Start, req.End, h.location())
	if err != nil {
		return timeoff.SubmitInput{}, err
	}

	in := timeoff.SubmitInput{
		RequesterID: requesterID,
		LeaveType:   timeoff.Code(strings.TrimSpace(req.LeaveType)),
		Start:       start,
		End:         end,
		Reason:      req.Reason,
		Extras: timeoff.Extras{
			Relationship:  timeoff.Relationship(strings.TrimSpace(req.Relationship)),
			AttachmentRef: req.AttachmentRef,
		},
	}
	if req.ChildBirthDate != "" {
		d, err := time.ParseInLocation(dateLayout, req.ChildBirthDate, h.location())
		if err != nil {
			return timeoff.SubmitInput{}, &generic.RangeError{Start: req.ChildBirthDate, Err: generic.ErrInvalidRange}
		}
		in.Extras.ChildBirthDate = &d
	}
	return in, nil
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest validates and creates a leave request.
// POST /api/employees/{id}/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := h.parseSubmit(chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, "Invalid request", err)
		return
	}

	svc, err := h.service(ctx)
	if err != nil {
		writeDomainError(w, r, "Failed to load catalog", err)
		return
	}
	res, err := svc.Submit(ctx, in)
	if err != nil {
		writeDomainError(w, r, "Leave request rejected", err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponseDTO{
		Request:  toLeaveRequestDTO(res.Request, res.Records),
		Warnings: toIssueDTOs(res.Verdict.Warnings),
		Hours:    toHoursDTO(res.Hours),
	})
}

// GetRequest returns a request with its approval records.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, records, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req, records))
}

// ListEmployeeRequests lists a requester's requests, optionally filtered
// by ?status=pending,approved.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetEmployee(ctx, id); err != nil {
		writeDomainError(w, r, "Failed to get employee", err)
		return
	}

	var statuses []timeoff.Status
	if v := r.URL.Query().Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, timeoff.Status(s))
			}
		}
	}

	requests, err := h.Service.ListFor(ctx, id, statuses...)
	if err != nil {
		writeDomainError(w, r, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

// ListPendingRequests returns requests waiting on an approver.
// GET /api/approvers/{id}/pending
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Service.PendingFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to list pending requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

// ApproveRequest approves at the expected level.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, timeoff.DecisionApproved)
}

// RejectRequest rejects a pending request. A comment is required.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, timeoff.DecisionRejected)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, decision timeoff.Decision) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ApproverID) == "" {
		writeDomainError(w, r, "Invalid request", &generic.MissingFieldError{Field: "approver_id"})
		return
	}

	level := 0
	if req.ExpectedLevel != nil {
		level = *req.ExpectedLevel
	} else {
		current, err := h.Store.GetRequest(ctx, id)
		if err != nil {
			writeDomainError(w, r, "Failed to get request", err)
			return
		}
		level = current.Level
	}

	tr, err := h.Service.Act(ctx, timeoff.Action{
		RequestID:     id,
		ApproverID:    req.ApproverID,
		ExpectedLevel: level,
		Decision:      decision,
		Comment:       req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, fmt.Sprintf("Failed to %s request", verb(decision)), err)
		return
	}

	records, err := h.Store.ApprovalRecords(ctx, id)
	if err != nil {
		writeDomainError(w, r, "Failed to load approval records", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(tr.Request, records))
}

func verb(d timeoff.Decision) string {
	if d == timeoff.DecisionRejected {
		return "reject"
	}
	return "approve"
}

// CancelRequest withdraws a pending request on behalf of its requester.
// POST /api/requests/{id}/cancel
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.RequesterID) == "" {
		writeDomainError(w, r, "Invalid request", &generic.MissingFieldError{Field: "requester_id"})
		return
	}

	cancelled, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "id"), req.RequesterID)
	if err != nil {
		writeDomainError(w, r, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(cancelled, nil))
}

// =============================================================================
// CATALOG AND USAGE
// =============================================================================

// ListLeaveTypes returns the effective catalog.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.Catalog(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to load catalog", err)
		return
	}
	types := catalog.All()
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUsage returns the usage snapshot for ?as_of= (default today).
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to get employee", err)
		return
	}

	asOf := time.Now().In(h.location())
	if v := r.URL.Query().Get("as_of"); v != "" {
		asOf, err = time.ParseInLocation(dateLayout, v, h.location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of (use YYYY-MM-DD)", err)
			return
		}
	}

	usage, err := h.Service.Usage(ctx, emp.ID, asOf)
	if err != nil {
		writeDomainError(w, r, "Failed to load usage", err)
		return
	}
	var entitlement decimal.Decimal
	if !emp.HireDate.IsZero() {
		entitlement = timeoff.AnnualEntitlement(emp.HireDate, asOf)
	}
	writeJSON(w, http.StatusOK, toUsageDTO(emp.ID, usage, entitlement))
}
