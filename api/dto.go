/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TIMESTAMPS:
  Request bodies accept RFC 3339, "2006-01-02T15:04", "2006-01-02 15:04"
  or a bare date (a bare end date covers the whole day). Responses use
  RFC 3339; dates without a time use "2006-01-02".

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

const dateLayout = "2006-01-02"

// =============================================================================
// DIRECTORY
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	HireDate     string  `json:"hire_date"`
	SupervisorID *string `json:"supervisor_id"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the body for POST /api/employees.
type CreateEmployeeRequest struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	HireDate     string  `json:"hire_date"`
	SupervisorID *string `json:"supervisor_id"`
}

// SetSupervisorRequest is the body for PUT /api/employees/{id}/supervisor.
// A null supervisor_id removes the link.
type SetSupervisorRequest struct {
	SupervisorID *string `json:"supervisor_id"`
}

// ScheduleDTO is one dated work window.
type ScheduleDTO struct {
	Date     string `json:"date"`
	ClockIn  string `json:"clock_in"`
	ClockOut string `json:"clock_out"`
}

// SaveSchedulesRequest is the body for PUT /api/employees/{id}/schedules.
type SaveSchedulesRequest struct {
	Schedules []ScheduleDTO `json:"schedules"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequestDTO is the body for POST /api/employees/{id}/requests.
type SubmitRequestDTO struct {
	LeaveType      string `json:"leave_type"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Reason         string `json:"reason"`
	Relationship   string `json:"relationship,omitempty"`
	ChildBirthDate string `json:"child_birth_date,omitempty"`
	AttachmentRef  string `json:"attachment_ref,omitempty"`
}

// ValidateRequestDTO is the body for POST /api/requests/validate.
type ValidateRequestDTO struct {
	EmployeeID string `json:"employee_id"`
	SubmitRequestDTO
}

// HoursPreviewRequest is the body for POST /api/hours/preview.
type HoursPreviewRequest struct {
	EmployeeID string `json:"employee_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// HoursDTO is a computed duration.
type HoursDTO struct {
	Hours       float64 `json:"hours"`
	Days        float64 `json:"days"`
	Approximate bool    `json:"approximate"`
}

// IssueDTO is one validation error or warning.
type IssueDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VerdictDTO is the dry-run result.
type VerdictDTO struct {
	Valid    bool       `json:"valid"`
	Errors   []IssueDTO `json:"errors"`
	Warnings []IssueDTO `json:"warnings"`
	Hours    HoursDTO   `json:"hours"`
}

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID                string              `json:"id"`
	RequesterID       string              `json:"requester_id"`
	LeaveType         string              `json:"leave_type"`
	Start             string              `json:"start"`
	End               string              `json:"end"`
	Hours             float64             `json:"hours"`
	Reason            string              `json:"reason"`
	Relationship      string              `json:"relationship,omitempty"`
	ChildBirthDate    string              `json:"child_birth_date,omitempty"`
	AttachmentRef     string              `json:"attachment_ref,omitempty"`
	Status            string              `json:"status"`
	Level             int                 `json:"level"`
	CurrentApproverID *string             `json:"current_approver_id"`
	CreatedAt         string              `json:"created_at"`
	UpdatedAt         string              `json:"updated_at"`
	Approvals         []ApprovalRecordDTO `json:"approvals,omitempty"`
}

// ApprovalRecordDTO is one audit entry.
type ApprovalRecordDTO struct {
	ID           string `json:"id"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name"`
	Level        int    `json:"level"`
	Decision     string `json:"decision"`
	Comment      string `json:"comment,omitempty"`
	DecidedAt    string `json:"decided_at"`
}

// SubmitResponseDTO is returned by a successful submission.
type SubmitResponseDTO struct {
	Request  LeaveRequestDTO `json:"request"`
	Warnings []IssueDTO      `json:"warnings"`
	Hours    HoursDTO        `json:"hours"`
}

// ActionRequest is the body for approve and reject. ExpectedLevel guards
// against acting on a request another approver already moved; when
// omitted the level currently stored is used.
type ActionRequest struct {
	ApproverID    string `json:"approver_id"`
	ExpectedLevel *int   `json:"expected_level"`
	Comment       string `json:"comment"`
}

// CancelRequest is the body for POST /api/requests/{id}/cancel.
type CancelRequest struct {
	RequesterID string `json:"requester_id"`
}

// =============================================================================
// CATALOG AND USAGE
// =============================================================================

// LeaveTypeDTO is one catalog entry.
type LeaveTypeDTO struct {
	Code               string   `json:"code"`
	Name               string   `json:"name"`
	Paid               bool     `json:"paid"`
	RequiresAttachment bool     `json:"requires_attachment"`
	ResetsAnnually     bool     `json:"resets_annually"`
	MaxDaysPerYear     *float64 `json:"max_days_per_year"`
}

// UsageDTO is an employee's usage snapshot.
type UsageDTO struct {
	EmployeeID        string             `json:"employee_id"`
	Year              int                `json:"year"`
	AnnualEntitlement float64            `json:"annual_entitlement"`
	UsedDays          map[string]float64 `json:"used_days"`
	MenstrualByMonth  map[string]float64 `json:"menstrual_by_month"`
	BereavementDays   map[string]float64 `json:"bereavement_days"`
	MarriageUsed      bool               `json:"marriage_used"`
	PaternityDays     float64            `json:"paternity_days"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Details  string   `json:"details,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e timeoff.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:           e.ID,
		Name:         e.Name,
		Email:        e.Email,
		HireDate:     e.HireDate.Format(dateLayout),
		SupervisorID: e.SupervisorID,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTO(r timeoff.LeaveRequest, records []timeoff.ApprovalRecord) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:                r.ID,
		RequesterID:       r.RequesterID,
		LeaveType:         string(r.LeaveType),
		Start:             r.Start.Format(time.RFC3339),
		End:               r.End.Format(time.RFC3339),
		Hours:             r.Hours.InexactFloat64(),
		Reason:            r.Reason,
		Relationship:      string(r.Extras.Relationship),
		AttachmentRef:     r.Extras.AttachmentRef,
		Status:            string(r.Status),
		Level:             r.Level,
		CurrentApproverID: r.CurrentApprover,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Extras.ChildBirthDate != nil {
		dto.ChildBirthDate = r.Extras.ChildBirthDate.Format(dateLayout)
	}
	for _, rec := range records {
		dto.Approvals = append(dto.Approvals, ApprovalRecordDTO{
			ID:           rec.ID,
			ApproverID:   rec.ApproverID,
			ApproverName: rec.ApproverName,
			Level:        rec.Level,
			Decision:     string(rec.Decision),
			Comment:      rec.Comment,
			DecidedAt:    rec.DecidedAt.Format(time.RFC3339),
		})
	}
	return dto
}

func toLeaveRequestDTOs(rs []timeoff.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toLeaveRequestDTO(r, nil)
	}
	return dtos
}

func toIssueDTOs(issues []timeoff.Issue) []IssueDTO {
	dtos := make([]IssueDTO, len(issues))
	for i, is := range issues {
		dtos[i] = IssueDTO{Code: is.Code, Message: is.Message}
	}
	return dtos
}

func toHoursDTO(est timeoff.HoursEstimate) HoursDTO {
	return HoursDTO{
		Hours:       est.Hours.InexactFloat64(),
		Days:        est.Days.InexactFloat64(),
		Approximate: est.Approximate,
	}
}

func toLeaveTypeDTO(lt timeoff.LeaveType) LeaveTypeDTO {
	dto := LeaveTypeDTO{
		Code:               string(lt.Code),
		Name:               lt.Name,
		Paid:               lt.Paid,
		RequiresAttachment: lt.RequiresAttachment,
		ResetsAnnually:     lt.ResetsAnnually,
	}
	if lt.MaxDaysPerYear != nil {
		v := lt.MaxDaysPerYear.InexactFloat64()
		dto.MaxDaysPerYear = &v
	}
	return dto
}

func toUsageDTO(employeeID string, u timeoff.LeaveUsage, entitlement decimal.Decimal) UsageDTO {
	dto := UsageDTO{
		EmployeeID:        employeeID,
		Year:              u.Year,
		AnnualEntitlement: entitlement.InexactFloat64(),
		UsedDays:          make(map[string]float64, len(u.UsedDays)),
		MenstrualByMonth:  make(map[string]float64, len(u.MenstrualByMonth)),
		BereavementDays:   make(map[string]float64, len(u.BereavementDays)),
		MarriageUsed:      u.MarriageUsed,
		PaternityDays:     u.PaternityDays.InexactFloat64(),
	}
	for code, d := range u.UsedDays {
		dto.UsedDays[string(code)] = d.InexactFloat64()
	}
	for month, d := range u.MenstrualByMonth {
		dto.MenstrualByMonth[month] = d.InexactFloat64()
	}
	for rel, d := range u.BereavementDays {
		dto.BereavementDays[string(rel)] = d.InexactFloat64()
	}
	return dto
}
