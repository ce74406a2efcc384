// Package timeoff implements the leave request lifecycle: hours
// calculation, per-type validation, and the multi-level approval workflow.
package timeoff

import (
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPE CODE
// =============================================================================

// Code identifies a leave category. Implements generic.ResourceType so
// usage transactions can be keyed by it.
type Code string

func (c Code) ResourceID() string     { return string(c) }
func (c Code) ResourceDomain() string { return "leave" }

var _ generic.ResourceType = Code("")

const (
	CodeAnnual       Code = "annual"
	CodePersonal     Code = "personal"
	CodeSick         Code = "sick"
	CodeMenstrual    Code = "menstrual"
	CodeMarriage     Code = "marriage"
	CodeBereavement  Code = "bereavement"
	CodeMaternity    Code = "maternity"
	CodePaternity    Code = "paternity"
	CodeParental     Code = "parental"
	CodeOccupational Code = "occupational"
)

// =============================================================================
// REQUEST STATE
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Relationship selects the bereavement ceiling.
type Relationship string

const (
	RelParent            Relationship = "parent"
	RelSpouse            Relationship = "spouse"
	RelGrandparent       Relationship = "grandparent"
	RelChild             Relationship = "child"
	RelSpouseParent      Relationship = "spouse_parent"
	RelGreatGrandparent  Relationship = "great_grandparent"
	RelSibling           Relationship = "sibling"
	RelSpouseGrandparent Relationship = "spouse_grandparent"
)

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// Extras holds the type-specific inputs a few leave types need.
type Extras struct {
	Relationship   Relationship
	ChildBirthDate *time.Time
	AttachmentRef  string
}

// LeaveRequest is one application for leave. Requests are never deleted;
// they only move between statuses.
//
// Invariants:
//   - Status pending  => CurrentApprover != nil && Level >= 1
//   - Status approved => Level == 0 (auto) or the chain was fully walked
type LeaveRequest struct {
	ID              string
	RequesterID     string
	LeaveType       Code
	Start           time.Time
	End             time.Time
	Hours           decimal.Decimal
	Reason          string
	Extras          Extras
	Status          Status
	Level           int
	CurrentApprover *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Period returns the calendar days the request touches.
func (r LeaveRequest) Period() generic.Period {
	return generic.Period{Start: generic.DayOf(r.Start), End: generic.DayOf(lastInstant(r.Start, r.End))}
}

// Blocks reports whether the request still occupies its days.
func (r LeaveRequest) Blocks() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// lastInstant maps an end that falls exactly on midnight back into the
// previous day, so [Mon 00:00, Tue 00:00) covers Monday only.
func lastInstant(start, end time.Time) time.Time {
	if end.After(start) && end.Equal(generic.DayOf(end).Time) {
		return end.Add(-time.Nanosecond)
	}
	return end
}

// CalendarDays counts the inclusive calendar days of [start, end].
func CalendarDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return generic.Period{Start: generic.DayOf(start), End: generic.DayOf(lastInstant(start, end))}.Len()
}

// =============================================================================
// APPROVAL RECORD
// =============================================================================

// ApprovalRecord is the immutable audit entry for one approver action.
// There is at most one record per (RequestID, Level).
type ApprovalRecord struct {
	ID           string
	RequestID    string
	ApproverID   string
	ApproverName string
	Level        int
	Decision     Decision
	Comment      string
	DecidedAt    time.Time
}

// =============================================================================
// PEOPLE AND SCHEDULES
// =============================================================================

// Employee is a directory entry. SupervisorID is the "reports-to" link.
type Employee struct {
	ID           string
	Name         string
	Email        string
	HireDate     time.Time
	SupervisorID *string
	CreatedAt    time.Time
}

// RequesterProfile is what validation needs to know about the requester.
type RequesterProfile struct {
	EmployeeID string
	HireDate   time.Time
}

// WorkSchedule is one employee's expected working window on Date.
// ClockIn/ClockOut are "HH:MM"; a ClockOut earlier than ClockIn is an
// overnight shift.
type WorkSchedule struct {
	EmployeeID string
	Date       *time.Time
	ClockIn    string
	ClockOut   string
}

// =============================================================================
// USAGE SNAPSHOT
// =============================================================================

// LeaveUsage is a read-only snapshot of prior consumption, in days.
// Validation never mutates it.
type LeaveUsage struct {
	Year int

	// UsedDays per leave type within Year.
	UsedDays map[Code]decimal.Decimal

	// MenstrualByMonth is keyed "YYYY-MM".
	MenstrualByMonth map[string]decimal.Decimal

	// MarriageUsed is set once marriage leave has ever been taken.
	MarriageUsed bool

	// BereavementDays per relationship within Year.
	BereavementDays map[Relationship]decimal.Decimal

	// PaternityDays is cumulative, not reset annually.
	PaternityDays decimal.Decimal
}

// Used returns the days used for code within the snapshot year.
func (u LeaveUsage) Used(code Code) decimal.Decimal {
	return u.UsedDays[code]
}

// MenstrualInMonth returns the menstrual days used in t's calendar month.
func (u LeaveUsage) MenstrualInMonth(t time.Time) decimal.Decimal {
	return u.MenstrualByMonth[MonthKey(t)]
}

// MonthKey formats the calendar month of t.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
