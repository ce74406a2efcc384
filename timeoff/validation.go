/*
validation.go - Leave Validation Engine

PURPOSE:
  Decides whether a candidate request is acceptable. The verdict is data:
  a list of blocking errors (empty = acceptable) and a list of advisory
  warnings. A rule violation is never returned as a Go error; only
  structurally broken input is (missing or unknown leave type, zero dates).

PIPELINE:
  1. Structural checks      -> error return
  2. Universal checks       -> start > end, empty reason, attachment, overlap
  3. Per-type rule          -> rules[request.LeaveType]
  4. Dedupe + stable order  -> identical input, identical verdict

QUOTAS:
  Every quota compares used + requested against the ceiling, so a large
  request cannot be split to slip past it. "requested > remaining" is the
  only blocking quota condition; near-cap signals are warnings.

DAY CONVERSION:
  Quota types: days = hours / HoursPerDay.
  Maternity, parental: inclusive calendar days of the range.

EXTENDING:
  A new leave type is one catalog entry plus one Rule registered with
  Engine.Register.

SEE ALSO:
  - rules.go: The rule functions
  - catalog.go: Leave type configuration
*/
package timeoff

import (
	"fmt"
	"strings"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// VERDICT
// =============================================================================

// Issue is one error or warning. Code is stable for clients; Message is
// for display.
type Issue struct {
	Code    string
	Message string
}

// Verdict is the outcome of validation.
type Verdict struct {
	Errors   []Issue
	Warnings []Issue
}

// Valid reports whether there are no blocking errors.
func (v Verdict) Valid() bool { return len(v.Errors) == 0 }

func (v Verdict) ErrorMessages() []string   { return messages(v.Errors) }
func (v Verdict) WarningMessages() []string { return messages(v.Warnings) }

// Err returns a *generic.ValidationFailedError carrying every error, or
// nil when the verdict is valid.
func (v Verdict) Err() error {
	if v.Valid() {
		return nil
	}
	return &generic.ValidationFailedError{Errors: v.ErrorMessages(), Warnings: v.WarningMessages()}
}

func (v *Verdict) fail(code, format string, args ...any) {
	v.Errors = append(v.Errors, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *Verdict) warn(code, format string, args ...any) {
	v.Warnings = append(v.Warnings, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *Verdict) merge(o Verdict) {
	v.Errors = append(v.Errors, o.Errors...)
	v.Warnings = append(v.Warnings, o.Warnings...)
}

func messages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Message
	}
	return out
}

func dedupe(issues []Issue) []Issue {
	if len(issues) == 0 {
		return []Issue{}
	}
	seen := make(map[Issue]bool, len(issues))
	out := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if seen[is] {
			continue
		}
		seen[is] = true
		out = append(out, is)
	}
	return out
}

// =============================================================================
// ENGINE
// =============================================================================

// ValidationInput is everything a verdict depends on.
type ValidationInput struct {
	Request  LeaveRequest
	Profile  RequesterProfile
	Usage    LeaveUsage
	Existing []LeaveRequest

	// AsOf anchors seniority and the child's age. Zero means Request.Start.
	AsOf time.Time
}

// RuleInput is what a Rule sees: the validation input plus values the
// engine has already derived.
type RuleInput struct {
	ValidationInput
	Type          LeaveType
	RequestedDays decimal.Decimal
	CalendarDays  int
}

// Rule evaluates one leave type. It must be a pure function of its input.
type Rule func(in RuleInput) Verdict

// Engine validates requests against a catalog and a rule table.
type Engine struct {
	Catalog     *Catalog
	HoursPerDay decimal.Decimal
	rules       map[Code]Rule
}

// NewEngine returns an engine with the built-in rule table. A non-positive
// hoursPerDay falls back to DefaultDailyHours.
func NewEngine(catalog *Catalog, hoursPerDay decimal.Decimal) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if !hoursPerDay.IsPositive() {
		hoursPerDay = DefaultDailyHours
	}
	e := &Engine{Catalog: catalog, HoursPerDay: hoursPerDay, rules: make(map[Code]Rule)}
	for code, rule := range defaultRules() {
		e.rules[code] = rule
	}
	return e
}

// Register adds or replaces the rule for code.
func (e *Engine) Register(code Code, rule Rule) {
	e.rules[code] = rule
}

// WithCatalog returns a copy of e that validates against c. The rule
// table is shared.
func (e *Engine) WithCatalog(c *Catalog) *Engine {
	cp := *e
	cp.Catalog = c
	return &cp
}

// RequestedDays converts a request to quota days for its leave type.
func (e *Engine) RequestedDays(req LeaveRequest) decimal.Decimal {
	switch req.LeaveType {
	case CodeMaternity, CodeParental:
		return decimal.NewFromInt(int64(CalendarDays(req.Start, req.End)))
	default:
		return req.Hours.Div(e.HoursPerDay).Round(2)
	}
}

// Validate runs the universal checks and the rule for the request's type.
// It returns an error only for structurally invalid input.
func (e *Engine) Validate(in ValidationInput) (Verdict, error) {
	req := in.Request
	if req.LeaveType == "" {
		return Verdict{}, &generic.MissingFieldError{Field: "leave_type"}
	}
	lt, ok := e.Catalog.Lookup(req.LeaveType)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %q", generic.ErrUnknownLeaveType, req.LeaveType)
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return Verdict{}, &generic.RangeError{Start: formatOrEmpty(req.Start), End: formatOrEmpty(req.End), Err: generic.ErrInvalidRange}
	}
	if in.AsOf.IsZero() {
		in.AsOf = req.Start
	}

	var v Verdict
	v.merge(universalChecks(in, lt))

	if rule, ok := e.rules[req.LeaveType]; ok {
		v.merge(rule(RuleInput{
			ValidationInput: in,
			Type:            lt,
			RequestedDays:   e.RequestedDays(req),
			CalendarDays:    CalendarDays(req.Start, req.End),
		}))
	}

	v.Errors = dedupe(v.Errors)
	v.Warnings = dedupe(v.Warnings)
	return v, nil
}

// =============================================================================
// UNIVERSAL CHECKS
// =============================================================================

const (
	IssueStartAfterEnd      = "start_after_end"
	IssueReasonRequired     = "reason_required"
	IssueAttachmentRequired = "attachment_required"
	IssueOverlap            = "overlapping_request"
)

func universalChecks(in ValidationInput, lt LeaveType) Verdict {
	var v Verdict
	req := in.Request

	if req.Start.After(req.End) {
		v.fail(IssueStartAfterEnd, "start time must not be after end time")
	}
	if strings.TrimSpace(req.Reason) == "" {
		v.fail(IssueReasonRequired, "a reason is required")
	}
	if lt.RequiresAttachment && strings.TrimSpace(req.Extras.AttachmentRef) == "" {
		v.fail(IssueAttachmentRequired, "%s requires a supporting attachment", lt.Name)
	}

	period := req.Period()
	for _, other := range in.Existing {
		if other.ID == req.ID && req.ID != "" {
			continue
		}
		if other.RequesterID != req.RequesterID || !other.Blocks() {
			continue
		}
		if other.Start.Before(req.End) && req.Start.Before(other.End) && other.Period().Overlaps(period) {
			v.fail(IssueOverlap, "overlaps %s request %s (%s)", other.Status, other.ID, other.Period())
		}
	}
	return v
}
