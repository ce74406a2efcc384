package timeoff

import (
	"strings"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/shopspring/decimal"
)

// Ceilings in days. Catalog MaxDaysPerYear overrides the yearly ones.
const (
	PersonalCapDays          = 14
	PersonalWarnDays         = 10
	SickCombinedCapDays      = 30
	SickNearCapDays          = 25
	SickCautionDays          = 20
	MenstrualMonthlyCapDays  = 1
	MarriageMaxDays          = 8
	MaternityDays            = 56
	PaternityMaxDays         = 7
	ParentalMaxChildAgeYears = 3
	ParentalMaxDaysPerChild  = 730
	AnnualLowRemainingDays   = 5
)

// Issue codes emitted by the per-type rules.
const (
	IssueQuotaExceeded        = "quota_exceeded"
	IssueQuotaExhausted       = "quota_exhausted"
	IssueLowRemaining         = "low_remaining"
	IssueNearCap              = "near_cap"
	IssueCrossMonth           = "cross_month"
	IssueCountedAsSick        = "counted_as_sick"
	IssueAlreadyUsed          = "already_used"
	IssueRelationshipRequired = "relationship_required"
	IssueUnknownRelationship  = "unknown_relationship"
	IssueFixedDuration        = "fixed_duration"
	IssueChildBirthRequired   = "child_birth_date_required"
	IssueChildTooOld          = "child_too_old"
	IssueExcludedFromSick     = "excluded_from_sick_tally"
)

func defaultRules() map[Code]Rule {
	return map[Code]Rule{
		CodeAnnual:       annualRule,
		CodePersonal:     personalRule,
		CodeSick:         sickRule,
		CodeMenstrual:    menstrualRule,
		CodeMarriage:     marriageRule,
		CodeBereavement:  bereavementRule,
		CodeMaternity:    maternityRule,
		CodePaternity:    paternityRule,
		CodeParental:     parentalRule,
		CodeOccupational: occupationalRule,
	}
}

func capOf(lt LeaveType, fallback int64) decimal.Decimal {
	if lt.MaxDaysPerYear != nil {
		return *lt.MaxDaysPerYear
	}
	return decimal.NewFromInt(fallback)
}

// =============================================================================
// QUOTA RULES
// =============================================================================

func annualRule(in RuleInput) Verdict {
	var v Verdict
	entitlement := AnnualEntitlement(in.Profile.HireDate, in.AsOf)
	used := in.Usage.Used(CodeAnnual)
	after := used.Add(in.RequestedDays)

	if after.GreaterThan(entitlement) {
		v.fail(IssueQuotaExceeded, "annual leave exceeds entitlement: used %s + requested %s > %s days",
			used, in.RequestedDays, entitlement)
		return v
	}
	if remaining := entitlement.Sub(after); remaining.LessThanOrEqual(decimal.NewFromInt(AnnualLowRemainingDays)) {
		v.warn(IssueLowRemaining, "only %s annual leave days remain after this request", remaining)
	}
	return v
}

func personalRule(in RuleInput) Verdict {
	var v Verdict
	limit := capOf(in.Type, PersonalCapDays)
	used := in.Usage.Used(CodePersonal)
	after := used.Add(in.RequestedDays)

	if after.GreaterThan(limit) {
		v.fail(IssueQuotaExceeded, "personal leave exceeds %s days per year: used %s + requested %s",
			limit, used, in.RequestedDays)
		return v
	}
	if after.GreaterThan(decimal.NewFromInt(PersonalWarnDays)) {
		v.warn(IssueNearCap, "personal leave will total %s of %s days this year", after, limit)
	}
	return v
}

// sickCeiling applies the combined sick + menstrual yearly ceiling.
func sickCeiling(in RuleInput, v *Verdict) {
	limit := decimal.NewFromInt(SickCombinedCapDays)
	combined := in.Usage.Used(CodeSick).Add(in.Usage.Used(CodeMenstrual))
	after := combined.Add(in.RequestedDays)

	switch {
	case !combined.LessThan(limit):
		v.fail(IssueQuotaExhausted, "sick leave quota of %s days (including menstrual leave) is used up", limit)
	case after.GreaterThan(limit):
		v.fail(IssueQuotaExceeded, "sick leave exceeds %s days (including menstrual leave): used %s + requested %s",
			limit, combined, in.RequestedDays)
	case after.GreaterThan(decimal.NewFromInt(SickNearCapDays)):
		v.warn(IssueNearCap, "sick leave will total %s of %s days this year", after, limit)
	case after.GreaterThan(decimal.NewFromInt(SickCautionDays)):
		v.warn(IssueNearCap, "sick leave has passed %d days this year", SickCautionDays)
	}
}

func sickRule(in RuleInput) Verdict {
	var v Verdict
	sickCeiling(in, &v)
	return v
}

func menstrualRule(in RuleInput) Verdict {
	var v Verdict
	req := in.Request

	p := req.Period()
	if p.Start.Year() != p.End.Year() || p.Start.Month() != p.End.Month() {
		v.fail(IssueCrossMonth, "menstrual leave cannot span more than one calendar month")
	}

	monthly := decimal.NewFromInt(MenstrualMonthlyCapDays)
	used := in.Usage.MenstrualInMonth(req.Start)
	if used.Add(in.RequestedDays).GreaterThan(monthly) {
		v.fail(IssueQuotaExceeded, "menstrual leave is limited to %s day per month (%s already used in %s)",
			monthly, used, MonthKey(req.Start))
	}

	sickCeiling(in, &v)
	v.warn(IssueCountedAsSick, "menstrual leave is counted against the sick leave quota")
	return v
}

// =============================================================================
// EVENT RULES
// =============================================================================

func marriageRule(in RuleInput) Verdict {
	var v Verdict
	if in.Usage.MarriageUsed {
		v.fail(IssueAlreadyUsed, "marriage leave can only be taken once")
	}
	limit := capOf(in.Type, MarriageMaxDays)
	if in.RequestedDays.GreaterThan(limit) {
		v.fail(IssueQuotaExceeded, "marriage leave is limited to %s days, requested %s", limit, in.RequestedDays)
	}
	return v
}

func bereavementRule(in RuleInput) Verdict {
	var v Verdict
	rel := in.Request.Extras.Relationship
	if rel == "" {
		v.fail(IssueRelationshipRequired, "bereavement leave requires the relationship to the deceased")
		return v
	}
	ceiling, ok := BereavementCeiling(rel)
	if !ok {
		v.fail(IssueUnknownRelationship, "unknown bereavement relationship %q", rel)
		return v
	}

	limit := decimal.NewFromInt(int64(ceiling))
	used := in.Usage.BereavementDays[rel]
	if used.Add(in.RequestedDays).GreaterThan(limit) {
		v.fail(IssueQuotaExceeded, "bereavement leave for %s is limited to %s days: used %s + requested %s",
			rel, limit, used, in.RequestedDays)
	}
	return v
}

func maternityRule(in RuleInput) Verdict {
	var v Verdict
	if in.CalendarDays != MaternityDays {
		v.fail(IssueFixedDuration, "maternity leave must be exactly %d days, requested %d", MaternityDays, in.CalendarDays)
	}
	return v
}

func paternityRule(in RuleInput) Verdict {
	var v Verdict
	limit := capOf(in.Type, PaternityMaxDays)
	if in.RequestedDays.GreaterThan(limit) {
		v.fail(IssueQuotaExceeded, "paternity leave is limited to %s days, requested %s", limit, in.RequestedDays)
	}
	if used := in.Usage.PaternityDays; used.IsPositive() && used.Add(in.RequestedDays).GreaterThan(limit) {
		v.fail(IssueQuotaExhausted, "paternity leave would total %s of %s days", used.Add(in.RequestedDays), limit)
	}
	return v
}

func parentalRule(in RuleInput) Verdict {
	var v Verdict
	birth := in.Request.Extras.ChildBirthDate
	if birth == nil || birth.IsZero() {
		v.fail(IssueChildBirthRequired, "parental leave requires the child's birth date")
		return v
	}

	if generic.YearsBetween(*birth, in.AsOf) >= ParentalMaxChildAgeYears {
		v.fail(IssueChildTooOld, "parental leave is only available until the child turns %d", ParentalMaxChildAgeYears)
	}

	prior := priorParentalDays(in.Existing, in.Request, *birth)
	limit := decimal.NewFromInt(ParentalMaxDaysPerChild)
	switch {
	case !prior.LessThan(limit):
		v.fail(IssueQuotaExhausted, "parental leave for this child already totals %s days (limit %s)", prior, limit)
	case prior.Add(in.RequestedDays).GreaterThan(limit):
		v.fail(IssueQuotaExceeded, "parental leave for this child would total %s days (limit %s)",
			prior.Add(in.RequestedDays), limit)
	}
	return v
}

// priorParentalDays sums pending and approved parental requests for the
// same child.
func priorParentalDays(existing []LeaveRequest, req LeaveRequest, birth time.Time) decimal.Decimal {
	total := decimal.Zero
	child := generic.DayOf(birth)
	for _, r := range existing {
		if r.LeaveType != CodeParental || !r.Blocks() || r.RequesterID != req.RequesterID {
			continue
		}
		if req.ID != "" && r.ID == req.ID {
			continue
		}
		if r.Extras.ChildBirthDate == nil || !generic.DayOf(*r.Extras.ChildBirthDate).Equal(child) {
			continue
		}
		total = total.Add(decimal.NewFromInt(int64(CalendarDays(r.Start, r.End))))
	}
	return total
}

func occupationalRule(in RuleInput) Verdict {
	var v Verdict
	if strings.TrimSpace(in.Request.Extras.AttachmentRef) == "" {
		v.fail(IssueAttachmentRequired, "%s requires a supporting attachment", in.Type.Name)
	}
	v.warn(IssueExcludedFromSick, "occupational injury leave is not counted against the sick leave quota")
	return v
}
