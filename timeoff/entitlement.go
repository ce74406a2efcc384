package timeoff

import (
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ANNUAL ENTITLEMENT - Seniority tiers
// =============================================================================

// SeniorityTier grants AnnualDays once the employee has served AfterYears
// completed years.
type SeniorityTier struct {
	AfterYears int
	AnnualDays int
}

// AnnualMaxDays caps the entitlement however long the tenure.
const AnnualMaxDays = 30

// annualTiers must stay sorted by AfterYears.
var annualTiers = []SeniorityTier{
	{AfterYears: 0, AnnualDays: 3},
	{AfterYears: 1, AnnualDays: 7},
	{AfterYears: 2, AnnualDays: 10},
	{AfterYears: 3, AnnualDays: 14},
	{AfterYears: 5, AnnualDays: 15},
}

// AnnualEntitlement returns the annual-leave days for an employee hired on
// hireDate, evaluated at asOf. From ten years on, one day is added per
// year beyond nine, up to AnnualMaxDays.
func AnnualEntitlement(hireDate, asOf time.Time) decimal.Decimal {
	years := generic.YearsBetween(hireDate, asOf)

	if years >= 10 {
		return decimal.NewFromInt(int64(min(15+(years-9), AnnualMaxDays)))
	}

	var granted int
	for _, tier := range annualTiers {
		if years >= tier.AfterYears {
			granted = tier.AnnualDays
		}
	}
	return decimal.NewFromInt(int64(granted))
}
