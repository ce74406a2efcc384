package generic

import "time"

// =============================================================================
// PERIOD - Closed calendar-day interval
// =============================================================================

// Period is a closed interval of calendar days [Start, End].
//
// Examples:
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Calendar month: Mar 1 - Mar 31
//   - Days covered by a leave request
type Period struct {
	Start TimePoint
	End   TimePoint
}

// YearPeriod returns the calendar year containing t.
func YearPeriod(t time.Time) Period {
	return Period{Start: StartOfYear(t.Year()), End: EndOfYear(t.Year())}
}

// MonthPeriod returns the calendar month containing t.
func MonthPeriod(t time.Time) Period {
	return Period{Start: StartOfMonth(t.Year(), t.Month()), End: EndOfMonth(t.Year(), t.Month())}
}

// Contains returns true if the time point is within the period [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return !t.Before(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether p and o share at least one day.
func (p Period) Overlaps(o Period) bool {
	return p.Start.BeforeOrEqual(o.End) && o.Start.BeforeOrEqual(p.End)
}

// Days returns all days in the period.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Len is the inclusive number of calendar days.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
