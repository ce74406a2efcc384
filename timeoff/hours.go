/*
hours.go - Requested range to consumed hours

PURPOSE:
  Converts a leave interval into the hours it actually takes out of the
  requester's scheduled work. Time outside the scheduled window and the
  meal break is not charged.

TWO CALCULATORS:
  ComputeHoursBySchedule: exact, day by day against dated WorkSchedules.
  ComputeHoursSimple:     approximation for when no schedules exist.
                          Weekdays only, 09:00-18:00 default window,
                          each day capped at dailyHours, no meal break.
                          Callers must present this figure as an estimate.

EXAMPLE:
  2024-01-15 10:00 -> 16:00 against a 09:00-18:00 schedule
    intersection 10:00-16:00 = 6h
    meal break   12:00-13:00 = 1h
    result                     5h

SEE ALSO:
  - validation.go: Converts hours into quota days
*/
package timeoff

import (
	"fmt"
	"strings"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/shopspring/decimal"
)

// Meal break deducted from every scheduled day.
// TODO: move onto WorkSchedule once schedules carry their own break window.
const (
	LunchBreakStart = 12 * time.Hour
	LunchBreakEnd   = 13 * time.Hour
)

// Default working window used by ComputeHoursSimple.
const (
	DefaultDayStart = 9 * time.Hour
	DefaultDayEnd   = 18 * time.Hour
)

// DefaultDailyHours is the per-day cap for ComputeHoursSimple and the
// hours-to-days divisor for quota checks.
var DefaultDailyHours = decimal.NewFromInt(8)

var rangeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// =============================================================================
// RANGE CHECKS
// =============================================================================

// ParseRange parses both ends of an interval in loc. Accepts RFC 3339,
// "2006-01-02T15:04", "2006-01-02 15:04" and bare dates. A bare end date
// covers that whole day.
func ParseRange(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, okS := parseTimestamp(start, loc)
	e, okE := parseTimestamp(end, loc)
	if !okS || !okE {
		return time.Time{}, time.Time{}, &generic.RangeError{Start: start, End: end, Err: generic.ErrInvalidRange}
	}
	if len(strings.TrimSpace(end)) == len("2006-01-02") {
		e = e.AddDate(0, 0, 1)
	}
	return s, e, nil
}

func parseTimestamp(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range rangeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateRange fails with ErrInvalidRange for zero timestamps and
// ErrEndBeforeStart when end <= start. Every schedule must carry a date;
// coverage of the range is not checked.
func ValidateRange(start, end time.Time, schedules []WorkSchedule) error {
	if start.IsZero() || end.IsZero() {
		return &generic.RangeError{Start: formatOrEmpty(start), End: formatOrEmpty(end), Err: generic.ErrInvalidRange}
	}
	if !end.After(start) {
		return &generic.RangeError{Start: formatOrEmpty(start), End: formatOrEmpty(end), Err: generic.ErrEndBeforeStart}
	}
	for i, s := range schedules {
		if s.Date == nil || s.Date.IsZero() {
			return fmt.Errorf("schedule %d: %w", i, generic.ErrScheduleNotDated)
		}
	}
	return nil
}

func formatOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// =============================================================================
// SCHEDULE-BASED CALCULATION
// =============================================================================

// ComputeHoursBySchedule sums, for every calendar day in [start, end], the
// part of the request that falls inside that day's scheduled window minus
// the meal break. Days without a schedule contribute nothing.
func ComputeHoursBySchedule(start, end time.Time, schedules []WorkSchedule) (decimal.Decimal, error) {
	if err := ValidateRange(start, end, schedules); err != nil {
		return decimal.Zero, err
	}

	byDay := make(map[string]WorkSchedule, len(schedules))
	for _, s := range schedules {
		key := dateKey(*s.Date)
		if _, dup := byDay[key]; !dup {
			byDay[key] = s
		}
	}

	var total time.Duration
	for day := generic.DayOf(start).Time; day.Before(end); day = day.AddDate(0, 0, 1) {
		sched, ok := byDay[dateKey(day)]
		if !ok {
			continue
		}
		workStart, workEnd, err := sched.window(day)
		if err != nil {
			return decimal.Zero, err
		}

		lo := latest(start, day, workStart)
		hi := earliest(end, day.AddDate(0, 0, 1), workEnd)
		if !hi.After(lo) {
			continue
		}

		worked := hi.Sub(lo) - overlap(lo, hi, clockOn(day, LunchBreakStart), clockOn(day, LunchBreakEnd))
		if worked > 0 {
			total += worked
		}
	}

	return durationToHours(total), nil
}

// window returns the working interval on day. A clock-out earlier than the
// clock-in ends on the following day.
func (s WorkSchedule) window(day time.Time) (time.Time, time.Time, error) {
	in, err := parseClock(s.ClockIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := parseClock(s.ClockOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	workStart := clockOn(day, in)
	workEnd := clockOn(day, out)
	if out < in {
		workEnd = workEnd.AddDate(0, 0, 1)
	}
	return workStart, workEnd, nil
}

// parseClock reads "HH:MM" (or "HH:MM:SS") as an offset from midnight.
func parseClock(v string) (time.Duration, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("%w: clock time %q", generic.ErrInvalidRange, v)
}

// =============================================================================
// SIMPLE CALCULATION (approximation)
// =============================================================================

// ComputeHoursSimple estimates hours without schedule data. Saturdays and
// Sundays count zero; the first and last day use the request's own bounds
// and every other day 09:00-18:00; each day is capped at dailyHours.
// The result is an approximation, not an exact figure.
func ComputeHoursSimple(start, end time.Time, dailyHours decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateRange(start, end, nil); err != nil {
		return decimal.Zero, err
	}
	if !dailyHours.IsPositive() {
		dailyHours = DefaultDailyHours
	}

	firstDay := generic.DayOf(start).Time
	lastDay := generic.DayOf(end).Time
	total := decimal.Zero

	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if generic.DayOf(day).IsWeekend() {
			continue
		}
		lo := clockOn(day, DefaultDayStart)
		hi := clockOn(day, DefaultDayEnd)
		if day.Equal(firstDay) {
			lo = start
		}
		if day.Equal(lastDay) {
			hi = end
		}
		if !hi.After(lo) {
			continue
		}
		total = total.Add(decimal.Min(durationToHours(hi.Sub(lo)), dailyHours))
	}

	return total, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

// clockOn returns the wall-clock time offset from midnight on day, in
// day's location. Unlike day.Add it stays correct on DST transition days.
func clockOn(day time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int(offset % time.Hour / time.Minute)
	sec := int(offset % time.Minute / time.Second)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, sec, 0, day.Location())
}

func latest(ts ...time.Time) time.Time {
	out := ts[0]
	for _, t := range ts[1:] {
		if t.After(out) {
			out = t
		}
	}
	return out
}

func earliest(ts ...time.Time) time.Time {
	out := ts[0]
	for _, t := range ts[1:] {
		if t.Before(out) {
			out = t
		}
	}
	return out
}

// overlap returns the length of [aStart, aEnd) ∩ [bStart, bEnd).
func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	lo := latest(aStart, bStart)
	hi := earliest(aEnd, bEnd)
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo)
}

func durationToHours(d time.Duration) decimal.Decimal {
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600)).Round(2)
}
