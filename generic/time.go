package generic

import (
	"time"
)

// =============================================================================
// TIME POINT
// =============================================================================

type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityHour
	GranularityMinute
)

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

// DayOf truncates t to its calendar day, keeping t's location.
func DayOf(t time.Time) TimePoint {
	return TimePoint{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), Granularity: GranularityDay}
}

func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	switch tp.Granularity {
	case GranularityDay:
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityHour:
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), tp.Time.Hour(), 0, 0, 0, time.UTC)
	default:
		return tp.Time
	}
}

func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n), Granularity: tp.Granularity} }

func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool       { wd := tp.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	switch tp.Granularity {
	case GranularityDay:
		return tp.Time.Format("2006-01-02")
	case GranularityHour:
		return tp.Time.Format("2006-01-02 15:00")
	default:
		return tp.Time.Format(time.RFC3339)
	}
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween counts whole calendar days from from to to.
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func StartOfYear(year int) TimePoint { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint   { return NewTimePoint(year, time.December, 31) }

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return TimePoint{Time: t, Granularity: GranularityDay}
}

// YearsBetween returns the number of completed years from from to to.
func YearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	anniversary := time.Date(to.Year(), from.Month(), from.Day(), 0, 0, 0, 0, to.Location())
	if DayOf(to).Time.Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// =============================================================================
// EXPIRING VALUE
// =============================================================================

// Expiring is a cached value paired with the instant it stops being valid.
// The owner holds it; nothing in this module keeps package-level caches.
type Expiring[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// NewExpiring wraps v with a lifetime of ttl starting at now.
func NewExpiring[T any](v T, now time.Time, ttl time.Duration) Expiring[T] {
	return Expiring[T]{Value: v, ExpiresAt: now.Add(ttl)}
}

// Valid reports whether the value can still be used at now.
func (e Expiring[T]) Valid(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.Before(e.ExpiresAt)
}
