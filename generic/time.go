package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Calendar bucket key
// =============================================================================

// TimePoint is a calendar position at a given granularity. Two points are
// equal when they fall in the same bucket: 2024-01-02 10:00 and 2024-01-02
// 23:59 are the same day; 2024-01-02 and 2024-01-31 are the same month.
type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

// Granularity is the width of a reporting bucket.
type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityMonth
)

func (g Granularity) String() string {
	switch g {
	case GranularityDay:
		return "day"
	case GranularityMonth:
		return "month"
	default:
		return "unknown"
	}
}

// Constructors
func NewDay(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

func NewMonth(year int, month time.Month) TimePoint {
	return TimePoint{Time: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), Granularity: GranularityMonth}
}

// DayOf returns the calendar day of t, read in t's own location, as a UTC key.
func DayOf(t time.Time) TimePoint { return NewDay(t.Year(), t.Month(), t.Day()) }

// MonthOf returns the calendar month of t, read in t's own location, as a UTC key.
func MonthOf(t time.Time) TimePoint { return NewMonth(t.Year(), t.Month()) }

// Of returns the bucket of t at granularity g.
func (g Granularity) Of(t time.Time) TimePoint {
	if g == GranularityMonth {
		return MonthOf(t)
	}
	return DayOf(t)
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Key is the normalized start of the bucket, usable as a map key.
func (tp TimePoint) Key() time.Time { return tp.normalize() }

func (tp TimePoint) normalize() time.Time {
	t := tp.Time
	switch tp.Granularity {
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.normalize().AddDate(0, 0, n), Granularity: tp.Granularity}
}

// AddMonths works on the normalized start, so Jan 31 + 1 month never
// overflows into March for month keys.
func (tp TimePoint) AddMonths(n int) TimePoint {
	return TimePoint{Time: tp.normalize().AddDate(0, n, 0), Granularity: tp.Granularity}
}

// Next returns the following bucket.
func (tp TimePoint) Next() TimePoint {
	if tp.Granularity == GranularityMonth {
		return tp.AddMonths(1)
	}
	return tp.AddDays(1)
}

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	switch tp.Granularity {
	case GranularityMonth:
		return tp.normalize().Format("2006-01")
	default:
		return tp.normalize().Format("2006-01-02")
	}
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween counts whole calendar days from one day key to another.
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// MonthsBetween counts whole calendar months from one key to another.
func MonthsBetween(from, to TimePoint) int {
	f, t := from.normalize(), to.normalize()
	return (t.Year()-f.Year())*12 + int(t.Month()) - int(f.Month())
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewDay(year, month, 1) }
