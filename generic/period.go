package generic

// =============================================================================
// PERIOD - Inclusive range of calendar buckets
// =============================================================================

// Period is the inclusive bucket range [Start, End]. Start decides the
// granularity used to walk it.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a period of granularity g covering the buckets of from and to.
// Reversed bounds are swapped.
func NewPeriod(g Granularity, from, to TimePoint) Period {
	start := TimePoint{Time: from.Time, Granularity: g}
	end := TimePoint{Time: to.Time, Granularity: g}
	if end.Before(start) {
		start, end = end, start
	}
	return Period{Start: start, End: end}
}

// Granularity of the walk.
func (p Period) Granularity() Granularity { return p.Start.Granularity }

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	t.Granularity = p.Granularity()
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Keys returns every bucket of the period in ascending order.
func (p Period) Keys() []TimePoint {
	var keys []TimePoint
	end := TimePoint{Time: p.End.Time, Granularity: p.Granularity()}
	for current := p.Start; current.BeforeOrEqual(end); current = current.Next() {
		keys = append(keys, TimePoint{Time: current.Key(), Granularity: p.Granularity()})
	}
	return keys
}

// Len is the number of buckets in the period; 0 when End precedes Start.
func (p Period) Len() int {
	end := TimePoint{Time: p.End.Time, Granularity: p.Granularity()}
	if end.Before(p.Start) {
		return 0
	}
	if p.Granularity() == GranularityMonth {
		return MonthsBetween(p.Start, end) + 1
	}
	return DaysBetween(p.Start, end) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
