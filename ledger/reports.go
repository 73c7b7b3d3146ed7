/*
reports.go - Monthly and daily purchase series

PURPOSE:
  Turns a time-bounded slice of the ledger into calendar series ready to
  plot: one row per month or per day, ascending, no gaps.

INPUT NORMALIZATION (never an error):
  Monthly: monthsBack <= 0 becomes 12, monthsBack > 36 becomes 36.
  Daily:   bounds reduced to their calendar date; reversed bounds swapped;
           spans longer than 366 days cut to from + 366 days.

WINDOWS:
  Monthly: [first day of current month - (n-1) months, open end)
  Daily:   [from 00:00, day after `to` 00:00)

GAP FILLING:
  Both series are filled. The monthly series runs from the window start
  to the current month, or to the last month holding purchases if some
  are dated in the future.

All calendar arithmetic is in UTC.
*/
package ledger

import (
	"context"
	"time"

	"github.com/warp/backoffice/generic"
)

const (
	DefaultMonths    = 12
	MaxMonths        = 36
	MaxDailySpanDays = 366
)

// Aggregator computes report series. It never mutates state.
type Aggregator struct {
	store generic.PurchaseStore
	now   func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithReportClock overrides the time source that anchors the monthly window.
func WithReportClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(store generic.PurchaseStore, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ClampMonths applies the monthly window limits.
func ClampMonths(monthsBack int) int {
	if monthsBack <= 0 {
		return DefaultMonths
	}
	if monthsBack > MaxMonths {
		return MaxMonths
	}
	return monthsBack
}

// DailyRange normalizes a daily report range: date-only, ascending, and at
// most MaxDailySpanDays long.
func DailyRange(from, to time.Time) generic.Period {
	start, end := generic.DayOf(from), generic.DayOf(to)
	if end.Before(start) {
		start, end = end, start
	}
	if generic.DaysBetween(start, end) > MaxDailySpanDays {
		end = start.AddDays(MaxDailySpanDays)
	}
	return generic.Period{Start: start, End: end}
}

// MonthlyTotals returns the per-month count and sum of purchases for the
// last monthsBack months, current month included.
func (a *Aggregator) MonthlyTotals(ctx context.Context, monthsBack int) ([]MonthlyTotal, error) {
	n := ClampMonths(monthsBack)
	current := generic.MonthOf(a.now().UTC())
	start := current.AddMonths(-(n - 1))

	purchases, err := a.store.PurchasesInRange(ctx, start.Key(), time.Time{})
	if err != nil {
		return nil, &generic.PersistenceError{Op: "load monthly range", Err: err}
	}

	sparse := generic.Aggregate(generic.GranularityMonth, points(purchases))
	end := current
	if last, ok := sparse.Last(); ok && last.After(end) {
		end = last
	}

	buckets := sparse.Fill(generic.Period{Start: start, End: end})
	out := make([]MonthlyTotal, len(buckets))
	for i, b := range buckets {
		out[i] = MonthlyTotal{Year: b.Key.Year(), Month: b.Key.Month(), Count: b.Count, Sum: b.Sum}
	}
	return out, nil
}

// DailyTotals returns one row per calendar day in [from, to], inclusive.
func (a *Aggregator) DailyTotals(ctx context.Context, from, to time.Time) ([]DailyTotal, error) {
	period := DailyRange(from, to)

	// End-of-day inclusive: everything dated before the day after `to`.
	purchases, err := a.store.PurchasesInRange(ctx, period.Start.Key(), period.End.Next().Key())
	if err != nil {
		return nil, &generic.PersistenceError{Op: "load daily range", Err: err}
	}

	buckets := generic.Aggregate(generic.GranularityDay, points(purchases)).Fill(period)
	out := make([]DailyTotal, len(buckets))
	for i, b := range buckets {
		out[i] = DailyTotal{Date: b.Key.Key(), Count: b.Count, Sum: b.Sum}
	}
	return out, nil
}

func points(purchases []generic.Purchase) []generic.Point {
	pts := make([]generic.Point, len(purchases))
	for i, p := range purchases {
		pts[i] = generic.Point{At: p.Date.UTC(), Amount: p.Total}
	}
	return pts
}
