package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/generic/store"
	"github.com/warp/backoffice/ledger"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func newTestAggregator(s generic.PurchaseStore) *ledger.Aggregator {
	return ledger.NewAggregator(s, ledger.WithReportClock(clock))
}

// =============================================================================
// DAILY SERIES
// =============================================================================

func TestDailyTotals_Scenario(t *testing.T) {
	// GIVEN: one purchase of 25.50 on 2024-01-02
	s := newTestStore(t)
	_, err := newTestWriter(s).CreatePurchase(context.Background(), clerk, ledger.CreatePurchaseRequest{
		CustomerName: "Ada",
		Date:         time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		Lines:        []ledger.LineInput{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 1}},
	})
	require.NoError(t, err)

	// WHEN: asking for 2024-01-01 .. 2024-01-03
	rows, err := newTestAggregator(s).DailyTotals(context.Background(), day(2024, 1, 1), day(2024, 1, 3))
	require.NoError(t, err)

	// THEN: [{01-01,0,0},{01-02,1,25.50},{01-03,0,0}]
	require.Len(t, rows, 3)
	assert.Equal(t, day(2024, 1, 1), rows[0].Date)
	assert.Equal(t, 0, rows[0].Count)
	assert.True(t, rows[0].Sum.IsZero())
	assert.Equal(t, day(2024, 1, 2), rows[1].Date)
	assert.Equal(t, 1, rows[1].Count)
	assert.Equal(t, "25.50", rows[1].Sum.String())
	assert.Equal(t, day(2024, 1, 3), rows[2].Date)
	assert.Equal(t, 0, rows[2].Count)
}

func TestDailyTotals_EndOfDayInclusive(t *testing.T) {
	s := newTestStore(t)
	w := newTestWriter(s)
	purchaseOn(t, w, day(2024, 1, 1), 1)                                 // first instant: in
	purchaseOn(t, w, time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC), 2) // last second: in
	purchaseOn(t, w, day(2024, 1, 4), 5)                                 // next day: out
	purchaseOn(t, w, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), 5)

	rows, err := newTestAggregator(s).DailyTotals(context.Background(),
		time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), // time of day is discarded
		time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Count)
	assert.Equal(t, "10.00", rows[0].Sum.String())
	assert.Equal(t, 1, rows[2].Count)
	assert.Equal(t, "20.00", rows[2].Sum.String())
}

func TestDailyTotals_ReversedRangeSameSeries(t *testing.T) {
	s := newTestStore(t)
	w := newTestWriter(s)
	purchaseOn(t, w, time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC), 1)
	purchaseOn(t, w, time.Date(2024, 2, 12, 8, 0, 0, 0, time.UTC), 3)

	a := newTestAggregator(s)
	forward, err := a.DailyTotals(context.Background(), day(2024, 2, 1), day(2024, 2, 20))
	require.NoError(t, err)
	backward, err := a.DailyTotals(context.Background(), day(2024, 2, 20), day(2024, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, forward, backward)
	assert.Len(t, forward, 20)
}

func TestDailyTotals_CompleteAndAscending(t *testing.T) {
	s := newTestStore(t)
	purchaseOn(t, newTestWriter(s), time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC), 1)
	a := newTestAggregator(s)

	from := day(2024, 1, 1)
	for _, span := range []int{0, 1, 28, 100, 365, 366} {
		rows, err := a.DailyTotals(context.Background(), from, from.AddDate(0, 0, span))
		require.NoError(t, err)
		require.Len(t, rows, span+1, "span %d", span)
		for i := 1; i < len(rows); i++ {
			assert.Equal(t, rows[i-1].Date.AddDate(0, 0, 1), rows[i].Date)
		}
	}
}

func TestDailyTotals_SpanClampedTo366Days(t *testing.T) {
	a := newTestAggregator(newTestStore(t))

	rows, err := a.DailyTotals(context.Background(), day(2024, 1, 1), day(2026, 1, 1))
	require.NoError(t, err)

	require.Len(t, rows, 367)
	assert.Equal(t, day(2024, 1, 1), rows[0].Date)
	assert.Equal(t, day(2025, 1, 1), rows[366].Date)
}

func TestDailyRange_Normalizes(t *testing.T) {
	p := ledger.DailyRange(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, "[2024-03-01, 2024-03-09]", p.String())
	assert.Equal(t, 9, p.Len())
}

func TestDailyTotals_StoreFailure(t *testing.T) {
	a := newTestAggregator(&failingReadStore{Memory: store.NewMemory()})
	_, err := a.DailyTotals(context.Background(), day(2024, 1, 1), day(2024, 1, 2))
	assert.ErrorIs(t, err, generic.ErrPersistence)
}

// =============================================================================
// MONTHLY SERIES
// =============================================================================

func TestMonthlyTotals_GroupsAndFills(t *testing.T) {
	// GIVEN: now is 2024-03-15; purchases in Dec 2023, Jan 2024 (x2) and Mar 2024
	s := newTestStore(t)
	w := newTestWriter(s)
	purchaseOn(t, w, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), 1) // outside a 3-month window
	purchaseOn(t, w, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	purchaseOn(t, w, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), 2)
	purchaseOn(t, w, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 1)

	// WHEN: asking for 3 months
	rows, err := newTestAggregator(s).MonthlyTotals(context.Background(), 3)
	require.NoError(t, err)

	// THEN: Jan, Feb (empty), Mar
	require.Len(t, rows, 3)
	assert.Equal(t, ledger.MonthlyTotal{Year: 2024, Month: time.January, Count: 2, Sum: rows[0].Sum}, rows[0])
	assert.Equal(t, "30.00", rows[0].Sum.String())
	assert.Equal(t, time.February, rows[1].Month)
	assert.Equal(t, 0, rows[1].Count)
	assert.True(t, rows[1].Sum.IsZero())
	assert.Equal(t, time.March, rows[2].Month)
	assert.Equal(t, 1, rows[2].Count)
	assert.Equal(t, "10.00", rows[2].Sum.String())
}

func TestMonthlyTotals_Clamp(t *testing.T) {
	s := newTestStore(t)
	purchaseOn(t, newTestWriter(s), time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), 1)
	a := newTestAggregator(s)
	ctx := context.Background()

	zero, err := a.MonthlyTotals(ctx, 0)
	require.NoError(t, err)
	twelve, err := a.MonthlyTotals(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, twelve, zero)
	require.Len(t, zero, 12)
	assert.Equal(t, 2023, zero[0].Year)
	assert.Equal(t, time.April, zero[0].Month)

	negative, err := a.MonthlyTotals(ctx, -5)
	require.NoError(t, err)
	assert.Equal(t, twelve, negative)

	hundred, err := a.MonthlyTotals(ctx, 100)
	require.NoError(t, err)
	thirtySix, err := a.MonthlyTotals(ctx, 36)
	require.NoError(t, err)
	assert.Equal(t, thirtySix, hundred)
	require.Len(t, hundred, 36)
	assert.Equal(t, 2021, hundred[0].Year)
	assert.Equal(t, time.April, hundred[0].Month)
}

func TestMonthlyTotals_FutureDatedPurchaseExtendsSeries(t *testing.T) {
	s := newTestStore(t)
	purchaseOn(t, newTestWriter(s), time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), 1)

	rows, err := newTestAggregator(s).MonthlyTotals(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, time.March, rows[0].Month)
	assert.Equal(t, time.April, rows[1].Month)
	assert.Equal(t, time.May, rows[2].Month)
	assert.Equal(t, 1, rows[2].Count)
}

func TestClampMonths(t *testing.T) {
	assert.Equal(t, 12, ledger.ClampMonths(0))
	assert.Equal(t, 12, ledger.ClampMonths(-1))
	assert.Equal(t, 1, ledger.ClampMonths(1))
	assert.Equal(t, 36, ledger.ClampMonths(36))
	assert.Equal(t, 36, ledger.ClampMonths(37))
}
