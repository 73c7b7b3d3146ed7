package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice/generic"
)

func TestMoney_MulIsExact(t *testing.T) {
	// 19.99 * 3 drifts in binary floating point.
	total := generic.MustMoney("19.99").Mul(3)
	assert.True(t, total.Equal(generic.MustMoney("59.97")))
	assert.Equal(t, "59.97", total.String())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "25.50", generic.MustMoney("25.5").String())
	assert.Equal(t, "0.00", generic.Zero.String())
	assert.Equal(t, "0.125", generic.MustMoney("0.125").String())
	assert.Equal(t, "12.34", generic.MoneyFromCents(1234).String())
}

func TestNewMoney_Invalid(t *testing.T) {
	_, err := generic.NewMoney("12,34")
	assert.Error(t, err)
}

func TestPurchase_LinesTotal(t *testing.T) {
	p := generic.Purchase{Lines: []generic.PurchaseLine{
		{ProductID: "P1", Quantity: 2, UnitPrice: generic.MustMoney("10.00")},
		{ProductID: "P2", Quantity: 1, UnitPrice: generic.MustMoney("5.50")},
		{ProductID: "P1", Quantity: 1, UnitPrice: generic.MustMoney("10.00")},
	}}
	assert.Equal(t, "35.50", p.LinesTotal().String())
	assert.Equal(t, []generic.ProductID{"P1", "P2"}, p.ProductIDs())
}

func TestTimePoint_BucketEquality(t *testing.T) {
	morning := generic.DayOf(time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC))
	night := generic.DayOf(time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC))
	assert.True(t, morning.Equal(night))
	assert.Equal(t, morning.Key(), night.Key())

	assert.True(t, generic.MonthOf(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)).Equal(generic.NewMonth(2024, 1)))
}

func TestTimePoint_DayOfUsesOwnLocation(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	local := time.Date(2024, 1, 2, 22, 0, 0, 0, loc) // already Jan 3 in UTC
	assert.Equal(t, "2024-01-02", generic.DayOf(local).String())
}

func TestTimePoint_AddMonthsFromMonthEnd(t *testing.T) {
	jan := generic.MonthOf(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02", jan.AddMonths(1).String())
	assert.Equal(t, "2023-12", jan.AddMonths(-1).String())
}

func TestPeriod_Len(t *testing.T) {
	days := generic.Period{Start: generic.NewDay(2024, 2, 27), End: generic.NewDay(2024, 3, 1)}
	assert.Equal(t, 4, days.Len()) // leap year
	require.Len(t, days.Keys(), 4)
	assert.Equal(t, "2024-02-29", days.Keys()[2].String())

	months := generic.Period{Start: generic.NewMonth(2023, 11), End: generic.NewMonth(2024, 2)}
	assert.Equal(t, 4, months.Len())

	assert.Equal(t, 0, generic.Period{Start: generic.NewDay(2024, 1, 2), End: generic.NewDay(2024, 1, 1)}.Len())
}

func TestNewPeriod_SwapsReversedBounds(t *testing.T) {
	p := generic.NewPeriod(generic.GranularityDay, generic.NewDay(2024, 1, 3), generic.NewDay(2024, 1, 1))
	assert.Equal(t, "[2024-01-01, 2024-01-03]", p.String())
	assert.True(t, p.Contains(generic.DayOf(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))))
}
