/*
Package generic provides the domain-agnostic core of the back-office ledger.

PURPOSE:
  Holds the records the ledger is made of (products, purchases, lines), the
  exact monetary type they are priced in, and the calendar machinery the
  reporting engine buckets them with. Nothing here talks to a database or
  to HTTP.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: an exact decimal amount (never float64)
  - Product: a catalog record, referenced by value at purchase time
  - Purchase / PurchaseLine: the immutable ledger entry and its lines

DESIGN PRINCIPLES:
  1. Immutability: a Purchase is never modified once appended
  2. Precision: decimal.Decimal end to end, so 19.99 x 3 is exactly 59.97
  3. Price-freeze: PurchaseLine.UnitPrice is a copy, never a reference
  4. Type Safety: distinct id types for products, purchases and lines

SEE ALSO:
  - time.go: TimePoint and Granularity (bucket keys)
  - series.go: Aggregate + Fill (dense calendar join)
  - store.go: Catalog and PurchaseStore contracts
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal amount
// =============================================================================

// Money is an exact monetary amount. The zero value is 0.
type Money struct {
	Value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{Value: decimal.Zero}

// NewMoney parses a decimal string such as "19.99".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustMoney is NewMoney for constants and tests. It panics on malformed input.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{Value: decimal.New(cents, -2)}
}

func (m Money) Add(n Money) Money        { return Money{Value: m.Value.Add(n.Value)} }
func (m Money) Sub(n Money) Money        { return Money{Value: m.Value.Sub(n.Value)} }
func (m Money) Mul(qty int) Money        { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(qty)))} }
func (m Money) Equal(n Money) bool       { return m.Value.Equal(n.Value) }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) GreaterThan(n Money) bool { return m.Value.GreaterThan(n.Value) }
func (m Money) LessThan(n Money) bool    { return m.Value.LessThan(n.Value) }

// String renders at least two fractional digits and never drops precision:
// "25.5" -> "25.50", "0.125" -> "0.125".
func (m Money) String() string {
	if m.Value.Exponent() >= -2 {
		return m.Value.StringFixed(2)
	}
	return m.Value.String()
}

// MarshalJSON encodes the amount as a decimal string, e.g. "25.50".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Value.UnmarshalJSON(b)
}

// Sum adds amounts in order.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type PurchaseID string
type LineID string

// =============================================================================
// PRODUCT - Catalog record (owned by the catalog, read by the ledger)
// =============================================================================

// Product is a catalog entry. Only active products are purchasable and
// Price is the price right now; purchases copy it, they never point at it.
type Product struct {
	ID        ProductID
	Name      string
	Price     Money
	Active    bool
	UpdatedAt time.Time
}

// =============================================================================
// PURCHASE - Immutable ledger entry
// =============================================================================

// PurchaseLine is owned by its Purchase. UnitPrice is frozen at creation.
type PurchaseLine struct {
	ID          LineID
	ProductID   ProductID
	Quantity    int
	Description string
	UnitPrice   Money
}

// Total is UnitPrice * Quantity. It is computed, never stored.
func (l PurchaseLine) Total() Money {
	return l.UnitPrice.Mul(l.Quantity)
}

// Purchase is the root ledger record.
//
// INVARIANTS:
//   - Total == LinesTotal() for every persisted purchase
//   - Lines is non-empty
//   - Append-only: never updated, never deleted
//
// Purchases returned by range and list queries carry no Lines; only
// PurchaseStore.GetPurchase loads them.
type Purchase struct {
	ID           PurchaseID
	CustomerName string
	Date         time.Time
	Lines        []PurchaseLine
	Total        Money

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
}

// LinesTotal recomputes the sum of the line totals.
func (p Purchase) LinesTotal() Money {
	total := Zero
	for _, l := range p.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// ProductIDs returns the distinct product ids referenced by the lines, in
// first-seen order.
func (p Purchase) ProductIDs() []ProductID {
	return DistinctProductIDs(p.Lines, func(l PurchaseLine) ProductID { return l.ProductID })
}

// DistinctProductIDs collects the distinct ids of items in first-seen order.
func DistinctProductIDs[T any](items []T, id func(T) ProductID) []ProductID {
	seen := make(map[ProductID]bool, len(items))
	out := make([]ProductID, 0, len(items))
	for _, it := range items {
		pid := id(it)
		if seen[pid] {
			continue
		}
		seen[pid] = true
		out = append(out, pid)
	}
	return out
}
