/*
Package ledger records purchases and reports on them.

PURPOSE:
  The purchase ledger is the only part of the back office with real
  invariants. This package owns them:

    Writer:     validate -> snapshot prices -> compute total -> append atomically
    Reader:     purchase detail with frozen prices and current product names
    Aggregator: monthly and daily series, gap-filled, with input clamping

  Persistence and the product catalog are collaborators reached through
  generic.Store. Nothing here knows about HTTP, sessions or rendering.

CONCURRENCY:
  Every call is an independent unit of work. The package holds no locks
  and no caches; the store's atomic append is the only coordination.

SEE ALSO:
  - generic/store.go: collaborator contracts
  - generic/series.go: the dense calendar join used by the Aggregator
*/
package ledger

import (
	"time"

	"github.com/warp/backoffice/generic"
)

// Actor is the caller on whose behalf a purchase is recorded. It is passed
// explicitly; authentication happens upstream.
type Actor struct {
	ID   string
	Role string
}

// CreatePurchaseRequest is the input of Writer.CreatePurchase.
type CreatePurchaseRequest struct {
	CustomerName string
	Date         time.Time // zero means now
	Lines        []LineInput
}

// LineInput is one requested line. The price is never supplied by the
// caller; it comes from the catalog.
type LineInput struct {
	ProductID   generic.ProductID
	Quantity    int
	Description string
}

// PurchaseDetail is a purchase prepared for display.
type PurchaseDetail struct {
	ID           generic.PurchaseID
	Date         time.Time
	CustomerName string
	Total        generic.Money
	CreatedBy    string
	CreatedAt    time.Time
	Lines        []LineDetail
}

// LineDetail carries the frozen unit price and the product's current name.
type LineDetail struct {
	ID          generic.LineID
	ProductID   generic.ProductID
	ProductName string
	UnitPrice   generic.Money
	Quantity    int
	Description string
	LineTotal   generic.Money
}

// MonthlyTotal is one month of the monthly series.
type MonthlyTotal struct {
	Year  int
	Month time.Month
	Count int
	Sum   generic.Money
}

// DailyTotal is one calendar day of the daily series.
type DailyTotal struct {
	Date  time.Time // midnight UTC
	Count int
	Sum   generic.Money
}
