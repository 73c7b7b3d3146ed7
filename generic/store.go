/*
store.go - Persistence contracts consumed by the ledger

PURPOSE:
  Defines the interface between the ledger and its collaborators: the
  product catalog (read-only, authoritative at purchase time) and the
  durable record store (append-only purchases, point and range reads).

KEY INTERFACES:
  Catalog:       Active-product lookup and current display names
  PurchaseStore: Append, point read, list, date-range read
  Store:         Both of the above
  TxStore:       Store + WithTx for atomic read-then-write

APPEND-ONLY CONTRACT:
  - AppendPurchase(): the ONLY write on the ledger; parent and lines
    commit together or not at all
  - NO Update() or Delete() for purchases

RANGE READS:
  PurchasesInRange reads [from, to). The reporting engine turns an
  inclusive day range into this shape by passing the day after `to`.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (default)
  - store/postgres/postgres.go: PostgreSQL
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger/writer.go: uses WithTx when available
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// CATALOG - Read-only product lookup
// =============================================================================

// Catalog is the product lookup the ledger consumes.
type Catalog interface {
	// FindActiveProducts returns exactly the requested products that are
	// currently active. Unknown and inactive ids are simply absent.
	FindActiveProducts(ctx context.Context, ids []ProductID) ([]Product, error)

	// ProductNames returns current names, active or not. Ids of products
	// that no longer exist are absent from the map.
	ProductNames(ctx context.Context, ids []ProductID) (map[ProductID]string, error)
}

// =============================================================================
// PURCHASE STORE - Append-only ledger persistence
// =============================================================================

// PurchaseStore persists purchases.
// IMPORTANT: append-only. No Update, No Delete.
type PurchaseStore interface {
	// AppendPurchase persists the purchase and all of its lines atomically.
	// Returns ErrDuplicatePurchase if the id exists.
	AppendPurchase(ctx context.Context, p Purchase) error

	// GetPurchase loads a purchase with its lines, in line order.
	// Returns ErrPurchaseNotFound if missing.
	GetPurchase(ctx context.Context, id PurchaseID) (Purchase, error)

	// ListPurchases returns up to limit purchase headers, newest first.
	ListPurchases(ctx context.Context, limit int) ([]Purchase, error)

	// PurchasesInRange returns purchase headers with Date in [from, to),
	// ordered by Date. A zero `to` leaves the range open-ended.
	PurchasesInRange(ctx context.Context, from, to time.Time) ([]Purchase, error)
}

// Store is everything the ledger needs.
type Store interface {
	Catalog
	PurchaseStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic lookup + append
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// CATALOG MAINTENANCE - Used to seed products; not consumed by the ledger
// =============================================================================

// ProductStore is the catalog glue the server and tests use to seed and
// reprice products.
type ProductStore interface {
	SaveProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}
