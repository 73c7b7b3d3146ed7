/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the ledger's persistence contracts (Catalog, PurchaseStore,
  TxStore) plus the ProductStore used to maintain the catalog.

INTERFACES IMPLEMENTED:
  generic.TxStore:      Catalog lookups, append-only purchases, WithTx
  generic.ProductStore: Product upsert and reads

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on purchases or purchase_lines
  - No DELETE statements on purchases or purchase_lines
  - A purchase and its lines are inserted in one database transaction

KEY TABLES:
  products:       Catalog; the only mutable table
  purchases:      Immutable purchase headers
  purchase_lines: Immutable lines with their frozen unit price

COLUMN ENCODING:
  Money:  TEXT, exact decimal string (never REAL)
  Times:  TEXT, UTC, fixed-width layout so string order == time order

INDEXES:
  - idx_purchases_date:     Range reads for reports (hot path)
  - idx_lines_purchase:     Line loading in position order

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  writer := ledger.NewWriter(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - store/postgres/postgres.go: Same contracts on PostgreSQL
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/backoffice/generic"
)

// timeLayout is fixed-width so lexical comparison in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalog
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	-- Purchases (append-only)
	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		customer_name TEXT NOT NULL,
		purchase_date TEXT NOT NULL,
		total TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_date
		ON purchases(purchase_date);

	-- Lines carry the unit price frozen at purchase time
	CREATE TABLE IF NOT EXISTS purchase_lines (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL REFERENCES purchases(id),
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		description TEXT NOT NULL DEFAULT '',
		unit_price TEXT NOT NULL,
		UNIQUE(purchase_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_lines_purchase
		ON purchase_lines(purchase_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CATALOG (generic.Catalog interface)
// =============================================================================

// FindActiveProducts returns the requested products that are active.
func (s *Store) FindActiveProducts(ctx context.Context, ids []generic.ProductID) ([]generic.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findActive(ctx, s.db, ids)
}

func findActive(ctx context.Context, q queryer, ids []generic.ProductID) ([]generic.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, name, price, active, updated_at FROM products
		WHERE active = TRUE AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := q.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []generic.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ProductNames returns current names for the given ids, active or not.
func (s *Store) ProductNames(ctx context.Context, ids []generic.ProductID) (map[generic.ProductID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return productNames(ctx, s.db, ids)
}

func productNames(ctx context.Context, q queryer, ids []generic.ProductID) (map[generic.ProductID]string, error) {
	names := make(map[generic.ProductID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id, name FROM products WHERE id IN (`+placeholders(len(ids))+`)`, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query product names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[generic.ProductID(id)] = name
	}
	return names, rows.Err()
}

// =============================================================================
// PRODUCT STORE (generic.ProductStore interface)
// =============================================================================

// SaveProduct inserts or replaces a product. Recorded purchases keep their
// own copy of the price.
func (s *Store) SaveProduct(ctx context.Context, p generic.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, active, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, string(p.ID), p.Name, p.Price.Value.String(), p.Active, formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id generic.ProductID) (generic.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, price, active, updated_at FROM products WHERE id = ?`, string(id))
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Product{}, generic.ErrProductNotFound
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]generic.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, active, updated_at FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []generic.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (generic.Product, error) {
	var p generic.Product
	var id, price, updatedAt string
	if err := row.Scan(&id, &p.Name, &price, &p.Active, &updatedAt); err != nil {
		return generic.Product{}, err
	}
	p.ID = generic.ProductID(id)

	var err error
	if p.Price, err = generic.NewMoney(price); err != nil {
		return generic.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return generic.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

// =============================================================================
// PURCHASE STORE (generic.PurchaseStore interface)
// =============================================================================

// AppendPurchase inserts the purchase and its lines in one transaction.
func (s *Store) AppendPurchase(ctx context.Context, p generic.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := appendPurchase(ctx, sqlTx, p); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func appendPurchase(ctx context.Context, q queryer, p generic.Purchase) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO purchases (id, customer_name, purchase_date, total, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(p.ID), p.CustomerName, formatTime(p.Date), p.Total.Value.String(), p.CreatedBy, formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicatePurchase
		}
		return fmt.Errorf("failed to append purchase: %w", err)
	}

	for i, l := range p.Lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO purchase_lines (id, purchase_id, position, product_id, quantity, description, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, string(l.ID), string(p.ID), i, string(l.ProductID), l.Quantity, l.Description, l.UnitPrice.Value.String())
		if err != nil {
			return fmt.Errorf("failed to append line %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, id generic.PurchaseID) (generic.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPurchase(ctx, s.db, id)
}

func getPurchase(ctx context.Context, q queryer, id generic.PurchaseID) (generic.Purchase, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, customer_name, purchase_date, total, created_by, created_at
		FROM purchases WHERE id = ?
	`, string(id))
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Purchase{}, generic.ErrPurchaseNotFound
	}
	if err != nil {
		return generic.Purchase{}, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, quantity, description, unit_price
		FROM purchase_lines WHERE purchase_id = ? ORDER BY position
	`, string(id))
	if err != nil {
		return generic.Purchase{}, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l generic.PurchaseLine
		var lineID, productID, unitPrice string
		if err := rows.Scan(&lineID, &productID, &l.Quantity, &l.Description, &unitPrice); err != nil {
			return generic.Purchase{}, err
		}
		l.ID = generic.LineID(lineID)
		l.ProductID = generic.ProductID(productID)
		if l.UnitPrice, err = generic.NewMoney(unitPrice); err != nil {
			return generic.Purchase{}, fmt.Errorf("line %s: %w", lineID, err)
		}
		p.Lines = append(p.Lines, l)
	}
	return p, rows.Err()
}

// ListPurchases returns purchase headers, newest first. limit <= 0 means all.
func (s *Store) ListPurchases(ctx context.Context, limit int) ([]generic.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPurchases(ctx, s.db, limit)
}

func listPurchases(ctx context.Context, q queryer, limit int) ([]generic.Purchase, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return queryPurchases(ctx, q, `
		SELECT id, customer_name, purchase_date, total, created_by, created_at
		FROM purchases ORDER BY purchase_date DESC, created_at DESC LIMIT ?
	`, limit)
}

// PurchasesInRange returns headers with purchase_date in [from, to).
func (s *Store) PurchasesInRange(ctx context.Context, from, to time.Time) ([]generic.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return purchasesInRange(ctx, s.db, from, to)
}

func purchasesInRange(ctx context.Context, q queryer, from, to time.Time) ([]generic.Purchase, error) {
	if to.IsZero() {
		return queryPurchases(ctx, q, `
			SELECT id, customer_name, purchase_date, total, created_by, created_at
			FROM purchases WHERE purchase_date >= ? ORDER BY purchase_date
		`, formatTime(from))
	}
	return queryPurchases(ctx, q, `
		SELECT id, customer_name, purchase_date, total, created_by, created_at
		FROM purchases WHERE purchase_date >= ? AND purchase_date < ? ORDER BY purchase_date
	`, formatTime(from), formatTime(to))
}

func queryPurchases(ctx context.Context, q queryer, query string, args ...any) ([]generic.Purchase, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []generic.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row scanner) (generic.Purchase, error) {
	var p generic.Purchase
	var id, date, total, createdAt string
	if err := row.Scan(&id, &p.CustomerName, &date, &total, &p.CreatedBy, &createdAt); err != nil {
		return generic.Purchase{}, err
	}
	p.ID = generic.PurchaseID(id)

	var err error
	if p.Date, err = parseTime(date); err != nil {
		return generic.Purchase{}, fmt.Errorf("purchase %s: %w", id, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return generic.Purchase{}, fmt.Errorf("purchase %s: %w", id, err)
	}
	if p.Total, err = generic.NewMoney(total); err != nil {
		return generic.Purchase{}, fmt.Errorf("purchase %s: %w", id, err)
	}
	return p, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every call through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) FindActiveProducts(ctx context.Context, ids []generic.ProductID) ([]generic.Product, error) {
	return findActive(ctx, ts.tx, ids)
}

func (ts *txStore) ProductNames(ctx context.Context, ids []generic.ProductID) (map[generic.ProductID]string, error) {
	return productNames(ctx, ts.tx, ids)
}

func (ts *txStore) AppendPurchase(ctx context.Context, p generic.Purchase) error {
	return appendPurchase(ctx, ts.tx, p)
}

func (ts *txStore) GetPurchase(ctx context.Context, id generic.PurchaseID) (generic.Purchase, error) {
	return getPurchase(ctx, ts.tx, id)
}

func (ts *txStore) ListPurchases(ctx context.Context, limit int) ([]generic.Purchase, error) {
	return listPurchases(ctx, ts.tx, limit)
}

func (ts *txStore) PurchasesInRange(ctx context.Context, from, to time.Time) ([]generic.Purchase, error) {
	return purchasesInRange(ctx, ts.tx, from, to)
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []generic.ProductID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return args
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
