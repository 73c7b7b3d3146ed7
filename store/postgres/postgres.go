/*
Package postgres provides a PostgreSQL-backed implementation of the storage
interfaces, for deployments that outgrow a single SQLite file.

INTERFACES IMPLEMENTED:
  generic.TxStore:      Catalog lookups, append-only purchases, WithTx
  generic.ProductStore: Product upsert and reads

SCHEMA:
  Versioned migrations embedded from migrations/*.sql, applied with
  golang-migrate on Migrate(). Money columns are NUMERIC, times TIMESTAMPTZ.

SEE ALSO:
  - store/sqlite/sqlite.go: Same contracts on SQLite
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/warp/backoffice/generic"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect opens a pool and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies every pending migration.
func Migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("create pgx driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements all storage interfaces on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	q    dbtx
	inTx bool
}

// New wraps an open pool. Call Migrate first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) FindActiveProducts(ctx context.Context, ids []generic.ProductID) ([]generic.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, name, price, active, updated_at FROM products
		WHERE active AND id = ANY($1)
	`, idStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (s *Store) ProductNames(ctx context.Context, ids []generic.ProductID) (map[generic.ProductID]string, error) {
	names := make(map[generic.ProductID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := s.q.Query(ctx, `SELECT id, name FROM products WHERE id = ANY($1)`, idStrings(ids))
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
// PRODUCTS
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p generic.Product) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO products (id, name, price, active, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, string(p.ID), p.Name, toNumeric(p.Price), p.Active, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id generic.ProductID) (generic.Product, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, name, price, active, updated_at FROM products WHERE id = $1`, string(id))
	if err != nil {
		return generic.Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return generic.Product{}, generic.ErrProductNotFound
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]generic.Product, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, name, price, active, updated_at FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if products == nil && err == nil {
		products = []generic.Product{}
	}
	return products, err
}

func scanProduct(row pgx.CollectableRow) (generic.Product, error) {
	var p generic.Product
	var id string
	var price pgtype.Numeric
	if err := row.Scan(&id, &p.Name, &price, &p.Active, &p.UpdatedAt); err != nil {
		return generic.Product{}, err
	}
	p.ID = generic.ProductID(id)
	p.Price = fromNumeric(price)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// =============================================================================
// PURCHASES
// =============================================================================

// AppendPurchase inserts the header and its lines. Outside WithTx it opens
// its own transaction.
func (s *Store) AppendPurchase(ctx context.Context, p generic.Purchase) error {
	if s.inTx {
		return s.appendPurchase(ctx, p)
	}
	return s.WithTx(ctx, func(tx generic.Store) error {
		return tx.(*Store).appendPurchase(ctx, p)
	})
}

func (s *Store) appendPurchase(ctx context.Context, p generic.Purchase) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO purchases (id, customer_name, purchase_date, total, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(p.ID), p.CustomerName, p.Date.UTC(), toNumeric(p.Total), p.CreatedBy, p.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return generic.ErrDuplicatePurchase
		}
		return fmt.Errorf("failed to append purchase: %w", err)
	}

	batch := &pgx.Batch{}
	for i, l := range p.Lines {
		batch.Queue(`
			INSERT INTO purchase_lines (id, purchase_id, position, product_id, quantity, description, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, string(l.ID), string(p.ID), i, string(l.ProductID), l.Quantity, l.Description, toNumeric(l.UnitPrice))
	}
	if err := s.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append lines: %w", err)
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, id generic.PurchaseID) (generic.Purchase, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, customer_name, purchase_date, total, created_by, created_at
		FROM purchases WHERE id = $1
	`, string(id))
	if err != nil {
		return generic.Purchase{}, fmt.Errorf("failed to query purchase: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPurchase)
	if errors.Is(err, pgx.ErrNoRows) {
		return generic.Purchase{}, generic.ErrPurchaseNotFound
	}
	if err != nil {
		return generic.Purchase{}, err
	}

	rows, err = s.q.Query(ctx, `
		SELECT id, product_id, quantity, description, unit_price
		FROM purchase_lines WHERE purchase_id = $1 ORDER BY position
	`, string(id))
	if err != nil {
		return generic.Purchase{}, fmt.Errorf("failed to query lines: %w", err)
	}
	p.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (generic.PurchaseLine, error) {
		var l generic.PurchaseLine
		var lineID, productID string
		var price pgtype.Numeric
		if err := row.Scan(&lineID, &productID, &l.Quantity, &l.Description, &price); err != nil {
			return generic.PurchaseLine{}, err
		}
		l.ID = generic.LineID(lineID)
		l.ProductID = generic.ProductID(productID)
		l.UnitPrice = fromNumeric(price)
		return l, nil
	})
	return p, err
}

func (s *Store) ListPurchases(ctx context.Context, limit int) ([]generic.Purchase, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, customer_name, purchase_date, total, created_by, created_at
		FROM purchases ORDER BY purchase_date DESC, created_at DESC LIMIT $1
	`, limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	return pgx.CollectRows(rows, scanPurchase)
}

// PurchasesInRange returns headers with purchase_date in [from, to).
func (s *Store) PurchasesInRange(ctx context.Context, from, to time.Time) ([]generic.Purchase, error) {
	var toArg any
	if !to.IsZero() {
		toArg = to.UTC()
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, customer_name, purchase_date, total, created_by, created_at
		FROM purchases
		WHERE purchase_date >= $1 AND ($2::timestamptz IS NULL OR purchase_date < $2)
		ORDER BY purchase_date
	`, from.UTC(), toArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	return pgx.CollectRows(rows, scanPurchase)
}

func scanPurchase(row pgx.CollectableRow) (generic.Purchase, error) {
	var p generic.Purchase
	var id string
	var total pgtype.Numeric
	if err := row.Scan(&id, &p.CustomerName, &p.Date, &total, &p.CreatedBy, &p.CreatedAt); err != nil {
		return generic.Purchase{}, err
	}
	p.ID = generic.PurchaseID(id)
	p.Date = p.Date.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.Total = fromNumeric(total)
	return p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func toNumeric(m generic.Money) pgtype.Numeric {
	return pgtype.Numeric{Int: m.Value.Coefficient(), Exp: m.Value.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) generic.Money {
	if !n.Valid || n.Int == nil {
		return generic.Zero
	}
	return generic.Money{Value: decimal.NewFromBigInt(n.Int, n.Exp)}
}

func idStrings(ids []generic.ProductID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
