// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/backoffice/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	products  map[generic.ProductID]generic.Product
	purchases map[generic.PurchaseID]generic.Purchase
	byDate    []generic.PurchaseID // ordered by Date, then insertion
}

func NewMemory() *Memory {
	return &Memory{
		products:  make(map[generic.ProductID]generic.Product),
		purchases: make(map[generic.PurchaseID]generic.Purchase),
	}
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) FindActiveProducts(_ context.Context, ids []generic.ProductID) ([]generic.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findActiveLocked(ids), nil
}

func (m *Memory) findActiveLocked(ids []generic.ProductID) []generic.Product {
	seen := make(map[generic.ProductID]bool, len(ids))
	var result []generic.Product
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := m.products[id]; ok && p.Active {
			result = append(result, p)
		}
	}
	return result
}

func (m *Memory) ProductNames(_ context.Context, ids []generic.ProductID) (map[generic.ProductID]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namesLocked(ids), nil
}

func (m *Memory) namesLocked(ids []generic.ProductID) map[generic.ProductID]string {
	names := make(map[generic.ProductID]string, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			names[id] = p.Name
		}
	}
	return names
}

// SaveProduct inserts or replaces a product. Purchases already recorded are
// not touched: they hold their own copy of the price.
func (m *Memory) SaveProduct(_ context.Context, p generic.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	m.products[p.ID] = p
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id generic.ProductID) (generic.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return generic.Product{}, generic.ErrProductNotFound
	}
	return p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]generic.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// PURCHASES
// =============================================================================

// AppendPurchase adds a purchase with its lines. Append-only.
func (m *Memory) AppendPurchase(_ context.Context, p generic.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(p)
}

func (m *Memory) appendLocked(p generic.Purchase) error {
	if _, exists := m.purchases[p.ID]; exists {
		return generic.ErrDuplicatePurchase
	}
	p.Lines = append([]generic.PurchaseLine(nil), p.Lines...)
	m.purchases[p.ID] = p

	// Binary search for insertion point keeps byDate ordered
	i := sort.Search(len(m.byDate), func(i int) bool {
		return m.purchases[m.byDate[i]].Date.After(p.Date)
	})
	m.byDate = append(m.byDate, "")
	copy(m.byDate[i+1:], m.byDate[i:])
	m.byDate[i] = p.ID
	return nil
}

func (m *Memory) GetPurchase(_ context.Context, id generic.PurchaseID) (generic.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id generic.PurchaseID) (generic.Purchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return generic.Purchase{}, generic.ErrPurchaseNotFound
	}
	p.Lines = append([]generic.PurchaseLine(nil), p.Lines...)
	return p, nil
}

func (m *Memory) ListPurchases(_ context.Context, limit int) ([]generic.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.Purchase
	for i := len(m.byDate) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		result = append(result, header(m.purchases[m.byDate[i]]))
	}
	return result, nil
}

func (m *Memory) PurchasesInRange(_ context.Context, from, to time.Time) ([]generic.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeLocked(from, to), nil
}

func (m *Memory) rangeLocked(from, to time.Time) []generic.Purchase {
	var result []generic.Purchase
	for _, id := range m.byDate {
		p := m.purchases[id]
		if p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !p.Date.Before(to) {
			break
		}
		result = append(result, header(p))
	}
	return result
}

// Count returns the number of stored purchases.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.purchases)
}

func header(p generic.Purchase) generic.Purchase {
	p.Lines = nil
	return p
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	txStore := &txMemoryView{parent: tm}

	if err := fn(txStore); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	purchases := make(map[generic.PurchaseID]generic.Purchase, len(tm.purchases))
	for k, v := range tm.purchases {
		purchases[k] = v
	}
	return memorySnapshot{
		purchases: purchases,
		byDate:    append([]generic.PurchaseID(nil), tm.byDate...),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.purchases = s.purchases
	tm.byDate = s.byDate
}

type memorySnapshot struct {
	purchases map[generic.PurchaseID]generic.Purchase
	byDate    []generic.PurchaseID
}

// txMemoryView runs with the parent lock held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) FindActiveProducts(_ context.Context, ids []generic.ProductID) ([]generic.Product, error) {
	return tv.parent.findActiveLocked(ids), nil
}

func (tv *txMemoryView) ProductNames(_ context.Context, ids []generic.ProductID) (map[generic.ProductID]string, error) {
	return tv.parent.namesLocked(ids), nil
}

func (tv *txMemoryView) AppendPurchase(_ context.Context, p generic.Purchase) error {
	return tv.parent.appendLocked(p)
}

func (tv *txMemoryView) GetPurchase(_ context.Context, id generic.PurchaseID) (generic.Purchase, error) {
	return tv.parent.getLocked(id)
}

func (tv *txMemoryView) ListPurchases(_ context.Context, limit int) ([]generic.Purchase, error) {
	var result []generic.Purchase
	for i := len(tv.parent.byDate) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		result = append(result, header(tv.parent.purchases[tv.parent.byDate[i]]))
	}
	return result, nil
}

func (tv *txMemoryView) PurchasesInRange(_ context.Context, from, to time.Time) ([]generic.Purchase, error) {
	return tv.parent.rangeLocked(from, to), nil
}
