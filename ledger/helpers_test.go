package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/generic/store"
	"github.com/warp/backoffice/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var clerk = ledger.Actor{ID: "user-1", Role: "clerk"}

// fixedNow anchors every test clock: 2024-03-15 12:00 UTC.
var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// sequentialIDs returns deterministic ids: id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func product(id, name, price string, active bool) generic.Product {
	return generic.Product{ID: generic.ProductID(id), Name: name, Price: generic.MustMoney(price), Active: active}
}

// newTestStore returns a transactional memory store seeded with
// P1 = 10.00, P2 = 5.50 and an inactive P3.
func newTestStore(t *testing.T) *store.TxMemory {
	t.Helper()
	s := store.NewTxMemory()
	ctx := context.Background()
	require.NoError(t, s.SaveProduct(ctx, product("P1", "Widget", "10.00", true)))
	require.NoError(t, s.SaveProduct(ctx, product("P2", "Gadget", "5.50", true)))
	require.NoError(t, s.SaveProduct(ctx, product("P3", "Retired", "1.00", false)))
	return s
}

func newTestWriter(s generic.Store) *ledger.Writer {
	return ledger.NewWriter(s, ledger.WithClock(clock), ledger.WithIDGenerator(sequentialIDs()))
}

// purchaseOn records a purchase of one P1 (10.00) on the given date.
func purchaseOn(t *testing.T, w *ledger.Writer, date time.Time, qty int) generic.Purchase {
	t.Helper()
	p, err := w.CreatePurchase(context.Background(), clerk, ledger.CreatePurchaseRequest{
		CustomerName: "Ada",
		Date:         date,
		Lines:        []ledger.LineInput{{ProductID: "P1", Quantity: qty}},
	})
	require.NoError(t, err)
	return p
}

// =============================================================================
// FAILING STORES
// =============================================================================

var errStoreDown = errors.New("store unavailable")

// failingAppendStore accepts lookups but rejects every write.
type failingAppendStore struct {
	*store.Memory
}

func (f *failingAppendStore) AppendPurchase(context.Context, generic.Purchase) error {
	return errStoreDown
}

// failingReadStore rejects every read of the ledger.
type failingReadStore struct {
	*store.Memory
}

func (f *failingReadStore) GetPurchase(context.Context, generic.PurchaseID) (generic.Purchase, error) {
	return generic.Purchase{}, errStoreDown
}

func (f *failingReadStore) PurchasesInRange(context.Context, time.Time, time.Time) ([]generic.Purchase, error) {
	return nil, errStoreDown
}

// halfWritingStore appends the purchase and then fails, inside a
// transaction, to prove the rollback.
type halfWritingStore struct {
	*store.TxMemory
}

func (h *halfWritingStore) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	return h.TxMemory.WithTx(ctx, func(s generic.Store) error {
		if err := fn(s); err != nil {
			return err
		}
		return errors.New("commit failed")
	})
}
