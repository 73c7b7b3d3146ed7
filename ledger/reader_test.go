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

func TestGetPurchase_CurrentNameFrozenPrice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := purchaseOn(t, newTestWriter(s), fixedNow, 3)

	// Product renamed, repriced and deactivated after the sale
	require.NoError(t, s.SaveProduct(ctx, product("P1", "Widget Pro", "99.00", false)))

	detail, err := ledger.NewReader(s).GetPurchase(ctx, p.ID)
	require.NoError(t, err)

	require.Len(t, detail.Lines, 1)
	line := detail.Lines[0]
	assert.Equal(t, "Widget Pro", line.ProductName)
	assert.Equal(t, "10.00", line.UnitPrice.String())
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "30.00", line.LineTotal.String())
	assert.Equal(t, "30.00", detail.Total.String())
	assert.Equal(t, "Ada", detail.CustomerName)
}

func TestGetPurchase_NotFound(t *testing.T) {
	r := ledger.NewReader(newTestStore(t))

	for _, id := range []generic.PurchaseID{"missing", ""} {
		_, err := r.GetPurchase(context.Background(), id)

		var nf *generic.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "purchase", nf.Kind)
		assert.True(t, generic.IsNotFound(err))
	}
}

func TestGetPurchase_StoreFailure(t *testing.T) {
	r := ledger.NewReader(&failingReadStore{Memory: store.NewMemory()})
	_, err := r.GetPurchase(context.Background(), "any")
	assert.ErrorIs(t, err, generic.ErrPersistence)
	assert.False(t, generic.IsNotFound(err))
}

func TestListPurchases_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	w := newTestWriter(s)
	first := purchaseOn(t, w, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), 1)
	second := purchaseOn(t, w, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 1)

	list, err := ledger.NewReader(s).ListPurchases(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Empty(t, list[0].Lines, "list returns headers only")

	one, err := ledger.NewReader(s).ListPurchases(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestListPurchases_EmptyIsNotNil(t *testing.T) {
	list, err := ledger.NewReader(newTestStore(t)).ListPurchases(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
