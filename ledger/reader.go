package ledger

import (
	"context"
	"errors"

	"github.com/warp/backoffice/generic"
)

// List limits for ListPurchases.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Reader serves purchases for display. It never mutates anything.
type Reader struct {
	store generic.Store
}

func NewReader(store generic.Store) *Reader {
	return &Reader{store: store}
}

// GetPurchase returns the purchase with its lines. Unit prices are the
// frozen ones; product names are whatever the catalog says now.
func (r *Reader) GetPurchase(ctx context.Context, id generic.PurchaseID) (PurchaseDetail, error) {
	if id == "" {
		return PurchaseDetail{}, &generic.NotFoundError{Kind: "purchase", ID: string(id)}
	}

	p, err := r.store.GetPurchase(ctx, id)
	if errors.Is(err, generic.ErrPurchaseNotFound) {
		return PurchaseDetail{}, &generic.NotFoundError{Kind: "purchase", ID: string(id)}
	}
	if err != nil {
		return PurchaseDetail{}, &generic.PersistenceError{Op: "get purchase", Err: err}
	}

	names, err := r.store.ProductNames(ctx, p.ProductIDs())
	if err != nil {
		return PurchaseDetail{}, &generic.PersistenceError{Op: "product names", Err: err}
	}

	detail := PurchaseDetail{
		ID:           p.ID,
		Date:         p.Date,
		CustomerName: p.CustomerName,
		Total:        p.Total,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    p.CreatedAt,
		Lines:        make([]LineDetail, len(p.Lines)),
	}
	for i, l := range p.Lines {
		detail.Lines[i] = LineDetail{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: names[l.ProductID],
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			Description: l.Description,
			LineTotal:   l.Total(),
		}
	}
	return detail, nil
}

// ListPurchases returns purchase headers, newest first. limit <= 0 means
// DefaultListLimit; anything above MaxListLimit is reduced to it.
func (r *Reader) ListPurchases(ctx context.Context, limit int) ([]generic.Purchase, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	purchases, err := r.store.ListPurchases(ctx, limit)
	if err != nil {
		return nil, &generic.PersistenceError{Op: "list purchases", Err: err}
	}
	if purchases == nil {
		purchases = []generic.Purchase{}
	}
	return purchases, nil
}
