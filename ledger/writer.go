package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/logging"
)

// =============================================================================
// WRITER - The only mutator of the ledger
// =============================================================================

// Writer creates purchases.
//
// INVARIANTS:
//   - UnitPrice of every line is copied from the catalog at creation
//   - Total == sum of UnitPrice * Quantity, in decimal arithmetic
//   - Nothing is written unless every line is valid and every product active
type Writer struct {
	store   generic.Store
	txStore generic.TxStore // nil when the store has no transactions

	now    func() time.Time
	newID  func() string
	logger *logging.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock overrides the time source used for default dates and CreatedAt.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WithIDGenerator overrides purchase and line id generation.
func WithIDGenerator(newID func() string) WriterOption {
	return func(w *Writer) { w.newID = newID }
}

// WithLogger sets the writer's logger.
func WithLogger(l *logging.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a writer. If store implements generic.TxStore, the
// catalog lookup and the append run in one transaction.
func NewWriter(store generic.Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logging.Discard(),
	}
	if ts, ok := store.(generic.TxStore); ok {
		w.txStore = ts
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreatePurchase validates req, freezes current catalog prices into the
// lines, computes the total and appends the purchase atomically.
//
// Errors: generic.ErrUnauthenticated, *generic.ValidationError,
// *generic.PersistenceError.
func (w *Writer) CreatePurchase(ctx context.Context, actor Actor, req CreatePurchaseRequest) (generic.Purchase, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return generic.Purchase{}, generic.ErrUnauthenticated
	}

	draft, err := w.validate(req)
	if err != nil {
		w.logger.DebugContext(ctx, "purchase rejected", logging.FieldActor, actor.ID, logging.FieldError, err)
		return generic.Purchase{}, err
	}

	var created generic.Purchase
	create := func(s generic.Store) error {
		p, err := w.build(ctx, s, actor, draft)
		if err != nil {
			return err
		}
		if err := s.AppendPurchase(ctx, p); err != nil {
			return &generic.PersistenceError{Op: "append purchase", Err: err}
		}
		created = p
		return nil
	}

	if w.txStore != nil {
		err = w.txStore.WithTx(ctx, create)
	} else {
		err = create(w.store)
	}
	if err != nil {
		// Begin/commit failures surface from WithTx unclassified.
		if !errors.Is(err, generic.ErrValidation) && !errors.Is(err, generic.ErrPersistence) {
			err = &generic.PersistenceError{Op: "create purchase", Err: err}
		}
		w.logger.DebugContext(ctx, "purchase not created", logging.FieldActor, actor.ID, logging.FieldError, err)
		return generic.Purchase{}, err
	}

	w.logger.InfoContext(ctx, "purchase created",
		logging.FieldPurchaseID, created.ID,
		logging.FieldActor, actor.ID,
		"lines", len(created.Lines),
		"total", created.Total.String(),
	)
	return created, nil
}

// draft is a validated request.
type draft struct {
	customer string
	date     time.Time
	lines    []LineInput
}

func (w *Writer) validate(req CreatePurchaseRequest) (draft, error) {
	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		return draft{}, &generic.ValidationError{Field: "customer_name", Message: "must not be blank"}
	}
	if len(req.Lines) == 0 {
		return draft{}, &generic.ValidationError{Field: "lines", Message: "at least one line is required"}
	}

	lines := make([]LineInput, len(req.Lines))
	for i, l := range req.Lines {
		l.ProductID = generic.ProductID(strings.TrimSpace(string(l.ProductID)))
		if l.ProductID == "" {
			return draft{}, &generic.ValidationError{Field: fmt.Sprintf("lines[%d].product_id", i), Message: "must not be blank"}
		}
		if l.Quantity <= 0 {
			return draft{}, &generic.ValidationError{Field: fmt.Sprintf("lines[%d].quantity", i), Message: "must be greater than zero"}
		}
		l.Description = strings.TrimSpace(l.Description)
		lines[i] = l
	}

	date := req.Date
	if date.IsZero() {
		date = w.now()
	}
	return draft{customer: customer, date: date.UTC(), lines: lines}, nil
}

// build resolves prices against the catalog and assembles the purchase.
func (w *Writer) build(ctx context.Context, s generic.Store, actor Actor, d draft) (generic.Purchase, error) {
	ids := generic.DistinctProductIDs(d.lines, func(l LineInput) generic.ProductID { return l.ProductID })

	products, err := s.FindActiveProducts(ctx, ids)
	if err != nil {
		return generic.Purchase{}, &generic.PersistenceError{Op: "find active products", Err: err}
	}

	requested := make(map[generic.ProductID]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}
	byID := make(map[generic.ProductID]generic.Product, len(products))
	for _, p := range products {
		if requested[p.ID] && p.Active {
			byID[p.ID] = p
		}
	}

	// One check covers both unknown and deactivated products.
	if len(byID) != len(ids) {
		var missing []generic.ProductID
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		return generic.Purchase{}, &generic.ValidationError{
			Field:      "lines",
			Message:    "unknown or inactive product",
			ProductIDs: missing,
		}
	}

	p := generic.Purchase{
		ID:           generic.PurchaseID(w.newID()),
		CustomerName: d.customer,
		Date:         d.date,
		Lines:        make([]generic.PurchaseLine, len(d.lines)),
		CreatedBy:    actor.ID,
		CreatedAt:    w.now().UTC(),
	}
	for i, l := range d.lines {
		p.Lines[i] = generic.PurchaseLine{
			ID:          generic.LineID(w.newID()),
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			Description: l.Description,
			UnitPrice:   byID[l.ProductID].Price,
		}
	}
	p.Total = p.LinesTotal()
	return p, nil
}
