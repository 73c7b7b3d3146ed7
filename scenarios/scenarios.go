/*
scenarios.go - Demo data sets for local development and demos

PURPOSE:
  Populates a store with a realistic catalog and purchase history so the
  reports have something to show. Every purchase goes through the ledger
  writer, so seeded data obeys the same rules as real data: prices are
  frozen at the time of the purchase, totals are computed, never supplied.

AVAILABLE SCENARIOS:
  small-shop:    three products, a handful of purchases this month
  repricing:     a product repriced mid-history; old purchases keep old prices
  year-of-sales: one to three purchases a week for the last 14 months

HOW SCENARIOS WORK:
  1. Save the catalog (products as they were at the start of the story)
  2. Record purchases in date order through ledger.Writer
  3. Optionally reprice or retire products between purchases

Dates are relative to the `now` passed to Load, so a scenario always ends
today.

NOTE:
  The ledger is append-only; scenarios add data, they never reset it. Load
  them into a fresh database.

USAGE:
  ledgerctl seed -list
  ledgerctl seed year-of-sales
*/
package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/ledger"
)

// Actor is recorded as the creator of every seeded purchase.
var Actor = ledger.Actor{ID: "seed", Role: "system"}

// Backend is the store a scenario is loaded into.
type Backend interface {
	generic.Store
	generic.ProductStore
}

// Scenario describes one data set.
type Scenario struct {
	ID          string
	Name        string
	Description string

	load func(ctx context.Context, l *loader) error
}

var all = []Scenario{
	{
		ID:          "small-shop",
		Name:        "Small Shop",
		Description: "Three products and a handful of purchases this month",
		load:        loadSmallShop,
	},
	{
		ID:          "repricing",
		Name:        "Repricing",
		Description: "A product repriced and another retired mid-history; old purchases keep their prices",
		load:        loadRepricing,
	},
	{
		ID:          "year-of-sales",
		Name:        "Year of Sales",
		Description: "One to three purchases a week for the last 14 months",
		load:        loadYearOfSales,
	},
}

// List returns the available scenarios.
func List() []Scenario {
	return append([]Scenario(nil), all...)
}

// Load seeds backend with the scenario id. now anchors every relative date.
func Load(ctx context.Context, backend Backend, id string, now time.Time) error {
	for _, s := range all {
		if s.ID != id {
			continue
		}
		l := &loader{
			backend: backend,
			now:     now.UTC(),
		}
		l.writer = ledger.NewWriter(backend, ledger.WithClock(func() time.Time { return l.now }))
		if err := s.load(ctx, l); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("unknown scenario %q", id)
}

// =============================================================================
// LOADER HELPERS
// =============================================================================

type loader struct {
	backend Backend
	writer  *ledger.Writer
	now     time.Time
}

// daysAgo returns now minus n days, at 10:00 plus `hour` hours.
func (l *loader) daysAgo(n, hour int) time.Time {
	d := l.now.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), 10+hour, 0, 0, 0, time.UTC)
}

func (l *loader) product(ctx context.Context, id, name, price string, active bool) error {
	m, err := generic.NewMoney(price)
	if err != nil {
		return err
	}
	return l.backend.SaveProduct(ctx, generic.Product{
		ID:        generic.ProductID(id),
		Name:      name,
		Price:     m,
		Active:    active,
		UpdatedAt: l.now,
	})
}

func (l *loader) purchase(ctx context.Context, customer string, date time.Time, lines ...ledger.LineInput) error {
	_, err := l.writer.CreatePurchase(ctx, Actor, ledger.CreatePurchaseRequest{
		CustomerName: customer,
		Date:         date,
		Lines:        lines,
	})
	return err
}

func line(id string, qty int) ledger.LineInput {
	return ledger.LineInput{ProductID: generic.ProductID(id), Quantity: qty}
}

// =============================================================================
// SCENARIO: SMALL SHOP
// =============================================================================

func loadSmallShop(ctx context.Context, l *loader) error {
	for _, p := range [][3]string{
		{"coffee", "Coffee beans 1kg", "24.90"},
		{"mug", "Enamel mug", "12.50"},
		{"filter", "Paper filters x100", "4.99"},
	} {
		if err := l.product(ctx, p[0], p[1], p[2], true); err != nil {
			return err
		}
	}

	purchases := []struct {
		customer string
		daysAgo  int
		lines    []ledger.LineInput
	}{
		{"Ada Lovelace", 6, []ledger.LineInput{line("coffee", 2), line("filter", 1)}},
		{"Alan Turing", 4, []ledger.LineInput{line("mug", 4)}},
		{"Grace Hopper", 2, []ledger.LineInput{line("coffee", 1), line("mug", 1), line("filter", 3)}},
		{"Ada Lovelace", 0, []ledger.LineInput{line("filter", 2)}},
	}
	for _, p := range purchases {
		if err := l.purchase(ctx, p.customer, l.daysAgo(p.daysAgo, 0), p.lines...); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO: REPRICING
// =============================================================================

func loadRepricing(ctx context.Context, l *loader) error {
	if err := l.product(ctx, "tea", "Green tea 250g", "8.00", true); err != nil {
		return err
	}
	if err := l.product(ctx, "kettle", "Kettle", "39.00", true); err != nil {
		return err
	}

	// Before the price change.
	if err := l.purchase(ctx, "Edsger Dijkstra", l.daysAgo(60, 0), line("tea", 3), line("kettle", 1)); err != nil {
		return err
	}
	if err := l.purchase(ctx, "Barbara Liskov", l.daysAgo(45, 2), line("tea", 1)); err != nil {
		return err
	}

	// Tea goes up, the kettle is discontinued.
	if err := l.product(ctx, "tea", "Green tea 250g", "9.50", true); err != nil {
		return err
	}
	if err := l.product(ctx, "kettle", "Kettle (discontinued)", "39.00", false); err != nil {
		return err
	}

	if err := l.purchase(ctx, "Barbara Liskov", l.daysAgo(20, 1), line("tea", 2)); err != nil {
		return err
	}
	return l.purchase(ctx, "Ken Thompson", l.daysAgo(3, 4), line("tea", 5))
}

// =============================================================================
// SCENARIO: YEAR OF SALES
// =============================================================================

func loadYearOfSales(ctx context.Context, l *loader) error {
	catalog := [][3]string{
		{"notebook", "Notebook A5", "6.40"},
		{"pen", "Fountain pen", "28.00"},
		{"ink", "Ink bottle", "11.75"},
		{"pencil", "Pencil HB", "0.85"},
	}
	for _, p := range catalog {
		if err := l.product(ctx, p[0], p[1], p[2], true); err != nil {
			return err
		}
	}
	customers := []string{"Ada Lovelace", "Alan Turing", "Grace Hopper", "Donald Knuth", "Frances Allen"}

	// Deterministic pseudo-random walk so every load produces the same history.
	seed := uint32(7)
	next := func(n int) int {
		seed = seed*1664525 + 1013904223
		return int(seed>>16) % n
	}

	start := 14 * 30
	for day := start; day >= 0; day -= 7 {
		for i := 0; i <= next(3); i++ {
			first := catalog[next(len(catalog))][0]
			lines := []ledger.LineInput{line(first, 1+next(4))}
			if next(2) == 0 {
				lines = append(lines, line("pencil", 1+next(10)))
			}
			date := l.daysAgo(day-next(7)%(day+1), next(8))
			if err := l.purchase(ctx, customers[next(len(customers))], date, lines...); err != nil {
				return err
			}
		}
	}
	return nil
}
