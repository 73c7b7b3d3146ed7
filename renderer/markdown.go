// Package renderer turns ledger reads into markdown documents for humans:
// the CLI prints them through a terminal renderer, and they paste cleanly
// into tickets and chat.
package renderer

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/ledger"
)

// DefaultCurrency is used when none or an unknown code is given.
const DefaultCurrency = money.USD

// Renderer formats amounts in one display currency.
type Renderer struct {
	currency *money.Currency
}

// New returns a renderer for the ISO 4217 code, falling back to USD.
func New(code string) *Renderer {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		cur = money.GetCurrency(DefaultCurrency)
	}
	return &Renderer{currency: cur}
}

// Money formats m with the currency's symbol, separators and fraction
// digits. Amounts with more precision than the currency are rounded for
// display only.
func (r *Renderer) Money(m generic.Money) string {
	fraction := int32(r.currency.Fraction)
	minor := m.Value.Round(fraction).Shift(fraction).IntPart()
	return money.New(minor, r.currency.Code).Display()
}

// Monthly renders the monthly series as a table with a totals row.
func (r *Renderer) Monthly(rows []ledger.MonthlyTotal) string {
	var b strings.Builder
	b.WriteString("# Purchases by month\n\n")
	b.WriteString("| Month | Purchases | Total |\n|---|---:|---:|\n")

	count, sum := 0, generic.Zero
	for _, row := range rows {
		fmt.Fprintf(&b, "| %04d-%02d | %d | %s |\n", row.Year, int(row.Month), row.Count, r.Money(row.Sum))
		count += row.Count
		sum = sum.Add(row.Sum)
	}
	fmt.Fprintf(&b, "| **Total** | **%d** | **%s** |\n", count, r.Money(sum))
	return b.String()
}

// Daily renders the daily series as a table with a totals row.
func (r *Renderer) Daily(rows []ledger.DailyTotal) string {
	var b strings.Builder
	if len(rows) > 0 {
		fmt.Fprintf(&b, "# Purchases by day, %s to %s\n\n",
			rows[0].Date.Format("2006-01-02"), rows[len(rows)-1].Date.Format("2006-01-02"))
	} else {
		b.WriteString("# Purchases by day\n\n")
	}
	b.WriteString("| Day | Purchases | Total |\n|---|---:|---:|\n")

	count, sum := 0, generic.Zero
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", row.Date.Format("2006-01-02"), row.Count, r.Money(row.Sum))
		count += row.Count
		sum = sum.Add(row.Sum)
	}
	fmt.Fprintf(&b, "| **Total** | **%d** | **%s** |\n", count, r.Money(sum))
	return b.String()
}

// Purchase renders one purchase with its lines.
func (r *Renderer) Purchase(d ledger.PurchaseDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Purchase %s\n\n", d.ID)
	fmt.Fprintf(&b, "- **Customer:** %s\n", escape(d.CustomerName))
	fmt.Fprintf(&b, "- **Date:** %s\n", d.Date.UTC().Format("2006-01-02 15:04 MST"))
	if d.CreatedBy != "" {
		fmt.Fprintf(&b, "- **Recorded by:** %s\n", escape(d.CreatedBy))
	}
	b.WriteString("\n| Product | Description | Qty | Unit price | Line total |\n|---|---|---:|---:|---:|\n")
	for _, l := range d.Lines {
		name := l.ProductName
		if name == "" {
			name = string(l.ProductID)
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n",
			escape(name), escape(l.Description), l.Quantity, r.Money(l.UnitPrice), r.Money(l.LineTotal))
	}
	fmt.Fprintf(&b, "\n**Total: %s**\n", r.Money(d.Total))
	return b.String()
}

// escape keeps user text from breaking table cells.
func escape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
