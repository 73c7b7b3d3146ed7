/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Every amount is a decimal string ("25.50"), never a JSON number, so no
  client ever parses a price into a float.

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/ledger"
)

// =============================================================================
// PURCHASES
// =============================================================================

// CreatePurchaseRequest is the body of POST /api/purchases.
type CreatePurchaseRequest struct {
	CustomerName string             `json:"customer_name"`
	Date         string             `json:"date,omitempty"` // YYYY-MM-DD or RFC 3339; empty means now
	Lines        []LineInputRequest `json:"lines"`
}

type LineInputRequest struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
}

// PurchaseDTO is a purchase with its lines.
type PurchaseDTO struct {
	ID           string        `json:"id"`
	Date         time.Time     `json:"date"`
	CustomerName string        `json:"customer_name"`
	Total        generic.Money `json:"total"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	Lines        []LineDTO     `json:"lines"`
}

// LineDTO shows the frozen unit price next to the product's current name.
type LineDTO struct {
	ID          string        `json:"id"`
	ProductID   string        `json:"product_id"`
	ProductName string        `json:"product_name,omitempty"`
	UnitPrice   generic.Money `json:"unit_price"`
	Quantity    int           `json:"quantity"`
	Description string        `json:"description,omitempty"`
	LineTotal   generic.Money `json:"line_total"`
}

// PurchaseSummaryDTO is a list entry.
type PurchaseSummaryDTO struct {
	ID           string        `json:"id"`
	Date         time.Time     `json:"date"`
	CustomerName string        `json:"customer_name"`
	Total        generic.Money `json:"total"`
	CreatedBy    string        `json:"created_by"`
}

// =============================================================================
// REPORTS
// =============================================================================

type MonthlyReportDTO struct {
	Months int               `json:"months"`
	Rows   []MonthlyTotalDTO `json:"rows"`
}

type MonthlyTotalDTO struct {
	Period string        `json:"period"` // YYYY-MM
	Year   int           `json:"year"`
	Month  int           `json:"month"`
	Count  int           `json:"count"`
	Sum    generic.Money `json:"sum"`
}

type DailyReportDTO struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rows []DailyTotalDTO `json:"rows"`
}

type DailyTotalDTO struct {
	Date  string        `json:"date"` // YYYY-MM-DD
	Count int           `json:"count"`
	Sum   generic.Money `json:"sum"`
}

// =============================================================================
// PRODUCTS
// =============================================================================

// SaveProductRequest is the body of POST /api/products.
type SaveProductRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Active *bool  `json:"active,omitempty"` // default true
}

type ProductDTO struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Price     generic.Money `json:"price"`
	Active    bool          `json:"active"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ValidationDetails accompanies a 400 raised by the ledger.
type ValidationDetails struct {
	Field      string   `json:"field"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

type HealthDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPurchaseDTO(d ledger.PurchaseDetail) PurchaseDTO {
	dto := PurchaseDTO{
		ID:           string(d.ID),
		Date:         d.Date,
		CustomerName: d.CustomerName,
		Total:        d.Total,
		CreatedBy:    d.CreatedBy,
		CreatedAt:    d.CreatedAt,
		Lines:        make([]LineDTO, len(d.Lines)),
	}
	for i, l := range d.Lines {
		dto.Lines[i] = LineDTO{
			ID:          string(l.ID),
			ProductID:   string(l.ProductID),
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			Description: l.Description,
			LineTotal:   l.LineTotal,
		}
	}
	return dto
}

// purchaseDetail is the display form of a purchase when the product names
// are not at hand.
func purchaseDetail(p generic.Purchase) ledger.PurchaseDetail {
	d := ledger.PurchaseDetail{
		ID:           p.ID,
		Date:         p.Date,
		CustomerName: p.CustomerName,
		Total:        p.Total,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    p.CreatedAt,
		Lines:        make([]ledger.LineDetail, len(p.Lines)),
	}
	for i, l := range p.Lines {
		d.Lines[i] = ledger.LineDetail{
			ID:          l.ID,
			ProductID:   l.ProductID,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			Description: l.Description,
			LineTotal:   l.Total(),
		}
	}
	return d
}

func toSummaryDTOs(ps []generic.Purchase) []PurchaseSummaryDTO {
	out := make([]PurchaseSummaryDTO, len(ps))
	for i, p := range ps {
		out[i] = PurchaseSummaryDTO{
			ID:           string(p.ID),
			Date:         p.Date,
			CustomerName: p.CustomerName,
			Total:        p.Total,
			CreatedBy:    p.CreatedBy,
		}
	}
	return out
}

func toMonthlyDTOs(rows []ledger.MonthlyTotal) []MonthlyTotalDTO {
	out := make([]MonthlyTotalDTO, len(rows))
	for i, r := range rows {
		out[i] = MonthlyTotalDTO{
			Period: generic.NewMonth(r.Year, r.Month).String(),
			Year:   r.Year,
			Month:  int(r.Month),
			Count:  r.Count,
			Sum:    r.Sum,
		}
	}
	return out
}

func toDailyDTOs(rows []ledger.DailyTotal) []DailyTotalDTO {
	out := make([]DailyTotalDTO, len(rows))
	for i, r := range rows {
		out[i] = DailyTotalDTO{Date: r.Date.Format(dateLayout), Count: r.Count, Sum: r.Sum}
	}
	return out
}

func toProductDTO(p generic.Product) ProductDTO {
	return ProductDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Price:     p.Price,
		Active:    p.Active,
		UpdatedAt: p.UpdatedAt,
	}
}
