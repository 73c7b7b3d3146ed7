/*
handlers.go - HTTP API handlers for the purchase ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response and JSON
  serialization, and delegates every rule to the ledger package.

ENDPOINTS:
  Purchases:
    GET    /api/purchases              Recent purchases, newest first (?limit=)
    POST   /api/purchases              Record a purchase (requires X-Actor-ID)
    GET    /api/purchases/{id}         Purchase with lines

  Reports:
    GET    /api/reports/monthly        Monthly series (?months=, clamped to 1..36)
    GET    /api/reports/daily          Daily series (?from=&to=, YYYY-MM-DD)

  Products:
    GET    /api/products               Catalog
    POST   /api/products               Create or reprice a product

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Writer / Reader / Aggregator: the ledger
  - Products: catalog maintenance
  - Cache: optional Redis report cache
  - Events: optional PurchaseCreated publisher

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the ledger (it validates)
  3. Serialize response
  4. Map error kinds to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed bodies and parameters
  - 401: Missing actor on a write
  - 404: Resource not found
  - 500: Internal errors (logged; no detail is sent to the client)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/backoffice/cache"
	"github.com/warp/backoffice/events"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/ledger"
	"github.com/warp/backoffice/logging"
)

// ActorHeader carries the authenticated user, set by the gateway.
const ActorHeader = "X-Actor-ID"

const (
	dateLayout       = "2006-01-02"
	defaultDailyDays = 30
	maxBodyBytes     = 1 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the persistence a Handler needs: the ledger store plus catalog
// maintenance. The SQLite, PostgreSQL and in-memory stores all satisfy it.
type Backend interface {
	generic.Store
	generic.ProductStore
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	writer   *ledger.Writer
	reader   *ledger.Reader
	reports  *ledger.Aggregator
	products generic.ProductStore
	store    Backend

	cache  *cache.Reports
	events events.Publisher

	logger      *logging.Logger
	serviceName string
	now         func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithCache serves report series through c.
func WithCache(c *cache.Reports) Option {
	return func(h *Handler) { h.cache = c }
}

// WithPublisher emits a PurchaseCreated event after every recorded purchase.
func WithPublisher(p events.Publisher) Option {
	return func(h *Handler) { h.events = p }
}

func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithClock fixes "now" for the writer, the reports and default ranges.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithServiceName sets the producer recorded on emitted events.
func WithServiceName(name string) Option {
	return func(h *Handler) { h.serviceName = name }
}

// NewHandler creates a new handler over backend.
func NewHandler(backend Backend, opts ...Option) *Handler {
	h := &Handler{
		store:       backend,
		products:    backend,
		events:      events.Nop{},
		logger:      logging.Discard(),
		serviceName: "ledger-api",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.writer = ledger.NewWriter(backend,
		ledger.WithClock(h.now),
		ledger.WithLogger(h.logger.WithComponent("ledger")),
	)
	h.reader = ledger.NewReader(backend)
	h.reports = ledger.NewAggregator(backend, ledger.WithReportClock(h.now))
	return h
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// CreatePurchase records a purchase for the actor in X-Actor-ID.
// POST /api/purchases
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ledger.CreatePurchaseRequest{
		CustomerName: req.CustomerName,
		Lines:        make([]ledger.LineInput, len(req.Lines)),
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD or RFC 3339)", err)
			return
		}
		in.Date = date
	}
	for i, l := range req.Lines {
		in.Lines[i] = ledger.LineInput{
			ProductID:   generic.ProductID(l.ProductID),
			Quantity:    l.Quantity,
			Description: l.Description,
		}
	}

	actor := ledger.Actor{ID: strings.TrimSpace(r.Header.Get(ActorHeader))}
	p, err := h.writer.CreatePurchase(ctx, actor, in)
	if err != nil {
		h.fail(w, r, "Failed to create purchase", err)
		return
	}

	h.cache.Invalidate(ctx)
	h.publish(ctx, p)

	detail, err := h.reader.GetPurchase(ctx, p.ID)
	if err != nil {
		// The purchase is committed; answer with what we already hold.
		logging.FromContext(ctx).WarnContext(ctx, "reload after create failed",
			logging.FieldPurchaseID, p.ID, logging.FieldError, err)
		detail = purchaseDetail(p)
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(detail))
}

// GetPurchase returns one purchase with its lines.
// GET /api/purchases/{id}
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id := generic.PurchaseID(chi.URLParam(r, "id"))

	detail, err := h.reader.GetPurchase(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseDTO(detail))
}

// ListPurchases returns recent purchases, newest first.
// GET /api/purchases?limit=50
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}

	purchases, err := h.reader.ListPurchases(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "Failed to list purchases", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTOs(purchases))
}

// publish emits PurchaseCreated. The purchase is already durable, so a
// failure here is logged and never fails the request.
func (h *Handler) publish(ctx context.Context, p generic.Purchase) {
	logger := logging.FromContext(ctx)
	env, err := events.NewPurchaseCreated(p, h.serviceName, middleware.GetReqID(ctx))
	if err == nil {
		err = h.events.Publish(ctx, env)
	}
	if err != nil {
		logger.WarnContext(ctx, "purchase event not published",
			logging.FieldPurchaseID, p.ID, logging.FieldError, err)
	}
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// MonthlyReport returns the monthly series.
// GET /api/reports/monthly?months=12
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	months, err := intParam(r, "months")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid months", err)
		return
	}
	n := ledger.ClampMonths(months)

	rows, err := h.cache.Monthly(ctx, n, func() ([]ledger.MonthlyTotal, error) {
		return h.reports.MonthlyTotals(ctx, n)
	})
	if err != nil {
		h.fail(w, r, "Failed to compute monthly report", err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyReportDTO{Months: n, Rows: toMonthlyDTOs(rows)})
}

// DailyReport returns the daily series. Both bounds are inclusive dates;
// the default range is the last 30 days, today included.
// GET /api/reports/daily?from=2024-01-01&to=2024-01-31
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	to := h.now().UTC()
	from := to.AddDate(0, 0, -(defaultDailyDays - 1))
	var err error
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = parseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to (use YYYY-MM-DD)", err)
			return
		}
		if r.URL.Query().Get("from") == "" {
			from = to.AddDate(0, 0, -(defaultDailyDays - 1))
		}
	}
	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = parseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM-DD)", err)
			return
		}
	}

	period := ledger.DailyRange(from, to)
	rows, err := h.cache.Daily(ctx, period, func() ([]ledger.DailyTotal, error) {
		return h.reports.DailyTotals(ctx, period.Start.Time, period.End.Time)
	})
	if err != nil {
		h.fail(w, r, "Failed to compute daily report", err)
		return
	}
	writeJSON(w, http.StatusOK, DailyReportDTO{
		From: period.Start.Time.Format(dateLayout),
		To:   period.End.Time.Format(dateLayout),
		Rows: toDailyDTOs(rows),
	})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the catalog.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveProduct creates or reprices a product. Existing purchases keep the
// price they were recorded with.
// POST /api/products
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SaveProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := generic.Product{
		ID:        generic.ProductID(strings.TrimSpace(req.ID)),
		Name:      strings.TrimSpace(req.Name),
		Active:    req.Active == nil || *req.Active,
		UpdatedAt: h.now().UTC(),
	}
	var verr *generic.ValidationError
	switch price, err := generic.NewMoney(req.Price); {
	case p.ID == "":
		verr = &generic.ValidationError{Field: "id", Message: "is required"}
	case p.Name == "":
		verr = &generic.ValidationError{Field: "name", Message: "is required"}
	case err != nil:
		verr = &generic.ValidationError{Field: "price", Message: "must be a decimal amount"}
	case price.IsNegative():
		verr = &generic.ValidationError{Field: "price", Message: "must not be negative"}
	default:
		p.Price = price
	}
	if verr != nil {
		h.fail(w, r, "Invalid product", verr)
		return
	}

	if err := h.products.SaveProduct(ctx, p); err != nil {
		h.fail(w, r, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the store and the cache answer.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthDTO{Status: "ok", Checks: map[string]string{}}
	check := func(name string, err error) {
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}

	if p, ok := h.store.(pinger); ok {
		check("store", p.Ping(ctx))
	}
	if h.cache != nil {
		check("cache", h.cache.Ping(ctx))
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

// fail maps a ledger error to its status code. Internal failures are logged
// with their cause and reported to the client without it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.Is(err, generic.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Actor required", Code: "unauthenticated"})
	case errors.As(err, &verr):
		details := ValidationDetails{Field: verr.Field}
		for _, id := range verr.ProductIDs {
			details.ProductIDs = append(details.ProductIDs, string(id))
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: "validation", Details: details})
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		logging.FromContext(r.Context()).ErrorContext(r.Context(), message,
			"method", r.Method, "path", r.URL.Path, logging.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message, Code: "internal"})
	}
}

// parseDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// intParam reads an optional integer query parameter; absent means 0.
func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
