/*
handlers_test.go - Tests for the HTTP API

Tests for:
- Recording purchases (status codes, frozen prices, event emission)
- Error mapping (400 validation details, 401 actor, 404, opaque 500)
- Report parameters (clamping, default ranges)
- Catalog maintenance
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice/events"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
	fail error
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.envs = append(p.envs, env)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Envelope(nil), p.envs...)
}

type testServer struct {
	store  *store.TxMemory
	events *recordingPublisher
	router http.Handler
}

// newTestServer serves a memory store seeded with P1 = 10.00, P2 = 5.50 and
// an inactive P3.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewTxMemory()
	ctx := context.Background()
	for _, p := range []generic.Product{
		{ID: "P1", Name: "Widget", Price: generic.MustMoney("10.00"), Active: true},
		{ID: "P2", Name: "Gadget", Price: generic.MustMoney("5.50"), Active: true},
		{ID: "P3", Name: "Retired", Price: generic.MustMoney("1.00"), Active: false},
	} {
		require.NoError(t, s.SaveProduct(ctx, p))
	}
	return newTestServerWith(t, s, s)
}

func newTestServerWith(t *testing.T, s *store.TxMemory, backend Backend) *testServer {
	t.Helper()
	pub := &recordingPublisher{}
	h := NewHandler(backend,
		WithPublisher(pub),
		WithClock(func() time.Time { return fixedNow }),
	)
	return &testServer{store: s, events: pub, router: NewRouter(h, nil)}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func validPurchase() CreatePurchaseRequest {
	return CreatePurchaseRequest{
		CustomerName: "Ada",
		Date:         "2024-01-15",
		Lines: []LineInputRequest{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1, Description: "gift wrap"},
		},
	}
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestCreatePurchase_Success(t *testing.T) {
	// GIVEN: a catalog with P1 = 10.00 and P2 = 5.50
	ts := newTestServer(t)

	// WHEN: a clerk records 2 x P1 + 1 x P2
	rec := ts.do(t, http.MethodPost, "/api/purchases", validPurchase(), "user-1")

	// THEN: the purchase is created with frozen prices and an exact total
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[PurchaseDTO](t, rec)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Ada", got.CustomerName)
	assert.Equal(t, "25.50", got.Total.String())
	assert.Equal(t, "user-1", got.CreatedBy)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got.Date)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Widget", got.Lines[0].ProductName)
	assert.Equal(t, "10.00", got.Lines[0].UnitPrice.String())
	assert.Equal(t, "20.00", got.Lines[0].LineTotal.String())
	assert.Equal(t, "gift wrap", got.Lines[1].Description)

	// AND: amounts travel as strings
	assert.Contains(t, rec.Body.String(), `"total":"25.50"`)

	// AND: one event announces it
	published := ts.events.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventPurchaseCreated, published[0].EventType)
	assert.Equal(t, got.ID, published[0].CorrelationID)
	payload, err := events.DecodePayload[events.PurchaseCreatedPayload](published[0])
	require.NoError(t, err)
	assert.Equal(t, "25.50", payload.Total.String())
}

func TestCreatePurchase_DefaultsDateToNow(t *testing.T) {
	ts := newTestServer(t)
	req := validPurchase()
	req.Date = ""

	rec := ts.do(t, http.MethodPost, "/api/purchases", req, "user-1")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, fixedNow, decode[PurchaseDTO](t, rec).Date)
}

func TestCreatePurchase_RFC3339Date(t *testing.T) {
	ts := newTestServer(t)
	req := validPurchase()
	req.Date = "2024-01-15T23:30:00-02:00"

	rec := ts.do(t, http.MethodPost, "/api/purchases", req, "user-1")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2024, 1, 16, 1, 30, 0, 0, time.UTC), decode[PurchaseDTO](t, rec).Date)
}

func TestCreatePurchase_RequiresActor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/purchases", validPurchase(), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decode[ErrorResponse](t, rec).Code)
	assert.Zero(t, ts.store.Count())
	assert.Empty(t, ts.events.published())
}

func TestCreatePurchase_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*CreatePurchaseRequest)
		field      string
		productIDs []string
	}{
		{
			name:   "blank customer",
			mutate: func(r *CreatePurchaseRequest) { r.CustomerName = "  " },
			field:  "customer_name",
		},
		{
			name:   "no lines",
			mutate: func(r *CreatePurchaseRequest) { r.Lines = nil },
			field:  "lines",
		},
		{
			name:   "zero quantity",
			mutate: func(r *CreatePurchaseRequest) { r.Lines[1].Quantity = 0 },
			field:  "lines[1].quantity",
		},
		{
			name: "inactive and unknown products",
			mutate: func(r *CreatePurchaseRequest) {
				r.Lines = append(r.Lines,
					LineInputRequest{ProductID: "P3", Quantity: 1},
					LineInputRequest{ProductID: "NOPE", Quantity: 1})
			},
			field:      "lines",
			productIDs: []string{"P3", "NOPE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			req := validPurchase()
			tt.mutate(&req)

			rec := ts.do(t, http.MethodPost, "/api/purchases", req, "user-1")

			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var resp struct {
				Code    string            `json:"code"`
				Details ValidationDetails `json:"details"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "validation", resp.Code)
			assert.Equal(t, tt.field, resp.Details.Field)
			assert.Equal(t, tt.productIDs, resp.Details.ProductIDs)

			assert.Zero(t, ts.store.Count())
			assert.Empty(t, ts.events.published())
		})
	}
}

func TestCreatePurchase_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"not json":      `{"customer_name":`,
		"unknown field": `{"customer_name":"Ada","unit_price":"0.01","lines":[{"product_id":"P1","quantity":1}]}`,
		"bad date":      `{"customer_name":"Ada","date":"15/01/2024","lines":[{"product_id":"P1","quantity":1}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/purchases", body, "user-1")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, ts.store.Count())
}

func TestCreatePurchase_PublishFailureDoesNotFailRequest(t *testing.T) {
	// GIVEN: a publisher that is down
	ts := newTestServer(t)
	ts.events.fail = events.ErrPublisherClosed

	// WHEN: a purchase is recorded
	rec := ts.do(t, http.MethodPost, "/api/purchases", validPurchase(), "user-1")

	// THEN: the purchase still stands
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, ts.store.Count())
}

func TestGetPurchase_FrozenPriceCurrentName(t *testing.T) {
	// GIVEN: a purchase of P1 at 10.00
	ts := newTestServer(t)
	created := decode[PurchaseDTO](t, ts.do(t, http.MethodPost, "/api/purchases", validPurchase(), "user-1"))

	// WHEN: P1 is renamed and repriced
	rec := ts.do(t, http.MethodPost, "/api/products",
		SaveProductRequest{ID: "P1", Name: "Widget Pro", Price: "12.00"}, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: the purchase shows the new name with the old price
	rec = ts.do(t, http.MethodGet, "/api/purchases/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[PurchaseDTO](t, rec)
	assert.Equal(t, "Widget Pro", got.Lines[0].ProductName)
	assert.Equal(t, "10.00", got.Lines[0].UnitPrice.String())
	assert.Equal(t, "25.50", got.Total.String())
}

func TestGetPurchase_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/purchases/missing", nil, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)
}

func TestListPurchases_NewestFirst(t *testing.T) {
	ts := newTestServer(t)
	for _, date := range []string{"2024-01-01", "2024-03-01", "2024-02-01"} {
		req := validPurchase()
		req.Date = date
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/purchases", req, "user-1").Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/purchases?limit=2", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]PurchaseSummaryDTO](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, time.March, got[0].Date.Month())
	assert.Equal(t, time.February, got[1].Date.Month())
}

func TestListPurchases_Empty(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/purchases", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/purchases?limit=ten", nil, "").Code)
}

// =============================================================================
// INTERNAL ERRORS
// =============================================================================

type brokenStore struct {
	*store.TxMemory
}

func (brokenStore) ListPurchases(context.Context, int) ([]generic.Purchase, error) {
	return nil, errors.New("disk on fire at /var/lib/ledger")
}

func TestInternalErrorIsOpaque(t *testing.T) {
	s := store.NewTxMemory()
	ts := newTestServerWith(t, s, brokenStore{s})

	rec := ts.do(t, http.MethodGet, "/api/purchases", nil, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "internal", resp.Code)
	assert.Nil(t, resp.Details)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

// =============================================================================
// REPORTS
// =============================================================================

func TestMonthlyReport(t *testing.T) {
	// GIVEN: purchases in January (two) and March
	ts := newTestServer(t)
	for _, date := range []string{"2024-01-05", "2024-01-20", "2024-03-01"} {
		req := validPurchase()
		req.Date = date
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/purchases", req, "user-1").Code)
	}

	// WHEN: the last three months are requested
	rec := ts.do(t, http.MethodGet, "/api/reports/monthly?months=3", nil, "")

	// THEN: every month is present, February filled with zero
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[MonthlyReportDTO](t, rec)
	assert.Equal(t, 3, got.Months)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, "2024-01", got.Rows[0].Period)
	assert.Equal(t, 2, got.Rows[0].Count)
	assert.Equal(t, "51.00", got.Rows[0].Sum.String())
	assert.Equal(t, "2024-02", got.Rows[1].Period)
	assert.Equal(t, 0, got.Rows[1].Count)
	assert.Equal(t, "0.00", got.Rows[1].Sum.String())
	assert.Equal(t, "25.50", got.Rows[2].Sum.String())
}

func TestMonthlyReport_Clamped(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		query string
		want  int
	}{
		{"", 12},
		{"?months=0", 12},
		{"?months=-4", 12},
		{"?months=100", 36},
		{"?months=6", 6},
	}
	for _, tt := range tests {
		rec := ts.do(t, http.MethodGet, "/api/reports/monthly"+tt.query, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, tt.query)
		got := decode[MonthlyReportDTO](t, rec)
		assert.Equal(t, tt.want, got.Months, tt.query)
		assert.Len(t, got.Rows, tt.want, tt.query)
	}

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/reports/monthly?months=x", nil, "").Code)
}

func TestDailyReport(t *testing.T) {
	ts := newTestServer(t)
	req := validPurchase()
	req.Date = "2024-03-02T18:00:00Z"
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/purchases", req, "user-1").Code)

	rec := ts.do(t, http.MethodGet, "/api/reports/daily?from=2024-03-01&to=2024-03-03", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[DailyReportDTO](t, rec)
	assert.Equal(t, "2024-03-01", got.From)
	assert.Equal(t, "2024-03-03", got.To)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, "2024-03-02", got.Rows[1].Date)
	assert.Equal(t, 1, got.Rows[1].Count)
	assert.Equal(t, "25.50", got.Rows[1].Sum.String())
	assert.Equal(t, 0, got.Rows[2].Count)
}

func TestDailyReport_Ranges(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		query    string
		from, to string
		rows     int
	}{
		{"default last 30 days", "", "2024-02-15", "2024-03-15", 30},
		{"to only", "?to=2024-01-31", "2024-01-02", "2024-01-31", 30},
		{"reversed", "?from=2024-03-03&to=2024-03-01", "2024-03-01", "2024-03-03", 3},
		{"too long", "?from=2023-01-01&to=2025-01-01", "2023-01-01", "2024-01-02", 367},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/reports/daily"+tt.query, nil, "")
			require.Equal(t, http.StatusOK, rec.Code)
			got := decode[DailyReportDTO](t, rec)
			assert.Equal(t, tt.from, got.From)
			assert.Equal(t, tt.to, got.To)
			assert.Len(t, got.Rows, tt.rows)
		})
	}

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/reports/daily?from=yesterday", nil, "").Code)
}

// =============================================================================
// PRODUCTS AND HEALTH
// =============================================================================

func TestSaveProduct(t *testing.T) {
	ts := newTestServer(t)
	inactive := false

	rec := ts.do(t, http.MethodPost, "/api/products",
		SaveProductRequest{ID: "P4", Name: "Sprocket", Price: "0.99", Active: &inactive}, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]ProductDTO](t, rec)
	require.Len(t, products, 4)
	var p4 ProductDTO
	for _, p := range products {
		if p.ID == "P4" {
			p4 = p
		}
	}
	assert.Equal(t, "0.99", p4.Price.String())
	assert.False(t, p4.Active)
}

func TestSaveProduct_Rejected(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		req   SaveProductRequest
		field string
	}{
		{SaveProductRequest{Name: "x", Price: "1"}, "id"},
		{SaveProductRequest{ID: "P9", Price: "1"}, "name"},
		{SaveProductRequest{ID: "P9", Name: "x", Price: "cheap"}, "price"},
		{SaveProductRequest{ID: "P9", Name: "x", Price: "-1"}, "price"},
	}
	for _, tt := range tests {
		rec := ts.do(t, http.MethodPost, "/api/products", tt.req, "admin")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp struct {
			Details ValidationDetails `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.field, resp.Details.Field)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthDTO](t, rec).Status)
}
