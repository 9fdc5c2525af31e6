package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally"
	"github.com/xraph/tally/api"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/snapshot"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/watch"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	ctx    context.Context
	store  *memory.Store
	engine *tally.Engine
	mirror *snapshot.Mirror
	router *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()

	s := memory.New()
	hub := watch.NewHub(nil)
	engine := tally.New(s, tally.WithBus(hub))
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx))
	t.Cleanup(func() { _ = engine.Stop() })

	mirror := snapshot.New(s, hub, nil)
	require.NoError(t, mirror.Sync(ctx))

	h := api.New(engine, mirror,
		api.WithGatherer(prometheus.NewRegistry()),
		api.WithClock(func() time.Time { return time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC) }),
	)

	return &server{ctx: ctx, store: s, engine: engine, mirror: mirror, router: h.Router()}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSaleRoundTrip(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/stock", map[string]any{"name": "Vacío", "unit_price": "500"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decodeBody[stock.Product](t, w)
	p.Quantity, p.Kilos = decimal.NewFromInt(5), decimal.NewFromInt(50)
	require.NoError(t, s.store.PutStockProduct(s.ctx, &p))

	w = s.do(t, http.MethodPost, "/clients", map[string]any{"name": "Don José"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := decodeBody[client.Client](t, w)
	require.NoError(t, s.store.UpdateClientBalance(s.ctx, c.ID, decimal.NewFromInt(1000)))

	// the catalog price comes from the mirror
	require.NoError(t, s.mirror.Sync(s.ctx))

	w = s.do(t, http.MethodPost, "/client-invoices", map[string]any{
		"client_id":    c.ID.String(),
		"type":         "sale",
		"cash_payment": 2000,
		"items": []map[string]any{
			{"detail": "vacío", "quantity": 1, "kilos": "10"},
			{"detail": "   ", "kilos": 3},
		},
	}, api.HeaderEditor, "ana")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	inv := decodeBody[invoice.ClientInvoice](t, w)
	assert.Equal(t, int64(1000), inv.InvoiceNumber)
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)))
	assert.True(t, inv.FinalBalance.Equal(decimal.NewFromInt(4000)))

	got, err := s.store.GetStockProduct(s.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Kilos.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "ana", got.LastEditedBy)

	w = s.do(t, http.MethodDelete, "/client-invoices/"+inv.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	cl, err := s.engine.GetClient(s.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, cl.CurrentBalance.Equal(decimal.NewFromInt(1000)))

	w = s.do(t, http.MethodGet, "/invoice-number", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"next_number":1001}`, w.Body.String())
}

func TestSupplierInvoice(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/suppliers", map[string]any{"name": "Frigorífico Sur"})
	require.Equal(t, http.StatusCreated, w.Code)
	supplierID := decodeBody[map[string]any](t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/supplier-invoices", map[string]any{
		"supplier_id": supplierID,
		"items":       []map[string]any{{"detail": "Asado", "quantity": 2, "kilos": 20, "unit_price": 700}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decodeBody[invoice.SupplierInvoice](t, w)

	products, err := s.store.ListStock(s.ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].Kilos.Equal(decimal.NewFromInt(20)))

	w = s.do(t, http.MethodDelete, "/supplier-invoices/"+inv.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	products, err = s.store.ListStock(s.ctx)
	require.NoError(t, err)
	assert.True(t, products[0].Kilos.IsZero())
}

func TestMalformedNumbersAreZeroed(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/stock", map[string]any{"name": "Chorizo", "unit_price": "NaN"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decodeBody[stock.Product](t, w)
	assert.True(t, p.UnitPrice.IsZero())

	w = s.do(t, http.MethodPost, "/stock", map[string]any{"name": "Morcilla", "unit_price": "abc"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decodeBody[stock.Product](t, w).UnitPrice.IsZero())
}

func TestErrorResponses(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		step   string
	}{
		{"empty name", http.MethodPost, "/clients", map[string]any{"name": "  "}, http.StatusBadRequest, ""},
		{"bad id", http.MethodDelete, "/clients/not-an-id", nil, http.StatusBadRequest, ""},
		{"wrong prefix", http.MethodDelete, "/clients/" + newSupplierID(), nil, http.StatusBadRequest, ""},
		{"no client", http.MethodPost, "/client-invoices", map[string]any{"type": "sale"}, http.StatusBadRequest, "validate"},
		{"unknown client", http.MethodPost, "/client-invoices", map[string]any{
			"client_id":    newClientID(),
			"type":         "payment",
			"cash_payment": 100,
		}, http.StatusNotFound, "load"},
		{"unknown collection", http.MethodGet, "/snapshots/coupons", nil, http.StatusNotFound, ""},
		{"unknown period", http.MethodGet, "/reports/series?period=hourly", nil, http.StatusBadRequest, ""},
		{"not json", http.MethodPost, "/suppliers", "just a string", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			body := decodeBody[api.ErrorBody](t, w)
			assert.NotEmpty(t, body.Error)
			assert.NotEmpty(t, body.RequestID)
			assert.Equal(t, tt.step, body.Step)
		})
	}
}

func TestDeleteAbsentIsNoContent(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodDelete, "/stock/"+newStockID(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/clients/"+newClientID()+"?purge=true", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{tally.ValidationError{Field: "name", Message: "required"}, http.StatusBadRequest},
		{tally.ErrClientNotFound, http.StatusNotFound},
		{tally.ErrSequenceConflict, http.StatusConflict},
		{&tally.StoreError{Op: "put", Code: "unavailable", Err: errors.New("reset")}, http.StatusServiceUnavailable},
		{&tally.OperationError{Op: tally.OpCloseClientInvoice, Step: tally.StepBalance, Err: &tally.StoreError{Op: "x"}}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, api.Status(tt.err), tt.err.Error())
	}
}

func TestRequestID(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(api.HeaderRequestID))

	w = s.do(t, http.MethodGet, "/healthz", nil, api.HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(api.HeaderRequestID))
}

func TestReadsComeFromMirror(t *testing.T) {
	s := newServer(t)

	c, err := s.engine.AddClient(s.ctx, "Almacén Ana")
	require.NoError(t, err)
	_, err = s.engine.CloseClientInvoice(s.ctx, invoice.ClientDraft{
		ClientID:    c.ID,
		Date:        time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC),
		Type:        invoice.TypeSale,
		Items:       []invoice.Item{{Detail: "Vacío", Kilos: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)}},
		CashPayment: decimal.Zero,
	})
	require.NoError(t, err)
	require.NoError(t, s.mirror.Sync(s.ctx))

	w := s.do(t, http.MethodGet, "/snapshots/clients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeBody[snapshot.Snapshot[*client.Client]](t, w)
	assert.Equal(t, "clients", snap.Collection)
	require.Len(t, snap.Records, 1)
	assert.True(t, snap.Records[0].CurrentBalance.Equal(decimal.NewFromInt(200)))

	w = s.do(t, http.MethodGet, "/reports/series?period=daily", nil)
	require.Equal(t, http.StatusOK, w.Code)
	series := decodeBody[struct {
		Buckets []struct {
			Label string          `json:"label"`
			Sales decimal.Decimal `json:"sales"`
		} `json:"buckets"`
	}](t, w)
	require.Len(t, series.Buckets, 7)
	assert.Equal(t, "DOM", series.Buckets[5].Label)
	assert.True(t, series.Buckets[5].Sales.Equal(decimal.NewFromInt(200)))

	w = s.do(t, http.MethodGet, "/reports/totals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"debt":"200"`)

	w = s.do(t, http.MethodGet, "/balances/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"drifts":[]}`, w.Body.String())
}

func TestRepairBalance(t *testing.T) {
	s := newServer(t)

	c, err := s.engine.AddClient(s.ctx, "Don José")
	require.NoError(t, err)
	require.NoError(t, s.store.UpdateClientBalance(s.ctx, c.ID, decimal.NewFromInt(50)))

	w := s.do(t, http.MethodPost, "/balances/"+c.ID.String()+"/repair", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"current_balance":"0"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func newClientID() string   { return id.NewClientID().String() }
func newSupplierID() string { return id.NewSupplierID().String() }
func newStockID() string    { return id.NewStockProductID().String() }
