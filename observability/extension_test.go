package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/observability"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store/memory"
)

func TestMetricsFollowEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := observability.NewPrometheusFactory(reg)
	metrics := observability.NewMetricsExtension(factory)

	ctx := context.Background()
	engine := tally.New(memory.New(), tally.WithPlugin(metrics))
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	c, err := engine.AddClient(ctx, "Don José")
	require.NoError(t, err)
	p, err := engine.AddStockProduct(ctx, "Vacío", decimal.NewFromInt(500))
	require.NoError(t, err)
	p.Kilos = decimal.NewFromInt(50)
	require.NoError(t, engine.Store().PutStockProduct(ctx, p))

	inv, err := engine.CloseClientInvoice(ctx, invoice.ClientDraft{
		ClientID: c.ID,
		Type:     invoice.TypeSale,
		Items: []invoice.Item{
			{Detail: "Vacío", Kilos: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(500)},
			{Detail: "Entraña", Kilos: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(900)},
		},
		CashPayment: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	require.NoError(t, engine.DeleteClientInvoice(ctx, inv.ID))

	_, err = engine.CloseClientInvoice(ctx, invoice.ClientDraft{Type: invoice.TypeSale})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClientCreated.(prometheus.Counter)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StockProductCreated.(prometheus.Counter)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NumbersIssued.(prometheus.Counter)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClientInvoiceClosed.(prometheus.Counter)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClientInvoiceDeleted.(prometheus.Counter)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StockItemsApplied.(prometheus.Counter)), "sale and its revert")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StockItemsSkipped.(prometheus.Counter)), "unknown product twice")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OperationFailures.(prometheus.Counter)))

	count, err := testutil.GatherAndCount(reg, "tally_client_invoice_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	a := f.Counter("tally.client.created")
	b := f.Counter("tally.client.created")
	a.Inc()
	b.Add(2)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.(prometheus.Counter)))

	// a second factory on the same registry shares the collector
	other := observability.NewPrometheusFactory(reg)
	other.Counter("tally.client.created").Inc()
	assert.Equal(t, 4.0, testutil.ToFloat64(a.(prometheus.Counter)))

	f.Histogram("tally.client_invoice.total").Observe(5000)
	count, err := testutil.GatherAndCount(reg, "tally_client_invoice_total", "tally_client_created_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

type fakeFactory struct{ counters map[string]*fakeCounter }

type fakeCounter struct{ n float64 }

func (c *fakeCounter) Inc()          { c.n++ }
func (c *fakeCounter) Add(v float64) { c.n += v }
func (c *fakeCounter) Observe(v float64) {
	c.n += v
}

func (f *fakeFactory) Counter(name string) observability.Counter     { return f.get(name) }
func (f *fakeFactory) Histogram(name string) observability.Histogram { return f.get(name) }

func (f *fakeFactory) get(name string) *fakeCounter {
	if f.counters[name] == nil {
		f.counters[name] = &fakeCounter{}
	}
	return f.counters[name]
}

func TestReconciledOutcomes(t *testing.T) {
	f := &fakeFactory{counters: map[string]*fakeCounter{}}
	m := observability.NewMetricsExtension(f)

	report := &stock.Report{Outcomes: []stock.Outcome{
		{Status: stock.StatusApplied},
		{Status: stock.StatusCreated},
		{Status: stock.StatusSkippedBlank},
		{Status: stock.StatusFailed, Err: errors.New("boom")},
		{Status: stock.StatusDuplicate},
	}}
	require.NoError(t, m.OnStockReconciled(context.Background(), report))

	for _, name := range []string{
		"tally.stock.items.applied",
		"tally.stock.items.created",
		"tally.stock.items.skipped",
		"tally.stock.items.failed",
		"tally.stock.items.duplicate",
	} {
		assert.Equal(t, 1.0, f.counters[name].n, name)
	}
}
