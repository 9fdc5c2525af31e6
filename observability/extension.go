// Package observability provides a metrics plugin for tally that records
// lifecycle event counts and invoice amounts through a MetricFactory.
package observability

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/supplier"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                   = (*MetricsExtension)(nil)
	_ plugin.OnInit                   = (*MetricsExtension)(nil)
	_ plugin.OnClientCreated          = (*MetricsExtension)(nil)
	_ plugin.OnClientDeleted          = (*MetricsExtension)(nil)
	_ plugin.OnSupplierCreated        = (*MetricsExtension)(nil)
	_ plugin.OnSupplierDeleted        = (*MetricsExtension)(nil)
	_ plugin.OnStockProductCreated    = (*MetricsExtension)(nil)
	_ plugin.OnStockProductDeleted    = (*MetricsExtension)(nil)
	_ plugin.OnNumberIssued           = (*MetricsExtension)(nil)
	_ plugin.OnStockReconciled        = (*MetricsExtension)(nil)
	_ plugin.OnBalanceChanged         = (*MetricsExtension)(nil)
	_ plugin.OnClientInvoiceClosed    = (*MetricsExtension)(nil)
	_ plugin.OnClientInvoiceDeleted   = (*MetricsExtension)(nil)
	_ plugin.OnSupplierInvoiceClosed  = (*MetricsExtension)(nil)
	_ plugin.OnSupplierInvoiceDeleted = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine lifecycle metrics.
// Register it as a tally plugin to track invoicing and stock activity.
type MetricsExtension struct {
	factory MetricFactory

	// Directory metrics
	ClientCreated       Counter
	ClientDeleted       Counter
	SupplierCreated     Counter
	SupplierDeleted     Counter
	StockProductCreated Counter
	StockProductDeleted Counter

	// Sequence metrics
	NumbersIssued Counter

	// Invoice metrics
	ClientInvoiceClosed    Counter
	ClientInvoiceDeleted   Counter
	SupplierInvoiceClosed  Counter
	SupplierInvoiceDeleted Counter
	SaleTotal              Histogram
	CashPayment            Histogram
	PurchaseTotal          Histogram

	// Stock metrics
	StockItemsApplied  Counter
	StockItemsCreated  Counter
	StockItemsSkipped  Counter
	StockItemsFailed   Counter
	StockItemsRepeated Counter

	// Balance metrics
	BalanceChanges Counter

	// Error metrics
	OperationFailures Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ClientCreated:       factory.Counter("tally.client.created"),
		ClientDeleted:       factory.Counter("tally.client.deleted"),
		SupplierCreated:     factory.Counter("tally.supplier.created"),
		SupplierDeleted:     factory.Counter("tally.supplier.deleted"),
		StockProductCreated: factory.Counter("tally.stock.product.created"),
		StockProductDeleted: factory.Counter("tally.stock.product.deleted"),

		NumbersIssued: factory.Counter("tally.sequence.issued"),

		ClientInvoiceClosed:    factory.Counter("tally.client_invoice.closed"),
		ClientInvoiceDeleted:   factory.Counter("tally.client_invoice.deleted"),
		SupplierInvoiceClosed:  factory.Counter("tally.supplier_invoice.closed"),
		SupplierInvoiceDeleted: factory.Counter("tally.supplier_invoice.deleted"),
		SaleTotal:              factory.Histogram("tally.client_invoice.total"),
		CashPayment:            factory.Histogram("tally.client_invoice.cash_payment"),
		PurchaseTotal:          factory.Histogram("tally.supplier_invoice.total"),

		StockItemsApplied:  factory.Counter("tally.stock.items.applied"),
		StockItemsCreated:  factory.Counter("tally.stock.items.created"),
		StockItemsSkipped:  factory.Counter("tally.stock.items.skipped"),
		StockItemsFailed:   factory.Counter("tally.stock.items.failed"),
		StockItemsRepeated: factory.Counter("tally.stock.items.duplicate"),

		BalanceChanges: factory.Counter("tally.balance.changes"),

		OperationFailures: factory.Counter("tally.operation.failures"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Directory hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnClientCreated(_ context.Context, _ *client.Client) error {
	m.ClientCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnClientDeleted(_ context.Context, _ id.ClientID) error {
	m.ClientDeleted.Inc()
	return nil
}

func (m *MetricsExtension) OnSupplierCreated(_ context.Context, _ *supplier.Supplier) error {
	m.SupplierCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnSupplierDeleted(_ context.Context, _ id.SupplierID) error {
	m.SupplierDeleted.Inc()
	return nil
}

func (m *MetricsExtension) OnStockProductCreated(_ context.Context, _ *stock.Product) error {
	m.StockProductCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnStockProductDeleted(_ context.Context, _ id.StockProductID) error {
	m.StockProductDeleted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnNumberIssued implements plugin.OnNumberIssued.
func (m *MetricsExtension) OnNumberIssued(_ context.Context, _ int64) error {
	m.NumbersIssued.Inc()
	return nil
}

// OnStockReconciled counts item outcomes by status.
func (m *MetricsExtension) OnStockReconciled(_ context.Context, report *stock.Report) error {
	for _, o := range report.Outcomes {
		switch o.Status {
		case stock.StatusApplied:
			m.StockItemsApplied.Inc()
		case stock.StatusCreated:
			m.StockItemsCreated.Inc()
		case stock.StatusSkippedBlank, stock.StatusSkippedUnknown:
			m.StockItemsSkipped.Inc()
		case stock.StatusFailed:
			m.StockItemsFailed.Inc()
		case stock.StatusDuplicate:
			m.StockItemsRepeated.Inc()
		}
	}
	return nil
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (m *MetricsExtension) OnBalanceChanged(_ context.Context, _ id.ClientID, _, _ decimal.Decimal) error {
	m.BalanceChanges.Inc()
	return nil
}

// OnClientInvoiceClosed implements plugin.OnClientInvoiceClosed.
func (m *MetricsExtension) OnClientInvoiceClosed(_ context.Context, inv *invoice.ClientInvoice) error {
	m.ClientInvoiceClosed.Inc()
	if inv.Type == invoice.TypeSale {
		m.SaleTotal.Observe(inv.InvoiceTotal.InexactFloat64())
	}
	if inv.CashPayment.IsPositive() {
		m.CashPayment.Observe(inv.CashPayment.InexactFloat64())
	}
	return nil
}

// OnClientInvoiceDeleted implements plugin.OnClientInvoiceDeleted.
func (m *MetricsExtension) OnClientInvoiceDeleted(_ context.Context, _ *invoice.ClientInvoice) error {
	m.ClientInvoiceDeleted.Inc()
	return nil
}

// OnSupplierInvoiceClosed implements plugin.OnSupplierInvoiceClosed.
func (m *MetricsExtension) OnSupplierInvoiceClosed(_ context.Context, inv *invoice.SupplierInvoice) error {
	m.SupplierInvoiceClosed.Inc()
	m.PurchaseTotal.Observe(inv.Total().InexactFloat64())
	return nil
}

// OnSupplierInvoiceDeleted implements plugin.OnSupplierInvoiceDeleted.
func (m *MetricsExtension) OnSupplierInvoiceDeleted(_ context.Context, _ *invoice.SupplierInvoice) error {
	m.SupplierInvoiceDeleted.Inc()
	return nil
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _, _ string, _ error) error {
	m.OperationFailures.Inc()
	return nil
}
