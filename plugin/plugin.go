// Package plugin provides the hook system of the tally engine. A plugin
// implements Plugin plus any of the On* interfaces it cares about; the
// registry discovers them on registration.
package plugin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/supplier"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *tally.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Directory hooks
// ──────────────────────────────────────────────────

type OnClientCreated interface {
	Plugin
	OnClientCreated(ctx context.Context, c *client.Client) error
}

type OnClientDeleted interface {
	Plugin
	OnClientDeleted(ctx context.Context, clientID id.ClientID) error
}

type OnSupplierCreated interface {
	Plugin
	OnSupplierCreated(ctx context.Context, s *supplier.Supplier) error
}

type OnSupplierDeleted interface {
	Plugin
	OnSupplierDeleted(ctx context.Context, supplierID id.SupplierID) error
}

type OnStockProductCreated interface {
	Plugin
	OnStockProductCreated(ctx context.Context, p *stock.Product) error
}

type OnStockProductDeleted interface {
	Plugin
	OnStockProductDeleted(ctx context.Context, productID id.StockProductID) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnNumberIssued is called once per invoice number taken from the counter,
// including numbers whose invoice later failed to persist.
type OnNumberIssued interface {
	Plugin
	OnNumberIssued(ctx context.Context, number int64) error
}

// OnStockReconciled is called after every stock reconciliation, partial or
// complete.
type OnStockReconciled interface {
	Plugin
	OnStockReconciled(ctx context.Context, report *stock.Report) error
}

// OnBalanceChanged is called after a client's balance is written.
type OnBalanceChanged interface {
	Plugin
	OnBalanceChanged(ctx context.Context, clientID id.ClientID, previous, current decimal.Decimal) error
}

type OnClientInvoiceClosed interface {
	Plugin
	OnClientInvoiceClosed(ctx context.Context, inv *invoice.ClientInvoice) error
}

type OnClientInvoiceDeleted interface {
	Plugin
	OnClientInvoiceDeleted(ctx context.Context, inv *invoice.ClientInvoice) error
}

type OnSupplierInvoiceClosed interface {
	Plugin
	OnSupplierInvoiceClosed(ctx context.Context, inv *invoice.SupplierInvoice) error
}

type OnSupplierInvoiceDeleted interface {
	Plugin
	OnSupplierInvoiceDeleted(ctx context.Context, inv *invoice.SupplierInvoice) error
}

// OnOperationFailed is called when an engine operation aborts. step is the
// pipeline step that failed, empty for single-step operations.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op, step string, err error) error
}
