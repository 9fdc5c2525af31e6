// Package store defines the unified persistence contract for tally.
//
// A backend keeps five independent collections (clients, suppliers, stock,
// client invoices, supplier invoices) plus the singleton invoice counter.
// Every write is a single-record operation; the counter mutation is the only
// read-modify-write primitive.
package store

import (
	"context"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/supplier"
)

// Store is the unified storage interface for all tally records. The
// per-aggregate interfaces use distinct method names so they embed cleanly.
type Store interface {
	client.Store
	supplier.Store
	stock.Store
	invoice.Store
	sequence.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Collection names shared by every backend and by change notifications.
const (
	CollectionClients          = "clients"
	CollectionSuppliers        = "suppliers"
	CollectionStock            = "stock"
	CollectionClientInvoices   = "clientInvoices"
	CollectionSupplierInvoices = "supplierInvoices"
	CollectionCounters         = "counters"
)

// Collections lists the record collections in a stable order.
func Collections() []string {
	return []string{
		CollectionClients,
		CollectionSuppliers,
		CollectionStock,
		CollectionClientInvoices,
		CollectionSupplierInvoices,
	}
}
