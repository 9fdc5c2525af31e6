package invoice

import (
	"context"

	"github.com/xraph/tally/id"
)

// Store persists closed invoices. Listings are ordered by invoice number.
type Store interface {
	PutClientInvoice(ctx context.Context, inv *ClientInvoice) error
	GetClientInvoice(ctx context.Context, invID id.ClientInvoiceID) (*ClientInvoice, error)
	ListClientInvoices(ctx context.Context, opts ListOpts) ([]*ClientInvoice, error)
	DeleteClientInvoice(ctx context.Context, invID id.ClientInvoiceID) error

	PutSupplierInvoice(ctx context.Context, inv *SupplierInvoice) error
	GetSupplierInvoice(ctx context.Context, invID id.SupplierInvoiceID) (*SupplierInvoice, error)
	ListSupplierInvoices(ctx context.Context, opts ListOpts) ([]*SupplierInvoice, error)
	DeleteSupplierInvoice(ctx context.Context, invID id.SupplierInvoiceID) error
}
