package tally

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/supplier"
	"github.com/xraph/tally/watch"
)

// ──────────────────────────────────────────────────
// Clients
// ──────────────────────────────────────────────────

// AddClient creates an active client with a zero balance.
func (e *Engine) AddClient(ctx context.Context, name string) (*client.Client, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}

	c := client.New(name)
	if err := e.store.PutClient(ctx, c); err != nil {
		return nil, storeFailure("put client", err)
	}

	e.notify(ctx, store.CollectionClients, c.ID.String(), watch.OpPut)
	e.plugins.EmitClientCreated(ctx, c)
	e.logger.Info("client added", "client_id", c.ID.String(), "name", c.Name)

	return c, nil
}

// DeleteClient removes a client. Its invoices stay in place; use
// PurgeClient to reverse and remove them too. Deleting an absent client
// succeeds.
func (e *Engine) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	err := e.store.DeleteClient(ctx, clientID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return storeFailure("delete client", err)
	}

	e.notify(ctx, store.CollectionClients, clientID.String(), watch.OpDelete)
	e.plugins.EmitClientDeleted(ctx, clientID)
	e.logger.Info("client deleted", "client_id", clientID.String())

	return nil
}

// PurgeClient deletes every invoice of the client through the regular
// delete pipeline, then the client itself. It keeps going past failed
// invoices and reports all of them; the client is only removed when every
// invoice went.
func (e *Engine) PurgeClient(ctx context.Context, clientID id.ClientID) error {
	invoices, err := e.store.ListClientInvoices(ctx, invoice.ListOpts{ClientID: clientID})
	if err != nil {
		return storeFailure("list client invoices", err)
	}

	var errs MultiError
	for _, inv := range invoices {
		errs.Add(e.DeleteClientInvoice(ctx, inv.ID))
	}
	if errs.HasErrors() {
		return errs
	}

	return e.DeleteClient(ctx, clientID)
}

// GetClient returns a client.
func (e *Engine) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	return e.store.GetClient(ctx, clientID)
}

// ListClients returns every client.
func (e *Engine) ListClients(ctx context.Context) ([]*client.Client, error) {
	return e.store.ListClients(ctx)
}

// ──────────────────────────────────────────────────
// Suppliers
// ──────────────────────────────────────────────────

// AddSupplier creates a supplier.
func (e *Engine) AddSupplier(ctx context.Context, name string) (*supplier.Supplier, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}

	s := supplier.New(name)
	if err := e.store.PutSupplier(ctx, s); err != nil {
		return nil, storeFailure("put supplier", err)
	}

	e.notify(ctx, store.CollectionSuppliers, s.ID.String(), watch.OpPut)
	e.plugins.EmitSupplierCreated(ctx, s)
	e.logger.Info("supplier added", "supplier_id", s.ID.String(), "name", s.Name)

	return s, nil
}

// DeleteSupplier removes a supplier. Deleting an absent supplier succeeds.
func (e *Engine) DeleteSupplier(ctx context.Context, supplierID id.SupplierID) error {
	err := e.store.DeleteSupplier(ctx, supplierID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return storeFailure("delete supplier", err)
	}

	e.notify(ctx, store.CollectionSuppliers, supplierID.String(), watch.OpDelete)
	e.plugins.EmitSupplierDeleted(ctx, supplierID)
	e.logger.Info("supplier deleted", "supplier_id", supplierID.String())

	return nil
}

// PurgeSupplier deletes every invoice of the supplier, taking their items
// back out of stock, then the supplier itself.
func (e *Engine) PurgeSupplier(ctx context.Context, supplierID id.SupplierID) error {
	invoices, err := e.store.ListSupplierInvoices(ctx, invoice.ListOpts{SupplierID: supplierID})
	if err != nil {
		return storeFailure("list supplier invoices", err)
	}

	var errs MultiError
	for _, inv := range invoices {
		errs.Add(e.DeleteSupplierInvoice(ctx, inv.ID))
	}
	if errs.HasErrors() {
		return errs
	}

	return e.DeleteSupplier(ctx, supplierID)
}

// ListSuppliers returns every supplier.
func (e *Engine) ListSuppliers(ctx context.Context) ([]*supplier.Supplier, error) {
	return e.store.ListSuppliers(ctx)
}

// ──────────────────────────────────────────────────
// Stock
// ──────────────────────────────────────────────────

// AddStockProduct creates an empty stock entry. A name that matches an
// existing entry once trimmed and lowercased is rejected with
// ErrDuplicateProduct.
func (e *Engine) AddStockProduct(ctx context.Context, name string, unitPrice decimal.Decimal) (*stock.Product, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	if unitPrice.IsNegative() {
		return nil, ValidationError{Field: "unit_price", Message: "Price cannot be negative."}
	}

	existing, err := e.store.ListStock(ctx)
	if err != nil {
		return nil, storeFailure("list stock", err)
	}
	if _, taken := stock.NewIndex(existing).Lookup(name); taken {
		return nil, ValidationError{
			Field:   "name",
			Message: "A product named " + name + " already exists.",
			Err:     ErrDuplicateProduct,
		}
	}

	p := stock.NewProduct(name, unitPrice, EditorFrom(ctx))
	if err := e.store.PutStockProduct(ctx, p); err != nil {
		return nil, storeFailure("put stock product", err)
	}

	e.notify(ctx, store.CollectionStock, p.ID.String(), watch.OpPut)
	e.plugins.EmitStockProductCreated(ctx, p)
	e.logger.Info("stock product added",
		"product_id", p.ID.String(),
		"name", p.Name,
		"unit_price", p.UnitPrice.String(),
	)

	return p, nil
}

// DeleteStockProduct removes a stock entry. Deleting an absent entry
// succeeds.
func (e *Engine) DeleteStockProduct(ctx context.Context, productID id.StockProductID) error {
	err := e.store.DeleteStockProduct(ctx, productID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return storeFailure("delete stock product", err)
	}

	e.notify(ctx, store.CollectionStock, productID.String(), watch.OpDelete)
	e.plugins.EmitStockProductDeleted(ctx, productID)
	e.logger.Info("stock product deleted", "product_id", productID.String())

	return nil
}

// ListStock returns every stock entry in creation order.
func (e *Engine) ListStock(ctx context.Context) ([]*stock.Product, error) {
	return e.store.ListStock(ctx)
}

// Catalog returns a name index over the current stock, usable with
// invoice.PrefillPrices.
func (e *Engine) Catalog(ctx context.Context) (*stock.Index, error) {
	products, err := e.store.ListStock(ctx)
	if err != nil {
		return nil, storeFailure("list stock", err)
	}
	return stock.NewIndex(products), nil
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

// ListClientInvoices returns closed client invoices ordered by number.
func (e *Engine) ListClientInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.ClientInvoice, error) {
	return e.store.ListClientInvoices(ctx, opts)
}

// ListSupplierInvoices returns closed supplier invoices ordered by number.
func (e *Engine) ListSupplierInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.SupplierInvoice, error) {
	return e.store.ListSupplierInvoices(ctx, opts)
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ValidationError{Field: "name", Message: "A name is required."}
	}
	return name, nil
}
