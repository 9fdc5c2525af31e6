// Package storetest is a conformance suite run against every store.Store
// backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/supplier"
)

// Factory returns an empty, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises every store.Store method.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("Clients", func(t *testing.T) { testClients(t, newStore(t)) })
	t.Run("Suppliers", func(t *testing.T) { testSuppliers(t, newStore(t)) })
	t.Run("Stock", func(t *testing.T) { testStock(t, newStore(t)) })
	t.Run("Movements", func(t *testing.T) { testMovements(t, newStore(t)) })
	t.Run("PruneMovements", func(t *testing.T) { testPruneMovements(t, newStore(t)) })
	t.Run("ClientInvoices", func(t *testing.T) { testClientInvoices(t, newStore(t)) })
	t.Run("SupplierInvoices", func(t *testing.T) { testSupplierInvoices(t, newStore(t)) })
	t.Run("Counter", func(t *testing.T) { testCounter(t, newStore(t)) })
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testClients(t *testing.T, s store.Store) {
	ctx := context.Background()

	c := client.New("Carnicería Don José")
	require.NoError(t, s.PutClient(ctx, c))

	got, err := s.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.True(t, got.Active)
	assert.True(t, got.CurrentBalance.IsZero())

	require.NoError(t, s.UpdateClientBalance(ctx, c.ID, dec("1234.56")))
	got, err = s.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(dec("1234.56")), "balance %s", got.CurrentBalance)

	other := client.New("Almacén Ana")
	require.NoError(t, s.PutClient(ctx, other))
	list, err := s.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.DeleteClient(ctx, c.ID))
	_, err = s.GetClient(ctx, c.ID)
	assert.ErrorIs(t, err, tally.ErrClientNotFound)
	assert.ErrorIs(t, s.DeleteClient(ctx, c.ID), tally.ErrClientNotFound)
	assert.ErrorIs(t, s.UpdateClientBalance(ctx, c.ID, decimal.Zero), tally.ErrClientNotFound)
}

func testSuppliers(t *testing.T, s store.Store) {
	ctx := context.Background()

	sup := supplier.New("Frigorífico Sur")
	require.NoError(t, s.PutSupplier(ctx, sup))

	got, err := s.GetSupplier(ctx, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frigorífico Sur", got.Name)

	list, err := s.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteSupplier(ctx, sup.ID))
	_, err = s.GetSupplier(ctx, sup.ID)
	assert.ErrorIs(t, err, tally.ErrSupplierNotFound)
}

func testStock(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := stock.NewProduct("Asado", dec("4500"), "ana")
	require.NoError(t, s.PutStockProduct(ctx, first))
	second := stock.NewProduct("Vacío", dec("5200.50"), "ana")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, s.PutStockProduct(ctx, second))

	list, err := s.ListStock(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "stock lists oldest first")

	got, err := s.GetStockProduct(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.Equal(dec("5200.50")))
	assert.Equal(t, "ana", got.LastEditedBy)

	require.NoError(t, s.DeleteStockProduct(ctx, first.ID))
	_, err = s.GetStockProduct(ctx, first.ID)
	assert.ErrorIs(t, err, tally.ErrStockProductNotFound)
	assert.ErrorIs(t, s.DeleteStockProduct(ctx, first.ID), tally.ErrStockProductNotFound)
}

func testMovements(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := stock.NewProduct("Chorizo", dec("3000"), "system")
	p.Kilos = dec("10")
	p.Quantity = dec("4")
	require.NoError(t, s.PutStockProduct(ctx, p))

	price := dec("3100")
	m := &stock.Movement{
		Key:       "sinv_x/item_y/purchase",
		ProductID: p.ID,
		Quantity:  dec("2"),
		Kilos:     dec("2.5"),
		UnitPrice: &price,
		EditedBy:  "ana",
		EditedAt:  time.Now().UTC(),
	}

	applied, err := s.ApplyMovement(ctx, m)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.ApplyMovement(ctx, m)
	require.NoError(t, err)
	assert.False(t, applied, "same key must apply once")

	got, err := s.GetStockProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Kilos.Equal(dec("12.5")), "kilos %s", got.Kilos)
	assert.True(t, got.Quantity.Equal(dec("6")), "quantity %s", got.Quantity)
	assert.True(t, got.UnitPrice.Equal(price))
	assert.Equal(t, "ana", got.LastEditedBy)
	assert.Contains(t, got.Movements, m.Key)

	sale := &stock.Movement{
		Key:       "cinv_x/item_y/sale",
		ProductID: p.ID,
		Quantity:  dec("-1"),
		Kilos:     dec("-0.5"),
		EditedBy:  "bob",
		EditedAt:  time.Now().UTC(),
	}
	applied, err = s.ApplyMovement(ctx, sale)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err = s.GetStockProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Kilos.Equal(dec("12")), "kilos %s", got.Kilos)
	assert.True(t, got.UnitPrice.Equal(price), "sales never touch the price")

	undo := &stock.Movement{
		Key:       sale.Key,
		ProductID: p.ID,
		Quantity:  dec("1"),
		Kilos:     dec("0.5"),
		EditedBy:  "bob",
		EditedAt:  time.Now().UTC(),
		Undo:      true,
	}
	applied, err = s.ApplyMovement(ctx, undo)
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = s.ApplyMovement(ctx, undo)
	require.NoError(t, err)
	assert.False(t, applied, "undo of an unrecorded movement is refused")

	got, err = s.GetStockProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Kilos.Equal(dec("12.5")), "kilos %s", got.Kilos)
	assert.NotContains(t, got.Movements, sale.Key)

	applied, err = s.ApplyMovement(ctx, sale)
	require.NoError(t, err)
	assert.True(t, applied, "an undone movement can be applied again")

	missing := &stock.Movement{Key: "k", ProductID: id.NewStockProductID(), EditedAt: time.Now().UTC()}
	_, err = s.ApplyMovement(ctx, missing)
	assert.ErrorIs(t, err, tally.ErrStockProductNotFound)
}

func testPruneMovements(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := stock.NewProduct("Asado", dec("1000"), "system")
	b := stock.NewProduct("Vacío", dec("900"), "system")
	require.NoError(t, s.PutStockProduct(ctx, a))
	require.NoError(t, s.PutStockProduct(ctx, b))

	apply := func(p *stock.Product, key string) {
		applied, err := s.ApplyMovement(ctx, &stock.Movement{
			Key: key, ProductID: p.ID, Kilos: dec("-1"), EditedBy: "ana", EditedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		require.True(t, applied)
	}
	apply(a, "cinv_a/item_1/sale")
	apply(a, "cinv_a/item_1/revert_sale")
	apply(b, "cinv_a/item_2/sale")
	apply(b, "cinvxa/item_3/sale")
	apply(b, "cinv_ab/item_4/sale")

	list, err := s.ListStock(ctx)
	require.NoError(t, err)
	for _, p := range list {
		assert.Empty(t, p.Movements, "listing does not load movement keys")
	}

	require.NoError(t, s.PruneMovements(ctx, "cinv_a"))
	require.NoError(t, s.PruneMovements(ctx, "cinv_none"))

	got, err := s.GetStockProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Movements)
	assert.True(t, got.Kilos.Equal(dec("-2")), "pruning leaves amounts alone")

	got, err = s.GetStockProduct(ctx, b.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cinvxa/item_3/sale", "cinv_ab/item_4/sale"}, got.Movements)
}

func testClientInvoices(t *testing.T, s store.Store) {
	ctx := context.Background()

	c1, c2 := id.NewClientID(), id.NewClientID()
	for i, cid := range []id.ClientID{c1, c2, c1} {
		inv := invoice.NewClientInvoice(invoice.ClientDraft{
			ClientID:    cid,
			Items:       []invoice.Item{{Detail: "Bife", Kilos: dec("1.5"), UnitPrice: dec("100")}},
			CashPayment: dec("50"),
		}, int64(1002-i), dec("10"))
		require.NoError(t, s.PutClientInvoice(ctx, inv))
	}

	all, err := s.ListClientInvoices(ctx, invoice.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1000), all[0].InvoiceNumber)
	assert.Equal(t, int64(1002), all[2].InvoiceNumber)

	mine, err := s.ListClientInvoices(ctx, invoice.ListOpts{ClientID: c1})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	got, err := s.GetClientInvoice(ctx, all[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Closed)
	assert.Equal(t, invoice.TypeSale, got.Type)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Total.Equal(dec("150")))
	assert.True(t, got.InvoiceTotal.Equal(dec("150")))
	assert.True(t, got.FinalBalance.Equal(dec("110")))

	require.NoError(t, s.DeleteClientInvoice(ctx, got.ID))
	_, err = s.GetClientInvoice(ctx, got.ID)
	assert.ErrorIs(t, err, tally.ErrClientInvoiceNotFound)
	assert.ErrorIs(t, s.DeleteClientInvoice(ctx, got.ID), tally.ErrClientInvoiceNotFound)
}

func testSupplierInvoices(t *testing.T, s store.Store) {
	ctx := context.Background()

	sid := id.NewSupplierID()
	inv := invoice.NewSupplierInvoice(invoice.SupplierDraft{
		SupplierID: sid,
		Items:      []invoice.Item{{Detail: "Media res", Quantity: dec("1"), Kilos: dec("110"), UnitPrice: dec("2800")}},
	}, 1005)
	require.NoError(t, s.PutSupplierInvoice(ctx, inv))

	list, err := s.ListSupplierInvoices(ctx, invoice.ListOpts{SupplierID: sid})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Total().Equal(dec("308000")))

	none, err := s.ListSupplierInvoices(ctx, invoice.ListOpts{SupplierID: id.NewSupplierID()})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteSupplierInvoice(ctx, inv.ID))
	_, err = s.GetSupplierInvoice(ctx, inv.ID)
	assert.ErrorIs(t, err, tally.ErrSupplierInvoiceNotFound)
}

func testCounter(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetCounter(ctx, sequence.Invoices)
	assert.ErrorIs(t, err, sequence.ErrCounterNotFound)

	gen := sequence.NewGenerator(s)
	for want := int64(1000); want < 1005; want++ {
		got, err := gen.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	c, err := s.GetCounter(ctx, sequence.Invoices)
	require.NoError(t, err)
	assert.Equal(t, int64(1005), c.NextNumber)

	sentinel := assert.AnError
	err = s.MutateCounter(ctx, sequence.Invoices, func(*sequence.Counter) (*sequence.Counter, error) {
		return nil, sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	c, err = s.GetCounter(ctx, sequence.Invoices)
	require.NoError(t, err)
	assert.Equal(t, int64(1005), c.NextNumber, "failed mutation must not write")
}
