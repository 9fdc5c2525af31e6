package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(detail, qty, kilos, price string) invoice.Item {
	return invoice.Recompute([]invoice.Item{{
		Detail:    detail,
		Quantity:  dec(qty),
		Kilos:     dec(kilos),
		UnitPrice: dec(price),
	}})[0]
}

func seed(t *testing.T, s *memory.Store, name, qty, kilos, price string) *stock.Product {
	t.Helper()
	p := stock.NewProduct(name, dec(price), "seed")
	p.Quantity = dec(qty)
	p.Kilos = dec(kilos)
	require.NoError(t, s.PutStockProduct(context.Background(), p))
	return p
}

func get(t *testing.T, s *memory.Store, p *stock.Product) *stock.Product {
	t.Helper()
	got, err := s.GetStockProduct(context.Background(), p.ID)
	require.NoError(t, err)
	return got
}

func TestApplyDirections(t *testing.T) {
	tests := []struct {
		kind      stock.Kind
		wantKilos string
		wantQty   string
		wantPrice string
	}{
		{stock.Sale, "90", "8", "500"},
		{stock.RevertPurchase, "90", "8", "500"},
		{stock.Purchase, "110", "12", "450"},
		{stock.RevertSale, "110", "12", "500"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s := memory.New()
			p := seed(t, s, "Asado", "10", "100", "500")
			r := stock.NewReconciler(s, nil)

			report, err := r.Apply(context.Background(), id.NewClientInvoiceID(),
				[]invoice.Item{item("asado", "2", "10", "450")}, tt.kind, "ana")
			require.NoError(t, err)
			require.Len(t, report.Outcomes, 1)
			assert.Equal(t, stock.StatusApplied, report.Outcomes[0].Status)

			got := get(t, s, p)
			assert.True(t, got.Kilos.Equal(dec(tt.wantKilos)), "kilos %s", got.Kilos)
			assert.True(t, got.Quantity.Equal(dec(tt.wantQty)), "quantity %s", got.Quantity)
			assert.True(t, got.UnitPrice.Equal(dec(tt.wantPrice)), "price %s", got.UnitPrice)
			assert.Equal(t, "ana", got.LastEditedBy)
			assert.False(t, got.LastEditedAt.IsZero())
		})
	}
}

func TestMatchingIsCaseInsensitiveAndExact(t *testing.T) {
	s := memory.New()
	asado := seed(t, s, "Asado de Tira", "0", "50", "100")
	r := stock.NewReconciler(s, nil)

	report, err := r.Apply(context.Background(), id.NewClientInvoiceID(), []invoice.Item{
		item("  ASADO DE TIRA ", "1", "5", "100"),
		item("Asado", "1", "5", "100"), // partial names never match
	}, stock.Sale, "ana")
	require.NoError(t, err)

	assert.Equal(t, stock.StatusApplied, report.Outcomes[0].Status)
	assert.Equal(t, stock.StatusSkippedUnknown, report.Outcomes[1].Status)
	assert.True(t, get(t, s, asado).Kilos.Equal(dec("45")))
}

func TestSaleOfUnknownProductLeavesStockUnchanged(t *testing.T) {
	s := memory.New()
	seed(t, s, "Vacío", "1", "10", "100")
	r := stock.NewReconciler(s, nil)

	for _, kind := range []stock.Kind{stock.Sale, stock.RevertPurchase} {
		report, err := r.Apply(context.Background(), id.NewClientInvoiceID(),
			[]invoice.Item{item("Matambre", "1", "3", "900")}, kind, "ana")
		require.NoError(t, err)
		assert.Equal(t, stock.StatusSkippedUnknown, report.Outcomes[0].Status)
	}

	all, err := s.ListStock(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Kilos.Equal(dec("10")))
}

func TestPurchaseOfUnknownProductCreatesOneEntry(t *testing.T) {
	s := memory.New()
	r := stock.NewReconciler(s, nil)

	report, err := r.Apply(context.Background(), id.NewSupplierInvoiceID(), []invoice.Item{
		item("Pollo", "3", "6.5", "1800"),
		item("pollo", "1", "1.5", "1900"),
	}, stock.Purchase, "ana")
	require.NoError(t, err)

	assert.Equal(t, stock.StatusCreated, report.Outcomes[0].Status)
	assert.Equal(t, stock.StatusApplied, report.Outcomes[1].Status)

	all, err := s.ListStock(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1, "second row must match the entry created by the first")
	assert.Equal(t, "Pollo", all[0].Name)
	assert.True(t, all[0].Quantity.Equal(dec("4")))
	assert.True(t, all[0].Kilos.Equal(dec("8")))
	assert.True(t, all[0].UnitPrice.Equal(dec("1900")))
}

func TestSingleUnknownPurchaseCreatesExactEntry(t *testing.T) {
	s := memory.New()
	r := stock.NewReconciler(s, nil)

	_, err := r.Apply(context.Background(), id.NewSupplierInvoiceID(),
		[]invoice.Item{item("Bondiola", "2", "4.25", "6100")}, stock.Purchase, "ana")
	require.NoError(t, err)

	all, _ := s.ListStock(context.Background())
	require.Len(t, all, 1)
	assert.True(t, all[0].Quantity.Equal(dec("2")))
	assert.True(t, all[0].Kilos.Equal(dec("4.25")))
	assert.True(t, all[0].UnitPrice.Equal(dec("6100")))
	assert.Equal(t, "ana", all[0].LastEditedBy)
}

func TestBlankItemsAreSkipped(t *testing.T) {
	s := memory.New()
	r := stock.NewReconciler(s, nil)

	report, err := r.Apply(context.Background(), id.NewSupplierInvoiceID(),
		[]invoice.Item{{Detail: "   ", Kilos: dec("5")}}, stock.Purchase, "ana")
	require.NoError(t, err)
	assert.Equal(t, stock.StatusSkippedBlank, report.Outcomes[0].Status)

	all, _ := s.ListStock(context.Background())
	assert.Empty(t, all)
}

func TestApplyIsIdempotentPerInvoice(t *testing.T) {
	s := memory.New()
	p := seed(t, s, "Chorizo", "0", "20", "3000")
	r := stock.NewReconciler(s, nil)

	ref := id.NewClientInvoiceID()
	items := []invoice.Item{item("Chorizo", "1", "2", "3000"), item("Morcilla", "1", "1", "2000")}

	_, err := r.Apply(context.Background(), ref, items, stock.RevertSale, "ana")
	require.NoError(t, err)
	report, err := r.Apply(context.Background(), ref, items, stock.RevertSale, "ana")
	require.NoError(t, err)

	assert.Equal(t, stock.StatusDuplicate, report.Outcomes[0].Status)
	assert.Equal(t, stock.StatusDuplicate, report.Outcomes[1].Status)
	assert.True(t, get(t, s, p).Kilos.Equal(dec("22")))

	all, _ := s.ListStock(context.Background())
	assert.Len(t, all, 2, "retry must not create a second Morcilla entry")
}

func TestUndoRestoresQuantities(t *testing.T) {
	s := memory.New()
	p := seed(t, s, "Bife", "5", "50", "7000")
	r := stock.NewReconciler(s, nil)
	ref := id.NewClientInvoiceID()
	items := []invoice.Item{item("Bife", "1", "4", "7000")}

	done, err := r.Apply(context.Background(), ref, items, stock.Sale, "ana")
	require.NoError(t, err)
	assert.True(t, get(t, s, p).Kilos.Equal(dec("46")))

	undone, err := r.Undo(context.Background(), done, "ana")
	require.NoError(t, err)
	assert.Equal(t, stock.RevertSale, undone.Kind)
	assert.True(t, get(t, s, p).Kilos.Equal(dec("50")))

	// the original movement can run again after an undo
	_, err = r.Apply(context.Background(), ref, items, stock.Sale, "ana")
	require.NoError(t, err)
	assert.True(t, get(t, s, p).Kilos.Equal(dec("46")))
}

type failingStore struct {
	*memory.Store
	failOn string
}

var errDown = errors.New("connection reset")

func (f *failingStore) ApplyMovement(ctx context.Context, m *stock.Movement) (bool, error) {
	p, err := f.GetStockProduct(ctx, m.ProductID)
	if err == nil && p.Name == f.failOn {
		return false, errDown
	}
	return f.Store.ApplyMovement(ctx, m)
}

func TestPartialFailureIsReported(t *testing.T) {
	mem := memory.New()
	a := seed(t, mem, "Asado", "0", "10", "1")
	seed(t, mem, "Vacío", "0", "10", "1")
	c := seed(t, mem, "Entraña", "0", "10", "1")
	r := stock.NewReconciler(&failingStore{Store: mem, failOn: "Vacío"}, nil)

	report, err := r.Apply(context.Background(), id.NewClientInvoiceID(), []invoice.Item{
		item("Asado", "0", "1", "1"),
		item("Vacío", "0", "1", "1"),
		item("Entraña", "0", "1", "1"),
	}, stock.Sale, "ana")

	require.Error(t, err)
	assert.ErrorIs(t, err, errDown)
	require.NotNil(t, report)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "Vacío", report.Failed()[0].Item.Detail)
	assert.Len(t, report.Touched(), 2)
	assert.True(t, get(t, mem, a).Kilos.Equal(dec("9")))
	assert.True(t, get(t, mem, c).Kilos.Equal(dec("9")), "items after a failure still apply")
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	r := stock.NewReconciler(memory.New(), nil)
	_, err := r.Apply(context.Background(), id.NewClientInvoiceID(), nil, stock.Kind("transfer"), "ana")
	assert.Error(t, err)
}
