package invoice

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type priceMap map[string]decimal.Decimal

func (p priceMap) UnitPrice(name string) (decimal.Decimal, bool) {
	v, ok := p[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

func TestRecomputeTotals(t *testing.T) {
	tests := []struct {
		name      string
		kilos     string
		unitPrice string
		want      string
	}{
		{"whole", "10", "500", "5000"},
		{"fractional", "1.25", "3200.50", "4000.625"},
		{"zero kilos", "0", "999", "0"},
		{"zero price", "7.5", "0", "0"},
		{"tiny", "0.1", "0.2", "0.02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := Recompute([]Item{{
				Detail:    " Asado ",
				Kilos:     d(tt.kilos),
				UnitPrice: d(tt.unitPrice),
				Total:     d("123456"), // ignored
			}})
			got := items[0]
			if !got.Total.Equal(d(tt.want)) {
				t.Errorf("total = %s, want %s", got.Total, tt.want)
			}
			if got.Detail != "Asado" {
				t.Errorf("detail = %q, want trimmed", got.Detail)
			}
			if got.ID.Prefix() != id.PrefixItem {
				t.Errorf("expected generated item id, got %q", got.ID)
			}
		})
	}
}

func TestRecomputeReissuesRepeatedIDs(t *testing.T) {
	shared := id.NewItemID()
	items := Recompute([]Item{
		{ID: shared, Detail: "Asado", Kilos: d("5"), UnitPrice: d("1000")},
		{ID: shared, Detail: "Asado", Kilos: d("5"), UnitPrice: d("1000")},
		{Detail: "Vacío", Kilos: d("1"), UnitPrice: d("1")},
	})

	if items[0].ID.String() != shared.String() {
		t.Fatalf("first row id = %s, want %s kept", items[0].ID, shared)
	}
	seen := map[string]bool{}
	for _, it := range items {
		if it.ID.IsNil() {
			t.Fatalf("row %q has no id", it.Detail)
		}
		if seen[it.ID.String()] {
			t.Fatalf("id %s repeated", it.ID)
		}
		seen[it.ID.String()] = true
	}
}

func TestCompactDropsBlankRows(t *testing.T) {
	items := Compact([]Item{
		{Detail: "Vacio"},
		{Detail: "   "},
		{Detail: ""},
		{Detail: "Chorizo"},
	})
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}
}

func TestNewClientInvoiceSale(t *testing.T) {
	inv := NewClientInvoice(ClientDraft{
		ClientID: id.NewClientID(),
		Items: []Item{
			{Detail: "Bife", Kilos: d("10"), UnitPrice: d("500")},
			{Detail: ""},
		},
		CashPayment: d("2000"),
	}, 1000, d("1000"))

	if inv.Type != TypeSale {
		t.Errorf("type = %q, want sale", inv.Type)
	}
	if len(inv.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(inv.Items))
	}
	if !inv.InvoiceTotal.Equal(d("5000")) {
		t.Errorf("invoice total = %s", inv.InvoiceTotal)
	}
	if !inv.FinalBalance.Equal(d("4000")) {
		t.Errorf("final balance = %s, want 4000", inv.FinalBalance)
	}
	if !inv.Closed || inv.InvoiceNumber != 1000 {
		t.Errorf("closed=%v number=%d", inv.Closed, inv.InvoiceNumber)
	}
	if inv.Date.IsZero() {
		t.Error("expected default date")
	}
}

func TestNewClientInvoicePayment(t *testing.T) {
	inv := NewClientInvoice(ClientDraft{
		ClientID:    id.NewClientID(),
		Type:        TypePayment,
		Items:       []Item{{Detail: "Ignored", Kilos: d("1"), UnitPrice: d("1")}},
		CashPayment: d("300"),
	}, 1001, d("1000"))

	if len(inv.Items) != 0 || inv.Items == nil {
		t.Errorf("payment invoice must carry an empty item list, got %v", inv.Items)
	}
	if !inv.InvoiceTotal.IsZero() {
		t.Errorf("invoice total = %s, want 0", inv.InvoiceTotal)
	}
	if !inv.FinalBalance.Equal(d("700")) {
		t.Errorf("final balance = %s, want 700", inv.FinalBalance)
	}
	if !inv.BalanceEffect().Equal(d("-300")) {
		t.Errorf("balance effect = %s", inv.BalanceEffect())
	}
}

func TestPrefillPrices(t *testing.T) {
	catalog := priceMap{"asado": d("4500")}
	items := PrefillPrices([]Item{
		{Detail: "ASADO", Kilos: d("2")},
		{Detail: "Asado", Kilos: d("1"), UnitPrice: d("5000")},
		{Detail: "Matambre", Kilos: d("1")},
	}, catalog)

	if !items[0].UnitPrice.Equal(d("4500")) || !items[0].Total.Equal(d("9000")) {
		t.Errorf("row 0 = %s × %s", items[0].UnitPrice, items[0].Total)
	}
	if !items[1].UnitPrice.Equal(d("5000")) {
		t.Errorf("explicit price overwritten: %s", items[1].UnitPrice)
	}
	if !items[2].UnitPrice.IsZero() {
		t.Errorf("unknown product got a price: %s", items[2].UnitPrice)
	}
}

func TestSupplierInvoiceTotal(t *testing.T) {
	inv := NewSupplierInvoice(SupplierDraft{
		SupplierID: id.NewSupplierID(),
		Items: []Item{
			{Detail: "Media res", Kilos: d("100"), UnitPrice: d("3000")},
			{Detail: "Pollo", Kilos: d("20.5"), UnitPrice: d("1800")},
		},
	}, 1002)

	if !inv.Total().Equal(d("336900")) {
		t.Errorf("total = %s, want 336900", inv.Total())
	}
}

func TestListOptsMatch(t *testing.T) {
	inv := NewSupplierInvoice(SupplierDraft{}, 1)
	opts := ListOpts{Start: inv.Date.Add(-1), End: inv.Date.Add(1)}
	if !opts.Match(inv.Date) {
		t.Error("expected date inside window")
	}
	if (ListOpts{Start: inv.Date.Add(1)}).Match(inv.Date) {
		t.Error("expected date before window to be excluded")
	}
}
