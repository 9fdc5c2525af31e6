package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/tally/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
		prefix  string
	}{
		{"ClientID", id.NewClientID, id.ParseClientID, "cli_"},
		{"SupplierID", id.NewSupplierID, id.ParseSupplierID, "sup_"},
		{"StockProductID", id.NewStockProductID, id.ParseStockProductID, "stk_"},
		{"ClientInvoiceID", id.NewClientInvoiceID, id.ParseClientInvoiceID, "cinv_"},
		{"SupplierInvoiceID", id.NewSupplierInvoiceID, id.ParseSupplierInvoiceID, "sinv_"},
		{"ItemID", id.NewItemID, id.ParseItemID, "item_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			if !strings.HasPrefix(original.String(), tt.prefix) {
				t.Fatalf("expected prefix %q, got %q", tt.prefix, original.String())
			}
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestCrossKindRejection(t *testing.T) {
	if _, err := id.ParseClientID(id.NewSupplierID().String()); err == nil {
		t.Error("expected client parser to reject a supplier id")
	}
	if _, err := id.ParseStockProductID(id.NewItemID().String()); err == nil {
		t.Error("expected stock parser to reject an item id")
	}
}

func TestNil(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("expected NULL value, got %v (%v)", v, err)
	}
}

func TestScan(t *testing.T) {
	original := id.NewClientID()

	tests := []struct {
		name    string
		src     any
		want    id.ID
		wantErr bool
	}{
		{"string", original.String(), original, false},
		{"bytes", []byte(original.String()), original, false},
		{"nil", nil, id.Nil, false},
		{"empty", "", id.Nil, false},
		{"int", 42, id.Nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got id.ID
			err := got.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Scan = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}
