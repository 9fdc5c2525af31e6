package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// PriceLookup resolves a catalog unit price by product name.
type PriceLookup interface {
	UnitPrice(name string) (decimal.Decimal, bool)
}

// Compact drops rows that name no product.
func Compact(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Blank() {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Recompute returns a copy of items with trimmed names, assigned ids and
// Total = Kilos × UnitPrice on every row. Ids are unique within the result:
// a row repeating an earlier row's id gets a fresh one.
func Recompute(items []Item) []Item {
	out := make([]Item, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		it.Detail = strings.TrimSpace(it.Detail)
		if _, dup := seen[it.ID.String()]; dup || it.ID.IsNil() {
			it.ID = id.NewItemID()
		}
		seen[it.ID.String()] = struct{}{}
		it.Total = it.Kilos.Mul(it.UnitPrice)
		out[i] = it
	}
	return out
}

// Sum adds the item totals.
func Sum(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Total)
	}
	return total
}

// PrefillPrices fills a zero unit price from the catalog and recomputes the
// totals. Rows with an explicit price keep it.
func PrefillPrices(items []Item, catalog PriceLookup) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		if it.UnitPrice.IsZero() {
			if price, ok := catalog.UnitPrice(it.Detail); ok {
				it.UnitPrice = price
			}
		}
		out[i] = it
	}
	return Recompute(out)
}

// NewClientInvoice closes a draft against the client's balance at call
// time. Payment invoices carry no items and a zero total.
func NewClientInvoice(d ClientDraft, number int64, previousBalance decimal.Decimal) *ClientInvoice {
	items := Recompute(Compact(d.Items))
	if d.Type == TypePayment {
		items = []Item{}
	}
	total := Sum(items)

	return &ClientInvoice{
		Entity:          types.NewEntity(),
		ID:              id.NewClientInvoiceID(),
		InvoiceNumber:   number,
		ClientID:        d.ClientID,
		Date:            dateOrNow(d.Date),
		Type:            typeOrSale(d.Type),
		Items:           items,
		PreviousBalance: previousBalance,
		InvoiceTotal:    total,
		CashPayment:     d.CashPayment,
		FinalBalance:    previousBalance.Add(total).Sub(d.CashPayment),
		Closed:          true,
	}
}

// NewSupplierInvoice closes a supplier draft.
func NewSupplierInvoice(d SupplierDraft, number int64) *SupplierInvoice {
	return &SupplierInvoice{
		Entity:        types.NewEntity(),
		ID:            id.NewSupplierInvoiceID(),
		InvoiceNumber: number,
		SupplierID:    d.SupplierID,
		Date:          dateOrNow(d.Date),
		Items:         Recompute(Compact(d.Items)),
		Closed:        true,
	}
}

func dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func typeOrSale(t Type) Type {
	if t == "" {
		return TypeSale
	}
	return t
}
