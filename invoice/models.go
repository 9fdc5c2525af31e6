// Package invoice defines client and supplier invoices, their line items
// and the drafts they are closed from.
//
// An invoice only exists once closed: it is persisted with a sequence number
// and never modified afterwards, only deleted.
package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Type distinguishes a sale from a payment-only client invoice.
type Type string

const (
	TypeSale    Type = "sale"
	TypePayment Type = "payment"
)

// Item is one product row. Total is always Kilos × UnitPrice; use Recompute
// rather than setting it.
type Item struct {
	ID        id.ItemID       `json:"id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Detail    string          `json:"detail"`
	Kilos     decimal.Decimal `json:"kilos"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Blank reports whether the row names no product.
func (it Item) Blank() bool {
	return strings.TrimSpace(it.Detail) == ""
}

// ClientInvoice is a closed sale or payment against a client's balance.
type ClientInvoice struct {
	types.Entity
	ID              id.ClientInvoiceID `json:"id"`
	InvoiceNumber   int64              `json:"invoice_number"`
	ClientID        id.ClientID        `json:"client_id"`
	Date            time.Time          `json:"date"`
	Type            Type               `json:"type"`
	Items           []Item             `json:"items"`
	PreviousBalance decimal.Decimal    `json:"previous_balance"`
	InvoiceTotal    decimal.Decimal    `json:"invoice_total"`
	CashPayment     decimal.Decimal    `json:"cash_payment"`
	FinalBalance    decimal.Decimal    `json:"final_balance"`
	Closed          bool               `json:"closed"`
}

// BalanceEffect is the amount the invoice added to the client's balance.
func (inv *ClientInvoice) BalanceEffect() decimal.Decimal {
	return inv.InvoiceTotal.Sub(inv.CashPayment)
}

// SupplierInvoice is a closed purchase. It never touches a balance.
type SupplierInvoice struct {
	types.Entity
	ID            id.SupplierInvoiceID `json:"id"`
	InvoiceNumber int64                `json:"invoice_number"`
	SupplierID    id.SupplierID        `json:"supplier_id"`
	Date          time.Time            `json:"date"`
	Items         []Item               `json:"items"`
	Closed        bool                 `json:"closed"`
}

// Total is the sum of the item totals.
func (inv *SupplierInvoice) Total() decimal.Decimal {
	return Sum(inv.Items)
}

// ClientDraft is an unpersisted client invoice being composed.
type ClientDraft struct {
	ClientID    id.ClientID     `json:"client_id"`
	Date        time.Time       `json:"date"`
	Type        Type            `json:"type"`
	Items       []Item          `json:"items"`
	CashPayment decimal.Decimal `json:"cash_payment"`
}

// SupplierDraft is an unpersisted supplier invoice being composed.
type SupplierDraft struct {
	SupplierID id.SupplierID `json:"supplier_id"`
	Date       time.Time     `json:"date"`
	Items      []Item        `json:"items"`
}

// ListOpts filters invoice listings. Zero values match everything.
type ListOpts struct {
	ClientID   id.ClientID
	SupplierID id.SupplierID
	Start      time.Time
	End        time.Time
	Limit      int
}

// Match reports whether a date falls inside the [Start, End] window.
func (o ListOpts) Match(date time.Time) bool {
	if !o.Start.IsZero() && date.Before(o.Start) {
		return false
	}
	if !o.End.IsZero() && date.After(o.End) {
		return false
	}
	return true
}
