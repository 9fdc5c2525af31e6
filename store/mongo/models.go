package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/sanitize"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/supplier"
	"github.com/xraph/tally/types"
)

// Amounts are stored as Decimal128 so $inc stays exact.

func toDec(d decimal.Decimal) bson.Decimal128 {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.NewDecimal128(0, 0)
	}
	return v
}

// fromDec reads a stored amount through the sanitizer, so a NaN or Infinity
// written by another client comes back as zero.
func fromDec(v bson.Decimal128) decimal.Decimal {
	return sanitize.Decimal(v.String())
}

func parseID(s string) id.ID {
	parsed, err := id.Parse(s)
	if err != nil {
		return id.Nil
	}
	return parsed
}

// ==================== Client models ====================

type clientModel struct {
	ID             string          `bson:"_id"`
	Name           string          `bson:"name"`
	Active         bool            `bson:"active"`
	CurrentBalance bson.Decimal128 `bson:"current_balance"`
	CreatedAt      time.Time       `bson:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at"`
}

func toClientModel(c *client.Client) *clientModel {
	return &clientModel{
		ID:             c.ID.String(),
		Name:           c.Name,
		Active:         c.Active,
		CurrentBalance: toDec(c.CurrentBalance),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func fromClientModel(m *clientModel) *client.Client {
	return &client.Client{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             parseID(m.ID),
		Name:           m.Name,
		Active:         m.Active,
		CurrentBalance: fromDec(m.CurrentBalance),
	}
}

// ==================== Supplier models ====================

type supplierModel struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toSupplierModel(s *supplier.Supplier) *supplierModel {
	return &supplierModel{
		ID:        s.ID.String(),
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSupplierModel(m *supplierModel) *supplier.Supplier {
	return &supplier.Supplier{
		Entity: types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:     parseID(m.ID),
		Name:   m.Name,
	}
}

// ==================== Stock models ====================

type productModel struct {
	ID           string          `bson:"_id"`
	Name         string          `bson:"name"`
	Quantity     bson.Decimal128 `bson:"quantity"`
	Kilos        bson.Decimal128 `bson:"kilos"`
	UnitPrice    bson.Decimal128 `bson:"unit_price"`
	LastEditedBy string          `bson:"last_edited_by"`
	LastEditedAt time.Time       `bson:"last_edited_at"`
	Movements    []string        `bson:"movements"`
	CreatedAt    time.Time       `bson:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at"`
}

func toProductModel(p *stock.Product) *productModel {
	movements := p.Movements
	if movements == nil {
		movements = []string{}
	}
	return &productModel{
		ID:           p.ID.String(),
		Name:         p.Name,
		Quantity:     toDec(p.Quantity),
		Kilos:        toDec(p.Kilos),
		UnitPrice:    toDec(p.UnitPrice),
		LastEditedBy: p.LastEditedBy,
		LastEditedAt: p.LastEditedAt,
		Movements:    movements,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) *stock.Product {
	return &stock.Product{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           parseID(m.ID),
		Name:         m.Name,
		Quantity:     fromDec(m.Quantity),
		Kilos:        fromDec(m.Kilos),
		UnitPrice:    fromDec(m.UnitPrice),
		LastEditedBy: m.LastEditedBy,
		LastEditedAt: m.LastEditedAt,
		Movements:    m.Movements,
	}
}

// ==================== Invoice models ====================

type itemModel struct {
	ID        string          `bson:"id"`
	Quantity  bson.Decimal128 `bson:"quantity"`
	Detail    string          `bson:"detail"`
	Kilos     bson.Decimal128 `bson:"kilos"`
	UnitPrice bson.Decimal128 `bson:"unit_price"`
	Total     bson.Decimal128 `bson:"total"`
}

func toItemModels(items []invoice.Item) []itemModel {
	out := make([]itemModel, len(items))
	for i, it := range items {
		out[i] = itemModel{
			ID:        it.ID.String(),
			Quantity:  toDec(it.Quantity),
			Detail:    it.Detail,
			Kilos:     toDec(it.Kilos),
			UnitPrice: toDec(it.UnitPrice),
			Total:     toDec(it.Total),
		}
	}
	return out
}

func fromItemModels(models []itemModel) []invoice.Item {
	out := make([]invoice.Item, len(models))
	for i, m := range models {
		out[i] = invoice.Item{
			ID:        parseID(m.ID),
			Quantity:  fromDec(m.Quantity),
			Detail:    m.Detail,
			Kilos:     fromDec(m.Kilos),
			UnitPrice: fromDec(m.UnitPrice),
			Total:     fromDec(m.Total),
		}
	}
	return out
}

type clientInvoiceModel struct {
	ID              string          `bson:"_id"`
	InvoiceNumber   int64           `bson:"invoice_number"`
	ClientID        string          `bson:"client_id"`
	Date            time.Time       `bson:"date"`
	Type            string          `bson:"type"`
	Items           []itemModel     `bson:"items"`
	PreviousBalance bson.Decimal128 `bson:"previous_balance"`
	InvoiceTotal    bson.Decimal128 `bson:"invoice_total"`
	CashPayment     bson.Decimal128 `bson:"cash_payment"`
	FinalBalance    bson.Decimal128 `bson:"final_balance"`
	Closed          bool            `bson:"closed"`
	CreatedAt       time.Time       `bson:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at"`
}

func toClientInvoiceModel(inv *invoice.ClientInvoice) *clientInvoiceModel {
	return &clientInvoiceModel{
		ID:              inv.ID.String(),
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID.String(),
		Date:            inv.Date,
		Type:            string(inv.Type),
		Items:           toItemModels(inv.Items),
		PreviousBalance: toDec(inv.PreviousBalance),
		InvoiceTotal:    toDec(inv.InvoiceTotal),
		CashPayment:     toDec(inv.CashPayment),
		FinalBalance:    toDec(inv.FinalBalance),
		Closed:          inv.Closed,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
}

func fromClientInvoiceModel(m *clientInvoiceModel) *invoice.ClientInvoice {
	return &invoice.ClientInvoice{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              parseID(m.ID),
		InvoiceNumber:   m.InvoiceNumber,
		ClientID:        parseID(m.ClientID),
		Date:            m.Date,
		Type:            invoice.Type(m.Type),
		Items:           fromItemModels(m.Items),
		PreviousBalance: fromDec(m.PreviousBalance),
		InvoiceTotal:    fromDec(m.InvoiceTotal),
		CashPayment:     fromDec(m.CashPayment),
		FinalBalance:    fromDec(m.FinalBalance),
		Closed:          m.Closed,
	}
}

type supplierInvoiceModel struct {
	ID            string      `bson:"_id"`
	InvoiceNumber int64       `bson:"invoice_number"`
	SupplierID    string      `bson:"supplier_id"`
	Date          time.Time   `bson:"date"`
	Items         []itemModel `bson:"items"`
	Closed        bool        `bson:"closed"`
	CreatedAt     time.Time   `bson:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at"`
}

func toSupplierInvoiceModel(inv *invoice.SupplierInvoice) *supplierInvoiceModel {
	return &supplierInvoiceModel{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		SupplierID:    inv.SupplierID.String(),
		Date:          inv.Date,
		Items:         toItemModels(inv.Items),
		Closed:        inv.Closed,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func fromSupplierInvoiceModel(m *supplierInvoiceModel) *invoice.SupplierInvoice {
	return &invoice.SupplierInvoice{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            parseID(m.ID),
		InvoiceNumber: m.InvoiceNumber,
		SupplierID:    parseID(m.SupplierID),
		Date:          m.Date,
		Items:         fromItemModels(m.Items),
		Closed:        m.Closed,
	}
}

// ==================== Counter models ====================

type counterModel struct {
	Name       string    `bson:"_id"`
	NextNumber int64     `bson:"next_number"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func fromCounterModel(m *counterModel) *sequence.Counter {
	return &sequence.Counter{Name: m.Name, NextNumber: m.NextNumber, UpdatedAt: m.UpdatedAt}
}
