package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/supplier"
	"github.com/xraph/tally/types"
)

func parseID(s string) id.ID {
	parsed, err := id.Parse(s)
	if err != nil {
		return id.Nil
	}
	return parsed
}

// ==================== Client models ====================

type clientRow struct {
	ID             string          `gorm:"primaryKey;type:text"`
	Name           string          `gorm:"type:text;not null"`
	Active         bool            `gorm:"not null"`
	CurrentBalance decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	CreatedAt      time.Time       `gorm:"autoCreateTime:false;index"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime:false"`
}

func (clientRow) TableName() string { return "clients" }

func toClientRow(c *client.Client) *clientRow {
	return &clientRow{
		ID:             c.ID.String(),
		Name:           c.Name,
		Active:         c.Active,
		CurrentBalance: c.CurrentBalance,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (r *clientRow) toClient() *client.Client {
	return &client.Client{
		Entity:         types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:             parseID(r.ID),
		Name:           r.Name,
		Active:         r.Active,
		CurrentBalance: r.CurrentBalance,
	}
}

// ==================== Supplier models ====================

type supplierRow struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Name      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (supplierRow) TableName() string { return "suppliers" }

func toSupplierRow(s *supplier.Supplier) *supplierRow {
	return &supplierRow{ID: s.ID.String(), Name: s.Name, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func (r *supplierRow) toSupplier() *supplier.Supplier {
	return &supplier.Supplier{
		Entity: types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:     parseID(r.ID),
		Name:   r.Name,
	}
}

// ==================== Stock models ====================

type productRow struct {
	ID           string          `gorm:"primaryKey;type:text"`
	Name         string          `gorm:"type:text;not null"`
	Quantity     decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Kilos        decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	LastEditedBy string          `gorm:"type:text"`
	LastEditedAt time.Time
	CreatedAt    time.Time     `gorm:"autoCreateTime:false;index"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime:false"`
	Movements    []movementRow `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

func (productRow) TableName() string { return "stock" }

// movementRow records that a movement key was folded into a product.
type movementRow struct {
	ProductID   string    `gorm:"primaryKey;type:text"`
	MovementKey string    `gorm:"primaryKey;type:text"`
	AppliedAt   time.Time `gorm:"not null"`
}

func (movementRow) TableName() string { return "stock_movements" }

func toProductRow(p *stock.Product) *productRow {
	return &productRow{
		ID:           p.ID.String(),
		Name:         p.Name,
		Quantity:     p.Quantity,
		Kilos:        p.Kilos,
		UnitPrice:    p.UnitPrice,
		LastEditedBy: p.LastEditedBy,
		LastEditedAt: p.LastEditedAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (r *productRow) toProduct() *stock.Product {
	p := &stock.Product{
		Entity:       types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:           parseID(r.ID),
		Name:         r.Name,
		Quantity:     r.Quantity,
		Kilos:        r.Kilos,
		UnitPrice:    r.UnitPrice,
		LastEditedBy: r.LastEditedBy,
		LastEditedAt: r.LastEditedAt,
	}
	for _, m := range r.Movements {
		p.Movements = append(p.Movements, m.MovementKey)
	}
	return p
}

// ==================== Invoice models ====================

type itemRow struct {
	ID        string          `json:"id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Detail    string          `json:"detail"`
	Kilos     decimal.Decimal `json:"kilos"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

func toItemRows(items []invoice.Item) []itemRow {
	out := make([]itemRow, len(items))
	for i, it := range items {
		out[i] = itemRow{
			ID:        it.ID.String(),
			Quantity:  it.Quantity,
			Detail:    it.Detail,
			Kilos:     it.Kilos,
			UnitPrice: it.UnitPrice,
			Total:     it.Total,
		}
	}
	return out
}

func fromItemRows(rows []itemRow) []invoice.Item {
	out := make([]invoice.Item, len(rows))
	for i, r := range rows {
		out[i] = invoice.Item{
			ID:        parseID(r.ID),
			Quantity:  r.Quantity,
			Detail:    r.Detail,
			Kilos:     r.Kilos,
			UnitPrice: r.UnitPrice,
			Total:     r.Total,
		}
	}
	return out
}

type clientInvoiceRow struct {
	ID              string          `gorm:"primaryKey;type:text"`
	InvoiceNumber   int64           `gorm:"uniqueIndex;not null"`
	ClientID        string          `gorm:"type:text;index;not null"`
	Date            time.Time       `gorm:"index"`
	Type            string          `gorm:"type:text;not null"`
	Items           []itemRow       `gorm:"type:text;serializer:json"`
	PreviousBalance decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	InvoiceTotal    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	CashPayment     decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	FinalBalance    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Closed          bool            `gorm:"not null"`
	CreatedAt       time.Time       `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime:false"`
}

func (clientInvoiceRow) TableName() string { return "client_invoices" }

func toClientInvoiceRow(inv *invoice.ClientInvoice) *clientInvoiceRow {
	return &clientInvoiceRow{
		ID:              inv.ID.String(),
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID.String(),
		Date:            inv.Date,
		Type:            string(inv.Type),
		Items:           toItemRows(inv.Items),
		PreviousBalance: inv.PreviousBalance,
		InvoiceTotal:    inv.InvoiceTotal,
		CashPayment:     inv.CashPayment,
		FinalBalance:    inv.FinalBalance,
		Closed:          inv.Closed,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
}

func (r *clientInvoiceRow) toInvoice() *invoice.ClientInvoice {
	return &invoice.ClientInvoice{
		Entity:          types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:              parseID(r.ID),
		InvoiceNumber:   r.InvoiceNumber,
		ClientID:        parseID(r.ClientID),
		Date:            r.Date,
		Type:            invoice.Type(r.Type),
		Items:           fromItemRows(r.Items),
		PreviousBalance: r.PreviousBalance,
		InvoiceTotal:    r.InvoiceTotal,
		CashPayment:     r.CashPayment,
		FinalBalance:    r.FinalBalance,
		Closed:          r.Closed,
	}
}

type supplierInvoiceRow struct {
	ID            string    `gorm:"primaryKey;type:text"`
	InvoiceNumber int64     `gorm:"uniqueIndex;not null"`
	SupplierID    string    `gorm:"type:text;index;not null"`
	Date          time.Time `gorm:"index"`
	Items         []itemRow `gorm:"type:text;serializer:json"`
	Closed        bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (supplierInvoiceRow) TableName() string { return "supplier_invoices" }

func toSupplierInvoiceRow(inv *invoice.SupplierInvoice) *supplierInvoiceRow {
	return &supplierInvoiceRow{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		SupplierID:    inv.SupplierID.String(),
		Date:          inv.Date,
		Items:         toItemRows(inv.Items),
		Closed:        inv.Closed,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func (r *supplierInvoiceRow) toInvoice() *invoice.SupplierInvoice {
	return &invoice.SupplierInvoice{
		Entity:        types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:            parseID(r.ID),
		InvoiceNumber: r.InvoiceNumber,
		SupplierID:    parseID(r.SupplierID),
		Date:          r.Date,
		Items:         fromItemRows(r.Items),
		Closed:        r.Closed,
	}
}

// ==================== Counter models ====================

type counterRow struct {
	Name       string    `gorm:"primaryKey;type:text"`
	NextNumber int64     `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
}

func (counterRow) TableName() string { return "counters" }

func (r *counterRow) toCounter() *sequence.Counter {
	return &sequence.Counter{Name: r.Name, NextNumber: r.NextNumber, UpdatedAt: r.UpdatedAt}
}
